package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
)

// EdgeOptions tunes the gradient operator used by DetectEdgesWith.
type EdgeOptions struct {
	// L2Gradient selects the Euclidean gradient magnitude sqrt(Gx²+Gy²).
	// The default is the L1 norm |Gx|+|Gy|.
	L2Gradient bool

	// BlurRadius applies a Gaussian blur of this radius to the grayscale
	// image before computing gradients. Zero disables smoothing.
	BlurRadius float64
}

// EdgeDetectResult contains an edge map encoded as base64 PNG.
//
// The image is grayscale: white pixels (255) are edges, black pixels (0)
// are not.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of pixels classified as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png".
	MimeType string `json:"mime_type"`
}

// DetectEdges runs Canny edge detection with the default options.
func DetectEdges(img image.Image, threshold1, threshold2 float64) (*image.Gray, error) {
	return DetectEdgesWith(img, threshold1, threshold2, EdgeOptions{})
}

// DetectEdgesWith converts img to grayscale and returns its Canny edge map.
//
// Parameters:
//   - img: Source image (color or grayscale). It is not modified.
//   - threshold1, threshold2: Hysteresis thresholds on the gradient
//     magnitude of the 8-bit grayscale image. The pair is not validated
//     against each other: the larger value seeds edge chains and the
//     smaller value continues them, whichever argument carries it.
//   - opts: Gradient options.
//
// Returns a new *image.Gray anchored at (0,0) with the same width and height
// as img. Edge pixels are 255, all others 0.
//
// # Algorithm
//
//  1. Grayscale conversion using ITU-R BT.601 weights
//     (0.299*R + 0.587*G + 0.114*B), rounded to 8 bits
//  2. Optional Gaussian smoothing (opts.BlurRadius)
//  3. 3x3 Sobel gradients; magnitude |Gx|+|Gy| (or L2)
//  4. Non-maximum suppression along the gradient direction quantized to
//     0°, 45°, 90° and 135°
//  5. Hysteresis: pixels above the high threshold are strong edges and
//     seed 8-connected chains through pixels above the low threshold
//
// # Errors
//
//   - ErrInvalidInput: nil or empty image, negative or NaN thresholds
//   - ErrUnsupportedFormat: the image cannot be read as color
func DetectEdgesWith(img image.Image, threshold1, threshold2 float64, opts EdgeOptions) (*image.Gray, error) {
	if err := validateSource(img); err != nil {
		return nil, err
	}
	if !validThreshold(threshold1) || !validThreshold(threshold2) {
		return nil, fmt.Errorf("%w: thresholds must be non-negative (got %g, %g)",
			ErrInvalidInput, threshold1, threshold2)
	}
	if opts.BlurRadius < 0 || math.IsNaN(opts.BlurRadius) {
		return nil, fmt.Errorf("%w: blur radius must be non-negative (got %g)",
			ErrInvalidInput, opts.BlurRadius)
	}

	low, high := threshold1, threshold2
	if low > high {
		low, high = high, low
	}

	gray := Grayscale(img)
	width, height := gray.Rect.Dx(), gray.Rect.Dy()

	if opts.BlurRadius > 0 {
		blurred := blur.Gaussian(gray, opts.BlurRadius)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gray.Pix[y*gray.Stride+x] = blurred.Pix[y*blurred.Stride+x*4]
			}
		}
	}

	magnitude, direction := sobel(gray, opts.L2Gradient)
	suppressed := suppressNonMaxima(magnitude, direction, width, height)

	return hysteresis(suppressed, width, height, low, high), nil
}

// EncodeEdges wraps an edge map in an EdgeDetectResult with the image
// encoded as base64 PNG.
func EncodeEdges(edges *image.Gray) (*EdgeDetectResult, error) {
	return EncodeEdgeImage(edges, edges)
}

// EncodeEdgeImage is EncodeEdges for a rendition of the edge map, such as
// the output of ExpandGray. Dimensions and the edge count come from edges;
// only img is encoded.
func EncodeEdgeImage(edges *image.Gray, img image.Image) (*EdgeDetectResult, error) {
	encoded, err := EncodePNGBase64(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       edges.Rect.Dx(),
		Height:      edges.Rect.Dy(),
		EdgePixels:  CountEdges(edges),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// Grayscale converts img to an 8-bit luminance image anchored at (0,0)
// using BT.601 weights. The source is not modified.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			n := color.NRGBAModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.NRGBA)
			lum := 0.299*float64(n.R) + 0.587*float64(n.G) + 0.114*float64(n.B)
			gray.Pix[y*gray.Stride+x] = uint8(math.Round(lum))
		}
	}
	return gray
}

// CountEdges returns the number of non-zero pixels in an edge map.
func CountEdges(edges *image.Gray) int {
	count := 0
	width, height := edges.Rect.Dx(), edges.Rect.Dy()
	for y := 0; y < height; y++ {
		row := edges.Pix[y*edges.Stride : y*edges.Stride+width]
		for _, v := range row {
			if v != 0 {
				count++
			}
		}
	}
	return count
}

// ExpandGray replicates a single-channel image across R, G and B of a new
// opaque NRGBA image, for sinks that only display color images.
func ExpandGray(g *image.Gray) *image.NRGBA {
	width, height := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := g.Pix[y*g.Stride+x]
			i := y*out.Stride + x*4
			out.Pix[i+0] = v
			out.Pix[i+1] = v
			out.Pix[i+2] = v
			out.Pix[i+3] = 255
		}
	}
	return out
}

func validThreshold(t float64) bool {
	return t >= 0 && !math.IsNaN(t)
}

// sobel computes gradient magnitude and direction with 3x3 Sobel kernels.
// Border pixels use clamped (replicated) edge values.
func sobel(gray *image.Gray, l2 bool) (magnitude, direction [][]float64) {
	width, height := gray.Rect.Dx(), gray.Rect.Dy()

	sobelX := [][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude = make([][]float64, height)
	direction = make([][]float64, height)

	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)

		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py := clamp(y+ky, 0, height-1)
					px := clamp(x+kx, 0, width-1)
					v := float64(gray.Pix[py*gray.Stride+px])
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			if l2 {
				magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			} else {
				magnitude[y][x] = math.Abs(gx) + math.Abs(gy)
			}
			direction[y][x] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// suppressNonMaxima thins edges to one pixel by keeping only local maxima
// along the gradient direction. The one-pixel image border is always zero.
//
// Image Y grows downward, so a gradient pointing at 45° runs toward
// (x+1, y+1).
func suppressNonMaxima(magnitude, direction [][]float64, width, height int) [][]float64 {
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		if y == 0 || y == height-1 {
			continue
		}
		for x := 1; x < width-1; x++ {
			angle := direction[y][x]
			mag := magnitude[y][x]
			if mag == 0 {
				continue
			}

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			default:
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}
	return suppressed
}

// hysteresis marks strong pixels (> high) and grows 8-connected chains from
// them through weak pixels (> low).
func hysteresis(suppressed [][]float64, width, height int, low, high float64) *image.Gray {
	result := image.NewGray(image.Rect(0, 0, width, height))

	var stack []image.Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if suppressed[y][x] > high {
				result.Pix[y*result.Stride+x] = 255
				stack = append(stack, image.Point{X: x, Y: y})
			}
		}
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for ky := -1; ky <= 1; ky++ {
			for kx := -1; kx <= 1; kx++ {
				nx, ny := p.X+kx, p.Y+ky
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				i := ny*result.Stride + nx
				if result.Pix[i] == 0 && suppressed[ny][nx] > low {
					result.Pix[i] = 255
					stack = append(stack, image.Point{X: nx, Y: ny})
				}
			}
		}
	}

	return result
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
