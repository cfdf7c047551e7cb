package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/cenkalti/dominantcolor"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Background band constants. Hue tolerance is configurable; the saturation
// and value floors are fixed.
const (
	DefaultTolerance = 30
	SaturationFloor  = 50
	ValueFloor       = 50
	ChannelCeiling   = 255
)

// Mask values written by BuildMask.
const (
	MaskBackground uint8 = 255
	MaskForeground uint8 = 0
)

// SampleMode selects how the background reference color is obtained.
type SampleMode int

const (
	// SamplePoint reads the single pixel at MatteOptions.Sample.
	SamplePoint SampleMode = iota

	// SampleRegionMean averages HSV over the top-left 10% x 10% of the
	// source (at least one pixel).
	SampleRegionMean

	// SampleReferenceMean averages HSV over MatteOptions.Reference, or over
	// MatteOptions.Region of the source when no reference is given.
	SampleReferenceMean

	// SampleDominant uses the dominant color of MatteOptions.Reference,
	// MatteOptions.Region or the whole source, in that order.
	SampleDominant
)

var sampleModeNames = map[SampleMode]string{
	SamplePoint:         "point",
	SampleRegionMean:    "region_mean",
	SampleReferenceMean: "reference_mean",
	SampleDominant:      "dominant",
}

func (m SampleMode) String() string {
	if name, ok := sampleModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("SampleMode(%d)", int(m))
}

// ParseSampleMode converts a mode name ("point", "region_mean",
// "reference_mean", "dominant") to a SampleMode. An empty string selects
// SamplePoint.
func ParseSampleMode(s string) (SampleMode, error) {
	if s == "" {
		return SamplePoint, nil
	}
	for mode, name := range sampleModeNames {
		if strings.EqualFold(s, name) {
			return mode, nil
		}
	}
	return SamplePoint, fmt.Errorf("%w: unknown sample mode %q", ErrInvalidInput, s)
}

// ToleranceBand is an inclusive HSV range. Hue does not wrap: a red sample
// near 0 does not reach hues near 179.
type ToleranceBand struct {
	Lower HSV `json:"lower"`
	Upper HSV `json:"upper"`
}

// NewToleranceBand derives the background band around a sample:
// hue in [max(h-tolerance, 0), min(h+tolerance, 179)], saturation and value
// in [50, 255]. Tolerances beyond the hue range select every hue.
func NewToleranceBand(sample HSV, tolerance int) ToleranceBand {
	return hueBand(float64(sample.H), tolerance)
}

// hueBand builds the band around a possibly fractional hue. The bounds are
// the integer hues within tolerance of hue, so a mean of 60.4 with
// tolerance 30 starts at 31.
func hueBand(hue float64, tolerance int) ToleranceBand {
	tol := float64(min(max(tolerance, 0), HueMax))
	lower := max(math.Ceil(hue-tol), 0)
	upper := min(math.Floor(hue+tol), HueMax)
	return ToleranceBand{
		Lower: HSV{H: uint8(lower), S: SaturationFloor, V: ValueFloor},
		Upper: HSV{H: uint8(upper), S: ChannelCeiling, V: ChannelCeiling},
	}
}

// Contains reports whether c lies inside the band on all three channels.
func (b ToleranceBand) Contains(c HSV) bool {
	return c.H >= b.Lower.H && c.H <= b.Upper.H &&
		c.S >= b.Lower.S && c.S <= b.Upper.S &&
		c.V >= b.Lower.V && c.V <= b.Upper.V
}

// MatteOptions controls background removal.
type MatteOptions struct {
	// Mode selects the background sampling strategy.
	Mode SampleMode

	// Sample is the pixel read by SamplePoint, relative to the top-left of
	// the image bounds.
	Sample image.Point

	// Tolerance is the hue half-width of the band. Must be >= 0.
	Tolerance int

	// Reference is the image sampled by SampleReferenceMean and, when set,
	// SampleDominant.
	Reference image.Image

	// Region is an operator-selected background area, relative to the
	// top-left of the image bounds. It stands in for Reference when that is
	// nil. The zero Rectangle means no region; any other value must be a
	// non-empty rectangle inside the image.
	Region image.Rectangle
}

// DefaultMatteOptions samples the top-left pixel with a ±30 hue band.
func DefaultMatteOptions() MatteOptions {
	return MatteOptions{Mode: SamplePoint, Tolerance: DefaultTolerance}
}

// Matte is the output of background removal.
type Matte struct {
	// Image is a new NRGBA image the size of the source. Background pixels
	// have alpha 0 and keep their RGB values; all others have alpha 255.
	Image *image.NRGBA

	// Sample is the background color the band was derived from.
	Sample HSV

	// Band is the HSV range classified as background.
	Band ToleranceBand

	// BackgroundPixels is the number of pixels made transparent.
	BackgroundPixels int
}

// RemoveBackground makes every pixel whose color falls within the hue band
// of the top-left pixel fully transparent.
//
// The corner pixel is assumed to be background. When it is achromatic
// (white, black or gray) its hue is 0, so the band covers reds; its
// saturation is then below the floor, but other reddish pixels may still
// be removed.
func RemoveBackground(img image.Image) (*image.NRGBA, error) {
	m, err := ExtractMatte(img, DefaultMatteOptions())
	if err != nil {
		return nil, err
	}
	return m.Image, nil
}

// ExtractMatte samples a background color, builds a binary mask of pixels
// inside its tolerance band and returns an RGBA copy of img with those
// pixels transparent.
//
// The source is not modified. Applying ExtractMatte to its own output is
// not idempotent: transparent pixels keep their RGB values and a new sample
// may differ.
//
// # Errors
//
//   - ErrInvalidInput: nil or empty image, negative tolerance, sample point
//     or region outside the image, missing or empty reference image
//   - ErrUnsupportedFormat: the source cannot be read as color
func ExtractMatte(img image.Image, opts MatteOptions) (*Matte, error) {
	if err := validateSource(img); err != nil {
		return nil, err
	}
	if opts.Tolerance < 0 {
		return nil, fmt.Errorf("%w: tolerance must be non-negative (got %d)", ErrInvalidInput, opts.Tolerance)
	}

	// Clone converts any source layout to NRGBA anchored at (0,0).
	out := imaging.Clone(img)

	sample, hue, err := sampleBackground(out, opts)
	if err != nil {
		return nil, err
	}
	band := hueBand(hue, opts.Tolerance)

	mask := BuildMask(out, band)
	removed := applyMask(out, mask)

	return &Matte{
		Image:            out,
		Sample:           sample,
		Band:             band,
		BackgroundPixels: removed,
	}, nil
}

// BuildMask classifies every pixel of img independently: 255 if its HSV
// color lies inside band, 0 otherwise. Rows are processed in parallel; the
// result does not depend on scheduling.
func BuildMask(img *image.NRGBA, band ToleranceBand) *image.Gray {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	mask := image.NewGray(image.Rect(0, 0, width, height))

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			src := img.Pix[y*img.Stride : y*img.Stride+width*4]
			dst := mask.Pix[y*mask.Stride : y*mask.Stride+width]
			for x := range dst {
				i := x * 4
				if band.Contains(hsvFromRGB(src[i], src[i+1], src[i+2])) {
					dst[x] = MaskBackground
				} else {
					dst[x] = MaskForeground
				}
			}
		}
	})

	return mask
}

// applyMask sets alpha to 0 where the mask marks background and 255
// elsewhere. It returns the number of background pixels.
func applyMask(img *image.NRGBA, mask *image.Gray) int {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	counts := make([]int, height)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			alpha := img.Pix[y*img.Stride : y*img.Stride+width*4]
			m := mask.Pix[y*mask.Stride : y*mask.Stride+width]
			for x, v := range m {
				if v == MaskBackground {
					alpha[x*4+3] = 0
					counts[y]++
				} else {
					alpha[x*4+3] = 255
				}
			}
		}
	})

	total := 0
	for _, c := range counts {
		total += c
	}
	return total
}

// sampleBackground returns the background reference color for opts.Mode
// and the hue the band is centered on. Mean modes keep the fractional hue;
// the returned color is rounded.
func sampleBackground(src *image.NRGBA, opts MatteOptions) (HSV, float64, error) {
	switch opts.Mode {
	case SamplePoint:
		p := opts.Sample
		if !p.In(src.Rect) {
			return HSV{}, 0, fmt.Errorf("%w: sample point (%d,%d) outside %dx%d image",
				ErrInvalidInput, p.X, p.Y, src.Rect.Dx(), src.Rect.Dy())
		}
		i := src.PixOffset(p.X, p.Y)
		c := hsvFromRGB(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		return c, float64(c.H), nil

	case SampleRegionMean:
		w := max(src.Rect.Dx()/10, 1)
		h := max(src.Rect.Dy()/10, 1)
		c, hue := meanHSV(imaging.Crop(src, image.Rect(0, 0, w, h)))
		return c, hue, nil

	case SampleReferenceMean:
		ref, err := sampleArea(src, opts, false)
		if err != nil {
			return HSV{}, 0, err
		}
		c, hue := meanHSV(ref)
		return c, hue, nil

	case SampleDominant:
		target, err := sampleArea(src, opts, true)
		if err != nil {
			return HSV{}, 0, err
		}
		d := dominantcolor.Find(target)
		c := hsvFromRGB(d.R, d.G, d.B)
		return c, float64(c.H), nil

	default:
		return HSV{}, 0, fmt.Errorf("%w: unknown sample mode %v", ErrInvalidInput, opts.Mode)
	}
}

// sampleArea picks the pixels a reference mode samples: the reference image
// if given, otherwise the selected region of src. With neither, it returns
// src when wholeSource is set and an error otherwise.
func sampleArea(src *image.NRGBA, opts MatteOptions, wholeSource bool) (*image.NRGBA, error) {
	switch {
	case opts.Reference != nil:
		return referenceImage(opts.Reference)
	case opts.Region != (image.Rectangle{}):
		return CropRegion(src, opts.Region)
	case wholeSource:
		return src, nil
	default:
		return nil, fmt.Errorf("%w: sample mode %v requires a reference image or region", ErrInvalidInput, opts.Mode)
	}
}

func referenceImage(ref image.Image) (*image.NRGBA, error) {
	if err := validateSource(ref); err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	return imaging.Clone(ref), nil
}

// meanHSV averages each HSV channel independently. Hue is averaged
// linearly, not on the circle. It returns the rounded mean color and the
// unrounded mean hue.
func meanHSV(img *image.NRGBA) (HSV, float64) {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	hs := make([]float64, 0, width*height)
	ss := make([]float64, 0, width*height)
	vs := make([]float64, 0, width*height)

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			c := hsvFromRGB(row[x*4], row[x*4+1], row[x*4+2])
			hs = append(hs, float64(c.H))
			ss = append(ss, float64(c.S))
			vs = append(vs, float64(c.V))
		}
	}

	hue := stat.Mean(hs, nil)
	return HSV{
		H: uint8(math.Round(hue)),
		S: uint8(math.Round(stat.Mean(ss, nil))),
		V: uint8(math.Round(stat.Mean(vs, nil))),
	}, hue
}
