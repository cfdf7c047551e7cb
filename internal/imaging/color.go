package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// HueMax is the largest hue value in the 8-bit HSV domain. Hue is stored as
// degrees/2 so that a full turn fits in one byte.
const HueMax = 179

// HSV is a color in the 8-bit hue-saturation-value domain:
//   - H: 0-179 (degrees / 2; 0=red, 60=green, 120=blue)
//   - S: 0-255 (0 = gray, 255 = fully saturated)
//   - V: 0-255 (0 = black, 255 = brightest)
//
// Achromatic colors (R == G == B) have H = 0.
type HSV struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

// String formats the color as "hsv(h,s,v)".
func (c HSV) String() string {
	return fmt.Sprintf("hsv(%d,%d,%d)", c.H, c.S, c.V)
}

// RGBAColor represents an RGBA color with 8-bit non-premultiplied components.
type RGBAColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"` // 0 = fully transparent, 255 = fully opaque
}

// ToHSV converts an arbitrary color to the 8-bit HSV domain.
//
// The color is first un-premultiplied, so fully transparent pixels that
// still carry RGB information keep their hue.
func ToHSV(c color.Color) HSV {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return hsvFromRGB(n.R, n.G, n.B)
}

// hsvFromRGB converts 8-bit RGB components to 8-bit HSV.
//
// go-colorful yields hue in degrees [0,360) and saturation/value in [0,1];
// the result is rounded into the byte domain. A hue that rounds up to 180
// wraps to 0.
func hsvFromRGB(r, g, b uint8) HSV {
	c := colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
	h, s, v := c.Hsv()

	hue := int(math.Round(h / 2))
	if hue > HueMax {
		hue -= HueMax + 1
	}

	return HSV{
		H: uint8(hue),
		S: uint8(math.Round(s * 255)),
		V: uint8(math.Round(v * 255)),
	}
}

// ColorResult contains a color value in the representations an operator
// needs to choose a background sample.
type ColorResult struct {
	Hex  string    `json:"hex"`  // Hex format "#RRGGBB" (no alpha)
	RGBA RGBAColor `json:"rgba"` // Non-premultiplied components
	HSV  HSV       `json:"hsv"`  // 8-bit HSV, as used by background removal
}

// SampleColor extracts the color value at a specific pixel coordinate.
//
// Coordinates are 0-based from the top-left of the image bounds. Points
// outside the image return ErrInvalidInput.
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	if err := validateSource(img); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	px, py := bounds.Min.X+x, bounds.Min.Y+y
	if !(image.Point{X: px, Y: py}).In(bounds) {
		return nil, fmt.Errorf("%w: coordinates (%d,%d) outside %dx%d image",
			ErrInvalidInput, x, y, bounds.Dx(), bounds.Dy())
	}

	n := color.NRGBAModel.Convert(img.At(px, py)).(color.NRGBA)

	return &ColorResult{
		Hex:  fmt.Sprintf("#%02X%02X%02X", n.R, n.G, n.B),
		RGBA: RGBAColor{R: n.R, G: n.G, B: n.B, A: n.A},
		HSV:  hsvFromRGB(n.R, n.G, n.B),
	}, nil
}
