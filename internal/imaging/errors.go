package imaging

import (
	"errors"
	"fmt"
	"image"
)

// Sentinel errors returned by the processing stages. Callers match them with
// errors.Is; the returned error carries additional context.
var (
	// ErrInvalidInput indicates an empty or malformed source image, or an
	// option that falls outside the image (e.g. a sample point).
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates a channel layout that cannot be
	// converted to the working color space.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// maxPixels bounds the area of an accepted source.
const maxPixels = 1 << 28

// Validate reports whether img is a non-empty image the processing stages
// can read pixel by pixel.
func Validate(img image.Image) error {
	return validateSource(img)
}

func validateSource(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	if _, ok := img.(*image.Uniform); ok {
		return fmt.Errorf("%w: uniform color has no pixel data", ErrInvalidInput)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty image (%dx%d)", ErrInvalidInput, w, h)
	}
	if int64(w)*int64(h) > maxPixels {
		return fmt.Errorf("%w: image too large (%dx%d)", ErrInvalidInput, w, h)
	}

	switch src := img.(type) {
	case *image.Paletted:
		if len(src.Palette) == 0 {
			return fmt.Errorf("%w: paletted image without a palette", ErrUnsupportedFormat)
		}
		if src.Stride < w || len(src.Pix) < (h-1)*src.Stride+w {
			return fmt.Errorf("%w: truncated pixel data", ErrInvalidInput)
		}
		if err := checkPaletteIndices(src, w, h); err != nil {
			return err
		}
	case *image.RGBA:
		if len(src.Pix) < 4*w*h {
			return fmt.Errorf("%w: truncated pixel data", ErrInvalidInput)
		}
	case *image.NRGBA:
		if len(src.Pix) < 4*w*h {
			return fmt.Errorf("%w: truncated pixel data", ErrInvalidInput)
		}
	case *image.Gray:
		if len(src.Pix) < w*h {
			return fmt.Errorf("%w: truncated pixel data", ErrInvalidInput)
		}
	}

	if img.ColorModel() == nil {
		return fmt.Errorf("%w: image has no color model", ErrUnsupportedFormat)
	}

	return nil
}

// checkPaletteIndices rejects pixels that point past the end of the palette.
// Paletted.At would panic on them.
func checkPaletteIndices(img *image.Paletted, w, h int) error {
	n := len(img.Palette)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, v := range row {
			if int(v) >= n {
				return fmt.Errorf("%w: palette index %d at (%d,%d) exceeds %d-color palette",
					ErrInvalidInput, v, x, y, n)
			}
		}
	}
	return nil
}
