package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ValidateRegion checks that r is a non-empty rectangle inside an image of
// the given size, with coordinates relative to the image's top-left.
func ValidateRegion(r image.Rectangle, size image.Point) error {
	if r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y {
		return fmt.Errorf("%w: invalid region (%d,%d)-(%d,%d): x1 must be < x2, y1 must be < y2",
			ErrInvalidInput, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	}
	if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > size.X || r.Max.Y > size.Y {
		return fmt.Errorf("%w: region (%d,%d)-(%d,%d) outside %dx%d image",
			ErrInvalidInput, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, size.X, size.Y)
	}
	return nil
}

// CropRegion copies the part of img inside r. r is relative to the top-left
// of img's bounds and must lie entirely inside the image.
func CropRegion(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	if err := validateSource(img); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if err := ValidateRegion(r, bounds.Size()); err != nil {
		return nil, err
	}
	return imaging.Crop(img, r.Add(bounds.Min)), nil
}
