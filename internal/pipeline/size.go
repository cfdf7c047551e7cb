package pipeline

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// ImageSize is a square output size preset.
type ImageSize string

// Output size presets. SizeOriginal disables resizing.
const (
	SizeOriginal ImageSize = ""
	SizeXS       ImageSize = "XS"
	SizeS        ImageSize = "S"
	SizeM        ImageSize = "M"
	SizeL        ImageSize = "L"
	SizeXL       ImageSize = "XL"
)

var sizeEdges = map[ImageSize]int{
	SizeXS: 75,
	SizeS:  150,
	SizeM:  300,
	SizeL:  600,
	SizeXL: 1200,
}

// DefaultMaxDownscale caps the integer factor applied before processing.
const DefaultMaxDownscale = 10

// ParseImageSize accepts a preset name in any case. The empty string and
// "original" select SizeOriginal.
func ParseImageSize(s string) (ImageSize, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" || name == "ORIGINAL" {
		return SizeOriginal, nil
	}
	size := ImageSize(name)
	if _, ok := sizeEdges[size]; !ok {
		return SizeOriginal, fmt.Errorf("unknown image size %q (want XS, S, M, L or XL)", s)
	}
	return size, nil
}

// Dimensions returns the preset's bounding box, or 0,0 for SizeOriginal.
func (s ImageSize) Dimensions() (width, height int) {
	edge := sizeEdges[s]
	return edge, edge
}

// downscaleFactor is the integer factor by which a w x h image can shrink
// while staying at least as large as the target, capped at maxFactor.
func downscaleFactor(w, h int, size ImageSize, maxFactor int) int {
	tw, th := size.Dimensions()
	if tw == 0 || th == 0 {
		return 1
	}
	factor := min(w/tw, h/th)
	return min(factor, maxFactor)
}

// prepare shrinks img by downscaleFactor when it is larger than 1. Smaller
// images are returned unchanged.
func prepare(img image.Image, size ImageSize, maxFactor int) image.Image {
	b := img.Bounds()
	factor := downscaleFactor(b.Dx(), b.Dy(), size, maxFactor)
	if factor <= 1 {
		return img
	}
	return imaging.Resize(img, b.Dx()/factor, b.Dy()/factor, imaging.Lanczos)
}

// fitToSize scales img so its longer side matches the preset, preserving the
// aspect ratio. Landscape images take the preset width; portrait and square
// images take the preset height.
func fitToSize(img image.Image, size ImageSize) *image.NRGBA {
	tw, th := size.Dimensions()
	b := img.Bounds()
	if tw == 0 || b.Dx() == 0 || b.Dy() == 0 {
		return imaging.Clone(img)
	}

	aspect := float64(b.Dx()) / float64(b.Dy())
	var w, h int
	if aspect > 1 {
		w, h = tw, int(float64(tw)/aspect)
	} else {
		w, h = int(float64(th)*aspect), th
	}
	return imaging.Resize(img, max(w, 1), max(h, 1), imaging.Lanczos)
}
