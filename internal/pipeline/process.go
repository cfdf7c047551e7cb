// Package pipeline runs both processing stages over one source image: the
// edge map and the background-removed matte.
//
// The stages share nothing but the read-only source, so neither output
// depends on the other. An optional size preset first shrinks large sources
// by an integer factor and finally fits the matte to the preset bounds.
package pipeline

import (
	"fmt"
	"image"

	"github.com/ironsheep/edge-matte-mcp/internal/imaging"
)

// Params are the operator controls for one processing run.
type Params struct {
	// Threshold1 and Threshold2 are the edge hysteresis thresholds,
	// typically 0-255. They are passed to the edge operator unchanged.
	Threshold1 float64
	Threshold2 float64

	// Edge tunes the gradient operator.
	Edge imaging.EdgeOptions

	// Matte controls background sampling and tolerance.
	Matte imaging.MatteOptions

	// Size is the output preset. SizeOriginal processes at full size.
	Size ImageSize

	// MaxDownscale caps the pre-processing shrink factor. Values below 1
	// use DefaultMaxDownscale.
	MaxDownscale int
}

// DefaultParams returns the operator defaults: thresholds 50/150, corner
// sample with ±30 hue tolerance, and the M size preset.
func DefaultParams() Params {
	return Params{
		Threshold1:   50,
		Threshold2:   150,
		Matte:        imaging.DefaultMatteOptions(),
		Size:         SizeM,
		MaxDownscale: DefaultMaxDownscale,
	}
}

// Result holds both derived images of one run.
type Result struct {
	// Edges is the edge map at working size.
	Edges *image.Gray

	// Matte is the background-removed image, fitted to the size preset.
	Matte *image.NRGBA

	// Sample and Band record the background classification used.
	Sample imaging.HSV
	Band   imaging.ToleranceBand

	// BackgroundPixels counts transparent pixels before the final fit.
	BackgroundPixels int
}

// Process derives the edge map and the matte from src. src is not modified.
// Either stage failing fails the run; no partial result is returned.
func Process(src image.Image, p Params) (*Result, error) {
	if err := imaging.Validate(src); err != nil {
		return nil, err
	}
	b := src.Bounds()

	maxFactor := p.MaxDownscale
	if maxFactor < 1 {
		maxFactor = DefaultMaxDownscale
	}

	working := prepare(src, p.Size, maxFactor)

	edges, err := imaging.DetectEdgesWith(working, p.Threshold1, p.Threshold2, p.Edge)
	if err != nil {
		return nil, fmt.Errorf("edge detection: %w", err)
	}

	// Sample coordinates are given against the source; check them there
	// before mapping them onto the working image.
	matteOpts := p.Matte
	if working != src && matteOpts.Mode == imaging.SamplePoint {
		if !matteOpts.Sample.In(image.Rect(0, 0, b.Dx(), b.Dy())) {
			return nil, fmt.Errorf("background removal: %w: sample point (%d,%d) outside %dx%d image",
				imaging.ErrInvalidInput, matteOpts.Sample.X, matteOpts.Sample.Y, b.Dx(), b.Dy())
		}
		matteOpts.Sample = scalePoint(matteOpts.Sample, b, working.Bounds())
	}
	if working != src && matteOpts.Region != (image.Rectangle{}) {
		if err := imaging.ValidateRegion(matteOpts.Region, b.Size()); err != nil {
			return nil, fmt.Errorf("background removal: %w", err)
		}
		matteOpts.Region = scaleRect(matteOpts.Region, b, working.Bounds())
	}

	matte, err := imaging.ExtractMatte(working, matteOpts)
	if err != nil {
		return nil, fmt.Errorf("background removal: %w", err)
	}

	out := matte.Image
	if p.Size != SizeOriginal {
		out = fitToSize(out, p.Size)
	}

	return &Result{
		Edges:            edges,
		Matte:            out,
		Sample:           matte.Sample,
		Band:             matte.Band,
		BackgroundPixels: matte.BackgroundPixels,
	}, nil
}

// scalePoint maps a point relative to from into the coordinate space of to.
func scalePoint(p image.Point, from, to image.Rectangle) image.Point {
	return image.Point{
		X: p.X * to.Dx() / from.Dx(),
		Y: p.Y * to.Dy() / from.Dy(),
	}
}

// scaleRect maps a rectangle relative to from into the coordinate space of
// to. The corners round outward so a non-empty rectangle stays non-empty.
func scaleRect(r image.Rectangle, from, to image.Rectangle) image.Rectangle {
	return image.Rectangle{
		Min: scalePoint(r.Min, from, to),
		Max: image.Point{
			X: (r.Max.X*to.Dx() + from.Dx() - 1) / from.Dx(),
			Y: (r.Max.Y*to.Dy() + from.Dy() - 1) / from.Dy(),
		},
	}
}
