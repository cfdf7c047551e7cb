package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// EncodePNGBase64 encodes img as PNG and returns it base64-encoded, the form
// in which tool results hand images to the display sink.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SavePNG writes img to path as PNG. The path must end in ".png" so that an
// alpha channel is never silently dropped by a lossy format.
func SavePNG(img image.Image, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return fmt.Errorf("%w: output path %q must have a .png extension", ErrInvalidInput, path)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
