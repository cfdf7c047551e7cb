package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ImageCache provides thread-safe caching of decoded source images keyed by
// file path.
//
// Cached images remain in memory until removed via Evict() or Clear().
// Callers must treat returned images as read-only: the processing stages
// never write to their input, and neither should anything else.
type ImageCache struct {
	mu      sync.RWMutex
	images  map[string]image.Image
	formats map[string]string
}

// NewImageCache creates an empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images:  make(map[string]image.Image),
		formats: make(map[string]string),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP. The image is
// cached using the exact path string provided.
func (c *ImageCache) Load(path string) (image.Image, error) {
	img, _, err := c.load(path)
	return img, err
}

func (c *ImageCache) load(path string) (image.Image, string, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		format := c.formats[path]
		c.mu.RUnlock()
		return img, format, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := Decode(f)
	if err != nil {
		return nil, "", err
	}

	c.mu.Lock()
	c.images[path] = img
	c.formats[path] = format
	c.mu.Unlock()

	return img, format, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.formats = make(map[string]string)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	delete(c.formats, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Decode reads an encoded image and validates that it has pixel data.
// Undecodable data and empty images are reported as ErrInvalidInput.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to decode image: %v", ErrInvalidInput, err)
	}
	if err := validateSource(img); err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// DecodeBase64 decodes a base64-encoded image file (standard encoding).
func DecodeBase64(data string) (image.Image, string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid base64 image data: %v", ErrInvalidInput, err)
	}
	return Decode(bytes.NewReader(raw))
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder that read the file: "png", "jpeg", "gif",
	// "bmp", "tiff" or "webp".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image layout carries an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// Paletted indicates an indexed-color image.
	Paletted bool `json:"paletted"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, format, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	info := &ImageInfo{
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        format,
		ColorDepth:    "8-bit",
		FileSizeBytes: stat.Size(),
	}

	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		info.HasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		info.HasAlpha = true
		info.ColorDepth = "16-bit"
	case *image.Gray16:
		info.ColorDepth = "16-bit"
	case *image.Paletted:
		info.Paletted = true
	}

	return info, nil
}
