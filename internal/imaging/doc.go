// Package imaging provides the image processing stages behind the edge-matte
// tools: Canny edge detection and hue-band background removal.
//
// Both stages take a decoded image.Image, never modify it, and return a
// newly allocated image anchored at (0,0) with the same width and height.
// They hold no state, so they may be called concurrently on the same or on
// different source images.
//
// # Edge Detection
//
// DetectEdges converts the source to BT.601 grayscale and runs a Canny-style
// operator: Sobel gradients, non-maximum suppression and hysteresis with two
// operator-supplied thresholds. The result is a single-channel map with
// white (255) edges on black; ExpandGray turns it into an opaque color image
// for display.
//
// # Background Removal
//
// RemoveBackground treats the top-left pixel as background. Its color, in
// the 8-bit HSV domain (H 0-179, S and V 0-255), seeds a ToleranceBand of
// ±30 hue with saturation and value floors of 50. Every pixel inside the band
// is marked in a binary mask and made fully transparent in an NRGBA copy of
// the source; every other pixel is fully opaque. ExtractMatte exposes the
// sample point, the tolerance, an operator-selected background region and
// alternative sampling modes.
//
// Known limitation: an achromatic corner (white, black, gray) has hue 0, so
// the band is centered on red regardless of the actual background.
//
// # Error Handling
//
// Errors wrap one of two sentinels, matched with errors.Is:
//   - ErrInvalidInput: nil, empty or truncated images and out-of-range
//     options (negative thresholds, sample points outside the image)
//   - ErrUnsupportedFormat: layouts that cannot be read as color, such as a
//     paletted image without a palette
//
// No stage returns a partial result.
package imaging
