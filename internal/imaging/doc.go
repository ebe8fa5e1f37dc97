// Package imaging provides the raster plumbing shared by the carpet design
// pipeline and its MCP server.
//
// This package loads, clones, saves and encodes images, produces Canny edge
// maps and cleans them with morphological close/open, renders palette swatch
// strips and draws knot charts for weavers. Colour values travel as RGBColor,
// an 8-bit triple that knows how to format and parse itself as hex.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// One pixel is one knot once the pipeline has resized the working image to
// the knot resolution, so charts drawn here use knot units directly.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function is
// stateless and returns a new image; inputs are never modified.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - File I/O errors during image loading and saving
//   - Encoding errors during image output
//   - Malformed hex colour strings
package imaging
