// Package server implements the MCP (Model Context Protocol) server for the
// edge detection and background removal tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load image and get metadata
//   - image_sample_color: Color at a pixel, including 8-bit HSV
//   - image_edge_detect: Canny edge map
//   - image_remove_background: Hue-band background removal
//   - image_process: Both outputs from one source, resized to a preset
//
// Images are given either as a file path or inline as base64. Results carry
// images as base64 PNG and may also be written to a .png output path.
//
// # Image Caching
//
// Images loaded by path are cached for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server
