// Package server implements the MCP (Model Context Protocol) server for the
// carpet design tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Logs never go to stdout; the caller points the logger at stderr.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//   - image_edge_detect: Canny edge map, optionally refined
//
// Carpet design:
//   - carpet_geometry: Knot grid and production statistics for a carpet spec
//   - carpet_extract_palette: k-means yarn palette of an image
//   - carpet_quantize: Dithered reduction to an automatic or given palette
//   - carpet_symmetry: Four-way, horizontal or medallion layout
//   - carpet_knot_chart: Weaver's counting chart of a knot-resolution design
//   - carpet_process: The full pipeline, one run at a time
//
// # Progress
//
// When a carpet_process call carries params._meta.progressToken, every
// completed stage is reported as a notifications/progress message before the
// final response. Cancelling the context passed to Run cancels the active
// run at its next stage boundary.
//
// # Image Caching
//
// Tool inputs are cached by path for the lifetime of the server. Files a
// tool writes are evicted so later calls see the new content. carpet_process
// always reads its input from disk.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server
