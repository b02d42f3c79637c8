// Package server implements the MCP (Model Context Protocol) server for slide overlays.
//
// The server exposes overlay rendering and inspection to MCP clients over
// JSON-RPC 2.0 on stdio:
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
//   - slide_levels: List the levels of a slide and their dimensions
//   - overlay_render: Render overlays/<name>.jpg and masks/<name>.jpg for a slide
//   - overlay_sample_color: Sample pixels of a rendered image
//   - overlay_crop: Crop a rectangle, or a square around one cell, as base64 PNG
//   - overlay_grid: Draw a level-0 coordinate grid on a rendered image
//   - overlay_measure: Convert a pixel distance at a level to level-0 pixels and microns
//   - render_history: List renders recorded in the ledger
//
// overlay_render takes its defaults (level, output path, palette, marker
// radius, mask weight, JPEG quality) from the server's config.Config.
// When the server has a store.Store, every successful render is recorded.
//
// # Image Caching
//
// Source images and rendered outputs are cached by path in a wsi.ImageCache
// for the lifetime of the process. A render evicts the slide it read and the
// files it rewrote.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with
// code -32000 and the Go error string in data. Malformed requests use the
// standard JSON-RPC codes.
package server
