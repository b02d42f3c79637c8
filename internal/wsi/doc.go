// Package wsi provides access to whole-slide images at multiple resolution levels.
//
// A whole-slide image (WSI) is a very large microscopy scan of a tissue slide.
// Slides are stored as a pyramid: level 0 is full resolution and each level n
// is nominally downsampled by 2^n from level 0.
//
// # Slide Sources
//
// Two on-disk layouts are supported:
//   - A directory holding one file per level, named level_<n>.<ext>
//     (for example level_0.tif, level_2.png). Only the levels present can be loaded.
//   - A single image file treated as level 0. Any level n is synthesized by
//     area-downsampling the base image by 2^n.
//
// Supported formats are PNG, JPEG, GIF, TIFF and BMP.
//
// # Scale
//
// Every slide carries a Scale factor. Renderers resize level images by this
// factor before drawing, which lets a pyramid whose levels are not exact
// powers of two be normalized to the nominal 2^-n resolution.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use, and slides share one cache. Decoded
// images must be treated as read-only.
package wsi
