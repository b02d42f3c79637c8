// Package imaging provides the image operations used to render cell overlays.
//
// The package resizes slide levels, draws label-colored markers onto a black
// mask, blends the mask over the base image, and offers inspection helpers
// (pixel sampling, cropping, coordinate grids, distance measurement) for
// checking rendered output. All operations work
// with standard Go image.Image types and use a coordinate system where (0,0)
// is at the top-left corner, X increases rightward, and Y increases downward.
//
// # Coordinate System
//
// Detections are stored in level-0 slide coordinates. A coordinate is mapped
// to a level-n pixel by multiplying with LevelFactor(n) = 1/2^n and rounding
// half to even (ScalePoint). Resized image dimensions are rounded the same way.
//
// GridOverlay and MeasureDistance go the other way: they take pixels of an
// image rendered at a level and report level-0 coordinates.
//
// For regions, (x1,y1) is inclusive (top-left) and (x2,y2) is exclusive
// (bottom-right).
//
// # Blending
//
// AddWeighted computes clamp(base*alpha + mask*beta) per channel. Because the
// mask is black wherever no marker was drawn, the base image is unchanged
// there when alpha is 1.
//
// # Thread Safety
//
// All functions are stateless and return new images; inputs are never modified.
package imaging
