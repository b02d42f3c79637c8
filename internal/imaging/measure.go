package imaging

import (
	"fmt"
	"math"
)

// Point represents a 2D point
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DistanceResult contains measurement information. Pixel values are in the
// rendered image; Level0 values are in slide coordinates.
type DistanceResult struct {
	DistancePixels float64  `json:"distance_pixels"`
	DeltaX         int      `json:"delta_x"`
	DeltaY         int      `json:"delta_y"`
	AngleDegrees   float64  `json:"angle_degrees"`
	Level0Start    Point    `json:"level0_start"`
	Level0End      Point    `json:"level0_end"`
	DistanceLevel0 float64  `json:"distance_level0"`
	DistanceMicron *float64 `json:"distance_microns,omitempty"`
}

// MeasureDistance measures between two pixels of an image rendered at
// downsampling factor f. mpp is the slide's microns per level-0 pixel; zero
// omits the micron distance.
func MeasureDistance(p1, p2 Point, f, mpp float64) (*DistanceResult, error) {
	if f <= 0 {
		return nil, fmt.Errorf("level factor must be positive, got %g", f)
	}
	if mpp < 0 {
		return nil, fmt.Errorf("microns per pixel must not be negative, got %g", mpp)
	}

	deltaX := p2.X - p1.X
	deltaY := p2.Y - p1.Y
	distance := math.Hypot(float64(deltaX), float64(deltaY))

	// Calculate angle in degrees (0 = horizontal right, 90 = down)
	angle := math.Atan2(float64(deltaY), float64(deltaX)) * 180 / math.Pi

	level0 := distance / f
	result := &DistanceResult{
		DistancePixels: math.Round(distance*100) / 100,
		DeltaX:         deltaX,
		DeltaY:         deltaY,
		AngleDegrees:   math.Round(angle*10) / 10,
		Level0Start:    toLevel0(p1, f),
		Level0End:      toLevel0(p2, f),
		DistanceLevel0: math.Round(level0*100) / 100,
	}
	if mpp > 0 {
		microns := math.Round(level0*mpp*100) / 100
		result.DistanceMicron = &microns
	}
	return result, nil
}

func toLevel0(p Point, f float64) Point {
	x, y := ScalePoint(float64(p.X), float64(p.Y), 1/f)
	return Point{X: x, Y: y}
}
