package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/fcolor"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Default rendering parameters.
const (
	DefaultMarkerRadius = 3.0
	DefaultBaseWeight   = 1.0
	DefaultMaskWeight   = 0.3
)

// Marker is a filled circle to draw on a mask, in mask pixel coordinates.
type Marker struct {
	X     int
	Y     int
	Color color.NRGBA
}

// LevelFactor returns the coordinate factor for a pyramid level: 1 / 2^level.
func LevelFactor(level int) float64 {
	return 1 / math.Pow(2, float64(level))
}

// ScalePoint maps a level-0 coordinate to pixel coordinates at factor f.
// Halves round to even.
func ScalePoint(x, y, f float64) (int, int) {
	return int(math.RoundToEven(x * f)), int(math.RoundToEven(y * f))
}

// ScaledSize returns the dimensions of a w x h image resized by f. Each side
// is rounded and is at least one pixel.
func ScaledSize(w, h int, f float64) (int, int) {
	sw := int(math.RoundToEven(float64(w) * f))
	sh := int(math.RoundToEven(float64(h) * f))
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	return sw, sh
}

// ResizeByFactor resizes img by f using area averaging (box filter). A factor
// of exactly 1 returns a copy. The result always has its origin at (0,0).
func ResizeByFactor(img image.Image, f float64) *image.NRGBA {
	if f == 1 {
		return imaging.Clone(img)
	}
	b := img.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), f)
	return imaging.Resize(img, w, h, imaging.Box)
}

// DrawMarkers returns a black w x h mask with a solid disc of the given radius
// for every marker. A pixel belongs to the disc when its offset (dx, dy) from
// the center satisfies dx*dx+dy*dy <= radius*radius, so the mask only holds
// black and marker colors. Markers partly or fully outside the mask are
// clipped. A radius below 1 paints a single pixel.
func DrawMarkers(w, h int, markers []Marker, radius float64) *image.RGBA {
	dc := gg.NewContext(w, h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	r := int(math.Floor(radius))
	r2 := radius * radius

	for _, m := range markers {
		dc.SetColor(m.Color)
		if radius < 1 {
			dc.SetPixel(m.X, m.Y)
			continue
		}
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if float64(dx*dx+dy*dy) <= r2 {
					dc.SetPixel(m.X+dx, m.Y+dy)
				}
			}
		}
	}

	return dc.Image().(*image.RGBA)
}

// AddWeighted blends two images of the same size channel by channel:
//
//	dst = clamp(round(base*alpha + mask*beta))
//
// Channels are weighted on the 0-255 scale and halves round to even. The
// result is opaque. If the sizes differ, the overlapping top-left area is used.
func AddWeighted(base, mask image.Image, alpha, beta float64) *image.RGBA {
	return blend.Blend(base, mask, func(b, m fcolor.RGBAF64) fcolor.RGBAF64 {
		return fcolor.RGBAF64{
			R: weighted8(b.R, m.R, alpha, beta),
			G: weighted8(b.G, m.G, alpha, beta),
			B: weighted8(b.B, m.B, alpha, beta),
			A: 1,
		}
	})
}

// weighted8 returns the rounded weighted sum of two channels as the value
// Blend truncates back to exactly that 8-bit level.
func weighted8(b, m, alpha, beta float64) float64 {
	v := math.Round(b*255)*alpha + math.Round(m*255)*beta
	v = math.RoundToEven(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 1
	}
	return (v + 0.5) / 255
}
