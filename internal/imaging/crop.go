package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// CropResult contains the cropped image data
type CropResult struct {
	X1          int    `json:"x1"`
	Y1          int    `json:"y1"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from an image as a base64 PNG.
// A scale other than 1 resizes the crop with Lanczos, which keeps marker edges sharp when zooming in.
func Crop(img image.Image, x1, y1, x2, y2 int, scale float64) (*CropResult, error) {
	bounds := img.Bounds()

	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))

	if scale != 1.0 && scale > 0 {
		newWidth, newHeight := ScaledSize(cropped.Bounds().Dx(), cropped.Bounds().Dy(), scale)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		X1:          x1,
		Y1:          y1,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// CropAround crops a square of side 2*radius+1 centered on (x, y), clipped to the image.
// Useful for inspecting a single cell marker.
func CropAround(img image.Image, x, y, radius int, scale float64) (*CropResult, error) {
	if radius < 0 {
		return nil, fmt.Errorf("radius must not be negative, got %d", radius)
	}
	bounds := img.Bounds()
	r := image.Rect(x-radius, y-radius, x+radius+1, y+radius+1).Intersect(bounds)
	if r.Empty() {
		return nil, fmt.Errorf("point (%d,%d) outside image bounds", x, y)
	}
	return Crop(img, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, scale)
}
