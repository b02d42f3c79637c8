package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createInMemoryImage creates a solid-color test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with a different color in each quadrant:
// red top-left, green top-right, blue bottom-left, white bottom-right.
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSampleColor(t *testing.T) {
	tests := []struct {
		name    string
		color   color.RGBA
		wantHex string
	}{
		{"tissue pink", color.RGBA{230, 180, 200, 255}, "#E6B4C8"},
		{"pure red", color.RGBA{255, 0, 0, 255}, "#FF0000"},
		{"pure green", color.RGBA{0, 255, 0, 255}, "#00FF00"},
		{"black", color.RGBA{0, 0, 0, 255}, "#000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createInMemoryImage(10, 10, tt.color)
			result, err := SampleColor(img, 5, 5)
			if err != nil {
				t.Fatalf("SampleColor failed: %v", err)
			}
			if result.Hex != tt.wantHex {
				t.Errorf("Hex: got %s, want %s", result.Hex, tt.wantHex)
			}
			if result.RGBA.A != 255 {
				t.Errorf("alpha: got %d, want 255", result.RGBA.A)
			}
			if result.RGB.R != tt.color.R || result.RGB.G != tt.color.G || result.RGB.B != tt.color.B {
				t.Errorf("RGB: got %+v, want %v", result.RGB, tt.color)
			}
		})
	}
}

func TestSampleColor_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	for _, p := range []image.Point{{-1, 0}, {0, -1}, {100, 0}, {0, 100}} {
		if _, err := SampleColor(img, p.X, p.Y); err == nil {
			t.Errorf("SampleColor(%d,%d) should fail", p.X, p.Y)
		}
	}
}

func TestSampleColorsMulti(t *testing.T) {
	img := createPatternImage(100, 100)

	points := []LabeledPoint{
		{X: 25, Y: 25, Label: "red"},
		{X: 75, Y: 25, Label: "green"},
		{X: 25, Y: 75, Label: "blue"},
		{X: 75, Y: 75, Label: "white"},
	}

	samples, err := SampleColorsMulti(img, points)
	if err != nil {
		t.Fatalf("SampleColorsMulti failed: %v", err)
	}
	if len(samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(samples))
	}

	expectedHex := []string{"#FF0000", "#00FF00", "#0000FF", "#FFFFFF"}
	for i, s := range samples {
		if s.Label != points[i].Label {
			t.Errorf("sample %d label: got %s, want %s", i, s.Label, points[i].Label)
		}
		if s.Color.Hex != expectedHex[i] {
			t.Errorf("sample %d (%s) hex: got %s, want %s", i, s.Label, s.Color.Hex, expectedHex[i])
		}
	}
}

func TestSampleColorsMulti_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	points := []LabeledPoint{{X: 50, Y: 50}, {X: 200, Y: 50}}
	if _, err := SampleColorsMulti(img, points); err == nil {
		t.Error("SampleColorsMulti should fail when any point is out of bounds")
	}
}

func TestRgbToHSL(t *testing.T) {
	tests := []struct {
		name                string
		r, g, b             uint8
		wantH, wantS, wantL int
	}{
		{"red", 255, 0, 0, 0, 100, 50},
		{"green", 0, 255, 0, 120, 100, 50},
		{"blue", 0, 0, 255, 240, 100, 50},
		{"white", 255, 255, 255, 0, 0, 100},
		{"black", 0, 0, 0, 0, 0, 0},
		{"gray", 128, 128, 128, 0, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hsl := rgbToHSL(tt.r, tt.g, tt.b)

			// Allow some tolerance for rounding
			if absInt(hsl.H-tt.wantH) > 1 {
				t.Errorf("H: got %d, want %d", hsl.H, tt.wantH)
			}
			if absInt(hsl.S-tt.wantS) > 1 {
				t.Errorf("S: got %d, want %d", hsl.S, tt.wantS)
			}
			if absInt(hsl.L-tt.wantL) > 1 {
				t.Errorf("L: got %d, want %d", hsl.L, tt.wantL)
			}
		})
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
