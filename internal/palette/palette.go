// Package palette maps cell labels to the colors their markers are drawn with.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrUnknownLabel is returned by Color when a label has no configured color
// and auto-coloring is disabled.
var ErrUnknownLabel = errors.New("unknown cell label")

// Label values used by the default palette.
const (
	LabelBackground = 1
	LabelTumor      = 2
)

// goldenAngle spreads generated hues so consecutive labels stay distinct.
const goldenAngle = 137.50776405003785

// Palette is a label to color lookup. The zero value is an empty, strict palette.
//
// Palette is safe for concurrent use; auto-generated colors are remembered so a
// label keeps its color for the palette's lifetime.
type Palette struct {
	mu     sync.Mutex
	colors map[int]color.NRGBA
	auto   bool
}

// Default returns the built-in mapping: background cells green, tumor cells red.
func Default() *Palette {
	return New(map[int]color.NRGBA{
		LabelBackground: {R: 0, G: 255, B: 0, A: 255},
		LabelTumor:      {R: 255, G: 0, B: 0, A: 255},
	})
}

// New creates a palette from explicit colors. Alpha is forced to opaque.
func New(colors map[int]color.NRGBA) *Palette {
	p := &Palette{colors: make(map[int]color.NRGBA, len(colors))}
	for label, c := range colors {
		c.A = 255
		p.colors[label] = c
	}
	return p
}

// FromHex builds a palette from "#RRGGBB" strings keyed by label.
func FromHex(hex map[int]string) (*Palette, error) {
	colors := make(map[int]color.NRGBA, len(hex))
	for label, h := range hex {
		c, err := ParseHex(h)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", label, err)
		}
		colors[label] = c
	}
	return New(colors), nil
}

// ParseHex parses a "#RRGGBB" (or "#RGB") string into an opaque color.
func ParseHex(s string) (color.NRGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// WithAutoColor enables generating a color for labels that were not configured.
func (p *Palette) WithAutoColor(enabled bool) *Palette {
	p.mu.Lock()
	p.auto = enabled
	p.mu.Unlock()
	return p
}

// Color returns the color for label.
func (p *Palette) Color(label int) (color.NRGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.colors[label]; ok {
		return c, nil
	}
	if !p.auto {
		return color.NRGBA{}, fmt.Errorf("%w: %d", ErrUnknownLabel, label)
	}

	if p.colors == nil {
		p.colors = make(map[int]color.NRGBA)
	}
	c := generated(label)
	p.colors[label] = c
	return c, nil
}

// Labels returns the labels with a known color, in ascending order.
func (p *Palette) Labels() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	labels := make([]int, 0, len(p.colors))
	for label := range p.colors {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

// Hex returns the "#RRGGBB" form of a label's color.
func (p *Palette) Hex(label int) (string, error) {
	c, err := p.Color(label)
	if err != nil {
		return "", err
	}
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex(), nil
}

// generated derives a stable, saturated color from the label value alone.
func generated(label int) color.NRGBA {
	hue := math.Mod(float64(label)*goldenAngle, 360)
	if hue < 0 {
		hue += 360
	}
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
