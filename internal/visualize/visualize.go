// Package visualize renders detected cells over a downsampled whole-slide image.
package visualize

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/slide-overlay/internal/cells"
	"github.com/ironsheep/slide-overlay/internal/config"
	ovl "github.com/ironsheep/slide-overlay/internal/imaging"
	"github.com/ironsheep/slide-overlay/internal/palette"
	"github.com/ironsheep/slide-overlay/internal/store"
	"github.com/ironsheep/slide-overlay/internal/wsi"
)

// Output subdirectories created under the output path.
const (
	OverlaysDir = "overlays"
	MasksDir    = "masks"
	CellCSVsDir = "cell_csvs"
)

// DefaultJPEGQuality matches the usual encoder default for slide thumbnails.
const DefaultJPEGQuality = 95

// Options tunes rendering. The zero value renders with defaults and the
// built-in palette.
type Options struct {
	Palette      *palette.Palette
	MarkerRadius float64 // Marker radius in output pixels, default 3
	MaskWeight   float64 // Weight of the marker mask in the blend, default 0.3
	JPEGQuality  int     // 1-100, default 95
	WriteCellCSV bool    // Also write the detections to cell_csvs/<name>.csv
}

func (o Options) withDefaults() Options {
	if o.Palette == nil {
		o.Palette = palette.Default()
	}
	if o.MarkerRadius == 0 {
		o.MarkerRadius = ovl.DefaultMarkerRadius
	}
	if o.MaskWeight == 0 {
		o.MaskWeight = ovl.DefaultMaskWeight
	}
	if o.JPEGQuality == 0 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	return o
}

// OptionsFromConfig builds render options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	pal := palette.Default()
	if len(cfg.Palette) > 0 {
		var err error
		if pal, err = palette.FromHex(cfg.Palette); err != nil {
			return Options{}, err
		}
	}
	return Options{
		Palette:      pal.WithAutoColor(cfg.AutoColor),
		MarkerRadius: cfg.MarkerRadius,
		MaskWeight:   cfg.MaskWeight,
		JPEGQuality:  cfg.JPEGQuality,
		WriteCellCSV: cfg.WriteCellCSV,
	}, nil
}

// Result describes the files written by VisualizePrediction.
type Result struct {
	Slide       string      `json:"slide"`
	Level       int         `json:"level"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Cells       int         `json:"cells"`
	Counts      map[int]int `json:"counts"`
	OverlayPath string      `json:"overlay_path"`
	MaskPath    string      `json:"mask_path"`
	CellCSVPath string      `json:"cell_csv_path,omitempty"`
}

// Summary converts the result into a workbook row.
func (r *Result) Summary() cells.Summary {
	return cells.Summary{
		Slide:  r.Slide,
		Level:  r.Level,
		Width:  r.Width,
		Height: r.Height,
		Counts: r.Counts,
	}
}

// Ledger converts the result into a render ledger row.
func (r *Result) Ledger() store.Render {
	return store.Render{
		Slide:       r.Slide,
		Level:       r.Level,
		Width:       r.Width,
		Height:      r.Height,
		Cells:       r.Cells,
		OverlayPath: r.OverlayPath,
		MaskPath:    r.MaskPath,
		CellCSVPath: r.CellCSVPath,
	}
}

// Rendered holds the in-memory images produced for one slide.
type Rendered struct {
	Base    image.Image
	Mask    *image.RGBA
	Overlay *image.RGBA
}

// Render loads the slide at level, resizes it by the slide's scale, draws one
// marker per cell and blends the mask over the base image. Cell coordinates
// are level-0 coordinates and are mapped with 1/2^level.
func Render(slide wsi.Slide, detections []cells.Cell, level int, opts Options) (*Rendered, error) {
	opts = opts.withDefaults()

	img, err := slide.Level(level)
	if err != nil {
		return nil, fmt.Errorf("failed to load slide %s at level %d: %w", slide.Name(), level, err)
	}

	f := ovl.LevelFactor(level)
	base := ovl.ResizeByFactor(img, slide.Scale())
	w, h := base.Bounds().Dx(), base.Bounds().Dy()

	markers := make([]ovl.Marker, 0, len(detections))
	for _, c := range detections {
		col, err := opts.Palette.Color(c.Label)
		if err != nil {
			return nil, fmt.Errorf("slide %s: %w", slide.Name(), err)
		}
		x, y := ovl.ScalePoint(c.X, c.Y, f)
		markers = append(markers, ovl.Marker{X: x, Y: y, Color: col})
	}

	log.Debug().
		Str("slide", slide.Name()).
		Int("level", level).
		Float64("scale", slide.Scale()).
		Int("width", w).
		Int("height", h).
		Int("markers", len(markers)).
		Msg("drawing cell markers")

	mask := ovl.DrawMarkers(w, h, markers, opts.MarkerRadius)
	overlay := ovl.AddWeighted(base, mask, ovl.DefaultBaseWeight, opts.MaskWeight)

	return &Rendered{Base: base, Mask: mask, Overlay: overlay}, nil
}

// VisualizePrediction renders the overlay and mask for a slide and writes
//
//	<outputPath>/overlays/<name>.jpg
//	<outputPath>/masks/<name>.jpg
//
// The cell_csvs directory is always created; cell_csvs/<name>.csv is written
// only when opts.WriteCellCSV is set.
func VisualizePrediction(slide wsi.Slide, detections []cells.Cell, outputPath string, level int, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	rendered, err := Render(slide, detections, level, opts)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{OverlaysDir, MasksDir, CellCSVsDir} {
		if err := os.MkdirAll(filepath.Join(outputPath, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	name := slide.Name()
	result := &Result{
		Slide:       name,
		Level:       level,
		Width:       rendered.Overlay.Bounds().Dx(),
		Height:      rendered.Overlay.Bounds().Dy(),
		Cells:       len(detections),
		Counts:      cells.CountByLabel(detections),
		OverlayPath: filepath.Join(outputPath, OverlaysDir, name+".jpg"),
		MaskPath:    filepath.Join(outputPath, MasksDir, name+".jpg"),
	}

	if err := imaging.Save(rendered.Overlay, result.OverlayPath, imaging.JPEGQuality(opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to write overlay: %w", err)
	}
	if err := imaging.Save(rendered.Mask, result.MaskPath, imaging.JPEGQuality(opts.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to write mask: %w", err)
	}

	if opts.WriteCellCSV {
		result.CellCSVPath = filepath.Join(outputPath, CellCSVsDir, name+".csv")
		if err := cells.WriteCSV(result.CellCSVPath, detections); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("slide", name).
		Int("level", level).
		Int("cells", result.Cells).
		Str("overlay", result.OverlayPath).
		Msg("overlay written")

	return result, nil
}
