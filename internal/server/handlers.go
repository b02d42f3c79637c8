package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/slide-overlay/internal/cells"
	"github.com/ironsheep/slide-overlay/internal/imaging"
	"github.com/ironsheep/slide-overlay/internal/palette"
	"github.com/ironsheep/slide-overlay/internal/store"
	"github.com/ironsheep/slide-overlay/internal/visualize"
	"github.com/ironsheep/slide-overlay/internal/wsi"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "overlay_render").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errNoLedger is returned by render_history when the server has no store.
var errNoLedger = errors.New("render ledger not configured")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		log.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "slide_levels":
		return s.handleSlideLevels(args)
	case "overlay_render":
		return s.handleOverlayRender(args)
	case "overlay_sample_color":
		return s.handleOverlaySampleColor(args)
	case "overlay_crop":
		return s.handleOverlayCrop(args)
	case "overlay_grid":
		return s.handleOverlayGrid(args)
	case "overlay_measure":
		return s.handleOverlayMeasure(args)
	case "render_history":
		return s.handleRenderHistory(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	mcpErr := &MCPError{
		Code:    code,
		Message: message,
	}
	if data != "" {
		mcpErr.Data = data
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   mcpErr,
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Slide Handlers ===

type slideLevelsArgs struct {
	Slide string `json:"slide"`
}

type slideLevelsResult struct {
	Slide  string          `json:"slide"`
	Scale  float64         `json:"scale"`
	Levels []wsi.LevelInfo `json:"levels"`
}

func (s *Server) handleSlideLevels(args json.RawMessage) (interface{}, error) {
	var a slideLevelsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Slide == "" {
		return nil, errors.New("slide is required")
	}

	slide, err := wsi.Open(a.Slide, wsi.Options{Cache: s.cache})
	if err != nil {
		return nil, err
	}

	lister, ok := slide.(wsi.LevelLister)
	if !ok {
		return nil, fmt.Errorf("slide %s cannot list its levels", slide.Name())
	}
	levels, err := lister.Levels()
	if err != nil {
		return nil, err
	}

	return &slideLevelsResult{Slide: slide.Name(), Scale: slide.Scale(), Levels: levels}, nil
}

// === Render Handlers ===

type overlayRenderArgs struct {
	Slide        string  `json:"slide"`
	Cells        string  `json:"cells"`
	OutputPath   string  `json:"output_path"`
	Level        *int    `json:"level,omitempty"`
	Name         string  `json:"name"`
	Scale        float64 `json:"scale"`
	WriteCellCSV *bool   `json:"write_cell_csv,omitempty"`
}

func (s *Server) handleOverlayRender(args json.RawMessage) (interface{}, error) {
	var a overlayRenderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Slide == "" || a.Cells == "" {
		return nil, errors.New("slide and cells are required")
	}

	level := s.level(a.Level)
	if a.OutputPath == "" {
		a.OutputPath = s.config.OutputPath
	}

	opts, err := visualize.OptionsFromConfig(s.config)
	if err != nil {
		return nil, err
	}
	if a.WriteCellCSV != nil {
		opts.WriteCellCSV = *a.WriteCellCSV
	}

	detections, err := cells.Load(a.Cells)
	if err != nil {
		return nil, err
	}

	slide, err := wsi.Open(a.Slide, wsi.Options{Name: a.Name, Scale: a.Scale, Cache: s.cache})
	if err != nil {
		return nil, err
	}
	// Rendered level images are not reused across calls.
	if r, ok := slide.(wsi.Releaser); ok {
		defer r.Release()
	}

	result, err := visualize.VisualizePrediction(slide, detections, a.OutputPath, level, opts)
	if err != nil {
		return nil, err
	}

	// Outputs are rewritten in place; drop any cached copy an earlier
	// sample or crop call may hold.
	s.cache.Evict(result.OverlayPath)
	s.cache.Evict(result.MaskPath)

	if s.store != nil {
		if _, err := s.store.RecordRender(result.Ledger()); err != nil {
			return nil, fmt.Errorf("failed to record render: %w", err)
		}
	}

	return result, nil
}

// === Inspection Handlers ===

type overlaySampleColorArgs struct {
	Path   string `json:"path"`
	Points []struct {
		X     int    `json:"x"`
		Y     int    `json:"y"`
		Label string `json:"label,omitempty"`
	} `json:"points"`
}

func (s *Server) handleOverlaySampleColor(args json.RawMessage) (interface{}, error) {
	var a overlaySampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	points := make([]imaging.LabeledPoint, len(a.Points))
	for i, p := range a.Points {
		points[i] = imaging.LabeledPoint{X: p.X, Y: p.Y, Label: p.Label}
	}
	return imaging.SampleColorsMulti(img, points)
}

type overlayCropArgs struct {
	Path   string  `json:"path"`
	X1     int     `json:"x1"`
	Y1     int     `json:"y1"`
	X2     int     `json:"x2"`
	Y2     int     `json:"y2"`
	X      *int    `json:"x,omitempty"`
	Y      *int    `json:"y,omitempty"`
	Radius int     `json:"radius"`
	Scale  float64 `json:"scale"`
}

func (s *Server) handleOverlayCrop(args json.RawMessage) (interface{}, error) {
	var a overlayCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	if a.X != nil || a.Y != nil {
		if a.X == nil || a.Y == nil {
			return nil, errors.New("x and y must be given together")
		}
		return imaging.CropAround(img, *a.X, *a.Y, a.Radius, a.Scale)
	}
	return imaging.Crop(img, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
}

// defaultGridSpacing is the grid spacing in level-0 pixels.
const defaultGridSpacing = 1000

type overlayGridArgs struct {
	Path            string `json:"path"`
	Level           *int   `json:"level,omitempty"`
	Spacing         int    `json:"spacing"`
	ShowCoordinates *bool  `json:"show_coordinates,omitempty"`
	Color           string `json:"color"`
}

func (s *Server) handleOverlayGrid(args json.RawMessage) (interface{}, error) {
	var a overlayGridArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Spacing == 0 {
		a.Spacing = defaultGridSpacing
	}
	showCoordinates := true
	if a.ShowCoordinates != nil {
		showCoordinates = *a.ShowCoordinates
	}
	lineColor := imaging.DefaultGridColor
	if a.Color != "" {
		c, err := palette.ParseHex(a.Color)
		if err != nil {
			return nil, err
		}
		lineColor = c
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.GridOverlay(img, a.Spacing, imaging.LevelFactor(s.level(a.Level)), showCoordinates, lineColor)
}

type overlayMeasureArgs struct {
	X1    int      `json:"x1"`
	Y1    int      `json:"y1"`
	X2    int      `json:"x2"`
	Y2    int      `json:"y2"`
	Level *int     `json:"level,omitempty"`
	MPP   *float64 `json:"mpp,omitempty"`
}

func (s *Server) handleOverlayMeasure(args json.RawMessage) (interface{}, error) {
	var a overlayMeasureArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	mpp := s.config.MicronsPerPixel
	if a.MPP != nil {
		mpp = *a.MPP
	}
	return imaging.MeasureDistance(
		imaging.Point{X: a.X1, Y: a.Y1},
		imaging.Point{X: a.X2, Y: a.Y2},
		imaging.LevelFactor(s.level(a.Level)),
		mpp,
	)
}

// level returns the requested level, or the configured one when unset.
func (s *Server) level(requested *int) int {
	if requested != nil {
		return *requested
	}
	return s.config.Level
}

// === History Handlers ===

type renderHistoryArgs struct {
	Slide string `json:"slide"`
}

type renderHistoryResult struct {
	Renders []store.Render `json:"renders"`
}

func (s *Server) handleRenderHistory(args json.RawMessage) (interface{}, error) {
	var a renderHistoryArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		return nil, errNoLedger
	}

	var renders []store.Render
	var err error
	if a.Slide != "" {
		renders, err = s.store.RendersForSlide(a.Slide)
	} else {
		renders, err = s.store.ListRenders()
	}
	if err != nil {
		return nil, err
	}
	if renders == nil {
		renders = []store.Render{}
	}
	return &renderHistoryResult{Renders: renders}, nil
}
