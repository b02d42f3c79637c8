package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/slide-overlay/internal/config"
	"github.com/ironsheep/slide-overlay/internal/imaging"
	"github.com/ironsheep/slide-overlay/internal/store"
	"github.com/ironsheep/slide-overlay/internal/visualize"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, dir, name string, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func writeCellsFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "cells.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write cells: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, withStore bool) (*Server, string) {
	t.Helper()

	out := t.TempDir()
	cfg := config.Default()
	cfg.OutputPath = out

	var st store.Store
	if withStore {
		var err error
		st, err = store.New("sqlite", ":memory:")
		if err != nil {
			t.Fatalf("store.New error: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
	}
	return New(cfg, st), out
}

// callTool sends a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	paramsJSON, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeContent unmarshals the text content of a successful tool response into v.
func decodeContent(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode tool result %q: %v", text, err)
	}
}

func TestHandleToolsCall_SlideLevels(t *testing.T) {
	s, _ := newTestServer(t, false)
	slidePath := createTestImageFile(t, t.TempDir(), "case-01.png", 64, 32, color.RGBA{200, 200, 200, 255})

	var got slideLevelsResult
	decodeContent(t, callTool(t, s, "slide_levels", map[string]interface{}{"slide": slidePath}), &got)

	if got.Slide != "case-01" {
		t.Errorf("Slide: got %s, want case-01", got.Slide)
	}
	if got.Scale != 1.0 {
		t.Errorf("Scale: got %v, want 1.0", got.Scale)
	}
	if len(got.Levels) != 6 {
		t.Fatalf("expected 6 levels, got %d: %+v", len(got.Levels), got.Levels)
	}
	last := got.Levels[5]
	if last.Width != 2 || last.Height != 1 {
		t.Errorf("level 5: got %dx%d, want 2x1", last.Width, last.Height)
	}
}

func TestHandleToolsCall_SlideLevels_Missing(t *testing.T) {
	s, _ := newTestServer(t, false)

	resp := callTool(t, s, "slide_levels", map[string]interface{}{"slide": "/nonexistent/slide"})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool error, got %+v", resp)
	}

	resp = callTool(t, s, "slide_levels", map[string]interface{}{})
	if resp.Error == nil {
		t.Fatal("expected error for missing slide")
	}
}

func TestHandleToolsCall_OverlayRender(t *testing.T) {
	s, out := newTestServer(t, true)
	dir := t.TempDir()
	slidePath := createTestImageFile(t, dir, "case-01.png", 40, 40, color.RGBA{100, 100, 100, 255})
	cellsPath := writeCellsFile(t, dir, "x,y,label\n10,10,2\n30,30,1\n")

	var got visualize.Result
	decodeContent(t, callTool(t, s, "overlay_render", map[string]interface{}{
		"slide":          slidePath,
		"cells":          cellsPath,
		"write_cell_csv": true,
	}), &got)

	if got.Slide != "case-01" || got.Cells != 2 || got.Width != 40 || got.Height != 40 {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.Counts[1] != 1 || got.Counts[2] != 1 {
		t.Errorf("Counts: got %v", got.Counts)
	}
	wantOverlay := filepath.Join(out, visualize.OverlaysDir, "case-01.jpg")
	if got.OverlayPath != wantOverlay {
		t.Errorf("OverlayPath: got %s, want %s", got.OverlayPath, wantOverlay)
	}
	for _, p := range []string{got.OverlayPath, got.MaskPath, got.CellCSVPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected output %s: %v", p, err)
		}
	}

	// The mask's marker center keeps the tumor color through JPEG encoding.
	var samples []imaging.LabeledColorResult
	decodeContent(t, callTool(t, s, "overlay_sample_color", map[string]interface{}{
		"path":   got.MaskPath,
		"points": []map[string]interface{}{{"x": 10, "y": 10, "label": "tumor"}},
	}), &samples)
	if len(samples) != 1 || samples[0].Label != "tumor" {
		t.Fatalf("unexpected samples: %+v", samples)
	}
	if c := samples[0].Color.RGB; c.R < 180 || c.G > 80 || c.B > 80 {
		t.Errorf("marker center: got %+v, want red", c)
	}

	// The render is recorded in the ledger.
	var history renderHistoryResult
	decodeContent(t, callTool(t, s, "render_history", map[string]interface{}{"slide": "case-01"}), &history)
	if len(history.Renders) != 1 {
		t.Fatalf("expected 1 recorded render, got %d", len(history.Renders))
	}
	if r := history.Renders[0]; r.Cells != 2 || r.MaskPath != got.MaskPath {
		t.Errorf("unexpected ledger row: %+v", r)
	}
}

func TestHandleToolsCall_OverlayRender_Options(t *testing.T) {
	s, _ := newTestServer(t, false)
	dir := t.TempDir()
	slidePath := createTestImageFile(t, dir, "base.png", 40, 20, color.White)
	cellsPath := writeCellsFile(t, dir, "x,y,label\n8,8,1\n")
	out := filepath.Join(dir, "elsewhere")

	var got visualize.Result
	decodeContent(t, callTool(t, s, "overlay_render", map[string]interface{}{
		"slide":       slidePath,
		"cells":       cellsPath,
		"output_path": out,
		"level":       1,
		"name":        "renamed",
		"scale":       0.5,
	}), &got)

	if got.Slide != "renamed" || got.Level != 1 {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.Width != 10 || got.Height != 5 {
		t.Errorf("size: got %dx%d, want 10x5", got.Width, got.Height)
	}
	if !strings.HasPrefix(got.OverlayPath, out) {
		t.Errorf("OverlayPath %s not under %s", got.OverlayPath, out)
	}
	if got.CellCSVPath != "" {
		t.Errorf("cell CSV written without write_cell_csv: %s", got.CellCSVPath)
	}
}

func TestHandleToolsCall_OverlayRender_UnknownLabel(t *testing.T) {
	s, _ := newTestServer(t, false)
	dir := t.TempDir()
	slidePath := createTestImageFile(t, dir, "s.png", 20, 20, color.White)
	cellsPath := writeCellsFile(t, dir, "x,y,label\n5,5,7\n")

	resp := callTool(t, s, "overlay_render", map[string]interface{}{"slide": slidePath, "cells": cellsPath})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool error for unknown label, got %+v", resp)
	}

	s.config.AutoColor = true
	var got visualize.Result
	decodeContent(t, callTool(t, s, "overlay_render", map[string]interface{}{"slide": slidePath, "cells": cellsPath}), &got)
	if got.Counts[7] != 1 {
		t.Errorf("Counts: got %v", got.Counts)
	}
}

func TestHandleToolsCall_OverlayCrop(t *testing.T) {
	s, _ := newTestServer(t, false)
	imgPath := createTestImageFile(t, t.TempDir(), "overlay.png", 50, 40, color.RGBA{0, 255, 0, 255})

	var rect imaging.CropResult
	decodeContent(t, callTool(t, s, "overlay_crop", map[string]interface{}{
		"path": imgPath, "x1": 10, "y1": 5, "x2": 30, "y2": 25, "scale": 2.0,
	}), &rect)
	if rect.Width != 40 || rect.Height != 40 || rect.ImageBase64 == "" {
		t.Errorf("unexpected crop: %dx%d", rect.Width, rect.Height)
	}

	var around imaging.CropResult
	decodeContent(t, callTool(t, s, "overlay_crop", map[string]interface{}{
		"path": imgPath, "x": 0, "y": 0, "radius": 3,
	}), &around)
	if around.X1 != 0 || around.Y1 != 0 || around.Width != 4 || around.Height != 4 {
		t.Errorf("unexpected crop around corner: %+v", around)
	}

	resp := callTool(t, s, "overlay_crop", map[string]interface{}{"path": imgPath, "x": 5, "radius": 3})
	if resp.Error == nil {
		t.Error("expected error when only x is given")
	}

	resp = callTool(t, s, "overlay_crop", map[string]interface{}{
		"path": imgPath, "x1": 0, "y1": 0, "x2": 100, "y2": 10,
	})
	if resp.Error == nil {
		t.Error("expected error for crop outside bounds")
	}
}

func TestHandleToolsCall_OverlayGrid(t *testing.T) {
	s, _ := newTestServer(t, false)
	imgPath := createTestImageFile(t, t.TempDir(), "overlay.png", 60, 40, color.Black)

	var got imaging.GridOverlayResult
	decodeContent(t, callTool(t, s, "overlay_grid", map[string]interface{}{
		"path":             imgPath,
		"level":            1,
		"spacing":          40,
		"show_coordinates": false,
		"color":            "#00ffff",
	}), &got)

	// 40 level-0 pixels are 20 image pixels at level 1: x=20,40 and y=20.
	if got.PixelStep != 20 || got.Lines != 3 {
		t.Errorf("unexpected grid: step %v, lines %d", got.PixelStep, got.Lines)
	}

	resp := callTool(t, s, "overlay_grid", map[string]interface{}{"path": imgPath, "color": "teal"})
	if resp.Error == nil {
		t.Error("expected error for invalid color")
	}

	// The default spacing of 1000 level-0 pixels leaves no line in a small image.
	decodeContent(t, callTool(t, s, "overlay_grid", map[string]interface{}{"path": imgPath}), &got)
	if got.GridSpacing != defaultGridSpacing || got.Lines != 0 {
		t.Errorf("unexpected default grid: spacing %d, lines %d", got.GridSpacing, got.Lines)
	}
}

func TestHandleToolsCall_OverlayMeasure(t *testing.T) {
	s, _ := newTestServer(t, false)
	s.config.MicronsPerPixel = 0.5

	var got imaging.DistanceResult
	decodeContent(t, callTool(t, s, "overlay_measure", map[string]interface{}{
		"x1": 0, "y1": 0, "x2": 3, "y2": 4, "level": 2,
	}), &got)

	if got.DistancePixels != 5 || got.DistanceLevel0 != 20 {
		t.Errorf("distances: got %v px, %v level-0", got.DistancePixels, got.DistanceLevel0)
	}
	if got.DistanceMicron == nil || *got.DistanceMicron != 10 {
		t.Errorf("DistanceMicron: got %v, want 10", got.DistanceMicron)
	}

	decodeContent(t, callTool(t, s, "overlay_measure", map[string]interface{}{
		"x1": 0, "y1": 0, "x2": 3, "y2": 4, "mpp": 0,
	}), &got)
	if got.DistanceLevel0 != 5 {
		t.Errorf("configured level 0: got %v level-0 distance, want 5", got.DistanceLevel0)
	}
}

func TestHandleToolsCall_SampleColor_OutOfBounds(t *testing.T) {
	s, _ := newTestServer(t, false)
	imgPath := createTestImageFile(t, t.TempDir(), "mask.png", 10, 10, color.Black)

	resp := callTool(t, s, "overlay_sample_color", map[string]interface{}{
		"path":   imgPath,
		"points": []map[string]interface{}{{"x": 1, "y": 1}, {"x": 10, "y": 0}},
	})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool error, got %+v", resp)
	}
}

func TestHandleToolsCall_RenderHistory(t *testing.T) {
	s, _ := newTestServer(t, true)

	var empty renderHistoryResult
	decodeContent(t, callTool(t, s, "render_history", map[string]interface{}{}), &empty)
	if empty.Renders == nil || len(empty.Renders) != 0 {
		t.Errorf("expected empty renders, got %+v", empty.Renders)
	}

	for _, slide := range []string{"a", "b"} {
		if _, err := s.store.RecordRender(store.Render{Slide: slide, OverlayPath: "o", MaskPath: "m"}); err != nil {
			t.Fatalf("RecordRender error: %v", err)
		}
	}

	var all renderHistoryResult
	decodeContent(t, callTool(t, s, "render_history", nil), &all)
	if len(all.Renders) != 2 {
		t.Errorf("expected 2 renders, got %d", len(all.Renders))
	}
}

func TestHandleToolsCall_RenderHistory_NoStore(t *testing.T) {
	s, _ := newTestServer(t, false)

	resp := callTool(t, s, "render_history", map[string]interface{}{})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool error, got %+v", resp)
	}
	if resp.Error.Data != errNoLedger.Error() {
		t.Errorf("Data: got %v, want %q", resp.Error.Data, errNoLedger.Error())
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s, _ := newTestServer(t, false)

	resp := callTool(t, s, "image_ocr_full", map[string]interface{}{})
	if resp.Error == nil {
		t.Fatal("expected error for unknown tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t, false)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s, _ := newTestServer(t, false)

	for _, name := range []string{"slide_levels", "overlay_render", "overlay_sample_color", "overlay_crop", "overlay_grid", "overlay_measure", "render_history"} {
		if _, err := s.executeTool(name, json.RawMessage(`{invalid`)); err == nil {
			t.Errorf("%s: expected error for invalid JSON", name)
		}
	}
}
