package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func integerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Slide Information
		{
			Name:        "slide_levels",
			Description: "List the resolution levels of a whole-slide image with their dimensions. Accepts a slide directory of level_<n> images or a single image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slide": pathProperty("Absolute path to the slide directory or image file"),
				},
				"required": []string{"slide"},
			},
		},

		// Rendering
		{
			Name:        "overlay_render",
			Description: "Draw detected cells onto a slide level and write overlays/<name>.jpg and masks/<name>.jpg under the output directory. Cell coordinates are level-0 coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slide":       pathProperty("Absolute path to the slide directory or image file"),
					"cells":       pathProperty("Absolute path to a .csv (x,y,label[,score]) or .json detections file"),
					"output_path": pathProperty("Output directory. Defaults to the configured outputPath"),
					"level":       integerProperty("Resolution level to render. Defaults to the configured level"),
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Output file stem. Defaults to the slide's base name",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Resize factor applied to the level image. Default 1.0",
						"default":     1.0,
					},
					"write_cell_csv": map[string]interface{}{
						"type":        "boolean",
						"description": "Also write cell_csvs/<name>.csv",
					},
				},
				"required": []string{"slide", "cells"},
			},
		},

		// Inspection
		{
			Name:        "overlay_sample_color",
			Description: "Get the color at one or more pixels of a rendered overlay or mask, e.g. to confirm a marker's label color.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the rendered image"),
					"points": map[string]interface{}{
						"type":        "array",
						"description": "Pixels to sample",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x":     map[string]interface{}{"type": "integer"},
								"y":     map[string]interface{}{"type": "integer"},
								"label": map[string]interface{}{"type": "string"},
							},
							"required": []string{"x", "y"},
						},
					},
				},
				"required": []string{"path", "points"},
			},
		},
		{
			Name:        "overlay_crop",
			Description: "Crop a region of a rendered overlay or mask and return it as base64-encoded PNG. Give x1,y1,x2,y2 for a rectangle, or x,y,radius to zoom on one cell.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty("Absolute path to the rendered image"),
					"x1":     integerProperty("Left edge X coordinate (0-based)"),
					"y1":     integerProperty("Top edge Y coordinate (0-based)"),
					"x2":     integerProperty("Right edge X coordinate (exclusive)"),
					"y2":     integerProperty("Bottom edge Y coordinate (exclusive)"),
					"x":      integerProperty("Center X coordinate when cropping around a point"),
					"y":      integerProperty("Center Y coordinate when cropping around a point"),
					"radius": integerProperty("Half-size of the square around (x,y)"),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 4.0 to enlarge a marker). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},

		{
			Name:        "overlay_grid",
			Description: "Draw a coordinate grid on a rendered overlay or mask. Spacing and labels are in level-0 slide coordinates, the same units as the detections file. Returns base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":  pathProperty("Absolute path to the rendered image"),
					"level": integerProperty("Level the image was rendered at. Defaults to the configured level"),
					"spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Level-0 pixels between grid lines. Default 1000",
						"default":     1000,
					},
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Label each intersection with its level-0 coordinates. Default true",
						"default":     true,
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color as hex. Default #ffff00",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "overlay_measure",
			Description: "Measure the distance between two pixels of an image rendered at a level, in image pixels, level-0 pixels and, when microns per pixel is known, microns.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x1":    integerProperty("First point X coordinate"),
					"y1":    integerProperty("First point Y coordinate"),
					"x2":    integerProperty("Second point X coordinate"),
					"y2":    integerProperty("Second point Y coordinate"),
					"level": integerProperty("Level the image was rendered at. Defaults to the configured level"),
					"mpp": map[string]interface{}{
						"type":        "number",
						"description": "Microns per level-0 pixel. Defaults to the configured micronsPerPixel",
					},
				},
				"required": []string{"x1", "y1", "x2", "y2"},
			},
		},

		// History
		{
			Name:        "render_history",
			Description: "List previous renders recorded in the render ledger, optionally for one slide.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slide": map[string]interface{}{
						"type":        "string",
						"description": "Slide name to filter by",
					},
				},
			},
		},
	}
}
