package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

var outputPathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Optional PNG path to write the result to. When omitted the image is returned as base64.",
}

var paletteProperty = map[string]interface{}{
	"type":        "array",
	"items":       map[string]interface{}{"type": "string"},
	"description": "Hex colours such as \"#8b0000\". Overrides n_colors.",
}

func carpetProperties() map[string]interface{} {
	return map[string]interface{}{
		"width_cm": map[string]interface{}{
			"type":        "integer",
			"description": "Carpet width in centimetres",
		},
		"height_cm": map[string]interface{}{
			"type":        "integer",
			"description": "Carpet height (length) in centimetres",
		},
		"shaneh": map[string]interface{}{
			"type":        "integer",
			"description": "Knots per 10 cm of width",
		},
		"tar": map[string]interface{}{
			"type":        "integer",
			"description": "Knots per 10 cm of height",
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"path": pathProperty},
				"required":   []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"path": pathProperty},
				"required":   []string{"path"},
			},
		},
		{
			Name:        "image_edge_detect",
			Description: "Canny edge map of an image as base64 PNG, optionally cleaned with the morphological refinement used for design control maps.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"threshold_low": map[string]interface{}{
						"type":        "integer",
						"description": "Lower hysteresis threshold. Default 50",
						"default":     50,
					},
					"threshold_high": map[string]interface{}{
						"type":        "integer",
						"description": "Upper hysteresis threshold. Default 150",
						"default":     150,
					},
					"refine": map[string]interface{}{
						"type":        "boolean",
						"description": "Close and open the edge map to remove speckle and bridge gaps",
					},
				},
				"required": []string{"path"},
			},
		},

		// Carpet tools
		{
			Name:        "carpet_geometry",
			Description: "Knot grid resolution and production statistics for a carpet of the given size and density.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": carpetProperties(),
				"required":   []string{"width_cm", "height_cm", "shaneh", "tar"},
			},
		},
		{
			Name:        "carpet_extract_palette",
			Description: "Extract a yarn palette from an image with k-means clustering.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"n_colors": map[string]interface{}{
						"type":        "integer",
						"description": "Number of colours, 2-20. Default 8",
						"default":     8,
					},
					"max_samples": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels sampled for clustering. Default 20000",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "carpet_quantize",
			Description: "Reduce an image to a limited palette with Floyd-Steinberg dithering.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"n_colors": map[string]interface{}{
						"type":        "integer",
						"description": "Number of colours when no palette is given, 2-20. Default 8",
						"default":     8,
					},
					"palette": paletteProperty,
					"metric": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"rgb", "lab"},
						"description": "Colour distance. Default rgb",
					},
					"output_path": outputPathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "carpet_symmetry",
			Description: "Compose a symmetric layout: four_way mirror, horizontal mirror, or a four-way medallion centred on a plain field.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"mode": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"four_way", "horizontal", "medallion"},
						"default": "four_way",
					},
					"width": map[string]interface{}{
						"type":        "integer",
						"description": "Medallion canvas width. Defaults to the image width",
					},
					"height": map[string]interface{}{
						"type":        "integer",
						"description": "Medallion canvas height. Defaults to the image height",
					},
					"background": map[string]interface{}{
						"type":        "string",
						"description": "Medallion field colour as hex. Default #f5f0e6",
					},
					"output_path": outputPathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "carpet_knot_chart",
			Description: "Weaver's knot chart: the design enlarged per knot with a counting grid, every tenth line numbered.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Knots between grid lines. Default 1",
						"default":     1,
					},
					"scale": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels per knot, at least 2. Default 6",
						"default":     6,
					},
					"line_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid colour as hex. Default #3c3c3c",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "carpet_process",
			Description: "Run the carpet design pipeline on an image: knot resolution, background removal, edge detection, " +
				"generative redesign, colour reduction, symmetry and vectorization, each stage optional. " +
				"Reports progress through notifications/progress when the request carries a progressToken.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory that receives the timestamped run folder. Defaults to the configured output directory",
					},
					"carpet": map[string]interface{}{
						"type":        "object",
						"properties":  carpetProperties(),
						"description": "Physical carpet. Omit to keep the input resolution",
					},
					"profile": map[string]interface{}{
						"type":        "string",
						"description": "Saved loom profile supplying shaneh, tar and palette",
					},
					"palette":           paletteProperty,
					"remove_background": map[string]interface{}{"type": "boolean"},
					"detect_edges":      map[string]interface{}{"type": "boolean"},
					"generate_design":   map[string]interface{}{"type": "boolean"},
					"quantize_colors":   map[string]interface{}{"type": "boolean"},
					"apply_symmetry":    map[string]interface{}{"type": "boolean"},
					"vectorize":         map[string]interface{}{"type": "boolean"},
					"is_full_design": map[string]interface{}{
						"type":        "boolean",
						"description": "The input is already a complete design; symmetry is skipped",
					},
					"save_intermediate": map[string]interface{}{"type": "boolean"},
					"sam_fast_mode": map[string]interface{}{
						"type":        "boolean",
						"description": "Segment only the object under the image centre",
					},
					"base_model_path": map[string]interface{}{"type": "string"},
					"controlnet_path": map[string]interface{}{"type": "string"},
				},
				"required": []string{"path"},
			},
		},
	}
}
