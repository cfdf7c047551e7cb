package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// sourceProperties are the ways a tool accepts its source image: a file
// path or inline base64 data. Exactly one must be given.
func sourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the image file (PNG, JPEG, GIF, BMP, TIFF, WebP)",
		},
		"image_base64": map[string]interface{}{
			"type":        "string",
			"description": "Base64-encoded image file, used instead of path",
		},
	}
}

func thresholdProperties(props map[string]interface{}) {
	props["threshold1"] = map[string]interface{}{
		"type":        "number",
		"description": "First hysteresis threshold, 0-255 (default 50). The smaller threshold continues edge chains.",
		"default":     50,
		"minimum":     0,
	}
	props["threshold2"] = map[string]interface{}{
		"type":        "number",
		"description": "Second hysteresis threshold, 0-255 (default 150). The larger threshold starts edge chains.",
		"default":     150,
		"minimum":     0,
	}
	props["l2_gradient"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Use the Euclidean gradient magnitude instead of |Gx|+|Gy|",
		"default":     false,
	}
	props["blur_radius"] = map[string]interface{}{
		"type":        "number",
		"description": "Gaussian blur radius applied before edge detection (default 0, disabled)",
		"default":     0,
		"minimum":     0,
	}
}

func matteProperties(props map[string]interface{}) {
	props["mode"] = map[string]interface{}{
		"type":        "string",
		"enum":        []string{"point", "region_mean", "reference_mean", "dominant"},
		"description": "How to sample the background color (default point)",
		"default":     "point",
	}
	props["sample_x"] = map[string]interface{}{
		"type":        "integer",
		"description": "Background sample X for mode=point (default 0)",
		"default":     0,
	}
	props["sample_y"] = map[string]interface{}{
		"type":        "integer",
		"description": "Background sample Y for mode=point (default 0)",
		"default":     0,
	}
	props["tolerance"] = map[string]interface{}{
		"type":        "integer",
		"description": "Hue half-width of the background band, in 0-179 hue units (default 30)",
		"minimum":     0,
	}
	props["reference_path"] = map[string]interface{}{
		"type":        "string",
		"description": "Image of the background, for mode=reference_mean or mode=dominant",
	}
	props["region_x"] = map[string]interface{}{
		"type":        "integer",
		"description": "Left edge of a selected background region (default 0). Used by mode=reference_mean or mode=dominant when reference_path is not given",
		"minimum":     0,
	}
	props["region_y"] = map[string]interface{}{
		"type":        "integer",
		"description": "Top edge of the selected background region (default 0)",
		"minimum":     0,
	}
	props["region_width"] = map[string]interface{}{
		"type":        "integer",
		"description": "Width of the selected background region in pixels",
		"minimum":     1,
	}
	props["region_height"] = map[string]interface{}{
		"type":        "integer",
		"description": "Height of the selected background region in pixels",
		"minimum":     1,
	}
}

func withProps(base map[string]interface{}, extend ...func(map[string]interface{})) map[string]interface{} {
	for _, fn := range extend {
		fn(base)
	}
	return base
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and channel layout.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_sample_color",
			Description: "Get the color at a pixel as hex, RGBA and 8-bit HSV (H 0-179). Use it to choose a background sample point.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(sourceProperties(), func(p map[string]interface{}) {
					p["x"] = map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based, from left)",
					}
					p["y"] = map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based, from top)",
					}
				}),
				"required": []string{"x", "y"},
			},
		},
		{
			Name:        "image_edge_detect",
			Description: "Return the Canny edge map of an image: white edge lines on black, same size as the input.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(sourceProperties(), thresholdProperties, func(p map[string]interface{}) {
					p["rgb"] = map[string]interface{}{
						"type":        "boolean",
						"description": "Return the edge map as an opaque RGB image instead of single-channel grayscale",
						"default":     false,
					}
					p["output_path"] = map[string]interface{}{
						"type":        "string",
						"description": "Optional .png path to also write the edge map to",
					}
				}),
			},
		},
		{
			Name:        "image_remove_background",
			Description: "Make the background transparent. Pixels whose hue is within the tolerance of the sampled background color (and with saturation and value >= 50) get alpha 0.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(sourceProperties(), matteProperties, func(p map[string]interface{}) {
					p["output_path"] = map[string]interface{}{
						"type":        "string",
						"description": "Optional .png path to also write the result to",
					}
				}),
			},
		},
		{
			Name:        "image_process",
			Description: "Run edge detection and background removal on the same image and return both results, resized to a size preset.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(sourceProperties(), thresholdProperties, matteProperties, func(p map[string]interface{}) {
					p["size"] = map[string]interface{}{
						"type":        "string",
						"enum":        []string{"original", "XS", "S", "M", "L", "XL"},
						"description": "Output size preset: XS=75, S=150, M=300, L=600, XL=1200 px (default from server configuration)",
					}
					p["edges_output_path"] = map[string]interface{}{
						"type":        "string",
						"description": "Optional .png path for the edge map",
					}
					p["matte_output_path"] = map[string]interface{}{
						"type":        "string",
						"description": "Optional .png path for the background-removed image",
					}
				}),
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
