package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/edge-matte-mcp/internal/imaging"
	"github.com/ironsheep/edge-matte-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_edge_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

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
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Error().Err(err).Str("tool", params.Name).Msg("tool execution failed")
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	s.log.Debug().Str("tool", params.Name).Msg("tool executed")

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
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_sample_color":
		return s.handleImageSampleColor(args)
	case "image_edge_detect":
		return s.handleImageEdgeDetect(args)
	case "image_remove_background":
		return s.handleImageRemoveBackground(args)
	case "image_process":
		return s.handleImageProcess(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Argument helpers ===

type sourceArgs struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

// loadSource returns the image named by a path (through the cache) or
// carried inline as base64.
func (s *Server) loadSource(a sourceArgs) (image.Image, error) {
	switch {
	case a.Path != "" && a.ImageBase64 != "":
		return nil, errors.New("give either path or image_base64, not both")
	case a.Path != "":
		return s.cache.Load(a.Path)
	case a.ImageBase64 != "":
		img, _, err := imaging.DecodeBase64(a.ImageBase64)
		return img, err
	default:
		return nil, errors.New("missing image: give path or image_base64")
	}
}

type edgeArgs struct {
	Threshold1 *float64 `json:"threshold1"`
	Threshold2 *float64 `json:"threshold2"`
	L2Gradient bool     `json:"l2_gradient"`
	BlurRadius float64  `json:"blur_radius"`
}

func (a edgeArgs) thresholds() (float64, float64) {
	t1, t2 := 50.0, 150.0
	if a.Threshold1 != nil {
		t1 = *a.Threshold1
	}
	if a.Threshold2 != nil {
		t2 = *a.Threshold2
	}
	return t1, t2
}

func (a edgeArgs) options() imaging.EdgeOptions {
	return imaging.EdgeOptions{L2Gradient: a.L2Gradient, BlurRadius: a.BlurRadius}
}

type matteArgs struct {
	Mode          string `json:"mode"`
	SampleX       int    `json:"sample_x"`
	SampleY       int    `json:"sample_y"`
	Tolerance     *int   `json:"tolerance"`
	ReferencePath string `json:"reference_path"`
	RegionX       *int   `json:"region_x"`
	RegionY       *int   `json:"region_y"`
	RegionWidth   *int   `json:"region_width"`
	RegionHeight  *int   `json:"region_height"`
}

// region returns the selected background region, or the zero Rectangle when
// no region argument is present.
func (a matteArgs) region() (image.Rectangle, error) {
	if a.RegionX == nil && a.RegionY == nil && a.RegionWidth == nil && a.RegionHeight == nil {
		return image.Rectangle{}, nil
	}
	if a.RegionWidth == nil || a.RegionHeight == nil || *a.RegionWidth <= 0 || *a.RegionHeight <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: region_width and region_height must be positive", imaging.ErrInvalidInput)
	}
	var x, y int
	if a.RegionX != nil {
		x = *a.RegionX
	}
	if a.RegionY != nil {
		y = *a.RegionY
	}
	return image.Rect(x, y, x+*a.RegionWidth, y+*a.RegionHeight), nil
}

func (s *Server) matteOptions(a matteArgs) (imaging.MatteOptions, error) {
	mode, err := imaging.ParseSampleMode(a.Mode)
	if err != nil {
		return imaging.MatteOptions{}, err
	}

	opts := imaging.MatteOptions{
		Mode:      mode,
		Sample:    image.Point{X: a.SampleX, Y: a.SampleY},
		Tolerance: s.cfg.Tolerance,
	}
	if a.Tolerance != nil {
		opts.Tolerance = *a.Tolerance
	}
	if opts.Region, err = a.region(); err != nil {
		return opts, err
	}
	if a.ReferencePath != "" {
		ref, err := s.cache.Load(a.ReferencePath)
		if err != nil {
			return opts, fmt.Errorf("reference image: %w", err)
		}
		opts.Reference = ref
	}
	return opts, nil
}

// === Tool handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

type imageSampleColorArgs struct {
	sourceArgs
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(img, a.X, a.Y)
}

type imageEdgeDetectArgs struct {
	sourceArgs
	edgeArgs
	RGB        bool   `json:"rgb"`
	OutputPath string `json:"output_path"`
}

// edgeDetectResponse extends the encoded edge map with the saved path.
type edgeDetectResponse struct {
	*imaging.EdgeDetectResult
	OutputPath string `json:"output_path,omitempty"`
}

func (s *Server) handleImageEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a imageEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}

	t1, t2 := a.thresholds()
	edges, err := imaging.DetectEdgesWith(img, t1, t2, a.options())
	if err != nil {
		return nil, err
	}

	var out image.Image = edges
	if a.RGB {
		out = imaging.ExpandGray(edges)
	}

	result, err := imaging.EncodeEdgeImage(edges, out)
	if err != nil {
		return nil, err
	}

	if a.OutputPath != "" {
		if err := imaging.SavePNG(out, a.OutputPath); err != nil {
			return nil, err
		}
	}

	return &edgeDetectResponse{EdgeDetectResult: result, OutputPath: a.OutputPath}, nil
}

type imageRemoveBackgroundArgs struct {
	sourceArgs
	matteArgs
	OutputPath string `json:"output_path"`
}

// MatteResult contains a background-removed image encoded as base64 PNG.
type MatteResult struct {
	Width            int                   `json:"width"`
	Height           int                   `json:"height"`
	Sample           imaging.HSV           `json:"sample"`
	Band             imaging.ToleranceBand `json:"band"`
	BackgroundPixels int                   `json:"background_pixels"`
	ImageBase64      string                `json:"image_base64"`
	MimeType         string                `json:"mime_type"`
	OutputPath       string                `json:"output_path,omitempty"`
}

func (s *Server) handleImageRemoveBackground(args json.RawMessage) (interface{}, error) {
	var a imageRemoveBackgroundArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	opts, err := s.matteOptions(a.matteArgs)
	if err != nil {
		return nil, err
	}

	matte, err := imaging.ExtractMatte(img, opts)
	if err != nil {
		return nil, err
	}

	encoded, err := imaging.EncodePNGBase64(matte.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to encode matte image: %w", err)
	}

	if a.OutputPath != "" {
		if err := imaging.SavePNG(matte.Image, a.OutputPath); err != nil {
			return nil, err
		}
	}

	s.log.Debug().
		Stringer("sample", matte.Sample).
		Int("background_pixels", matte.BackgroundPixels).
		Msg("background removed")

	return &MatteResult{
		Width:            matte.Image.Rect.Dx(),
		Height:           matte.Image.Rect.Dy(),
		Sample:           matte.Sample,
		Band:             matte.Band,
		BackgroundPixels: matte.BackgroundPixels,
		ImageBase64:      encoded,
		MimeType:         "image/png",
		OutputPath:       a.OutputPath,
	}, nil
}

type imageProcessArgs struct {
	sourceArgs
	edgeArgs
	matteArgs
	Size            *string `json:"size"`
	EdgesOutputPath string  `json:"edges_output_path"`
	MatteOutputPath string  `json:"matte_output_path"`
}

// ProcessResult contains both derived images of an image_process call.
type ProcessResult struct {
	Edges *imaging.EdgeDetectResult `json:"edges"`
	Matte *MatteResult              `json:"matte"`
	Size  string                    `json:"size"`
}

func (s *Server) handleImageProcess(args json.RawMessage) (interface{}, error) {
	var a imageProcessArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadSource(a.sourceArgs)
	if err != nil {
		return nil, err
	}

	size := s.cfg.DefaultSize
	if a.Size != nil {
		if size, err = pipeline.ParseImageSize(*a.Size); err != nil {
			return nil, err
		}
	}

	matteOpts, err := s.matteOptions(a.matteArgs)
	if err != nil {
		return nil, err
	}

	t1, t2 := a.thresholds()
	res, err := pipeline.Process(img, pipeline.Params{
		Threshold1:   t1,
		Threshold2:   t2,
		Edge:         a.options(),
		Matte:        matteOpts,
		Size:         size,
		MaxDownscale: s.cfg.MaxDownscale,
	})
	if err != nil {
		return nil, err
	}

	edges, err := imaging.EncodeEdges(res.Edges)
	if err != nil {
		return nil, err
	}
	matteEncoded, err := imaging.EncodePNGBase64(res.Matte)
	if err != nil {
		return nil, fmt.Errorf("failed to encode matte image: %w", err)
	}

	if a.EdgesOutputPath != "" {
		if err := imaging.SavePNG(res.Edges, a.EdgesOutputPath); err != nil {
			return nil, err
		}
	}
	if a.MatteOutputPath != "" {
		if err := imaging.SavePNG(res.Matte, a.MatteOutputPath); err != nil {
			return nil, err
		}
	}

	sizeName := string(size)
	if size == pipeline.SizeOriginal {
		sizeName = "original"
	}

	return &ProcessResult{
		Edges: edges,
		Matte: &MatteResult{
			Width:            res.Matte.Rect.Dx(),
			Height:           res.Matte.Rect.Dy(),
			Sample:           res.Sample,
			Band:             res.Band,
			BackgroundPixels: res.BackgroundPixels,
			ImageBase64:      matteEncoded,
			MimeType:         "image/png",
			OutputPath:       a.MatteOutputPath,
		},
		Size: sizeName,
	}, nil
}
