package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/edge-matte-mcp/internal/imaging"
)

var (
	green   = color.RGBA{43, 200, 43, 255}
	magenta = color.RGBA{200, 43, 200, 255}
)

// createSplitImage returns an image whose left half is left and right half
// is right.
func createSplitImage(width, height int, left, right color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.Set(x, y, left)
			} else {
				img.Set(x, y, right)
			}
		}
	}
	return img
}

// createTestImageFile writes img as PNG in the test's temp dir and returns
// its path.
func createTestImageFile(t *testing.T, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}

	return path
}

func encodeBase64(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// callTool sends a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

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

// toolResult decodes the JSON text content of a successful tools/call.
func toolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v (%v)", resp.Error.Message, resp.Error.Data)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %#v", result["content"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
}

func decodePNG(t *testing.T, data string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(100, 80, green, magenta))

	var info imaging.ImageInfo
	toolResult(t, callTool(t, s, "image_load", map[string]interface{}{"path": imgPath}), &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer()

	resp := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"})

	if resp.Error == nil {
		t.Fatal("expected an error for a missing file")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer()

	resp := callTool(t, s, "image_crop", map[string]interface{}{})

	if resp.Error == nil {
		t.Fatal("expected an error for an unknown tool")
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "unknown tool") {
		t.Errorf("Error data: got %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer()

	resp := s.handleToolsCall(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`"not an object"`),
	})

	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("got %+v, want invalid params", resp.Error)
	}
}

func TestHandleToolsCall_SampleColor(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(10, 10, green, magenta))

	var result imaging.ColorResult
	toolResult(t, callTool(t, s, "image_sample_color", map[string]interface{}{
		"path": imgPath,
		"x":    8,
		"y":    3,
	}), &result)

	if result.Hex != "#C82BC8" {
		t.Errorf("Hex: got %s, want #C82BC8", result.Hex)
	}
	if result.HSV != (imaging.HSV{H: 150, S: 200, V: 200}) {
		t.Errorf("HSV: got %v", result.HSV)
	}

	resp := callTool(t, s, "image_sample_color", map[string]interface{}{
		"path": imgPath,
		"x":    10,
		"y":    0,
	})
	if resp.Error == nil {
		t.Error("expected an error for an out-of-bounds pixel")
	}
}

func TestHandleToolsCall_Base64Source(t *testing.T) {
	s := newTestServer()
	data := encodeBase64(t, createSplitImage(6, 6, green, magenta))

	var result imaging.ColorResult
	toolResult(t, callTool(t, s, "image_sample_color", map[string]interface{}{
		"image_base64": data,
		"x":            0,
		"y":            0,
	}), &result)

	if result.Hex != "#2BC82B" {
		t.Errorf("Hex: got %s, want #2BC82B", result.Hex)
	}
}

func TestHandleToolsCall_SourceArguments(t *testing.T) {
	s := newTestServer()
	img := createSplitImage(4, 4, green, magenta)
	imgPath := createTestImageFile(t, img)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"neither", map[string]interface{}{}},
		{"both", map[string]interface{}{"path": imgPath, "image_base64": encodeBase64(t, img)}},
		{"bad base64", map[string]interface{}{"image_base64": "%%%"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "image_edge_detect", tt.args)
			if resp.Error == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHandleToolsCall_EdgeDetect(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(40, 30, color.Black, color.White))
	outPath := filepath.Join(t.TempDir(), "edges.png")

	var result struct {
		imaging.EdgeDetectResult
		OutputPath string `json:"output_path"`
	}
	toolResult(t, callTool(t, s, "image_edge_detect", map[string]interface{}{
		"path":        imgPath,
		"output_path": outPath,
	}), &result)

	if result.Width != 40 || result.Height != 30 {
		t.Errorf("dimensions: got %dx%d, want 40x30", result.Width, result.Height)
	}
	if result.EdgePixels == 0 {
		t.Error("expected edge pixels")
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s", result.MimeType)
	}
	if result.OutputPath != outPath {
		t.Errorf("OutputPath: got %s, want %s", result.OutputPath, outPath)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("edge map not written: %v", err)
	}

	edges := decodePNG(t, result.ImageBase64)
	if edges.Bounds().Dx() != 40 || edges.Bounds().Dy() != 30 {
		t.Errorf("encoded bounds: got %v", edges.Bounds())
	}
}

func TestHandleToolsCall_EdgeDetect_RGB(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(20, 20, color.Black, color.White))

	var result imaging.EdgeDetectResult
	toolResult(t, callTool(t, s, "image_edge_detect", map[string]interface{}{
		"path": imgPath,
		"rgb":  true,
	}), &result)

	edges := decodePNG(t, result.ImageBase64)
	if _, ok := edges.(*image.Gray); ok {
		t.Fatal("rgb output should not decode as grayscale")
	}
	if result.EdgePixels == 0 {
		t.Fatal("expected edge pixels")
	}

	white := 0
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			r, g, b, a := edges.At(x, y).RGBA()
			if a != 0xffff {
				t.Fatalf("(%d,%d): alpha %d, want opaque", x, y, a)
			}
			if r != g || g != b {
				t.Fatalf("(%d,%d): channels differ", x, y)
			}
			if r == 0xffff {
				white++
			}
		}
	}
	if white != result.EdgePixels {
		t.Errorf("white pixels: got %d, want %d", white, result.EdgePixels)
	}
}

func TestHandleToolsCall_EdgeDetect_ZeroThresholds(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(40, 30, green, magenta))

	// Explicit zeros are honored, not replaced by the defaults
	var zero imaging.EdgeDetectResult
	toolResult(t, callTool(t, s, "image_edge_detect", map[string]interface{}{
		"path":       imgPath,
		"threshold1": 0,
		"threshold2": 0,
	}), &zero)

	var defaults imaging.EdgeDetectResult
	toolResult(t, callTool(t, s, "image_edge_detect", map[string]interface{}{
		"path": imgPath,
	}), &defaults)

	if zero.EdgePixels == 0 {
		t.Error("zero thresholds should keep every local maximum")
	}
	if defaults.EdgePixels != 0 {
		// Gradient 108 never reaches the default 150
		t.Errorf("default thresholds: got %d edge pixels, want 0", defaults.EdgePixels)
	}

	resp := callTool(t, s, "image_edge_detect", map[string]interface{}{
		"path":       imgPath,
		"threshold1": -5,
	})
	if resp.Error == nil {
		t.Error("expected an error for a negative threshold")
	}
}

func TestHandleToolsCall_EdgeDetect_RejectsNonPNGOutput(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(8, 8, color.Black, color.White))

	resp := callTool(t, s, "image_edge_detect", map[string]interface{}{
		"path":        imgPath,
		"output_path": filepath.Join(t.TempDir(), "edges.jpg"),
	})
	if resp.Error == nil {
		t.Error("expected an error for a .jpg output path")
	}
}

func TestHandleToolsCall_RemoveBackground(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(20, 10, green, magenta))
	outPath := filepath.Join(t.TempDir(), "matte.png")

	var result MatteResult
	toolResult(t, callTool(t, s, "image_remove_background", map[string]interface{}{
		"path":        imgPath,
		"output_path": outPath,
	}), &result)

	if result.Width != 20 || result.Height != 10 {
		t.Errorf("dimensions: got %dx%d, want 20x10", result.Width, result.Height)
	}
	if result.Sample != (imaging.HSV{H: 60, S: 200, V: 200}) {
		t.Errorf("Sample: got %v", result.Sample)
	}
	if result.Band.Lower.H != 30 || result.Band.Upper.H != 90 {
		t.Errorf("Band: got %+v", result.Band)
	}
	if result.BackgroundPixels != 100 {
		t.Errorf("BackgroundPixels: got %d, want 100", result.BackgroundPixels)
	}

	matte := decodePNG(t, result.ImageBase64)
	if _, _, _, a := matte.At(2, 2).RGBA(); a != 0 {
		t.Errorf("background alpha: got %d, want 0", a)
	}
	if _, _, _, a := matte.At(17, 2).RGBA(); a != 0xffff {
		t.Errorf("foreground alpha: got %d, want opaque", a)
	}

	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("matte not written: %v", err)
	}
}

func TestHandleToolsCall_RemoveBackground_Options(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(20, 10, green, magenta))
	refPath := createTestImageFile(t, createSplitImage(4, 4, magenta, magenta))

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantHue uint8
	}{
		{"sample point", map[string]interface{}{"sample_x": 19, "sample_y": 9}, 150},
		{"region mean", map[string]interface{}{"mode": "region_mean"}, 60},
		{"reference mean", map[string]interface{}{"mode": "reference_mean", "reference_path": refPath}, 150},
		{"selected region", map[string]interface{}{
			"mode": "reference_mean", "region_x": 12, "region_y": 2, "region_width": 6, "region_height": 6,
		}, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = imgPath

			var result MatteResult
			toolResult(t, callTool(t, s, "image_remove_background", tt.args), &result)

			if result.Sample.H != tt.wantHue {
				t.Errorf("sample hue: got %d, want %d", result.Sample.H, tt.wantHue)
			}
		})
	}
}

func TestHandleToolsCall_RemoveBackground_Tolerance(t *testing.T) {
	s := newTestServer()
	s.cfg.Tolerance = 5
	imgPath := createTestImageFile(t, createSplitImage(4, 4, green, magenta))

	var fromConfig MatteResult
	toolResult(t, callTool(t, s, "image_remove_background", map[string]interface{}{"path": imgPath}), &fromConfig)
	if fromConfig.Band.Lower.H != 55 || fromConfig.Band.Upper.H != 65 {
		t.Errorf("configured tolerance: got band %+v", fromConfig.Band)
	}

	var explicit MatteResult
	toolResult(t, callTool(t, s, "image_remove_background", map[string]interface{}{
		"path":      imgPath,
		"tolerance": 0,
	}), &explicit)
	if explicit.Band.Lower.H != 60 || explicit.Band.Upper.H != 60 {
		t.Errorf("explicit tolerance: got band %+v", explicit.Band)
	}
}

func TestHandleToolsCall_RemoveBackground_Errors(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(4, 4, green, magenta))

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"unknown mode", map[string]interface{}{"mode": "corner"}},
		{"sample outside", map[string]interface{}{"sample_x": 4}},
		{"negative tolerance", map[string]interface{}{"tolerance": -1}},
		{"missing reference", map[string]interface{}{"mode": "reference_mean"}},
		{"unreadable reference", map[string]interface{}{"mode": "dominant", "reference_path": "/nonexistent.png"}},
		{"region outside", map[string]interface{}{"mode": "reference_mean", "region_x": 2, "region_width": 4, "region_height": 2}},
		{"region without size", map[string]interface{}{"mode": "reference_mean", "region_x": 1}},
		{"zero region width", map[string]interface{}{"mode": "reference_mean", "region_width": 0, "region_height": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = imgPath
			if resp := callTool(t, s, "image_remove_background", tt.args); resp.Error == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHandleToolsCall_Process(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(600, 400, green, magenta))

	var result ProcessResult
	toolResult(t, callTool(t, s, "image_process", map[string]interface{}{
		"path":       imgPath,
		"size":       "s",
		"threshold1": 20,
		"threshold2": 60,
	}), &result)

	if result.Size != "S" {
		t.Errorf("Size: got %q, want S", result.Size)
	}
	if result.Edges == nil || result.Matte == nil {
		t.Fatal("both results are required")
	}
	if result.Edges.Width != 300 || result.Edges.Height != 200 {
		t.Errorf("edges: got %dx%d, want 300x200", result.Edges.Width, result.Edges.Height)
	}
	if result.Edges.EdgePixels == 0 {
		t.Error("expected edges at the color boundary")
	}
	if result.Matte.Width != 150 || result.Matte.Height != 100 {
		t.Errorf("matte: got %dx%d, want 150x100", result.Matte.Width, result.Matte.Height)
	}

	matte := decodePNG(t, result.Matte.ImageBase64)
	if matte.Bounds().Dx() != 150 {
		t.Errorf("encoded matte bounds: got %v", matte.Bounds())
	}
}

func TestHandleToolsCall_Process_SizeDefaults(t *testing.T) {
	s := newTestServer()
	s.cfg.DefaultSize = ""
	imgPath := createTestImageFile(t, createSplitImage(30, 20, green, magenta))
	edgesPath := filepath.Join(t.TempDir(), "edges.png")
	mattePath := filepath.Join(t.TempDir(), "matte.png")

	var result ProcessResult
	toolResult(t, callTool(t, s, "image_process", map[string]interface{}{
		"path":              imgPath,
		"edges_output_path": edgesPath,
		"matte_output_path": mattePath,
	}), &result)

	if result.Size != "original" {
		t.Errorf("Size: got %q, want original", result.Size)
	}
	if result.Matte.Width != 30 || result.Matte.Height != 20 {
		t.Errorf("matte: got %dx%d, want 30x20", result.Matte.Width, result.Matte.Height)
	}
	if result.Matte.OutputPath != mattePath {
		t.Errorf("matte OutputPath: got %q", result.Matte.OutputPath)
	}
	for _, p := range []string{edgesPath, mattePath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}

	if resp := callTool(t, s, "image_process", map[string]interface{}{
		"path": imgPath,
		"size": "XXL",
	}); resp.Error == nil {
		t.Error("expected an error for an unknown size")
	}
}

func TestExecuteTool_AllTools(t *testing.T) {
	s := newTestServer()
	imgPath := createTestImageFile(t, createSplitImage(20, 20, green, magenta))

	args := map[string]string{
		"image_load":              `{"path":"` + imgPath + `"}`,
		"image_sample_color":      `{"path":"` + imgPath + `","x":1,"y":1}`,
		"image_edge_detect":       `{"path":"` + imgPath + `"}`,
		"image_remove_background": `{"path":"` + imgPath + `"}`,
		"image_process":           `{"path":"` + imgPath + `","size":"XS"}`,
	}

	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			a, ok := args[tool.Name]
			if !ok {
				t.Fatalf("no test arguments for %s", tool.Name)
			}
			result, err := s.executeTool(tool.Name, json.RawMessage(a))
			if err != nil {
				t.Fatalf("executeTool failed: %v", err)
			}
			if result == nil {
				t.Error("executeTool returned nil result")
			}
		})
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := newTestServer()
	if _, err := s.executeTool("nonexistent_tool", nil); err == nil {
		t.Error("expected an error for an unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer()
	if _, err := s.executeTool("image_load", json.RawMessage(`{invalid`)); err == nil {
		t.Error("expected an error for invalid JSON arguments")
	}
}
