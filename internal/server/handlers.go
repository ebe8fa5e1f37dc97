package server

import (
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/carpet-design/internal/config"
	"github.com/ironsheep/carpet-design/internal/geometry"
	"github.com/ironsheep/carpet-design/internal/imaging"
	"github.com/ironsheep/carpet-design/internal/pipeline"
	"github.com/ironsheep/carpet-design/internal/quantize"
	"github.com/ironsheep/carpet-design/internal/symmetry"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "carpet_process").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	Meta *struct {
		// ProgressToken, when present, asks for notifications/progress.
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta,omitempty"`
}

func (p ToolCallParams) progressToken() interface{} {
	if p.Meta == nil {
		return nil
	}
	return p.Meta.ProgressToken
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
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	log := s.log.WithField("tool", params.Name)
	result, err := s.executeTool(params)
	if err != nil {
		log.WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	log.Debug("tool done")

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
func (s *Server) executeTool(params ToolCallParams) (interface{}, error) {
	args := params.Arguments
	switch params.Name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_edge_detect":
		return s.handleImageEdgeDetect(args)

	case "carpet_geometry":
		return s.handleCarpetGeometry(args)
	case "carpet_extract_palette":
		return s.handleCarpetExtractPalette(args)
	case "carpet_quantize":
		return s.handleCarpetQuantize(args)
	case "carpet_symmetry":
		return s.handleCarpetSymmetry(args)
	case "carpet_knot_chart":
		return s.handleCarpetKnotChart(args)
	case "carpet_process":
		return s.handleCarpetProcess(args, params.progressToken())

	default:
		return nil, fmt.Errorf("unknown tool: %s", params.Name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{JSONRPC: "2.0", ID: id, Error: e}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// imageOutput is an image result either written to disk or inlined.
type imageOutput struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	OutputPath  string `json:"output_path,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

func (s *Server) emitImage(img image.Image, outputPath string) (*imageOutput, error) {
	out := &imageOutput{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if outputPath != "" {
		if err := imaging.SavePNG(img, outputPath); err != nil {
			return nil, err
		}
		// The file may be a later tool's input.
		s.cache.Evict(outputPath)
		out.OutputPath = outputPath
		return out, nil
	}
	encoded, err := imaging.EncodePNGBase64(img)
	if err != nil {
		return nil, err
	}
	out.ImageBase64 = encoded
	out.MimeType = "image/png"
	return out, nil
}

func parseHexPalette(hex []string) (quantize.Palette, error) {
	p := make(quantize.Palette, 0, len(hex))
	for i, h := range hex {
		c, err := imaging.ParseHexColor(h)
		if err != nil {
			return nil, fmt.Errorf("palette entry %d: %w", i+1, err)
		}
		p = append(p, c)
	}
	return p, nil
}

// === Image information ===

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

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type imageEdgeDetectArgs struct {
	Path          string `json:"path"`
	ThresholdLow  int    `json:"threshold_low"`
	ThresholdHigh int    `json:"threshold_high"`
	Refine        bool   `json:"refine"`
}

func (s *Server) handleImageEdgeDetect(args json.RawMessage) (interface{}, error) {
	var a imageEdgeDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ThresholdLow == 0 {
		a.ThresholdLow = imaging.DefaultEdgeLow
	}
	if a.ThresholdHigh == 0 {
		a.ThresholdHigh = imaging.DefaultEdgeHigh
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EdgeDetect(img, a.ThresholdLow, a.ThresholdHigh, a.Refine)
}

// === Carpet tools ===

type carpetGeometryResult struct {
	Spec           geometry.CarpetSpec `json:"spec"`
	Resolution     geometry.Resolution `json:"resolution"`
	GenerationSize geometry.Resolution `json:"generation_size"`
	Stats          geometry.Stats      `json:"stats"`
}

func (s *Server) handleCarpetGeometry(args json.RawMessage) (interface{}, error) {
	var spec geometry.CarpetSpec
	if err := json.Unmarshal(args, &spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	res := geometry.KnotResolution(spec)
	return &carpetGeometryResult{
		Spec:           spec,
		Resolution:     res,
		GenerationSize: res.Floor8(),
		Stats:          geometry.ComputeStats(spec),
	}, nil
}

type carpetExtractPaletteArgs struct {
	Path       string `json:"path"`
	NColors    int    `json:"n_colors"`
	MaxSamples int    `json:"max_samples"`
}

func (s *Server) handleCarpetExtractPalette(args json.RawMessage) (interface{}, error) {
	var a carpetExtractPaletteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.NColors == 0 {
		a.NColors = s.cfg.Processing.ColorQuantization.NColors
	}
	if err := quantize.ValidateColorCount(a.NColors); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	p, err := quantize.Extract(s.ctx, img, a.NColors, a.MaxSamples)
	if err != nil {
		return nil, err
	}
	return p.Info(), nil
}

type carpetQuantizeArgs struct {
	Path       string   `json:"path"`
	NColors    int      `json:"n_colors"`
	Palette    []string `json:"palette"`
	Metric     string   `json:"metric"`
	OutputPath string   `json:"output_path"`
}

type carpetQuantizeResult struct {
	quantize.ColorInfo
	Image *imageOutput `json:"image"`
}

func (s *Server) handleCarpetQuantize(args json.RawMessage) (interface{}, error) {
	var a carpetQuantizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Metric == "" {
		a.Metric = s.cfg.Processing.ColorQuantization.Metric
	}
	metric, err := quantize.ParseMetric(a.Metric)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	q := quantize.New(metric)
	var (
		out     *image.NRGBA
		palette quantize.Palette
	)
	if len(a.Palette) > 0 {
		custom, err := parseHexPalette(a.Palette)
		if err != nil {
			return nil, err
		}
		out, palette, err = q.Apply(img, custom)
		if err != nil {
			return nil, err
		}
	} else {
		if a.NColors == 0 {
			a.NColors = s.cfg.Processing.ColorQuantization.NColors
		}
		if err := quantize.ValidateColorCount(a.NColors); err != nil {
			return nil, err
		}
		out, palette, err = q.Auto(img, a.NColors)
		if err != nil {
			return nil, err
		}
	}

	emitted, err := s.emitImage(out, a.OutputPath)
	if err != nil {
		return nil, err
	}
	return &carpetQuantizeResult{ColorInfo: palette.Info(), Image: emitted}, nil
}

type carpetSymmetryArgs struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
	OutputPath string `json:"output_path"`
}

func (s *Server) handleCarpetSymmetry(args json.RawMessage) (interface{}, error) {
	var a carpetSymmetryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	var out image.Image
	switch strings.ToLower(a.Mode) {
	case "", "four_way":
		out = symmetry.FourWayMirror(img)
	case "horizontal":
		out = symmetry.MirrorHorizontal(img)
	case "medallion":
		bg := symmetry.DefaultBackground
		if a.Background != "" {
			if bg, err = imaging.ParseHexColor(a.Background); err != nil {
				return nil, err
			}
		}
		if a.Width == 0 {
			a.Width = img.Bounds().Dx()
		}
		if a.Height == 0 {
			a.Height = img.Bounds().Dy()
		}
		out, err = symmetry.Medallion(symmetry.FourWayMirror(img), a.Width, a.Height, bg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown symmetry mode %q (want four_way, horizontal or medallion)", a.Mode)
	}
	return s.emitImage(out, a.OutputPath)
}

type carpetKnotChartArgs struct {
	Path      string `json:"path"`
	Spacing   int    `json:"spacing"`
	Scale     int    `json:"scale"`
	LineColor string `json:"line_color"`
}

func (s *Server) handleCarpetKnotChart(args json.RawMessage) (interface{}, error) {
	var a carpetKnotChartArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Spacing == 0 {
		a.Spacing = 1
	}
	if a.Scale == 0 {
		a.Scale = 6
	}
	line := imaging.RGBColor{R: 60, G: 60, B: 60}
	if a.LineColor != "" {
		var err error
		if line, err = imaging.ParseHexColor(a.LineColor); err != nil {
			return nil, err
		}
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.EncodeKnotChart(img, a.Spacing, a.Scale, line)
}

type carpetProcessArgs struct {
	Path      string               `json:"path"`
	OutputDir string               `json:"output_dir"`
	Carpet    *geometry.CarpetSpec `json:"carpet"`
	Profile   string               `json:"profile"`
	Palette   []string             `json:"palette"`

	RemoveBackground bool `json:"remove_background"`
	DetectEdges      bool `json:"detect_edges"`
	GenerateDesign   bool `json:"generate_design"`
	QuantizeColors   bool `json:"quantize_colors"`
	ApplySymmetry    bool `json:"apply_symmetry"`
	Vectorize        bool `json:"vectorize"`
	IsFullDesign     bool `json:"is_full_design"`
	SaveIntermediate bool `json:"save_intermediate"`
	FastSegmentation bool `json:"sam_fast_mode"`

	BaseModel    string `json:"base_model_path"`
	ControlModel string `json:"controlnet_path"`
}

type carpetProcessResult struct {
	*pipeline.Result
	Log []string `json:"log"`
}

// resolveCarpet merges the carpet argument with a saved profile. A profile
// supplies densities and a palette; explicit arguments win.
func (s *Server) resolveCarpet(a *carpetProcessArgs) (*geometry.CarpetSpec, quantize.Palette, error) {
	spec := a.Carpet
	var palette quantize.Palette

	if a.Profile != "" {
		if s.profiles == nil {
			return nil, nil, fmt.Errorf("no profile store configured")
		}
		p, err := s.profiles.Get(a.Profile)
		if err != nil {
			return nil, nil, err
		}
		if palette, err = p.Colors(); err != nil {
			return nil, nil, err
		}
		merged := geometry.DefaultSpec
		if spec != nil {
			merged = *spec
		}
		if spec == nil || spec.Shaneh == 0 {
			merged.Shaneh = p.Shaneh
		}
		if spec == nil || spec.Tar == 0 {
			merged.Tar = p.Tar
		}
		spec = &merged
	}

	if len(a.Palette) > 0 {
		custom, err := parseHexPalette(a.Palette)
		if err != nil {
			return nil, nil, err
		}
		palette = custom
	}
	return spec, palette, nil
}

func (s *Server) handleCarpetProcess(args json.RawMessage, progressToken interface{}) (interface{}, error) {
	if s.orch == nil {
		return nil, fmt.Errorf("pipeline is not available")
	}
	var a carpetProcessArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	spec, palette, err := s.resolveCarpet(&a)
	if err != nil {
		return nil, err
	}
	rc, err := s.cfg.RunConfig(config.Toggles{
		RemoveBackground: a.RemoveBackground,
		DetectEdges:      a.DetectEdges,
		GenerateDesign:   a.GenerateDesign,
		QuantizeColors:   a.QuantizeColors,
		ApplySymmetry:    a.ApplySymmetry,
		Vectorize:        a.Vectorize,
		IsFullDesign:     a.IsFullDesign,
		SaveIntermediate: a.SaveIntermediate,
		FastSegmentation: a.FastSegmentation,
		BaseModel:        a.BaseModel,
		ControlModel:     a.ControlModel,
	})
	if err != nil {
		return nil, err
	}

	// Run inputs are read from disk each time; the file may have changed.
	img, err := imaging.LoadImage(a.Path)
	if err != nil {
		return nil, err
	}

	if err := s.orch.SetCarpetSpec(spec); err != nil {
		return nil, err
	}
	if err := s.orch.SetCustomPalette(palette); err != nil {
		return nil, err
	}

	outputDir := a.OutputDir
	if outputDir == "" {
		outputDir = s.outputDir
	}
	if !filepath.IsAbs(outputDir) {
		if abs, err := filepath.Abs(outputDir); err == nil {
			outputDir = abs
		}
	}

	var messages []string
	logs := pipeline.LogFunc(func(m string) {
		messages = append(messages, m)
		s.log.WithField("tool", "carpet_process").Debug(m)
	})
	var progress pipeline.ProgressSink
	if progressToken != nil {
		progress = pipeline.ProgressFunc(func(current, total int) {
			s.notify("notifications/progress", map[string]interface{}{
				"progressToken": progressToken,
				"progress":      current,
				"total":         total,
			})
		})
	}

	result, err := s.orch.Process(s.ctx, img, outputDir, rc, progress, logs)
	if err != nil {
		s.log.WithFields(logrus.Fields{"run_id": result.RunID, "output_dir": result.OutputDir}).WithError(err).Warn("pipeline run ended early")
		return nil, err
	}
	return &carpetProcessResult{Result: result, Log: messages}, nil
}
