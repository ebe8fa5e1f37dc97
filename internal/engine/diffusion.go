package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/carpet-design/internal/imaging"
)

// DiffusionOptions configures a DiffusionClient.
type DiffusionOptions struct {
	// Endpoint is the base URL of the ControlNet inference service.
	Endpoint string
	// BaseModel and ControlModel are forwarded to the service. Values that
	// look like local paths must exist on disk.
	BaseModel    string
	ControlModel string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       logrus.FieldLogger
}

// DiffusionClient runs generation on a remote Stable Diffusion + ControlNet
// service over HTTP.
type DiffusionClient struct {
	endpoint     string
	baseModel    string
	controlModel string
	httpClient   *http.Client
	logger       logrus.FieldLogger
}

type generatePayload struct {
	BaseModel         string  `json:"base_model"`
	ControlModel      string  `json:"controlnet_model"`
	ControlImage      string  `json:"control_image"`
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Steps             int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	ConditioningScale float64 `json:"controlnet_conditioning_scale"`
	Seed              *int64  `json:"seed,omitempty"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
}

type generateResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error"`
}

// NewDiffusionClient validates options and returns a ready client.
//
// It fails with a MissingDependencyError when no endpoint is configured or
// when a model given as a local path is absent.
func NewDiffusionClient(opts DiffusionOptions) (*DiffusionClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, &MissingDependencyError{
			Dependency: "generation endpoint",
			Reason:     "set generation.endpoint or CARPET_GENERATION_ENDPOINT",
		}
	}
	for _, model := range []string{opts.BaseModel, opts.ControlModel} {
		if err := checkLocalModel(model); err != nil {
			return nil, err
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	return &DiffusionClient{
		endpoint:     endpoint,
		baseModel:    strings.TrimSpace(opts.BaseModel),
		controlModel: strings.TrimSpace(opts.ControlModel),
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// looksLocal reports whether a model identifier names a file rather than a
// hub repository id.
func looksLocal(model string) bool {
	if filepath.IsAbs(model) || strings.HasPrefix(model, "./") || strings.HasPrefix(model, "../") {
		return true
	}
	switch strings.ToLower(filepath.Ext(model)) {
	case ".safetensors", ".ckpt", ".pth", ".bin":
		return true
	}
	return false
}

func checkLocalModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" || !looksLocal(model) {
		return nil
	}
	if _, err := os.Stat(model); err != nil {
		return &MissingDependencyError{Dependency: model, Reason: "model checkpoint not found"}
	}
	return nil
}

// Generate implements Generator.
func (c *DiffusionClient) Generate(ctx context.Context, req GenerateRequest) ([]image.Image, error) {
	if req.Control == nil {
		return nil, errors.New("diffusion: control image is required")
	}
	width, height := req.Width/8*8, req.Height/8*8
	if width == 0 || height == 0 {
		return nil, errors.Errorf("diffusion: output size %dx%d is below 8 pixels", req.Width, req.Height)
	}

	control, err := imaging.EncodePNGBase64(req.Control)
	if err != nil {
		return nil, errors.Wrap(err, "diffusion: encode control image")
	}
	payload := generatePayload{
		BaseModel:         c.baseModel,
		ControlModel:      c.controlModel,
		ControlImage:      control,
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		Steps:             req.Steps,
		GuidanceScale:     req.GuidanceScale,
		ConditioningScale: req.ConditioningScale,
		Width:             width,
		Height:            height,
	}
	if req.Seed >= 0 {
		seed := req.Seed
		payload.Seed = &seed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "diffusion: encode request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "diffusion: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "diffusion: http request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "diffusion: read response")
	}

	var decoded generateResponse
	if resp.StatusCode >= 300 {
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != "" {
			return nil, errors.Errorf("diffusion: %s (status %d)", decoded.Error, resp.StatusCode)
		}
		return nil, errors.Errorf("diffusion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errors.Wrap(err, "diffusion: decode response")
	}
	if decoded.Error != "" {
		return nil, errors.Errorf("diffusion: %s", decoded.Error)
	}
	if len(decoded.Images) == 0 {
		return nil, errors.New("diffusion: service returned no images")
	}

	images := make([]image.Image, 0, len(decoded.Images))
	for i, data := range decoded.Images {
		img, err := imaging.DecodePNGBase64(data)
		if err != nil {
			return nil, errors.Wrapf(err, "diffusion: image %d", i)
		}
		images = append(images, img)
	}

	c.logger.WithFields(logrus.Fields{
		"base_model":    c.baseModel,
		"control_model": c.controlModel,
		"size":          fmt.Sprintf("%dx%d", width, height),
		"images":        len(images),
		"elapsed":       time.Since(start).Round(time.Millisecond).String(),
	}).Debug("diffusion: generated images")
	return images, nil
}

var _ Generator = (*DiffusionClient)(nil)
