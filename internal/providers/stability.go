package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Stability calls the Stability AI text-to-image endpoint, which answers with
// inline base64 PNG artifacts.
type Stability struct {
	apiKey     string
	baseURL    string
	engine     string
	keys       KeySource
	httpClient *http.Client
	logger     *infra.Logger
}

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CFGScale    int               `json:"cfg_scale"`
	Height      int               `json:"height"`
	Width       int               `json:"width"`
	Steps       int               `json:"steps"`
	Samples     int               `json:"samples"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		Seed         int64  `json:"seed"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

func newStability(cfg Config) *Stability {
	base := strings.TrimRight(cfg.StabilityBaseURL, "/")
	if base == "" {
		base = "https://api.stability.ai/v1"
	}
	engine := strings.TrimSpace(cfg.StabilityEngine)
	if engine == "" {
		engine = "stable-diffusion-xl-1024-v1-0"
	}
	return &Stability{
		apiKey:     cfg.StabilityAPIKey,
		baseURL:    base,
		engine:     engine,
		keys:       cfg.Keys,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

func (s *Stability) Kind() Kind { return KindStability }

func (s *Stability) Supports(rt domain.ResourceType) bool { return rt == domain.ResourceImage }

func (s *Stability) Generate(ctx context.Context, req Request) (*Result, error) {
	if !s.Supports(req.Type) {
		return nil, providerErr(KindStability, "unsupported resource type %q", req.Type)
	}
	key, err := resolveKey(ctx, KindStability, s.keys, "stability", s.apiKey)
	if err != nil {
		return nil, err
	}

	payload := stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: req.Prompt, Weight: 1}},
		CFGScale:    7,
		Height:      1024,
		Width:       1024,
		Steps:       30,
		Samples:     1,
	}
	var decoded stabilityResponse
	endpoint := s.baseURL + "/generation/" + s.engine + "/text-to-image"
	err = doJSON(ctx, s.httpClient, KindStability, http.MethodPost, endpoint,
		map[string]string{"Authorization": "Bearer " + key}, payload, &decoded, stabilityErrorMessage)
	if err != nil {
		return nil, err
	}
	if len(decoded.Artifacts) == 0 || strings.TrimSpace(decoded.Artifacts[0].Base64) == "" {
		return nil, providerErr(KindStability, "response contained no artifacts")
	}
	art := decoded.Artifacts[0]
	if art.FinishReason == "ERROR" {
		return nil, providerErr(KindStability, "generation finished with error")
	}
	s.logger.Debug().
		Str("provider", string(KindStability)).
		Str("engine", s.engine).
		Int64("seed", art.Seed).
		Msg("stability: generated image")
	return &Result{Asset: domain.Asset{Kind: domain.AssetKindInline, Value: art.Base64, MIME: "image/png"}}, nil
}

func stabilityErrorMessage(raw []byte) string {
	var e struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	return e.Message
}
