package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

const (
	dalleModel          = "dall-e-3"
	dalleDefaultSize    = "1024x1024"
	dalleDefaultQuality = "standard"
	dalleDefaultStyle   = "vivid"
)

// Dalle calls the OpenAI image generation endpoint.
type Dalle struct {
	apiKey     string
	baseURL    string
	keys       KeySource
	httpClient *http.Client
	logger     *infra.Logger
}

type dalleRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
}

type dalleResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func newDalle(cfg Config) *Dalle {
	base := strings.TrimRight(cfg.OpenAIBaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &Dalle{
		apiKey:     cfg.OpenAIAPIKey,
		baseURL:    base,
		keys:       cfg.Keys,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

func (d *Dalle) Kind() Kind { return KindDalle }

func (d *Dalle) Supports(rt domain.ResourceType) bool { return rt == domain.ResourceImage }

func (d *Dalle) Generate(ctx context.Context, req Request) (*Result, error) {
	if !d.Supports(req.Type) {
		return nil, providerErr(KindDalle, "unsupported resource type %q", req.Type)
	}
	key, err := resolveKey(ctx, KindDalle, d.keys, "openai", d.apiKey)
	if err != nil {
		return nil, err
	}

	payload := dalleRequest{
		Model:   dalleModel,
		Prompt:  req.Prompt,
		N:       1,
		Size:    orDefault(req.Params.Size, dalleDefaultSize),
		Quality: orDefault(req.Params.Quality, dalleDefaultQuality),
		Style:   orDefault(req.Params.Style, dalleDefaultStyle),
	}
	var decoded dalleResponse
	err = doJSON(ctx, d.httpClient, KindDalle, http.MethodPost, d.baseURL+"/images/generations",
		map[string]string{"Authorization": "Bearer " + key}, payload, &decoded, openAIErrorMessage)
	if err != nil {
		return nil, err
	}
	if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].URL) == "" {
		return nil, providerErr(KindDalle, "response contained no image url")
	}
	d.logger.Debug().
		Str("provider", string(KindDalle)).
		Str("size", payload.Size).
		Msg("dalle: generated image")
	return &Result{Asset: domain.Asset{Kind: domain.AssetKindURL, Value: decoded.Data[0].URL, MIME: "image/png"}}, nil
}

func openAIErrorMessage(raw []byte) string {
	var e openAIError
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	return e.Error.Message
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
