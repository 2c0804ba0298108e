package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

const (
	replicateDefaultFrames = 24
	replicateFrameSize     = 768
)

// Replicate starts a video prediction and polls it until it settles.
type Replicate struct {
	token        string
	baseURL      string
	version      string
	pollInterval time.Duration
	keys         KeySource
	httpClient   *http.Client
	logger       *infra.Logger
}

type replicateInput struct {
	Prompt    string `json:"prompt"`
	NumFrames int    `json:"num_frames"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type replicateRequest struct {
	Version string         `json:"version"`
	Input   replicateInput `json:"input"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

func newReplicate(cfg Config) *Replicate {
	base := strings.TrimRight(cfg.ReplicateBaseURL, "/")
	if base == "" {
		base = "https://api.replicate.com/v1"
	}
	return &Replicate{
		token:        cfg.ReplicateAPIToken,
		baseURL:      base,
		version:      cfg.ReplicateModelVersion,
		pollInterval: cfg.ReplicatePollInterval,
		keys:         cfg.Keys,
		httpClient:   cfg.HTTPClient,
		logger:       cfg.Logger,
	}
}

func (r *Replicate) Kind() Kind { return KindReplicate }

func (r *Replicate) Supports(rt domain.ResourceType) bool { return rt == domain.ResourceVideo }

func (r *Replicate) Generate(ctx context.Context, req Request) (*Result, error) {
	if !r.Supports(req.Type) {
		return nil, providerErr(KindReplicate, "unsupported resource type %q", req.Type)
	}
	if r.version == "" {
		return nil, providerErr(KindReplicate, "model version not configured")
	}
	token, err := resolveKey(ctx, KindReplicate, r.keys, "replicate", r.token)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"Authorization": "Token " + token}

	frames := req.Params.Duration
	if frames <= 0 {
		frames = replicateDefaultFrames
	}
	payload := replicateRequest{
		Version: r.version,
		Input: replicateInput{
			Prompt:    req.Prompt,
			NumFrames: frames,
			Width:     replicateFrameSize,
			Height:    replicateFrameSize,
		},
	}
	var pred replicatePrediction
	if err := doJSON(ctx, r.httpClient, KindReplicate, http.MethodPost, r.baseURL+"/predictions", headers, payload, &pred, replicateErrorMessage); err != nil {
		return nil, err
	}
	if pred.ID == "" {
		return nil, providerErr(KindReplicate, "response contained no prediction id")
	}
	pollURL := pred.URLs.Get
	if pollURL == "" {
		pollURL = r.baseURL + "/predictions/" + pred.ID
	}
	r.logger.Debug().
		Str("provider", string(KindReplicate)).
		Str("prediction_id", pred.ID).
		Msg("replicate: prediction started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		switch pred.Status {
		case "succeeded":
			url := firstOutputURL(pred.Output)
			if url == "" {
				return nil, providerErr(KindReplicate, "prediction %s succeeded without output", pred.ID)
			}
			return &Result{ID: pred.ID, Asset: domain.Asset{Kind: domain.AssetKindURL, Value: url, MIME: "video/mp4"}}, nil
		case "failed", "canceled":
			msg := predictionError(pred.Error)
			if msg == "" {
				msg = "prediction " + pred.Status
			}
			return nil, providerErr(KindReplicate, "%s", msg)
		}

		select {
		case <-ctx.Done():
			return nil, wrapErr(KindReplicate, "prediction "+pred.ID+" not finished", ctx.Err())
		case <-ticker.C:
		}

		var next replicatePrediction
		if err := doJSON(ctx, r.httpClient, KindReplicate, http.MethodGet, pollURL, headers, nil, &next, replicateErrorMessage); err != nil {
			var pe *domain.ProviderError
			if errors.As(err, &pe) && ctx.Err() != nil {
				return nil, wrapErr(KindReplicate, "prediction "+pred.ID+" not finished", ctx.Err())
			}
			return nil, err
		}
		if next.ID == "" {
			next.ID = pred.ID
		}
		pred = next
	}
}

// firstOutputURL accepts a string output or a list of strings.
func firstOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if json.Unmarshal(raw, &single) == nil {
		return strings.TrimSpace(single)
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		for _, v := range list {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func predictionError(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		raw, _ := json.Marshal(e)
		return string(raw)
	}
}

func replicateErrorMessage(raw []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if json.Unmarshal(raw, &e) != nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}
