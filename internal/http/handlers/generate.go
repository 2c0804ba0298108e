package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/providers"
)

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
	Size     string `json:"size"`
	Quality  string `json:"quality"`
	Style    string `json:"style"`
	Duration int    `json:"duration"`
}

type generationDTO struct {
	ID        string              `json:"id"`
	URL       string              `json:"url"`
	Kind      domain.ResourceType `json:"kind"`
	Prompt    string              `json:"prompt"`
	Provider  string              `json:"provider"`
	CreatedAt time.Time           `json:"createdAt"`
}

type usageDTO struct {
	Used  int         `json:"used"`
	Limit *int        `json:"limit"`
	Plan  domain.Plan `json:"plan"`
}

type recordDTO struct {
	ID        string                  `json:"id"`
	Type      domain.ResourceType     `json:"type"`
	Prompt    string                  `json:"prompt"`
	Provider  string                  `json:"provider"`
	Status    domain.GenerationStatus `json:"status"`
	Result    string                  `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

func toRecord(rec domain.GenerationRecord) recordDTO {
	return recordDTO{
		ID:        rec.ID,
		Type:      rec.Type,
		Prompt:    rec.Prompt,
		Provider:  rec.Provider,
		Status:    rec.Status,
		Result:    rec.Result,
		Error:     rec.ErrorMessage,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (a *App) GenerateImage(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, domain.ResourceImage)
}

func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	a.generate(w, r, domain.ResourceVideo)
}

func (a *App) generate(w http.ResponseWriter, r *http.Request, rt domain.ResourceType) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req generateRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var kind providers.Kind
	if req.Provider != "" {
		k, ok := providers.ParseKind(req.Provider)
		if !ok {
			a.error(w, http.StatusBadRequest, "Unknown provider")
			return
		}
		kind = k
	}

	res, err := a.Generator.Submit(r.Context(), generation.Request{
		UserID:   userID,
		Type:     rt,
		Prompt:   req.Prompt,
		Provider: kind,
		Params: providers.Params{
			Size:     req.Size,
			Quality:  req.Quality,
			Style:    req.Style,
			Duration: req.Duration,
		},
	})
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusForbidden)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"data": generationDTO{
			ID:        res.Record.ID,
			URL:       res.Record.Result,
			Kind:      res.Record.Type,
			Prompt:    res.Record.Prompt,
			Provider:  res.Record.Provider,
			CreatedAt: res.Record.CreatedAt,
		},
		"usage": usageDTO{Used: res.Usage.Used, Limit: res.Usage.Limit, Plan: res.Usage.Plan},
	})
}

// Generation returns one ledger entry. Records of other users are reported as
// missing.
func (a *App) Generation(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	rec, err := a.Store.Ledger().GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	if rec.UserID != userID {
		a.writeDomainError(w, r, domain.ErrNotFound, http.StatusNotFound)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "data": toRecord(*rec)})
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
