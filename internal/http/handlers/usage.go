package handlers

import (
	"net/http"

	"genstudio/internal/domain"
)

type entitlementDTO struct {
	Used      int  `json:"used"`
	Limit     *int `json:"limit"`
	Remaining *int `json:"remaining"`
}

func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	snap, err := a.Evaluator.Snapshot(r.Context(), userID, a.now())
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	ents := make(map[domain.ResourceType]entitlementDTO, len(snap.Entitlements))
	for rt, e := range snap.Entitlements {
		ents[rt] = entitlementDTO{Used: e.Used, Limit: e.Limit, Remaining: e.Remaining}
	}
	gens := make([]recordDTO, 0, len(snap.Generations))
	for _, rec := range snap.Generations {
		gens = append(gens, toRecord(rec))
	}
	a.json(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"plan":        snap.Plan,
			"usage":       ents,
			"generations": gens,
			"resetDate":   snap.ResetAt,
		},
	})
}
