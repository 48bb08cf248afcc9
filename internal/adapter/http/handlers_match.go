package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/IntentMarket/internal/domain/match"
	"github.com/Strob0t/IntentMarket/internal/service"
)

// FindMatches handles POST /api/v1/intents/{id}/matches?limit=N. It scores
// the intent against all available agents and returns the rows it wrote.
func (h *Handlers) FindMatches(w http.ResponseWriter, r *http.Request) {
	h.runMatches(w, r, h.Matches.FindMatches)
}

// CrossMatch handles POST /api/v1/intents/{id}/cross-matches?limit=N.
func (h *Handlers) CrossMatch(w http.ResponseWriter, r *http.Request) {
	h.runMatches(w, r, h.Matches.CrossMatch)
}

func (h *Handlers) runMatches(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, id string, limit int) (*service.Result, error)) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	id := urlParam(r, "id")
	res, err := run(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The caller is gone; rows written so far are kept.
			slog.Info("find matches interrupted", "intent_id", id, "error", err)
			return
		}
		writeDomainError(w, r, err, "intent not found or not open")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListIntentMatches handles GET /api/v1/intents/{id}/matches.
func (h *Handlers) ListIntentMatches(w http.ResponseWriter, r *http.Request) {
	handleListByParam("id", func(ctx context.Context, id, _ string) ([]match.Match, error) {
		return h.Matches.ListByIntent(ctx, id)
	}, "intent not found")(w, r)
}

// ListMatches handles GET /api/v1/matches?status=&intent_id=&limit=.
func (h *Handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	items, err := h.Matches.List(r.Context(), match.ListFilter{
		IntentID: q.Get("intent_id"),
		Status:   match.Status(q.Get("status")),
		Limit:    limit,
	})
	if err != nil {
		writeDomainError(w, r, err, "matches not found")
		return
	}
	if items == nil {
		items = []match.Match{}
	}
	writeJSON(w, http.StatusOK, items)
}

// UpdateMatchStatus handles PATCH /api/v1/matches/{id}/status.
func (h *Handlers) UpdateMatchStatus(w http.ResponseWriter, r *http.Request) {
	handleUpdate(maxRequestBodySize, func(ctx context.Context, id, _ string, req statusRequest) (*match.Match, error) {
		return h.Matches.UpdateStatus(ctx, id, match.Status(req.Status))
	}, "match not found")(w, r)
}
