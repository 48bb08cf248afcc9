package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/negotiation"
	"github.com/Strob0t/IntentMarket/internal/middleware"
)

// statusRequest is the body of the status PATCH endpoints.
type statusRequest struct {
	Status string `json:"status"`
}

// CreateIntent handles POST /api/v1/intents. When the caller sends
// X-Wallet-Address it must equal poster_wallet.
func (h *Handlers) CreateIntent(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	handleCreate(maxRequestBodySize, func(ctx context.Context, req intent.CreateRequest) (*intent.Intent, error) {
		switch {
		case req.PosterKey == "":
			req.PosterKey = viewer
		case viewer != "" && strings.TrimSpace(req.PosterKey) != viewer:
			return nil, fmt.Errorf("poster_wallet does not match %s: %w", middleware.HeaderViewerKey, domain.ErrValidation)
		}
		return h.Intents.Create(ctx, req)
	})(w, r)
}

// ListIntents handles GET /api/v1/intents?status=&category=&poster=&limit=.
// Private intents are redacted unless the viewer posted them. When the
// store is unreachable the last good listing is served with a Warning header.
func (h *Handlers) ListIntents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := intent.ListFilter{
		Status:    intent.Status(q.Get("status")),
		Category:  q.Get("category"),
		PosterKey: q.Get("poster"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be one of open, matched, closed")
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	filter.Limit = limit

	items, stale, err := h.Intents.List(r.Context(), filter, middleware.ViewerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err, "intents not found")
		return
	}
	if items == nil {
		items = []intent.Intent{}
	}
	if stale {
		markStale(w)
	}
	writeJSON(w, http.StatusOK, items)
}

// GetIntent handles GET /api/v1/intents/{id}.
func (h *Handlers) GetIntent(w http.ResponseWriter, r *http.Request) {
	handleGet("id", h.Intents.Get, "intent not found")(w, r)
}

// UpdateIntentStatus handles PATCH /api/v1/intents/{id}/status.
func (h *Handlers) UpdateIntentStatus(w http.ResponseWriter, r *http.Request) {
	handleUpdate(maxRequestBodySize, func(ctx context.Context, id, viewer string, req statusRequest) (*intent.Intent, error) {
		return h.Intents.UpdateStatus(ctx, id, intent.Status(req.Status), viewer)
	}, "intent not found")(w, r)
}

// NegotiationLog handles GET /api/v1/intents/{id}/negotiation.
func (h *Handlers) NegotiationLog(w http.ResponseWriter, r *http.Request) {
	handleListByParam[negotiation.Entry]("id", h.Intents.NegotiationLog, "intent not found")(w, r)
}
