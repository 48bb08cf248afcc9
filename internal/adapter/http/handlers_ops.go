package http

import (
	"net/http"

	"github.com/Strob0t/IntentMarket/internal/domain/stats"
)

type statsResponse struct {
	stats.Counts
	Stale bool `json:"stale,omitempty"`
}

// GetStats handles GET /api/v1/stats.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, stale, err := h.Stats.Get(r.Context())
	if err != nil {
		writeDomainError(w, r, err, "stats not found")
		return
	}
	if stale {
		markStale(w)
	}
	writeJSON(w, http.StatusOK, statsResponse{Counts: counts, Stale: stale})
}

// RunSweep handles POST /api/v1/sweep/run. A pass already in progress is
// reported with 409 and skipped set.
func (h *Handlers) RunSweep(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Sweep.RunOnce(r.Context())
	if err != nil {
		writeDomainError(w, r, err, "sweep failed")
		return
	}
	status := http.StatusOK
	if rep.Skipped {
		status = http.StatusConflict
	}
	writeJSON(w, status, rep)
}

// RunIngest handles POST /api/v1/ingest/run.
func (h *Handlers) RunIngest(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Ingest.RunOnce(r.Context())
	if err != nil {
		writeDomainError(w, r, err, "ingest failed")
		return
	}
	status := http.StatusOK
	if rep.Busy {
		status = http.StatusConflict
	}
	writeJSON(w, status, rep)
}
