package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/IntentMarket/internal/service"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports whether a long-lived connection is up.
type ConnChecker interface {
	IsConnected() bool
}

// Handlers holds the HTTP handlers and their service dependencies.
type Handlers struct {
	Agents  *service.AgentService
	Intents *service.IntentService
	Matches *service.MatchService
	Sweep   *service.SweepService
	Ingest  *service.IngestService
	Stats   *service.StatsService

	// Health dependencies; nil ones are reported as "disabled".
	DB    Pinger
	Queue ConnChecker

	// MatchLimit wraps the find-matches and cross-match routes; nil adds
	// no limit beyond the router's own.
	MatchLimit func(http.Handler) http.Handler

	Version string
}

type healthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Checks   map[string]string `json:"checks"`
	Duration string            `json:"duration"`
}

// Health reports liveness plus the state of the database and the message
// queue. Any failing dependency turns the response into a 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: h.Version, Checks: map[string]string{}}
	switch {
	case h.DB == nil:
		resp.Checks["postgres"] = "disabled"
	case h.DB.Ping(ctx) != nil:
		resp.Checks["postgres"] = "unreachable"
		resp.Status = "degraded"
	default:
		resp.Checks["postgres"] = "ok"
	}
	switch {
	case h.Queue == nil:
		resp.Checks["nats"] = "disabled"
	case !h.Queue.IsConnected():
		resp.Checks["nats"] = "disconnected"
		resp.Status = "degraded"
	default:
		resp.Checks["nats"] = "ok"
	}
	resp.Duration = time.Since(start).String()

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// markStale flags a response served from the degraded-read cache.
func markStale(w http.ResponseWriter) {
	w.Header().Set("Warning", `110 - "Response is Stale"`)
}
