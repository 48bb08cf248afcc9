package http

import (
	"net/http"

	"github.com/Strob0t/IntentMarket/internal/domain/agent"
)

// RegisterAgent handles POST /api/v1/agents. Registering an existing
// wallet address updates that agent.
func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	handleCreate(maxRequestBodySize, h.Agents.Register)(w, r)
}

// ListAgents handles GET /api/v1/agents?available=true&limit=N.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	available, ok := queryBool(w, r, "available")
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	agents, err := h.Agents.List(r.Context(), agent.ListFilter{AvailableOnly: available, Limit: limit})
	if err != nil {
		writeDomainError(w, r, err, "agents not found")
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetAgent handles GET /api/v1/agents/{key}.
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Agents.Get(r.Context(), urlParam(r, "key"))
	if err != nil {
		writeDomainError(w, r, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}
