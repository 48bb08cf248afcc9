package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/service"
)

// maxTasks bounds the in-memory task history; the oldest task is evicted.
const maxTasks = 1000

// Matcher runs find-matches passes.
type Matcher interface {
	FindMatches(ctx context.Context, intentID string, limit int) (*service.Result, error)
	CrossMatch(ctx context.Context, intentID string, limit int) (*service.Result, error)
}

// IntentLister lists intents with private ones redacted for viewerKey.
type IntentLister interface {
	List(ctx context.Context, filter intent.ListFilter, viewerKey string) ([]intent.Intent, bool, error)
}

// Handler serves the A2A endpoints.
type Handler struct {
	baseURL string
	version string
	matcher Matcher
	intents IntentLister

	mu    sync.RWMutex
	tasks map[string]*TaskResponse
	order []string
}

// NewHandler creates an A2A handler.
func NewHandler(baseURL, version string, matcher Matcher, intents IntentLister) *Handler {
	return &Handler{
		baseURL: baseURL,
		version: version,
		matcher: matcher,
		intents: intents,
		tasks:   make(map[string]*TaskResponse),
	}
}

// MountRoutes registers A2A routes on the given chi router.
// These are mounted at the root level, not under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", h.handleAgentCard)
	r.Post("/a2a/tasks", h.handleCreateTask)
	r.Get("/a2a/tasks/{id}", h.handleGetTask)
}

func (h *Handler) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BuildAgentCard(h.baseURL, h.version))
}

// handleCreateTask runs the requested skill synchronously. Skill failures
// are recorded on the task, which is still created.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	h.mu.RLock()
	_, exists := h.tasks[req.ID]
	h.mu.RUnlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task id already used"})
		return
	}

	resp := &TaskResponse{ID: req.ID, Skill: req.Skill, Status: a2a.TaskStateCompleted, CreatedAt: time.Now().UTC()}
	out, err := h.run(r.Context(), req)
	if err != nil {
		resp.Status = a2a.TaskStateFailed
		resp.Error = clientError(err)
	} else {
		resp.Output = out
	}
	h.store(resp)

	slog.Info("a2a task finished", "id", req.ID, "skill", req.Skill, "status", resp.Status)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) run(ctx context.Context, req TaskRequest) (any, error) {
	switch req.Skill {
	case SkillFindMatches, SkillCrossMatch:
		id, _ := req.Input["intent_id"].(string)
		if id == "" {
			return nil, fmt.Errorf("intent_id is required: %w", domain.ErrValidation)
		}
		limit := intInput(req.Input, "limit")
		if req.Skill == SkillCrossMatch {
			return h.matcher.CrossMatch(ctx, id, limit)
		}
		return h.matcher.FindMatches(ctx, id, limit)
	case SkillListOpenIntents:
		category, _ := req.Input["category"].(string)
		items, _, err := h.intents.List(ctx, intent.ListFilter{
			Status:   intent.StatusOpen,
			Category: category,
			Limit:    intInput(req.Input, "limit"),
		}, "")
		return items, err
	default:
		return nil, fmt.Errorf("unknown skill %q: %w", req.Skill, domain.ErrValidation)
	}
}

func (h *Handler) store(resp *TaskResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.order) >= maxTasks {
		delete(h.tasks, h.order[0])
		h.order = h.order[1:]
	}
	h.tasks[resp.ID] = resp
	h.order = append(h.order, resp.ID)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.RLock()
	resp, ok := h.tasks[id]
	h.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// clientError keeps domain errors readable and hides everything else.
func clientError(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidStatus):
		return err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "intent not found or not open"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "service temporarily unavailable"
	default:
		slog.Error("a2a task failed", "error", err)
		return "internal error"
	}
}

// intInput reads a JSON number input; absent or invalid values are 0.
func intInput(in map[string]any, key string) int {
	if v, ok := in[key].(float64); ok && v > 0 {
		return int(v)
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("a2a: failed to write response", "error", err)
	}
}
