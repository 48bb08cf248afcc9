package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/service"
)

type fakeMatcher struct {
	calls []string
}

func (f *fakeMatcher) FindMatches(_ context.Context, id string, limit int) (*service.Result, error) {
	f.calls = append(f.calls, fmt.Sprintf("find:%s:%d", id, limit))
	if id == "closed" {
		return nil, fmt.Errorf("intent closed: %w", domain.ErrNotFound)
	}
	return &service.Result{Count: 1, Created: 1}, nil
}

func (f *fakeMatcher) CrossMatch(_ context.Context, id string, limit int) (*service.Result, error) {
	f.calls = append(f.calls, fmt.Sprintf("cross:%s:%d", id, limit))
	return &service.Result{}, nil
}

type fakeLister struct {
	filter intent.ListFilter
}

func (f *fakeLister) List(_ context.Context, filter intent.ListFilter, _ string) ([]intent.Intent, bool, error) {
	f.filter = filter
	return []intent.Intent{{ID: "i1", Title: "Need auditor", Status: intent.StatusOpen}}, false, nil
}

func newTestRouter() (*chi.Mux, *fakeMatcher, *fakeLister) {
	m, l := &fakeMatcher{}, &fakeLister{}
	h := NewHandler("http://localhost:8080", "1.0.0", m, l)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r, m, l
}

func postTask(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, TaskResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/a2a/tasks", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp TaskResponse
	if w.Code == http.StatusCreated {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return w, resp
}

func TestAgentCard(t *testing.T) {
	r, _, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if card.Name != "IntentMarket" {
		t.Fatalf("expected name IntentMarket, got %s", card.Name)
	}
	if card.URL != "http://localhost:8080" || card.Version != "1.0.0" {
		t.Fatalf("unexpected url/version: %s %s", card.URL, card.Version)
	}
	if len(card.Skills) != 3 {
		t.Fatalf("expected 3 skills, got %d", len(card.Skills))
	}
}

func TestFindMatchesTask(t *testing.T) {
	r, m, _ := newTestRouter()

	w, resp := postTask(t, r, `{"id":"t-1","skill":"find_matches","input":{"intent_id":"abc","limit":5}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Status != a2a.TaskStateCompleted {
		t.Fatalf("expected completed, got %s (%s)", resp.Status, resp.Error)
	}
	if len(m.calls) != 1 || m.calls[0] != "find:abc:5" {
		t.Fatalf("unexpected matcher calls: %v", m.calls)
	}

	req := httptest.NewRequest(http.MethodGet, "/a2a/tasks/t-1", http.NoBody)
	gw := httptest.NewRecorder()
	r.ServeHTTP(gw, req)
	if gw.Code != http.StatusOK {
		t.Fatalf("get task: %d", gw.Code)
	}
}

func TestTaskFailuresAreRecorded(t *testing.T) {
	r, _, _ := newTestRouter()

	tests := []struct {
		name, body, wantErr string
	}{
		{"closed intent", `{"id":"f-1","skill":"find_matches","input":{"intent_id":"closed"}}`, "intent not found or not open"},
		{"missing intent id", `{"id":"f-2","skill":"cross_match","input":{}}`, "intent_id is required: validation failed"},
		{"unknown skill", `{"id":"f-3","skill":"write_code","input":{}}`, `unknown skill "write_code": validation failed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := postTask(t, r, tt.body)
			if resp.Status != a2a.TaskStateFailed {
				t.Fatalf("expected failed, got %s", resp.Status)
			}
			if resp.Error != tt.wantErr {
				t.Fatalf("error = %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestListOpenIntentsTask(t *testing.T) {
	r, _, l := newTestRouter()
	_, resp := postTask(t, r, `{"id":"l-1","skill":"list_open_intents","input":{"category":"security"}}`)
	if resp.Status != a2a.TaskStateCompleted {
		t.Fatalf("expected completed, got %s", resp.Status)
	}
	if l.filter.Status != intent.StatusOpen || l.filter.Category != "security" {
		t.Fatalf("unexpected filter: %+v", l.filter)
	}
}

func TestDuplicateTaskID(t *testing.T) {
	r, _, _ := newTestRouter()
	postTask(t, r, `{"id":"dup","skill":"cross_match","input":{"intent_id":"x"}}`)
	w, _ := postTask(t, r, `{"id":"dup","skill":"cross_match","input":{"intent_id":"x"}}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCreateTaskMissingID(t *testing.T) {
	r, _, _ := newTestRouter()
	w, _ := postTask(t, r, `{"skill":"find_matches"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	r, _, _ := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/a2a/tasks/nonexistent", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTaskHistoryIsBounded(t *testing.T) {
	h := NewHandler("", "", &fakeMatcher{}, &fakeLister{})
	for i := range maxTasks + 5 {
		h.store(&TaskResponse{ID: fmt.Sprintf("t-%d", i)})
	}
	if len(h.tasks) != maxTasks {
		t.Fatalf("expected %d tasks, got %d", maxTasks, len(h.tasks))
	}
	if _, ok := h.tasks["t-0"]; ok {
		t.Fatal("oldest task was not evicted")
	}
}
