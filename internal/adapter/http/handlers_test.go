package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	imhttp "github.com/Strob0t/IntentMarket/internal/adapter/http"
	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/match"
	"github.com/Strob0t/IntentMarket/internal/domain/negotiation"
	"github.com/Strob0t/IntentMarket/internal/middleware"
	"github.com/Strob0t/IntentMarket/internal/port/database/databasetest"
	"github.com/Strob0t/IntentMarket/internal/secrets"
	"github.com/Strob0t/IntentMarket/internal/service"
)

const testAdminToken = "admin-secret"

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type testEnv struct {
	router chi.Router
	store  *databasetest.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets a test adjust the handlers before routes are mounted.
func newTestEnvWith(t *testing.T, adjust func(*imhttp.Handlers)) *testEnv {
	t.Helper()
	store := databasetest.NewStore()
	hub := ws.NewHub()
	c := &memCache{data: map[string][]byte{}}

	vault, err := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{secrets.SealKeyEnv: "test-master-key"}, nil
	})
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	matching := config.Defaults().Matching
	intents := service.NewIntentService(store, nil, hub, c, secrets.NewSealer(vault))
	matches := service.NewMatchService(store, nil, hub, func() config.Matching { return matching })
	h := &imhttp.Handlers{
		Agents:  service.NewAgentService(store, hub),
		Intents: intents,
		Matches: matches,
		Sweep:   service.NewSweepService(store, matches, hub, 2),
		Ingest:  service.NewIngestService(store, intents, config.Defaults().Breaker),
		Stats:   service.NewStatsService(store, c, time.Minute),
		DB:      pinger{},
		Version: "test",
	}
	if adjust != nil {
		adjust(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.Viewer)
	imhttp.MountRoutes(r, h, func() string { return testAdminToken })
	return &testEnv{router: r, store: store}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body == "" {
		rdr = bytes.NewReader(nil)
	} else {
		rdr = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const auditorAgentJSON = `{"wallet_address":"wallet-audit","name":"AuditBot","bio":"smart contract auditor","skills":["solana","rust"]}`
const auditorIntentJSON = `{"poster_wallet":"wallet-poster","title":"Need Solana smart contract auditor","description":"Looking for someone to review our rust program before mainnet launch","category":"security"}`

func (e *testEnv) createIntent(t *testing.T, body string, headers ...string) intent.Intent {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/intents", body, headers...)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create intent: %d %s", rec.Code, rec.Body.String())
	}
	return decode[intent.Intent](t, rec)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Fatalf("status field = %v", body["status"])
	}
}

func TestRegisterAgentIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(t, http.MethodPost, "/api/v1/agents", auditorAgentJSON)
	if first.Code != http.StatusCreated {
		t.Fatalf("first register: %d %s", first.Code, first.Body.String())
	}
	second := env.do(t, http.MethodPost, "/api/v1/agents",
		`{"wallet_address":"wallet-audit","name":"AuditBot v2","skills":[" solana ",""]}`)
	if second.Code != http.StatusCreated {
		t.Fatalf("second register: %d %s", second.Code, second.Body.String())
	}
	a1, a2 := decode[agent.Agent](t, first), decode[agent.Agent](t, second)
	if a1.ID != a2.ID {
		t.Fatalf("re-register created a new agent: %s vs %s", a1.ID, a2.ID)
	}
	if len(a2.Skills) != 1 || a2.Skills[0] != "solana" {
		t.Fatalf("skills not normalized: %v", a2.Skills)
	}

	list := env.do(t, http.MethodGet, "/api/v1/agents?available=true", "")
	if got := decode[[]agent.Agent](t, list); len(got) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(got))
	}

	get := env.do(t, http.MethodGet, "/api/v1/agents/wallet-audit", "")
	if get.Code != http.StatusOK {
		t.Fatalf("get agent: %d", get.Code)
	}
}

func TestRegisterAgentValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing key", `{"name":"x"}`, http.StatusBadRequest},
		{"missing name", `{"wallet_address":"w"}`, http.StatusBadRequest},
		{"malformed json", `{"wallet_address":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/agents", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestGetMissingAgentIs404(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/agents/nobody", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestFindMatchesFlow(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/agents", auditorAgentJSON)
	env.do(t, http.MethodPost, "/api/v1/agents", `{"wallet_address":"wallet-baker","name":"Baker","bio":"pastry chef"}`)
	in := env.createIntent(t, auditorIntentJSON)

	rec := env.do(t, http.MethodPost, "/api/v1/intents/"+in.ID+"/matches", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("find matches: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[service.Result](t, rec)
	if res.Count != 1 || res.Created != 1 || res.MatchCount != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Matches[0].CandidateName != "AuditBot" {
		t.Errorf("candidate name = %q", res.Matches[0].CandidateName)
	}

	// A second run refreshes instead of duplicating.
	rec = env.do(t, http.MethodPost, "/api/v1/intents/"+in.ID+"/matches", "")
	res = decode[service.Result](t, rec)
	if res.Created != 0 || res.Refreshed != 1 || res.MatchCount != 1 {
		t.Fatalf("second run: %+v", res)
	}

	list := decode[[]match.Match](t, env.do(t, http.MethodGet, "/api/v1/intents/"+in.ID+"/matches", ""))
	if len(list) != 1 {
		t.Fatalf("expected 1 stored match, got %d", len(list))
	}

	got := decode[intent.Intent](t, env.do(t, http.MethodGet, "/api/v1/intents/"+in.ID, ""))
	if got.MatchCount != 1 {
		t.Errorf("match_count = %d, want 1", got.MatchCount)
	}
}

func TestFindMatchesHasItsOwnRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter("matching", 0.001, 1, nil)
	env := newTestEnvWith(t, func(h *imhttp.Handlers) { h.MatchLimit = limiter.Handler })
	in := env.createIntent(t, auditorIntentJSON)
	path := "/api/v1/intents/" + in.ID + "/matches"

	if rec := env.do(t, http.MethodPost, path, "", middleware.HeaderViewerKey, "wallet-poster"); rec.Code != http.StatusOK {
		t.Fatalf("first run: %d %s", rec.Code, rec.Body.String())
	}
	rec := env.do(t, http.MethodPost, path, "", middleware.HeaderViewerKey, "wallet-poster")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second run: %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "matching") {
		t.Errorf("body %q should name the matching limit", rec.Body.String())
	}

	// Another poster and the read-only listing are unaffected.
	if rec := env.do(t, http.MethodPost, path, "", middleware.HeaderViewerKey, "wallet-other"); rec.Code != http.StatusOK {
		t.Errorf("other wallet: %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, path, "", middleware.HeaderViewerKey, "wallet-poster"); rec.Code != http.StatusOK {
		t.Errorf("listing matches: %d, want 200", rec.Code)
	}
}

func TestFindMatchesRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)
	in := env.createIntent(t, auditorIntentJSON)
	rec := env.do(t, http.MethodPost, "/api/v1/intents/"+in.ID+"/matches?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFindMatchesOnClosedIntentIs404(t *testing.T) {
	env := newTestEnv(t)
	in := env.createIntent(t, auditorIntentJSON)

	rec := env.do(t, http.MethodPatch, "/api/v1/intents/"+in.ID+"/status", `{"status":"closed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("close intent: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/intents/"+in.ID+"/matches", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestInvalidStatusNamesAllowedSet(t *testing.T) {
	env := newTestEnv(t)
	in := env.createIntent(t, auditorIntentJSON)

	rec := env.do(t, http.MethodPatch, "/api/v1/intents/"+in.ID+"/status", `{"status":"archived"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	msg := decode[map[string]string](t, rec)["error"]
	for _, s := range []string{"open", "matched", "closed"} {
		if !strings.Contains(msg, s) {
			t.Errorf("error %q does not name %q", msg, s)
		}
	}

	got := decode[intent.Intent](t, env.do(t, http.MethodGet, "/api/v1/intents/"+in.ID, ""))
	if got.Status != intent.StatusOpen {
		t.Errorf("status changed to %q after a rejected update", got.Status)
	}
}

func TestUpdateMatchStatus(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/agents", auditorAgentJSON)
	in := env.createIntent(t, auditorIntentJSON)
	res := decode[service.Result](t, env.do(t, http.MethodPost, "/api/v1/intents/"+in.ID+"/matches", ""))
	id := res.Matches[0].ID

	rec := env.do(t, http.MethodPatch, "/api/v1/matches/"+id+"/status", `{"status":"accepted"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", rec.Code, rec.Body.String())
	}
	if m := decode[match.Match](t, rec); m.Status != match.StatusAccepted {
		t.Fatalf("status = %q", m.Status)
	}

	if rec := env.do(t, http.MethodPatch, "/api/v1/matches/"+id+"/status", `{"status":"maybe"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodPatch, "/api/v1/matches/missing/status", `{"status":"accepted"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("missing match: %d, want 404", rec.Code)
	}

	accepted := decode[[]match.Match](t, env.do(t, http.MethodGet, "/api/v1/matches?status=accepted", ""))
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted match, got %d", len(accepted))
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/matches?status=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus filter: %d, want 400", rec.Code)
	}
}

func TestPrivateIntentRedaction(t *testing.T) {
	env := newTestEnv(t)
	body := `{"poster_wallet":"wallet-secret","title":"Acquire a competitor","description":"quietly","category":"finance","budget":"1M","is_private":true}`
	created := env.createIntent(t, body, middleware.HeaderViewerKey, "wallet-secret")
	if created.Title != "Acquire a competitor" {
		t.Fatalf("poster should see the revealed title, got %q", created.Title)
	}

	anon := decode[intent.Intent](t, env.do(t, http.MethodGet, "/api/v1/intents/"+created.ID, ""))
	if anon.Title != intent.RedactedTitle || anon.Budget != "" {
		t.Fatalf("anonymous view leaked: %+v", anon)
	}
	if anon.EncryptedData != "" {
		t.Fatal("anonymous view exposes the sealed payload")
	}

	owner := decode[intent.Intent](t, env.do(t, http.MethodGet, "/api/v1/intents/"+created.ID, "", middleware.HeaderViewerKey, "wallet-secret"))
	if owner.Title != "Acquire a competitor" || owner.Budget != "1M" {
		t.Fatalf("owner view not revealed: %+v", owner)
	}

	list := decode[[]intent.Intent](t, env.do(t, http.MethodGet, "/api/v1/intents", ""))
	if len(list) != 1 || list[0].Title != intent.RedactedTitle {
		t.Fatalf("listing leaked private title: %+v", list)
	}
}

func TestCreateIntentPosterMustMatchViewer(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/intents", auditorIntentJSON, middleware.HeaderViewerKey, "someone-else")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	// The header fills in a missing poster.
	in := env.createIntent(t, `{"title":"t","description":"d","category":"c"}`, middleware.HeaderViewerKey, "wallet-h")
	if in.PosterKey != "wallet-h" {
		t.Fatalf("poster = %q, want wallet-h", in.PosterKey)
	}
}

func TestListIntentsServesStaleOnOutage(t *testing.T) {
	env := newTestEnv(t)
	env.createIntent(t, auditorIntentJSON)

	if rec := env.do(t, http.MethodGet, "/api/v1/intents?status=open", ""); rec.Code != http.StatusOK {
		t.Fatalf("warm listing: %d", rec.Code)
	}

	env.store.SetDown(true)
	rec := env.do(t, http.MethodGet, "/api/v1/intents?status=open", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded listing: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Warning") == "" {
		t.Error("expected Warning header on stale listing")
	}
	if got := decode[[]intent.Intent](t, rec); len(got) != 1 {
		t.Fatalf("expected cached listing of 1, got %d", len(got))
	}

	// Non-listing reads surface the outage.
	if rec := env.do(t, http.MethodGet, "/api/v1/agents", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("agents during outage: %d, want 503", rec.Code)
	}
}

func TestListIntentsRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/v1/intents?status=pending", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestNegotiationLog(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/agents", auditorAgentJSON)
	in := env.createIntent(t, auditorIntentJSON)
	env.do(t, http.MethodPost, "/api/v1/intents/"+in.ID+"/matches", "")

	rec := env.do(t, http.MethodGet, "/api/v1/intents/"+in.ID+"/negotiation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("negotiation: %d %s", rec.Code, rec.Body.String())
	}
	entries := decode[[]negotiation.Entry](t, rec)
	if len(entries) != 2 {
		t.Fatalf("expected posted + proposed entries, got %d", len(entries))
	}
	if entries[0].Kind != negotiation.KindPosted || entries[1].Kind != negotiation.KindProposed {
		t.Fatalf("unexpected kinds: %s, %s", entries[0].Kind, entries[1].Kind)
	}
}

func TestCrossMatch(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIntent(t, `{"poster_wallet":"w1","title":"Need rust auditor for solana program","description":"audit rust solana program","category":"security","requirements":["rust","solana"]}`)
	env.createIntent(t, `{"poster_wallet":"w2","title":"Offering rust auditor for solana program","description":"audit rust solana program","category":"security","requirements":["rust","solana"]}`)

	rec := env.do(t, http.MethodPost, "/api/v1/intents/"+a.ID+"/cross-matches", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cross match: %d %s", rec.Code, rec.Body.String())
	}
	res := decode[service.Result](t, rec)
	if res.Count != 1 || res.Matches[0].CandidateKind != match.CandidateIntent {
		t.Fatalf("unexpected cross-match result: %+v", res)
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/agents", auditorAgentJSON)
	env.createIntent(t, auditorIntentJSON)

	rec := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["agents"] != float64(1) || body["open_intents"] != float64(1) {
		t.Fatalf("unexpected counts: %v", body)
	}
}

func TestOperatorTriggersRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/v1/sweep/run", "/api/v1/ingest/run"} {
		if rec := env.do(t, http.MethodPost, path, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: %d, want 401", path, rec.Code)
		}
		rec := env.do(t, http.MethodPost, path, "", "Authorization", "Bearer "+testAdminToken)
		if rec.Code != http.StatusOK {
			t.Errorf("%s with token: %d %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestSweepRunCrossMatchesOpenIntents(t *testing.T) {
	env := newTestEnv(t)
	env.createIntent(t, `{"poster_wallet":"w1","title":"Need rust auditor for solana program","description":"audit rust solana program","category":"security","requirements":["rust","solana"]}`)
	env.createIntent(t, `{"poster_wallet":"w2","title":"Offering rust auditor for solana program","description":"audit rust solana program","category":"security","requirements":["rust","solana"]}`)

	rec := env.do(t, http.MethodPost, "/api/v1/sweep/run", "", "Authorization", "Bearer "+testAdminToken)
	rep := decode[service.SweepReport](t, rec)
	if rep.Intents != 2 || rep.Created != 2 {
		t.Fatalf("unexpected sweep report: %+v", rep)
	}
}
