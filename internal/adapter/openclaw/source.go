// Package openclaw implements an intentsource.Source that syncs active
// intents from an OpenClaw protocol endpoint.
package openclaw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/port/intentsource"
)

const (
	sourceName       = "openclaw"
	defaultCategory  = "other"
	maxResponseBytes = 8 << 20
)

// Source syncs OpenClaw intents.
type Source struct {
	baseURL    string
	apiKey     string
	limit      int
	userAgent  string
	httpClient *http.Client
}

// NewSource creates an OpenClaw source. A non-positive limit defaults to 100.
func NewSource(cfg intentsource.Config) *Source {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		limit:      limit,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Source) Name() string { return sourceName }

// remoteIntent mirrors an intent in the OpenClaw API.
type remoteIntent struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Requirements []string `json:"requirements"`
	AgentWallet  string   `json:"agent_wallet"`
	AgentName    string   `json:"agent_name"`
	Status       string   `json:"status"`
}

// Fetch returns the active remote intents. Records without an ID, a wallet
// or a title are dropped.
func (s *Source) Fetch(ctx context.Context) ([]intent.CreateRequest, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", s.limit))
	q.Set("status", "active")

	body, err := s.doRequest(ctx, s.baseURL+"/intents?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("openclaw list intents: %w", err)
	}
	remote, err := decodeIntents(body)
	if err != nil {
		return nil, fmt.Errorf("openclaw parse response: %w", err)
	}

	out := make([]intent.CreateRequest, 0, len(remote))
	for i := range remote {
		r := &remote[i]
		if r.ID == "" || r.AgentWallet == "" || strings.TrimSpace(r.Title) == "" {
			continue
		}
		if r.Status != "" && r.Status != "active" {
			continue
		}
		out = append(out, s.toRequest(r))
	}
	return out, nil
}

func (s *Source) toRequest(r *remoteIntent) intent.CreateRequest {
	category := r.Category
	if category == "" {
		category = defaultCategory
	}
	description := r.Description
	if strings.TrimSpace(description) == "" {
		description = r.Title
	}
	return intent.CreateRequest{
		PosterKey:      r.AgentWallet,
		PosterName:     r.AgentName,
		Title:          r.Title,
		Description:    description,
		Category:       category,
		Urgency:        intent.UrgencyMedium,
		Requirements:   r.Requirements,
		SourcePlatform: sourceName,
		SourceURL:      s.baseURL + "/intents/" + url.PathEscape(r.ID),
	}
}

// decodeIntents accepts both {"intents": [...]} and a bare array.
func decodeIntents(body []byte) ([]remoteIntent, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []remoteIntent
		err := json.Unmarshal(body, &list)
		return list, err
	}
	var wrapped struct {
		Intents []remoteIntent `json:"intents"`
	}
	err := json.Unmarshal(body, &wrapped)
	return wrapped.Intents, err
}

func (s *Source) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req) //nolint:gosec // G704: URL is constructed from trusted config
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openclaw API %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
