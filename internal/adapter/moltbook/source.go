// Package moltbook implements an intentsource.Source that crawls the
// moltbook social feed and keeps the posts that read like intents.
package moltbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/IntentMarket/internal/domain/ingest"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/port/intentsource"
)

const (
	sourceName = "moltbook"
	postURL    = "https://www.moltbook.com/posts/"

	// maxResponseBytes caps a single feed page.
	maxResponseBytes = 4 << 20
)

// Source crawls moltbook posts.
type Source struct {
	baseURL    string
	apiKey     string
	sorts      []string
	limit      int
	userAgent  string
	httpClient *http.Client
}

// NewSource creates a moltbook crawler. Empty sorts default to "new" and a
// non-positive limit to 20.
func NewSource(cfg intentsource.Config) *Source {
	sorts := cfg.Sorts
	if len(sorts) == 0 {
		sorts = []string{"new"}
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		sorts:      sorts,
		limit:      limit,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Source) Name() string { return sourceName }

// feedPost mirrors a post in the moltbook posts API.
type feedPost struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	LinkURL string `json:"link_url"`
	Author  struct {
		MoltyName string `json:"molty_name"`
	} `json:"author"`
}

type feedResponse struct {
	Posts []feedPost `json:"posts"`
}

// Fetch reads every configured sort order, dedupes posts by ID and returns
// the ones that classify as intents. A failing sort is skipped; Fetch only
// fails when every sort does.
func (s *Source) Fetch(ctx context.Context) ([]intent.CreateRequest, error) {
	seen := make(map[string]struct{})
	var (
		out     []intent.CreateRequest
		lastErr error
		okSorts int
	)
	for _, sort := range s.sorts {
		posts, err := s.fetchSort(ctx, sort)
		if err != nil {
			slog.Warn("moltbook fetch failed", "sort", sort, "error", err)
			lastErr = err
			continue
		}
		okSorts++
		for i := range posts {
			p := &posts[i]
			if p.ID == "" || p.Author.MoltyName == "" {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}

			req, ok := ingest.Extract(toPost(p))
			if ok {
				out = append(out, req)
			}
		}
	}
	if okSorts == 0 && lastErr != nil {
		return nil, fmt.Errorf("moltbook: %w", lastErr)
	}
	return out, nil
}

func (s *Source) fetchSort(ctx context.Context, sort string) ([]feedPost, error) {
	q := url.Values{}
	q.Set("sort", sort)
	q.Set("limit", fmt.Sprintf("%d", s.limit))
	reqURL := s.baseURL + "/posts?" + q.Encode()

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

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("moltbook API %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return feed.Posts, nil
}

func toPost(p *feedPost) ingest.Post {
	link := p.LinkURL
	if link == "" {
		link = postURL + url.PathEscape(p.ID)
	}
	return ingest.Post{
		ID:       p.ID,
		Platform: sourceName,
		Title:    p.Title,
		Body:     p.Body,
		Author:   p.Author.MoltyName,
		URL:      link,
	}
}
