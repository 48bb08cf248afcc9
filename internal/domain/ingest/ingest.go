// Package ingest turns posts from external social sources into intent
// create requests.
package ingest

import (
	"regexp"
	"strings"

	"github.com/Strob0t/IntentMarket/internal/domain/intent"
)

// Caps applied to extracted text, in runes.
const (
	MaxTitleRunes       = 100
	MaxDescriptionRunes = 500
)

// Post is a post fetched from an external platform.
type Post struct {
	ID       string
	Platform string
	Title    string
	Body     string
	Author   string
	URL      string
}

// Extracted categories.
const (
	CategoryTechnical     = "technical"
	CategoryService       = "service"
	CategoryCollaboration = "collaboration"
	CategoryOther         = "other"
)

var (
	requestPattern   = regexp.MustCompile(`(?i)looking for|need|seeking|want|require`)
	offerPattern     = regexp.MustCompile(`(?i)offering|providing|can help|available`)
	collabPattern    = regexp.MustCompile(`(?i)collaborate|partner|team up`)
	technicalPattern = regexp.MustCompile(`(?i)API|SDK|code|develop|build`)
	servicePattern   = regexp.MustCompile(`(?i)service|design|consulting|hire`)
	sentenceEnd      = regexp.MustCompile(`[.!?]`)
)

// Extract classifies p and returns an intent request for it. The boolean
// is false when the post is neither a request, an offer nor a call for
// collaboration.
func Extract(p Post) (intent.CreateRequest, bool) {
	content := p.Body
	if content == "" {
		content = p.Title
	}

	collab := collabPattern.MatchString(content)
	if !requestPattern.MatchString(content) && !offerPattern.MatchString(content) && !collab {
		return intent.CreateRequest{}, false
	}

	category := CategoryOther
	switch {
	case technicalPattern.MatchString(content):
		category = CategoryTechnical
	case servicePattern.MatchString(content):
		category = CategoryService
	case collab:
		category = CategoryCollaboration
	}

	title := strings.TrimSpace(sentenceEnd.Split(content, 2)[0])
	if title == "" {
		title = strings.TrimSpace(p.Title)
	}

	return intent.CreateRequest{
		PosterKey:      p.Platform + ":" + p.Author,
		PosterName:     p.Author,
		Title:          truncate(title, MaxTitleRunes),
		Description:    truncate(strings.TrimSpace(content), MaxDescriptionRunes),
		Category:       category,
		Urgency:        intent.UrgencyMedium,
		SourcePlatform: p.Platform,
		SourceURL:      p.URL,
	}, true
}

// truncate shortens s to at most limit runes, ending with "..." when cut.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
