// Package intent defines the Intent domain entity: a need posted by a human
// or ingested from an external source.
package intent

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Strob0t/IntentMarket/internal/domain"
	"github.com/Strob0t/IntentMarket/internal/domain/agent"
)

// Field caps.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 5000
	MaxCategoryLength    = 64
	MaxBudgetLength      = 100
	MaxRequirements      = 50
)

// Urgency is how soon the poster needs the intent fulfilled.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyASAP   Urgency = "asap"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyASAP:
		return true
	}
	return false
}

// Intent is a posted need.
type Intent struct {
	ID               string    `json:"id"`
	PosterKey        string    `json:"poster_wallet"`
	PosterName       string    `json:"poster_name,omitempty"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Urgency          Urgency   `json:"urgency"`
	Budget           string    `json:"budget,omitempty"`
	Requirements     []string  `json:"requirements"`
	Status           Status    `json:"status"`
	MatchCount       int       `json:"match_count"`
	IsPrivate        bool      `json:"is_private"`
	EncryptedData    string    `json:"encrypted_data,omitempty"`
	EncryptionMethod string    `json:"encryption_method,omitempty"`
	SourcePlatform   string    `json:"source_platform,omitempty"`
	SourceURL        string    `json:"source_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateRequest is the input of createIntent. Ingestion sources use the
// same shape and set the provenance fields.
type CreateRequest struct {
	PosterKey      string   `json:"poster_wallet"`
	PosterName     string   `json:"poster_name"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Urgency        Urgency  `json:"urgency"`
	Budget         string   `json:"budget"`
	Requirements   []string `json:"requirements"`
	IsPrivate      bool     `json:"is_private"`
	SourcePlatform string   `json:"source_platform,omitempty"`
	SourceURL      string   `json:"source_url,omitempty"`
}

// ListFilter narrows intent listings. Empty fields do not filter.
type ListFilter struct {
	Status    Status
	Category  string
	PosterKey string
	Limit     int
}

// Normalize trims the request in place, lowercases the category and
// applies the default urgency.
func (r *CreateRequest) Normalize() {
	r.PosterKey = strings.TrimSpace(r.PosterKey)
	r.PosterName = strings.TrimSpace(r.PosterName)
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.Budget = strings.TrimSpace(r.Budget)
	r.Requirements = agent.CleanTags(r.Requirements)
	if r.Urgency == "" {
		r.Urgency = UrgencyMedium
	}
}

// Validate checks a normalized create request.
func (r *CreateRequest) Validate() error {
	if r.PosterKey == "" {
		return fmt.Errorf("poster_wallet is required: %w", domain.ErrValidation)
	}
	if r.Title == "" {
		return fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if len([]rune(r.Title)) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters: %w", MaxTitleLength, domain.ErrValidation)
	}
	for _, c := range r.Title {
		if unicode.IsControl(c) {
			return fmt.Errorf("title contains control characters: %w", domain.ErrValidation)
		}
	}
	if r.Description == "" {
		return fmt.Errorf("description is required: %w", domain.ErrValidation)
	}
	if len([]rune(r.Description)) > MaxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters: %w", MaxDescriptionLength, domain.ErrValidation)
	}
	if r.Category == "" {
		return fmt.Errorf("category is required: %w", domain.ErrValidation)
	}
	if len(r.Category) > MaxCategoryLength {
		return fmt.Errorf("category exceeds %d characters: %w", MaxCategoryLength, domain.ErrValidation)
	}
	if !r.Urgency.Valid() {
		return fmt.Errorf("urgency %q must be one of low, medium, high, asap: %w", r.Urgency, domain.ErrValidation)
	}
	if len(r.Budget) > MaxBudgetLength {
		return fmt.Errorf("budget exceeds %d characters: %w", MaxBudgetLength, domain.ErrValidation)
	}
	if len(r.Requirements) > MaxRequirements {
		return fmt.Errorf("more than %d requirements: %w", MaxRequirements, domain.ErrValidation)
	}
	return nil
}
