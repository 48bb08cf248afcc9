// Package agent defines the Agent domain entity: a service provider that
// can be scored against posted intents.
package agent

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Strob0t/IntentMarket/internal/domain"
)

// MaxNameLength caps the display name.
const MaxNameLength = 255

// MaxBioLength caps the free-text biography.
const MaxBioLength = 5000

// Agent represents a registered service provider.
type Agent struct {
	ID           string    `json:"id"`
	Key          string    `json:"wallet_address"`
	Name         string    `json:"name"`
	Bio          string    `json:"bio"`
	Skills       []string  `json:"skills"`
	OwnerName    string    `json:"owner_name,omitempty"`
	OwnerContact string    `json:"owner_contact,omitempty"`
	Available    bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest is the input of the idempotent register operation.
// Re-registering an existing key updates that agent.
type RegisterRequest struct {
	Key          string   `json:"wallet_address"`
	Name         string   `json:"name"`
	Bio          string   `json:"bio"`
	Skills       []string `json:"skills"`
	OwnerName    string   `json:"owner_name"`
	OwnerContact string   `json:"owner_contact"`
	Available    *bool    `json:"is_available,omitempty"`
}

// ListFilter narrows agent listings.
type ListFilter struct {
	AvailableOnly bool
	Limit         int
}

// Normalize trims the request in place and drops blank skill tags.
func (r *RegisterRequest) Normalize() {
	r.Key = strings.TrimSpace(r.Key)
	r.Name = strings.TrimSpace(r.Name)
	r.Bio = strings.TrimSpace(r.Bio)
	r.OwnerName = strings.TrimSpace(r.OwnerName)
	r.OwnerContact = strings.TrimSpace(r.OwnerContact)
	r.Skills = CleanTags(r.Skills)
}

// IsAvailable reports the requested availability, defaulting to true.
func (r *RegisterRequest) IsAvailable() bool {
	return r.Available == nil || *r.Available
}

// Validate checks a normalized register request.
func (r *RegisterRequest) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("wallet_address is required: %w", domain.ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if len([]rune(r.Name)) > MaxNameLength {
		return fmt.Errorf("name exceeds %d characters: %w", MaxNameLength, domain.ErrValidation)
	}
	for _, c := range r.Name {
		if unicode.IsControl(c) {
			return fmt.Errorf("name contains control characters: %w", domain.ErrValidation)
		}
	}
	if len([]rune(r.Bio)) > MaxBioLength {
		return fmt.Errorf("bio exceeds %d characters: %w", MaxBioLength, domain.ErrValidation)
	}
	return nil
}

// CleanTags trims every tag and removes empty ones and exact duplicates,
// keeping the first occurrence order.
func CleanTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
