// Package match defines the Match domain entity: one candidate's proposed
// fit to one intent.
package match

import (
	"fmt"
	"math"
	"time"

	"github.com/Strob0t/IntentMarket/internal/domain"
)

// CandidateKind says what a match's candidate reference points at.
type CandidateKind string

const (
	CandidateAgent  CandidateKind = "agent"
	CandidateIntent CandidateKind = "intent"
)

// Type is the qualitative tag describing who would deliver the work.
type Type string

const (
	TypeAgentCanDeliver Type = "agent_can_deliver"
	TypeOwnerSuitable   Type = "owner_suitable"
	TypeBoth            Type = "both"
)

// Status is the lifecycle state of a match.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusContacted Status = "contacted"
)

// Statuses lists every allowed match status.
var Statuses = []Status{StatusProposed, StatusAccepted, StatusDeclined, StatusContacted}

// Valid reports whether s is a member of the allowed set.
func (s Status) Valid() bool {
	switch s {
	case StatusProposed, StatusAccepted, StatusDeclined, StatusContacted:
		return true
	}
	return false
}

// Match is a persisted (intent, candidate) pairing.
type Match struct {
	ID            string        `json:"id"`
	IntentID      string        `json:"intent_id"`
	CandidateKind CandidateKind `json:"candidate_kind"`
	CandidateID   string        `json:"candidate_id"`
	CandidateName string        `json:"candidate_name,omitempty"`
	Type          Type          `json:"match_type"`
	Score         float64       `json:"match_score"`
	Reason        string        `json:"match_reason"`
	Message       string        `json:"agent_message,omitempty"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Key is the conflict key of the match store: at most one row exists per
// (intent, candidate) pair.
type Key struct {
	IntentID      string
	CandidateKind CandidateKind
	CandidateID   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s:%s", k.IntentID, k.CandidateKind, k.CandidateID)
}

// Key returns the conflict key of m.
func (m *Match) Key() Key {
	return Key{IntentID: m.IntentID, CandidateKind: m.CandidateKind, CandidateID: m.CandidateID}
}

// Upsert carries the fields a scoring pass writes. Status is only applied
// when a new row is inserted; refreshes leave it untouched.
type Upsert struct {
	Type   Type
	Score  float64
	Reason string
}

// ListFilter narrows match listings. Empty fields do not filter.
type ListFilter struct {
	IntentID string
	Status   Status
	Limit    int
}

// RoundScore rounds s to the 4 decimal digits the store keeps.
func RoundScore(s float64) float64 {
	return math.Round(s*1e4) / 1e4
}

// Transition returns a copy of cur moved to target. Only set membership
// is enforced; there are no predecessor rules.
func Transition(cur *Match, target Status) (*Match, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("match status %q (allowed: proposed, accepted, declined, contacted): %w", target, domain.ErrInvalidStatus)
	}
	next := *cur
	next.Status = target
	return &next, nil
}
