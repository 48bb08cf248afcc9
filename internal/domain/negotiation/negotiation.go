// Package negotiation derives a read-only transcript of how an intent's
// matches progressed.
package negotiation

import (
	"fmt"
	"sort"
	"time"

	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/domain/match"
)

// Kind classifies a log entry.
type Kind string

const (
	KindPosted   Kind = "posted"
	KindProposed Kind = "proposed"
	KindStatus   Kind = "status"
)

// Entry is one line of the negotiation log.
type Entry struct {
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`
	MatchID   string    `json:"match_id,omitempty"`
	Candidate string    `json:"candidate,omitempty"`
	Message   string    `json:"message"`
}

// Build returns the log for in. Entries are ordered by time; entries with
// the same timestamp keep posted, proposed, status order.
func Build(in *intent.Intent, matches []match.Match) []Entry {
	entries := []Entry{{
		Kind:    KindPosted,
		At:      in.CreatedAt,
		Message: fmt.Sprintf("%s posted %q in %s", posterLabel(in), in.Title, in.Category),
	}}

	for i := range matches {
		m := &matches[i]
		name := m.CandidateName
		if name == "" {
			name = m.CandidateID
		}
		entries = append(entries, Entry{
			Kind:      KindProposed,
			At:        m.CreatedAt,
			MatchID:   m.ID,
			Candidate: name,
			Message:   fmt.Sprintf("%s proposed at %.0f%%: %s", name, m.Score*100, m.Reason),
		})
		if m.Status != match.StatusProposed {
			entries = append(entries, Entry{
				Kind:      KindStatus,
				At:        m.UpdatedAt,
				MatchID:   m.ID,
				Candidate: name,
				Message:   fmt.Sprintf("match with %s %s", name, m.Status),
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})
	return entries
}

func posterLabel(in *intent.Intent) string {
	if in.PosterName != "" {
		return in.PosterName
	}
	return in.PosterKey
}
