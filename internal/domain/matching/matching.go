// Package matching scores intents against candidates and explains the
// result. Everything here is pure: no I/O, no clocks, no randomness.
package matching

import (
	"strings"

	"github.com/Strob0t/IntentMarket/internal/domain/agent"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
)

// Term weights. They sum to 1.
const (
	WeightTags         = 0.40
	WeightCategory     = 0.25
	WeightLexical      = 0.25
	WeightRequirements = 0.10
)

// minTokenLen is the exclusive lower bound on token length (in runes) for
// the lexical term.
const minTokenLen = 3

// Subject is the intent side of a comparison.
type Subject struct {
	Title        string
	Description  string
	Category     string
	Requirements []string
}

// Candidate is the side being scored against a subject: an agent, or
// another intent in the cross-matching pool.
type Candidate struct {
	Name      string
	Bio       string
	Category  string
	Tags      []string
	OwnerName string
	// Private candidates still score on their tags, but the tags are never
	// named in a reason.
	Private bool
}

// SubjectFromIntent builds a subject. Title and description of private
// intents hold placeholders, so only the category and requirement tags
// feed the score.
func SubjectFromIntent(in *intent.Intent) Subject {
	s := Subject{Category: in.Category, Requirements: in.Requirements}
	if !in.IsPrivate {
		s.Title = in.Title
		s.Description = in.Description
	}
	return s
}

// CandidateFromAgent builds a candidate from an agent.
func CandidateFromAgent(a *agent.Agent) Candidate {
	return Candidate{
		Name:      a.Name,
		Bio:       a.Bio,
		Tags:      a.Skills,
		OwnerName: a.OwnerName,
	}
}

// CandidateFromIntent builds a candidate from another intent.
func CandidateFromIntent(in *intent.Intent) Candidate {
	c := Candidate{Category: in.Category, Tags: in.Requirements, OwnerName: in.PosterName, Private: in.IsPrivate}
	if !in.IsPrivate {
		c.Name = in.Title
		c.Bio = in.Description
	}
	return c
}

func (s Subject) blob() string {
	return strings.ToLower(s.Title + " " + s.Description + " " + s.Category)
}

func (c Candidate) blob() string {
	parts := []string{c.Name, c.Bio}
	if c.Category != "" {
		parts = append(parts, c.Category)
	}
	parts = append(parts, c.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}
