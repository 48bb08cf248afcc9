package matching

import (
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/IntentMarket/internal/domain/match"
)

// Breakdown is the per-term contribution of one score computation.
type Breakdown struct {
	Tags         float64  `json:"tags"`
	Category     float64  `json:"category"`
	Lexical      float64  `json:"lexical"`
	Requirements float64  `json:"requirements"`
	MatchedTags  []string `json:"matched_tags,omitempty"`
	Total        float64  `json:"total"` // clamped and rounded to the stored precision
}

// Engine computes scores. The zero value implements the canonical four-term
// algorithm with no related-category credit.
type Engine struct {
	// Related grants half category weight when the subject's category is not
	// in the candidate text but one of its related categories is.
	Related map[string][]string
}

// Score returns the compatibility of c to s in [0, 1], rounded to the 4
// decimals a match row stores. Thresholds compare against this value.
func (e Engine) Score(s Subject, c Candidate) float64 {
	return e.Evaluate(s, c).Total
}

// Evaluate computes the score together with its per-term breakdown.
func (e Engine) Evaluate(s Subject, c Candidate) Breakdown {
	subjectBlob := s.blob()
	candidateBlob := c.blob()

	var b Breakdown

	if len(c.Tags) > 0 {
		b.MatchedTags = matchedTags(c.Tags, subjectBlob)
		b.Tags = WeightTags * float64(len(b.MatchedTags)) / float64(len(c.Tags))
	}

	if cat := strings.ToLower(s.Category); cat != "" {
		switch {
		case strings.Contains(candidateBlob, cat):
			b.Category = WeightCategory
		case e.relatedHit(cat, candidateBlob):
			b.Category = WeightCategory / 2
		}
	}

	b.Lexical = WeightLexical * jaccard(tokenSet(subjectBlob), tokenSet(candidateBlob))

	if len(s.Requirements) > 0 {
		found := 0
		for _, r := range s.Requirements {
			if strings.Contains(candidateBlob, strings.ToLower(r)) {
				found++
			}
		}
		b.Requirements = WeightRequirements * float64(found) / float64(len(s.Requirements))
	}

	b.Total = match.RoundScore(clamp(b.Tags + b.Category + b.Lexical + b.Requirements))
	return b
}

func (e Engine) relatedHit(category, candidateBlob string) bool {
	for _, rel := range e.Related[category] {
		if rel != "" && strings.Contains(candidateBlob, rel) {
			return true
		}
	}
	return false
}

// matchedTags returns the tags found as substrings of blob, in tag order.
func matchedTags(tags []string, blob string) []string {
	var out []string
	for _, t := range tags {
		if strings.Contains(blob, strings.ToLower(t)) {
			out = append(out, t)
		}
	}
	return out
}

func tokenSet(blob string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(blob) {
		if utf8.RuneCountInString(tok) > minTokenLen {
			set[tok] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
