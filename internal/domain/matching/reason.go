package matching

import (
	"fmt"
	"math"
	"strings"
)

// Explain builds the advisory reason text shown with a match. Clauses are
// joined with ". " and the text ends with a period. The tags of a private
// candidate are left out.
func Explain(s Subject, c Candidate, score float64) string {
	var clauses []string

	if !c.Private {
		if tags := matchedTags(c.Tags, s.blob()); len(tags) > 0 {
			clauses = append(clauses, "Has relevant skills: "+strings.Join(tags, ", "))
		}
	}
	if cat := strings.ToLower(s.Category); cat != "" && strings.Contains(strings.ToLower(c.Bio), cat) {
		clauses = append(clauses, "Experienced in "+s.Category)
	}
	if c.OwnerName != "" {
		clauses = append(clauses, fmt.Sprintf("Owner (%s) may be a good fit", c.OwnerName))
	}
	if len(clauses) == 0 {
		clauses = append(clauses, fmt.Sprintf("Profile compatibility: %d%% match", int(math.Round(score*100))))
	}

	return strings.Join(clauses, ". ") + "."
}
