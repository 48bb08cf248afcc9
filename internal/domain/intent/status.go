package intent

import (
	"fmt"

	"github.com/Strob0t/IntentMarket/internal/domain"
)

// Status is the lifecycle state of an intent.
type Status string

const (
	StatusOpen    Status = "open"
	StatusMatched Status = "matched"
	StatusClosed  Status = "closed"
)

// Statuses lists every allowed intent status.
var Statuses = []Status{StatusOpen, StatusMatched, StatusClosed}

// Valid reports whether s is a member of the allowed set.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusMatched, StatusClosed:
		return true
	}
	return false
}

// Transition returns a copy of cur moved to target. Any allowed target is
// accepted from any state; only set membership is enforced.
func Transition(cur *Intent, target Status) (*Intent, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("intent status %q (allowed: open, matched, closed): %w", target, domain.ErrInvalidStatus)
	}
	next := *cur
	next.Status = target
	return &next, nil
}
