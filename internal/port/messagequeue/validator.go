package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch subject {
	case SubjectIntentCreated:
		var p IntentCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.IntentID == "" {
			return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("intent_id is required"))
		}
	case SubjectIntentStatus:
		return decode(subject, data, &IntentStatusPayload{})
	case SubjectMatchCreated:
		return decode(subject, data, &MatchCreatedPayload{})
	case SubjectMatchStatus:
		return decode(subject, data, &MatchStatusPayload{})
	}
	return nil
}

func decode(subject string, data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
