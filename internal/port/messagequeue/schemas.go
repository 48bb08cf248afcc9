package messagequeue

// IntentCreatedPayload is the schema for intents.created messages.
type IntentCreatedPayload struct {
	IntentID       string `json:"intent_id"`
	Category       string `json:"category"`
	SourcePlatform string `json:"source_platform,omitempty"`
}

// IntentStatusPayload is the schema for intents.status messages.
type IntentStatusPayload struct {
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}

// MatchCreatedPayload is the schema for matches.created messages. It is
// published once per find-matches run that created or refreshed rows.
type MatchCreatedPayload struct {
	IntentID  string   `json:"intent_id"`
	MatchIDs  []string `json:"match_ids"`
	Created   int      `json:"created"`
	Refreshed int      `json:"refreshed"`
}

// MatchStatusPayload is the schema for matches.status messages.
type MatchStatusPayload struct {
	MatchID  string `json:"match_id"`
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}
