// Package stats defines marketplace-wide counters.
package stats

// Counts is a snapshot of marketplace totals.
type Counts struct {
	Agents          int `json:"agents"`
	AvailableAgents int `json:"available_agents"`
	Intents         int `json:"intents"`
	OpenIntents     int `json:"open_intents"`
	Matches         int `json:"matches"`
	AcceptedMatches int `json:"accepted_matches"`
}
