package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventAgentRegistered = "agent.registered"
	EventIntentCreated   = "intent.created"
	EventIntentStatus    = "intent.status"
	EventMatchesFound    = "match.found"
	EventMatchStatus     = "match.status"
	EventSweepFinished   = "sweep.finished"
)

// AgentRegisteredEvent is broadcast when an agent registers or updates
// its profile.
type AgentRegisteredEvent struct {
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	Available bool   `json:"is_available"`
}

// IntentCreatedEvent is broadcast when an intent is posted or ingested.
// Private intents carry no title.
type IntentCreatedEvent struct {
	IntentID       string `json:"intent_id"`
	Title          string `json:"title,omitempty"`
	Category       string `json:"category"`
	SourcePlatform string `json:"source_platform,omitempty"`
}

// IntentStatusEvent is broadcast when an intent's status changes.
type IntentStatusEvent struct {
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}

// MatchesFoundEvent is broadcast after a find-matches run persisted rows.
type MatchesFoundEvent struct {
	IntentID   string `json:"intent_id"`
	Created    int    `json:"created"`
	Refreshed  int    `json:"refreshed"`
	MatchCount int    `json:"match_count"`
}

// MatchStatusEvent is broadcast when a match's status changes.
type MatchStatusEvent struct {
	MatchID  string `json:"match_id"`
	IntentID string `json:"intent_id"`
	Status   string `json:"status"`
}

// SweepFinishedEvent is broadcast after a background sweep pass.
type SweepFinishedEvent struct {
	Intents int `json:"intents"`
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// intentScoped is implemented by payloads that belong to one intent.
type intentScoped interface {
	scopeIntent() string
}

func (e IntentCreatedEvent) scopeIntent() string { return e.IntentID }
func (e IntentStatusEvent) scopeIntent() string  { return e.IntentID }
func (e MatchesFoundEvent) scopeIntent() string  { return e.IntentID }
func (e MatchStatusEvent) scopeIntent() string   { return e.IntentID }

// BroadcastEvent marshals a typed event and broadcasts it. Events tied to
// an intent also reach clients subscribed to that intent only.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	var intentID string
	if s, ok := payload.(intentScoped); ok {
		intentID = s.scopeIntent()
	}

	h.Broadcast(ctx, intentID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
