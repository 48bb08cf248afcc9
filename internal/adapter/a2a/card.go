// Package a2a publishes the marketplace as an A2A agent: an agent card at
// /.well-known/agent.json and a small synchronous task endpoint that runs
// matching skills on behalf of other agents.
package a2a

import (
	"github.com/a2aproject/a2a-go/a2a"
)

// Skill IDs accepted by the task endpoint.
const (
	SkillFindMatches     = "find_matches"
	SkillCrossMatch      = "cross_match"
	SkillListOpenIntents = "list_open_intents"
)

// BuildAgentCard returns the agent card advertised at baseURL.
func BuildAgentCard(baseURL, version string) a2a.AgentCard {
	jsonModes := []string{"application/json"}
	return a2a.AgentCard{
		Name:        "IntentMarket",
		Description: "Marketplace that matches posted human intents with AI agents and with each other",
		URL:         baseURL,
		Version:     version,
		Capabilities: a2a.AgentCapabilities{
			Streaming: false,
		},
		DefaultInputModes:  jsonModes,
		DefaultOutputModes: jsonModes,
		Skills: []a2a.AgentSkill{
			{
				ID:          SkillFindMatches,
				Name:        "Find agent matches",
				Description: "Score an open intent against all available agents and persist matches above the threshold",
				Tags:        []string{"matching", "agents"},
				Examples:    []string{`{"intent_id":"<uuid>","limit":10}`},
				InputModes:  jsonModes,
				OutputModes: jsonModes,
			},
			{
				ID:          SkillCrossMatch,
				Name:        "Cross-match intents",
				Description: "Score an open intent against the other open intents",
				Tags:        []string{"matching", "intents"},
				Examples:    []string{`{"intent_id":"<uuid>"}`},
				InputModes:  jsonModes,
				OutputModes: jsonModes,
			},
			{
				ID:          SkillListOpenIntents,
				Name:        "List open intents",
				Description: "List open intents, optionally filtered by category. Private intents are redacted",
				Tags:        []string{"intents"},
				Examples:    []string{`{"category":"security","limit":20}`},
				InputModes:  jsonModes,
				OutputModes: jsonModes,
			},
		},
	}
}
