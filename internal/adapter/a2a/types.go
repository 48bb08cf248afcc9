package a2a

import (
	"time"

	"github.com/a2aproject/a2a-go/a2a"
)

// TaskRequest is an incoming task: a skill ID and its JSON input.
type TaskRequest struct {
	ID    string         `json:"id"`
	Skill string         `json:"skill"`
	Input map[string]any `json:"input"` //nolint:gosec // skill inputs are validated per skill
}

// TaskResponse is the stored outcome of a task.
type TaskResponse struct {
	ID        string        `json:"id"`
	Skill     string        `json:"skill"`
	Status    a2a.TaskState `json:"status"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
