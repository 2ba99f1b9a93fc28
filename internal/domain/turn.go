package domain

import "time"

// Conversation roles as stored in transcript turns.
const (
	TurnRoleInterviewer = "interviewer"
	TurnRoleCandidate   = "candidate"
)

// Turn is a single conversation message. Turns are stored serialized, one
// JSON object per entry, in the Redis history list and in the transcript row.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}
