package models

// Turn roles for the draft conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one entry in a thread's draft conversation log.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DraftState is the per-thread iteration state of the draft pipeline.
// Created on first generation, replaced on every generate/regenerate,
// cleared on approve or abandon. Never shared across threads.
type DraftState struct {
	ThreadID     string             `json:"thread_id"`
	Conversation []ConversationTurn `json:"conversation"`
	Draft        string             `json:"draft"`
	Subject      string             `json:"subject"`
	To           []Participant      `json:"to"`
	CC           []Participant      `json:"cc"`
}
