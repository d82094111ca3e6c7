// Package mail defines the narrow contract the pipelines have with the
// mail provider, plus the Gmail-backed production implementation.
package mail

import (
	"context"

	"inboxpilot/internal/models"
)

// Draft is an outgoing reply handed to the provider for saving. An
// empty ReplyToMessageID means an unlinked new compose.
type Draft struct {
	ThreadID         string
	ReplyToMessageID string
	Subject          string
	To               []models.Participant
	CC               []models.Participant
	Body             string
}

// Provider is the mail capability the core consumes. Label updates are
// full-replace: callers always pass the complete desired label list,
// never a delta, so every mutation is read-current → compute-next →
// write-next.
type Provider interface {
	// GetThread returns the thread's ordered message ids and current
	// label set (workflow and system labels mixed).
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)

	// GetMessages batch-fetches cleaned message bodies and participants.
	GetMessages(ctx context.Context, ids []string) ([]models.Message, error)

	// UpdateThreadLabels replaces the thread's label set with labels.
	UpdateThreadLabels(ctx context.Context, threadID string, labels []string) error

	// CreateDraft saves a draft and returns the provider's draft id.
	CreateDraft(ctx context.Context, d Draft) (string, error)
}
