// Package draft drives the AI reply loop: generate a draft from thread
// context, iterate on it with user feedback, and commit the approved
// draft exactly once.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"inboxpilot/internal/labels"
	"inboxpilot/internal/mail"
	"inboxpilot/internal/models"
	"inboxpilot/internal/storage"
)

var (
	// ErrInstructionsRequired rejects a first generation call without
	// instructions.
	ErrInstructionsRequired = errors.New("draft: instructions are required")

	// ErrFeedbackRequired rejects a regenerate call without feedback.
	ErrFeedbackRequired = errors.New("draft: feedback is required")

	// ErrNoDraft means the thread has no draft in progress, so
	// regenerate/approve/abandon have nothing to act on.
	ErrNoDraft = errors.New("draft: no draft in progress for thread")
)

// GenerateInput is the structured context handed to the generation
// capability: the full message history of the thread plus, on
// regeneration, the accumulated conversation and the previous draft so
// iteration refines prior output instead of rewriting from scratch.
type GenerateInput struct {
	ThreadID      string
	Subject       string
	Messages      []models.Message
	Conversation  []models.ConversationTurn
	Instructions  string
	PreviousDraft string
	PreviousTo    []models.Participant
	PreviousCC    []models.Participant
}

// GenerateOutput is the generation capability's result shape.
type GenerateOutput struct {
	Subject string               `json:"subject"`
	To      []models.Participant `json:"to"`
	CC      []models.Participant `json:"cc"`
	Body    string               `json:"body"`
}

// GenerateFunc is the injected AI capability. Failures are surfaced to
// the caller rather than retried: silently retrying an LLM call risks
// committing a different draft than the one the user saw.
type GenerateFunc func(ctx context.Context, in GenerateInput) (GenerateOutput, error)

// Pipeline is the per-thread draft state machine:
// NoDraft → Drafting → DraftReady → (Approved | Abandoned), with
// DraftReady self-looping on regenerate.
type Pipeline struct {
	provider mail.Provider
	store    storage.DraftStore
	labelSet *labels.Set
	generate GenerateFunc
	logger   *zap.Logger
}

func NewPipeline(provider mail.Provider, store storage.DraftStore, labelSet *labels.Set, generate GenerateFunc, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		provider: provider,
		store:    store,
		labelSet: labelSet,
		generate: generate,
		logger:   logger,
	}
}

// Generate produces a first draft (or restarts a cycle after approve).
// It appends a user turn and an assistant turn to the conversation log
// and replaces the current draft body and recipients.
func (p *Pipeline) Generate(ctx context.Context, threadID, instructions string) (*models.DraftState, error) {
	if strings.TrimSpace(instructions) == "" {
		return nil, ErrInstructionsRequired
	}

	state, err := p.store.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load draft state: %w", err)
	}
	if state == nil {
		state = &models.DraftState{ThreadID: threadID}
	}

	return p.run(ctx, state, instructions)
}

// Regenerate iterates on an existing draft with user feedback. Only
// valid once a draft is ready; the conversation log is appended to,
// never replaced.
func (p *Pipeline) Regenerate(ctx context.Context, threadID, feedback string) (*models.DraftState, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, ErrFeedbackRequired
	}

	state, err := p.store.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load draft state: %w", err)
	}
	if state == nil || state.Draft == "" {
		return nil, ErrNoDraft
	}

	return p.run(ctx, state, feedback)
}

func (p *Pipeline) run(ctx context.Context, state *models.DraftState, prompt string) (*models.DraftState, error) {
	thread, err := p.provider.GetThread(ctx, state.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("fetch thread: %w", err)
	}
	messages, err := p.provider.GetMessages(ctx, thread.MessageIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	subject := ""
	if len(messages) > 0 {
		subject = messages[len(messages)-1].Subject
	}

	out, err := p.generate(ctx, GenerateInput{
		ThreadID:      state.ThreadID,
		Subject:       subject,
		Messages:      messages,
		Conversation:  state.Conversation,
		Instructions:  prompt,
		PreviousDraft: state.Draft,
		PreviousTo:    state.To,
		PreviousCC:    state.CC,
	})
	if err != nil {
		// Thread stays in its current state; nothing was mutated.
		return nil, fmt.Errorf("generate draft: %w", err)
	}

	to := out.To
	if len(to) == 0 {
		to = latestSender(messages)
	}

	state.Conversation = append(state.Conversation,
		models.ConversationTurn{Role: models.RoleUser, Content: prompt},
		models.ConversationTurn{Role: models.RoleAssistant, Content: out.Body},
	)
	state.Draft = out.Body
	state.Subject = out.Subject
	state.To = to
	// cc is never backfilled from the thread: an empty cc from the
	// generation output means no cc, so parties the rewritten reply did
	// not address are not silently re-added.
	state.CC = out.CC

	if err := p.store.Replace(ctx, state); err != nil {
		return nil, fmt.Errorf("persist draft state: %w", err)
	}

	p.logger.Info("Draft generated",
		zap.String("thread_id", state.ThreadID),
		zap.Int("conversation_turns", len(state.Conversation)))
	return state, nil
}

// Approve commits the draft via the mail provider, then atomically
// clears every workflow label from the thread (not just one: leaving a
// second workflow label behind lets the webhook-side priority dedup
// resurface it on the next label-change event), then clears the draft
// state. Label removal is ordered strictly after a successful save; a
// label failure after the save is logged as a warning and not unwound,
// since the saved draft is worth more than a tidy label set.
func (p *Pipeline) Approve(ctx context.Context, threadID, finalBody string) (string, error) {
	state, err := p.store.Get(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("load draft state: %w", err)
	}
	if state == nil || state.Draft == "" {
		return "", ErrNoDraft
	}

	body := state.Draft
	if strings.TrimSpace(finalBody) != "" {
		body = finalBody
	}

	thread, err := p.provider.GetThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("fetch thread: %w", err)
	}
	replyTo := ""
	if len(thread.MessageIDs) > 0 {
		replyTo = thread.MessageIDs[len(thread.MessageIDs)-1]
	}

	draftID, err := p.provider.CreateDraft(ctx, mail.Draft{
		ThreadID:         threadID,
		ReplyToMessageID: replyTo,
		Subject:          state.Subject,
		To:               state.To,
		CC:               state.CC,
		Body:             body,
	})
	if err != nil {
		return "", fmt.Errorf("save draft: %w", err)
	}

	// Read-compute-write against the freshest label set: the webhook
	// automation may have touched the thread since the last fetch.
	current, err := p.provider.GetThread(ctx, threadID)
	if err != nil {
		p.logger.Warn("Draft saved but thread re-read failed; labels left as-is",
			zap.Error(err),
			zap.String("thread_id", threadID))
	} else {
		next := p.labelSet.RemoveWorkflowLabels(current.Labels, "")
		if err := p.provider.UpdateThreadLabels(ctx, threadID, next); err != nil {
			p.logger.Warn("Draft saved but workflow label removal failed",
				zap.Error(err),
				zap.String("thread_id", threadID))
		}
	}

	if err := p.store.Clear(ctx, threadID); err != nil {
		p.logger.Warn("Draft committed but state clear failed",
			zap.Error(err),
			zap.String("thread_id", threadID))
	}

	p.logger.Info("Draft approved",
		zap.String("thread_id", threadID),
		zap.String("draft_id", draftID))
	return draftID, nil
}

// Abandon clears the thread's draft state without committing anything.
// Labels are not touched.
func (p *Pipeline) Abandon(ctx context.Context, threadID string) error {
	if err := p.store.Clear(ctx, threadID); err != nil {
		return fmt.Errorf("clear draft state: %w", err)
	}
	return nil
}

// latestSender is the to-recipient fallback: the sender of the thread's
// most recent message.
func latestSender(messages []models.Message) []models.Participant {
	if len(messages) == 0 {
		return nil
	}
	return messages[len(messages)-1].From
}
