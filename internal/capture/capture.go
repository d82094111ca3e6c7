// Package capture turns raw captured text (typed notes, voice
// transcripts, dictation) into tracked issues: AI cleanup, feedback
// detection, title/description split, destination routing.
package capture

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"inboxpilot/internal/models"
)

var (
	// ErrEmptyInput rejects blank input before any AI call is made.
	ErrEmptyInput = errors.New("capture: input is empty")

	// ErrEmptyAfterCleanup means the AI legitimately reduced noise-only
	// input to nothing. Distinct from ErrEmptyInput so callers can tell
	// a blank note from a worthless one.
	ErrEmptyAfterCleanup = errors.New("capture: content is empty after cleanup")
)

// ProcessFunc is the AI cleanup capability: raw text in, cleaned
// "title\n\ndescription" plus feedback flag out.
type ProcessFunc func(ctx context.Context, raw string) (models.CaptureResult, error)

// IssueInput is the routing payload handed to the issue tracker.
// ProjectID/StateID are destination overrides; empty means the
// tracker's default intake destination.
type IssueInput struct {
	Title       string
	Description string
	ProjectID   string
	StateID     string
}

// CreateIssueFunc is the issue tracker capability.
type CreateIssueFunc func(ctx context.Context, in IssueInput) (models.Issue, error)

// Pipeline routes cleaned captures to the issue tracker. Feedback
// captures go to a fixed feedback backlog project/state; everything
// else goes to the default intake destination.
type Pipeline struct {
	process           ProcessFunc
	createIssue       CreateIssueFunc
	feedbackProjectID string
	feedbackStateID   string
	logger            *zap.Logger
}

func NewPipeline(process ProcessFunc, createIssue CreateIssueFunc, feedbackProjectID, feedbackStateID string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		process:           process,
		createIssue:       createIssue,
		feedbackProjectID: feedbackProjectID,
		feedbackStateID:   feedbackStateID,
		logger:            logger,
	}
}

// CaptureToIssue runs the full capture flow. Each step is a hard gate:
// empty input is rejected before the AI capability is invoked, and a
// cleanup result that trims to nothing fails with ErrEmptyAfterCleanup.
func (p *Pipeline) CaptureToIssue(ctx context.Context, raw string) (models.Issue, error) {
	if strings.TrimSpace(raw) == "" {
		return models.Issue{}, ErrEmptyInput
	}

	result, err := p.process(ctx, raw)
	if err != nil {
		return models.Issue{}, err
	}
	if strings.TrimSpace(result.CleanedContent) == "" {
		return models.Issue{}, ErrEmptyAfterCleanup
	}

	title, description := SplitContent(result.CleanedContent)

	in := IssueInput{Title: title, Description: description}
	if result.IsFeedback {
		in.ProjectID = p.feedbackProjectID
		in.StateID = p.feedbackStateID
	}

	issue, err := p.createIssue(ctx, in)
	if err != nil {
		return models.Issue{}, err
	}

	p.logger.Info("Capture routed to issue",
		zap.String("identifier", issue.Identifier),
		zap.Bool("is_feedback", result.IsFeedback))
	return issue, nil
}

// SplitContent parses cleaned content: the first line is the title, the
// remaining lines (trimmed, joined) become the description, or "" when
// nothing is left.
func SplitContent(cleaned string) (title, description string) {
	lines := strings.Split(strings.TrimSpace(cleaned), "\n")
	title = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		description = strings.TrimSpace(strings.Join(lines[1:], "\n"))
	}
	return title, description
}

// Feedback prefixes are case-insensitive and tolerate slashes and
// stray whitespace, but only at the very start of the raw text:
// "// fb -", "fb-", "/fb -" and the like.
var feedbackPrefix = regexp.MustCompile(`(?i)^\s*/{0,2}\s*fb\s*-\s*`)

// DetectFeedback reports whether raw starts with a feedback marker and
// returns the content after the marker. A marker occurring mid-text
// never triggers feedback routing.
func DetectFeedback(raw string) (bool, string) {
	loc := feedbackPrefix.FindStringIndex(raw)
	if loc == nil {
		return false, raw
	}
	return true, raw[loc[1]:]
}
