// Package triage is the webhook-driven automation over a thread's
// label set: classify new mail into namespaced content labels and keep
// the workflow labels deduplicated to a single authoritative one.
package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"inboxpilot/internal/classifier"
	"inboxpilot/internal/labels"
	"inboxpilot/internal/mail"
	"inboxpilot/internal/metrics"
	"inboxpilot/internal/models"
)

type Service struct {
	provider   mail.Provider
	classifier *classifier.Classifier
	labelSet   *labels.Set
	intake     string
	logger     *zap.Logger
}

// NewService wires the triage automation. intake is the workflow label
// newly classified threads enter the pipeline with; it must be a member
// of the label set.
func NewService(provider mail.Provider, clf *classifier.Classifier, labelSet *labels.Set, intake string, logger *zap.Logger) *Service {
	return &Service{
		provider:   provider,
		classifier: clf,
		labelSet:   labelSet,
		intake:     intake,
		logger:     logger,
	}
}

// OnMessageCreated classifies a newly arrived message and merges the
// resulting content labels into the thread's label set, placing the
// thread into the intake workflow stage when it carries no workflow
// label yet. Classification failure degrades to "no labels assigned";
// the event is never failed for it.
func (s *Service) OnMessageCreated(ctx context.Context, threadID, messageID string) error {
	thread, err := s.provider.GetThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}

	msgs, err := s.provider.GetMessages(ctx, []string{messageID})
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("message %s not found", messageID)
	}
	msg := msgs[0]

	result := s.classifier.Classify(ctx, models.ClassifierInput{
		Subject: msg.Subject,
		From:    msg.From,
		To:      msg.To,
		CC:      msg.CC,
		Date:    msg.Date.Format("2006-01-02 15:04"),
		Body:    msg.Body,
	})
	switch {
	case result.Reason == classifier.FailedReason:
		metrics.Classifications.WithLabelValues("degraded").Inc()
	case len(result.Labels) == 0:
		metrics.Classifications.WithLabelValues("unlabeled").Inc()
	default:
		metrics.Classifications.WithLabelValues("labeled").Inc()
	}

	// Read-current → compute-next → write-next, never a blind set.
	next := make([]string, 0, len(thread.Labels)+len(result.Labels)+1)
	present := make(map[string]struct{}, len(thread.Labels))
	for _, l := range thread.Labels {
		next = append(next, l)
		present[l] = struct{}{}
	}
	for _, l := range result.Labels {
		if _, ok := present[l]; !ok {
			next = append(next, l)
			present[l] = struct{}{}
		}
	}
	if s.labelSet.HighestPriority(next) == "" && s.intake != "" {
		next = append(next, s.intake)
	}

	if err := s.provider.UpdateThreadLabels(ctx, threadID, next); err != nil {
		return fmt.Errorf("update thread labels: %w", err)
	}

	s.logger.Info("Message classified",
		zap.String("thread_id", threadID),
		zap.String("message_id", messageID),
		zap.Strings("labels", result.Labels),
		zap.String("reason", result.Reason))
	return nil
}

// OnLabelsChanged enforces the priority dedup rule: when manual edits
// or racing writers leave a thread with more than one workflow label,
// the highest-priority one is treated as authoritative and the rest are
// stripped. With zero or one workflow label present this is a no-op.
func (s *Service) OnLabelsChanged(ctx context.Context, threadID string) error {
	thread, err := s.provider.GetThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}

	workflow := s.labelSet.WorkflowLabels(thread.Labels)
	if len(workflow) <= 1 {
		return nil
	}

	keep := s.labelSet.HighestPriority(thread.Labels)
	next := s.labelSet.RemoveWorkflowLabels(thread.Labels, keep)
	if err := s.provider.UpdateThreadLabels(ctx, threadID, next); err != nil {
		return fmt.Errorf("update thread labels: %w", err)
	}

	s.logger.Info("Workflow labels deduplicated",
		zap.String("thread_id", threadID),
		zap.Strings("had", workflow),
		zap.String("kept", keep))
	return nil
}
