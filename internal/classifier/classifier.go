package classifier

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"inboxpilot/internal/models"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the
	// first invocation fails.
	DefaultMaxRetries = 2

	// DefaultLabelPrefix is the namespace every assigned label must
	// carry; candidates without it are dropped from the result.
	DefaultLabelPrefix = "ai_"

	// FailedReason is the terminal degraded result's reason. Callers can
	// compare against it to tell a degraded run from a legitimately
	// unlabeled email.
	FailedReason = "Classification failed after retries"

	baseBackoff = 100 * time.Millisecond
)

// InvokeFunc is the single AI capability the classifier depends on. The
// response may be a JSON-encoded string or an already-decoded value;
// both are accepted.
type InvokeFunc func(ctx context.Context, params map[string]any) (any, error)

// Classifier assigns zero-or-more namespaced content labels to an
// email. Classification is best-effort enrichment: it degrades to an
// empty result instead of returning an error, so callers never have to
// handle a classification failure.
type Classifier struct {
	invoke     InvokeFunc
	maxRetries int
	prefix     string
	logger     *zap.Logger
}

func New(invoke InvokeFunc, maxRetries int, prefix string, logger *zap.Logger) *Classifier {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if prefix == "" {
		prefix = DefaultLabelPrefix
	}
	return &Classifier{
		invoke:     invoke,
		maxRetries: maxRetries,
		prefix:     prefix,
		logger:     logger,
	}
}

// Classify runs the AI capability with bounded retries and exponential
// backoff (100ms × 2^attempt). Transport-level failures are retried;
// malformed response bodies are not, they degrade immediately.
func (c *Classifier) Classify(ctx context.Context, input models.ClassifierInput) models.ClassifierResult {
	params := map[string]any{
		"subject": input.Subject,
		"from":    formatParticipants(input.From),
		"to":      formatParticipants(input.To),
		"cc":      formatParticipants(input.CC),
		"date":    input.Date,
		"body":    input.Body,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if !c.waitBackoff(ctx, attempt-1) {
				break
			}
		}

		raw, err := c.invoke(ctx, params)
		if err != nil {
			lastErr = err
			c.logger.Warn("Classifier invocation failed",
				zap.Error(err),
				zap.Int("attempt", attempt))
			continue
		}
		return c.parseResponse(raw)
	}

	c.logger.Error("Classification failed after retries",
		zap.Error(lastErr),
		zap.Int("max_retries", c.maxRetries))
	return models.ClassifierResult{Labels: []string{}, Reason: FailedReason}
}

// waitBackoff sleeps for the attempt's backoff slot. Returns false when
// the context expired during the wait; the caller still has to hand
// back a well-formed result.
func (c *Classifier) waitBackoff(ctx context.Context, attempt int) bool {
	delay := baseBackoff << attempt
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// parseResponse is deliberately defensive: non-object payloads, missing
// labels, or a non-array labels field all degrade to an empty result
// with a diagnostic reason rather than failing the call.
func (c *Classifier) parseResponse(raw any) models.ClassifierResult {
	var body string
	switch v := raw.(type) {
	case string:
		body = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return models.ClassifierResult{Labels: []string{}, Reason: "classifier response is not JSON-encodable"}
		}
		body = string(encoded)
	}

	parsed := gjson.Parse(strings.TrimSpace(body))
	if !parsed.IsObject() {
		return models.ClassifierResult{Labels: []string{}, Reason: "classifier response is not an object"}
	}

	labelsField := parsed.Get("labels")
	if !labelsField.Exists() || !labelsField.IsArray() {
		return models.ClassifierResult{Labels: []string{}, Reason: "classifier response missing labels array"}
	}

	labels := make([]string, 0)
	for _, item := range labelsField.Array() {
		label := strings.TrimSpace(item.String())
		if strings.HasPrefix(label, c.prefix) {
			labels = append(labels, label)
		}
	}

	return models.ClassifierResult{
		Labels: labels,
		Reason: parsed.Get("reason").String(),
	}
}

func formatParticipants(ps []models.Participant) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		if p.Name != "" {
			parts = append(parts, p.Name+" <"+p.Email+">")
			continue
		}
		parts = append(parts, p.Email)
	}
	return strings.Join(parts, ", ")
}
