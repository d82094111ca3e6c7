package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"inboxpilot/internal/metrics"
	"inboxpilot/internal/models"
)

// OpenAICleanup is the production ProcessFunc: it strips the feedback
// marker, then asks the model to rewrite the note into an issue title
// plus optional description.
type OpenAICleanup struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAICleanup(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAICleanup {
	return &OpenAICleanup{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

// ProcessCapture cleans raw captured text. Blank input short-circuits
// to an empty result without spending an AI call.
func (c *OpenAICleanup) ProcessCapture(ctx context.Context, raw string) (models.CaptureResult, error) {
	if strings.TrimSpace(raw) == "" {
		return models.CaptureResult{}, nil
	}

	isFeedback, content := DetectFeedback(raw)

	start := time.Now()
	defer metrics.ObserveAICall("cleanup", start)

	prompt := fmt.Sprintf(`Rewrite the following captured note as a tracked issue. The first line is a short imperative title. If the note carries enough substance, add a blank line and then a concise description; otherwise output the title alone. Fix transcription artifacts and remove filler, but do not invent details.

Note:
%s`, strings.TrimSpace(content))

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		return models.CaptureResult{}, fmt.Errorf("capture cleanup: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.CaptureResult{}, fmt.Errorf("capture cleanup returned no choices")
	}

	return models.CaptureResult{
		CleanedContent: strings.TrimSpace(resp.Choices[0].Message.Content),
		IsFeedback:     isFeedback,
	}, nil
}
