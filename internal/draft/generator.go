package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"inboxpilot/internal/metrics"
	"inboxpilot/internal/models"
)

// OpenAIGenerator is the production GenerateFunc: a named-prompt style
// invocation that takes the structured thread context as input
// variables and returns {subject, to, cc, body} as JSON.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAIGenerator(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

const generatorSystemPrompt = `You write email replies on the user's behalf. You receive the full thread, the running conversation with the user about the draft, and on iteration the previous draft with its recipients. Refine the previous draft when one is given; do not rewrite it from scratch.

Return a JSON object:
{
    "subject": "reply subject",
    "to": [{"name": "", "email": ""}],
    "cc": [{"name": "", "email": ""}],
    "body": "plain text reply body"
}

Leave "to" empty to default to the original sender. Only include "cc" entries the reply genuinely addresses.`

func (g *OpenAIGenerator) Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	vars, err := json.Marshal(map[string]any{
		"subject":        in.Subject,
		"messages":       in.Messages,
		"conversation":   in.Conversation,
		"instructions":   in.Instructions,
		"previous_draft": in.PreviousDraft,
		"previous_to":    in.PreviousTo,
		"previous_cc":    in.PreviousCC,
	})
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("encode generation input: %w", err)
	}

	start := time.Now()
	defer metrics.ObserveAICall("generate", start)

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: generatorSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: string(vars),
				},
			},
			MaxTokens:   g.maxTokens,
			Temperature: float32(g.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("draft generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return GenerateOutput{}, fmt.Errorf("draft generation returned no choices")
	}

	var out GenerateOutput
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		g.logger.Error("Failed to parse generation response",
			zap.Error(err),
			zap.String("response", content))
		return GenerateOutput{}, fmt.Errorf("parse generation response: %w", err)
	}
	if strings.TrimSpace(out.Body) == "" {
		return GenerateOutput{}, fmt.Errorf("draft generation returned an empty body")
	}

	return out, nil
}
