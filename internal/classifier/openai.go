package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"inboxpilot/internal/metrics"
)

// OpenAIInvoker is the production InvokeFunc: a chat-completion call
// that asks the model for a JSON object of namespaced labels.
type OpenAIInvoker struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	labels      []string
	logger      *zap.Logger
}

func NewOpenAIInvoker(apiKey, model string, maxTokens int, temperature float64, labels []string, logger *zap.Logger) *OpenAIInvoker {
	return &OpenAIInvoker{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		labels:      labels,
		logger:      logger,
	}
}

func (i *OpenAIInvoker) Invoke(ctx context.Context, params map[string]any) (any, error) {
	start := time.Now()
	defer metrics.ObserveAICall("classify", start)

	prompt := fmt.Sprintf(`You triage an email inbox. Assign zero or more of the following labels to the email below. Only use labels from this list: %v

Return a JSON object with this structure:
{
    "labels": ["label1", ...],
    "reason": "one sentence explaining the assignment"
}

Subject: %v
From: %v
To: %v
Cc: %v
Date: %v

%v`,
		i.labels,
		params["subject"], params["from"], params["to"], params["cc"], params["date"], params["body"])

	resp, err := i.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: i.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   i.maxTokens,
			Temperature: float32(i.temperature),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
