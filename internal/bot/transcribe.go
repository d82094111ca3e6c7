package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"inboxpilot/internal/metrics"
)

// WhisperTranscriber resolves a voice note URL to text via the OpenAI
// audio API.
type WhisperTranscriber struct {
	client *openai.Client
	http   *http.Client
	logger *zap.Logger
}

func NewWhisperTranscriber(apiKey string, logger *zap.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{
		client: openai.NewClient(apiKey),
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	start := time.Now()
	defer metrics.ObserveAICall("transcribe", start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("build audio request: %w", err)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download audio: status=%d", resp.StatusCode)
	}

	transcription, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   resp.Body,
		FilePath: "voice.ogg",
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	return transcription.Text, nil
}
