// Package bot is the chat-side capture ingress: Telegram messages,
// typed or spoken, become tracked issues.
package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"inboxpilot/internal/capture"
	"inboxpilot/internal/metrics"
	"inboxpilot/internal/models"
)

// Capture types for normalized chat payloads.
const (
	TypeText  = "text"
	TypeVoice = "voice"
)

// CapturedMessage is the normalized webhook payload: what kind of
// content arrived, the content itself (raw text, or a provider file id
// for voice), and where to reply.
type CapturedMessage struct {
	Type      string
	Content   string
	MessageID int
	ChatID    int64
}

// TranscribeFunc turns a downloadable audio URL into text.
type TranscribeFunc func(ctx context.Context, audioURL string) (string, error)

type Ingress struct {
	api        *tgbotapi.BotAPI
	pipeline   *capture.Pipeline
	transcribe TranscribeFunc
	logger     *zap.Logger
}

func New(token string, pipeline *capture.Pipeline, transcribe TranscribeFunc, logger *zap.Logger) (*Ingress, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Ingress{
		api:        api,
		pipeline:   pipeline,
		transcribe: transcribe,
		logger:     logger,
	}, nil
}

// ParseUpdate normalizes a Telegram update into a CapturedMessage.
// Returns false for updates that are not capturable (edits, stickers,
// joins and the like).
func ParseUpdate(update tgbotapi.Update) (CapturedMessage, bool) {
	msg := update.Message
	if msg == nil {
		return CapturedMessage{}, false
	}

	if msg.Voice != nil {
		return CapturedMessage{
			Type:      TypeVoice,
			Content:   msg.Voice.FileID,
			MessageID: msg.MessageID,
			ChatID:    msg.Chat.ID,
		}, true
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" {
		return CapturedMessage{}, false
	}

	return CapturedMessage{
		Type:      TypeText,
		Content:   content,
		MessageID: msg.MessageID,
		ChatID:    msg.Chat.ID,
	}, true
}

// Handle runs one captured message through the pipeline and reports the
// outcome back to the chat.
func (i *Ingress) Handle(ctx context.Context, m CapturedMessage) {
	raw := m.Content
	if m.Type == TypeVoice {
		url, err := i.api.GetFileDirectURL(m.Content)
		if err != nil {
			i.logger.Error("Failed to resolve voice file",
				zap.Error(err),
				zap.Int64("chat_id", m.ChatID))
			i.sendErrorMessage(m.ChatID, m.MessageID, "Sorry, I couldn't fetch that voice note. Please try again.")
			return
		}

		raw, err = i.transcribe(ctx, url)
		if err != nil {
			i.logger.Error("Failed to transcribe voice note",
				zap.Error(err),
				zap.Int64("chat_id", m.ChatID))
			i.sendErrorMessage(m.ChatID, m.MessageID, "Sorry, I couldn't transcribe that voice note. Please try again.")
			return
		}
	}

	issue, err := i.pipeline.CaptureToIssue(ctx, raw)
	switch {
	case errors.Is(err, capture.ErrEmptyInput), errors.Is(err, capture.ErrEmptyAfterCleanup):
		metrics.Captures.WithLabelValues("empty").Inc()
		i.sendErrorMessage(m.ChatID, m.MessageID, "There wasn't anything actionable in that. Nothing was created.")
		return
	case err != nil:
		metrics.Captures.WithLabelValues("failed").Inc()
		i.logger.Error("Capture failed",
			zap.Error(err),
			zap.Int64("chat_id", m.ChatID))
		i.sendErrorMessage(m.ChatID, m.MessageID, "Sorry, I couldn't create an issue for that. Please try again.")
		return
	}

	metrics.Captures.WithLabelValues("created").Inc()
	i.sendIssueResponse(m.ChatID, m.MessageID, issue)
}

func (i *Ingress) sendIssueResponse(chatID int64, replyToID int, issue models.Issue) {
	text := fmt.Sprintf("Created %s\n%s", issue.Identifier, issue.URL)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToID
	msg.DisableWebPagePreview = true

	if _, err := i.api.Send(msg); err != nil {
		i.logger.Error("Failed to send issue response",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (i *Ingress) sendErrorMessage(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	msg.ReplyToMessageID = replyToID

	if _, err := i.api.Send(msg); err != nil {
		i.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
