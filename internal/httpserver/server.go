package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"inboxpilot/internal/bot"
	"inboxpilot/internal/capture"
	"inboxpilot/internal/draft"
	"inboxpilot/internal/metrics"
	"inboxpilot/internal/models"
)

// Mail provider webhook event types.
const (
	EventMessageCreated = "message.created"
	EventLabelsChanged  = "thread.labels_changed"
)

// Config carries the webhook authenticity secrets. Both are required
// for their respective endpoints; an unset secret rejects all traffic
// on that endpoint.
type Config struct {
	MailWebhookSecret string
	ChatWebhookSecret string
}

// TriageService is the webhook-driven label automation.
type TriageService interface {
	OnMessageCreated(ctx context.Context, threadID, messageID string) error
	OnLabelsChanged(ctx context.Context, threadID string) error
}

// DraftService is the user-driven draft loop.
type DraftService interface {
	Generate(ctx context.Context, threadID, instructions string) (*models.DraftState, error)
	Regenerate(ctx context.Context, threadID, feedback string) (*models.DraftState, error)
	Approve(ctx context.Context, threadID, finalBody string) (string, error)
	Abandon(ctx context.Context, threadID string) error
}

// CaptureService turns raw text into an issue.
type CaptureService interface {
	CaptureToIssue(ctx context.Context, raw string) (models.Issue, error)
}

// ChatHandler consumes normalized chat capture payloads.
type ChatHandler interface {
	Handle(ctx context.Context, m bot.CapturedMessage)
}

type Server struct {
	engine   *gin.Engine
	cfg      Config
	triage   TriageService
	drafts   DraftService
	captures CaptureService
	chat     ChatHandler
	logger   *zap.Logger
}

func NewServer(cfg Config, triage TriageService, drafts DraftService, captures CaptureService, chat ChatHandler, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		cfg:      cfg,
		triage:   triage,
		drafts:   drafts,
		captures: captures,
		chat:     chat,
		logger:   logger,
	}

	s.engine.Use(gin.Recovery(), s.observe())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.POST("/webhooks/mail", s.handleMailWebhook)
	s.engine.POST("/webhooks/telegram", s.handleTelegramWebhook)

	api := s.engine.Group("/api")
	api.POST("/capture", s.handleCapture)
	api.POST("/threads/:id/draft", s.handleGenerate)
	api.POST("/threads/:id/draft/regenerate", s.handleRegenerate)
	api.POST("/threads/:id/draft/approve", s.handleApprove)
	api.POST("/threads/:id/draft/skip", s.handleSkip)

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		metrics.WebhookRequests.WithLabelValues(
			c.FullPath(),
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}

type mailEvent struct {
	Type      string `json:"type"`
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
}

func (s *Server) handleMailWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !VerifySignature(s.cfg.MailWebhookSecret, body, c.GetHeader(SignatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event mailEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if event.ThreadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "thread_id is required"})
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case EventMessageCreated:
		if event.MessageID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message_id is required"})
			return
		}
		err = s.triage.OnMessageCreated(ctx, event.ThreadID, event.MessageID)
	case EventLabelsChanged:
		err = s.triage.OnLabelsChanged(ctx, event.ThreadID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type"})
		return
	}

	if err != nil {
		s.logger.Error("Mail webhook dispatch failed",
			zap.Error(err),
			zap.String("type", event.Type),
			zap.String("thread_id", event.ThreadID))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (s *Server) handleTelegramWebhook(c *gin.Context) {
	if !VerifySharedSecret(s.cfg.ChatWebhookSecret, c.GetHeader(ChatSecretHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}

	m, ok := bot.ParseUpdate(update)
	if !ok {
		// Not capturable; acknowledge so the platform stops retrying.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	s.chat.Handle(c.Request.Context(), m)
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (s *Server) handleCapture(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	issue, err := s.captures.CaptureToIssue(c.Request.Context(), req.Text)
	switch {
	case errors.Is(err, capture.ErrEmptyInput):
		metrics.Captures.WithLabelValues("empty").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is empty"})
		return
	case errors.Is(err, capture.ErrEmptyAfterCleanup):
		metrics.Captures.WithLabelValues("empty").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "content is empty after cleanup"})
		return
	case err != nil:
		metrics.Captures.WithLabelValues("failed").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	metrics.Captures.WithLabelValues("created").Inc()
	c.JSON(http.StatusOK, issue)
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req struct {
		Instructions string `json:"instructions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	state, err := s.drafts.Generate(c.Request.Context(), c.Param("id"), req.Instructions)
	if err != nil {
		s.renderDraftError(c, err)
		return
	}

	metrics.DraftsGenerated.Inc()
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleRegenerate(c *gin.Context) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	state, err := s.drafts.Regenerate(c.Request.Context(), c.Param("id"), req.Feedback)
	if err != nil {
		s.renderDraftError(c, err)
		return
	}

	metrics.DraftsGenerated.Inc()
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleApprove(c *gin.Context) {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	draftID, err := s.drafts.Approve(c.Request.Context(), c.Param("id"), req.Body)
	if err != nil {
		s.renderDraftError(c, err)
		return
	}

	metrics.DraftsApproved.Inc()
	c.JSON(http.StatusOK, gin.H{"draft_id": draftID})
}

func (s *Server) handleSkip(c *gin.Context) {
	if err := s.drafts.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		s.renderDraftError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// renderDraftError maps pipeline errors onto HTTP statuses: validation
// problems are the caller's, a missing draft is a state conflict, and
// everything else is an upstream failure surfaced verbatim so the user
// can retry or abandon.
func (s *Server) renderDraftError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, draft.ErrInstructionsRequired),
		errors.Is(err, draft.ErrFeedbackRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, draft.ErrNoDraft):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Draft pipeline call failed",
			zap.Error(err),
			zap.String("thread_id", c.Param("id")))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
