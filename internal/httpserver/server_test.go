package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"inboxpilot/internal/bot"
	"inboxpilot/internal/capture"
	"inboxpilot/internal/draft"
	"inboxpilot/internal/models"
)

type fakeTriage struct {
	created [][2]string
	changed []string
	err     error
}

func (f *fakeTriage) OnMessageCreated(ctx context.Context, threadID, messageID string) error {
	f.created = append(f.created, [2]string{threadID, messageID})
	return f.err
}

func (f *fakeTriage) OnLabelsChanged(ctx context.Context, threadID string) error {
	f.changed = append(f.changed, threadID)
	return f.err
}

type fakeDrafts struct {
	state      *models.DraftState
	err        error
	approved   []string
	abandoned  []string
	lastPrompt string
}

func (f *fakeDrafts) Generate(ctx context.Context, threadID, instructions string) (*models.DraftState, error) {
	f.lastPrompt = instructions
	return f.state, f.err
}

func (f *fakeDrafts) Regenerate(ctx context.Context, threadID, feedback string) (*models.DraftState, error) {
	f.lastPrompt = feedback
	return f.state, f.err
}

func (f *fakeDrafts) Approve(ctx context.Context, threadID, finalBody string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.approved = append(f.approved, threadID)
	return "draft-1", nil
}

func (f *fakeDrafts) Abandon(ctx context.Context, threadID string) error {
	f.abandoned = append(f.abandoned, threadID)
	return f.err
}

type fakeCaptures struct {
	issue models.Issue
	err   error
}

func (f *fakeCaptures) CaptureToIssue(ctx context.Context, raw string) (models.Issue, error) {
	return f.issue, f.err
}

type fakeChat struct {
	handled []bot.CapturedMessage
}

func (f *fakeChat) Handle(ctx context.Context, m bot.CapturedMessage) {
	f.handled = append(f.handled, m)
}

func newTestServer(t *testing.T) (*Server, *fakeTriage, *fakeDrafts, *fakeCaptures, *fakeChat) {
	t.Helper()
	triage := &fakeTriage{}
	drafts := &fakeDrafts{state: &models.DraftState{ThreadID: "t1", Draft: "Hi."}}
	captures := &fakeCaptures{issue: models.Issue{ID: "i1", Identifier: "OPS-1"}}
	chat := &fakeChat{}
	cfg := Config{MailWebhookSecret: "mail-secret", ChatWebhookSecret: "chat-secret"}
	return NewServer(cfg, triage, drafts, captures, chat, zap.NewNop()), triage, drafts, captures, chat
}

func postJSON(srv *Server, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestMailWebhookRejectsBadSignature(t *testing.T) {
	srv, triage, _, _, _ := newTestServer(t)
	body := []byte(`{"type":"message.created","thread_id":"t1","message_id":"m1"}`)

	w := postJSON(srv, "/webhooks/mail", body, map[string]string{
		SignatureHeader: sign("wrong-secret", body),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(triage.created) != 0 {
		t.Fatal("pipeline ran despite rejected signature")
	}
}

func TestMailWebhookRejectsWhenNoSecretConfigured(t *testing.T) {
	triage := &fakeTriage{}
	srv := NewServer(Config{}, triage, &fakeDrafts{}, &fakeCaptures{}, &fakeChat{}, zap.NewNop())
	body := []byte(`{"type":"message.created","thread_id":"t1","message_id":"m1"}`)

	w := postJSON(srv, "/webhooks/mail", body, map[string]string{
		SignatureHeader: sign("", body),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 (fail-closed)", w.Code)
	}
}

func TestMailWebhookDispatchesEvents(t *testing.T) {
	srv, triage, _, _, _ := newTestServer(t)

	body := []byte(`{"type":"message.created","thread_id":"t1","message_id":"m1"}`)
	w := postJSON(srv, "/webhooks/mail", body, map[string]string{
		SignatureHeader: sign("mail-secret", body),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(triage.created) != 1 || triage.created[0] != [2]string{"t1", "m1"} {
		t.Fatalf("created events = %v", triage.created)
	}

	body = []byte(`{"type":"thread.labels_changed","thread_id":"t2"}`)
	w = postJSON(srv, "/webhooks/mail", body, map[string]string{
		SignatureHeader: sign("mail-secret", body),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(triage.changed) != 1 || triage.changed[0] != "t2" {
		t.Fatalf("changed events = %v", triage.changed)
	}
}

func TestMailWebhookSurfacesDispatchFailure(t *testing.T) {
	srv, triage, _, _, _ := newTestServer(t)
	triage.err = errors.New("provider unavailable")

	body := []byte(`{"type":"thread.labels_changed","thread_id":"t1"}`)
	w := postJSON(srv, "/webhooks/mail", body, map[string]string{
		SignatureHeader: sign("mail-secret", body),
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestTelegramWebhookSecretAndDispatch(t *testing.T) {
	srv, _, _, _, chat := newTestServer(t)
	update := []byte(`{"update_id":1,"message":{"message_id":7,"chat":{"id":42},"text":"fix the login bug"}}`)

	w := postJSON(srv, "/webhooks/telegram", update, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status without secret = %d, want 401", w.Code)
	}
	if len(chat.handled) != 0 {
		t.Fatal("chat handler ran despite rejected secret")
	}

	w = postJSON(srv, "/webhooks/telegram", update, map[string]string{
		ChatSecretHeader: "chat-secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(chat.handled) != 1 || chat.handled[0].Content != "fix the login bug" {
		t.Fatalf("handled = %+v", chat.handled)
	}
}

func TestCaptureEndpointStatusMapping(t *testing.T) {
	srv, _, _, captures, _ := newTestServer(t)

	w := postJSON(srv, "/api/capture", []byte(`{"text":"fix it"}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var issue models.Issue
	if err := json.Unmarshal(w.Body.Bytes(), &issue); err != nil || issue.Identifier != "OPS-1" {
		t.Fatalf("body = %s", w.Body.String())
	}

	captures.err = capture.ErrEmptyInput
	if w := postJSON(srv, "/api/capture", []byte(`{"text":""}`), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty input status = %d, want 400", w.Code)
	}

	captures.err = capture.ErrEmptyAfterCleanup
	if w := postJSON(srv, "/api/capture", []byte(`{"text":"hmm"}`), nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty after cleanup status = %d, want 422", w.Code)
	}

	captures.err = errors.New("graphql: team not found")
	if w := postJSON(srv, "/api/capture", []byte(`{"text":"x"}`), nil); w.Code != http.StatusBadGateway {
		t.Fatalf("tracker failure status = %d, want 502", w.Code)
	}
}

func TestDraftEndpoints(t *testing.T) {
	srv, _, drafts, _, _ := newTestServer(t)

	w := postJSON(srv, "/api/threads/t1/draft", []byte(`{"instructions":"reply politely"}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("generate status = %d", w.Code)
	}
	if drafts.lastPrompt != "reply politely" {
		t.Fatalf("lastPrompt = %q", drafts.lastPrompt)
	}

	w = postJSON(srv, "/api/threads/t1/draft/regenerate", []byte(`{"feedback":"shorter"}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("regenerate status = %d", w.Code)
	}

	w = postJSON(srv, "/api/threads/t1/draft/approve", []byte(`{}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d", w.Code)
	}
	if len(drafts.approved) != 1 || drafts.approved[0] != "t1" {
		t.Fatalf("approved = %v", drafts.approved)
	}

	w = postJSON(srv, "/api/threads/t1/draft/skip", []byte(`{}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("skip status = %d", w.Code)
	}
	if len(drafts.abandoned) != 1 {
		t.Fatalf("abandoned = %v", drafts.abandoned)
	}
}

func TestDraftErrorMapping(t *testing.T) {
	srv, _, drafts, _, _ := newTestServer(t)

	drafts.err = draft.ErrInstructionsRequired
	if w := postJSON(srv, "/api/threads/t1/draft", []byte(`{"instructions":""}`), nil); w.Code != http.StatusBadRequest {
		t.Fatalf("validation status = %d, want 400", w.Code)
	}

	drafts.err = draft.ErrNoDraft
	if w := postJSON(srv, "/api/threads/t1/draft/regenerate", []byte(`{"feedback":"x"}`), nil); w.Code != http.StatusConflict {
		t.Fatalf("no-draft status = %d, want 409", w.Code)
	}

	drafts.err = errors.New("model unavailable")
	if w := postJSON(srv, "/api/threads/t1/draft", []byte(`{"instructions":"x"}`), nil); w.Code != http.StatusBadGateway {
		t.Fatalf("upstream failure status = %d, want 502", w.Code)
	}
}
