package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	nm "net/mail"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxpilot/internal/models"
)

// GmailProvider implements Provider over the Gmail API. Gmail labels
// are ids, not names, and its modify calls take deltas; this adapter
// hides both behind the full-replace, name-based contract.
type GmailProvider struct {
	svc    *gm.Service
	logger *zap.Logger

	mu       sync.RWMutex
	idByName map[string]string
	nameByID map[string]string
}

func NewGmailProvider(ctx context.Context, tokenSource oauth2.TokenSource, logger *zap.Logger) (*GmailProvider, error) {
	svc, err := gm.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	p := &GmailProvider{svc: svc, logger: logger}
	if err := p.refreshLabelMap(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *GmailProvider) refreshLabelMap() error {
	resp, err := p.svc.Users.Labels.List("me").Do()
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.idByName = make(map[string]string, len(resp.Labels))
	p.nameByID = make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		p.idByName[l.Name] = l.Id
		p.nameByID[l.Id] = l.Name
	}
	return nil
}

// labelID resolves a label name, creating the label on first use so a
// freshly configured workspace does not need manual setup.
func (p *GmailProvider) labelID(name string) (string, error) {
	p.mu.RLock()
	id, ok := p.idByName[name]
	p.mu.RUnlock()
	if ok {
		return id, nil
	}

	created, err := p.svc.Users.Labels.Create("me", &gm.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}

	p.mu.Lock()
	p.idByName[name] = created.Id
	p.nameByID[created.Id] = name
	p.mu.Unlock()
	return created.Id, nil
}

func (p *GmailProvider) labelNames(ids []string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := p.nameByID[id]; ok {
			names = append(names, name)
			continue
		}
		names = append(names, id)
	}
	return names
}

func (p *GmailProvider) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	t, err := p.svc.Users.Threads.Get("me", threadID).Format("minimal").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}

	ids := make([]string, 0, len(t.Messages))
	seen := make(map[string]struct{})
	var labelIDs []string
	for _, m := range t.Messages {
		ids = append(ids, m.Id)
		for _, l := range m.LabelIds {
			if _, dup := seen[l]; !dup {
				seen[l] = struct{}{}
				labelIDs = append(labelIDs, l)
			}
		}
	}

	return &models.Thread{
		ID:         t.Id,
		MessageIDs: ids,
		Labels:     p.labelNames(labelIDs),
	}, nil
}

func (p *GmailProvider) GetMessages(ctx context.Context, ids []string) ([]models.Message, error) {
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		m, err := p.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", id, err)
		}

		headers := headerMap(m.Payload.Headers)
		date, _ := nm.ParseDate(headers["Date"])

		out = append(out, models.Message{
			ID:       m.Id,
			ThreadID: m.ThreadId,
			From:     parseParticipants(headers["From"]),
			To:       parseParticipants(headers["To"]),
			CC:       parseParticipants(headers["Cc"]),
			Subject:  headers["Subject"],
			Date:     date,
			Body:     extractBody(m.Payload),
		})
	}
	return out, nil
}

// UpdateThreadLabels converts the desired full label set into the
// add/remove delta Gmail expects, scoped to user-visible labels so
// system state like UNREAD is left alone unless explicitly changed.
func (p *GmailProvider) UpdateThreadLabels(ctx context.Context, threadID string, labels []string) error {
	current, err := p.GetThread(ctx, threadID)
	if err != nil {
		return err
	}

	desired := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		desired[l] = struct{}{}
	}
	have := make(map[string]struct{}, len(current.Labels))
	for _, l := range current.Labels {
		have[l] = struct{}{}
	}

	var addIDs, removeIDs []string
	for _, l := range labels {
		if _, ok := have[l]; ok {
			continue
		}
		id, err := p.labelID(l)
		if err != nil {
			return err
		}
		addIDs = append(addIDs, id)
	}
	for _, l := range current.Labels {
		if _, ok := desired[l]; ok {
			continue
		}
		p.mu.RLock()
		id, ok := p.idByName[l]
		p.mu.RUnlock()
		if !ok {
			continue
		}
		removeIDs = append(removeIDs, id)
	}

	if len(addIDs) == 0 && len(removeIDs) == 0 {
		return nil
	}

	_, err = p.svc.Users.Threads.Modify("me", threadID, &gm.ModifyThreadRequest{
		AddLabelIds:    addIDs,
		RemoveLabelIds: removeIDs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("modify thread %s labels: %w", threadID, err)
	}

	p.logger.Debug("Thread labels replaced",
		zap.String("thread_id", threadID),
		zap.Strings("labels", labels))
	return nil
}

func (p *GmailProvider) CreateDraft(ctx context.Context, d Draft) (string, error) {
	raw := buildRFC822(d, time.Now())

	msg := &gm.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}
	if d.ThreadID != "" {
		msg.ThreadId = d.ThreadID
	}

	created, err := p.svc.Users.Drafts.Create("me", &gm.Draft{Message: msg}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	return created.Id, nil
}

func buildRFC822(d Draft, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", formatAddressList(d.To))
	if len(d.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", formatAddressList(d.CC))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", d.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	if d.ReplyToMessageID != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", d.ReplyToMessageID)
		fmt.Fprintf(&b, "References: %s\r\n", d.ReplyToMessageID)
	}
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(d.Body)
	return b.String()
}

func formatAddressList(ps []models.Participant) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		addr := nm.Address{Name: p.Name, Address: p.Email}
		parts = append(parts, addr.String())
	}
	return strings.Join(parts, ", ")
}

func parseParticipants(header string) []models.Participant {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	addrs, err := nm.ParseAddressList(header)
	if err != nil {
		// Providers occasionally emit bare addresses; keep what we got.
		return []models.Participant{{Email: strings.TrimSpace(header)}}
	}
	out := make([]models.Participant, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, models.Participant{Name: a.Name, Email: a.Address})
	}
	return out
}

// extractBody pulls the plain text body from a message payload,
// recursing into multipart and falling back to HTML.
func extractBody(payload *gm.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
			return decoded
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
	}

	return ""
}

func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// NewStaticTokenSource wraps a long-lived OAuth token for single-user
// deployments where the refresh flow lives outside the service.
func NewStaticTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

var _ Provider = (*GmailProvider)(nil)
