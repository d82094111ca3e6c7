package triage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"inboxpilot/internal/classifier"
	"inboxpilot/internal/labels"
	"inboxpilot/internal/mail"
	"inboxpilot/internal/models"
)

type fakeProvider struct {
	thread      models.Thread
	message     models.Message
	labelWrites [][]string
}

func (f *fakeProvider) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	t := f.thread
	return &t, nil
}

func (f *fakeProvider) GetMessages(ctx context.Context, ids []string) ([]models.Message, error) {
	return []models.Message{f.message}, nil
}

func (f *fakeProvider) UpdateThreadLabels(ctx context.Context, threadID string, labels []string) error {
	f.labelWrites = append(f.labelWrites, labels)
	f.thread.Labels = labels
	return nil
}

func (f *fakeProvider) CreateDraft(ctx context.Context, d mail.Draft) (string, error) {
	return "", errors.New("not used")
}

func newService(p *fakeProvider, invoke classifier.InvokeFunc) *Service {
	clf := classifier.New(invoke, 0, "", zap.NewNop())
	return NewService(p, clf, labels.NewSet(nil), "intake", zap.NewNop())
}

func TestOnMessageCreatedMergesLabelsAndIntake(t *testing.T) {
	p := &fakeProvider{
		thread: models.Thread{ID: "t1", MessageIDs: []string{"m1"}, Labels: []string{"INBOX"}},
		message: models.Message{
			ID: "m1", ThreadID: "t1", Subject: "Receipt",
			From: []models.Participant{{Email: "billing@example.com"}},
			Date: time.Now(),
			Body: "Your invoice is attached.",
		},
	}
	invoke := func(ctx context.Context, params map[string]any) (any, error) {
		return `{"labels": ["ai_receipt"], "reason": "billing"}`, nil
	}

	if err := newService(p, invoke).OnMessageCreated(context.Background(), "t1", "m1"); err != nil {
		t.Fatalf("OnMessageCreated: %v", err)
	}

	want := []string{"INBOX", "ai_receipt", "intake"}
	if len(p.labelWrites) != 1 || !reflect.DeepEqual(p.labelWrites[0], want) {
		t.Fatalf("label writes = %v, want [%v]", p.labelWrites, want)
	}
}

func TestOnMessageCreatedKeepsExistingWorkflowStage(t *testing.T) {
	p := &fakeProvider{
		thread:  models.Thread{ID: "t1", MessageIDs: []string{"m1"}, Labels: []string{"needs-review"}},
		message: models.Message{ID: "m1", ThreadID: "t1", Date: time.Now()},
	}
	invoke := func(ctx context.Context, params map[string]any) (any, error) {
		return `{"labels": []}`, nil
	}

	if err := newService(p, invoke).OnMessageCreated(context.Background(), "t1", "m1"); err != nil {
		t.Fatalf("OnMessageCreated: %v", err)
	}

	if !reflect.DeepEqual(p.labelWrites[0], []string{"needs-review"}) {
		t.Fatalf("label write = %v, want the existing stage untouched", p.labelWrites[0])
	}
}

func TestOnMessageCreatedDegradedClassificationStillSucceeds(t *testing.T) {
	p := &fakeProvider{
		thread:  models.Thread{ID: "t1", MessageIDs: []string{"m1"}, Labels: []string{"INBOX"}},
		message: models.Message{ID: "m1", ThreadID: "t1", Date: time.Now()},
	}
	invoke := func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("transport down")
	}

	if err := newService(p, invoke).OnMessageCreated(context.Background(), "t1", "m1"); err != nil {
		t.Fatalf("classification failure must not fail the event: %v", err)
	}
	if !reflect.DeepEqual(p.labelWrites[0], []string{"INBOX", "intake"}) {
		t.Fatalf("label write = %v, want [INBOX intake]", p.labelWrites[0])
	}
}

func TestOnLabelsChangedDedupsToHighestPriority(t *testing.T) {
	p := &fakeProvider{
		thread: models.Thread{ID: "t1", Labels: []string{"drafted", "INBOX", "needs-response"}},
	}

	if err := newService(p, nil).OnLabelsChanged(context.Background(), "t1"); err != nil {
		t.Fatalf("OnLabelsChanged: %v", err)
	}

	want := []string{"INBOX", "needs-response"}
	if len(p.labelWrites) != 1 || !reflect.DeepEqual(p.labelWrites[0], want) {
		t.Fatalf("label writes = %v, want [%v]", p.labelWrites, want)
	}
}

func TestOnLabelsChangedSingleLabelIsNoOp(t *testing.T) {
	p := &fakeProvider{
		thread: models.Thread{ID: "t1", Labels: []string{"INBOX", "needs-response"}},
	}

	if err := newService(p, nil).OnLabelsChanged(context.Background(), "t1"); err != nil {
		t.Fatalf("OnLabelsChanged: %v", err)
	}
	if len(p.labelWrites) != 0 {
		t.Fatalf("dedup wrote labels with a single workflow label present: %v", p.labelWrites)
	}
}
