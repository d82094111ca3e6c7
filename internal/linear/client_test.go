package linear

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestCreateIssueSuccess(t *testing.T) {
	var gotInput map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Input map[string]any `json:"input"`
			} `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotInput = req.Variables.Input

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"issueCreate":{"success":true,"issue":{"id":"uuid-1","identifier":"OPS-7","url":"https://linear.app/i/OPS-7"}}}}`))
	}))
	defer srv.Close()

	c := NewClient("key", "team-1", srv.Client(), zap.NewNop())
	c.SetEndpoint(srv.URL)

	issue, err := c.CreateIssue(context.Background(), IssueCreateInput{
		Title:     "Fix login timeout",
		ProjectID: "proj-fb",
		StateID:   "state-fb",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if issue.Identifier != "OPS-7" {
		t.Fatalf("identifier = %q", issue.Identifier)
	}
	if gotInput["teamId"] != "team-1" || gotInput["projectId"] != "proj-fb" || gotInput["stateId"] != "state-fb" {
		t.Fatalf("unexpected input: %v", gotInput)
	}
	if _, present := gotInput["description"]; present {
		t.Fatal("empty description must be omitted")
	}
	if id, _ := gotInput["id"].(string); id == "" {
		t.Fatal("idempotency id missing from input")
	}
}

func TestCreateIssueSurfacesGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors":[{"message":"project not found"},{"message":"state archived"}]}`))
	}))
	defer srv.Close()

	c := NewClient("key", "team-1", srv.Client(), zap.NewNop())
	c.SetEndpoint(srv.URL)

	_, err := c.CreateIssue(context.Background(), IssueCreateInput{Title: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "project not found") || !strings.Contains(err.Error(), "state archived") {
		t.Fatalf("GraphQL errors not surfaced verbatim: %v", err)
	}
}

func TestCreateIssueSurfacesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("key", "team-1", srv.Client(), zap.NewNop())
	c.SetEndpoint(srv.URL)

	_, err := c.CreateIssue(context.Background(), IssueCreateInput{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("expected upstream status in error, got %v", err)
	}
}
