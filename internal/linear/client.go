// Package linear is a minimal GraphQL client for issue creation. The
// HTTP transport is injected so tests can substitute it without a
// network.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inboxpilot/internal/models"
)

const defaultEndpoint = "https://api.linear.app/graphql"

const issueCreateMutation = `mutation IssueCreate($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue {
      id
      identifier
      url
    }
  }
}`

// Doer executes an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// IssueCreateInput mirrors Linear's IssueCreateInput, narrowed to the
// fields the pipelines route on.
type IssueCreateInput struct {
	Title       string
	Description string
	ProjectID   string
	StateID     string
}

type Client struct {
	endpoint string
	apiKey   string
	teamID   string
	doer     Doer
	logger   *zap.Logger
}

func NewClient(apiKey, teamID string, doer Doer, logger *zap.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint: defaultEndpoint,
		apiKey:   apiKey,
		teamID:   teamID,
		doer:     doer,
		logger:   logger,
	}
}

// SetEndpoint overrides the GraphQL endpoint, for tests.
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

type graphQLError struct {
	Message string `json:"message"`
}

type issueCreateResponse struct {
	Data struct {
		IssueCreate struct {
			Success bool         `json:"success"`
			Issue   models.Issue `json:"issue"`
		} `json:"issueCreate"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// CreateIssue creates an issue and returns it unchanged. GraphQL errors
// are surfaced verbatim so the caller sees what the tracker said.
func (c *Client) CreateIssue(ctx context.Context, in IssueCreateInput) (models.Issue, error) {
	// Client-generated id makes the mutation idempotent: a retried
	// request after a dropped response creates nothing new.
	input := map[string]any{
		"id":     uuid.NewString(),
		"teamId": c.teamID,
		"title":  in.Title,
	}
	if in.Description != "" {
		input["description"] = in.Description
	}
	if in.ProjectID != "" {
		input["projectId"] = in.ProjectID
	}
	if in.StateID != "" {
		input["stateId"] = in.StateID
	}

	payload, err := json.Marshal(map[string]any{
		"query":     issueCreateMutation,
		"variables": map[string]any{"input": input},
	})
	if err != nil {
		return models.Issue{}, fmt.Errorf("marshal issueCreate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.Issue{}, fmt.Errorf("build issueCreate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.doer.Do(req)
	if err != nil {
		return models.Issue{}, fmt.Errorf("issueCreate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Issue{}, fmt.Errorf("read issueCreate response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return models.Issue{}, fmt.Errorf("issueCreate status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded issueCreateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.Issue{}, fmt.Errorf("decode issueCreate response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		msgs := make([]string, len(decoded.Errors))
		for i, e := range decoded.Errors {
			msgs[i] = e.Message
		}
		return models.Issue{}, fmt.Errorf("issueCreate: %s", strings.Join(msgs, "; "))
	}
	if !decoded.Data.IssueCreate.Success {
		return models.Issue{}, fmt.Errorf("issueCreate reported success=false")
	}

	issue := decoded.Data.IssueCreate.Issue
	c.logger.Info("Issue created",
		zap.String("identifier", issue.Identifier),
		zap.String("url", issue.URL))
	return issue, nil
}
