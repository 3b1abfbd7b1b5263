// Package githubpush implements the webhook trigger that fires on pushes to a
// GitHub repository. Enabling the trigger registers a repository webhook
// through the GitHub API.
package githubpush

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zapflow/zapflow/pkg/protocol"
)

const defaultBaseURL = "https://api.github.com"

var (
	ErrAccessTokenRequired = errors.New("github push trigger requires a connection access token")
	ErrRepositoryRequired  = errors.New("github push trigger requires a repository payload field")
)

type Trigger struct {
	accessToken string
	repository  string

	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewTrigger(params protocol.TriggerParams, logger *slog.Logger) (*Trigger, error) {
	if params.AccessToken == "" {
		return nil, ErrAccessTokenRequired
	}

	repository, _ := params.Payload["repository"].(string)
	if repository == "" {
		return nil, ErrRepositoryRequired
	}

	return &Trigger{
		accessToken: params.AccessToken,
		repository:  repository,
		baseURL:     defaultBaseURL,
		client:      http.DefaultClient,
		logger:      logger.With("trigger", "github_push"),
	}, nil
}

// Check never fires. Pushes arrive through webhook deliveries, not polling.
func (t *Trigger) Check(_ context.Context) (protocol.CheckResult, error) {
	return protocol.CheckResult{Status: protocol.StatusSuccess}, nil
}

// Hook registers a push webhook on the repository pointing at callbackURL.
func (t *Trigger) Hook(ctx context.Context, callbackURL, secret string, _ map[string]any, _ string) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"name":   "web",
		"active": true,
		"events": []string{"push"},
		"config": map[string]any{
			"url":          callbackURL,
			"secret":       secret,
			"content_type": "json",
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode hook request: %w", err)
	}

	endpoint := t.baseURL + "/repos/" + t.repository + "/hooks"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build hook request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+t.accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("hook registration request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusCreated {
		t.logger.WarnContext(ctx, "GitHub rejected hook registration",
			"repository", t.repository, "status", resp.StatusCode)

		return false, nil
	}

	t.logger.InfoContext(ctx, "Registered push webhook", "repository", t.repository)

	return true, nil
}
