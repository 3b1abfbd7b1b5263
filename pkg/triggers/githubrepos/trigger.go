// Package githubrepos implements the polling trigger that fires when the
// connected user creates a new repository.
package githubrepos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

const defaultBaseURL = "https://api.github.com"

var ErrAccessTokenRequired = errors.New("github repos trigger requires a connection access token")

// snapshot is the edge-detection state carried between checks.
type snapshot struct {
	Repositories []string `json:"repositories"`
}

type repository struct {
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
}

type Trigger struct {
	accessToken string
	previous    snapshot
	firstCheck  bool

	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewTrigger(params protocol.TriggerParams, logger *slog.Logger) (*Trigger, error) {
	if params.AccessToken == "" {
		return nil, ErrAccessTokenRequired
	}

	trigger := &Trigger{
		accessToken: params.AccessToken,
		firstCheck:  params.ComparisonData == nil,
		baseURL:     defaultBaseURL,
		client:      http.DefaultClient,
		logger:      logger.With("trigger", "githubrepos"),
	}

	if params.ComparisonData != nil {
		err := json.Unmarshal(params.ComparisonData, &trigger.previous)
		if err != nil {
			return nil, fmt.Errorf("corrupt comparison data: %w", err)
		}
	}

	return trigger, nil
}

// Check lists the user's repositories and fires on names not present in the
// prior snapshot. The first check only establishes the baseline.
func (t *Trigger) Check(ctx context.Context) (protocol.CheckResult, error) {
	repositories, ok := t.listRepositories(ctx)
	if !ok {
		return protocol.CheckResult{Status: protocol.StatusFailure}, nil
	}

	names := make([]string, 0, len(repositories))
	for _, repo := range repositories {
		names = append(names, repo.FullName)
	}

	comparisonData, err := json.Marshal(snapshot{Repositories: names})
	if err != nil {
		return protocol.CheckResult{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	result := protocol.CheckResult{
		Status:         protocol.StatusSuccess,
		ComparisonData: comparisonData,
	}

	if t.firstCheck {
		t.logger.InfoContext(ctx, "Established repository baseline", "count", len(names))

		return result, nil
	}

	known := make(map[string]bool, len(t.previous.Repositories))
	for _, name := range t.previous.Repositories {
		known[name] = true
	}

	for _, repo := range repositories {
		if known[repo.FullName] {
			continue
		}

		t.logger.InfoContext(ctx, "Detected new repository", "repository", repo.FullName)

		result.Triggered = true
		result.Variables = models.Variables{
			{Key: "RepoName", Value: repo.FullName},
			{Key: "RepoURL", Value: repo.HTMLURL},
			{Key: "RepoDescription", Value: repo.Description},
		}

		break
	}

	return result, nil
}

// listRepositories returns (repos, true) on success. Transient failures
// return false; they are check failures, not configuration errors.
func (t *Trigger) listRepositories(ctx context.Context) ([]repository, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/user/repos?sort=created&direction=desc", nil)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to build request", "error", err)

		return nil, false
	}

	req.Header.Set("Authorization", "Bearer "+t.accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.WarnContext(ctx, "GitHub request failed", "error", err)

		return nil, false
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.logger.WarnContext(ctx, "GitHub returned non-OK status", "status", resp.StatusCode)

		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.logger.WarnContext(ctx, "Failed to read response body", "error", err)

		return nil, false
	}

	var repositories []repository

	err = json.Unmarshal(body, &repositories)
	if err != nil {
		t.logger.WarnContext(ctx, "Failed to parse repository list", "error", err)

		return nil, false
	}

	return repositories, true
}
