// Package gmail implements the polling trigger that fires when a new message
// arrives in the connected inbox.
package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

const defaultBaseURL = "https://gmail.googleapis.com"

var ErrAccessTokenRequired = errors.New("gmail trigger requires a connection access token")

type snapshot struct {
	EmailIDs []string `json:"emailIds"`
}

type messageRef struct {
	ID string `json:"id"`
}

type messageList struct {
	Messages []messageRef `json:"messages"`
}

type messageDetail struct {
	Snippet string `json:"snippet"`
	Payload struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
}

type Trigger struct {
	accessToken string
	query       string
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

	query, _ := params.Payload["query"].(string)

	trigger := &Trigger{
		accessToken: params.AccessToken,
		query:       query,
		firstCheck:  params.ComparisonData == nil,
		baseURL:     defaultBaseURL,
		client:      http.DefaultClient,
		logger:      logger.With("trigger", "gmail"),
	}

	if params.ComparisonData != nil {
		err := json.Unmarshal(params.ComparisonData, &trigger.previous)
		if err != nil {
			return nil, fmt.Errorf("corrupt comparison data: %w", err)
		}
	}

	return trigger, nil
}

// Check lists inbox message ids and fires on ids absent from the prior
// snapshot. The first check only establishes the baseline.
func (t *Trigger) Check(ctx context.Context) (protocol.CheckResult, error) {
	ids, ok := t.listMessageIDs(ctx)
	if !ok {
		return protocol.CheckResult{Status: protocol.StatusFailure}, nil
	}

	comparisonData, err := json.Marshal(snapshot{EmailIDs: ids})
	if err != nil {
		return protocol.CheckResult{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	result := protocol.CheckResult{
		Status:         protocol.StatusSuccess,
		ComparisonData: comparisonData,
	}

	if t.firstCheck {
		t.logger.InfoContext(ctx, "Established inbox baseline", "count", len(ids))

		return result, nil
	}

	known := make(map[string]bool, len(t.previous.EmailIDs))
	for _, id := range t.previous.EmailIDs {
		known[id] = true
	}

	for _, id := range ids {
		if known[id] {
			continue
		}

		detail, ok := t.fetchMessage(ctx, id)
		if !ok {
			return protocol.CheckResult{Status: protocol.StatusFailure}, nil
		}

		t.logger.InfoContext(ctx, "Detected new message", "message_id", id)

		result.Triggered = true
		result.Variables = models.Variables{
			{Key: "EmailSubject", Value: header(detail, "Subject")},
			{Key: "EmailFrom", Value: header(detail, "From")},
			{Key: "EmailSnippet", Value: detail.Snippet},
		}

		break
	}

	return result, nil
}

func (t *Trigger) listMessageIDs(ctx context.Context) ([]string, bool) {
	endpoint := t.baseURL + "/gmail/v1/users/me/messages"
	if t.query != "" {
		endpoint += "?q=" + url.QueryEscape(t.query)
	}

	var list messageList

	ok := t.getJSON(ctx, endpoint, &list)
	if !ok {
		return nil, false
	}

	ids := make([]string, 0, len(list.Messages))
	for _, message := range list.Messages {
		ids = append(ids, message.ID)
	}

	return ids, true
}

func (t *Trigger) fetchMessage(ctx context.Context, id string) (messageDetail, bool) {
	var detail messageDetail

	ok := t.getJSON(ctx, t.baseURL+"/gmail/v1/users/me/messages/"+id+"?format=metadata", &detail)

	return detail, ok
}

func (t *Trigger) getJSON(ctx context.Context, endpoint string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to build request", "error", err)

		return false
	}

	req.Header.Set("Authorization", "Bearer "+t.accessToken)

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.WarnContext(ctx, "Gmail request failed", "error", err)

		return false
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		t.logger.WarnContext(ctx, "Gmail returned non-OK status", "status", resp.StatusCode)

		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.logger.WarnContext(ctx, "Failed to read response body", "error", err)

		return false
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		t.logger.WarnContext(ctx, "Failed to parse response", "error", err)

		return false
	}

	return true
}

func header(detail messageDetail, name string) string {
	for _, h := range detail.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}

	return ""
}
