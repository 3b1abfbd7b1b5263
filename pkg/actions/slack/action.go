// Package slack implements the action that posts a message to a Slack
// channel through chat.postMessage.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

const defaultBaseURL = "https://slack.com/api"

var (
	ErrAccessTokenRequired = errors.New("slack action requires a connection access token")
	ErrChannelRequired     = errors.New("slack action requires a channel payload field")
	ErrMessageRequired     = errors.New("slack action requires a message payload field")
)

type Action struct {
	accessToken string
	channel     string
	message     string

	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewAction(params protocol.ActionParams, logger *slog.Logger) (*Action, error) {
	if params.AccessToken == "" {
		return nil, ErrAccessTokenRequired
	}

	channel, _ := params.Payload["channel"].(string)
	if channel == "" {
		return nil, ErrChannelRequired
	}

	message, _ := params.Payload["message"].(string)
	if message == "" {
		return nil, ErrMessageRequired
	}

	return &Action{
		accessToken: params.AccessToken,
		channel:     channel,
		message:     message,
		baseURL:     defaultBaseURL,
		client:      http.DefaultClient,
		logger:      logger.With("action", "slack"),
	}, nil
}

// Execute posts the message. Slack reports application errors through an
// "ok" field on a 200 response, so both transports are checked.
func (a *Action) Execute(ctx context.Context, _ models.Variables) (protocol.ExecuteResult, error) {
	body, err := json.Marshal(map[string]string{
		"channel": a.channel,
		"text":    a.message,
	})
	if err != nil {
		return protocol.ExecuteResult{}, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return protocol.ExecuteResult{}, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WarnContext(ctx, "Slack request failed", "error", err)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		a.logger.WarnContext(ctx, "Slack returned non-OK status", "channel", a.channel, "status", resp.StatusCode)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	var posted struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		TS    string `json:"ts"`
	}

	err = json.NewDecoder(resp.Body).Decode(&posted)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to parse Slack response", "error", err)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	if !posted.OK {
		a.logger.WarnContext(ctx, "Slack rejected the message", "channel", a.channel, "error", posted.Error)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	a.logger.InfoContext(ctx, "Posted channel message", "channel", a.channel, "ts", posted.TS)

	return protocol.ExecuteResult{
		Status:    protocol.StatusSuccess,
		Variables: models.Variables{{Key: "MessageTimestamp", Value: posted.TS}},
	}, nil
}
