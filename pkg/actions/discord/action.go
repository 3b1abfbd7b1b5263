// Package discord implements the action that posts a message to a Discord
// channel through a bot connection.
package discord

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

const defaultBaseURL = "https://discord.com/api/v10"

var (
	ErrAccessTokenRequired = errors.New("discord action requires a connection access token")
	ErrChannelIDRequired   = errors.New("discord action requires a channel_id payload field")
	ErrMessageRequired     = errors.New("discord action requires a message payload field")
)

type Action struct {
	accessToken string
	channelID   string
	message     string

	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewAction(params protocol.ActionParams, logger *slog.Logger) (*Action, error) {
	if params.AccessToken == "" {
		return nil, ErrAccessTokenRequired
	}

	channelID, _ := params.Payload["channel_id"].(string)
	if channelID == "" {
		return nil, ErrChannelIDRequired
	}

	message, _ := params.Payload["message"].(string)
	if message == "" {
		return nil, ErrMessageRequired
	}

	return &Action{
		accessToken: params.AccessToken,
		channelID:   channelID,
		message:     message,
		baseURL:     defaultBaseURL,
		client:      http.DefaultClient,
		logger:      logger.With("action", "discord"),
	}, nil
}

func (a *Action) Execute(ctx context.Context, _ models.Variables) (protocol.ExecuteResult, error) {
	body, err := json.Marshal(map[string]string{"content": a.message})
	if err != nil {
		return protocol.ExecuteResult{}, fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := a.baseURL + "/channels/" + a.channelID + "/messages"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return protocol.ExecuteResult{}, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WarnContext(ctx, "Discord request failed", "error", err)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		a.logger.WarnContext(ctx, "Discord returned non-OK status",
			"channel_id", a.channelID, "status", resp.StatusCode)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	var created struct {
		ID string `json:"id"`
	}

	err = json.NewDecoder(resp.Body).Decode(&created)
	if err != nil {
		a.logger.WarnContext(ctx, "Failed to parse Discord response", "error", err)

		return protocol.ExecuteResult{Status: protocol.StatusFailure}, nil
	}

	a.logger.InfoContext(ctx, "Posted channel message", "channel_id", a.channelID, "message_id", created.ID)

	return protocol.ExecuteResult{
		Status:    protocol.StatusSuccess,
		Variables: models.Variables{{Key: "MessageID", Value: created.ID}},
	}, nil
}
