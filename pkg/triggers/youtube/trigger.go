// Package youtube implements the webhook trigger that fires when a channel
// publishes a new video. Enabling the trigger subscribes to the channel's
// Atom feed through the PubSubHubbub hub.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/zapflow/zapflow/pkg/protocol"
)

const (
	defaultHubURL = "https://pubsubhubbub.appspot.com/subscribe"
	topicURL      = "https://www.youtube.com/xml/feeds/videos.xml"
)

var ErrChannelIDRequired = errors.New("youtube trigger requires a channel_id payload field")

type Trigger struct {
	channelID string

	hubURL string
	client *http.Client
	logger *slog.Logger
}

func NewTrigger(params protocol.TriggerParams, logger *slog.Logger) (*Trigger, error) {
	channelID, _ := params.Payload["channel_id"].(string)
	if channelID == "" {
		return nil, ErrChannelIDRequired
	}

	return &Trigger{
		channelID: channelID,
		hubURL:    defaultHubURL,
		client:    http.DefaultClient,
		logger:    logger.With("trigger", "youtube"),
	}, nil
}

// Check never fires. Uploads arrive through hub deliveries, not polling.
func (t *Trigger) Check(_ context.Context) (protocol.CheckResult, error) {
	return protocol.CheckResult{Status: protocol.StatusSuccess}, nil
}

// Hook subscribes callbackURL to the channel feed. The hub verifies the
// subscription asynchronously through a GET on the callback.
func (t *Trigger) Hook(ctx context.Context, callbackURL, secret string, _ map[string]any, _ string) (bool, error) {
	form := url.Values{}
	form.Set("hub.mode", "subscribe")
	form.Set("hub.callback", callbackURL)
	form.Set("hub.topic", topicURL+"?channel_id="+url.QueryEscape(t.channelID))
	form.Set("hub.secret", secret)
	form.Set("hub.verify", "async")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.hubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build subscribe request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("hub subscribe request failed: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		t.logger.WarnContext(ctx, "Hub rejected subscription",
			"channel_id", t.channelID, "status", resp.StatusCode)

		return false, nil
	}

	t.logger.InfoContext(ctx, "Subscribed to channel feed", "channel_id", t.channelID)

	return true, nil
}
