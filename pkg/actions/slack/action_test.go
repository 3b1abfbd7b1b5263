package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newAction(t *testing.T, server *httptest.Server) *Action {
	t.Helper()

	action, err := NewAction(protocol.ActionParams{
		StepID:      "step-1",
		AccessToken: "xoxb-token",
		Payload:     map[string]any{"channel": "#deploys", "message": "release v2 shipped"},
	}, testLogger())
	require.NoError(t, err)

	action.baseURL = server.URL
	action.client = server.Client()

	return action
}

func TestPostsMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-token", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "#deploys", payload["channel"])
		assert.Equal(t, "release v2 shipped", payload["text"])

		_, _ = w.Write([]byte(`{"ok":true,"ts":"1727372400.000100"}`))
	}))
	t.Cleanup(server.Close)

	action := newAction(t, server)

	result, err := action.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, protocol.StatusSuccess, result.Status)

	ts, ok := result.Variables.Lookup("MessageTimestamp")
	require.True(t, ok)
	assert.Equal(t, "1727372400.000100", ts)
}

func TestApplicationErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	t.Cleanup(server.Close)

	action := newAction(t, server)

	result, err := action.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFailure, result.Status)
}

func TestTransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	action := newAction(t, server)

	result, err := action.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFailure, result.Status)
}

func TestMissingChannelIsConfigError(t *testing.T) {
	_, err := NewAction(protocol.ActionParams{
		AccessToken: "xoxb-token",
		Payload:     map[string]any{"message": "hi"},
	}, testLogger())
	assert.ErrorIs(t, err, ErrChannelRequired)
}

func TestMissingMessageIsConfigError(t *testing.T) {
	_, err := NewAction(protocol.ActionParams{
		AccessToken: "xoxb-token",
		Payload:     map[string]any{"channel": "#deploys"},
	}, testLogger())
	assert.ErrorIs(t, err, ErrMessageRequired)
}

func TestFactory(t *testing.T) {
	factory := NewFactory()
	assert.Equal(t, "SlackJob", factory.ClassName())
}
