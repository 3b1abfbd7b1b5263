package githubrepos

import (
	"context"
	"encoding/json"
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

func fakeGithub(t *testing.T, status int, repos string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/repos", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(repos))
	}))
	t.Cleanup(server.Close)

	return server
}

func newTrigger(t *testing.T, server *httptest.Server, comparisonData json.RawMessage) *Trigger {
	t.Helper()

	trigger, err := NewTrigger(protocol.TriggerParams{
		StepID:         "step-1",
		AccessToken:    "token-1",
		ComparisonData: comparisonData,
	}, testLogger())
	require.NoError(t, err)

	trigger.baseURL = server.URL
	trigger.client = server.Client()

	return trigger
}

func TestFirstCheckEstablishesBaseline(t *testing.T) {
	server := fakeGithub(t, http.StatusOK, `[
		{"full_name":"user/alpha","html_url":"https://github.com/user/alpha","description":"first"}
	]`)

	trigger := newTrigger(t, server, nil)

	result, err := trigger.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, protocol.StatusSuccess, result.Status)
	assert.False(t, result.Triggered)
	assert.JSONEq(t, `{"repositories":["user/alpha"]}`, string(result.ComparisonData))
}

func TestNewRepositoryFires(t *testing.T) {
	server := fakeGithub(t, http.StatusOK, `[
		{"full_name":"user/beta","html_url":"https://github.com/user/beta","description":"the new one"},
		{"full_name":"user/alpha","html_url":"https://github.com/user/alpha","description":"first"}
	]`)

	trigger := newTrigger(t, server, json.RawMessage(`{"repositories":["user/alpha"]}`))

	result, err := trigger.Check(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Triggered)

	name, ok := result.Variables.Lookup("RepoName")
	require.True(t, ok)
	assert.Equal(t, "user/beta", name)

	url, _ := result.Variables.Lookup("RepoURL")
	assert.Equal(t, "https://github.com/user/beta", url)

	// Snapshot now includes the new repository.
	assert.JSONEq(t, `{"repositories":["user/beta","user/alpha"]}`, string(result.ComparisonData))
}

func TestUnchangedListDoesNotRefire(t *testing.T) {
	server := fakeGithub(t, http.StatusOK, `[
		{"full_name":"user/alpha","html_url":"https://github.com/user/alpha","description":"first"}
	]`)

	trigger := newTrigger(t, server, json.RawMessage(`{"repositories":["user/alpha"]}`))

	result, err := trigger.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Triggered)
}

func TestAPIFailureIsTransient(t *testing.T) {
	server := fakeGithub(t, http.StatusBadGateway, `oops`)

	trigger := newTrigger(t, server, json.RawMessage(`{"repositories":[]}`))

	result, err := trigger.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusFailure, result.Status)
	assert.False(t, result.Triggered)
	assert.Nil(t, result.ComparisonData)
}

func TestMissingTokenIsConfigError(t *testing.T) {
	_, err := NewTrigger(protocol.TriggerParams{StepID: "step-1"}, testLogger())
	assert.ErrorIs(t, err, ErrAccessTokenRequired)
}

func TestCorruptSnapshotIsConfigError(t *testing.T) {
	_, err := NewTrigger(protocol.TriggerParams{
		AccessToken:    "token-1",
		ComparisonData: json.RawMessage(`{broken`),
	}, testLogger())
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	factory := NewFactory()
	assert.Equal(t, "GithubReposJob", factory.ClassName())
}
