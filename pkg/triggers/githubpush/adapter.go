package githubpush

import (
	"errors"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

var ErrNotPushEvent = errors.New("delivery is not a push event")

// Adapter maps a GitHub push delivery onto trigger output variables.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) ExtractVariables(hook protocol.InboundWebhook) (models.Variables, error) {
	ref, _ := hook.Body["ref"].(string)
	if ref == "" {
		return nil, ErrNotPushEvent
	}

	var message string
	if headCommit, ok := hook.Body["head_commit"].(map[string]any); ok {
		message, _ = headCommit["message"].(string)
	}

	var pusher string
	if p, ok := hook.Body["pusher"].(map[string]any); ok {
		pusher, _ = p["name"].(string)
	}

	return models.Variables{
		{Key: "Ref", Value: ref},
		{Key: "CommitMessage", Value: message},
		{Key: "Pusher", Value: pusher},
	}, nil
}
