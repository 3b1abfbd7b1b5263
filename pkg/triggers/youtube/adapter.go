package youtube

import (
	"errors"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

var ErrNoEntry = errors.New("feed has no entry")

// Adapter maps an Atom feed notification onto trigger output variables. The
// webhook server decodes the XML into a map tree before it reaches us.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) ExtractVariables(hook protocol.InboundWebhook) (models.Variables, error) {
	feed, ok := hook.Body["feed"].(map[string]any)
	if !ok {
		return nil, ErrNoEntry
	}

	entry, ok := firstEntry(feed["entry"])
	if !ok {
		return nil, ErrNoEntry
	}

	title, _ := entry["title"].(string)

	var videoURL string
	if link, ok := entry["link"].(map[string]any); ok {
		videoURL, _ = link["href"].(string)
	}

	var channelName string
	if author, ok := entry["author"].(map[string]any); ok {
		channelName, _ = author["name"].(string)
	}

	return models.Variables{
		{Key: "VideoTitle", Value: title},
		{Key: "VideoURL", Value: videoURL},
		{Key: "ChannelName", Value: channelName},
	}, nil
}

// firstEntry handles both a single entry element and a repeated list.
func firstEntry(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case []any:
		if len(v) == 0 {
			return nil, false
		}

		entry, ok := v[0].(map[string]any)

		return entry, ok
	default:
		return nil, false
	}
}
