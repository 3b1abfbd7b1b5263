package youtube

import (
	"log/slog"

	"github.com/zapflow/zapflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ClassName() string {
	return "YoutubeJob"
}

func (f *Factory) Create(params protocol.TriggerParams, logger *slog.Logger) (protocol.TriggerJob, error) {
	return NewTrigger(params, logger)
}
