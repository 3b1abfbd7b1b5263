package logmsg

import (
	"log/slog"

	"github.com/zapflow/zapflow/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ClassName() string {
	return "LogJob"
}

func (f *Factory) Create(params protocol.ActionParams, logger *slog.Logger) (protocol.ActionJob, error) {
	return NewAction(params, logger)
}
