// Package logmsg implements the log action. It writes a message to the
// worker log, mostly useful while building and debugging Zaps.
package logmsg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

var (
	ErrMessageRequired = errors.New("log action requires a message payload field")
	ErrLevelInvalid    = errors.New("invalid log level")
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

type Action struct {
	message string
	level   slog.Level
	logger  *slog.Logger
}

func NewAction(params protocol.ActionParams, logger *slog.Logger) (*Action, error) {
	message, _ := params.Payload["message"].(string)
	if message == "" {
		return nil, ErrMessageRequired
	}

	levelName, ok := params.Payload["level"].(string)
	if !ok {
		levelName = "info"
	}

	level, ok := levels[levelName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLevelInvalid, levelName)
	}

	return &Action{
		message: message,
		level:   level,
		logger:  logger.With("action", "log"),
	}, nil
}

func (a *Action) Execute(ctx context.Context, _ models.Variables) (protocol.ExecuteResult, error) {
	a.logger.Log(ctx, a.level, a.message)

	return protocol.ExecuteResult{Status: protocol.StatusSuccess}, nil
}
