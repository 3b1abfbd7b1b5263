package protocol

import (
	"context"
	"log/slog"

	"github.com/zapflow/zapflow/pkg/models"
)

// ExecuteResult is the outcome of one action step.
type ExecuteResult struct {
	Status    Status
	Variables models.Variables
}

// ActionParams carries everything an action job is constructed with. Payload
// string fields have already been interpolated by the runner.
type ActionParams struct {
	StepID      string
	AccessToken string
	Payload     map[string]any
}

// ActionJob performs one side effect. A failed external call (non-2xx,
// timeout) is reported as StatusFailure with no variables; the error return
// is reserved for configuration problems.
type ActionJob interface {
	Execute(ctx context.Context, variables models.Variables) (ExecuteResult, error)
}

// ActionJobFactory builds action jobs for one class name.
type ActionJobFactory interface {
	Create(params ActionParams, logger *slog.Logger) (ActionJob, error)
	ClassName() string
}
