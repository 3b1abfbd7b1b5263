// Package protocol defines the interfaces between the runner and the
// trigger/action job implementations.
package protocol

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// CheckResult is the outcome of one trigger check.
type CheckResult struct {
	Status    Status
	Triggered bool
	Variables models.Variables

	// ComparisonData is the updated snapshot the runner must persist onto the
	// step before the next scheduled check. Nil means unchanged.
	ComparisonData json.RawMessage
}

// TriggerParams carries everything a trigger job is constructed with.
type TriggerParams struct {
	StepID          string
	Kind            models.TriggerKind
	LastExecution   *time.Time
	PollingInterval time.Duration
	AccessToken     string
	Payload         map[string]any
	ComparisonData  json.RawMessage
}

// TriggerJob detects whether a trigger condition has fired.
//
// Transient failures (non-2xx, timeout, network error) are reported via
// CheckResult.Status, not as an error; the error return is reserved for
// configuration problems that make the check impossible.
type TriggerJob interface {
	Check(ctx context.Context) (CheckResult, error)
}

// WebhookJob is implemented by webhook-backed triggers. Hook is called once
// at Zap activation to register the subscription with the external provider;
// a false return or error means activation must fail.
type WebhookJob interface {
	Hook(ctx context.Context, webhookURL, secret string, payload map[string]any, accessToken string) (bool, error)
}

// InboundWebhook is a normalized inbound HTTP payload: the body decoded from
// JSON or XML into a map tree, plus headers and query parameters.
type InboundWebhook struct {
	Headers map[string]string
	Query   map[string]string
	Body    map[string]any
}

// WebhookAdapter turns an inbound webhook delivery into the variable set the
// trigger declares, fed to the orchestrator as an already-triggered result.
type WebhookAdapter interface {
	ExtractVariables(hook InboundWebhook) (models.Variables, error)
}

// TriggerJobFactory builds trigger jobs for one class name.
type TriggerJobFactory interface {
	Create(params TriggerParams, logger *slog.Logger) (TriggerJob, error)
	ClassName() string
}
