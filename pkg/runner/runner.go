// Package runner orchestrates single Zap runs: trigger check, action chain,
// variable accumulation, and execution recording.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zapflow/zapflow/pkg/catalog"
	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/events"
	"github.com/zapflow/zapflow/pkg/interpolation"
	"github.com/zapflow/zapflow/pkg/log"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/otelhelper"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/registry"
)

// DefaultStepTimeout bounds each trigger check and action execution.
const DefaultStepTimeout = 30 * time.Second

var (
	ErrZapDisabled        = errors.New("zap is disabled")
	ErrTriggerStepMissing = errors.New("zap has no trigger step at ordinal 0")
)

// Config tunes a Runner. The zero value is usable.
type Config struct {
	// StepTimeout bounds each external call (trigger check, action
	// execute). Zero means DefaultStepTimeout.
	StepTimeout time.Duration
}

type Runner struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	workerID    string
	stepTimeout time.Duration

	now func() time.Time
}

func NewRunner(
	logger *slog.Logger,
	p persistence.Persistence,
	r *registry.Registry,
	publisher eventbus.EventPublisher,
	workerID string,
	cfg Config,
) *Runner {
	timeout := cfg.StepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}

	return &Runner{
		logger:      logger.With("module", "runner", "worker_id", workerID),
		persistence: p,
		registry:    r,
		publisher:   publisher,
		tracer:      otel.Tracer("zapflow.runner"),
		workerID:    workerID,
		stepTimeout: timeout,
		now:         time.Now,
	}
}

// Run evaluates a Zap's trigger and, if it fired, executes the action chain.
// This is the scheduler/polling path; webhook deliveries go through
// RunTriggered instead.
//
// A trigger that checked cleanly but did not fire leaves no execution record;
// only the step's poll state advances. Configuration problems and failed
// checks are surfaced as a FAILED execution.
func (r *Runner) Run(ctx context.Context, zapID string) error {
	logger := log.WithZap(r.logger, zapID)

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "zap.run",
		attribute.String(otelhelper.ZapIDKey, zapID),
		attribute.String(otelhelper.WorkerIDKey, r.workerID),
	)
	defer span.End()

	zap, trigger, err := r.loadRunnableZap(ctx, zapID)
	if err != nil {
		if errors.Is(err, ErrZapDisabled) {
			logger.Info("Skipping disabled zap")

			return nil
		}

		if errors.Is(err, ErrTriggerStepMissing) {
			// Already recorded as a FAILED execution. Returning an error
			// would redeliver the event and record it again.
			logger.Error("Zap has no trigger step", "error", err)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	startedAt := r.now()

	result, checkErr := r.checkTrigger(ctx, zap, trigger)
	checkedAt := r.now()

	if checkErr != nil {
		logger.Error("Trigger check is not runnable", "error", checkErr, "class_name", trigger.ClassName)
		otelhelper.SetError(span, checkErr)
		r.recordTriggerFailure(ctx, zap, trigger, startedAt, checkErr.Error())

		return nil
	}

	// Poll state advances after every completed check, fired or not, so the
	// scheduler's dueness window stays accurate.
	err = r.persistence.UpdateStepPollState(ctx, trigger.ID, result.ComparisonData, checkedAt)
	if err != nil {
		logger.Error("Failed to persist poll state", "error", err)
	}

	if result.Status == protocol.StatusFailure {
		logger.Warn("Trigger check failed", "class_name", trigger.ClassName)
		r.recordTriggerFailure(ctx, zap, trigger, startedAt, "trigger check failed")

		return nil
	}

	if !result.Triggered {
		logger.Debug("Trigger did not fire")

		return nil
	}

	logger.Info("Trigger fired", "class_name", trigger.ClassName, "variables", len(result.Variables))

	execution := r.newExecution(zap.ID, startedAt)
	execution.Steps = append(execution.Steps, &models.StepExecution{
		ID:          uuid.NewString(),
		ExecutionID: execution.ID,
		StepID:      trigger.ID,
		Ordinal:     trigger.Ordinal,
		Status:      models.StepExecutionStatusSuccess,
		Output:      result.Variables,
		StartedAt:   startedAt,
		FinishedAt:  checkedAt,
		DurationMs:  checkedAt.Sub(startedAt).Milliseconds(),
	})

	return r.runActions(ctx, logger, zap, execution, result.Variables)
}

// RunTriggered executes a Zap whose trigger already fired externally. The
// given variables come from the webhook adapter and seed the action chain;
// no trigger check happens.
func (r *Runner) RunTriggered(ctx context.Context, zapID string, variables models.Variables) error {
	logger := log.WithZap(r.logger, zapID).With("source", "webhook")

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "zap.run_triggered",
		attribute.String(otelhelper.ZapIDKey, zapID),
		attribute.String(otelhelper.WorkerIDKey, r.workerID),
		attribute.String(otelhelper.SourceKey, string(events.SourceWebhook)),
	)
	defer span.End()

	zap, trigger, err := r.loadRunnableZap(ctx, zapID)
	if err != nil {
		if errors.Is(err, ErrZapDisabled) {
			logger.Info("Dropping webhook delivery for disabled zap")

			return nil
		}

		if errors.Is(err, ErrTriggerStepMissing) {
			logger.Error("Zap has no trigger step", "error", err)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	startedAt := r.now()

	execution := r.newExecution(zap.ID, startedAt)
	execution.Steps = append(execution.Steps, &models.StepExecution{
		ID:          uuid.NewString(),
		ExecutionID: execution.ID,
		StepID:      trigger.ID,
		Ordinal:     trigger.Ordinal,
		Status:      models.StepExecutionStatusSuccess,
		Output:      variables,
		StartedAt:   startedAt,
		FinishedAt:  startedAt,
	})

	logger.Info("Running webhook-triggered zap", "variables", len(variables))

	return r.runActions(ctx, logger, zap, execution, variables)
}

func (r *Runner) loadRunnableZap(ctx context.Context, zapID string) (*models.Zap, *models.Step, error) {
	zap, err := r.persistence.ZapByID(ctx, zapID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch zap %s: %w", zapID, err)
	}

	if !zap.Enabled {
		return nil, nil, ErrZapDisabled
	}

	trigger := zap.TriggerStep()
	if trigger == nil {
		// Misconfigured beyond running; record the failure so it shows in
		// history and counters.
		r.recordConfigFailure(ctx, zap, ErrTriggerStepMissing.Error())

		return nil, nil, persistence.NewZapError("Run", zapID, ErrTriggerStepMissing)
	}

	return zap, trigger, nil
}

func (r *Runner) checkTrigger(ctx context.Context, zap *models.Zap, trigger *models.Step) (protocol.CheckResult, error) {
	accessToken, err := r.accessToken(ctx, trigger)
	if err != nil {
		return protocol.CheckResult{}, err
	}

	definitionKind, interval := triggerShape(trigger)

	job, err := r.registry.BuildTrigger(trigger.ClassName, protocol.TriggerParams{
		StepID:          trigger.ID,
		Kind:            definitionKind,
		LastExecution:   trigger.LastExecution,
		PollingInterval: interval,
		AccessToken:     accessToken,
		Payload:         trigger.Payload,
		ComparisonData:  trigger.ComparisonData,
	})
	if err != nil {
		return protocol.CheckResult{}, err
	}

	checkCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()

	checkCtx, span := otelhelper.StartSpan(checkCtx, r.tracer, "trigger.check",
		attribute.String(otelhelper.StepIDKey, trigger.ID),
		attribute.String(otelhelper.StepClassKey, trigger.ClassName),
	)
	defer span.End()

	result, err := job.Check(checkCtx)
	if err != nil {
		otelhelper.SetError(span, err)

		return protocol.CheckResult{}, err
	}

	return result, nil
}

// runActions executes the action chain with the accumulated variable set. A
// failed action does not stop later actions; the run is FAILED overall if
// any step failed.
func (r *Runner) runActions(ctx context.Context, logger *slog.Logger, zap *models.Zap, execution *models.Execution, variables models.Variables) error {
	failed := false

	for _, step := range zap.ActionSteps() {
		stepExecution := r.runAction(ctx, logger, step, execution.ID, variables)
		execution.Steps = append(execution.Steps, stepExecution)

		if stepExecution.Status == models.StepExecutionStatusSuccess {
			variables = variables.Append(stepExecution.Output...)
		} else {
			failed = true
		}
	}

	status := models.ExecutionStatusDone
	if failed {
		status = models.ExecutionStatusFailed
	}

	execution.Finalize(status, r.now())
	r.persistRun(ctx, logger, zap.ID, execution)

	logger.Info("Zap run finished",
		"execution_id", execution.ID,
		"status", string(status),
		"steps", len(execution.Steps),
		"duration_ms", execution.DurationMs,
	)

	return nil
}

func (r *Runner) runAction(ctx context.Context, logger *slog.Logger, step *models.Step, executionID string, variables models.Variables) *models.StepExecution {
	startedAt := r.now()

	stepExecution := &models.StepExecution{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		StepID:      step.ID,
		Ordinal:     step.Ordinal,
		StartedAt:   startedAt,
	}

	fail := func(message string) *models.StepExecution {
		finishedAt := r.now()
		stepExecution.Status = models.StepExecutionStatusFailure
		stepExecution.Error = message
		stepExecution.FinishedAt = finishedAt
		stepExecution.DurationMs = finishedAt.Sub(startedAt).Milliseconds()

		return stepExecution
	}

	accessToken, err := r.accessToken(ctx, step)
	if err != nil {
		logger.Error("Action connection is unusable", "step_id", step.ID, "error", err)

		return fail(err.Error())
	}

	payload := interpolation.ApplyPayload(variables, step.Payload)

	job, err := r.registry.BuildAction(step.ClassName, protocol.ActionParams{
		StepID:      step.ID,
		AccessToken: accessToken,
		Payload:     payload,
	})
	if err != nil {
		logger.Error("Failed to build action", "step_id", step.ID, "class_name", step.ClassName, "error", err)

		return fail(err.Error())
	}

	executeCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()

	executeCtx, span := otelhelper.StartSpan(executeCtx, r.tracer, "action.execute",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepClassKey, step.ClassName),
		attribute.Int(otelhelper.StepOrdinalKey, step.Ordinal),
	)
	defer span.End()

	result, err := job.Execute(executeCtx, variables)
	finishedAt := r.now()

	if err != nil {
		otelhelper.SetError(span, err)
		logger.Error("Action is not runnable", "step_id", step.ID, "class_name", step.ClassName, "error", err)

		return fail(err.Error())
	}

	if result.Status == protocol.StatusFailure {
		logger.Warn("Action failed", "step_id", step.ID, "class_name", step.ClassName)

		return fail("action execution failed")
	}

	stepExecution.Status = models.StepExecutionStatusSuccess
	stepExecution.Output = result.Variables
	stepExecution.FinishedAt = finishedAt
	stepExecution.DurationMs = finishedAt.Sub(startedAt).Milliseconds()

	return stepExecution
}

// accessToken resolves the step's connection, if any. A missing or expired
// connection is a configuration problem.
func (r *Runner) accessToken(ctx context.Context, step *models.Step) (string, error) {
	if step.ConnectionID == nil {
		return "", nil
	}

	connection, err := r.persistence.ConnectionByID(ctx, *step.ConnectionID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch connection %s: %w", *step.ConnectionID, err)
	}

	if connection.Expired(r.now()) {
		return "", fmt.Errorf("connection %s for service %s is expired", connection.ID, connection.Service)
	}

	return connection.AccessToken, nil
}

func (r *Runner) newExecution(zapID string, startedAt time.Time) *models.Execution {
	return &models.Execution{
		ID:        uuid.NewString(),
		ZapID:     zapID,
		Status:    models.ExecutionStatusInProgress,
		StartedAt: startedAt,
		Steps:     make([]*models.StepExecution, 0),
	}
}

// recordTriggerFailure finalizes a FAILED execution whose only entry is the
// failed trigger step.
func (r *Runner) recordTriggerFailure(ctx context.Context, zap *models.Zap, trigger *models.Step, startedAt time.Time, message string) {
	finishedAt := r.now()

	execution := r.newExecution(zap.ID, startedAt)
	execution.Steps = append(execution.Steps, &models.StepExecution{
		ID:          uuid.NewString(),
		ExecutionID: execution.ID,
		StepID:      trigger.ID,
		Ordinal:     trigger.Ordinal,
		Status:      models.StepExecutionStatusFailure,
		Error:       message,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		DurationMs:  finishedAt.Sub(startedAt).Milliseconds(),
	})
	execution.Finalize(models.ExecutionStatusFailed, finishedAt)

	r.persistRun(ctx, log.WithZap(r.logger, zap.ID), zap.ID, execution)
}

// recordConfigFailure finalizes an empty FAILED execution for Zaps broken
// before any step could run.
func (r *Runner) recordConfigFailure(ctx context.Context, zap *models.Zap, message string) {
	startedAt := r.now()

	execution := r.newExecution(zap.ID, startedAt)
	execution.Finalize(models.ExecutionStatusFailed, startedAt)

	logger := log.WithZap(r.logger, zap.ID)
	logger.Error("Zap cannot run until reconfigured", "error", message)

	r.persistRun(ctx, logger, zap.ID, execution)
}

// persistRun saves the finalized execution, bumps the Zap counters, and
// publishes the lifecycle event. Persistence errors are logged, not
// propagated: the run itself already happened.
func (r *Runner) persistRun(ctx context.Context, logger *slog.Logger, zapID string, execution *models.Execution) {
	err := r.persistence.SaveExecution(ctx, execution)
	if err != nil {
		logger.Error("Failed to save execution", "execution_id", execution.ID, "error", err)
	}

	err = r.persistence.IncrementZapCounters(ctx, zapID, execution.Status)
	if err != nil {
		logger.Error("Failed to update zap counters", "error", err)
	}

	if r.publisher == nil {
		return
	}

	duration := time.Duration(execution.DurationMs) * time.Millisecond

	var event eventbus.Event

	if execution.Status == models.ExecutionStatusDone {
		finished := events.ExecutionFinished{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFinishedEvent, zapID),
			ExecutionID: execution.ID,
			Duration:    duration,
		}
		finished.WorkerID = r.workerID
		event = finished
	} else {
		failed := events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, zapID),
			ExecutionID: execution.ID,
			Error:       firstStepError(execution),
			Duration:    duration,
		}
		failed.WorkerID = r.workerID
		event = failed
	}

	err = r.publisher.Publish(ctx, zapID, event)
	if err != nil {
		logger.Error("Failed to publish execution event", "execution_id", execution.ID, "error", err)
	}
}

func firstStepError(execution *models.Execution) string {
	for _, step := range execution.Steps {
		if step.Error != "" {
			return step.Error
		}
	}

	return "execution failed"
}

// triggerShape derives the trigger kind and polling interval from the static
// catalog entry for the step's class, falling back to polling defaults when
// the class is not cataloged (custom registrations).
func triggerShape(step *models.Step) (models.TriggerKind, time.Duration) {
	if definition, ok := catalog.TriggerByClassName(step.ClassName); ok {
		return definition.Kind, definition.PollingInterval
	}

	return models.TriggerKindPolling, 0
}
