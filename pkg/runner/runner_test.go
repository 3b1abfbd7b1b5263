package runner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/events"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence/file"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/registry"
)

type stubTriggerJob struct {
	result protocol.CheckResult
	err    error
}

func (j *stubTriggerJob) Check(_ context.Context) (protocol.CheckResult, error) {
	return j.result, j.err
}

type stubTriggerFactory struct {
	className string
	job       *stubTriggerJob

	mu         sync.Mutex
	lastParams protocol.TriggerParams
}

func (f *stubTriggerFactory) Create(params protocol.TriggerParams, _ *slog.Logger) (protocol.TriggerJob, error) {
	f.mu.Lock()
	f.lastParams = params
	f.mu.Unlock()

	return f.job, nil
}

func (f *stubTriggerFactory) ClassName() string { return f.className }

type stubActionJob struct {
	result protocol.ExecuteResult
	err    error

	payload   map[string]any
	variables models.Variables
}

func (j *stubActionJob) Execute(_ context.Context, variables models.Variables) (protocol.ExecuteResult, error) {
	j.variables = variables

	return j.result, j.err
}

type stubActionFactory struct {
	className string
	job       *stubActionJob
}

func (f *stubActionFactory) Create(params protocol.ActionParams, _ *slog.Logger) (protocol.ActionJob, error) {
	f.job.payload = params.Payload

	return f.job, nil
}

func (f *stubActionFactory) ClassName() string { return f.className }

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)

	return nil
}

func (p *capturingPublisher) last() eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.events) == 0 {
		return nil
	}

	return p.events[len(p.events)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	runner      *Runner
	persistence *file.Persistence
	registry    *registry.Registry
	publisher   *capturingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := testLogger()
	p := file.NewPersistence(t.TempDir())
	r := registry.NewRegistry(logger)
	publisher := &capturingPublisher{}

	return &fixture{
		runner:      NewRunner(logger, p, r, publisher, "worker-test", Config{}),
		persistence: p,
		registry:    r,
		publisher:   publisher,
	}
}

func chainZap(actions ...string) *models.Zap {
	zap := &models.Zap{
		ID:      "zap-1",
		UserID:  "user-1",
		Name:    "Test chain",
		Enabled: true,
		Steps: []*models.Step{
			{
				ID:        "step-trigger",
				ZapID:     "zap-1",
				Ordinal:   0,
				Type:      models.StepTypeTrigger,
				ClassName: "PollTrigger",
				Payload:   map[string]any{},
			},
		},
	}

	for i, className := range actions {
		zap.Steps = append(zap.Steps, &models.Step{
			ID:        "step-action-" + className,
			ZapID:     "zap-1",
			Ordinal:   i + 1,
			Type:      models.StepTypeAction,
			ClassName: className,
			Payload:   map[string]any{"message": "{{Greeting}}"},
		})
	}

	return zap
}

func TestRunTriggeredChainSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zap := chainZap("ActionA", "ActionB")
	zap.Steps[2].Payload = map[string]any{"message": "got {{FromA}}"}
	require.NoError(t, f.persistence.SaveZap(ctx, zap))

	f.registry.RegisterTrigger(&stubTriggerFactory{
		className: "PollTrigger",
		job: &stubTriggerJob{result: protocol.CheckResult{
			Status:    protocol.StatusSuccess,
			Triggered: true,
			Variables: models.Variables{{Key: "Greeting", Value: "hello"}},
		}},
	})

	jobA := &stubActionJob{result: protocol.ExecuteResult{
		Status:    protocol.StatusSuccess,
		Variables: models.Variables{{Key: "FromA", Value: "a-output"}},
	}}
	jobB := &stubActionJob{result: protocol.ExecuteResult{Status: protocol.StatusSuccess}}

	f.registry.RegisterAction(&stubActionFactory{className: "ActionA", job: jobA})
	f.registry.RegisterAction(&stubActionFactory{className: "ActionB", job: jobB})

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusDone, execution.Status)
	require.Len(t, execution.Steps, 3)
	assert.Equal(t, models.StepExecutionStatusSuccess, execution.Steps[0].Status)
	assert.Equal(t, models.StepExecutionStatusSuccess, execution.Steps[1].Status)
	assert.Equal(t, models.StepExecutionStatusSuccess, execution.Steps[2].Status)

	// Trigger output is interpolated into action payloads.
	assert.Equal(t, "hello", jobA.payload["message"])

	// Earlier action output is interpolated into later action payloads.
	assert.Equal(t, "got a-output", jobB.payload["message"])

	// Later actions see the accumulated variable set.
	_, ok := jobB.variables.Lookup("FromA")
	assert.True(t, ok)

	storedZap, err := f.persistence.ZapByID(ctx, "zap-1")
	require.NoError(t, err)
	assert.Equal(t, 1, storedZap.TotalRuns)
	assert.Equal(t, 1, storedZap.SuccessfulRuns)
	assert.Equal(t, 0, storedZap.FailedRuns)

	event := f.publisher.last()
	require.NotNil(t, event)
	assert.Equal(t, events.ExecutionFinishedEvent, event.GetType())
}

func TestRunFailedActionDoesNotStopChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveZap(ctx, chainZap("ActionA", "ActionB", "ActionC")))

	f.registry.RegisterTrigger(&stubTriggerFactory{
		className: "PollTrigger",
		job: &stubTriggerJob{result: protocol.CheckResult{
			Status:    protocol.StatusSuccess,
			Triggered: true,
		}},
	})

	jobA := &stubActionJob{result: protocol.ExecuteResult{Status: protocol.StatusSuccess}}
	jobB := &stubActionJob{result: protocol.ExecuteResult{Status: protocol.StatusFailure}}
	jobC := &stubActionJob{result: protocol.ExecuteResult{Status: protocol.StatusSuccess}}

	f.registry.RegisterAction(&stubActionFactory{className: "ActionA", job: jobA})
	f.registry.RegisterAction(&stubActionFactory{className: "ActionB", job: jobB})
	f.registry.RegisterAction(&stubActionFactory{className: "ActionC", job: jobC})

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Len(t, execution.Steps, 4)

	assert.Equal(t, models.StepExecutionStatusSuccess, execution.Steps[1].Status)
	assert.Equal(t, models.StepExecutionStatusFailure, execution.Steps[2].Status)
	assert.Equal(t, models.StepExecutionStatusSuccess, execution.Steps[3].Status)

	// The step after the failure was still attempted.
	assert.NotNil(t, jobC.variables)

	zap, err := f.persistence.ZapByID(ctx, "zap-1")
	require.NoError(t, err)
	assert.Equal(t, 1, zap.FailedRuns)
	assert.Equal(t, 0, zap.SuccessfulRuns)

	event := f.publisher.last()
	require.NotNil(t, event)
	assert.Equal(t, events.ExecutionFailedEvent, event.GetType())
}

func TestRunNoFireLeavesNoExecution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveZap(ctx, chainZap("ActionA")))

	snapshot := json.RawMessage(`{"seen":["a","b"]}`)
	f.registry.RegisterTrigger(&stubTriggerFactory{
		className: "PollTrigger",
		job: &stubTriggerJob{result: protocol.CheckResult{
			Status:         protocol.StatusSuccess,
			Triggered:      false,
			ComparisonData: snapshot,
		}},
	})
	f.registry.RegisterAction(&stubActionFactory{className: "ActionA", job: &stubActionJob{}})

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	assert.Empty(t, executions)

	zap, err := f.persistence.ZapByID(ctx, "zap-1")
	require.NoError(t, err)
	assert.Equal(t, 0, zap.TotalRuns)

	// Poll state still advances on a quiet check.
	trigger := zap.TriggerStep()
	require.NotNil(t, trigger)
	assert.JSONEq(t, `{"seen":["a","b"]}`, string(trigger.ComparisonData))
	assert.NotNil(t, trigger.LastExecution)

	assert.Nil(t, f.publisher.last())
}

func TestRunTriggerCheckFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveZap(ctx, chainZap("ActionA")))

	f.registry.RegisterTrigger(&stubTriggerFactory{
		className: "PollTrigger",
		job:       &stubTriggerJob{result: protocol.CheckResult{Status: protocol.StatusFailure}},
	})
	f.registry.RegisterAction(&stubActionFactory{className: "ActionA", job: &stubActionJob{}})

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Len(t, execution.Steps, 1)
	assert.Equal(t, models.StepExecutionStatusFailure, execution.Steps[0].Status)
	assert.Equal(t, "step-trigger", execution.Steps[0].StepID)

	zap, err := f.persistence.ZapByID(ctx, "zap-1")
	require.NoError(t, err)
	assert.Equal(t, 1, zap.FailedRuns)
}

func TestRunUnknownTriggerClass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveZap(ctx, chainZap("ActionA")))
	// Nothing registered under "PollTrigger".

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, executions[0].Status)
	require.Len(t, executions[0].Steps, 1)
	assert.Contains(t, executions[0].Steps[0].Error, "PollTrigger")
}

func TestRunUnknownActionClassFailsStepButContinues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveZap(ctx, chainZap("MissingAction", "ActionB")))

	f.registry.RegisterTrigger(&stubTriggerFactory{
		className: "PollTrigger",
		job: &stubTriggerJob{result: protocol.CheckResult{
			Status:    protocol.StatusSuccess,
			Triggered: true,
		}},
	})

	jobB := &stubActionJob{result: protocol.ExecuteResult{Status: protocol.StatusSuccess}}
	f.registry.RegisterAction(&stubActionFactory{className: "ActionB", job: jobB})

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Len(t, execution.Steps, 3)
	assert.Equal(t, models.StepExecutionStatusFailure, execution.Steps[1].Status)
	assert.Contains(t, execution.Steps[1].Error, "MissingAction")
	assert.Equal(t, models.StepExecutionStatusSuccess, execution.Steps[2].Status)
}

func TestRunDisabledZapIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zap := chainZap("ActionA")
	zap.Enabled = false
	require.NoError(t, f.persistence.SaveZap(ctx, zap))

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestRunUnknownZap(t *testing.T) {
	f := newFixture(t)

	err := f.runner.Run(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRunMissingTriggerStepIsNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zap := chainZap("ActionA")
	zap.Steps = zap.Steps[1:]
	zap.Steps[0].Ordinal = 0
	require.NoError(t, f.persistence.SaveZap(ctx, zap))

	// A nil return consumes the event; an error would redeliver it and
	// record the same configuration failure again.
	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, executions[0].Status)

	stored, err := f.persistence.ZapByID(ctx, "zap-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalRuns)
	assert.Equal(t, 1, stored.FailedRuns)
}

func TestRunTriggeredMissingTriggerStepIsNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zap := chainZap("ActionA")
	zap.Steps = zap.Steps[1:]
	zap.Steps[0].Ordinal = 0
	require.NoError(t, f.persistence.SaveZap(ctx, zap))

	require.NoError(t, f.runner.RunTriggered(ctx, "zap-1", nil))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, executions[0].Status)
}

func TestRunTriggerConfigError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveZap(ctx, chainZap("ActionA")))

	f.registry.RegisterTrigger(&stubTriggerFactory{
		className: "PollTrigger",
		job:       &stubTriggerJob{err: errors.New("payload missing repository")},
	})

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, executions[0].Status)
	assert.Contains(t, executions[0].Steps[0].Error, "repository")

	// No poll state advance on a check that never happened.
	zap, err := f.persistence.ZapByID(ctx, "zap-1")
	require.NoError(t, err)
	assert.Nil(t, zap.TriggerStep().LastExecution)
}

func TestRunExpiredConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, f.persistence.SaveConnection(ctx, &models.Connection{
		ID:          "conn-1",
		UserID:      "user-1",
		Service:     "github",
		AccessToken: "stale",
		ExpiresAt:   &expired,
	}))

	zap := chainZap("ActionA")
	connectionID := "conn-1"
	zap.Steps[0].ConnectionID = &connectionID
	require.NoError(t, f.persistence.SaveZap(ctx, zap))

	f.registry.RegisterTrigger(&stubTriggerFactory{
		className: "PollTrigger",
		job:       &stubTriggerJob{result: protocol.CheckResult{Status: protocol.StatusSuccess, Triggered: true}},
	})

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, executions[0].Status)
	assert.Contains(t, executions[0].Steps[0].Error, "expired")
}

func TestRunPassesConnectionTokenToTrigger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveConnection(ctx, &models.Connection{
		ID:          "conn-1",
		UserID:      "user-1",
		Service:     "github",
		AccessToken: "token-123",
	}))

	zap := chainZap()
	connectionID := "conn-1"
	zap.Steps[0].ConnectionID = &connectionID
	require.NoError(t, f.persistence.SaveZap(ctx, zap))

	factory := &stubTriggerFactory{
		className: "PollTrigger",
		job:       &stubTriggerJob{result: protocol.CheckResult{Status: protocol.StatusSuccess, Triggered: false}},
	}
	f.registry.RegisterTrigger(factory)

	require.NoError(t, f.runner.Run(ctx, "zap-1"))

	factory.mu.Lock()
	defer factory.mu.Unlock()
	assert.Equal(t, "token-123", factory.lastParams.AccessToken)
	assert.Equal(t, "step-trigger", factory.lastParams.StepID)
}

func TestRunTriggeredBypassesCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.SaveZap(ctx, chainZap("ActionA")))

	// No trigger factory registered: the webhook path must not need one.
	jobA := &stubActionJob{result: protocol.ExecuteResult{Status: protocol.StatusSuccess}}
	f.registry.RegisterAction(&stubActionFactory{className: "ActionA", job: jobA})

	variables := models.Variables{{Key: "Greeting", Value: "from-webhook"}}
	require.NoError(t, f.runner.RunTriggered(ctx, "zap-1", variables))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	execution := executions[0]
	assert.Equal(t, models.ExecutionStatusDone, execution.Status)
	require.Len(t, execution.Steps, 2)
	assert.Equal(t, models.StepExecutionStatusSuccess, execution.Steps[0].Status)

	assert.Equal(t, "from-webhook", jobA.payload["message"])
}

func TestRunTriggeredDisabledZapDropsDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zap := chainZap("ActionA")
	zap.Enabled = false
	require.NoError(t, f.persistence.SaveZap(ctx, zap))

	require.NoError(t, f.runner.RunTriggered(ctx, "zap-1", nil))

	executions, err := f.persistence.ExecutionsByZap(ctx, "zap-1", 10)
	require.NoError(t, err)
	assert.Empty(t, executions)
}
