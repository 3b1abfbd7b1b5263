package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

type stubTriggerJob struct{}

func (stubTriggerJob) Check(_ context.Context) (protocol.CheckResult, error) {
	return protocol.CheckResult{Status: protocol.StatusSuccess, Triggered: true}, nil
}

type stubTriggerFactory struct{ name string }

func (f stubTriggerFactory) ClassName() string { return f.name }

func (f stubTriggerFactory) Create(_ protocol.TriggerParams, _ *slog.Logger) (protocol.TriggerJob, error) {
	return stubTriggerJob{}, nil
}

type stubActionJob struct{}

func (stubActionJob) Execute(_ context.Context, _ models.Variables) (protocol.ExecuteResult, error) {
	return protocol.ExecuteResult{Status: protocol.StatusSuccess}, nil
}

type stubActionFactory struct{ name string }

func (f stubActionFactory) ClassName() string { return f.name }

func (f stubActionFactory) Create(_ protocol.ActionParams, _ *slog.Logger) (protocol.ActionJob, error) {
	return stubActionJob{}, nil
}

func testRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestBuildTrigger(t *testing.T) {
	reg := testRegistry()
	reg.RegisterTrigger(stubTriggerFactory{name: "GithubNewRepository"})

	job, err := reg.BuildTrigger("GithubNewRepository", protocol.TriggerParams{StepID: "step-1"})

	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestBuildTriggerNotFound(t *testing.T) {
	reg := testRegistry()

	job, err := reg.BuildTrigger("UnknownClass", protocol.TriggerParams{StepID: "step-9"})

	require.Error(t, err)
	assert.Nil(t, job)
	assert.True(t, IsJobNotFound(err))

	var notFound *JobNotFoundError

	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "step-9", notFound.StepID)
	assert.Equal(t, "UnknownClass", notFound.ClassName)
	assert.Equal(t, JobKindTrigger, notFound.Kind)
}

func TestBuildActionNotFound(t *testing.T) {
	reg := testRegistry()

	job, err := reg.BuildAction("UnknownClass", protocol.ActionParams{StepID: "step-2"})

	require.Error(t, err)
	assert.Nil(t, job)

	var notFound *JobNotFoundError

	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "step-2", notFound.StepID)
	assert.Equal(t, JobKindAction, notFound.Kind)
}

func TestRegistriesAreIndependent(t *testing.T) {
	reg := testRegistry()
	reg.RegisterTrigger(stubTriggerFactory{name: "Shared"})
	reg.RegisterAction(stubActionFactory{name: "Shared"})

	triggerJob, err := reg.BuildTrigger("Shared", protocol.TriggerParams{})
	require.NoError(t, err)
	assert.NotNil(t, triggerJob)

	actionJob, err := reg.BuildAction("Shared", protocol.ActionParams{})
	require.NoError(t, err)
	assert.NotNil(t, actionJob)

	assert.ElementsMatch(t, []string{"Shared"}, reg.TriggerClassNames())
	assert.ElementsMatch(t, []string{"Shared"}, reg.ActionClassNames())
}
