// Package registry maps trigger/action class names to job factories.
//
// Trigger and action registries are independent lookup tables: a trigger and
// an action may reuse the same class name without collision. Registries are
// built once at process start and passed by reference; there is no ambient
// global state.
package registry

import (
	"log/slog"

	"github.com/zapflow/zapflow/pkg/protocol"
)

type Registry struct {
	logger           *slog.Logger
	triggerFactories map[string]protocol.TriggerJobFactory
	actionFactories  map[string]protocol.ActionJobFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:           logger,
		triggerFactories: make(map[string]protocol.TriggerJobFactory),
		actionFactories:  make(map[string]protocol.ActionJobFactory),
	}
}

func (r *Registry) RegisterTrigger(factory protocol.TriggerJobFactory) {
	r.triggerFactories[factory.ClassName()] = factory
}

func (r *Registry) RegisterAction(factory protocol.ActionJobFactory) {
	r.actionFactories[factory.ClassName()] = factory
}

// BuildTrigger constructs the trigger job registered under className.
// Returns a *JobNotFoundError if the class name is absent.
func (r *Registry) BuildTrigger(className string, params protocol.TriggerParams) (protocol.TriggerJob, error) {
	factory, ok := r.triggerFactories[className]
	if !ok {
		return nil, &JobNotFoundError{StepID: params.StepID, ClassName: className, Kind: JobKindTrigger}
	}

	return factory.Create(params, r.logger)
}

// BuildAction constructs the action job registered under className.
// Returns a *JobNotFoundError if the class name is absent.
func (r *Registry) BuildAction(className string, params protocol.ActionParams) (protocol.ActionJob, error) {
	factory, ok := r.actionFactories[className]
	if !ok {
		return nil, &JobNotFoundError{StepID: params.StepID, ClassName: className, Kind: JobKindAction}
	}

	return factory.Create(params, r.logger)
}

// TriggerClassNames returns the registered trigger class names.
func (r *Registry) TriggerClassNames() []string {
	names := make([]string, 0, len(r.triggerFactories))
	for name := range r.triggerFactories {
		names = append(names, name)
	}

	return names
}

// ActionClassNames returns the registered action class names.
func (r *Registry) ActionClassNames() []string {
	names := make([]string, 0, len(r.actionFactories))
	for name := range r.actionFactories {
		names = append(names, name)
	}

	return names
}
