package registry

import (
	"errors"
	"fmt"
)

type JobKind string

const (
	JobKindTrigger JobKind = "trigger"
	JobKindAction  JobKind = "action"
)

// JobNotFoundError reports a step referencing a class name that no factory is
// registered for. This is a configuration error: the Zap cannot run until
// reconfigured.
type JobNotFoundError struct {
	StepID    string
	ClassName string
	Kind      JobKind
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("%s class %q not registered (step %s)", e.Kind, e.ClassName, e.StepID)
}

// IsJobNotFound checks whether err is a registry miss.
func IsJobNotFound(err error) bool {
	var notFound *JobNotFoundError

	return errors.As(err, &notFound)
}
