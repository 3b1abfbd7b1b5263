package models

import (
	"encoding/json"
	"time"
)

type StepType string

const (
	StepTypeTrigger StepType = "TRIGGER"
	StepTypeAction  StepType = "ACTION"
)

// Step is one node in a Zap's execution chain. Exactly one step per Zap has
// type TRIGGER and it sits at ordinal 0; actions follow contiguously at 1..N.
type Step struct {
	ID           string         `json:"id"`
	ZapID        string         `json:"zap_id"`
	Ordinal      int            `json:"ordinal"`
	Type         StepType       `json:"type"       validate:"required,oneof=TRIGGER ACTION"`
	ClassName    string         `json:"class_name" validate:"required"`
	ConnectionID *string        `json:"connection_id,omitempty"`
	Payload      map[string]any `json:"payload"`

	// LastExecution is when this step's trigger was last checked. The
	// scheduler compares it against the polling interval to decide dueness.
	LastExecution *time.Time `json:"last_execution,omitempty"`

	// ComparisonData is the opaque prior-state snapshot used by polling
	// triggers for edge detection. Its shape is private to the trigger
	// variant; everything else only round-trips it.
	ComparisonData json.RawMessage `json:"comparison_data,omitempty"`
}
