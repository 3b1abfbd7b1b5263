package models

import "time"

type TriggerKind string

const (
	TriggerKindWebhook  TriggerKind = "WEBHOOK"
	TriggerKindPolling  TriggerKind = "POLLING"
	TriggerKindSchedule TriggerKind = "SCHEDULE"
)

// TriggerDefinition is a static catalog entry describing one trigger kind.
// ClassName is the registry key stored on steps.
type TriggerDefinition struct {
	ClassName          string         `json:"class_name"  validate:"required"`
	Name               string         `json:"name"        validate:"required"`
	Description        string         `json:"description"`
	Kind               TriggerKind    `json:"kind"        validate:"required,oneof=WEBHOOK POLLING SCHEDULE"`
	Fields             map[string]any `json:"fields"` // JSON Schema for the step payload
	OutputVariables    []string       `json:"output_variables"`
	RequiresConnection bool           `json:"requires_connection"`

	// PollingInterval applies to POLLING triggers only.
	PollingInterval time.Duration `json:"polling_interval,omitempty"`
}

// ActionDefinition is a static catalog entry describing one action kind.
type ActionDefinition struct {
	ClassName          string         `json:"class_name"  validate:"required"`
	Name               string         `json:"name"        validate:"required"`
	Description        string         `json:"description"`
	Fields             map[string]any `json:"fields"`
	OutputVariables    []string       `json:"output_variables"`
	RequiresConnection bool           `json:"requires_connection"`
}
