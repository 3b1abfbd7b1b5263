// Package models defines the core domain models for Zap automation workflows.
package models

import "time"

// Zap is a user-defined automation: one trigger step followed by an ordered
// sequence of action steps.
type Zap struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"        validate:"required"`
	Name           string    `json:"name"           validate:"required,min=3"`
	Enabled        bool      `json:"enabled"`
	TotalRuns      int       `json:"total_runs"`
	SuccessfulRuns int       `json:"successful_runs"`
	FailedRuns     int       `json:"failed_runs"`
	Steps          []*Step   `json:"steps"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TriggerStep returns the step at ordinal 0 if it is the trigger, or nil.
func (z *Zap) TriggerStep() *Step {
	if len(z.Steps) == 0 {
		return nil
	}

	first := z.Steps[0]
	if first.Ordinal != 0 || first.Type != StepTypeTrigger {
		return nil
	}

	return first
}

// ActionSteps returns the steps after the trigger in ordinal order.
func (z *Zap) ActionSteps() []*Step {
	if len(z.Steps) <= 1 {
		return nil
	}

	return z.Steps[1:]
}
