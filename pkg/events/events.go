// Package events defines the event types exchanged between the scheduler,
// the webhook ingestor, and the run workers.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/zapflow/pkg/models"
)

type EventType string

// Topic is the single event stream for Zap run lifecycle events.
const Topic = "zapflow.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ZapTriggeredEvent dispatches a due or webhook-fired Zap to the workers.
	ZapTriggeredEvent EventType = "zap.triggered"

	// Run lifecycle events emitted by the runner.
	ExecutionFinishedEvent EventType = "zap.execution.finished"
	ExecutionFailedEvent   EventType = "zap.execution.failed"
)

// TriggerSource says how a ZapTriggered event originated.
type TriggerSource string

const (
	SourceSchedule TriggerSource = "schedule"
	SourcePolling  TriggerSource = "polling"
	SourceWebhook  TriggerSource = "webhook"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ZapID     string         `json:"zap_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, zapID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ZapID:     zapID,
	}
}

// ZapTriggered asks a worker to evaluate (or, for webhooks, directly run) a
// Zap. For SourceWebhook the Variables carry the adapter's extracted set and
// the trigger check is bypassed.
type ZapTriggered struct {
	BaseEvent

	Source    TriggerSource    `json:"source"`
	Variables models.Variables `json:"variables,omitempty"`
}

func (z ZapTriggered) GetType() EventType {
	return ZapTriggeredEvent
}

type ExecutionFinished struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
