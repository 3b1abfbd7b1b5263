// Package persistence provides the data storage abstraction for Zaps,
// connections, and execution history.
package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
)

type Persistence interface {
	// Zaps returns all Zaps with their steps ordered by ordinal.
	Zaps(ctx context.Context) ([]*models.Zap, error)
	ZapByID(ctx context.Context, id string) (*models.Zap, error)
	SaveZap(ctx context.Context, zap *models.Zap) error
	DeleteZap(ctx context.Context, id string) error

	// IncrementZapCounters bumps total_runs by one and the matching
	// success/failure counter for a finalized run.
	IncrementZapCounters(ctx context.Context, zapID string, status models.ExecutionStatus) error

	// UpdateStepPollState persists a polling trigger's snapshot and check
	// timestamp. The snapshot is opaque; it is stored as given.
	UpdateStepPollState(ctx context.Context, stepID string, comparisonData json.RawMessage, lastExecution time.Time) error

	ConnectionByID(ctx context.Context, id string) (*models.Connection, error)
	SaveConnection(ctx context.Context, connection *models.Connection) error

	// SaveExecution writes an execution and its step executions. Executions
	// are append-only: saved once at finalization (or once IN_PROGRESS and
	// once finalized, overwriting the in-progress row).
	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionsByZap(ctx context.Context, zapID string, limit int) ([]*models.Execution, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
