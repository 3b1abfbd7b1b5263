package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

func (p *Persistence) Zaps(ctx context.Context) ([]*models.Zap, error) {
	query := `
		SELECT
			id
		  , user_id
		  , name
		  , enabled
		  , total_runs
		  , successful_runs
		  , failed_runs
		  , created_at
		  , updated_at
		FROM zaps
		ORDER BY created_at
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query zaps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	zaps := make([]*models.Zap, 0)

	for rows.Next() {
		zap, err := scanZap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zap: %w", err)
		}

		zaps = append(zaps, zap)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating zaps: %w", err)
	}

	for _, zap := range zaps {
		err = p.loadSteps(ctx, zap)
		if err != nil {
			return nil, fmt.Errorf("failed to load steps for zap %s: %w", zap.ID, err)
		}
	}

	return zaps, nil
}

func (p *Persistence) ZapByID(ctx context.Context, id string) (*models.Zap, error) {
	query := `
		SELECT
			id
		  , user_id
		  , name
		  , enabled
		  , total_runs
		  , successful_runs
		  , failed_runs
		  , created_at
		  , updated_at
		FROM zaps
		WHERE id = $1
	`

	zap, err := scanZap(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrZapNotFound
		}

		return nil, fmt.Errorf("failed to scan zap: %w", err)
	}

	err = p.loadSteps(ctx, zap)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps for zap %s: %w", id, err)
	}

	return zap, nil
}

func (p *Persistence) SaveZap(ctx context.Context, zap *models.Zap) error {
	now := time.Now().UTC()
	if zap.CreatedAt.IsZero() {
		zap.CreatedAt = now
	}

	zap.UpdatedAt = now

	transaction, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewZapError("Save", zap.ID, err)
	}

	upsert := `
		INSERT INTO zaps (id, user_id, name, enabled, total_runs, successful_runs, failed_runs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id
		  , name = EXCLUDED.name
		  , enabled = EXCLUDED.enabled
		  , total_runs = EXCLUDED.total_runs
		  , successful_runs = EXCLUDED.successful_runs
		  , failed_runs = EXCLUDED.failed_runs
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = transaction.ExecContext(ctx, upsert,
		zap.ID, zap.UserID, zap.Name, zap.Enabled,
		zap.TotalRuns, zap.SuccessfulRuns, zap.FailedRuns,
		zap.CreatedAt, zap.UpdatedAt,
	)
	if err != nil {
		_ = transaction.Rollback()

		return persistence.NewZapError("Save", zap.ID, err)
	}

	// Steps are replaced wholesale; the Zap's step list is authoritative.
	_, err = transaction.ExecContext(ctx, "DELETE FROM steps WHERE zap_id = $1", zap.ID)
	if err != nil {
		_ = transaction.Rollback()

		return persistence.NewZapError("Save", zap.ID, err)
	}

	for _, step := range zap.Steps {
		payload, err := json.Marshal(step.Payload)
		if err != nil {
			_ = transaction.Rollback()

			return persistence.NewZapError("Save", zap.ID, err)
		}

		_, err = transaction.ExecContext(ctx, `
			INSERT INTO steps (id, zap_id, ordinal, type, class_name, connection_id, payload, last_execution, comparison_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			step.ID, zap.ID, step.Ordinal, string(step.Type), step.ClassName,
			step.ConnectionID, payload, step.LastExecution, nullableJSON(step.ComparisonData),
		)
		if err != nil {
			_ = transaction.Rollback()

			return persistence.NewZapError("Save", zap.ID, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return persistence.NewZapError("Save", zap.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteZap(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM zaps WHERE id = $1", id)
	if err != nil {
		return persistence.NewZapError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewZapError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewZapError("Delete", id, persistence.ErrZapNotFound)
	}

	return nil
}

// IncrementZapCounters is a single UPDATE so concurrent runs of different
// steps never lose increments.
func (p *Persistence) IncrementZapCounters(ctx context.Context, zapID string, status models.ExecutionStatus) error {
	success := 0
	failed := 0

	switch status {
	case models.ExecutionStatusDone:
		success = 1
	case models.ExecutionStatusFailed:
		failed = 1
	case models.ExecutionStatusInProgress:
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE zaps
		SET total_runs = total_runs + 1
		  , successful_runs = successful_runs + $2
		  , failed_runs = failed_runs + $3
		  , updated_at = NOW()
		WHERE id = $1
	`, zapID, success, failed)
	if err != nil {
		return persistence.NewZapError("IncrementCounters", zapID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewZapError("IncrementCounters", zapID, err)
	}

	if affected == 0 {
		return persistence.NewZapError("IncrementCounters", zapID, persistence.ErrZapNotFound)
	}

	return nil
}

func (p *Persistence) UpdateStepPollState(ctx context.Context, stepID string, comparisonData json.RawMessage, lastExecution time.Time) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE steps
		SET comparison_data = COALESCE($2, comparison_data)
		  , last_execution = $3
		WHERE id = $1
	`, stepID, nullableJSON(comparisonData), lastExecution)
	if err != nil {
		return fmt.Errorf("failed to update poll state for step %s: %w", stepID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update poll state for step %s: %w", stepID, err)
	}

	if affected == 0 {
		return persistence.ErrStepNotFound
	}

	return nil
}

func (p *Persistence) loadSteps(ctx context.Context, zap *models.Zap) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT
			id
		  , ordinal
		  , type
		  , class_name
		  , connection_id
		  , payload
		  , last_execution
		  , comparison_data
		FROM steps
		WHERE zap_id = $1
		ORDER BY ordinal
	`, zap.ID)
	if err != nil {
		return fmt.Errorf("failed to query steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	zap.Steps = make([]*models.Step, 0)

	for rows.Next() {
		var (
			step           models.Step
			stepType       string
			payload        []byte
			comparisonData []byte
		)

		err = rows.Scan(
			&step.ID, &step.Ordinal, &stepType, &step.ClassName,
			&step.ConnectionID, &payload, &step.LastExecution, &comparisonData,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		step.ZapID = zap.ID
		step.Type = models.StepType(stepType)

		if payload != nil {
			err = json.Unmarshal(payload, &step.Payload)
			if err != nil {
				return fmt.Errorf("failed to parse step payload: %w", err)
			}
		}

		if comparisonData != nil {
			step.ComparisonData = json.RawMessage(comparisonData)
		}

		zap.Steps = append(zap.Steps, &step)
	}

	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZap(row rowScanner) (*models.Zap, error) {
	var zap models.Zap

	err := row.Scan(
		&zap.ID, &zap.UserID, &zap.Name, &zap.Enabled,
		&zap.TotalRuns, &zap.SuccessfulRuns, &zap.FailedRuns,
		&zap.CreatedAt, &zap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &zap, nil
}

// nullableJSON maps an empty RawMessage to SQL NULL.
func nullableJSON(data json.RawMessage) any {
	if len(data) == 0 {
		return nil
	}

	return []byte(data)
}
