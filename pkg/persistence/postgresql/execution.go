package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zapflow/zapflow/pkg/models"
)

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	transaction, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO executions (id, zap_id, status, started_at, finished_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , finished_at = EXCLUDED.finished_at
		  , duration_ms = EXCLUDED.duration_ms
	`

	_, err = transaction.ExecContext(ctx, query,
		execution.ID, execution.ZapID, string(execution.Status),
		execution.StartedAt, execution.FinishedAt, execution.DurationMs,
	)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	_, err = transaction.ExecContext(ctx, "DELETE FROM step_executions WHERE execution_id = $1", execution.ID)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	for _, step := range execution.Steps {
		output, err := json.Marshal(step.Output)
		if err != nil {
			_ = transaction.Rollback()

			return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
		}

		_, err = transaction.ExecContext(ctx, `
			INSERT INTO step_executions (id, execution_id, step_id, ordinal, status, output, error, started_at, finished_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			step.ID, execution.ID, step.StepID, step.Ordinal, string(step.Status),
			output, step.Error, step.StartedAt, step.FinishedAt, step.DurationMs,
		)
		if err != nil {
			_ = transaction.Rollback()

			return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

func (p *Persistence) ExecutionsByZap(ctx context.Context, zapID string, limit int) ([]*models.Execution, error) {
	query := `
		SELECT
			id
		  , zap_id
		  , status
		  , started_at
		  , finished_at
		  , duration_ms
		FROM executions
		WHERE zap_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := p.db.QueryContext(ctx, query, zapID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		var (
			execution models.Execution
			status    string
		)

		err = rows.Scan(
			&execution.ID, &execution.ZapID, &status,
			&execution.StartedAt, &execution.FinishedAt, &execution.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		execution.Status = models.ExecutionStatus(status)
		executions = append(executions, &execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	for _, execution := range executions {
		err = p.loadStepExecutions(ctx, execution)
		if err != nil {
			return nil, fmt.Errorf("failed to load step executions for %s: %w", execution.ID, err)
		}
	}

	return executions, nil
}

func (p *Persistence) loadStepExecutions(ctx context.Context, execution *models.Execution) error {
	rows, err := p.db.QueryContext(ctx, `
		SELECT
			id
		  , step_id
		  , ordinal
		  , status
		  , output
		  , error
		  , started_at
		  , finished_at
		  , duration_ms
		FROM step_executions
		WHERE execution_id = $1
		ORDER BY ordinal
	`, execution.ID)
	if err != nil {
		return fmt.Errorf("failed to query step executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	execution.Steps = make([]*models.StepExecution, 0)

	for rows.Next() {
		var (
			step   models.StepExecution
			status string
			output []byte
		)

		err = rows.Scan(
			&step.ID, &step.StepID, &step.Ordinal, &status,
			&output, &step.Error, &step.StartedAt, &step.FinishedAt, &step.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step execution: %w", err)
		}

		step.ExecutionID = execution.ID
		step.Status = models.StepExecutionStatus(status)

		if output != nil {
			err = json.Unmarshal(output, &step.Output)
			if err != nil {
				return fmt.Errorf("failed to parse step output: %w", err)
			}
		}

		execution.Steps = append(execution.Steps, &step)
	}

	return rows.Err()
}
