package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/zapflow/zapflow/pkg/models"
)

func (p *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.MkdirAll(p.dir("executions"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	return os.WriteFile(p.dir("executions")+"/"+execution.ID+".json", data, 0600)
}

func (p *Persistence) ExecutionsByZap(_ context.Context, zapID string, limit int) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	root := os.DirFS(p.dir("executions"))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, file := range files {
		body, err := fs.ReadFile(root, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read execution file %s: %w", file, err)
		}

		var execution models.Execution

		err = json.Unmarshal(body, &execution)
		if err != nil {
			return nil, fmt.Errorf("failed to parse execution file %s: %w", file, err)
		}

		if execution.ZapID == zapID {
			executions = append(executions, &execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}
