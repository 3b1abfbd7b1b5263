package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

func (p *Persistence) Zaps(_ context.Context) ([]*models.Zap, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	root := os.DirFS(p.dir("zaps"))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list zaps: %w", err)
	}

	zaps := make([]*models.Zap, 0, len(files))

	for _, file := range files {
		body, err := fs.ReadFile(root, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read zap file %s: %w", file, err)
		}

		var zap models.Zap

		err = json.Unmarshal(body, &zap)
		if err != nil {
			return nil, fmt.Errorf("failed to parse zap file %s: %w", file, err)
		}

		sortSteps(&zap)
		zaps = append(zaps, &zap)
	}

	sort.Slice(zaps, func(i, j int) bool {
		return zaps[i].CreatedAt.Before(zaps[j].CreatedAt)
	})

	return zaps, nil
}

func (p *Persistence) ZapByID(_ context.Context, id string) (*models.Zap, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.readZap(id)
}

func (p *Persistence) SaveZap(_ context.Context, zap *models.Zap) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeZap(zap)
}

func (p *Persistence) DeleteZap(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(p.dir("zaps") + "/" + id + ".json")
	if err != nil && os.IsNotExist(err) {
		return persistence.NewZapError("Delete", id, persistence.ErrZapNotFound)
	}

	return err
}

func (p *Persistence) IncrementZapCounters(_ context.Context, zapID string, status models.ExecutionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	zap, err := p.readZap(zapID)
	if err != nil {
		return persistence.NewZapError("IncrementCounters", zapID, err)
	}

	zap.TotalRuns++

	switch status {
	case models.ExecutionStatusDone:
		zap.SuccessfulRuns++
	case models.ExecutionStatusFailed:
		zap.FailedRuns++
	case models.ExecutionStatusInProgress:
		// In-progress runs only count toward total.
	}

	return p.writeZap(zap)
}

func (p *Persistence) UpdateStepPollState(_ context.Context, stepID string, comparisonData json.RawMessage, lastExecution time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	zaps, err := p.allZapsLocked()
	if err != nil {
		return err
	}

	for _, zap := range zaps {
		for _, step := range zap.Steps {
			if step.ID != stepID {
				continue
			}

			if comparisonData != nil {
				step.ComparisonData = comparisonData
			}

			last := lastExecution
			step.LastExecution = &last

			return p.writeZap(zap)
		}
	}

	return persistence.ErrStepNotFound
}

func (p *Persistence) readZap(id string) (*models.Zap, error) {
	body, err := os.ReadFile(p.dir("zaps") + "/" + id + ".json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrZapNotFound
		}

		return nil, fmt.Errorf("failed to read zap %s: %w", id, err)
	}

	var zap models.Zap

	err = json.Unmarshal(body, &zap)
	if err != nil {
		return nil, fmt.Errorf("failed to parse zap %s: %w", id, err)
	}

	sortSteps(&zap)

	return &zap, nil
}

func (p *Persistence) writeZap(zap *models.Zap) error {
	err := os.MkdirAll(p.dir("zaps"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create zaps directory: %w", err)
	}

	zap.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(zap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal zap %s: %w", zap.ID, err)
	}

	return os.WriteFile(p.dir("zaps")+"/"+zap.ID+".json", data, 0600)
}

func (p *Persistence) allZapsLocked() ([]*models.Zap, error) {
	root := os.DirFS(p.dir("zaps"))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list zaps: %w", err)
	}

	zaps := make([]*models.Zap, 0, len(files))

	for _, file := range files {
		body, err := fs.ReadFile(root, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read zap file %s: %w", file, err)
		}

		var zap models.Zap

		err = json.Unmarshal(body, &zap)
		if err != nil {
			return nil, fmt.Errorf("failed to parse zap file %s: %w", file, err)
		}

		zaps = append(zaps, &zap)
	}

	return zaps, nil
}

func sortSteps(zap *models.Zap) {
	sort.Slice(zap.Steps, func(i, j int) bool {
		return zap.Steps[i].Ordinal < zap.Steps[j].Ordinal
	})
}
