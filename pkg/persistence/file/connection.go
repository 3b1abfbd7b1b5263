package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

func (p *Persistence) ConnectionByID(_ context.Context, id string) (*models.Connection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	body, err := os.ReadFile(p.dir("connections") + "/" + id + ".json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrConnectionNotFound
		}

		return nil, fmt.Errorf("failed to read connection %s: %w", id, err)
	}

	var connection models.Connection

	err = json.Unmarshal(body, &connection)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection %s: %w", id, err)
	}

	return &connection, nil
}

func (p *Persistence) SaveConnection(_ context.Context, connection *models.Connection) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.MkdirAll(p.dir("connections"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create connections directory: %w", err)
	}

	connection.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(connection, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal connection %s: %w", connection.ID, err)
	}

	return os.WriteFile(p.dir("connections")+"/"+connection.ID+".json", data, 0600)
}
