// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"os"
	"strings"
	"sync"
)

// Persistence stores Zaps, connections, and executions as JSON documents
// under a root directory. A single mutex serializes writers; this backend is
// for development and tests, not multi-process deployments.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a file persistence rooted at the given path.
// A "file://" prefix is stripped so database-URL style configuration works.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) dir(kind string) string {
	return p.root + "/" + kind
}
