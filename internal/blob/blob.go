package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"meeting-insights-go/internal/domain"
)

// Store is durable storage for recordings, addressed by opaque key.
// Objects are write-once then read-many; failures here are treated as
// transient by the pipeline.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Dir stores each object as one file under a directory, keyed by uuid.
type Dir struct {
	root string
}

// NewDir creates the backing directory if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Put(_ context.Context, data []byte) (string, error) {
	ref := uuid.New().String()
	if err := os.WriteFile(filepath.Join(d.root, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return ref, nil
}

func (d *Dir) Get(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.root, filepath.Base(ref)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (d *Dir) Delete(_ context.Context, ref string) error {
	err := os.Remove(filepath.Join(d.root, filepath.Base(ref)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Memory keeps objects in a map. Used by tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := uuid.New().String()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[ref] = cp
	return ref, nil
}

func (m *Memory) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (m *Memory) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}
