package files

import (
	"context"
	"errors"
	"path"
	"sync"
)

// Memory guarda archivos en memoria (modo dev sin UPLOAD_DIR y tests).
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

func (m *Memory) Save(ctx context.Context, ownerUserID, name string, data []byte) (string, error) {
	p := path.Join("prescriptions", safeSegment(ownerUserID), safeSegment(name))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = append([]byte(nil), data...)
	return p, nil
}

func (m *Memory) Read(ctx context.Context, p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.files[p]
	if !ok {
		return nil, errors.New("file not found: " + p)
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Remove(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	return nil
}
