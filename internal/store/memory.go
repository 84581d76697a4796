package store

import (
	"context"
	"sync"
)

var _ KV = (*Memory)(nil)

// Memory is an in-memory KV.
type Memory struct {
	mu      sync.RWMutex
	records map[string]string
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]string)}
}

func (m *Memory) Put(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.records[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (Lookup, error) {
	if err := checkKey(key); err != nil {
		return Absent, err
	}
	if err := ctx.Err(); err != nil {
		return Absent, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[key]
	if !ok {
		return Absent, nil
	}
	return Found(v), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
