package store

import (
	"context"
	"slices"
	"sync"
)

type memObject struct {
	data []byte
	gen  Generation
}

// Memory is an in-process Store, used for dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string]*memObject
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]*memObject)}
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Read(ctx context.Context, key string) ([]byte, Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return slices.Clone(o.data), o.gen, nil
}

func (m *Memory) Write(ctx context.Context, key string, data []byte, match Generation) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var current Generation
	if o, ok := m.objects[key]; ok {
		current = o.gen
	}

	if match != Unconditional && match != current {
		return 0, ErrPreconditionFailed
	}

	next := current + 1
	m.objects[key] = &memObject{data: slices.Clone(data), gen: next}
	return next, nil
}

func (m *Memory) UploadFile(ctx context.Context, key, localPath string) error {
	b, err := readFile(localPath)
	if err != nil {
		return err
	}
	_, err = m.Write(ctx, key, b, Unconditional)
	return err
}

// Keys returns the sorted object names.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) URI(key string) string {
	return "mem://" + key
}
