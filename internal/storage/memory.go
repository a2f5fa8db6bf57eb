package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var ErrNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	values      map[string][]byte
	lists       map[string][][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init is idempotent; a second call keeps existing data.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.values = make(map[string][]byte)
	s.lists = make(map[string][][]byte)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	return s.Commit(ctx, NewBatch().Set(key, value))
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	return s.Commit(ctx, NewBatch().Delete(key))
}

func (s *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return false, ErrNotInitialized
	}
	_, ok := s.values[key]
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, key string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	items := s.lists[key]
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = slices.Clone(item)
	}
	return out, nil
}

func (s *MemoryStore) PushToList(ctx context.Context, key string, value []byte) error {
	return s.Commit(ctx, NewBatch().Push(key, value))
}

func (s *MemoryStore) All(ctx context.Context) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := maps.Clone(s.values)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out, nil
}

// Commit applies the batch under the write lock, so readers observe either
// none or all of it.
func (s *MemoryStore) Commit(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	for _, op := range batch.Ops() {
		if op.Kind != OpSet && op.Kind != OpDelete && op.Kind != OpPush {
			return fmt.Errorf("commit %s: unknown op kind %d", op.Key, op.Kind)
		}
	}
	for _, op := range batch.Ops() {
		switch op.Kind {
		case OpSet:
			s.values[op.Key] = slices.Clone(op.Value)
		case OpDelete:
			delete(s.values, op.Key)
			delete(s.lists, op.Key)
		case OpPush:
			s.lists[op.Key] = append(s.lists[op.Key], slices.Clone(op.Value))
		}
	}
	return nil
}
