package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps all collections in process memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[Collection]*memCollection
}

type memCollection struct {
	index   map[string]int
	records []Record
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{collections: make(map[Collection]*memCollection, len(Collections))}
	for _, c := range Collections {
		b.collections[c] = &memCollection{index: make(map[string]int)}
	}
	return b
}

func (b *MemoryBackend) Put(ctx context.Context, coll Collection, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	mc, ok := b.collections[coll]
	if !ok {
		return invalidCollection(coll)
	}
	for _, r := range records {
		value := append([]byte(nil), r.Value...)
		if i, exists := mc.index[r.Key]; exists {
			mc.records[i].Value = value
			continue
		}
		mc.index[r.Key] = len(mc.records)
		mc.records = append(mc.records, Record{Key: r.Key, Value: value})
	}
	return nil
}

func (b *MemoryBackend) Get(ctx context.Context, coll Collection, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	mc, ok := b.collections[coll]
	if !ok {
		return nil, invalidCollection(coll)
	}
	i, ok := mc.index[key]
	if !ok {
		return nil, notFound(coll, key)
	}
	return append([]byte(nil), mc.records[i].Value...), nil
}

func (b *MemoryBackend) All(ctx context.Context, coll Collection) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	mc, ok := b.collections[coll]
	if !ok {
		return nil, invalidCollection(coll)
	}
	out := make([]Record, len(mc.records))
	for i, r := range mc.records {
		out[i] = Record{Key: r.Key, Value: append([]byte(nil), r.Value...)}
	}
	return out, nil
}

// Close drops all data.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range Collections {
		b.collections[c] = &memCollection{index: make(map[string]int)}
	}
	return nil
}
