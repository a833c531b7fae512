// Package store provides the result store: a key-value contract over the
// hits, clusters and meta collections, served by a durable SQLite backend or
// an in-memory fallback chosen once at initialization.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/clusterview/server/internal/model"
)

var (
	// ErrNotFound is returned when a keyed lookup has no record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for unknown collections, unsupported
	// payloads and out-of-range query columns.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBackendUnavailable describes a failed durable backend acquisition.
	// It is logged, never returned to callers.
	ErrBackendUnavailable = errors.New("durable backend unavailable")
)

// MetaKey is the fixed key single records are saved under.
const MetaKey = "meta"

func notFound(coll Collection, key string) error {
	return fmt.Errorf("%s %q: %w", coll, key, ErrNotFound)
}

func invalidCollection(coll Collection) error {
	return fmt.Errorf("unknown collection %q: %w", coll, ErrInvalidArgument)
}

// RecordCache caches encoded records for keyed reads.
type RecordCache interface {
	GetRecord(key string) ([]byte, bool)
	SetRecord(key string, value []byte)
}

// Option configures a Store.
type Option func(*Store)

// WithRecordCache puts c in front of keyed reads. Keys are prefixed with
// namespace so several stores can share one cache.
func WithRecordCache(c RecordCache, namespace string) Option {
	return func(s *Store) {
		s.records = c
		s.namespace = namespace
	}
}

// Store is the result store shared by all renderers.
type Store struct {
	open      Opener
	records   RecordCache
	namespace string

	initOnce sync.Once
	backend  Backend
	durable  bool
}

// New creates a store that will try open on initialization. A nil opener
// means the durable backend does not exist in this runtime.
func New(open Opener, opts ...Option) *Store {
	s := &Store{open: open}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMemory creates a store that always uses the in-memory backend.
func NewMemory(opts ...Option) *Store {
	return New(nil, opts...)
}

// Initialize acquires the backend. It never fails: if the durable backend
// cannot be acquired, the store falls back to memory for its lifetime.
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		if s.open == nil {
			log.Printf("[Store] %v: falling back to in-memory data", ErrBackendUnavailable)
			s.backend = NewMemoryBackend()
			return
		}
		b, err := s.open(ctx)
		if err != nil {
			log.Printf("[Store] %v: %v; falling back to in-memory data", ErrBackendUnavailable, err)
			s.backend = NewMemoryBackend()
			return
		}
		s.backend = b
		s.durable = true
	})
}

// Durable reports whether the durable backend was acquired.
func (s *Store) Durable() bool {
	s.Initialize(context.Background())
	return s.durable
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// Save upserts data into coll. Slices of hits or clusters are keyed by each
// element's ID; a single Meta record is stored under MetaKey.
func (s *Store) Save(ctx context.Context, coll Collection, data any) error {
	s.Initialize(ctx)
	if !coll.Valid() {
		return invalidCollection(coll)
	}

	var records []Record
	var err error
	switch v := data.(type) {
	case []model.Hit:
		if coll == CollectionMeta {
			return fmt.Errorf("hits saved into %s: %w", coll, ErrInvalidArgument)
		}
		records, err = encodeKeyed(v, func(h model.Hit) int { return h.ID })
	case []model.Cluster:
		if coll == CollectionMeta {
			return fmt.Errorf("clusters saved into %s: %w", coll, ErrInvalidArgument)
		}
		records, err = encodeKeyed(v, func(c model.Cluster) int { return c.ID })
	case model.Meta:
		records, err = encodeSingle(v)
	case map[string]any:
		records, err = encodeSingle(model.Meta(v))
	default:
		return fmt.Errorf("unsupported payload %T: %w", data, ErrInvalidArgument)
	}
	if err != nil {
		return err
	}

	if err := s.backend.Put(ctx, coll, records); err != nil {
		return fmt.Errorf("failed to save %s: %w", coll, err)
	}
	if s.durable && s.records != nil {
		for _, r := range records {
			s.records.SetRecord(s.cacheKey(coll, r.Key), r.Value)
		}
	}
	return nil
}

// SaveHits upserts hits.
func (s *Store) SaveHits(ctx context.Context, hits []model.Hit) error {
	return s.Save(ctx, CollectionHits, hits)
}

// SaveClusters upserts clusters.
func (s *Store) SaveClusters(ctx context.Context, clusters []model.Cluster) error {
	return s.Save(ctx, CollectionClusters, clusters)
}

// SaveMeta replaces the metadata record.
func (s *Store) SaveMeta(ctx context.Context, meta model.Meta) error {
	return s.Save(ctx, CollectionMeta, meta)
}

func encodeKeyed[T any](items []T, id func(T) int) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		value, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
		records = append(records, Record{Key: strconv.Itoa(id(item)), Value: value})
	}
	return records, nil
}

func encodeSingle(meta model.Meta) ([]Record, error) {
	value, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode meta: %w", err)
	}
	return []Record{{Key: MetaKey, Value: value}}, nil
}

func (s *Store) cacheKey(coll Collection, key string) string {
	return s.namespace + "|" + string(coll) + "|" + key
}

// Get decodes the record at key into out.
func (s *Store) Get(ctx context.Context, coll Collection, key string, out any) error {
	s.Initialize(ctx)

	cacheable := s.durable && s.records != nil
	if cacheable {
		if value, ok := s.records.GetRecord(s.cacheKey(coll, key)); ok {
			return json.Unmarshal(value, out)
		}
	}

	value, err := s.backend.Get(ctx, coll, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("failed to decode %s %q: %w", coll, key, err)
	}
	if cacheable {
		s.records.SetRecord(s.cacheKey(coll, key), value)
	}
	return nil
}

// Hit returns the hit with the given ID.
func (s *Store) Hit(ctx context.Context, id int) (model.Hit, error) {
	var h model.Hit
	err := s.Get(ctx, CollectionHits, strconv.Itoa(id), &h)
	return h, err
}

// Cluster returns the cluster with the given ID.
func (s *Store) Cluster(ctx context.Context, id int) (model.Cluster, error) {
	var c model.Cluster
	err := s.Get(ctx, CollectionClusters, strconv.Itoa(id), &c)
	return c, err
}

// Hits returns every hit in load order.
func (s *Store) Hits(ctx context.Context) ([]model.Hit, error) {
	return decodeAll[model.Hit](ctx, s, CollectionHits)
}

// Clusters returns every cluster in load order.
func (s *Store) Clusters(ctx context.Context) ([]model.Cluster, error) {
	return decodeAll[model.Cluster](ctx, s, CollectionClusters)
}

func decodeAll[T any](ctx context.Context, s *Store, coll Collection) ([]T, error) {
	s.Initialize(ctx)
	records, err := s.backend.All(ctx, coll)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		var v T
		if err := json.Unmarshal(r.Value, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s %q: %w", coll, r.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Meta returns the metadata mapping; it is empty if none was saved.
func (s *Store) Meta(ctx context.Context) (model.Meta, error) {
	meta := model.Meta{}
	err := s.Get(ctx, CollectionMeta, MetaKey, &meta)
	if errors.Is(err, ErrNotFound) {
		return model.Meta{}, nil
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// MetaValue returns a single metadata entry.
func (s *Store) MetaValue(ctx context.Context, key string) (any, error) {
	meta, err := s.Meta(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := meta[key]
	if !ok {
		return nil, notFound(CollectionMeta, key)
	}
	return v, nil
}

// GetHitCellData resolves the hits referenced by column queryIndex of a
// cluster, in their listed order.
func (s *Store) GetHitCellData(ctx context.Context, clusterID, queryIndex int) ([]model.Hit, error) {
	cluster, err := s.Cluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	return s.ResolveColumn(ctx, cluster, queryIndex)
}

// ResolveColumn resolves one hit column of an already loaded cluster.
func (s *Store) ResolveColumn(ctx context.Context, cluster model.Cluster, queryIndex int) ([]model.Hit, error) {
	if queryIndex < 0 || queryIndex >= len(cluster.Hits) {
		return nil, fmt.Errorf("query index %d out of range for cluster %d: %w", queryIndex, cluster.ID, ErrInvalidArgument)
	}
	ids := cluster.Hits[queryIndex]
	hits := make([]model.Hit, 0, len(ids))
	for _, id := range ids {
		h, err := s.Hit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cluster %d query %d: %w", cluster.ID, queryIndex, err)
		}
		hits = append(hits, h)
	}
	return hits, nil
}
