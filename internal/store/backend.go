package store

import (
	"context"
)

// Collection names one of the fixed record collections.
type Collection string

const (
	CollectionHits     Collection = "hits"
	CollectionClusters Collection = "clusters"
	CollectionMeta     Collection = "meta"
)

// Collections lists every valid collection.
var Collections = []Collection{CollectionHits, CollectionClusters, CollectionMeta}

// Valid reports whether c is one of the fixed collections.
func (c Collection) Valid() bool {
	switch c {
	case CollectionHits, CollectionClusters, CollectionMeta:
		return true
	}
	return false
}

// Record is a single encoded value stored under a key.
type Record struct {
	Key   string
	Value []byte
}

// Backend is a key-value engine holding the three collections.
//
// Implementations must return records from All in first-insertion order and
// keep a key's position when it is overwritten.
type Backend interface {
	// Put upserts every record; all of them are visible once Put returns.
	Put(ctx context.Context, coll Collection, records []Record) error
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, coll Collection, key string) ([]byte, error)
	// All returns every record in the collection.
	All(ctx context.Context, coll Collection) ([]Record, error)
	Close() error
}

// Opener acquires a durable backend.
type Opener func(ctx context.Context) (Backend, error)
