// Package cache holds recomputed aggregates until they are flushed to the store.
//
// An entry's presence means the aggregate has not been durably persisted yet;
// while it exists the cache, not the store, is the truth for that key.
package cache

import (
	"context"

	"github.com/aevon-lab/aggindex/internal/core/document"
	"github.com/aevon-lab/aggindex/internal/core/measure"
)

// Entry is a recomputed aggregate awaiting flush.
type Entry struct {
	Doc         document.Document `msgpack:"doc"`
	ExistingDoc document.Document `msgpack:"existing_doc"`
	OpType      measure.Op        `msgpack:"op_type"`
	ID          string            `msgpack:"id"`
	Type        string            `msgpack:"type"`
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Doc = e.Doc.Clone()
	out.ExistingDoc = e.ExistingDoc.Clone()
	return &out
}

// Cache is keyed by aggregate key (type:id). Retrieve returns nil, nil when
// the key is absent.
type Cache interface {
	Retrieve(ctx context.Context, key string) (*Entry, error)
	Store(ctx context.Context, key string, entry *Entry) error
	Remove(ctx context.Context, key string) error
	// Keys lists up to limit pending keys, oldest first. limit <= 0 means all.
	Keys(ctx context.Context, limit int) ([]string, error)
}
