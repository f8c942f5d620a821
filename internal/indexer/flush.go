package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/measure"
	"github.com/aevon-lab/aggindex/internal/lock"
)

// PendingKeys lists aggregate keys waiting to be flushed, oldest first.
func (i *Indexer) PendingKeys(ctx context.Context, limit int) ([]string, error) {
	keys, err := i.cache.Keys(ctx, limit)
	if err != nil {
		return nil, coreerr.Wrap("CACHE_KEYS", err)
	}
	return keys, nil
}

// Flush persists the pending aggregate under key and drops it from the
// cache. On failure the entry stays cached for the next sweep.
func (i *Indexer) Flush(ctx context.Context, key string) (*Result, error) {
	var result *Result
	err := lock.Run(ctx, i.locks, key, nil, func(ctx context.Context, lease *lock.Lease) error {
		entry, err := i.cache.Retrieve(ctx, key)
		if err != nil {
			return coreerr.Wrap("CACHE_RETRIEVE", err)
		}
		if entry == nil {
			return nil
		}

		if entry.OpType == measure.OpAdd {
			result, err = i.Add(ctx, Request{Type: entry.Type, ID: entry.ID, Doc: entry.Doc, Lease: lease})
			if err == nil && result.FailCode == FailExistsAlready {
				result, err = i.Update(ctx, Request{Type: entry.Type, ID: entry.ID, Doc: entry.Doc, Lease: lease})
			}
		} else {
			result, err = i.Update(ctx, Request{
				Type:          entry.Type,
				ID:            entry.ID,
				Doc:           entry.Doc,
				ExistingDoc:   entry.ExistingDoc,
				ExistingKnown: true,
				Lease:         lease,
			})
			if err == nil && result.FailCode == FailNotFound {
				result, err = i.Add(ctx, Request{Type: entry.Type, ID: entry.ID, Doc: entry.Doc, ExistingKnown: true, Lease: lease})
			}
		}
		if err != nil {
			slog.Error("[Indexer] Flush failed, keeping entry", "key", key, "error", err)
			return fmt.Errorf("flush %s: %w", key, err)
		}

		if err := i.cache.Remove(ctx, key); err != nil {
			return coreerr.Wrap("CACHE_REMOVE", err)
		}
		return nil
	}, func(elapsed time.Duration) {
		slog.Info("[Indexer] Flushed key", "key", key, "elapsed", elapsed)
	})
	return result, err
}
