package indexer

import (
	"context"
	"log/slog"

	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/registry"
	"github.com/aevon-lab/aggindex/internal/store"
	"golang.org/x/sync/errgroup"
)

// CreateIndex creates the physical index named by key (logical or store
// name), or every declared index when key is empty.
func (i *Indexer) CreateIndex(ctx context.Context, key string) ([]IndexResult, error) {
	return i.eachIndex(ctx, key, "CREATE_INDEX", func(ctx context.Context, ix *registry.Index) (*store.Response, error) {
		return i.store.CreateIndex(ctx, ix.Store, ix.Body())
	})
}

// DeleteIndex drops the physical index named by key, or every declared index
// when key is empty. Missing indices are not an error.
func (i *Indexer) DeleteIndex(ctx context.Context, key string) ([]IndexResult, error) {
	return i.eachIndex(ctx, key, "DELETE_INDEX", func(ctx context.Context, ix *registry.Index) (*store.Response, error) {
		return i.store.DeleteIndex(ctx, ix.Store)
	})
}

func (i *Indexer) eachIndex(ctx context.Context, key, op string, fn func(context.Context, *registry.Index) (*store.Response, error)) ([]IndexResult, error) {
	var indices []*registry.Index
	if key == "" {
		indices = i.registry.Indices()
	} else {
		ix, err := i.registry.Index(key)
		if err != nil {
			return nil, err
		}
		indices = []*registry.Index{ix}
	}

	results := make([]IndexResult, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	for n, ix := range indices {
		g.Go(func() error {
			resp, err := fn(gctx, ix)
			if err != nil {
				return coreerr.Wrap(op, err)
			}
			status := StatusSuccess
			if !resp.OK() {
				status = StatusFail
			}
			results[n] = IndexResult{Index: ix.Store, StatusCode: resp.StatusCode, Status: status}
			slog.Info("[Indexer] "+op, "index", ix.Store, "status", resp.StatusCode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
