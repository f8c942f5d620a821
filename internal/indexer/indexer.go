// Package indexer applies document mutations to the store and incrementally
// maintains the aggregate documents that depend on them.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/aggindex/internal/cache"
	"github.com/aevon-lab/aggindex/internal/core/document"
	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/measure"
	"github.com/aevon-lab/aggindex/internal/core/registry"
	"github.com/aevon-lab/aggindex/internal/core/signal"
	"github.com/aevon-lab/aggindex/internal/lock"
	"github.com/aevon-lab/aggindex/internal/store"
)

const defaultAggregateConcurrency = 8

// Options tunes an Indexer.
type Options struct {
	// AggregateConcurrency bounds concurrent aggregate recomputes per build.
	AggregateConcurrency int
	// Now stamps signal updates; defaults to time.Now.
	Now func() time.Time
}

// Indexer owns every write path: documents go to the store, aggregates go
// through the write-back cache until flushed.
type Indexer struct {
	registry    *registry.Registry
	store       store.Store
	locks       lock.Manager
	cache       cache.Cache
	concurrency int
	now         func() time.Time
}

func New(reg *registry.Registry, st store.Store, locks lock.Manager, c cache.Cache, opts Options) *Indexer {
	if opts.AggregateConcurrency <= 0 {
		opts.AggregateConcurrency = defaultAggregateConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Indexer{
		registry:    reg,
		store:       st,
		locks:       locks,
		cache:       c,
		concurrency: opts.AggregateConcurrency,
		now:         opts.Now,
	}
}

// Registry exposes the type registry the indexer was built with.
func (i *Indexer) Registry() *registry.Registry { return i.registry }

func docKey(t *registry.Type, id string) string { return t.Name + ":" + id }

func undefinedID(t *registry.Type) error {
	return coreerr.NewValidation(coreerr.CodeUndefinedID, "No ID has been specified or can be calculated", "type", t.Name)
}

func released(verb string, t *registry.Type, id string) func(time.Duration) {
	return func(elapsed time.Duration) {
		trace(verb, docKey(t, id), stateLockReleased)
		slog.Info(fmt.Sprintf("[Indexer] %s %s #%s", verb, t.Name, id), "elapsed", elapsed)
	}
}

// existing returns the caller's copy of the stored document when it supplied
// one, otherwise fetches it.
func (i *Indexer) existing(ctx context.Context, t *registry.Type, id string, req Request) (document.Document, error) {
	if req.ExistingKnown || req.ExistingDoc != nil {
		return req.ExistingDoc, nil
	}
	doc, err := i.store.Get(ctx, t.Index.Store, t.Name, id)
	if err != nil {
		return nil, coreerr.Wrap("GET", err)
	}
	return doc, nil
}

func (i *Indexer) derive(t *registry.Type, doc, basis document.Document) {
	doc["_weight"] = t.DerivedWeight(basis)
	doc["_lang"] = t.Lang(basis)
}

// Add indexes a new document. An existing document is left untouched and
// reported as EXISTS_ALREADY.
func (i *Indexer) Add(ctx context.Context, req Request) (*Result, error) {
	t, err := i.registry.Type(req.Type)
	if err != nil {
		return nil, err
	}

	doc := req.Doc.Clone()
	if doc == nil {
		doc = document.Document{}
	}
	if t.Transform != nil {
		doc = t.Transform(doc)
	}

	id := req.ID
	if id == "" {
		id = t.ID(doc)
	}
	if id == "" {
		return nil, undefinedID(t)
	}
	key := docKey(t, id)
	trace(OpAdd, key, stateStart)

	if req.Filter != nil && !req.Filter(doc, nil, false) {
		trace(OpAdd, key, stateSkipped)
		return failure(t, id, OpAdd, FailSkip), nil
	}
	if t.Filter != nil && !t.Filter(doc, nil, false) {
		trace(OpAdd, key, stateSkipped)
		return failure(t, id, OpAdd, FailSkip), nil
	}
	i.derive(t, doc, doc)

	var result *Result
	err = lock.Run(ctx, i.locks, key, req.Lease, func(ctx context.Context, lease *lock.Lease) error {
		trace(OpAdd, key, stateLockAcquired)
		existing, err := i.existing(ctx, t, id, req)
		if err != nil {
			return err
		}
		trace(OpAdd, key, stateExistingFetched)
		if existing != nil {
			trace(OpAdd, key, stateSkipped)
			result = failure(t, id, OpAdd, FailExistsAlready)
			return nil
		}

		if len(t.Measures) > 0 {
			t.Measures.Execute(measure.OpAdd, nil, doc, nil, doc)
		}

		resp, err := i.store.Put(ctx, t.Index.Store, t.Name, id, doc)
		if err != nil {
			return coreerr.Wrap(OpAdd, err)
		}
		trace(OpAdd, key, stateMutated)
		result = fromResponse(t, id, OpAdd, resp)

		if _, err := i.buildAggregates(ctx, buildRequest{typ: t, newDoc: doc, mode: ModeFull}); err != nil {
			return fmt.Errorf("aggregates of %s: %w", key, err)
		}
		trace(OpAdd, key, stateAggregatesBuilt)
		return nil
	}, released("Added", t, id))
	return result, err
}

// Update replaces (full mode) or overlays (merge mode) a stored document.
// A document failing the type filter is removed instead; one failing only
// the request filter is skipped.
func (i *Indexer) Update(ctx context.Context, req Request) (*Result, error) {
	t, err := i.registry.Type(req.Type)
	if err != nil {
		return nil, err
	}
	mode := req.mode()
	isMerge := mode == ModeMerge
	op := OpUpdate
	if isMerge {
		op = OpMerge
	}

	newDoc := req.Doc.Clone()
	if newDoc == nil {
		newDoc = document.Document{}
	}
	if t.Transform != nil && !isMerge {
		newDoc = t.Transform(newDoc)
	}

	id := req.ID
	if id == "" {
		id = t.ID(newDoc)
	}
	if id == "" {
		return nil, undefinedID(t)
	}
	key := docKey(t, id)
	trace(op, key, stateStart)

	var result *Result
	err = lock.Run(ctx, i.locks, key, req.Lease, func(ctx context.Context, lease *lock.Lease) error {
		trace(op, key, stateLockAcquired)
		existing, err := i.existing(ctx, t, id, req)
		if err != nil {
			return err
		}
		trace(op, key, stateExistingFetched)
		if existing == nil {
			trace(op, key, stateSkipped)
			result = failure(t, id, op, FailNotFound)
			return nil
		}

		if !isMerge {
			for field := range existing {
				if _, ok := newDoc[field]; !ok && !signal.StatsFieldPattern.MatchString(field) {
					newDoc[field] = nil
				}
			}
		}

		if len(t.Measures) > 0 {
			t.Measures.Execute(measure.OpUpdate, existing, newDoc, existing, document.Defaults(newDoc, existing))
		}
		i.derive(t, newDoc, document.Defaults(newDoc, existing))

		remove := func() error {
			result, err = i.Remove(ctx, Request{
				Type:          t.Name,
				ID:            id,
				ExistingDoc:   existing,
				ExistingKnown: true,
				UpdateMode:    mode,
				Lease:         lease,
			})
			if err == nil {
				trace(op, key, stateRemoved)
			}
			return err
		}

		if req.Filter != nil && !req.Filter(newDoc, existing, isMerge) {
			if t.Filter != nil && !t.Filter(newDoc, existing, isMerge) {
				return remove()
			}
			trace(op, key, stateSkipped)
			result = failure(t, id, op, FailSkip)
			return nil
		}
		if t.Filter != nil && !t.Filter(newDoc, existing, isMerge) {
			return remove()
		}

		resp, err := i.store.Update(ctx, t.Index.Store, t.Name, id, newDoc)
		if err != nil {
			return coreerr.Wrap(op, err)
		}
		trace(op, key, stateMutated)
		result = fromResponse(t, id, op, resp)

		_, err = i.buildAggregates(ctx, buildRequest{
			typ:     t,
			oldDoc:  existing,
			newDoc:  document.Defaults(newDoc, existing),
			mode:    mode,
			signals: req.Signals,
		})
		if err != nil {
			return fmt.Errorf("aggregates of %s: %w", key, err)
		}
		trace(op, key, stateAggregatesBuilt)
		return nil
	}, released("Updated", t, id))
	return result, err
}

// Merge is Update in merge mode.
func (i *Indexer) Merge(ctx context.Context, req Request) (*Result, error) {
	req.UpdateMode = ModeMerge
	return i.Update(ctx, req)
}

// Remove deletes a stored document and withdraws its contributions.
func (i *Indexer) Remove(ctx context.Context, req Request) (*Result, error) {
	t, err := i.registry.Type(req.Type)
	if err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" && req.Doc != nil {
		id = t.ID(req.Doc)
	}
	if id == "" {
		return nil, undefinedID(t)
	}
	key := docKey(t, id)
	trace(OpRemove, key, stateStart)

	var result *Result
	err = lock.Run(ctx, i.locks, key, req.Lease, func(ctx context.Context, lease *lock.Lease) error {
		trace(OpRemove, key, stateLockAcquired)
		existing, err := i.existing(ctx, t, id, req)
		if err != nil {
			return err
		}
		trace(OpRemove, key, stateExistingFetched)
		if existing == nil {
			trace(OpRemove, key, stateSkipped)
			result = failure(t, id, OpRemove, FailNotFound)
			return nil
		}

		resp, err := i.store.Delete(ctx, t.Index.Store, t.Name, id)
		if err != nil {
			return coreerr.Wrap(OpRemove, err)
		}
		trace(OpRemove, key, stateRemoved)
		result = fromResponse(t, id, OpRemove, resp)

		if _, err := i.buildAggregates(ctx, buildRequest{typ: t, oldDoc: existing, mode: req.mode()}); err != nil {
			return fmt.Errorf("aggregates of %s: %w", key, err)
		}
		trace(OpRemove, key, stateAggregatesBuilt)
		return nil
	}, released("Removed", t, id))
	return result, err
}

// Upsert updates the document when it exists and adds it otherwise.
func (i *Indexer) Upsert(ctx context.Context, req Request) (*Result, error) {
	t, err := i.registry.Type(req.Type)
	if err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" {
		id = t.ID(req.Doc)
	}
	if id == "" {
		return nil, undefinedID(t)
	}

	var result *Result
	err = lock.Run(ctx, i.locks, docKey(t, id), req.Lease, func(ctx context.Context, lease *lock.Lease) error {
		existing, err := i.store.Get(ctx, t.Index.Store, t.Name, id)
		if err != nil {
			return coreerr.Wrap("GET", err)
		}
		next := req
		next.ID = id
		next.ExistingDoc = existing
		next.ExistingKnown = true
		next.Lease = lease
		if existing != nil {
			result, err = i.Update(ctx, next)
		} else {
			result, err = i.Add(ctx, next)
		}
		return err
	}, released("Upserted", t, id))
	return result, err
}

// Get returns the stored document, or nil when absent.
func (i *Indexer) Get(ctx context.Context, typ, id string) (document.Document, error) {
	t, err := i.registry.Type(typ)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, undefinedID(t)
	}
	doc, err := i.store.Get(ctx, t.Index.Store, t.Name, id)
	if err != nil {
		return nil, coreerr.Wrap("GET", err)
	}
	return doc, nil
}

// Exists reports whether the document is stored.
func (i *Indexer) Exists(ctx context.Context, typ, id string) (bool, error) {
	t, err := i.registry.Type(typ)
	if err != nil {
		return false, err
	}
	if id == "" {
		return false, undefinedID(t)
	}
	ok, err := i.store.Exists(ctx, t.Index.Store, t.Name, id)
	if err != nil {
		return false, coreerr.Wrap("EXISTS", err)
	}
	return ok, nil
}
