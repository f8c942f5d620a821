package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aevon-lab/aggindex/internal/cache"
	"github.com/aevon-lab/aggindex/internal/core/document"
	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/measure"
	"github.com/aevon-lab/aggindex/internal/core/registry"
	"github.com/aevon-lab/aggindex/internal/core/signal"
	"github.com/aevon-lab/aggindex/internal/lock"
	"golang.org/x/sync/errgroup"
)

type buildRequest struct {
	typ     *registry.Type
	oldDoc  document.Document
	newDoc  document.Document
	mode    UpdateMode
	signals []signal.Signal
}

// recompute is one aggregate affected by a source change.
type recompute struct {
	aggregate *registry.Aggregate
	partial   registry.Partial
	op        measure.Op
}

func (r recompute) key() string { return r.aggregate.Type.Name + ":" + r.partial.ID }

// plan partitions one aggregate's old and new group memberships. Merge mode
// never drops a relation because the partial document omitted the field.
func plan(a *registry.Aggregate, oldDoc, newDoc document.Document, isMerge bool) (changes []recompute, added []registry.Partial) {
	newSet := a.Partials(newDoc)
	oldSet := a.Partials(oldDoc)

	inOld := make(map[string]bool, len(oldSet))
	for _, p := range oldSet {
		inOld[p.ID] = true
	}
	inNew := make(map[string]bool, len(newSet))
	for _, p := range newSet {
		inNew[p.ID] = true
	}

	for _, p := range newSet {
		op := measure.OpAdd
		if inOld[p.ID] {
			op = measure.OpUpdate
		}
		changes = append(changes, recompute{aggregate: a, partial: p, op: op})
	}
	for _, p := range oldSet {
		if inNew[p.ID] {
			continue
		}
		switch {
		case isMerge && len(newSet) == 0:
			changes = append(changes, recompute{aggregate: a, partial: p, op: measure.OpUpdate})
		case !isMerge:
			changes = append(changes, recompute{aggregate: a, partial: p, op: measure.OpRemove})
		}
	}
	return changes, newSet
}

// buildAggregates recomputes every aggregate the change touches. Each key is
// recomputed under its own lease; a failing key never stops its siblings.
// It reports false when the type has no aggregator or nothing contributes.
func (i *Indexer) buildAggregates(ctx context.Context, req buildRequest) (bool, error) {
	agg := i.registry.Aggregator(req.typ.Name)
	if agg == nil {
		return false, nil
	}
	isMerge := req.mode == ModeMerge

	newDoc := req.newDoc
	if newDoc != nil && agg.Filter != nil && !agg.Filter(newDoc, req.oldDoc, isMerge) {
		newDoc = nil
	}
	if newDoc == nil && req.oldDoc == nil {
		return false, nil
	}

	var changes []recompute
	var signalled []recompute
	for _, a := range agg.Aggregates {
		c, added := plan(a, req.oldDoc, newDoc, isMerge)
		changes = append(changes, c...)
		if len(req.signals) > 0 {
			for _, p := range added {
				signalled = append(signalled, recompute{aggregate: a, partial: p})
			}
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	run := func(tasks []recompute, fn func(context.Context, recompute) error) {
		g := new(errgroup.Group)
		g.SetLimit(i.concurrency)
		for _, task := range tasks {
			g.Go(func() error {
				err := lock.Run(ctx, i.locks, task.key(), nil, func(ctx context.Context, _ *lock.Lease) error {
					return fn(ctx, task)
				}, nil)
				if err != nil {
					slog.Error("[Indexer] Aggregate recompute failed", "key", task.key(), "error", err)
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", task.key(), err))
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	run(changes, func(ctx context.Context, task recompute) error {
		return i.recomputeMeasures(ctx, task, req.oldDoc, newDoc)
	})
	// Signals go second so an aggregate created above already exists.
	run(signalled, func(ctx context.Context, task recompute) error {
		return i.recomputeSignals(ctx, task, req.signals)
	})

	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return true, nil
}

// current returns the aggregate's authoritative state: the pending cache
// entry if any, otherwise the stored fields listed.
func (i *Indexer) current(ctx context.Context, t *registry.Type, id, key string, fields []string) (*cache.Entry, error) {
	cached, err := i.cache.Retrieve(ctx, key)
	if err != nil {
		return nil, coreerr.Wrap("CACHE_RETRIEVE", err)
	}
	if cached != nil {
		if cached.OpType == "" {
			cached.OpType = measure.OpUpdate
		}
		return cached, nil
	}
	doc, err := i.store.GetFields(ctx, t.Index.Store, t.Name, id, fields)
	if err != nil {
		return nil, coreerr.Wrap("OPTIMISED_GET", err)
	}
	if doc == nil {
		return nil, nil
	}
	return &cache.Entry{Doc: doc, OpType: measure.OpUpdate, ID: id, Type: t.Name}, nil
}

func (i *Indexer) recomputeMeasures(ctx context.Context, task recompute, oldDoc, newDoc document.Document) error {
	a := task.aggregate
	key := task.key()
	op := task.op

	cur, err := i.current(ctx, a.Type, task.partial.ID, key, a.Measures.AggregateFields())
	if err != nil {
		return err
	}

	opType := measure.OpAdd
	existing := document.Document{}
	if cur == nil {
		switch op {
		case measure.OpUpdate:
			op = measure.OpAdd
		case measure.OpRemove:
			slog.Debug("[Indexer] Nothing to remove from missing aggregate", "key", key)
			return nil
		}
	} else {
		opType = cur.OpType
		if cur.Doc != nil {
			existing = cur.Doc
		}
	}

	next := document.Defaults(task.partial.Doc, existing).Clone()
	a.Measures.Execute(op, existing, next, oldDoc, newDoc)

	if err := i.cache.Store(ctx, key, &cache.Entry{
		Doc:         next,
		ExistingDoc: existing,
		OpType:      opType,
		ID:          task.partial.ID,
		Type:        a.Type.Name,
	}); err != nil {
		return coreerr.Wrap("CACHE_STORE", err)
	}
	slog.Debug("[Indexer] Aggregate recomputed", "key", key, "op", op, "pending", opType)
	return nil
}

func (i *Indexer) recomputeSignals(ctx context.Context, task recompute, signals []signal.Signal) error {
	a := task.aggregate
	key := task.key()

	fields := append(a.Measures.AggregateFields(), signal.Groups...)
	cur, err := i.current(ctx, a.Type, task.partial.ID, key, fields)
	if err != nil {
		return err
	}
	if cur == nil || cur.Doc == nil {
		slog.Warn("[Indexer] No aggregate to fold signals into", "key", key)
		return nil
	}

	next := document.Defaults(task.partial.Doc, cur.Doc).Clone()
	if err := signal.ApplyAll(next, signals, i.now()); err != nil {
		return coreerr.NewValidation(coreerr.CodeInvalidSignal, err.Error(), "key", key)
	}

	if err := i.cache.Store(ctx, key, &cache.Entry{
		Doc:         next,
		ExistingDoc: cur.Doc,
		OpType:      cur.OpType,
		ID:          task.partial.ID,
		Type:        a.Type.Name,
	}); err != nil {
		return coreerr.Wrap("CACHE_STORE", err)
	}
	return nil
}
