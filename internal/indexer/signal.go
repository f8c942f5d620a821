package indexer

import (
	"context"

	coreerr "github.com/aevon-lab/aggindex/internal/core/errors"
	"github.com/aevon-lab/aggindex/internal/core/signal"
	"github.com/aevon-lab/aggindex/internal/lock"
)

// SignalRequest folds one or more signals into a stored document and,
// through the build, into every aggregate it contributes to.
type SignalRequest struct {
	Type    string
	ID      string
	Signals []signal.Signal
}

func (i *Indexer) AddSignal(ctx context.Context, req SignalRequest) (*Result, error) {
	t, err := i.registry.Type(req.Type)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, coreerr.NewValidation(coreerr.CodeUndefinedID, "No ID has been specified", "type", t.Name)
	}
	if len(req.Signals) == 0 {
		return nil, coreerr.NewValidation(coreerr.CodeUndefinedSignal, "No Signal has been specified", "type", t.Name, "id", req.ID)
	}
	for _, s := range req.Signals {
		if err := s.Validate(); err != nil {
			return nil, coreerr.NewValidation(coreerr.CodeInvalidSignal, err.Error(), "type", t.Name, "id", req.ID)
		}
	}

	var result *Result
	err = lock.Run(ctx, i.locks, docKey(t, req.ID), nil, func(ctx context.Context, lease *lock.Lease) error {
		existing, err := i.store.Get(ctx, t.Index.Store, t.Name, req.ID)
		if err != nil {
			return coreerr.Wrap("GET", err)
		}
		if existing == nil {
			return coreerr.NewValidation(coreerr.CodeNotExists, "No document found to signal", "type", t.Name, "id", req.ID)
		}

		next := existing.Clone()
		if err := signal.ApplyAll(next, req.Signals, i.now()); err != nil {
			return coreerr.NewValidation(coreerr.CodeInvalidSignal, err.Error(), "type", t.Name, "id", req.ID)
		}

		result, err = i.Update(ctx, Request{
			Type:          t.Name,
			ID:            req.ID,
			Doc:           next,
			ExistingDoc:   existing,
			ExistingKnown: true,
			UpdateMode:    ModeMerge,
			Signals:       req.Signals,
			Lease:         lease,
		})
		return err
	}, released("Added Signal for", t, req.ID))
	return result, err
}
