// Package flusher periodically persists pending aggregates from the
// write-back cache to the store.
package flusher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aevon-lab/aggindex/internal/indexer"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize       = 500
	defaultWorkers         = 4
	defaultShutdownTimeout = 30 * time.Second
	maxConsecutiveBatches  = 100
)

// Flusher is the slice of the indexer the scheduler drives.
type Flusher interface {
	PendingKeys(ctx context.Context, limit int) ([]string, error)
	Flush(ctx context.Context, key string) (*indexer.Result, error)
}

type Options struct {
	Interval        time.Duration
	BatchSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
	return o
}

// Scheduler sweeps the cache on a fixed interval. Each tick drains every
// pending key in batches, oldest first.
type Scheduler struct {
	flusher Flusher
	opts    Options
}

func NewScheduler(f Flusher, opts Options) *Scheduler {
	return &Scheduler{flusher: f, opts: opts.normalized()}
}

// Start runs until ctx is cancelled, then performs a final drain bounded by
// ShutdownTimeout.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	slog.Info("[Flusher] Starting flush scheduler",
		"interval", s.opts.Interval,
		"batch_size", s.opts.BatchSize,
		"workers", s.opts.Workers,
	)

	s.drainBacklog(ctx)

	for {
		select {
		case <-ticker.C:
			s.drainBacklog(ctx)
		case <-ctx.Done():
			slog.Info("[Flusher] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
			defer cancel()

			slog.Info("[Flusher] Running final drain before shutdown...")
			flushed, failed := s.drainBacklog(shutdownCtx)
			slog.Info("[Flusher] Final drain complete", "flushed", flushed, "failed", failed)
			return nil
		}
	}
}

// drainBacklog flushes batches until the cache is empty. A batch with any
// failure ends the drain so retained entries are retried on the next tick
// rather than spun on.
func (s *Scheduler) drainBacklog(ctx context.Context) (flushed, failed int) {
	for batch := 0; batch < maxConsecutiveBatches; batch++ {
		if ctx.Err() != nil {
			slog.Info("[Flusher] Drain interrupted by context cancellation", "batches_processed", batch)
			return flushed, failed
		}

		keys, err := s.flusher.PendingKeys(ctx, s.opts.BatchSize)
		if err != nil {
			slog.Error("[Flusher] Listing pending keys failed", "error", err)
			return flushed, failed
		}
		if len(keys) == 0 {
			return flushed, failed
		}

		ok, bad := s.flushBatch(ctx, keys)
		flushed += ok
		failed += bad
		if bad > 0 {
			slog.Warn("[Flusher] Batch had failures, resuming on next tick", "failed", bad, "flushed", ok)
			return flushed, failed
		}
		if len(keys) < s.opts.BatchSize {
			if batch > 0 {
				slog.Info("[Flusher] Backlog drained", "total_batches", batch+1, "flushed", flushed)
			}
			return flushed, failed
		}
		slog.Info("[Flusher] Backlog detected, continuing to drain", "batches_so_far", batch+1)
	}

	slog.Warn("[Flusher] Max consecutive batches reached, pausing drain",
		"max_batches", maxConsecutiveBatches,
		"note", "Will resume on next tick",
	)
	return flushed, failed
}

func (s *Scheduler) flushBatch(ctx context.Context, keys []string) (flushed, failed int) {
	var ok, bad atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for _, key := range keys {
		g.Go(func() error {
			if _, err := s.flusher.Flush(ctx, key); err != nil {
				bad.Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}
