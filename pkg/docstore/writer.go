package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// MaxBatchOps is the per-commit write limit Firestore enforces.
const MaxBatchOps = 500

type WriteStats struct {
	Batches       int `json:"batches"`
	Ops           int `json:"ops"`
	FailedBatches int `json:"failedBatches"`
	FailedOps     int `json:"failedOps"`
}

type pendingGroup struct {
	ops  []Op
	done func(error)
}

// Writer packs op groups into bounded atomic batches. A group is never
// split across two batches, so every document (or user) a group covers is
// either fully written or untouched.
type Writer struct {
	store   Store
	limit   int
	policy  RetryPolicy
	dryRun  bool
	limiter *rate.Limiter

	groups  []pendingGroup
	pending int
	stats   WriteStats
	errs    []error

	// OnRetry is called before each retry of a transient failure.
	OnRetry func(err error, wait time.Duration)
	// OnCommit is called after every batch with its outcome.
	OnCommit func(ops int, err error)
}

func NewWriter(store Store, limit int, policy RetryPolicy) *Writer {
	if limit <= 0 || limit > MaxBatchOps {
		limit = MaxBatchOps
	}
	return &Writer{store: store, limit: limit, policy: policy}
}

// DryRun makes the writer count batches without committing them.
func (w *Writer) DryRun(enabled bool) *Writer {
	w.dryRun = enabled
	return w
}

// Throttle caps committed ops per second. A zero or negative rate
// removes the cap.
func (w *Writer) Throttle(opsPerSecond float64) *Writer {
	if opsPerSecond <= 0 {
		w.limiter = nil
		return w
	}
	w.limiter = rate.NewLimiter(rate.Limit(opsPerSecond), MaxBatchOps)
	return w
}

// Add queues one group of ops; done, when non-nil, receives the commit
// result of the batch that carried the group.
func (w *Writer) Add(ctx context.Context, ops []Op, done func(error)) error {
	if len(ops) == 0 {
		if done != nil {
			done(nil)
		}
		return nil
	}
	if len(ops) > w.limit {
		return fmt.Errorf("%w: %d ops, limit %d", ErrGroupTooBig, len(ops), w.limit)
	}
	if w.pending+len(ops) > w.limit {
		if err := w.Flush(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	w.groups = append(w.groups, pendingGroup{ops: ops, done: done})
	w.pending += len(ops)
	if w.pending == w.limit {
		if err := w.Flush(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Flush commits whatever is queued as one batch.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.groups) == 0 {
		return nil
	}
	groups := w.groups
	w.groups = nil
	w.pending = 0

	ops := make([]Op, 0, w.limit)
	for _, g := range groups {
		ops = append(ops, g.ops...)
	}

	var err error
	if !w.dryRun && w.limiter != nil {
		err = w.limiter.WaitN(ctx, len(ops))
	}
	if err == nil && !w.dryRun {
		err = CommitWithRetry(ctx, w.store, ops, w.policy, w.OnRetry)
	}

	w.stats.Batches++
	w.stats.Ops += len(ops)
	if err != nil {
		w.stats.FailedBatches++
		w.stats.FailedOps += len(ops)
		w.errs = append(w.errs, fmt.Errorf("commit batch of %d ops: %w", len(ops), err))
	}
	if w.OnCommit != nil {
		w.OnCommit(len(ops), err)
	}
	for _, g := range groups {
		if g.done != nil {
			g.done(err)
		}
	}
	return err
}

// Close flushes the tail and returns the accumulated stats and errors.
func (w *Writer) Close(ctx context.Context) (WriteStats, error) {
	_ = w.Flush(ctx)
	return w.stats, errors.Join(w.errs...)
}

func (w *Writer) Stats() WriteStats {
	return w.stats
}
