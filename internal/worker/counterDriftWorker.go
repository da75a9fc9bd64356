package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/storage"
)

const (
	queueSize = 256
	batchSize = 25
)

// Reconciler recomputes counters from the records actually stored.
type Reconciler interface {
	ReconcileUserURLCount(ctx context.Context, userID string) (int64, error)
	ReconcileCategoryURLCount(ctx context.Context, name string) (int64, error)
}

// Journal persists drift that has not been reconciled yet.
type Journal interface {
	Append(e storage.DriftEntry) error
	Pending() ([]storage.DriftEntry, error)
	Replace(entries []storage.DriftEntry) error
}

// CounterDriftWorker collects counter drift reported by requests and
// periodically resets the affected counters to the true record count.
type CounterDriftWorker struct {
	in       chan storage.DriftEntry
	logger   *zap.Logger
	repo     Reconciler
	journal  Journal
	interval time.Duration
}

// NewCounterDriftWorker creates a worker. journal may be nil, in which case
// pending drift lives only in memory.
func NewCounterDriftWorker(logger *zap.Logger, repo Reconciler, journal Journal, interval time.Duration) *CounterDriftWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &CounterDriftWorker{
		in:       make(chan storage.DriftEntry, queueSize),
		logger:   logger,
		repo:     repo,
		journal:  journal,
		interval: interval,
	}
}

// Report queues e without blocking the caller. When the queue is full the
// entry is dropped; the next drift on the same target reconciles it anyway.
func (s *CounterDriftWorker) Report(e storage.DriftEntry) {
	select {
	case s.in <- e:
	default:
		s.logger.Warn("drift queue full, dropping entry",
			zap.String("target", string(e.Target)), zap.String("id", e.ID))
	}
}

// FlushRecords runs until ctx is done, reconciling queued drift every
// interval or once more than batchSize entries are waiting. On shutdown the
// queue is drained and everything collected is reconciled one last time.
func (s *CounterDriftWorker) FlushRecords(ctx context.Context) {
	s.logger.Info("Counter drift worker started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	messages := s.replay()

	for {
		select {
		case <-ctx.Done():
			messages = s.drain(messages)
			if len(messages) > 0 {
				s.reconcile(context.Background(), messages)
			}
			s.logger.Info("Counter drift worker stopped")
			return
		case msg := <-s.in:
			messages = s.collect(messages, msg)
			if len(messages) > batchSize {
				messages = s.reconcile(ctx, messages)
			}
		case <-ticker.C:
			if len(messages) == 0 {
				continue
			}
			messages = s.reconcile(ctx, messages)
		}
	}
}

func (s *CounterDriftWorker) collect(messages []storage.DriftEntry, msg storage.DriftEntry) []storage.DriftEntry {
	s.logger.Debug("Got counter drift", zap.String("target", string(msg.Target)), zap.String("id", msg.ID))
	if s.journal != nil {
		if err := s.journal.Append(msg); err != nil {
			s.logger.Error("Cannot journal drift entry", zap.Error(err))
		}
	}
	return append(messages, msg)
}

// drain takes whatever is still queued without waiting for more.
func (s *CounterDriftWorker) drain(messages []storage.DriftEntry) []storage.DriftEntry {
	for {
		select {
		case msg := <-s.in:
			messages = s.collect(messages, msg)
		default:
			return messages
		}
	}
}

func (s *CounterDriftWorker) replay() []storage.DriftEntry {
	if s.journal == nil {
		return nil
	}

	pending, err := s.journal.Pending()
	if err != nil {
		s.logger.Error("Cannot read drift journal", zap.Error(err))
		return nil
	}
	if len(pending) > 0 {
		s.logger.Info("Replaying drift journal", zap.Int("count", len(pending)))
	}
	return pending
}

type driftKey struct {
	target storage.DriftTarget
	id     string
}

// reconcile fixes every distinct target in messages once and returns the
// entries whose target could not be fixed.
func (s *CounterDriftWorker) reconcile(ctx context.Context, messages []storage.DriftEntry) []storage.DriftEntry {
	s.logger.Info("Reconciling counters", zap.Int("entries", len(messages)))

	failed := make(map[driftKey]bool)
	done := make(map[driftKey]bool)

	for _, m := range messages {
		k := driftKey{target: m.Target, id: m.ID}
		if done[k] || failed[k] {
			continue
		}

		if err := s.reconcileOne(ctx, k); err != nil {
			s.logger.Error("Cannot reconcile counter",
				zap.String("target", string(k.target)), zap.String("id", k.id), zap.Error(err))
			failed[k] = true
			continue
		}
		done[k] = true
	}

	remaining := make([]storage.DriftEntry, 0)
	for _, m := range messages {
		if failed[driftKey{target: m.Target, id: m.ID}] {
			remaining = append(remaining, m)
		}
	}

	if s.journal != nil {
		if err := s.journal.Replace(remaining); err != nil {
			s.logger.Error("Cannot rewrite drift journal", zap.Error(err))
		}
	}

	return remaining
}

func (s *CounterDriftWorker) reconcileOne(ctx context.Context, k driftKey) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		n   int64
		err error
	)
	switch k.target {
	case storage.DriftUser:
		n, err = s.repo.ReconcileUserURLCount(ctx, k.id)
	case storage.DriftCategory:
		n, err = s.repo.ReconcileCategoryURLCount(ctx, k.id)
	default:
		s.logger.Warn("Unknown drift target dropped", zap.String("target", string(k.target)))
		return nil
	}

	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("Drift target no longer exists", zap.String("target", string(k.target)), zap.String("id", k.id))
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Counter reconciled",
		zap.String("target", string(k.target)), zap.String("id", k.id), zap.Int64("url_count", n))
	return nil
}
