package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/storage"
)

// DriftReporter receives counter updates that failed after the record
// mutation they follow had already succeeded.
type DriftReporter interface {
	Report(e storage.DriftEntry)
}

type nopReporter struct{}

func (nopReporter) Report(storage.DriftEntry) {}

// CounterService keeps per-user and per-category URL counters. Updates are
// best-effort follow-ups: a failure is logged and reported as drift, never
// retried in the request.
type CounterService struct {
	store    CounterStore
	reporter DriftReporter
	logger   *zap.Logger
	now      func() time.Time
}

func NewCounterService(store CounterStore, reporter DriftReporter, logger *zap.Logger) *CounterService {
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &CounterService{
		store:    store,
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *CounterService) IncrementUser(ctx context.Context, userID, recordID string) {
	c.adjust(ctx, storage.DriftUser, userID, recordID, 1)
}

func (c *CounterService) DecrementUser(ctx context.Context, userID, recordID string) {
	c.adjust(ctx, storage.DriftUser, userID, recordID, -1)
}

func (c *CounterService) IncrementCategory(ctx context.Context, name, recordID string) {
	c.adjust(ctx, storage.DriftCategory, name, recordID, 1)
}

func (c *CounterService) DecrementCategory(ctx context.Context, name, recordID string) {
	c.adjust(ctx, storage.DriftCategory, name, recordID, -1)
}

func (c *CounterService) adjust(ctx context.Context, target storage.DriftTarget, id, recordID string, delta int64) {
	var err error
	switch target {
	case storage.DriftUser:
		err = c.store.AdjustUserURLCount(ctx, id, delta)
	case storage.DriftCategory:
		err = c.store.AdjustCategoryURLCount(ctx, id, delta)
	}
	if err == nil {
		return
	}

	c.logger.Warn("counter drift",
		zap.String("target", string(target)),
		zap.String("id", id),
		zap.Int64("delta", delta),
		zap.String("record_id", recordID),
		zap.Error(err),
	)

	c.reporter.Report(storage.DriftEntry{
		Target:   target,
		ID:       id,
		Delta:    delta,
		RecordID: recordID,
		Err:      err.Error(),
		At:       c.now(),
	})
}
