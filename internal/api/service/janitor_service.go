package service

import (
	"context"
	"time"

	"github.com/anthanhphan/gosdk/logger"
)

// janitorService deletes blobs that were ingested but never claimed by a finalize.
type janitorService struct {
	core *FileServiceImpl
}

// newJanitorService creates the orphan sweeping use-case service.
func newJanitorService(core *FileServiceImpl) *janitorService {
	return &janitorService{core: core}
}

// sweep deletes one batch of blobs pending longer than the grace period.
func (s *janitorService) sweep(ctx context.Context) (int, error) {
	cutoff := s.core.now().Add(-s.gracePeriod())
	refs, err := s.core.ledger.Expired(ctx, cutoff, s.batchSize())
	if err != nil {
		logger.Warnw("Orphan sweep skipped, ledger unavailable", "error", err.Error())
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}

	logger.Infow("Orphan sweep started", "candidates", len(refs), "cutoff", cutoff.UTC().Format(time.RFC3339))
	deleted, err := s.core.deleteBlobs(ctx, refs)
	if err != nil {
		logger.Warnw("Orphan sweep delete failed", "candidates", len(refs), "error", err.Error())
		return deleted, err
	}
	if err := s.core.ledger.Release(ctx, refs); err != nil {
		logger.Warnw("Ingest ledger release failed", "blobs", len(refs), "error", err.Error())
	}

	logger.Infow("Orphan sweep finished", "candidates", len(refs), "deleted", deleted)
	return deleted, nil
}

// run sweeps on every tick until ctx ends.
func (s *janitorService) run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.sweep(ctx)
		}
	}
}

func (s *janitorService) gracePeriod() time.Duration {
	if secs := s.core.cfg.Janitor.GracePeriodSeconds; secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 24 * time.Hour
}

func (s *janitorService) batchSize() int {
	if n := s.core.cfg.Janitor.BatchSize; n > 0 {
		return n
	}
	return 500
}
