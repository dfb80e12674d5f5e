package scheduler

import (
	"context"
	"time"

	"go-donate/internal/donation"
	"go-donate/internal/models"

	"go.uber.org/zap"
)

const batchSize = 50

// StaleSource lists transactions still waiting for a callback
type StaleSource interface {
	GetStaleTransactions(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]*models.Transaction, error)
}

// Reconciler settles a stale transaction by its success indicator. Orders the
// gateway still reports as pending come back with status initiated.
type Reconciler interface {
	ReconcileStale(ctx context.Context, indicator string) (*donation.Outcome, error)
}

// Config holds the sweep timing
type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
	MaxAge     time.Duration
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	source     StaleSource
	reconciler Reconciler
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a new Scheduler
func New(source StaleSource, reconciler Reconciler, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{source: source, reconciler: reconciler, cfg: cfg, logger: logger, now: time.Now}
}

// Start runs the stale session sweep every interval until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepStale(ctx)
			}
		}
	}()
}

// SweepStale reconciles sessions whose callback never arrived. Sessions that
// the gateway cannot confirm or still reports as pending stay initiated and
// are retried on the next sweep
// until they fall out of the MaxAge window.
func (s *Scheduler) SweepStale(ctx context.Context) (settled int) {
	now := s.now()
	stale, err := s.source.GetStaleTransactions(ctx, now.Add(-s.cfg.MaxAge), now.Add(-s.cfg.StaleAfter), batchSize)
	if err != nil {
		s.logger.Error("Failed to list stale transactions", zap.Error(err))
		return 0
	}

	for _, t := range stale {
		if ctx.Err() != nil {
			break
		}
		outcome, err := s.reconciler.ReconcileStale(ctx, t.SuccessIndicator)
		if err != nil {
			s.logger.Warn("Stale transaction not reconciled",
				zap.Int64("transaction_id", t.ID),
				zap.String("order_id", t.OrderID),
				zap.Error(err),
			)
			continue
		}
		if outcome.Duplicate || outcome.Status == models.TransactionInitiated {
			continue
		}
		settled++
	}

	if len(stale) > 0 {
		s.logger.Info("Stale session sweep finished", zap.Int("checked", len(stale)), zap.Int("settled", settled))
	}
	return settled
}
