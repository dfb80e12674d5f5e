package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-donate/internal/donation"
	"go-donate/internal/models"
)

type mockSource struct {
	GetStaleFunc func(ctx context.Context, after, before time.Time, limit int) ([]*models.Transaction, error)
}

func (m *mockSource) GetStaleTransactions(ctx context.Context, after, before time.Time, limit int) ([]*models.Transaction, error) {
	return m.GetStaleFunc(ctx, after, before, limit)
}

type mockReconciler struct {
	ReconcileFunc func(ctx context.Context, indicator string) (*donation.Outcome, error)
	calls         []string
}

func (m *mockReconciler) ReconcileStale(ctx context.Context, indicator string) (*donation.Outcome, error) {
	m.calls = append(m.calls, indicator)
	return m.ReconcileFunc(ctx, indicator)
}

func TestSweepStale(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	source := &mockSource{
		GetStaleFunc: func(_ context.Context, after, before time.Time, limit int) ([]*models.Transaction, error) {
			if !before.Equal(now.Add(-15*time.Minute)) || !after.Equal(now.Add(-24*time.Hour)) {
				t.Errorf("unexpected window %s - %s", after, before)
			}
			if limit != batchSize {
				t.Errorf("limit = %d", limit)
			}
			return []*models.Transaction{
				{ID: 1, SuccessIndicator: "a"},
				{ID: 2, SuccessIndicator: "b"},
				{ID: 3, SuccessIndicator: "c"},
				{ID: 4, SuccessIndicator: "d"},
			}, nil
		},
	}
	reconciler := &mockReconciler{
		ReconcileFunc: func(_ context.Context, indicator string) (*donation.Outcome, error) {
			switch indicator {
			case "a":
				return &donation.Outcome{Status: models.TransactionCompleted}, nil
			case "b":
				return nil, errors.New("gateway unavailable")
			case "d":
				return &donation.Outcome{Status: models.TransactionInitiated}, nil
			default:
				return &donation.Outcome{Status: models.TransactionFailed, Duplicate: true}, nil
			}
		},
	}

	s := New(source, reconciler, Config{Interval: time.Minute, StaleAfter: 15 * time.Minute, MaxAge: 24 * time.Hour}, nil)
	s.now = func() time.Time { return now }

	if settled := s.SweepStale(context.Background()); settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}
	if len(reconciler.calls) != 4 {
		t.Errorf("expected every stale transaction to be tried, got %v", reconciler.calls)
	}
}

func TestSweepStaleSourceError(t *testing.T) {
	source := &mockSource{
		GetStaleFunc: func(context.Context, time.Time, time.Time, int) ([]*models.Transaction, error) {
			return nil, errors.New("database is locked")
		},
	}
	reconciler := &mockReconciler{}

	s := New(source, reconciler, Config{Interval: time.Minute}, nil)
	if settled := s.SweepStale(context.Background()); settled != 0 {
		t.Errorf("settled = %d", settled)
	}
	if len(reconciler.calls) != 0 {
		t.Error("reconciler should not be called")
	}
}
