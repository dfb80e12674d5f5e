package payment

import (
	"context"
	"errors"
	"sync"

	"go-donate/internal/models"
)

// AuditSink stores one record per outbound gateway call
type AuditSink interface {
	RecordAPICall(ctx context.Context, entry *models.APILog) error
}

// AuditBuffer holds the audit entries of a gateway call. Flush writes them
// afterwards with a context that outlives the request, so the trail survives
// a cancelled request or a failed unit of work.
type AuditBuffer struct {
	mu      sync.Mutex
	entries []*models.APILog
}

// RecordAPICall implements AuditSink
func (b *AuditBuffer) RecordAPICall(_ context.Context, entry *models.APILog) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	return nil
}

// Len returns the number of buffered entries
func (b *AuditBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Flush hands every buffered entry to sink and empties the buffer.
// All entries are attempted; the returned error joins individual failures.
func (b *AuditBuffer) Flush(ctx context.Context, sink AuditSink) error {
	b.mu.Lock()
	entries := b.entries
	b.entries = nil
	b.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if err := sink.RecordAPICall(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
