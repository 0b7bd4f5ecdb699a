package state

import (
	"context"
	"math"
	"time"

	"hempies/coasync/internal/domain"
)

// MaxLogEntries bounds the user-visible log feed; the oldest entries are
// dropped first.
const MaxLogEntries = 100

// Store persists sync state across invocations: the running flag, the
// FIFO work queue, total/processed counters and the bounded log feed.
//
// TryStart is a real compare-and-swap: of two callers racing to start a
// sync, exactly one observes true.
type Store interface {
	TryStart(ctx context.Context) (bool, error)
	SetRunning(ctx context.Context, running bool) error
	Running(ctx context.Context) (bool, error)

	ReplaceQueue(ctx context.Context, items []domain.CatalogItem) error
	PopBatch(ctx context.Context, n int) ([]domain.CatalogItem, error)
	QueueLen(ctx context.Context) (int, error)
	ClearQueue(ctx context.Context) error

	SetTotal(ctx context.Context, n int) error
	Total(ctx context.Context) (int, error)
	SetProcessed(ctx context.Context, n int) error
	IncrProcessed(ctx context.Context) error
	Processed(ctx context.Context) (int, error)

	AppendLog(ctx context.Context, message string) error
	Log(ctx context.Context) ([]domain.LogEntry, error)
	ResetLog(ctx context.Context) error
}

// Snapshot assembles the polling-client status view from a store.
func Snapshot(ctx context.Context, s Store) (domain.SyncStatus, error) {
	running, err := s.Running(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	total, err := s.Total(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	processed, err := s.Processed(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	entries, err := s.Log(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}

	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(processed) / float64(total) * 100))
	}

	return domain.SyncStatus{
		Running:    running,
		Log:        entries,
		Total:      total,
		Processed:  processed,
		Percentage: pct,
	}, nil
}

func newLogEntry(message string) domain.LogEntry {
	return domain.LogEntry{Time: time.Now(), Message: message}
}
