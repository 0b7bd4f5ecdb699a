package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	log "github.com/sirupsen/logrus"

	"hempies/coasync/internal/domain"
	"hempies/coasync/internal/engine"
	"hempies/coasync/internal/repository"
	"hempies/coasync/internal/state"
)

const (
	// batchSize caps per-tick work against the scheduler's execution
	// time budget.
	batchSize = 10
	// fastDrainThreshold triggers an out-of-band re-drain when the
	// queue left after a batch is still larger than this.
	fastDrainThreshold = 20
	// testModeLimit bounds test-mode syncs.
	testModeLimit = 5
)

var (
	ErrAlreadyRunning     = errors.New("sync already in progress")
	ErrNotRunning         = errors.New("sync is not running")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrNoItems            = errors.New("no items fetched from catalog")
)

// Catalog is the slice of the Square client the service needs.
type Catalog interface {
	FetchAllItems(ctx context.Context) ([]domain.CatalogItem, error)
}

// Service is the batch-queue processor: it persists the fetched work
// list and drains it in fixed-size batches across repeated ticks, so a
// long catalog sync survives short invocations without losing progress.
type Service struct {
	store   state.Store
	catalog Catalog
	engine  *engine.Engine
	runs    repository.RunRepository
	creds   func() error
	kick    func()

	mu    gosync.Mutex
	runID int64
	stats repository.RunStats
}

func NewService(store state.Store, catalog Catalog, eng *engine.Engine, runs repository.RunRepository, creds func() error) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		engine:  eng,
		runs:    runs,
		creds:   creds,
	}
}

// SetDrainSignal installs the scheduler's fast-path trigger for large
// backlogs.
func (s *Service) SetDrainSignal(kick func()) {
	s.kick = kick
}

// Start begins a new sync: claims the running flag, fetches the full
// catalog, persists it as the work queue and drains the first batch
// immediately. Exactly one of two concurrent starts wins.
func (s *Service) Start(ctx context.Context, testMode bool) error {
	if s.creds != nil {
		if err := s.creds(); err != nil {
			s.appendLog(ctx, fmt.Sprintf("Error: %v. Please configure credentials in settings.", err))
			return fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
	}

	ok, err := s.store.TryStart(ctx)
	if err != nil {
		return fmt.Errorf("failed to claim running flag: %w", err)
	}
	if !ok {
		s.appendLog(ctx, "Sync already in progress. Please wait for it to complete or stop it first.")
		return ErrAlreadyRunning
	}

	if err := s.store.ResetLog(ctx); err != nil {
		log.Warnf("Failed to reset status log: %v", err)
	}

	// The claimed flag is visible to drain ticks immediately, but the
	// fetch below can take minutes. Zero the previous run's leftovers
	// first so a tick firing mid-fetch sees an uninitialized sync
	// (total == 0) and leaves it alone instead of completing it.
	if err := s.store.ClearQueue(ctx); err != nil {
		s.releaseFailedStart(ctx)
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	if err := s.store.SetTotal(ctx, 0); err != nil {
		s.releaseFailedStart(ctx)
		return fmt.Errorf("failed to reset total: %w", err)
	}
	if err := s.store.SetProcessed(ctx, 0); err != nil {
		s.releaseFailedStart(ctx)
		return fmt.Errorf("failed to reset processed: %w", err)
	}

	items, err := s.catalog.FetchAllItems(ctx)
	if err != nil || len(items) == 0 {
		s.appendLog(ctx, "Error: No SKUs fetched from Square. Check API credentials and try again.")
		s.releaseFailedStart(ctx)
		if err != nil {
			return fmt.Errorf("catalog fetch failed: %w", err)
		}
		return ErrNoItems
	}

	if testMode {
		if len(items) > testModeLimit {
			items = items[:testModeLimit]
		}
		s.appendLog(ctx, fmt.Sprintf("Test mode: Limited to %d SKUs", testModeLimit))
	}

	if err := s.store.ReplaceQueue(ctx, items); err != nil {
		s.releaseFailedStart(ctx)
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	if err := s.store.SetTotal(ctx, len(items)); err != nil {
		s.releaseFailedStart(ctx)
		return fmt.Errorf("failed to set total: %w", err)
	}

	s.mu.Lock()
	s.stats = repository.RunStats{}
	s.runID = 0
	s.mu.Unlock()
	if s.runs != nil {
		id, err := s.runs.StartRun(ctx, len(items), testMode)
		if err != nil {
			log.Warnf("Failed to record run start: %v", err)
		} else {
			s.mu.Lock()
			s.runID = id
			s.mu.Unlock()
		}
	}

	s.appendLog(ctx, fmt.Sprintf("Sync queue initialized with %d items", len(items)))

	// Process the first batch immediately instead of waiting for the
	// next tick.
	return s.DrainBatch(ctx)
}

// DrainBatch removes up to one batch from the front of the queue and
// reconciles each item. Every item counts as processed regardless of
// outcome; one failed item never aborts the batch.
func (s *Service) DrainBatch(ctx context.Context) error {
	running, err := s.store.Running(ctx)
	if err != nil {
		return fmt.Errorf("failed to read running flag: %w", err)
	}
	if !running {
		s.appendLog(ctx, "Warning: Attempted to process queue but sync is not running")
		return ErrNotRunning
	}

	qlen, err := s.store.QueueLen(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue length: %w", err)
	}
	if qlen == 0 {
		total, err := s.store.Total(ctx)
		if err != nil {
			return fmt.Errorf("failed to read total: %w", err)
		}
		if total == 0 {
			// Start has claimed the flag but not persisted the queue
			// yet; completing here would release the flag under it.
			return nil
		}
		s.appendLog(ctx, "Queue empty. Sync completed.")
		return s.complete(ctx)
	}

	s.appendLog(ctx, fmt.Sprintf("Processing next batch from queue. Queue size: %d", qlen))

	batch, err := s.store.PopBatch(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to pop batch: %w", err)
	}

	for _, item := range batch {
		action := s.engine.Process(ctx, item)
		if err := s.store.IncrProcessed(ctx); err != nil {
			log.Errorf("Failed to increment processed count: %v", err)
		}
		s.tally(action)
	}

	remaining := qlen - len(batch)
	total, _ := s.store.Total(ctx)
	processed, _ := s.store.Processed(ctx)
	if total > 0 {
		pct := processed * 100 / total
		s.appendLog(ctx, fmt.Sprintf("Processed batch of %d items. Progress: %d/%d (%d%%)",
			len(batch), processed, total, pct))
	}

	if remaining == 0 {
		s.appendLog(ctx, "All items processed. Sync completed.")
		return s.complete(ctx)
	}

	if remaining > fastDrainThreshold && s.kick != nil {
		s.appendLog(ctx, "Large queue detected. Scheduling immediate processing of next batch.")
		s.kick()
	}
	return nil
}

// Stop hard-resets the sync: clears the queue, zeroes the counters and
// releases the running flag. It does not interrupt a batch already in
// flight; it only prevents future drains.
func (s *Service) Stop(ctx context.Context) error {
	if err := s.store.ClearQueue(ctx); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	if err := s.store.SetTotal(ctx, 0); err != nil {
		return fmt.Errorf("failed to reset total: %w", err)
	}
	if err := s.store.SetProcessed(ctx, 0); err != nil {
		return fmt.Errorf("failed to reset processed: %w", err)
	}
	if err := s.store.SetRunning(ctx, false); err != nil {
		return fmt.Errorf("failed to release running flag: %w", err)
	}
	s.appendLog(ctx, "Sync stopped by user")
	return nil
}

// Running reports whether a sync is in progress.
func (s *Service) Running(ctx context.Context) (bool, error) {
	return s.store.Running(ctx)
}

// Status returns the snapshot for the polling client.
func (s *Service) Status(ctx context.Context) (domain.SyncStatus, error) {
	return state.Snapshot(ctx, s.store)
}

// releaseFailedStart undoes a claimed start that failed before the
// first drain: the queue is cleared and the running flag released so
// the next start can win the claim.
func (s *Service) releaseFailedStart(ctx context.Context) {
	if err := s.store.ClearQueue(ctx); err != nil {
		log.Errorf("Failed to clear queue after failed start: %v", err)
	}
	if err := s.store.SetRunning(ctx, false); err != nil {
		log.Errorf("Failed to release running flag: %v", err)
	}
}

func (s *Service) complete(ctx context.Context) error {
	if err := s.store.SetRunning(ctx, false); err != nil {
		return fmt.Errorf("failed to release running flag: %w", err)
	}

	s.mu.Lock()
	runID := s.runID
	stats := s.stats
	s.runID = 0
	s.mu.Unlock()
	if s.runs != nil && runID != 0 {
		if err := s.runs.FinishRun(ctx, runID, stats); err != nil {
			log.Warnf("Failed to record run finish: %v", err)
		}
	}
	return nil
}

func (s *Service) tally(action domain.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Processed++
	switch action {
	case domain.ActionCreated:
		s.stats.Created++
	case domain.ActionUpdated, domain.ActionSetDraftArchived, domain.ActionSetDraftOutOfStock:
		s.stats.Updated++
	case domain.ActionSkipped:
		s.stats.Skipped++
	case domain.ActionError:
		s.stats.Errors++
	}
}

func (s *Service) appendLog(ctx context.Context, message string) {
	log.Info(message)
	if err := s.store.AppendLog(ctx, message); err != nil {
		log.Warnf("Failed to append status log: %v", err)
	}
}
