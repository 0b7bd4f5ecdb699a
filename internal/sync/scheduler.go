package sync

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler drives the queue processor: a fixed-interval tick drains one
// batch whenever a sync is running, a kick channel provides the fast
// path for large backlogs, and a daily timer starts an automatic full
// sync.
type Scheduler struct {
	service   *Service
	interval  time.Duration
	dailyHour int

	kickC  chan struct{}
	resetC chan struct{}
	dailyC chan struct{}
}

func NewScheduler(service *Service, tickInterval time.Duration, dailyHour int) *Scheduler {
	s := &Scheduler{
		service:   service,
		interval:  tickInterval,
		dailyHour: dailyHour,
		kickC:     make(chan struct{}, 1),
		resetC:    make(chan struct{}, 1),
		dailyC:    make(chan struct{}, 1),
	}
	service.SetDrainSignal(s.Kick)
	return s
}

// Kick requests an immediate out-of-band drain. Non-blocking; a pending
// kick coalesces with new ones.
func (s *Scheduler) Kick() {
	select {
	case s.kickC <- struct{}{}:
	default:
	}
}

// ResetTicker restarts the drain ticker from now.
func (s *Scheduler) ResetTicker() {
	select {
	case s.resetC <- struct{}{}:
	default:
	}
}

// RescheduleDaily moves the next automatic full sync to the configured
// hour tomorrow.
func (s *Scheduler) RescheduleDaily() {
	select {
	case s.dailyC <- struct{}{}:
	default:
	}
}

// NextDaily returns the next automatic full sync time after now.
func (s *Scheduler) NextDaily(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.dailyHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	daily := time.NewTimer(time.Until(s.NextDaily(time.Now())))
	defer daily.Stop()

	log.Infof("Scheduler started: draining every %v, daily sync at %02d:00", s.interval, s.dailyHour)

	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopping")
			return ctx.Err()

		case <-ticker.C:
			s.drainIfRunning(ctx)

		case <-s.kickC:
			s.drainIfRunning(ctx)

		case <-s.resetC:
			ticker.Reset(s.interval)
			log.Info("Drain ticker reset")

		case <-s.dailyC:
			next := s.NextDaily(time.Now().Add(24 * time.Hour))
			daily.Reset(time.Until(next))
			log.Infof("Daily sync rescheduled for %v", next.Format("2006-01-02 15:04:05"))

		case <-daily.C:
			daily.Reset(time.Until(s.NextDaily(time.Now().Add(time.Minute))))
			log.Info("Starting scheduled daily sync...")
			if err := s.service.Start(ctx, false); err != nil {
				if errors.Is(err, ErrAlreadyRunning) {
					log.Info("Daily sync skipped: Another sync is already in progress")
				} else {
					log.Errorf("Daily sync failed to start: %v", err)
				}
			}
		}
	}
}

func (s *Scheduler) drainIfRunning(ctx context.Context) {
	running, err := s.service.Running(ctx)
	if err != nil {
		log.Errorf("Failed to read running flag: %v", err)
		return
	}
	if !running {
		return
	}
	if err := s.service.DrainBatch(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		log.Errorf("Failed to drain batch: %v", err)
	}
}
