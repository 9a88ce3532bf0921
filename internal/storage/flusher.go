package storage

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// StartFlusher syncs the storage on a cron schedule (seconds field included,
// descriptors such as "@every 30s" accepted). An empty schedule does nothing.
func (s *Storage) StartFlusher(schedule string) error {
	if schedule == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStorageClosed
	}
	if s.flusher != nil {
		return fmt.Errorf("flusher already running")
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithSeconds())
	if _, err := c.AddFunc(schedule, s.scheduledSync); err != nil {
		return fmt.Errorf("invalid flush schedule %q: %w", schedule, err)
	}
	c.Start()
	s.flusher = c
	s.logger.Info("flusher started with schedule %q", schedule)
	return nil
}

// StopFlusher stops the background flusher and waits for a running sync
func (s *Storage) StopFlusher() {
	s.mu.Lock()
	c := s.flusher
	s.flusher = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("flusher stopped")
}

func (s *Storage) scheduledSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	pending := s.queue.len()
	if err := s.sync(); err != nil {
		s.logger.Error("flusher: sync failed: %v", err)
		return
	}
	if pending > 0 {
		s.logger.Debug("flusher: wrote %d pending operations", pending)
	}
}
