package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// The countdown driver is the only autonomous mutator: one goroutine per
// active poll, decrementing the remaining time once per tick and closing
// the poll when it hits zero. At most one driver is alive; starting a new
// poll or clearing all data cancels the previous one before anything else
// happens, and the generation check makes a cancelled driver's late tick
// a no-op rather than a mutation of a superseded poll.

// startCountdownLocked cancels any running driver and starts a fresh one.
// Callers hold the write lock.
func (s *Store) startCountdownLocked() {
	s.stopCountdownLocked()
	s.generation++
	done := make(chan struct{})
	s.countdownDone = done
	go s.runCountdown(s.generation, done)
}

// stopCountdownLocked cancels the running driver, if any. Callers hold the
// write lock.
func (s *Store) stopCountdownLocked() {
	if s.countdownDone != nil {
		close(s.countdownDone)
		s.countdownDone = nil
	}
}

func (s *Store) runCountdown(generation uint64, done chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !s.tickOnce(generation) {
				return
			}
		}
	}
}

// tickOnce applies one countdown step and reports whether the driver
// should keep running.
func (s *Store) tickOnce(generation uint64) bool {
	s.mu.Lock()
	if generation != s.generation || s.current == nil || !s.current.IsActive {
		s.mu.Unlock()
		return false
	}

	s.timeRemaining--
	expired := s.timeRemaining <= 0
	if expired {
		pollID := s.current.ID
		s.endPollLocked(time.Now())
		s.persistLocked(context.Background())
		s.mu.Unlock()
		s.logger.Info("poll expired", zap.String("pollID", pollID))
		s.notify()
		return false
	}

	s.persistLocked(context.Background())
	s.mu.Unlock()
	s.notify()
	return true
}
