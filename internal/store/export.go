package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pollboard/pkg/types"
)

// Export returns a deep, timestamped read of the full session state for
// archival. It is a point-in-time copy: later store mutations never alter
// a previously exported structure.
func (s *Store) Export() *types.Export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	export := &types.Export{
		CurrentPoll:   s.current.Clone(),
		Students:      make([]*types.Student, 0, len(s.students)),
		PollHistory:   make([]*types.Poll, 0, len(s.history)),
		ChatMessages:  make([]*types.ChatMessage, 0, len(s.chat)),
		TimeRemaining: s.timeRemaining,
		ExportedAt:    time.Now(),
	}
	for _, student := range s.students {
		export.Students = append(export.Students, student.Clone())
	}
	for _, poll := range s.history {
		export.PollHistory = append(export.PollHistory, poll.Clone())
	}
	for _, msg := range s.chat {
		export.ChatMessages = append(export.ChatMessages, msg.Clone())
	}
	return export
}

// ClearAllData resets every collection to empty, cancels any pending
// countdown driver, and erases the durable slot. A stale tick that
// survives cancellation cannot mutate the reset state.
func (s *Store) ClearAllData() {
	s.mu.Lock()
	s.stopCountdownLocked()
	s.generation++
	s.current = nil
	s.students = make([]*types.Student, 0)
	s.history = make([]*types.Poll, 0)
	s.chat = make([]*types.ChatMessage, 0)
	s.timeRemaining = 0

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	if err := s.snapshots.Clear(ctx, s.snapshotKey); err != nil {
		s.logger.Error("failed to erase durable slot", zap.Error(err))
		s.persistence.LastError = err.Error()
	}
	cancel()
	s.mu.Unlock()

	s.logger.Info("all session data cleared")
	s.notify()
}
