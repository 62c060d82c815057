package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollboard/pkg/types"
)

// CreatePoll starts a new poll. It is rejected outright while another poll
// is active; a rejected call leaves all state untouched. The definition is
// re-validated here even though surfaces validate before calling, so a
// misbehaving caller cannot break the tally invariants.
func (s *Store) CreatePoll(question string, options []string, duration time.Duration, correctAnswer string) (*types.Poll, error) {
	question = normalize(question)
	options = types.NormalizeOptions(options)
	correctAnswer = normalize(correctAnswer)

	s.mu.Lock()
	if s.current != nil && s.current.IsActive {
		s.mu.Unlock()
		return nil, ErrPollActive
	}

	if err := types.ValidatePollDefinition(question, options, duration, correctAnswer); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	poll := types.NewPoll(uuid.New().String(), question, options, duration, correctAnswer, time.Now())
	s.current = poll
	s.timeRemaining = int(duration / time.Second)
	s.startCountdownLocked()
	s.persistLocked(context.Background())
	clone := poll.Clone()
	s.mu.Unlock()

	s.logger.Info("poll created",
		zap.String("pollID", poll.ID),
		zap.String("question", question),
		zap.Int("options", len(options)),
		zap.Duration("duration", duration))

	s.notify()
	return clone, nil
}

// SubmitAnswer records a vote. Duplicate votes by the same student and
// options outside the poll's choices are rejected with state unchanged.
// When every online student has answered, the poll closes within this same
// call; no extra tick is needed.
func (s *Store) SubmitAnswer(studentID, option string) error {
	s.mu.Lock()
	if s.current == nil || !s.current.IsActive {
		s.mu.Unlock()
		return ErrNoActivePoll
	}
	if s.current.HasAnswered(studentID) {
		s.mu.Unlock()
		return ErrAlreadyAnswered
	}
	if !s.current.HasOption(option) {
		s.mu.Unlock()
		return ErrUnknownOption
	}

	s.current.Responses[option]++
	s.current.TotalResponses++
	s.current.StudentsAnswered = append(s.current.StudentsAnswered, studentID)

	closed := false
	if len(s.current.StudentsAnswered) >= s.onlineCountLocked() {
		s.endPollLocked(time.Now())
		closed = true
	}
	s.persistLocked(context.Background())
	s.mu.Unlock()

	if closed {
		s.logger.Info("poll auto-closed, everyone answered", zap.String("studentID", studentID))
	}

	s.notify()
	return nil
}

// EndPoll closes the current poll: deactivates it, stamps the closure
// time, archives a frozen copy at the front of the history, and cancels
// the countdown. No-op when there is no poll left to close. Reached by
// three paths: countdown expiry, full-roster auto-close, and an explicit
// teacher action.
func (s *Store) EndPoll() {
	s.mu.Lock()
	if s.current == nil || !s.current.IsActive {
		s.mu.Unlock()
		return
	}
	pollID := s.current.ID
	s.endPollLocked(time.Now())
	s.persistLocked(context.Background())
	s.mu.Unlock()

	s.logger.Info("poll ended", zap.String("pollID", pollID))
	s.notify()
}

// endPollLocked is the single close path. Callers hold the write lock.
func (s *Store) endPollLocked(now time.Time) {
	if s.current == nil || !s.current.IsActive {
		return
	}
	s.current.IsActive = false
	s.current.ClosedAt = &now
	s.history = append([]*types.Poll{s.current.Clone()}, s.history...)
	s.stopCountdownLocked()
	s.timeRemaining = 0
}

// CanCreateNewPoll reports whether the teacher surface should offer the
// creation form: no poll yet, the current one is closed, or every online
// student has already answered. The online count here is the same one the
// auto-close rule uses, so the two can never disagree.
func (s *Store) CanCreateNewPoll() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return true
	}
	return !s.current.IsActive || len(s.current.StudentsAnswered) >= s.onlineCountLocked()
}
