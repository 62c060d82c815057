// Package store implements the classroom session store: the single
// authoritative holder of poll, roster, chat, and timer state. Surfaces
// call its operations, subscribe to change notifications, and re-read
// state; they hold no state of their own.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pollboard/pkg/interfaces"
	"pollboard/pkg/types"
)

const (
	// DefaultSnapshotKey is the fixed durable-slot key for session state.
	DefaultSnapshotKey = "classroom-session"

	// DefaultChatLimit bounds the retained chat log.
	DefaultChatLimit = 100

	// DefaultTickInterval is the countdown resolution.
	DefaultTickInterval = time.Second

	persistTimeout = 10 * time.Second
)

// PersistenceState describes the outcome of the most recent write-through
// attempts, for surfaces that render a "saved locally" indicator.
type PersistenceState struct {
	LastSavedAt time.Time
	SaveCount   int
	LastError   string
}

// Store holds all session state behind a single mutex. Every mutating
// operation persists the full snapshot before subscribers are notified.
type Store struct {
	mu            sync.RWMutex
	current       *types.Poll
	students      []*types.Student
	history       []*types.Poll
	chat          []*types.ChatMessage
	timeRemaining int

	snapshots   interfaces.SnapshotStore
	snapshotKey string
	chatLimit   int
	tick        time.Duration
	logger      *zap.Logger

	persistence PersistenceState

	// countdown driver; generation guards against a superseded driver
	// mutating state after its poll has been replaced.
	countdownDone chan struct{}
	generation    uint64

	closed bool

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int
}

// Option configures a Store at construction.
type Option func(*Store)

// WithSnapshotKey overrides the durable-slot key.
func WithSnapshotKey(key string) Option {
	return func(s *Store) { s.snapshotKey = key }
}

// WithChatLimit overrides the chat log capacity.
func WithChatLimit(limit int) Option {
	return func(s *Store) { s.chatLimit = limit }
}

// WithTickInterval overrides the countdown resolution. Each tick still
// counts as one second of poll time; tests use this to drive expiry fast.
func WithTickInterval(interval time.Duration) Option {
	return func(s *Store) { s.tick = interval }
}

// New constructs a store over the given durable slot. The persisted
// snapshot, if any, is restored; a corrupt or unreadable slot is logged
// and replaced with empty state rather than surfaced as a failure. A
// restored mid-flight poll resumes counting down from its persisted
// remaining time; one restored with no time left is closed immediately.
func New(ctx context.Context, snapshots interfaces.SnapshotStore, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		students:    make([]*types.Student, 0),
		history:     make([]*types.Poll, 0),
		chat:        make([]*types.ChatMessage, 0),
		snapshots:   snapshots,
		snapshotKey: DefaultSnapshotKey,
		chatLimit:   DefaultChatLimit,
		tick:        DefaultTickInterval,
		logger:      logger,
		subscribers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.restore(ctx)
	return s
}

// restore loads the persisted snapshot and resumes the countdown driver.
func (s *Store) restore(ctx context.Context) {
	snap, err := s.snapshots.Load(ctx, s.snapshotKey)
	if err != nil {
		if !errors.Is(err, interfaces.ErrSnapshotNotFound) {
			s.logger.Warn("failed to load persisted session, starting empty", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.current = snap.CurrentPoll
	if snap.Students != nil {
		s.students = snap.Students
	}
	if snap.PollHistory != nil {
		s.history = snap.PollHistory
	}
	if snap.ChatMessages != nil {
		s.chat = snap.ChatMessages
	}
	s.timeRemaining = snap.TimeRemaining

	if s.current != nil && s.current.IsActive {
		if s.timeRemaining > 0 {
			s.startCountdownLocked()
			s.logger.Info("resumed mid-flight poll",
				zap.String("pollID", s.current.ID),
				zap.Int("timeRemaining", s.timeRemaining))
		} else {
			// The poll expired while nothing was running to close it.
			s.endPollLocked(time.Now())
			s.persistLocked(context.Background())
		}
	}
	s.mu.Unlock()
}

// persistLocked writes the full snapshot through to the durable slot.
// Callers hold the write lock. Failures are logged and recorded in the
// persistence state but never propagate to the operation's caller.
func (s *Store) persistLocked(ctx context.Context) {
	snap := &types.Snapshot{
		CurrentPoll:   s.current,
		Students:      s.students,
		PollHistory:   s.history,
		ChatMessages:  s.chat,
		TimeRemaining: s.timeRemaining,
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	// Clone so the slow path (serialization, retry) never observes state
	// mutated after this operation completes.
	if err := s.snapshots.Save(ctx, s.snapshotKey, snap.Clone()); err != nil {
		s.logger.Error("failed to persist session snapshot", zap.Error(err))
		s.persistence.LastError = err.Error()
		return
	}
	s.persistence.LastSavedAt = time.Now()
	s.persistence.SaveCount++
	s.persistence.LastError = ""
}

// Subscribe registers a callback invoked after every mutation, ticks
// included. No payload is passed; subscribers re-query current state. The
// returned function unsubscribes.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// notify invokes all subscribers. Called without the state lock held, so
// callbacks are free to re-enter query methods.
func (s *Store) notify() {
	s.subMu.Lock()
	callbacks := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		callbacks = append(callbacks, fn)
	}
	s.subMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// CurrentPoll returns a clone of the current poll, or nil.
func (s *Store) CurrentPoll() *types.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Students returns clones of all roster entries.
func (s *Store) Students() []*types.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make([]*types.Student, 0, len(s.students))
	for _, student := range s.students {
		students = append(students, student.Clone())
	}
	return students
}

// OnlineCount returns the number of online roster entries. This is the
// same count the auto-close rule uses.
func (s *Store) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onlineCountLocked()
}

func (s *Store) onlineCountLocked() int {
	count := 0
	for _, student := range s.students {
		if student.IsOnline {
			count++
		}
	}
	return count
}

// PollHistory returns clones of all closed polls, most recent first.
func (s *Store) PollHistory() []*types.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]*types.Poll, 0, len(s.history))
	for _, poll := range s.history {
		history = append(history, poll.Clone())
	}
	return history
}

// ChatMessages returns clones of the retained chat log, oldest first.
func (s *Store) ChatMessages() []*types.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]*types.ChatMessage, 0, len(s.chat))
	for _, msg := range s.chat {
		messages = append(messages, msg.Clone())
	}
	return messages
}

// TimeRemaining returns the seconds left on the active poll, 0 otherwise.
func (s *Store) TimeRemaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeRemaining
}

// Persistence returns the state of the write-through slot.
func (s *Store) Persistence() PersistenceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistence
}

// Close cancels the countdown driver and detaches all subscribers. The
// durable slot keeps whatever was last persisted.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopCountdownLocked()
	s.mu.Unlock()

	s.subMu.Lock()
	s.subscribers = make(map[int]func())
	s.subMu.Unlock()
}
