package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pollboard/pkg/interfaces"
	"pollboard/pkg/types"
)

// mockSnapshotStore is an in-memory SnapshotStore for store tests.
type mockSnapshotStore struct {
	mu         sync.Mutex
	saved      *types.Snapshot
	loadResult *types.Snapshot
	saveCount  int
	clearCount int

	shouldFailSave bool
	shouldFailLoad bool
}

func (m *mockSnapshotStore) Save(ctx context.Context, key string, snapshot *types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailSave {
		return errors.New("save failed")
	}
	m.saved = snapshot
	m.saveCount++
	return nil
}

func (m *mockSnapshotStore) Load(ctx context.Context, key string) (*types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFailLoad {
		return nil, errors.New("load failed")
	}
	if m.loadResult == nil {
		return nil, interfaces.ErrSnapshotNotFound
	}
	return m.loadResult, nil
}

func (m *mockSnapshotStore) Clear(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = nil
	m.clearCount++
	return nil
}

func (m *mockSnapshotStore) HealthCheck(ctx context.Context) error { return nil }
func (m *mockSnapshotStore) Close() error                          { return nil }

func (m *mockSnapshotStore) lastSaved() *types.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

func (m *mockSnapshotStore) saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

// newTestStore uses an hour-long tick so the countdown driver never fires
// during tests that are not about the countdown.
func newTestStore(t *testing.T, opts ...Option) (*Store, *mockSnapshotStore) {
	t.Helper()
	mock := &mockSnapshotStore{}
	opts = append([]Option{WithTickInterval(time.Hour)}, opts...)
	s := New(context.Background(), mock, zap.NewNop(), opts...)
	t.Cleanup(s.Close)
	return s, mock
}

func TestCreatePoll(t *testing.T) {
	s, mock := newTestStore(t)

	poll, err := s.CreatePoll("Pick a color", []string{"Red", "Blue"}, 30*time.Second, "")
	require.NoError(t, err)
	require.NotNil(t, poll)

	assert.NotEmpty(t, poll.ID)
	assert.True(t, poll.IsActive)
	assert.Equal(t, map[string]int{"Red": 0, "Blue": 0}, poll.Responses)
	assert.Zero(t, poll.TotalResponses)
	assert.Empty(t, poll.StudentsAnswered)
	require.NotNil(t, poll.EndTime)
	assert.WithinDuration(t, poll.CreatedAt.Add(30*time.Second), *poll.EndTime, time.Second)
	assert.Equal(t, 30, s.TimeRemaining())

	// Write-through: the snapshot reflects the new poll immediately.
	saved := mock.lastSaved()
	require.NotNil(t, saved)
	require.NotNil(t, saved.CurrentPoll)
	assert.Equal(t, poll.ID, saved.CurrentPoll.ID)
	assert.Equal(t, 30, saved.TimeRemaining)
}

func TestCreatePoll_RejectedWhileActive(t *testing.T) {
	s, _ := newTestStore(t)

	first, err := s.CreatePoll("First?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)

	second, err := s.CreatePoll("Second?", []string{"C", "D"}, 30*time.Second, "")
	assert.ErrorIs(t, err, ErrPollActive)
	assert.Nil(t, second)

	// State unchanged by the rejected call.
	current := s.CurrentPoll()
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, "First?", current.Question)
	assert.Equal(t, 30, s.TimeRemaining())
}

func TestCreatePoll_Validation(t *testing.T) {
	tests := []struct {
		name     string
		question string
		options  []string
		duration time.Duration
		correct  string
		wantErr  error
	}{
		{"empty question", "   ", []string{"A", "B"}, 30 * time.Second, "", types.ErrEmptyQuestion},
		{"one option", "Q?", []string{"A"}, 30 * time.Second, "", types.ErrTooFewOptions},
		{"blank options dropped", "Q?", []string{"A", "  "}, 30 * time.Second, "", types.ErrTooFewOptions},
		{"duplicate options", "Q?", []string{"A", "A"}, 30 * time.Second, "", types.ErrDuplicateOption},
		{"correct answer not an option", "Q?", []string{"A", "B"}, 30 * time.Second, "C", types.ErrCorrectAnswerUnknown},
		{"zero duration", "Q?", []string{"A", "B"}, 0, "", types.ErrInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			poll, err := s.CreatePoll(tt.question, tt.options, tt.duration, tt.correct)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, poll)
			assert.Nil(t, s.CurrentPoll())
		})
	}
}

func TestSubmitAnswer(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AddStudent("Ann")
	require.NoError(t, err)
	_, err = s.AddStudent("Ben")
	require.NoError(t, err)

	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)

	require.NoError(t, s.SubmitAnswer("s1", "A"))

	poll := s.CurrentPoll()
	assert.Equal(t, 1, poll.Responses["A"])
	assert.Equal(t, 1, poll.TotalResponses)
	assert.Equal(t, []string{"s1"}, poll.StudentsAnswered)
	assert.True(t, poll.IsActive)
}

func TestSubmitAnswer_NoActivePoll(t *testing.T) {
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.SubmitAnswer("s1", "A"), ErrNoActivePoll)
}

func TestSubmitAnswer_DuplicateVoteCountsOnce(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddStudent("Ann")
	require.NoError(t, err)
	_, err = s.AddStudent("Ben")
	require.NoError(t, err)
	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)

	require.NoError(t, s.SubmitAnswer("s1", "A"))
	assert.ErrorIs(t, s.SubmitAnswer("s1", "B"), ErrAlreadyAnswered)

	poll := s.CurrentPoll()
	assert.Equal(t, 1, poll.TotalResponses)
	assert.Equal(t, 1, poll.Responses["A"])
	assert.Equal(t, 0, poll.Responses["B"])
	assert.Len(t, poll.StudentsAnswered, 1)
}

func TestSubmitAnswer_UnknownOptionRejected(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddStudent("Ann")
	require.NoError(t, err)
	_, err = s.AddStudent("Ben")
	require.NoError(t, err)
	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.SubmitAnswer("s1", "C"), ErrUnknownOption)

	poll := s.CurrentPoll()
	assert.Zero(t, poll.TotalResponses)
	assert.Empty(t, poll.StudentsAnswered)
	assert.NotContains(t, poll.Responses, "C")
}

// Tally invariant: totalResponses == sum of responses == students answered.
func TestSubmitAnswer_TallyInvariant(t *testing.T) {
	s, _ := newTestStore(t)
	for _, name := range []string{"Ann", "Ben", "Cam", "Dee"} {
		_, err := s.AddStudent(name)
		require.NoError(t, err)
	}
	_, err := s.CreatePoll("Q?", []string{"A", "B", "C"}, 30*time.Second, "")
	require.NoError(t, err)

	require.NoError(t, s.SubmitAnswer("s1", "A"))
	require.NoError(t, s.SubmitAnswer("s2", "A"))
	require.NoError(t, s.SubmitAnswer("s3", "C"))

	poll := s.CurrentPoll()
	sum := 0
	for _, count := range poll.Responses {
		sum += count
	}
	assert.Equal(t, poll.TotalResponses, sum)
	assert.Equal(t, poll.TotalResponses, len(poll.StudentsAnswered))
	assert.Equal(t, 3, poll.TotalResponses)
}

// When the answered count reaches the online-student count the poll closes
// within the same SubmitAnswer call, with no extra tick.
func TestSubmitAnswer_AutoCloseOnFullRoster(t *testing.T) {
	s, _ := newTestStore(t)
	ann, err := s.AddStudent("Ann")
	require.NoError(t, err)
	ben, err := s.AddStudent("Ben")
	require.NoError(t, err)

	_, err = s.CreatePoll("Pick a color", []string{"Red", "Blue"}, 30*time.Second, "")
	require.NoError(t, err)

	require.NoError(t, s.SubmitAnswer(ann.ID, "Red"))
	assert.True(t, s.CurrentPoll().IsActive)

	require.NoError(t, s.SubmitAnswer(ben.ID, "Blue"))

	poll := s.CurrentPoll()
	assert.False(t, poll.IsActive)
	require.NotNil(t, poll.ClosedAt)
	assert.Equal(t, map[string]int{"Red": 1, "Blue": 1}, poll.Responses)
	assert.Equal(t, 2, poll.TotalResponses)
	assert.Equal(t, 0, s.TimeRemaining())

	history := s.PollHistory()
	require.Len(t, history, 1)
	assert.Equal(t, poll.ID, history[0].ID)
	assert.Equal(t, map[string]int{"Red": 1, "Blue": 1}, history[0].Responses)
}

func TestEndPoll(t *testing.T) {
	s, _ := newTestStore(t)
	poll, err := s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)

	s.EndPoll()

	current := s.CurrentPoll()
	assert.False(t, current.IsActive)
	require.NotNil(t, current.ClosedAt)
	assert.Equal(t, 0, s.TimeRemaining())

	history := s.PollHistory()
	require.Len(t, history, 1)
	assert.Equal(t, poll.ID, history[0].ID)

	// Ending again must not duplicate the archive entry.
	s.EndPoll()
	assert.Len(t, s.PollHistory(), 1)
}

func TestEndPoll_NoPollIsNoop(t *testing.T) {
	s, mock := newTestStore(t)
	before := mock.saves()
	s.EndPoll()
	assert.Equal(t, before, mock.saves())
	assert.Empty(t, s.PollHistory())
}

// At most one poll is active at any observed point.
func TestOnlyOnePollActive(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.CreatePoll(fmt.Sprintf("Q%d?", i), []string{"A", "B"}, 30*time.Second, "")
		require.NoError(t, err)

		active := 0
		if p := s.CurrentPoll(); p != nil && p.IsActive {
			active++
		}
		for _, p := range s.PollHistory() {
			if p.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
		s.EndPoll()
	}
	assert.Len(t, s.PollHistory(), 3)
}

func TestHistoryOrder_MostRecentFirst(t *testing.T) {
	s, _ := newTestStore(t)
	for _, q := range []string{"first?", "second?", "third?"} {
		_, err := s.CreatePoll(q, []string{"A", "B"}, 30*time.Second, "")
		require.NoError(t, err)
		s.EndPoll()
	}

	history := s.PollHistory()
	require.Len(t, history, 3)
	assert.Equal(t, "third?", history[0].Question)
	assert.Equal(t, "second?", history[1].Question)
	assert.Equal(t, "first?", history[2].Question)
}

func TestHistoryEntriesAreFrozen(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)
	s.EndPoll()

	history := s.PollHistory()
	history[0].Responses["A"] = 99
	history[0].Question = "mutated"

	fresh := s.PollHistory()
	assert.Equal(t, 0, fresh[0].Responses["A"])
	assert.Equal(t, "Q?", fresh[0].Question)
}

func TestCanCreateNewPoll(t *testing.T) {
	s, _ := newTestStore(t)
	assert.True(t, s.CanCreateNewPoll(), "no poll yet")

	ann, err := s.AddStudent("Ann")
	require.NoError(t, err)
	ben, err := s.AddStudent("Ben")
	require.NoError(t, err)

	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)
	assert.False(t, s.CanCreateNewPoll(), "active poll, nobody answered")

	require.NoError(t, s.SubmitAnswer(ann.ID, "A"))
	assert.False(t, s.CanCreateNewPoll(), "one of two answered")

	require.NoError(t, s.SubmitAnswer(ben.ID, "B"))
	assert.True(t, s.CanCreateNewPoll(), "everyone answered, poll auto-closed")
}

func TestCorrectAnswerScenario(t *testing.T) {
	s, _ := newTestStore(t)
	ann, err := s.AddStudent("Ann")
	require.NoError(t, err)
	_, err = s.AddStudent("Ben")
	require.NoError(t, err)

	_, err = s.CreatePoll("Sky color?", []string{"Red", "Blue"}, 30*time.Second, "Blue")
	require.NoError(t, err)
	require.NoError(t, s.SubmitAnswer(ann.ID, "Red"))

	poll := s.CurrentPoll()
	assert.False(t, poll.IsCorrect("Red"))
	assert.True(t, poll.IsCorrect("Blue"))
}

func TestAddStudent_RejoinReattaches(t *testing.T) {
	s, _ := newTestStore(t)

	first, err := s.AddStudent("Ann")
	require.NoError(t, err)
	second, err := s.AddStudent("Ann")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsOnline)
	assert.False(t, second.LastSeen.Before(first.LastSeen))

	students := s.Students()
	require.Len(t, students, 1)
	assert.Equal(t, "Ann", students[0].Name)
}

func TestAddStudent_TrimsAndRejectsEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	student, err := s.AddStudent("  Ann  ")
	require.NoError(t, err)
	assert.Equal(t, "Ann", student.Name)

	_, err = s.AddStudent("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestKickStudent(t *testing.T) {
	s, _ := newTestStore(t)
	ann, err := s.AddStudent("Ann")
	require.NoError(t, err)
	_, err = s.AddStudent("Ben")
	require.NoError(t, err)

	require.NoError(t, s.KickStudent(ann.ID))

	for _, student := range s.Students() {
		assert.NotEqual(t, ann.ID, student.ID)
	}
	assert.Equal(t, 1, s.OnlineCount())

	assert.ErrorIs(t, s.KickStudent(ann.ID), ErrStudentNotFound)
}

func TestSendChatMessage(t *testing.T) {
	s, _ := newTestStore(t)

	msg, err := s.SendChatMessage("t1", "Teacher", types.RoleTeacher, "  hello class  ")
	require.NoError(t, err)
	assert.Equal(t, "hello class", msg.Body)
	assert.Equal(t, types.RoleTeacher, msg.SenderRole)
	assert.NotEmpty(t, msg.ID)

	_, err = s.SendChatMessage("t1", "Teacher", types.RoleTeacher, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = s.SendChatMessage("t1", "Teacher", "admin", "hi")
	assert.ErrorIs(t, err, types.ErrInvalidRole)

	assert.Len(t, s.ChatMessages(), 1)
}

// The chat log is a bounded ring: after message #101 arrives, #1 is gone
// and #2..#101 remain in order.
func TestChatRetention(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 1; i <= 101; i++ {
		_, err := s.SendChatMessage("t1", "Teacher", types.RoleTeacher, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	messages := s.ChatMessages()
	require.Len(t, messages, 100)
	assert.Equal(t, "msg-2", messages[0].Body)
	assert.Equal(t, "msg-101", messages[99].Body)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp))
	}
}

func TestClearAllData(t *testing.T) {
	s, mock := newTestStore(t)
	_, err := s.AddStudent("Ann")
	require.NoError(t, err)
	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)
	_, err = s.SendChatMessage("t1", "Teacher", types.RoleTeacher, "hi")
	require.NoError(t, err)

	s.ClearAllData()

	assert.Nil(t, s.CurrentPoll())
	assert.Empty(t, s.Students())
	assert.Empty(t, s.PollHistory())
	assert.Empty(t, s.ChatMessages())
	assert.Equal(t, 0, s.TimeRemaining())
	assert.Equal(t, 1, mock.clearCount)
	assert.Nil(t, mock.lastSaved())
}

func TestExport_PointInTimeCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ann, err := s.AddStudent("Ann")
	require.NoError(t, err)
	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)

	export := s.Export()
	assert.WithinDuration(t, time.Now(), export.ExportedAt, time.Second)
	require.Len(t, export.Students, 1)
	require.NotNil(t, export.CurrentPoll)

	// Later mutation must not alter the exported structure.
	require.NoError(t, s.SubmitAnswer(ann.ID, "A"))
	require.NoError(t, s.KickStudent(ann.ID))

	assert.Zero(t, export.CurrentPoll.TotalResponses)
	assert.Len(t, export.Students, 1)
}

func TestWriteThroughOnEveryMutation(t *testing.T) {
	s, mock := newTestStore(t)

	before := mock.saves()
	_, err := s.AddStudent("Ann")
	require.NoError(t, err)
	assert.Equal(t, before+1, mock.saves())

	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)
	assert.Equal(t, before+2, mock.saves())

	_, err = s.SendChatMessage("t1", "Teacher", types.RoleTeacher, "hi")
	require.NoError(t, err)
	assert.Equal(t, before+3, mock.saves())

	saved := mock.lastSaved()
	require.NotNil(t, saved)
	assert.Len(t, saved.ChatMessages, 1)
	assert.Len(t, saved.Students, 1)
	require.NotNil(t, saved.CurrentPoll)
}

// A persistence failure degrades the indicator but never fails the
// operation itself.
func TestPersistenceFailureDoesNotFailOperations(t *testing.T) {
	s, mock := newTestStore(t)
	mock.mu.Lock()
	mock.shouldFailSave = true
	mock.mu.Unlock()

	student, err := s.AddStudent("Ann")
	require.NoError(t, err)
	assert.NotNil(t, student)

	state := s.Persistence()
	assert.NotEmpty(t, state.LastError)
	assert.Zero(t, state.SaveCount)
}

func TestRestoreFromSnapshot(t *testing.T) {
	closed := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	mock := &mockSnapshotStore{
		loadResult: &types.Snapshot{
			CurrentPoll: &types.Poll{
				ID:        "p1",
				Question:  "Old?",
				Options:   []string{"A", "B"},
				IsActive:  false,
				Responses: map[string]int{"A": 1, "B": 0},
				ClosedAt:  &closed,
			},
			Students: []*types.Student{
				{ID: "s1", Name: "Ann", IsOnline: true, LastSeen: closed},
			},
			ChatMessages: []*types.ChatMessage{
				{ID: "m1", SenderID: "s1", SenderName: "Ann", SenderRole: types.RoleStudent, Body: "hi", Timestamp: closed},
			},
			TimeRemaining: 0,
		},
	}

	s := New(context.Background(), mock, zap.NewNop(), WithTickInterval(time.Hour))
	defer s.Close()

	poll := s.CurrentPoll()
	require.NotNil(t, poll)
	assert.Equal(t, "p1", poll.ID)
	assert.False(t, poll.IsActive)
	assert.Len(t, s.Students(), 1)
	assert.Len(t, s.ChatMessages(), 1)
	assert.Equal(t, 0, s.TimeRemaining())
}

func TestCorruptSlotFallsBackToEmpty(t *testing.T) {
	mock := &mockSnapshotStore{shouldFailLoad: true}
	s := New(context.Background(), mock, zap.NewNop(), WithTickInterval(time.Hour))
	defer s.Close()

	assert.Nil(t, s.CurrentPoll())
	assert.Empty(t, s.Students())
	assert.Empty(t, s.PollHistory())
	assert.Empty(t, s.ChatMessages())
}

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore(t)

	notifications := 0
	unsubscribe := s.Subscribe(func() { notifications++ })

	_, err := s.AddStudent("Ann")
	require.NoError(t, err)
	assert.Equal(t, 1, notifications)

	_, err = s.CreatePoll("Q?", []string{"A", "B"}, 30*time.Second, "")
	require.NoError(t, err)
	assert.Equal(t, 2, notifications)

	// Rejected operations change nothing and notify nobody.
	_, err = s.CreatePoll("Again?", []string{"A", "B"}, 30*time.Second, "")
	require.Error(t, err)
	assert.Equal(t, 2, notifications)

	unsubscribe()
	s.EndPoll()
	assert.Equal(t, 2, notifications)
}

func TestSubscriberCanReadStateFromCallback(t *testing.T) {
	s, _ := newTestStore(t)

	var observed int
	unsubscribe := s.Subscribe(func() {
		observed = len(s.Students())
	})
	defer unsubscribe()

	_, err := s.AddStudent("Ann")
	require.NoError(t, err)
	assert.Equal(t, 1, observed)
}

func TestChatLimitOption(t *testing.T) {
	s, _ := newTestStore(t, WithChatLimit(3))
	for i := 1; i <= 5; i++ {
		_, err := s.SendChatMessage("t1", "Teacher", types.RoleTeacher, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	messages := s.ChatMessages()
	require.Len(t, messages, 3)
	assert.Equal(t, "m3", messages[0].Body)
	assert.Equal(t, "m5", messages[2].Body)
}
