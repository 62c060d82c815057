package types

import (
	"time"
)

// Sender roles for chat messages.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Poll is a single multiple-choice question with a live response tally.
// Responses always carries every option as a key, zero-initialized at
// creation, so the tally keyset never changes over the poll's lifetime.
type Poll struct {
	ID               string         `json:"id"`
	Question         string         `json:"question"`
	Options          []string       `json:"options"`
	CorrectAnswer    string         `json:"correctAnswer,omitempty"`
	IsActive         bool           `json:"isActive"`
	Responses        map[string]int `json:"responses"`
	TotalResponses   int            `json:"totalResponses"`
	StudentsAnswered []string       `json:"studentsAnswered"`
	CreatedAt        time.Time      `json:"createdAt"`
	// EndTime is the scheduled deadline stamped at creation;
	// ClosedAt is stamped when the poll actually transitions to inactive.
	EndTime  *time.Time `json:"endTime,omitempty"`
	ClosedAt *time.Time `json:"closedAt,omitempty"`
}

// NewPoll builds an active poll with zero-initialized tallies. Inputs are
// assumed to be already validated and normalized (see ValidatePollDefinition).
func NewPoll(id, question string, options []string, duration time.Duration, correctAnswer string, now time.Time) *Poll {
	responses := make(map[string]int, len(options))
	for _, opt := range options {
		responses[opt] = 0
	}
	deadline := now.Add(duration)
	return &Poll{
		ID:               id,
		Question:         question,
		Options:          append([]string(nil), options...),
		CorrectAnswer:    correctAnswer,
		IsActive:         true,
		Responses:        responses,
		TotalResponses:   0,
		StudentsAnswered: make([]string, 0),
		CreatedAt:        now,
		EndTime:          &deadline,
	}
}

// HasAnswered reports whether the student already voted on this poll.
func (p *Poll) HasAnswered(studentID string) bool {
	for _, id := range p.StudentsAnswered {
		if id == studentID {
			return true
		}
	}
	return false
}

// HasOption reports whether the option is one of the poll's choices.
func (p *Poll) HasOption(option string) bool {
	_, ok := p.Responses[option]
	return ok
}

// IsCorrect reports whether the option matches the poll's correct answer.
// Always false for polls created without one.
func (p *Poll) IsCorrect(option string) bool {
	return p.CorrectAnswer != "" && option == p.CorrectAnswer
}

// Clone returns a deep copy of the poll. History entries and query results
// are clones so later mutation of the live poll cannot leak through.
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Options = append([]string(nil), p.Options...)
	clone.StudentsAnswered = append([]string(nil), p.StudentsAnswered...)
	clone.Responses = make(map[string]int, len(p.Responses))
	for opt, count := range p.Responses {
		clone.Responses[opt] = count
	}
	if p.EndTime != nil {
		t := *p.EndTime
		clone.EndTime = &t
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		clone.ClosedAt = &t
	}
	return &clone
}

// Student is a roster entry. Entries are only ever removed outright
// (kicked); an existing entry is treated as online.
type Student struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// Clone returns a copy of the student.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// ChatMessage is a single entry in the bounded chat log.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	SenderRole string    `json:"senderRole"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// Clone returns a copy of the message.
func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Snapshot is the full persisted session state. It is serialized as one
// JSON blob under a fixed key in the durable slot after every mutation.
type Snapshot struct {
	CurrentPoll   *Poll          `json:"currentPoll"`
	Students      []*Student     `json:"students"`
	PollHistory   []*Poll        `json:"pollHistory"`
	ChatMessages  []*ChatMessage `json:"chatMessages"`
	TimeRemaining int            `json:"timeRemaining"`
}

// EmptySnapshot returns a snapshot with all collections empty, the state a
// store falls back to when the durable slot is absent or unreadable.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Students:     make([]*Student, 0),
		PollHistory:  make([]*Poll, 0),
		ChatMessages: make([]*ChatMessage, 0),
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := &Snapshot{
		CurrentPoll:   s.CurrentPoll.Clone(),
		Students:      make([]*Student, 0, len(s.Students)),
		PollHistory:   make([]*Poll, 0, len(s.PollHistory)),
		ChatMessages:  make([]*ChatMessage, 0, len(s.ChatMessages)),
		TimeRemaining: s.TimeRemaining,
	}
	for _, student := range s.Students {
		clone.Students = append(clone.Students, student.Clone())
	}
	for _, poll := range s.PollHistory {
		clone.PollHistory = append(clone.PollHistory, poll.Clone())
	}
	for _, msg := range s.ChatMessages {
		clone.ChatMessages = append(clone.ChatMessages, msg.Clone())
	}
	return clone
}

// Export is a point-in-time deep read of the session state for archival.
type Export struct {
	CurrentPoll   *Poll          `json:"currentPoll"`
	Students      []*Student     `json:"students"`
	PollHistory   []*Poll        `json:"pollHistory"`
	ChatMessages  []*ChatMessage `json:"chatMessages"`
	TimeRemaining int            `json:"timeRemaining"`
	ExportedAt    time.Time      `json:"exportedAt"`
}
