package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollboard/pkg/types"
)

func normalize(s string) string {
	return strings.TrimSpace(s)
}

// AddStudent joins a student to the session. If an entry with exactly that
// name already exists it is reactivated and its LastSeen refreshed; this is
// how a returning surface re-establishes presence after a reload without
// producing a duplicate roster entry. Matching is by name, not remembered
// id; the weak identity model assumes a trusted classroom.
func (s *Store) AddStudent(name string) (*types.Student, error) {
	name = normalize(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	s.mu.Lock()
	var student *types.Student
	for _, existing := range s.students {
		if existing.Name == name {
			student = existing
			break
		}
	}
	rejoined := student != nil
	if rejoined {
		student.IsOnline = true
		student.LastSeen = time.Now()
	} else {
		student = &types.Student{
			ID:       uuid.New().String(),
			Name:     name,
			IsOnline: true,
			LastSeen: time.Now(),
		}
		s.students = append(s.students, student)
	}
	s.persistLocked(context.Background())
	clone := student.Clone()
	s.mu.Unlock()

	s.logger.Info("student joined",
		zap.String("studentID", clone.ID),
		zap.String("name", name),
		zap.Bool("rejoined", rejoined))

	s.notify()
	return clone, nil
}

// KickStudent removes the roster entry outright. A kicked student's
// remembered id no longer resolves, which its surface must treat as a
// forced session reset.
func (s *Store) KickStudent(studentID string) error {
	s.mu.Lock()
	index := -1
	for i, student := range s.students {
		if student.ID == studentID {
			index = i
			break
		}
	}
	if index == -1 {
		s.mu.Unlock()
		return ErrStudentNotFound
	}
	name := s.students[index].Name
	s.students = append(s.students[:index], s.students[index+1:]...)
	s.persistLocked(context.Background())
	s.mu.Unlock()

	s.logger.Info("student kicked",
		zap.String("studentID", studentID),
		zap.String("name", name))

	s.notify()
	return nil
}
