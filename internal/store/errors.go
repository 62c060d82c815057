package store

import "errors"

// Operation rejections. State is unchanged whenever one of these is
// returned.
var (
	ErrPollActive      = errors.New("a poll is already active")
	ErrNoActivePoll    = errors.New("no poll is active")
	ErrAlreadyAnswered = errors.New("student has already answered this poll")
	ErrUnknownOption   = errors.New("answer is not one of the poll's options")
	ErrEmptyName       = errors.New("student name cannot be empty")
	ErrStudentNotFound = errors.New("student not found")
	ErrEmptyMessage    = errors.New("chat message cannot be empty")
)
