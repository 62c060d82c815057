package types

import "errors"

// Validation errors shared by the store and any surface that wants to
// pre-validate input before calling it.
var (
	ErrEmptyQuestion        = errors.New("poll question cannot be empty")
	ErrTooFewOptions        = errors.New("poll needs at least 2 non-empty options")
	ErrDuplicateOption      = errors.New("poll options must be distinct")
	ErrCorrectAnswerUnknown = errors.New("correct answer must be one of the options")
	ErrInvalidDuration      = errors.New("poll duration must be at least 1 second")
	ErrInvalidRole          = errors.New("sender role must be 'teacher' or 'student'")
)
