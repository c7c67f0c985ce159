package quiz

import "errors"

var (
	// ErrNotFound is returned when a topic, quiz, question or student does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotAssigned is returned when a student acts on a quiz they were not assigned.
	ErrNotAssigned = errors.New("quiz is not assigned to student")
	// ErrQuizAssigned is returned when deleting a quiz that has assignments.
	ErrQuizAssigned = errors.New("you cannot delete an assigned quiz")
	// ErrInvalidInput is returned for malformed arguments such as negative counts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuestion is returned when a question breaks the MCQ/SAQ invariant.
	ErrInvalidQuestion = errors.New("invalid question")
)
