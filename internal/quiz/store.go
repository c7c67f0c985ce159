package quiz

import "context"

// TopicFinder resolves topics.
type TopicFinder interface {
	Topic(ctx context.Context, id string) (Topic, error)
}

// StudentFinder resolves students.
type StudentFinder interface {
	Student(ctx context.Context, id string) (Student, error)
	Students(ctx context.Context) ([]Student, error)
}

// Reader is the read side of the quiz store. Lookups of a single entity
// return ErrNotFound when it does not exist; listings return empty slices.
type Reader interface {
	TopicFinder
	StudentFinder

	Quiz(ctx context.Context, id string) (Quiz, error)
	Quizzes(ctx context.Context) ([]Quiz, error)
	QuizzesByTopic(ctx context.Context, topicID string) ([]Quiz, error)

	Question(ctx context.Context, id string) (Question, error)
	Questions(ctx context.Context, quizID string) ([]Question, error)

	Assignment(ctx context.Context, quizID, studentID string) (Assignment, error)
	AssignmentsByStudent(ctx context.Context, studentID string) ([]Assignment, error)
	HasAssignments(ctx context.Context, quizID string) (bool, error)

	AttemptsByStudent(ctx context.Context, studentID string) ([]Attempt, error)
	AttemptsByQuiz(ctx context.Context, quizID string) ([]Attempt, error)
}

// Tx is a store transaction. Writes become visible to other readers only
// when the function passed to InTx returns nil.
type Tx interface {
	Reader

	// LockQuiz locks the quiz row for the rest of the transaction. Deletion
	// and question changes take it exclusive; assignment, start and submit
	// take it shared.
	LockQuiz(ctx context.Context, id string, exclusive bool) error

	InsertQuiz(ctx context.Context, q Quiz) error
	// DeleteQuiz removes the quiz and everything it owns in dependency order:
	// answers, attempts, assignments, questions, then the quiz itself.
	DeleteQuiz(ctx context.Context, id string) error

	// BumpQuestionsVersion increments the quiz's QuestionsVersion and returns
	// the new value. Every question mutation calls it in the same transaction.
	BumpQuestionsVersion(ctx context.Context, quizID string) (int, error)

	InsertQuestion(ctx context.Context, q Question) error
	UpdateQuestion(ctx context.Context, q Question) error
	// DeleteQuestion removes the question and the answers that reference it.
	DeleteQuestion(ctx context.Context, id string) error

	// InsertAssignment reports false when the (quiz, student) pair already exists.
	InsertAssignment(ctx context.Context, a Assignment) (bool, error)
	// SetAssignmentStatus reports false when no assignment matches.
	SetAssignmentStatus(ctx context.Context, quizID, studentID string, status Status) (bool, error)

	InsertAttempt(ctx context.Context, a Attempt) error
}

// Store persists the quiz domain. Every mutation runs inside InTx.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// CatalogWriter upserts the reference data quizzes hang off.
type CatalogWriter interface {
	UpsertCourse(ctx context.Context, c Course) error
	UpsertSubject(ctx context.Context, s Subject) error
	UpsertTopic(ctx context.Context, t Topic) error
	UpsertStudent(ctx context.Context, s Student) error
}
