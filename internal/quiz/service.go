// Package quiz implements the quiz lifecycle: generation into the store,
// assignment tracking, scoring of submissions and guarded deletion.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-quiz/internal/quizgen"
)

// QuestionGenerator produces the questions of a new quiz. It never fails;
// *quizgen.Generator is the production implementation.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic, difficulty string, countMCQ, countSAQ int) []quizgen.QuestionSpec
}

// Config holds the dependencies of a Service.
type Config struct {
	Store     Store
	Generator QuestionGenerator

	// Topics and Students default to Store.
	Topics   TopicFinder
	Students StudentFinder

	Events EventLogger // defaults to NopEventLogger
	Views  ViewCache   // defaults to NopViewCache

	Now   func() time.Time // defaults to time.Now
	NewID func() string    // defaults to uuid.NewString
}

// Service exposes the quiz operations.
type Service struct {
	store     Store
	generator QuestionGenerator
	topics    TopicFinder
	students  StudentFinder
	events    EventLogger
	views     ViewCache
	now       func() time.Time
	newID     func() string
}

// NewService creates a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("quiz store is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("question generator is required")
	}

	s := &Service{
		store:     cfg.Store,
		generator: cfg.Generator,
		topics:    cfg.Topics,
		students:  cfg.Students,
		events:    cfg.Events,
		views:     cfg.Views,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if s.topics == nil {
		s.topics = cfg.Store
	}
	if s.students == nil {
		s.students = cfg.Store
	}
	if s.events == nil {
		s.events = NopEventLogger{}
	}
	if s.views == nil {
		s.views = NopViewCache{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// CreateQuiz generates countMCQ + countSAQ questions for the topic and stores
// them with the quiz in one transaction, in generator order.
func (s *Service) CreateQuiz(ctx context.Context, topicID, difficulty string, countMCQ, countSAQ int) (Quiz, error) {
	if countMCQ < 0 || countSAQ < 0 {
		return Quiz{}, fmt.Errorf("%w: question counts must not be negative (mcq=%d, saq=%d)", ErrInvalidInput, countMCQ, countSAQ)
	}

	topic, err := s.topics.Topic(ctx, topicID)
	if err != nil {
		return Quiz{}, err
	}

	specs := s.generator.Generate(ctx, topic.Title, difficulty, countMCQ, countSAQ)

	quiz := Quiz{
		ID:         s.newID(),
		TopicID:    topic.ID,
		Difficulty: difficulty,
		CreatedAt:  s.now().UTC(),
	}
	questions := make([]Question, 0, len(specs))
	for i, spec := range specs {
		q := Question{
			ID:            s.newID(),
			QuizID:        quiz.ID,
			Position:      i + 1,
			Type:          QuestionType(spec.Type),
			Text:          spec.Question,
			Options:       spec.Options,
			CorrectAnswer: spec.Answer,
		}
		if err := q.Validate(); err != nil {
			return Quiz{}, fmt.Errorf("generated question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertQuiz(ctx, quiz); err != nil {
			return err
		}
		for _, q := range questions {
			if err := tx.InsertQuestion(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Quiz{}, fmt.Errorf("create quiz: %w", err)
	}

	quiz.Questions = questions
	slog.Info("quiz created",
		"quiz_id", quiz.ID,
		"topic_id", topic.ID,
		"difficulty", difficulty,
		"questions", len(questions),
	)
	s.logEvent(ctx, Event{
		QuizID: quiz.ID,
		Type:   EventQuizCreated,
		Data: map[string]any{
			"topic_id":   topic.ID,
			"difficulty": difficulty,
			"mcq":        countMCQ,
			"saq":        countSAQ,
		},
	})
	return quiz, nil
}

// ListQuizzes returns every quiz without its questions.
func (s *Service) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	return s.store.Quizzes(ctx)
}

// ListQuizzesByTopic returns the quizzes generated for a topic.
func (s *Service) ListQuizzesByTopic(ctx context.Context, topicID string) ([]Quiz, error) {
	return s.store.QuizzesByTopic(ctx, topicID)
}

// GetQuiz returns a quiz with its questions, answers included.
func (s *Service) GetQuiz(ctx context.Context, quizID string) (Quiz, error) {
	quiz, err := s.store.Quiz(ctx, quizID)
	if err != nil {
		return Quiz{}, err
	}
	quiz.Questions, err = s.store.Questions(ctx, quizID)
	if err != nil {
		return Quiz{}, err
	}
	return quiz, nil
}

// DeleteQuiz removes an unassigned quiz and everything it owns. It fails with
// ErrQuizAssigned while any assignment exists.
func (s *Service) DeleteQuiz(ctx context.Context, quizID string) error {
	var version int
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := guardDelete(ctx, tx, quizID); err != nil {
			return err
		}
		q, err := tx.Quiz(ctx, quizID)
		if err != nil {
			return err
		}
		version = q.QuestionsVersion
		return tx.DeleteQuiz(ctx, quizID)
	})
	if err != nil {
		return err
	}

	s.views.Invalidate(ctx, quizID, version)
	slog.Info("quiz deleted", "quiz_id", quizID)
	s.logEvent(ctx, Event{QuizID: quizID, Type: EventQuizDeleted})
	return nil
}

// logEvent records a lifecycle event. Failures are logged and dropped.
func (s *Service) logEvent(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if err := s.events.LogEvent(ctx, event); err != nil {
		slog.Warn("failed to log quiz event",
			"type", event.Type,
			"quiz_id", event.QuizID,
			"error", err,
		)
	}
}
