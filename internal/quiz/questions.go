package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/pai-quiz/internal/quizgen"
)

// ListQuestions returns the questions of a quiz in order. An unknown or
// deleted quiz yields an empty slice.
func (s *Service) ListQuestions(ctx context.Context, quizID string) ([]Question, error) {
	return s.store.Questions(ctx, quizID)
}

// CreateQuestion appends a question to a quiz.
func (s *Service) CreateQuestion(ctx context.Context, quizID string, in QuestionInput) (Question, error) {
	q := Question{
		ID:            s.newID(),
		QuizID:        quizID,
		Type:          in.Type,
		Text:          strings.TrimSpace(in.Text),
		Options:       in.Options,
		CorrectAnswer: in.CorrectAnswer,
	}
	if q.Type == "" {
		q.Type = QuestionMCQ
	}
	if q.Type == QuestionMCQ {
		q.CorrectAnswer = quizgen.NormalizeAnswer(q.CorrectAnswer)
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}

	var version int
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.LockQuiz(ctx, quizID, true); err != nil {
			return err
		}
		existing, err := tx.Questions(ctx, quizID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			q.Position = max(q.Position, e.Position)
		}
		q.Position++
		if err := tx.InsertQuestion(ctx, q); err != nil {
			return err
		}
		version, err = tx.BumpQuestionsVersion(ctx, quizID)
		return err
	})
	if err != nil {
		return Question{}, err
	}

	s.views.Invalidate(ctx, quizID, version-1)
	slog.Info("question created", "quiz_id", quizID, "question_id", q.ID)
	return q, nil
}

// UpdateQuestion replaces the text, options and answer of a question. The
// question type cannot change.
func (s *Service) UpdateQuestion(ctx context.Context, quizID, questionID string, in QuestionInput) (Question, error) {
	var (
		updated Question
		version int
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		q, err := ownedQuestion(ctx, tx, quizID, questionID)
		if err != nil {
			return err
		}
		if in.Type != "" && in.Type != q.Type {
			return fmt.Errorf("%w: question type cannot change from %s to %s", ErrInvalidQuestion, q.Type, in.Type)
		}
		q.Text = strings.TrimSpace(in.Text)
		q.Options = in.Options
		q.CorrectAnswer = in.CorrectAnswer
		if q.Type == QuestionMCQ {
			q.CorrectAnswer = quizgen.NormalizeAnswer(q.CorrectAnswer)
		}
		if err := q.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateQuestion(ctx, q); err != nil {
			return err
		}
		updated = q
		version, err = tx.BumpQuestionsVersion(ctx, quizID)
		return err
	})
	if err != nil {
		return Question{}, err
	}

	s.views.Invalidate(ctx, quizID, version-1)
	slog.Info("question updated", "quiz_id", quizID, "question_id", questionID)
	return updated, nil
}

// DeleteQuestion removes a question and the answers given to it.
func (s *Service) DeleteQuestion(ctx context.Context, quizID, questionID string) error {
	var version int
	err := s.store.InTx(ctx, func(tx Tx) error {
		if _, err := ownedQuestion(ctx, tx, quizID, questionID); err != nil {
			return err
		}
		if err := tx.DeleteQuestion(ctx, questionID); err != nil {
			return err
		}
		var err error
		version, err = tx.BumpQuestionsVersion(ctx, quizID)
		return err
	})
	if err != nil {
		return err
	}

	s.views.Invalidate(ctx, quizID, version-1)
	slog.Info("question deleted", "quiz_id", quizID, "question_id", questionID)
	return nil
}

// ownedQuestion locks the quiz exclusively and resolves a question that must
// belong to it.
func ownedQuestion(ctx context.Context, tx Tx, quizID, questionID string) (Question, error) {
	if err := tx.LockQuiz(ctx, quizID, true); err != nil {
		return Question{}, err
	}
	q, err := tx.Question(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	if q.QuizID != quizID {
		return Question{}, fmt.Errorf("question %s in quiz %s: %w", questionID, quizID, ErrNotFound)
	}
	return q, nil
}
