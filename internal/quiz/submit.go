package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// StartAssignedQuiz moves the student's assignment to IN_PROGRESS and returns
// the quiz without its answer key.
func (s *Service) StartAssignedQuiz(ctx context.Context, studentID, quizID string) (QuizView, error) {
	var view QuizView
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := transitionToInProgress(ctx, tx, studentID, quizID); err != nil {
			return err
		}
		var err error
		view, err = s.studentView(ctx, tx, quizID)
		return err
	})
	if err != nil {
		return QuizView{}, err
	}

	s.logEvent(ctx, Event{QuizID: quizID, StudentID: studentID, Type: EventQuizStarted})
	return view, nil
}

// studentView builds the answer-free projection, preferring the view cache.
// The shared quiz lock keeps the questions and their version consistent
// until the transaction ends.
func (s *Service) studentView(ctx context.Context, tx Tx, quizID string) (QuizView, error) {
	if err := tx.LockQuiz(ctx, quizID, false); err != nil {
		return QuizView{}, err
	}
	meta, err := tx.Quiz(ctx, quizID)
	if err != nil {
		return QuizView{}, err
	}
	if view, ok := s.views.Get(ctx, quizID, meta.QuestionsVersion); ok {
		return view, nil
	}

	questions, err := tx.Questions(ctx, quizID)
	if err != nil {
		return QuizView{}, err
	}
	view := QuizView{
		QuizID:    quizID,
		Version:   meta.QuestionsVersion,
		Questions: make([]StudentQuestion, len(questions)),
	}
	for i, q := range questions {
		view.Questions[i] = StudentQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Text:    q.Text,
			Options: q.Options,
		}
	}

	s.views.Put(ctx, view)
	return view, nil
}

// SubmitAssignedQuiz scores the answers (question id -> selected option)
// against the stored answer key, records an Attempt and moves the assignment
// to SUBMITTED. Matching is exact; short-answer questions never score.
func (s *Service) SubmitAssignedQuiz(ctx context.Context, studentID, quizID string, answers map[string]string) (Result, error) {
	if _, err := s.store.Assignment(ctx, quizID, studentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{}, fmt.Errorf("student %s, quiz %s: %w", studentID, quizID, ErrNotAssigned)
		}
		return Result{}, err
	}
	if _, err := s.students.Student(ctx, studentID); err != nil {
		return Result{}, err
	}

	var result Result
	err := s.store.InTx(ctx, func(tx Tx) error {
		// Held shared so no question can be deleted between scoring and
		// inserting the answers that reference it.
		if err := tx.LockQuiz(ctx, quizID, false); err != nil {
			return err
		}
		questions, err := tx.Questions(ctx, quizID)
		if err != nil {
			return err
		}

		attempt := Attempt{
			ID:             s.newID(),
			StudentID:      studentID,
			QuizID:         quizID,
			TotalQuestions: len(questions),
			FullyAssessed:  true,
			AttemptedAt:    s.now().UTC(),
		}
		for _, q := range questions {
			if q.Type == QuestionSAQ {
				attempt.FullyAssessed = false
			}
			selected, answered := answers[q.ID]
			if !answered {
				continue
			}
			if q.CorrectAnswer != "" && selected == q.CorrectAnswer {
				attempt.Score++
			}
			attempt.Answers = append(attempt.Answers, Answer{
				ID:             s.newID(),
				AttemptID:      attempt.ID,
				QuestionID:     q.ID,
				SelectedOption: selected,
			})
		}

		if err := tx.InsertAttempt(ctx, attempt); err != nil {
			return err
		}

		if err := transitionToSubmitted(ctx, tx, studentID, quizID); err != nil {
			if !errors.Is(err, ErrNotAssigned) {
				return err
			}
			slog.Warn("assignment vanished before submission was recorded",
				"student_id", studentID,
				"quiz_id", quizID,
				"attempt_id", attempt.ID,
			)
		}

		result = Result{
			Score:          attempt.Score,
			TotalQuestions: attempt.TotalQuestions,
			Accuracy:       attempt.Accuracy(),
			AttemptID:      attempt.ID,
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("submit quiz: %w", err)
	}

	slog.Info("quiz submitted",
		"student_id", studentID,
		"quiz_id", quizID,
		"score", result.Score,
		"total", result.TotalQuestions,
	)
	s.logEvent(ctx, Event{
		QuizID:    quizID,
		StudentID: studentID,
		Type:      EventQuizSubmitted,
		Data: map[string]any{
			"attempt_id": result.AttemptID,
			"score":      result.Score,
			"total":      result.TotalQuestions,
			"accuracy":   result.Accuracy,
		},
	})
	return result, nil
}
