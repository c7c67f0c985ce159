package quiz

import (
	"context"
	"fmt"
)

// guardDelete runs inside the delete transaction. It locks the quiz row so
// no assignment can be created until the transaction ends, then refuses the
// delete if one already exists.
func guardDelete(ctx context.Context, tx Tx, quizID string) error {
	if err := tx.LockQuiz(ctx, quizID, true); err != nil {
		return err
	}
	assigned, err := tx.HasAssignments(ctx, quizID)
	if err != nil {
		return err
	}
	if assigned {
		return fmt.Errorf("quiz %s: %w", quizID, ErrQuizAssigned)
	}
	return nil
}

// HasAnyAssignment reports whether any student is assigned the quiz.
func (s *Service) HasAnyAssignment(ctx context.Context, quizID string) (bool, error) {
	return s.store.HasAssignments(ctx, quizID)
}
