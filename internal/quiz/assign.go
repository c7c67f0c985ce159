package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// AssignToStudents assigns the quiz to each student that does not already
// have it and returns how many assignments were created. It fails without
// assigning anyone if the quiz or any student does not exist.
func (s *Service) AssignToStudents(ctx context.Context, quizID string, studentIDs []string) (int, error) {
	ids := make([]string, 0, len(studentIDs))
	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if id == "" {
			return 0, fmt.Errorf("%w: empty student id", ErrInvalidInput)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		if _, err := s.students.Student(ctx, id); err != nil {
			return 0, err
		}
	}

	created := 0
	var newIDs []string
	err := s.store.InTx(ctx, func(tx Tx) error {
		created, newIDs = 0, nil
		if err := tx.LockQuiz(ctx, quizID, false); err != nil {
			return err
		}
		now := s.now().UTC()
		for _, studentID := range ids {
			ok, err := tx.InsertAssignment(ctx, Assignment{
				ID:         s.newID(),
				QuizID:     quizID,
				StudentID:  studentID,
				Status:     StatusAssigned,
				AssignedAt: now,
			})
			if err != nil {
				return err
			}
			if ok {
				created++
				newIDs = append(newIDs, studentID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("quiz assigned",
		"quiz_id", quizID,
		"requested", len(ids),
		"created", created,
	)
	if created > 0 {
		s.logEvent(ctx, Event{
			QuizID: quizID,
			Type:   EventQuizAssigned,
			Data:   map[string]any{"student_ids": newIDs},
		})
	}
	return created, nil
}

// AssignToAllStudents assigns the quiz to every known student.
func (s *Service) AssignToAllStudents(ctx context.Context, quizID string) (int, error) {
	students, err := s.students.Students(ctx)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	return s.AssignToStudents(ctx, quizID, ids)
}

// ListAssignmentsForStudent returns the student's assignments with their status.
func (s *Service) ListAssignmentsForStudent(ctx context.Context, studentID string) ([]Assignment, error) {
	if _, err := s.students.Student(ctx, studentID); err != nil {
		return nil, err
	}
	return s.store.AssignmentsByStudent(ctx, studentID)
}

// transition advances an assignment to target. Status never moves backwards;
// a transition to the current or an earlier state is a no-op.
func transition(ctx context.Context, tx Tx, studentID, quizID string, target Status) error {
	a, err := tx.Assignment(ctx, quizID, studentID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("student %s, quiz %s: %w", studentID, quizID, ErrNotAssigned)
	}
	if err != nil {
		return err
	}
	if a.Status.rank() >= target.rank() {
		return nil
	}
	if _, err := tx.SetAssignmentStatus(ctx, quizID, studentID, target); err != nil {
		return err
	}
	return nil
}

func transitionToInProgress(ctx context.Context, tx Tx, studentID, quizID string) error {
	return transition(ctx, tx, studentID, quizID, StatusInProgress)
}

func transitionToSubmitted(ctx context.Context, tx Tx, studentID, quizID string) error {
	return transition(ctx, tx, studentID, quizID, StatusSubmitted)
}
