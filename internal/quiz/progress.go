package quiz

import "context"

// ListAttemptsForStudent returns the student's attempts, oldest first.
func (s *Service) ListAttemptsForStudent(ctx context.Context, studentID string) ([]Attempt, error) {
	if _, err := s.students.Student(ctx, studentID); err != nil {
		return nil, err
	}
	return s.store.AttemptsByStudent(ctx, studentID)
}

// ListAttemptsForQuiz returns every attempt at a quiz, oldest first.
func (s *Service) ListAttemptsForQuiz(ctx context.Context, quizID string) ([]Attempt, error) {
	if _, err := s.store.Quiz(ctx, quizID); err != nil {
		return nil, err
	}
	return s.store.AttemptsByQuiz(ctx, quizID)
}

// StudentProgress summarizes a student's attempts: count, mean per-attempt
// accuracy and best raw score.
func (s *Service) StudentProgress(ctx context.Context, studentID string) (Progress, error) {
	attempts, err := s.ListAttemptsForStudent(ctx, studentID)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{
		StudentID:     studentID,
		TotalAttempts: len(attempts),
		Attempts:      attempts,
	}
	if len(attempts) == 0 {
		return p, nil
	}

	sum := 0
	for _, a := range attempts {
		sum += a.Accuracy()
		p.HighestScore = max(p.HighestScore, a.Score)
	}
	p.Accuracy = sum / len(attempts)
	return p, nil
}
