package quiz

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Results"

var resultsHeader = []any{
	"Attempt ID", "Student ID", "Score", "Total Questions", "Accuracy (%)", "Fully Assessed", "Attempted At",
}

// ExportQuizResults writes an xlsx workbook with one row per attempt at the quiz.
func (s *Service) ExportQuizResults(ctx context.Context, quizID string, w io.Writer) error {
	attempts, err := s.ListAttemptsForQuiz(ctx, quizID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, a := range attempts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			a.ID,
			a.StudentID,
			a.Score,
			a.TotalQuestions,
			a.Accuracy(),
			a.FullyAssessed,
			a.AttemptedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("write attempt %s: %w", a.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
