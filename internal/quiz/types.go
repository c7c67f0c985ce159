package quiz

import (
	"fmt"
	"strings"
	"time"
)

// QuestionType distinguishes multiple-choice from short-answer questions.
type QuestionType string

const (
	QuestionMCQ QuestionType = "MCQ"
	QuestionSAQ QuestionType = "SAQ"
)

// Status is the lifecycle state of an Assignment.
type Status string

const (
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
)

// rank orders statuses so transitions can only move forward.
func (s Status) rank() int {
	switch s {
	case StatusAssigned:
		return 1
	case StatusInProgress:
		return 2
	case StatusSubmitted:
		return 3
	}
	return 0
}

// Course is referenced by students and, optionally, assignments.
type Course struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject groups topics within a course.
type Subject struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Name     string `json:"name"`
}

// Topic is the unit a quiz is generated for.
type Topic struct {
	ID           string `json:"id"`
	SubjectID    string `json:"subjectId"`
	Title        string `json:"title"`
	VideoURL     string `json:"videoUrl,omitempty"`
	PDFURL       string `json:"pdfUrl,omitempty"`
	ExternalLink string `json:"externalLink,omitempty"`
}

// Student can be assigned quizzes and submit attempts.
type Student struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	CourseID string `json:"courseId,omitempty"`
}

// Quiz is a generated question set for one topic at one difficulty.
// QuestionsVersion increases with every question create, update or delete.
type Quiz struct {
	ID               string     `json:"id"`
	TopicID          string     `json:"topicId"`
	Difficulty       string     `json:"difficulty"`
	CreatedAt        time.Time  `json:"createdAt"`
	QuestionsVersion int        `json:"questionsVersion"`
	Questions        []Question `json:"questions,omitempty"`
}

// Question belongs to exactly one quiz. Options and CorrectAnswer are set
// for multiple-choice questions only.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quizId"`
	Position      int          `json:"position"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// Validate checks the type invariant: an MCQ has four non-empty options and
// an answer letter A-D; an SAQ has neither options nor an answer.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question text is empty", ErrInvalidQuestion)
	}
	switch q.Type {
	case QuestionMCQ:
		if len(q.Options) != 4 {
			return fmt.Errorf("%w: multiple-choice question needs 4 options, got %d", ErrInvalidQuestion, len(q.Options))
		}
		for i, o := range q.Options {
			if strings.TrimSpace(o) == "" {
				return fmt.Errorf("%w: option %c is empty", ErrInvalidQuestion, 'A'+i)
			}
		}
		switch q.CorrectAnswer {
		case "A", "B", "C", "D":
		default:
			return fmt.Errorf("%w: correct answer %q is not one of A, B, C, D", ErrInvalidQuestion, q.CorrectAnswer)
		}
	case QuestionSAQ:
		if len(q.Options) != 0 || q.CorrectAnswer != "" {
			return fmt.Errorf("%w: short-answer question cannot have options or a correct answer", ErrInvalidQuestion)
		}
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, q.Type)
	}
	return nil
}

// QuestionInput carries the editable fields of a question.
type QuestionInput struct {
	Type          QuestionType `json:"type"`
	Text          string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// Assignment binds a student to a quiz. (QuizID, StudentID) is unique.
type Assignment struct {
	ID         string    `json:"id"`
	QuizID     string    `json:"quizId"`
	StudentID  string    `json:"studentId"`
	CourseID   string    `json:"courseId,omitempty"`
	Status     Status    `json:"status"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Attempt records one scored submission.
type Attempt struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"studentId"`
	QuizID         string    `json:"quizId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	FullyAssessed  bool      `json:"fullyAssessed"`
	ManualScore    int       `json:"manualScore"`
	AttemptedAt    time.Time `json:"attemptedAt"`
	Answers        []Answer  `json:"answers,omitempty"`
}

// Accuracy is the integer percentage of questions answered correctly.
func (a Attempt) Accuracy() int {
	return accuracy(a.Score, a.TotalQuestions)
}

// Answer is the option a student selected for one question.
type Answer struct {
	ID             string `json:"id"`
	AttemptID      string `json:"attemptId"`
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
}

// QuizView is what a student sees when starting a quiz. Version is the
// QuestionsVersion of the quiz the view was built from.
type QuizView struct {
	QuizID    string            `json:"quizId"`
	Version   int               `json:"version"`
	Questions []StudentQuestion `json:"questions"`
}

// StudentQuestion is the answer-free projection of a Question.
type StudentQuestion struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Text    string       `json:"question"`
	Options []string     `json:"options,omitempty"`
}

// Result is returned from a submission.
type Result struct {
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	Accuracy       int    `json:"accuracy"`
	AttemptID      string `json:"attemptId"`
}

// Progress summarizes a student's attempts.
type Progress struct {
	StudentID     string    `json:"studentId"`
	TotalAttempts int       `json:"totalAttempts"`
	Accuracy      int       `json:"accuracy"`
	HighestScore  int       `json:"highestScore"`
	Attempts      []Attempt `json:"attempts"`
}

func accuracy(score, total int) int {
	if total == 0 {
		return 0
	}
	return score * 100 / total
}
