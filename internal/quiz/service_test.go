package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/quizgen"
)

// fixedGenerator returns the same questions for every request.
type fixedGenerator struct {
	specs []quizgen.QuestionSpec
}

func (g fixedGenerator) Generate(context.Context, string, string, int, int) []quizgen.QuestionSpec {
	return g.specs
}

type failingProvider struct{}

func (failingProvider) Generate(context.Context, quizgen.Request) ([]quizgen.RawQuestion, error) {
	return nil, errors.New("provider down")
}

type fixture struct {
	store  *quiz.MemoryStore
	svc    *quiz.Service
	events *quiz.MemoryEventLogger
}

func seedCatalog(t *testing.T, store *quiz.MemoryStore, students ...string) {
	t.Helper()
	ctx := t.Context()
	must(t, store.UpsertCourse(ctx, quiz.Course{ID: "c1", Name: "Science"}))
	must(t, store.UpsertSubject(ctx, quiz.Subject{ID: "sub1", CourseID: "c1", Name: "Biology"}))
	must(t, store.UpsertTopic(ctx, quiz.Topic{ID: "t1", SubjectID: "sub1", Title: "Photosynthesis"}))
	for _, id := range students {
		must(t, store.UpsertStudent(ctx, quiz.Student{ID: id, Name: "Student " + id, CourseID: "c1"}))
	}
}

func newFixture(t *testing.T, gen quiz.QuestionGenerator) fixture {
	t.Helper()
	store := quiz.NewMemoryStore()
	seedCatalog(t, store, "s1", "s2", "s3")

	if gen == nil {
		gen = quizgen.New(nil)
	}

	var n int
	var mu sync.Mutex
	events := quiz.NewMemoryEventLogger()
	svc, err := quiz.NewService(quiz.Config{
		Store:     store,
		Generator: gen,
		Events:    events,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			n++
			return time.Date(2025, 1, 1, 0, 0, n, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return fixture{store: store, svc: svc, events: events}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func twoMCQ() fixedGenerator {
	opts := []string{"w", "x", "y", "z"}
	return fixedGenerator{specs: []quizgen.QuestionSpec{
		{Type: quizgen.TypeMCQ, Question: "q1", Options: opts, Answer: "A"},
		{Type: quizgen.TypeMCQ, Question: "q2", Options: opts, Answer: "B"},
	}}
}

func TestNewService_RequiresDependencies(t *testing.T) {
	if _, err := quiz.NewService(quiz.Config{Generator: quizgen.New(nil)}); err == nil {
		t.Error("NewService without store should fail")
	}
	if _, err := quiz.NewService(quiz.Config{Store: quiz.NewMemoryStore()}); err == nil {
		t.Error("NewService without generator should fail")
	}
}

func TestCreateQuiz_QuestionCounts(t *testing.T) {
	tests := []struct {
		mcq, saq int
	}{
		{0, 0},
		{1, 0},
		{0, 2},
		{3, 2},
		{5, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_mcq_%d_saq", tt.mcq, tt.saq), func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := t.Context()

			created, err := f.svc.CreateQuiz(ctx, "t1", "Medium", tt.mcq, tt.saq)
			if err != nil {
				t.Fatalf("CreateQuiz() error = %v", err)
			}

			questions, err := f.svc.ListQuestions(ctx, created.ID)
			if err != nil {
				t.Fatalf("ListQuestions() error = %v", err)
			}
			if len(questions) != tt.mcq+tt.saq {
				t.Fatalf("got %d questions, want %d", len(questions), tt.mcq+tt.saq)
			}

			withAnswer := 0
			for i, q := range questions {
				if q.Position != i+1 {
					t.Errorf("question %d has position %d", i, q.Position)
				}
				switch q.CorrectAnswer {
				case "A", "B", "C", "D":
					withAnswer++
				case "":
				default:
					t.Errorf("question %d has answer %q", i, q.CorrectAnswer)
				}
			}
			if withAnswer != tt.mcq {
				t.Errorf("%d questions have an answer, want %d", withAnswer, tt.mcq)
			}
		})
	}
}

func TestCreateQuiz_ProviderFailureFallsBack(t *testing.T) {
	f := newFixture(t, quizgen.New(failingProvider{}))

	created, err := f.svc.CreateQuiz(t.Context(), "t1", "Medium", 3, 2)
	if err != nil {
		t.Fatalf("CreateQuiz() error = %v", err)
	}
	if len(created.Questions) != 5 {
		t.Fatalf("got %d questions, want 5", len(created.Questions))
	}
	if created.Questions[0].Text != "Sample question 1 about Photosynthesis (Medium level)" {
		t.Errorf("first question = %q", created.Questions[0].Text)
	}
}

func TestCreateQuiz_PreservesGeneratorOrder(t *testing.T) {
	gen := fixedGenerator{specs: []quizgen.QuestionSpec{
		{Type: quizgen.TypeSAQ, Question: "first"},
		{Type: quizgen.TypeMCQ, Question: "second", Options: []string{"a", "b", "c", "d"}, Answer: "C"},
		{Type: quizgen.TypeSAQ, Question: "third"},
	}}
	f := newFixture(t, gen)
	ctx := t.Context()

	created, err := f.svc.CreateQuiz(ctx, "t1", "Easy", 1, 2)
	if err != nil {
		t.Fatalf("CreateQuiz() error = %v", err)
	}
	got, err := f.svc.GetQuiz(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetQuiz() error = %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if got.Questions[i].Text != want {
			t.Errorf("question %d = %q, want %q", i, got.Questions[i].Text, want)
		}
	}
}

func TestCreateQuiz_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	if _, err := f.svc.CreateQuiz(ctx, "missing", "Easy", 1, 1); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("unknown topic: error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.CreateQuiz(ctx, "t1", "Easy", -1, 1); !errors.Is(err, quiz.ErrInvalidInput) {
		t.Errorf("negative count: error = %v, want ErrInvalidInput", err)
	}

	quizzes, err := f.svc.ListQuizzes(ctx)
	if err != nil {
		t.Fatalf("ListQuizzes() error = %v", err)
	}
	if len(quizzes) != 0 {
		t.Errorf("failed creates left %d quizzes behind", len(quizzes))
	}
}

func TestCreateQuiz_RejectsInvalidGeneratedQuestion(t *testing.T) {
	gen := fixedGenerator{specs: []quizgen.QuestionSpec{
		{Type: quizgen.TypeMCQ, Question: "ok", Options: []string{"a", "b", "c", "d"}, Answer: "A"},
		{Type: quizgen.TypeMCQ, Question: "bad", Options: []string{"a", "b"}, Answer: "A"},
	}}
	f := newFixture(t, gen)
	ctx := t.Context()

	if _, err := f.svc.CreateQuiz(ctx, "t1", "Easy", 2, 0); !errors.Is(err, quiz.ErrInvalidQuestion) {
		t.Fatalf("error = %v, want ErrInvalidQuestion", err)
	}
	quizzes, _ := f.svc.ListQuizzes(ctx)
	if len(quizzes) != 0 {
		t.Errorf("quiz persisted despite invalid question")
	}
}

func TestListQuizzesByTopic(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	must(t, f.store.UpsertTopic(ctx, quiz.Topic{ID: "t2", SubjectID: "sub1", Title: "Cells"}))

	a, _ := f.svc.CreateQuiz(ctx, "t1", "Easy", 1, 0)
	_, _ = f.svc.CreateQuiz(ctx, "t2", "Easy", 1, 0)
	c, _ := f.svc.CreateQuiz(ctx, "t1", "Hard", 1, 0)

	got, err := f.svc.ListQuizzesByTopic(ctx, "t1")
	if err != nil {
		t.Fatalf("ListQuizzesByTopic() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != c.ID {
		t.Errorf("ListQuizzesByTopic(t1) = %+v", got)
	}

	all, _ := f.svc.ListQuizzes(ctx)
	if len(all) != 3 {
		t.Errorf("ListQuizzes() returned %d quizzes, want 3", len(all))
	}

	none, err := f.svc.ListQuizzesByTopic(ctx, "nope")
	if err != nil || len(none) != 0 {
		t.Errorf("ListQuizzesByTopic(nope) = %v, %v", none, err)
	}
}

func TestGetQuiz_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.svc.GetQuiz(t.Context(), "missing"); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteQuiz_Unassigned(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	created, err := f.svc.CreateQuiz(ctx, "t1", "Easy", 2, 1)
	must(t, err)

	if err := f.svc.DeleteQuiz(ctx, created.ID); err != nil {
		t.Fatalf("DeleteQuiz() error = %v", err)
	}

	questions, err := f.svc.ListQuestions(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListQuestions() error = %v", err)
	}
	if len(questions) != 0 {
		t.Errorf("ListQuestions after delete = %d questions, want 0", len(questions))
	}
	if _, err := f.svc.GetQuiz(ctx, created.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("GetQuiz after delete: error = %v, want ErrNotFound", err)
	}
	if err := f.svc.DeleteQuiz(ctx, created.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("second DeleteQuiz: error = %v, want ErrNotFound", err)
	}
}

func TestDeleteQuiz_AssignedIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	created, err := f.svc.CreateQuiz(ctx, "t1", "Easy", 2, 1)
	must(t, err)
	_, err = f.svc.AssignToStudents(ctx, created.ID, []string{"s1"})
	must(t, err)

	if err := f.svc.DeleteQuiz(ctx, created.ID); !errors.Is(err, quiz.ErrQuizAssigned) {
		t.Fatalf("DeleteQuiz() error = %v, want ErrQuizAssigned", err)
	}

	if _, err := f.svc.GetQuiz(ctx, created.ID); err != nil {
		t.Errorf("quiz gone after rejected delete: %v", err)
	}
	questions, _ := f.svc.ListQuestions(ctx, created.ID)
	if len(questions) != 3 {
		t.Errorf("questions after rejected delete = %d, want 3", len(questions))
	}
	if _, err := f.store.Assignment(ctx, created.ID, "s1"); err != nil {
		t.Errorf("assignment gone after rejected delete: %v", err)
	}
	assigned, err := f.svc.HasAnyAssignment(ctx, created.ID)
	if err != nil || !assigned {
		t.Errorf("HasAnyAssignment() = %v, %v; want true", assigned, err)
	}
}

func TestEvents_Lifecycle(t *testing.T) {
	f := newFixture(t, twoMCQ())
	ctx := t.Context()

	created, err := f.svc.CreateQuiz(ctx, "t1", "Easy", 2, 0)
	must(t, err)
	_, err = f.svc.AssignToStudents(ctx, created.ID, []string{"s1"})
	must(t, err)
	_, err = f.svc.StartAssignedQuiz(ctx, "s1", created.ID)
	must(t, err)
	_, err = f.svc.SubmitAssignedQuiz(ctx, "s1", created.ID, nil)
	must(t, err)

	other, err := f.svc.CreateQuiz(ctx, "t1", "Easy", 2, 0)
	must(t, err)
	must(t, f.svc.DeleteQuiz(ctx, other.ID))

	want := []string{
		quiz.EventQuizCreated,
		quiz.EventQuizAssigned,
		quiz.EventQuizStarted,
		quiz.EventQuizSubmitted,
		quiz.EventQuizCreated,
		quiz.EventQuizDeleted,
	}
	got := f.events.Events()
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("event %d = %q, want %q", i, got[i].Type, w)
		}
	}
	if got[3].StudentID != "s1" || got[3].Data["score"] != 0 {
		t.Errorf("submitted event = %+v", got[3])
	}
}

type failingEvents struct{}

func (failingEvents) LogEvent(context.Context, quiz.Event) error { return errors.New("events down") }

func TestEvents_FailureDoesNotFailOperation(t *testing.T) {
	store := quiz.NewMemoryStore()
	seedCatalog(t, store, "s1")
	svc, err := quiz.NewService(quiz.Config{Store: store, Generator: quizgen.New(nil), Events: failingEvents{}})
	must(t, err)

	if _, err := svc.CreateQuiz(t.Context(), "t1", "Easy", 1, 0); err != nil {
		t.Errorf("CreateQuiz() error = %v, want event failure absorbed", err)
	}
}
