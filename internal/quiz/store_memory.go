package quiz

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store. Transactions are serialized by a write
// lock and applied copy-on-write: a failed transaction leaves no trace.
type MemoryStore struct {
	mu  sync.Mutex   // serializes transactions
	rmu sync.RWMutex // guards st
	st  *memState
}

type memState struct {
	courses  map[string]Course
	subjects map[string]Subject
	topics   map[string]Topic
	students map[string]Student

	quizzes     map[string]Quiz
	questions   map[string]Question
	assignments map[string]Assignment // keyed by assignmentKey
	attempts    map[string]Attempt

	studentOrder    []string
	quizOrder       []string
	assignmentOrder []string
	attemptOrder    []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{
		courses:     make(map[string]Course),
		subjects:    make(map[string]Subject),
		topics:      make(map[string]Topic),
		students:    make(map[string]Student),
		quizzes:     make(map[string]Quiz),
		questions:   make(map[string]Question),
		assignments: make(map[string]Assignment),
		attempts:    make(map[string]Attempt),
	}}
}

func assignmentKey(quizID, studentID string) string {
	return quizID + "\x00" + studentID
}

func (m *memState) clone() *memState {
	return &memState{
		courses:         maps.Clone(m.courses),
		subjects:        maps.Clone(m.subjects),
		topics:          maps.Clone(m.topics),
		students:        maps.Clone(m.students),
		quizzes:         maps.Clone(m.quizzes),
		questions:       maps.Clone(m.questions),
		assignments:     maps.Clone(m.assignments),
		attempts:        maps.Clone(m.attempts),
		studentOrder:    slices.Clone(m.studentOrder),
		quizOrder:       slices.Clone(m.quizOrder),
		assignmentOrder: slices.Clone(m.assignmentOrder),
		attemptOrder:    slices.Clone(m.attemptOrder),
	}
}

// snapshot returns the last committed state. Committed states are never
// mutated, so callers may read them without holding a lock.
func (s *MemoryStore) snapshot() *memState {
	s.rmu.RLock()
	defer s.rmu.RUnlock()
	return s.st
}

// InTx runs fn against a private copy of the state and publishes it if fn
// returns nil.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := s.snapshot().clone()
	if err := fn(&memTx{memState: next}); err != nil {
		return err
	}

	s.rmu.Lock()
	s.st = next
	s.rmu.Unlock()
	return nil
}

func (s *MemoryStore) Topic(ctx context.Context, id string) (Topic, error) {
	return s.snapshot().Topic(ctx, id)
}

func (s *MemoryStore) Student(ctx context.Context, id string) (Student, error) {
	return s.snapshot().Student(ctx, id)
}

func (s *MemoryStore) Students(ctx context.Context) ([]Student, error) {
	return s.snapshot().Students(ctx)
}

func (s *MemoryStore) Quiz(ctx context.Context, id string) (Quiz, error) {
	return s.snapshot().Quiz(ctx, id)
}

func (s *MemoryStore) Quizzes(ctx context.Context) ([]Quiz, error) {
	return s.snapshot().Quizzes(ctx)
}

func (s *MemoryStore) QuizzesByTopic(ctx context.Context, topicID string) ([]Quiz, error) {
	return s.snapshot().QuizzesByTopic(ctx, topicID)
}

func (s *MemoryStore) Question(ctx context.Context, id string) (Question, error) {
	return s.snapshot().Question(ctx, id)
}

func (s *MemoryStore) Questions(ctx context.Context, quizID string) ([]Question, error) {
	return s.snapshot().Questions(ctx, quizID)
}

func (s *MemoryStore) Assignment(ctx context.Context, quizID, studentID string) (Assignment, error) {
	return s.snapshot().Assignment(ctx, quizID, studentID)
}

func (s *MemoryStore) AssignmentsByStudent(ctx context.Context, studentID string) ([]Assignment, error) {
	return s.snapshot().AssignmentsByStudent(ctx, studentID)
}

func (s *MemoryStore) HasAssignments(ctx context.Context, quizID string) (bool, error) {
	return s.snapshot().HasAssignments(ctx, quizID)
}

func (s *MemoryStore) AttemptsByStudent(ctx context.Context, studentID string) ([]Attempt, error) {
	return s.snapshot().AttemptsByStudent(ctx, studentID)
}

func (s *MemoryStore) AttemptsByQuiz(ctx context.Context, quizID string) ([]Attempt, error) {
	return s.snapshot().AttemptsByQuiz(ctx, quizID)
}

// UpsertCourse implements CatalogWriter.
func (s *MemoryStore) UpsertCourse(ctx context.Context, c Course) error {
	return s.InTx(ctx, func(tx Tx) error {
		tx.(*memTx).courses[c.ID] = c
		return nil
	})
}

// UpsertSubject implements CatalogWriter.
func (s *MemoryStore) UpsertSubject(ctx context.Context, sub Subject) error {
	return s.InTx(ctx, func(tx Tx) error {
		m := tx.(*memTx)
		if _, ok := m.courses[sub.CourseID]; !ok {
			return fmt.Errorf("subject %s: course %s: %w", sub.ID, sub.CourseID, ErrNotFound)
		}
		m.subjects[sub.ID] = sub
		return nil
	})
}

// UpsertTopic implements CatalogWriter.
func (s *MemoryStore) UpsertTopic(ctx context.Context, t Topic) error {
	return s.InTx(ctx, func(tx Tx) error {
		m := tx.(*memTx)
		if _, ok := m.subjects[t.SubjectID]; !ok {
			return fmt.Errorf("topic %s: subject %s: %w", t.ID, t.SubjectID, ErrNotFound)
		}
		m.topics[t.ID] = t
		return nil
	})
}

// UpsertStudent implements CatalogWriter.
func (s *MemoryStore) UpsertStudent(ctx context.Context, st Student) error {
	return s.InTx(ctx, func(tx Tx) error {
		m := tx.(*memTx)
		if st.CourseID != "" {
			if _, ok := m.courses[st.CourseID]; !ok {
				return fmt.Errorf("student %s: course %s: %w", st.ID, st.CourseID, ErrNotFound)
			}
		}
		if _, exists := m.students[st.ID]; !exists {
			m.studentOrder = append(m.studentOrder, st.ID)
		}
		m.students[st.ID] = st
		return nil
	})
}

// Reads on a state. Shared by committed snapshots and open transactions.

func (m *memState) Topic(_ context.Context, id string) (Topic, error) {
	t, ok := m.topics[id]
	if !ok {
		return Topic{}, fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (m *memState) Student(_ context.Context, id string) (Student, error) {
	st, ok := m.students[id]
	if !ok {
		return Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	return st, nil
}

func (m *memState) Students(context.Context) ([]Student, error) {
	out := make([]Student, 0, len(m.studentOrder))
	for _, id := range m.studentOrder {
		out = append(out, m.students[id])
	}
	return out, nil
}

func (m *memState) Quiz(_ context.Context, id string) (Quiz, error) {
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *memState) Quizzes(context.Context) ([]Quiz, error) {
	out := make([]Quiz, 0, len(m.quizOrder))
	for _, id := range m.quizOrder {
		out = append(out, m.quizzes[id])
	}
	return out, nil
}

func (m *memState) QuizzesByTopic(_ context.Context, topicID string) ([]Quiz, error) {
	out := []Quiz{}
	for _, id := range m.quizOrder {
		if q := m.quizzes[id]; q.TopicID == topicID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memState) Question(_ context.Context, id string) (Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	q.Options = slices.Clone(q.Options)
	return q, nil
}

func (m *memState) Questions(_ context.Context, quizID string) ([]Question, error) {
	out := []Question{}
	for _, q := range m.questions {
		if q.QuizID == quizID {
			q.Options = slices.Clone(q.Options)
			out = append(out, q)
		}
	}
	slices.SortFunc(out, func(a, b Question) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *memState) Assignment(_ context.Context, quizID, studentID string) (Assignment, error) {
	a, ok := m.assignments[assignmentKey(quizID, studentID)]
	if !ok {
		return Assignment{}, fmt.Errorf("assignment %s/%s: %w", quizID, studentID, ErrNotFound)
	}
	return a, nil
}

func (m *memState) AssignmentsByStudent(_ context.Context, studentID string) ([]Assignment, error) {
	out := []Assignment{}
	for _, key := range m.assignmentOrder {
		if a := m.assignments[key]; a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memState) HasAssignments(_ context.Context, quizID string) (bool, error) {
	for _, a := range m.assignments {
		if a.QuizID == quizID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memState) AttemptsByStudent(_ context.Context, studentID string) ([]Attempt, error) {
	return m.attemptsWhere(func(a Attempt) bool { return a.StudentID == studentID }), nil
}

func (m *memState) AttemptsByQuiz(_ context.Context, quizID string) ([]Attempt, error) {
	return m.attemptsWhere(func(a Attempt) bool { return a.QuizID == quizID }), nil
}

func (m *memState) attemptsWhere(match func(Attempt) bool) []Attempt {
	out := []Attempt{}
	for _, id := range m.attemptOrder {
		if a := m.attempts[id]; match(a) {
			a.Answers = slices.Clone(a.Answers)
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b Attempt) int { return a.AttemptedAt.Compare(b.AttemptedAt) })
	return out
}

// memTx mutates a private state copy owned by one InTx call.
type memTx struct {
	*memState
}

func (m *memTx) LockQuiz(_ context.Context, id string, _ bool) error {
	// The store-wide write lock already serializes transactions.
	if _, ok := m.quizzes[id]; !ok {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return nil
}

func (m *memTx) InsertQuiz(_ context.Context, q Quiz) error {
	if _, ok := m.topics[q.TopicID]; !ok {
		return fmt.Errorf("quiz topic %s: %w", q.TopicID, ErrNotFound)
	}
	if _, exists := m.quizzes[q.ID]; exists {
		return fmt.Errorf("quiz %s already exists", q.ID)
	}
	q.Questions = nil
	m.quizzes[q.ID] = q
	m.quizOrder = append(m.quizOrder, q.ID)
	return nil
}

func (m *memTx) DeleteQuiz(_ context.Context, id string) error {
	if _, ok := m.quizzes[id]; !ok {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}

	// Answers go with their attempts; attempts, then assignments, questions, quiz.
	for attemptID, a := range m.attempts {
		if a.QuizID == id {
			delete(m.attempts, attemptID)
		}
	}
	m.attemptOrder = slices.DeleteFunc(m.attemptOrder, func(attemptID string) bool {
		_, ok := m.attempts[attemptID]
		return !ok
	})

	for key, a := range m.assignments {
		if a.QuizID == id {
			delete(m.assignments, key)
		}
	}
	m.assignmentOrder = slices.DeleteFunc(m.assignmentOrder, func(key string) bool {
		_, ok := m.assignments[key]
		return !ok
	})

	for qid, q := range m.questions {
		if q.QuizID == id {
			delete(m.questions, qid)
		}
	}

	delete(m.quizzes, id)
	m.quizOrder = slices.DeleteFunc(m.quizOrder, func(qid string) bool { return qid == id })
	return nil
}

func (m *memTx) BumpQuestionsVersion(_ context.Context, quizID string) (int, error) {
	q, ok := m.quizzes[quizID]
	if !ok {
		return 0, fmt.Errorf("quiz %s: %w", quizID, ErrNotFound)
	}
	q.QuestionsVersion++
	m.quizzes[quizID] = q
	return q.QuestionsVersion, nil
}

func (m *memTx) InsertQuestion(_ context.Context, q Question) error {
	if _, ok := m.quizzes[q.QuizID]; !ok {
		return fmt.Errorf("question quiz %s: %w", q.QuizID, ErrNotFound)
	}
	if _, exists := m.questions[q.ID]; exists {
		return fmt.Errorf("question %s already exists", q.ID)
	}
	q.Options = slices.Clone(q.Options)
	m.questions[q.ID] = q
	return nil
}

func (m *memTx) UpdateQuestion(_ context.Context, q Question) error {
	if _, ok := m.questions[q.ID]; !ok {
		return fmt.Errorf("question %s: %w", q.ID, ErrNotFound)
	}
	q.Options = slices.Clone(q.Options)
	m.questions[q.ID] = q
	return nil
}

func (m *memTx) DeleteQuestion(_ context.Context, id string) error {
	if _, ok := m.questions[id]; !ok {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	for attemptID, a := range m.attempts {
		if !slices.ContainsFunc(a.Answers, func(ans Answer) bool { return ans.QuestionID == id }) {
			continue
		}
		a.Answers = slices.DeleteFunc(slices.Clone(a.Answers), func(ans Answer) bool { return ans.QuestionID == id })
		m.attempts[attemptID] = a
	}
	delete(m.questions, id)
	return nil
}

func (m *memTx) InsertAssignment(_ context.Context, a Assignment) (bool, error) {
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return false, fmt.Errorf("assignment quiz %s: %w", a.QuizID, ErrNotFound)
	}
	if _, ok := m.students[a.StudentID]; !ok {
		return false, fmt.Errorf("assignment student %s: %w", a.StudentID, ErrNotFound)
	}
	key := assignmentKey(a.QuizID, a.StudentID)
	if _, exists := m.assignments[key]; exists {
		return false, nil
	}
	m.assignments[key] = a
	m.assignmentOrder = append(m.assignmentOrder, key)
	return true, nil
}

func (m *memTx) SetAssignmentStatus(_ context.Context, quizID, studentID string, status Status) (bool, error) {
	key := assignmentKey(quizID, studentID)
	a, ok := m.assignments[key]
	if !ok {
		return false, nil
	}
	a.Status = status
	m.assignments[key] = a
	return true, nil
}

func (m *memTx) InsertAttempt(_ context.Context, a Attempt) error {
	if _, ok := m.students[a.StudentID]; !ok {
		return fmt.Errorf("attempt student %s: %w", a.StudentID, ErrNotFound)
	}
	if _, exists := m.attempts[a.ID]; exists {
		return fmt.Errorf("attempt %s already exists", a.ID)
	}
	a.Answers = slices.Clone(a.Answers)
	m.attempts[a.ID] = a
	m.attemptOrder = append(m.attemptOrder, a.ID)
	return nil
}
