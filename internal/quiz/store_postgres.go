package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	dbTimeout = 5 * time.Second
	txTimeout = 15 * time.Second
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL-backed Store. The schema lives in the
// database package.
type PostgresStore struct {
	pgReader
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed quiz store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pgReader: pgReader{q: pool, timeout: dbTimeout}, pool: pool}, nil
}

// InTx runs fn inside a database transaction, committing when fn returns nil.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{pgReader: pgReader{q: tx}, tx: tx})
	})
}

// UpsertCourse implements CatalogWriter.
func (s *PostgresStore) UpsertCourse(ctx context.Context, c Course) error {
	return s.exec(ctx, "upsert course",
		`INSERT INTO courses (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		c.ID, c.Name,
	)
}

// UpsertSubject implements CatalogWriter.
func (s *PostgresStore) UpsertSubject(ctx context.Context, sub Subject) error {
	return s.exec(ctx, "upsert subject",
		`INSERT INTO subjects (id, course_id, name) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET course_id = EXCLUDED.course_id, name = EXCLUDED.name`,
		sub.ID, sub.CourseID, sub.Name,
	)
}

// UpsertTopic implements CatalogWriter.
func (s *PostgresStore) UpsertTopic(ctx context.Context, t Topic) error {
	return s.exec(ctx, "upsert topic",
		`INSERT INTO topics (id, subject_id, title, video_url, pdf_url, external_link)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   subject_id = EXCLUDED.subject_id,
		   title = EXCLUDED.title,
		   video_url = EXCLUDED.video_url,
		   pdf_url = EXCLUDED.pdf_url,
		   external_link = EXCLUDED.external_link`,
		t.ID, t.SubjectID, t.Title,
		nullIfEmpty(t.VideoURL), nullIfEmpty(t.PDFURL), nullIfEmpty(t.ExternalLink),
	)
}

// UpsertStudent implements CatalogWriter.
func (s *PostgresStore) UpsertStudent(ctx context.Context, st Student) error {
	return s.exec(ctx, "upsert student",
		`INSERT INTO students (id, name, email, course_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   course_id = EXCLUDED.course_id`,
		st.ID, st.Name, nullIfEmpty(st.Email), nullIfEmpty(st.CourseID),
	)
}

func (s *PostgresStore) exec(ctx context.Context, op, sql string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// pgReader implements Reader over a pool or an open transaction.
type pgReader struct {
	q       querier
	timeout time.Duration // zero inside a transaction, which carries its own deadline
}

func (r pgReader) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r pgReader) Topic(ctx context.Context, id string) (Topic, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var t Topic
	var video, pdf, link *string
	err := r.q.QueryRow(ctx,
		`SELECT id, subject_id, title, video_url, pdf_url, external_link
		 FROM topics WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.SubjectID, &t.Title, &video, &pdf, &link)
	if err != nil {
		return Topic{}, notFound(err, "topic", id)
	}
	t.VideoURL = deref(video)
	t.PDFURL = deref(pdf)
	t.ExternalLink = deref(link)
	return t, nil
}

const studentColumns = `id, name, email, course_id`

func scanStudent(row pgx.Row) (Student, error) {
	var st Student
	var email, course *string
	if err := row.Scan(&st.ID, &st.Name, &email, &course); err != nil {
		return Student{}, err
	}
	st.Email = deref(email)
	st.CourseID = deref(course)
	return st, nil
}

func (r pgReader) Student(ctx context.Context, id string) (Student, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	st, err := scanStudent(r.q.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		return Student{}, notFound(err, "student", id)
	}
	return st, nil
}

func (r pgReader) Students(ctx context.Context) ([]Student, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	return collect(rows, "student", scanStudent)
}

const quizColumns = `id, topic_id, difficulty, created_at, questions_version`

func scanQuiz(row pgx.Row) (Quiz, error) {
	var q Quiz
	err := row.Scan(&q.ID, &q.TopicID, &q.Difficulty, &q.CreatedAt, &q.QuestionsVersion)
	return q, err
}

func (r pgReader) Quiz(ctx context.Context, id string) (Quiz, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	q, err := scanQuiz(r.q.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
	if err != nil {
		return Quiz{}, notFound(err, "quiz", id)
	}
	return q, nil
}

func (r pgReader) Quizzes(ctx context.Context) ([]Quiz, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	return collect(rows, "quiz", scanQuiz)
}

func (r pgReader) QuizzesByTopic(ctx context.Context, topicID string) ([]Quiz, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx,
		`SELECT `+quizColumns+` FROM quizzes WHERE topic_id = $1 ORDER BY created_at, id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("query quizzes by topic: %w", err)
	}
	return collect(rows, "quiz", scanQuiz)
}

const questionColumns = `id, quiz_id, position, type, question, option_a, option_b, option_c, option_d, correct_answer`

func scanQuestion(row pgx.Row) (Question, error) {
	var q Question
	var typ string
	var a, b, c, d, answer *string
	if err := row.Scan(&q.ID, &q.QuizID, &q.Position, &typ, &q.Text, &a, &b, &c, &d, &answer); err != nil {
		return Question{}, err
	}
	q.Type = QuestionType(typ)
	if a != nil || b != nil || c != nil || d != nil {
		q.Options = []string{deref(a), deref(b), deref(c), deref(d)}
	}
	q.CorrectAnswer = deref(answer)
	return q, nil
}

func (r pgReader) Question(ctx context.Context, id string) (Question, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	q, err := scanQuestion(r.q.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM quiz_questions WHERE id = $1`, id))
	if err != nil {
		return Question{}, notFound(err, "question", id)
	}
	return q, nil
}

func (r pgReader) Questions(ctx context.Context, quizID string) ([]Question, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx,
		`SELECT `+questionColumns+` FROM quiz_questions WHERE quiz_id = $1 ORDER BY position, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	return collect(rows, "question", scanQuestion)
}

const assignmentColumns = `id, quiz_id, student_id, course_id, status, assigned_at`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	var course *string
	var status string
	if err := row.Scan(&a.ID, &a.QuizID, &a.StudentID, &course, &status, &a.AssignedAt); err != nil {
		return Assignment{}, err
	}
	a.CourseID = deref(course)
	a.Status = Status(status)
	return a, nil
}

func (r pgReader) Assignment(ctx context.Context, quizID, studentID string) (Assignment, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	a, err := scanAssignment(r.q.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM quiz_assignments WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID))
	if err != nil {
		return Assignment{}, notFound(err, "assignment", quizID+"/"+studentID)
	}
	return a, nil
}

func (r pgReader) AssignmentsByStudent(ctx context.Context, studentID string) ([]Assignment, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx,
		`SELECT `+assignmentColumns+` FROM quiz_assignments WHERE student_id = $1 ORDER BY assigned_at, id`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	return collect(rows, "assignment", scanAssignment)
}

func (r pgReader) HasAssignments(ctx context.Context, quizID string) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var exists bool
	if err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_assignments WHERE quiz_id = $1)`, quizID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check assignments: %w", err)
	}
	return exists, nil
}

const attemptColumns = `id, student_id, quiz_id, score, total_questions, fully_assessed, manual_score, attempted_at`

func scanAttempt(row pgx.Row) (Attempt, error) {
	var a Attempt
	err := row.Scan(&a.ID, &a.StudentID, &a.QuizID, &a.Score, &a.TotalQuestions,
		&a.FullyAssessed, &a.ManualScore, &a.AttemptedAt)
	return a, err
}

func (r pgReader) AttemptsByStudent(ctx context.Context, studentID string) ([]Attempt, error) {
	return r.attempts(ctx, "student_id", studentID)
}

func (r pgReader) AttemptsByQuiz(ctx context.Context, quizID string) ([]Attempt, error) {
	return r.attempts(ctx, "quiz_id", quizID)
}

// attempts loads attempts filtered on column, then their answers.
func (r pgReader) attempts(ctx context.Context, column, value string) ([]Attempt, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE `+column+` = $1 ORDER BY attempted_at, id`,
		value)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	attempts, err := collect(rows, "attempt", scanAttempt)
	if err != nil || len(attempts) == 0 {
		return attempts, err
	}

	index := make(map[string]int, len(attempts))
	ids := make([]string, len(attempts))
	for i, a := range attempts {
		index[a.ID] = i
		ids[i] = a.ID
	}

	rows, err = r.q.Query(ctx,
		`SELECT id, attempt_id, question_id, selected_option
		 FROM quiz_answers WHERE attempt_id = ANY($1)
		 ORDER BY attempt_id, position`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	answers, err := collect(rows, "answer", func(row pgx.Row) (Answer, error) {
		var ans Answer
		err := row.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.SelectedOption)
		return ans, err
	})
	if err != nil {
		return nil, err
	}
	for _, ans := range answers {
		i := index[ans.AttemptID]
		attempts[i].Answers = append(attempts[i].Answers, ans)
	}
	return attempts, nil
}

// pgTx implements Tx on an open pgx transaction.
type pgTx struct {
	pgReader
	tx pgx.Tx
}

func (t *pgTx) LockQuiz(ctx context.Context, id string, exclusive bool) error {
	mode := "FOR SHARE"
	if exclusive {
		mode = "FOR UPDATE"
	}
	var got string
	if err := t.tx.QueryRow(ctx, `SELECT id FROM quizzes WHERE id = $1 `+mode, id).Scan(&got); err != nil {
		return notFound(err, "quiz", id)
	}
	return nil
}

func (t *pgTx) InsertQuiz(ctx context.Context, q Quiz) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO quizzes (id, topic_id, difficulty, created_at) VALUES ($1, $2, $3, $4)`,
		q.ID, q.TopicID, q.Difficulty, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteQuiz(ctx context.Context, id string) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"answers", `DELETE FROM quiz_answers
			WHERE attempt_id IN (SELECT id FROM quiz_attempts WHERE quiz_id = $1)
			   OR question_id IN (SELECT id FROM quiz_questions WHERE quiz_id = $1)`},
		{"attempts", `DELETE FROM quiz_attempts WHERE quiz_id = $1`},
		{"assignments", `DELETE FROM quiz_assignments WHERE quiz_id = $1`},
		{"questions", `DELETE FROM quiz_questions WHERE quiz_id = $1`},
	}
	for _, step := range steps {
		if _, err := t.tx.Exec(ctx, step.sql, id); err != nil {
			return fmt.Errorf("delete quiz %s: %w", step.name, err)
		}
	}

	cmd, err := t.tx.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) BumpQuestionsVersion(ctx context.Context, quizID string) (int, error) {
	var version int
	err := t.tx.QueryRow(ctx,
		`UPDATE quizzes SET questions_version = questions_version + 1 WHERE id = $1 RETURNING questions_version`,
		quizID,
	).Scan(&version)
	if err != nil {
		return 0, notFound(err, "quiz", quizID)
	}
	return version, nil
}

// questionArgs flattens options into the four option columns.
func questionArgs(q Question) []any {
	opts := make([]any, 4)
	for i := range opts {
		if i < len(q.Options) {
			opts[i] = q.Options[i]
		}
	}
	return []any{
		q.ID, q.QuizID, q.Position, string(q.Type), q.Text,
		opts[0], opts[1], opts[2], opts[3],
		nullIfEmpty(q.CorrectAnswer),
	}
}

func (t *pgTx) InsertQuestion(ctx context.Context, q Question) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO quiz_questions (`+questionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		questionArgs(q)...,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateQuestion(ctx context.Context, q Question) error {
	cmd, err := t.tx.Exec(ctx,
		`UPDATE quiz_questions SET
		   quiz_id = $2, position = $3, type = $4, question = $5,
		   option_a = $6, option_b = $7, option_c = $8, option_d = $9,
		   correct_answer = $10
		 WHERE id = $1`,
		questionArgs(q)...,
	)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", q.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteQuestion(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM quiz_answers WHERE question_id = $1`, id); err != nil {
		return fmt.Errorf("delete question answers: %w", err)
	}
	cmd, err := t.tx.Exec(ctx, `DELETE FROM quiz_questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertAssignment(ctx context.Context, a Assignment) (bool, error) {
	cmd, err := t.tx.Exec(ctx,
		`INSERT INTO quiz_assignments (id, quiz_id, student_id, course_id, status, assigned_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (quiz_id, student_id) DO NOTHING`,
		a.ID, a.QuizID, a.StudentID, nullIfEmpty(a.CourseID), string(a.Status), a.AssignedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert assignment: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (t *pgTx) SetAssignmentStatus(ctx context.Context, quizID, studentID string, status Status) (bool, error) {
	cmd, err := t.tx.Exec(ctx,
		`UPDATE quiz_assignments SET status = $3 WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("update assignment status: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (t *pgTx) InsertAttempt(ctx context.Context, a Attempt) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO quiz_attempts (`+attemptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.StudentID, a.QuizID, a.Score, a.TotalQuestions, a.FullyAssessed, a.ManualScore, a.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	if len(a.Answers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, ans := range a.Answers {
		batch.Queue(
			`INSERT INTO quiz_answers (id, attempt_id, question_id, position, selected_option)
			 VALUES ($1, $2, $3, $4, $5)`,
			ans.ID, a.ID, ans.QuestionID, i+1, ans.SelectedOption,
		)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert answers: %w", err)
	}
	return nil
}

func collect[T any](rows pgx.Rows, what string, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return out, nil
}

// notFound maps pgx.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
