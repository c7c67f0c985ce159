package database

import (
	"context"
	"fmt"
)

// Migrate applies the idempotent schema for the catalog and quiz tables.
// Child tables reference quizzes without ON DELETE CASCADE: quiz deletion is
// an explicit, ordered routine in the quiz store.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS courses (
  id          TEXT PRIMARY KEY,
  name        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subjects (
  id          TEXT PRIMARY KEY,
  course_id   TEXT NOT NULL REFERENCES courses(id),
  name        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
  id            TEXT PRIMARY KEY,
  subject_id    TEXT NOT NULL REFERENCES subjects(id),
  title         TEXT NOT NULL,
  video_url     TEXT,
  pdf_url       TEXT,
  external_link TEXT
);

CREATE TABLE IF NOT EXISTS students (
  id          TEXT PRIMARY KEY,
  name        TEXT NOT NULL,
  email       TEXT,
  course_id   TEXT REFERENCES courses(id)
);

CREATE TABLE IF NOT EXISTS quizzes (
  id          TEXT PRIMARY KEY,
  topic_id    TEXT NOT NULL REFERENCES topics(id),
  difficulty  TEXT NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  questions_version INTEGER NOT NULL DEFAULT 0
);
ALTER TABLE quizzes ADD COLUMN IF NOT EXISTS questions_version INTEGER NOT NULL DEFAULT 0;
CREATE INDEX IF NOT EXISTS quizzes_topic_idx ON quizzes (topic_id);

CREATE TABLE IF NOT EXISTS quiz_questions (
  id              TEXT PRIMARY KEY,
  quiz_id         TEXT NOT NULL REFERENCES quizzes(id),
  position        INTEGER NOT NULL,
  type            TEXT NOT NULL CHECK (type IN ('MCQ', 'SAQ')),
  question        TEXT NOT NULL,
  option_a        TEXT,
  option_b        TEXT,
  option_c        TEXT,
  option_d        TEXT,
  correct_answer  TEXT
);
CREATE INDEX IF NOT EXISTS quiz_questions_quiz_idx ON quiz_questions (quiz_id, position);

CREATE TABLE IF NOT EXISTS quiz_assignments (
  id           TEXT PRIMARY KEY,
  quiz_id      TEXT NOT NULL REFERENCES quizzes(id),
  student_id   TEXT NOT NULL REFERENCES students(id),
  course_id    TEXT,
  status       TEXT NOT NULL,
  assigned_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (quiz_id, student_id)
);
CREATE INDEX IF NOT EXISTS quiz_assignments_student_idx ON quiz_assignments (student_id);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id               TEXT PRIMARY KEY,
  student_id       TEXT NOT NULL REFERENCES students(id),
  quiz_id          TEXT NOT NULL,
  score            INTEGER NOT NULL,
  total_questions  INTEGER NOT NULL,
  fully_assessed   BOOLEAN NOT NULL DEFAULT TRUE,
  manual_score     INTEGER NOT NULL DEFAULT 0,
  attempted_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS quiz_attempts_student_idx ON quiz_attempts (student_id, attempted_at);
CREATE INDEX IF NOT EXISTS quiz_attempts_quiz_idx ON quiz_attempts (quiz_id, attempted_at);

CREATE TABLE IF NOT EXISTS quiz_answers (
  id               TEXT PRIMARY KEY,
  attempt_id       TEXT NOT NULL REFERENCES quiz_attempts(id),
  question_id      TEXT NOT NULL REFERENCES quiz_questions(id),
  position         INTEGER NOT NULL,
  selected_option  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_events (
  id           BIGSERIAL PRIMARY KEY,
  quiz_id      TEXT NOT NULL,
  student_id   TEXT,
  event_type   TEXT NOT NULL,
  data         JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
