// Package catalog seeds courses, subjects, topics and students from YAML
// files into the quiz store.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// Catalog is the merged content of every catalog file under a directory.
type Catalog struct {
	Courses  []Course
	Students []Student
}

// Load walks dir and merges every .yaml/.yml file. Files that fail to parse
// or break the catalog rules are skipped with a warning. A missing directory
// yields an empty catalog.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		slog.Info("catalog directory not found, nothing to seed", "path", dir)
		return c, nil
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		f, err := loadFile(path)
		if err != nil {
			slog.Warn("skipping invalid catalog YAML", "path", path, "error", err)
			continue
		}
		c.Courses = append(c.Courses, f.Courses...)
		c.Students = append(c.Students, f.Students...)
	}

	slog.Info("catalog loaded",
		"courses", len(c.Courses),
		"topics", c.TopicCount(),
		"students", len(c.Students),
	)
	return c, nil
}

func loadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	if err := f.validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

func (f File) validate() error {
	for _, c := range f.Courses {
		if c.ID == "" {
			return fmt.Errorf("course %q has no id", c.Name)
		}
		for _, s := range c.Subjects {
			if s.ID == "" {
				return fmt.Errorf("subject %q in course %s has no id", s.Name, c.ID)
			}
			for _, t := range s.Topics {
				if t.ID == "" || t.Title == "" {
					return fmt.Errorf("topic in subject %s needs an id and a title", s.ID)
				}
			}
		}
	}
	for _, st := range f.Students {
		if st.ID == "" {
			return fmt.Errorf("student %q has no id", st.Name)
		}
	}
	return nil
}

// TopicCount returns the number of topics across all courses.
func (c *Catalog) TopicCount() int {
	n := 0
	for _, course := range c.Courses {
		for _, s := range course.Subjects {
			n += len(s.Topics)
		}
	}
	return n
}

// Apply upserts the catalog into w: courses, then subjects and topics, then
// students.
func (c *Catalog) Apply(ctx context.Context, w quiz.CatalogWriter) error {
	for _, course := range c.Courses {
		if err := w.UpsertCourse(ctx, quiz.Course{ID: course.ID, Name: course.Name}); err != nil {
			return fmt.Errorf("course %s: %w", course.ID, err)
		}
		for _, s := range course.Subjects {
			if err := w.UpsertSubject(ctx, quiz.Subject{ID: s.ID, CourseID: course.ID, Name: s.Name}); err != nil {
				return fmt.Errorf("subject %s: %w", s.ID, err)
			}
			for _, t := range s.Topics {
				topic := quiz.Topic{
					ID:           t.ID,
					SubjectID:    s.ID,
					Title:        t.Title,
					VideoURL:     t.VideoURL,
					PDFURL:       t.PDFURL,
					ExternalLink: t.ExternalLink,
				}
				if err := w.UpsertTopic(ctx, topic); err != nil {
					return fmt.Errorf("topic %s: %w", t.ID, err)
				}
			}
		}
	}

	for _, st := range c.Students {
		student := quiz.Student{ID: st.ID, Name: st.Name, Email: st.Email, CourseID: st.CourseID}
		if err := w.UpsertStudent(ctx, student); err != nil {
			return fmt.Errorf("student %s: %w", st.ID, err)
		}
	}
	return nil
}
