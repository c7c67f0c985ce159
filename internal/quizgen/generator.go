// Package quizgen builds question sets for a topic and difficulty. Questions
// come from a Provider when one answers in time, and from a deterministic
// fallback otherwise; Generate never fails.
package quizgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Question types.
const (
	TypeMCQ = "MCQ"
	TypeSAQ = "SAQ"
)

const defaultTimeout = 20 * time.Second

// ErrProviderUnavailable wraps every provider failure. It is logged and
// absorbed by the fallback path, never returned from Generate.
var ErrProviderUnavailable = errors.New("question provider unavailable")

// QuestionSpec is a generated question ready to be persisted.
type QuestionSpec struct {
	Type     string
	Question string
	Options  []string // exactly four for MCQ, nil for SAQ
	Answer   string   // A-D for MCQ, empty for SAQ
}

// RawQuestion is one entry of provider output, before normalization.
type RawQuestion struct {
	Type     string   `json:"type"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer,omitempty"`
}

// Request describes the question set to generate.
type Request struct {
	Topic      string
	Difficulty string
	CountMCQ   int
	CountSAQ   int
}

// Provider is the external question source (usually an LLM).
type Provider interface {
	Generate(ctx context.Context, req Request) ([]RawQuestion, error)
}

// Generator produces question sets with a fallback.
type Generator struct {
	provider Provider
	timeout  time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// New creates a Generator. A nil provider means every request uses the fallback.
func New(provider Provider, opts ...Option) *Generator {
	g := &Generator{provider: provider, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns exactly countMCQ multiple-choice and countSAQ short-answer
// questions. Negative counts are treated as zero.
func (g *Generator) Generate(ctx context.Context, topic, difficulty string, countMCQ, countSAQ int) []QuestionSpec {
	req := Request{
		Topic:      topic,
		Difficulty: difficulty,
		CountMCQ:   max(countMCQ, 0),
		CountSAQ:   max(countSAQ, 0),
	}
	if req.CountMCQ == 0 && req.CountSAQ == 0 {
		return []QuestionSpec{}
	}
	if g.provider == nil {
		return Fallback(req)
	}

	raw, err := g.callProvider(ctx, req)
	if err != nil {
		slog.Warn("question provider failed, using fallback questions",
			"topic", topic,
			"difficulty", difficulty,
			"error", err,
		)
		return Fallback(req)
	}

	return assemble(raw, req)
}

// callProvider runs the provider under the generation timeout. The result is
// abandoned if the provider ignores its context past the deadline.
func (g *Generator) callProvider(ctx context.Context, req Request) ([]RawQuestion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		questions []RawQuestion
		err       error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		qs, err := g.provider.Generate(ctx, req)
		done <- result{questions: qs, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, res.err)
		}
		return res.questions, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, ctx.Err())
	}
}

// assemble keeps the first valid questions of each type in provider order and
// tops up any shortfall with fallback questions.
func assemble(raw []RawQuestion, req Request) []QuestionSpec {
	out := make([]QuestionSpec, 0, req.CountMCQ+req.CountSAQ)
	var mcq, saq, dropped int

	for i, r := range raw {
		spec, err := normalize(r)
		if err != nil {
			dropped++
			slog.Warn("dropping malformed generated question", "index", i, "error", err)
			continue
		}
		switch {
		case spec.Type == TypeMCQ && mcq < req.CountMCQ:
			mcq++
		case spec.Type == TypeSAQ && saq < req.CountSAQ:
			saq++
		default:
			dropped++
			continue
		}
		out = append(out, spec)
	}

	if mcq < req.CountMCQ || saq < req.CountSAQ {
		slog.Warn("provider returned too few usable questions, topping up with fallback",
			"topic", req.Topic,
			"mcq", mcq, "want_mcq", req.CountMCQ,
			"saq", saq, "want_saq", req.CountSAQ,
			"dropped", dropped,
		)
	}
	for n := mcq + 1; n <= req.CountMCQ; n++ {
		out = append(out, fallbackMCQ(req, n))
	}
	for n := saq + 1; n <= req.CountSAQ; n++ {
		out = append(out, fallbackSAQ(req, n))
	}
	return out
}

// normalize converts a provider entry into a QuestionSpec that satisfies the
// question invariants, or reports why it cannot.
func normalize(r RawQuestion) (QuestionSpec, error) {
	text := strings.TrimSpace(r.Question)
	if text == "" {
		return QuestionSpec{}, errors.New("empty question text")
	}

	typ := strings.ToUpper(strings.TrimSpace(r.Type))
	if typ == "" {
		typ = TypeMCQ
	}

	switch typ {
	case TypeSAQ:
		return QuestionSpec{Type: TypeSAQ, Question: text}, nil
	case TypeMCQ:
		if len(r.Options) != 4 {
			return QuestionSpec{}, fmt.Errorf("multiple-choice question has %d options, want 4", len(r.Options))
		}
		opts := make([]string, 4)
		for i, o := range r.Options {
			opts[i] = strings.TrimSpace(o)
			if opts[i] == "" {
				return QuestionSpec{}, fmt.Errorf("option %c is empty", 'A'+i)
			}
		}
		answer := NormalizeAnswer(r.Answer)
		if !IsAnswerLetter(answer) {
			return QuestionSpec{}, fmt.Errorf("answer %q is not one of A, B, C, D", answer)
		}
		return QuestionSpec{Type: TypeMCQ, Question: text, Options: opts, Answer: answer}, nil
	default:
		return QuestionSpec{}, fmt.Errorf("unknown question type %q", r.Type)
	}
}

// NormalizeAnswer trims and upper-cases a provider answer and reduces it to its
// first character when that is A, B, C or D ("b) 42" -> "B"). Anything else is
// returned trimmed and upper-cased.
func NormalizeAnswer(answer string) string {
	upper := cases.Upper(language.Und).String(strings.TrimSpace(answer))
	if upper != "" && strings.ContainsRune("ABCD", rune(upper[0])) {
		return upper[:1]
	}
	return upper
}

// IsAnswerLetter reports whether s is exactly one of A, B, C, D.
func IsAnswerLetter(s string) bool {
	return s == "A" || s == "B" || s == "C" || s == "D"
}
