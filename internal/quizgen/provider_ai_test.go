package quizgen_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/quizgen"
)

func TestAIProvider_Envelope(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions": [
		{"type": "MCQ", "question": "Capital of France?", "options": ["Paris", "Rome", "Madrid", "Berlin"], "answer": "A"},
		{"type": "SAQ", "question": "Describe the Seine."}
	]}`)
	p := quizgen.NewAIProvider(mock)

	qs, err := p.Generate(t.Context(), quizgen.Request{Topic: "Geography", Difficulty: "Easy", CountMCQ: 1, CountSAQ: 1})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("len = %d, want 2", len(qs))
	}
	if qs[0].Options[0] != "Paris" {
		t.Errorf("option A = %q, want Paris", qs[0].Options[0])
	}

	req := mock.LastRequest()
	if req == nil {
		t.Fatal("completer was not called")
	}
	if !req.JSON {
		t.Error("request should ask for JSON output")
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(prompt, "Geography") || !strings.Contains(prompt, "Easy") {
		t.Errorf("prompt %q should mention topic and difficulty", prompt)
	}
}

func TestAIProvider_FencedArray(t *testing.T) {
	mock := ai.NewMockProvider("```json\n[{\"type\": \"SAQ\", \"question\": \"Why is the sky blue?\"}]\n```")
	p := quizgen.NewAIProvider(mock)

	qs, err := p.Generate(t.Context(), quizgen.Request{Topic: "Light", CountSAQ: 1})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(qs) != 1 || qs[0].Question != "Why is the sky blue?" {
		t.Errorf("qs = %+v", qs)
	}
}

func TestAIProvider_SkipsSchemaViolations(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions": [
		{"type": "MCQ", "question": "Only two options", "options": ["a", "b"], "answer": "A"},
		{"type": "MCQ", "question": "No answer", "options": ["a", "b", "c", "d"]},
		{"question": "Untyped", "options": ["a", "b", "c", "d"], "answer": "C"},
		{"type": "SAQ"},
		"not an object"
	]}`)
	p := quizgen.NewAIProvider(mock)

	qs, err := p.Generate(t.Context(), quizgen.Request{Topic: "T", CountMCQ: 3})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(qs) != 1 || qs[0].Question != "Untyped" {
		t.Errorf("qs = %+v, want only the untyped MCQ", qs)
	}
}

func TestAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{"completer error", "", errors.New("rate limited")},
		{"not json", "Here are your questions: 1. ...", nil},
		{"empty", "   ", nil},
		{"no questions key", `{"items": []}`, nil},
		{"nothing usable", `{"questions": [{"type": "MCQ", "question": "x"}]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := ai.NewMockProvider(tt.response)
			mock.Err = tt.err
			p := quizgen.NewAIProvider(mock)

			if _, err := p.Generate(t.Context(), quizgen.Request{Topic: "T", CountMCQ: 1}); err == nil {
				t.Error("Generate() expected error, got nil")
			}
		})
	}
}

func TestGenerator_WithAIProviderTimeout(t *testing.T) {
	g := quizgen.New(quizgen.NewAIProvider(ai.BlockingProvider{}), quizgen.WithTimeout(10*time.Millisecond))
	qs := g.Generate(t.Context(), "Waves", "Medium", 1, 1)
	if len(qs) != 2 {
		t.Fatalf("len = %d, want 2", len(qs))
	}
	if qs[0].Answer != "A" {
		t.Errorf("expected fallback MCQ, got %+v", qs[0])
	}
}
