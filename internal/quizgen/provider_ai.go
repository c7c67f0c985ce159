package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-quiz/internal/ai"
)

// questionSchema validates one generated question. Entries without a type are
// treated as multiple-choice, matching how the questions are later normalized.
const questionSchema = `{
  "type": "object",
  "required": ["question"],
  "properties": {
    "type":     {"type": "string"},
    "question": {"type": "string", "minLength": 1},
    "options":  {"type": "array", "items": {"type": "string"}},
    "answer":   {"type": "string"}
  },
  "oneOf": [
    {
      "required": ["options", "answer"],
      "properties": {
        "type":    {"pattern": "^\\s*(?i:mcq)\\s*$"},
        "options": {"minItems": 4, "maxItems": 4},
        "answer":  {"minLength": 1}
      }
    },
    {
      "required": ["type"],
      "properties": {
        "type": {"pattern": "^\\s*(?i:saq)\\s*$"}
      }
    }
  ]
}`

var compiledQuestionSchema = mustSchema(questionSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("quizgen: invalid question schema: %v", err))
	}
	return s
}

const systemPrompt = `You write quiz questions for a learning platform.
Respond with a single JSON object of the form {"questions": [...]}.
Each multiple-choice entry is {"type": "MCQ", "question": "...", "options": ["...", "...", "...", "..."], "answer": "A"}
with exactly four options and an answer letter A, B, C or D.
Each short-answer entry is {"type": "SAQ", "question": "..."} with no options and no answer.
Do not add commentary outside the JSON.`

// AIProvider asks an LLM for questions and validates every entry at the boundary.
type AIProvider struct {
	completer ai.Completer
	maxTokens int
}

// NewAIProvider creates a Provider backed by an AI completer (usually *ai.Router).
func NewAIProvider(completer ai.Completer) *AIProvider {
	return &AIProvider{completer: completer, maxTokens: 4096}
}

// Generate requests the question set and returns the entries that pass schema
// validation. Malformed entries are logged and skipped; a response that is not
// JSON, or that has no usable entry, is an error.
func (p *AIProvider) Generate(ctx context.Context, req Request) ([]RawQuestion, error) {
	resp, err := p.completer.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		MaxTokens:   p.maxTokens,
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	entries, err := splitEntries(resp.Content)
	if err != nil {
		return nil, err
	}

	questions := make([]RawQuestion, 0, len(entries))
	for i, entry := range entries {
		q, err := decodeEntry(entry)
		if err != nil {
			slog.Warn("skipping invalid provider question", "index", i, "error", err)
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, errors.New("provider returned no usable questions")
	}
	return questions, nil
}

func userPrompt(req Request) string {
	return fmt.Sprintf(
		"Topic: %s\nDifficulty: %s\nWrite %d multiple-choice questions (MCQ) and %d short-answer questions (SAQ).",
		req.Topic, req.Difficulty, req.CountMCQ, req.CountSAQ,
	)
}

// splitEntries accepts {"questions": [...]} or a bare array, optionally wrapped
// in a Markdown code fence.
func splitEntries(content string) ([]json.RawMessage, error) {
	body := bytes.TrimSpace([]byte(stripFence(content)))
	if len(body) == 0 {
		return nil, errors.New("empty provider response")
	}

	if body[0] == '[' {
		var entries []json.RawMessage
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("decode question array: %w", err)
		}
		return entries, nil
	}

	var envelope struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode question envelope: %w", err)
	}
	if envelope.Questions == nil {
		return nil, errors.New(`provider response has no "questions" array`)
	}
	return envelope.Questions, nil
}

func decodeEntry(entry json.RawMessage) (RawQuestion, error) {
	result, err := compiledQuestionSchema.Validate(gojsonschema.NewBytesLoader(entry))
	if err != nil {
		return RawQuestion{}, fmt.Errorf("validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return RawQuestion{}, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}

	var q RawQuestion
	if err := json.Unmarshal(entry, &q); err != nil {
		return RawQuestion{}, fmt.Errorf("decode: %w", err)
	}
	return q, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop the language tag line
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
