package quizgen

import "fmt"

// Fallback synthesizes placeholder questions that mention the topic and
// difficulty: CountMCQ multiple-choice questions answered "A", then CountSAQ
// short-answer questions.
func Fallback(req Request) []QuestionSpec {
	out := make([]QuestionSpec, 0, max(req.CountMCQ, 0)+max(req.CountSAQ, 0))
	for n := 1; n <= req.CountMCQ; n++ {
		out = append(out, fallbackMCQ(req, n))
	}
	for n := 1; n <= req.CountSAQ; n++ {
		out = append(out, fallbackSAQ(req, n))
	}
	return out
}

func fallbackMCQ(req Request, n int) QuestionSpec {
	return QuestionSpec{
		Type:     TypeMCQ,
		Question: fmt.Sprintf("Sample question %d about %s (%s level)", n, req.Topic, req.Difficulty),
		Options: []string{
			"Option A: Sample answer",
			"Option B: Sample answer",
			"Option C: Sample answer",
			"Option D: Sample answer",
		},
		Answer: "A",
	}
}

func fallbackSAQ(req Request, n int) QuestionSpec {
	return QuestionSpec{
		Type:     TypeSAQ,
		Question: fmt.Sprintf("Short answer question %d about %s (%s level)", n, req.Topic, req.Difficulty),
	}
}
