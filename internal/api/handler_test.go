package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/api"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/quizgen"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	store := quiz.NewMemoryStore()
	for _, err := range []error{
		store.UpsertCourse(ctx, quiz.Course{ID: "c1", Name: "Science"}),
		store.UpsertSubject(ctx, quiz.Subject{ID: "sub1", CourseID: "c1", Name: "Biology"}),
		store.UpsertTopic(ctx, quiz.Topic{ID: "t1", SubjectID: "sub1", Title: "Photosynthesis"}),
		store.UpsertStudent(ctx, quiz.Student{ID: "s1", Name: "Ana"}),
		store.UpsertStudent(ctx, quiz.Student{ID: "s2", Name: "Ben"}),
	} {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc, err := quiz.NewService(quiz.Config{Store: store, Generator: quizgen.New(nil)})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	mux := http.NewServeMux()
	api.NewHandler(svc).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func createQuiz(t *testing.T, srv *httptest.Server, mcq, saq int) quiz.Quiz {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/api/quizzes", map[string]any{
		"topicId": "t1", "difficulty": "Medium", "countMCQ": mcq, "countSAQ": saq,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create quiz status = %d, body = %s", resp.StatusCode, body)
	}
	var q quiz.Quiz
	if err := json.Unmarshal(body, &q); err != nil {
		t.Fatalf("decode quiz: %v", err)
	}
	return q
}

func TestCreateQuiz(t *testing.T) {
	srv := newServer(t)

	q := createQuiz(t, srv, 3, 2)
	if len(q.Questions) != 5 {
		t.Errorf("questions = %d, want 5", len(q.Questions))
	}

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"unknown topic", map[string]any{"topicId": "nope", "countMCQ": 1}, http.StatusNotFound},
		{"missing topic", map[string]any{"countMCQ": 1}, http.StatusBadRequest},
		{"negative count", map[string]any{"topicId": "t1", "countMCQ": -1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodPost, "/api/quizzes", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	srv := newServer(t)

	req, _ := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/api/quizzes", strings.NewReader("{not json"))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListRoutes(t *testing.T) {
	srv := newServer(t)
	q := createQuiz(t, srv, 1, 0)

	tests := []struct {
		path      string
		wantCount int
	}{
		{"/api/quizzes", 1},
		{"/api/topics/t1/quizzes", 1},
		{"/api/topics/other/quizzes", 0},
		{"/api/quizzes/" + q.ID + "/questions", 1},
		{"/api/quizzes/missing/questions", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodGet, tt.path, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
			}
			var items []json.RawMessage
			if err := json.Unmarshal(body, &items); err != nil {
				t.Fatalf("decode: %v (body %s)", err, body)
			}
			if len(items) != tt.wantCount {
				t.Errorf("got %d items, want %d", len(items), tt.wantCount)
			}
		})
	}
}

func TestDeleteAssignedQuiz_Conflict(t *testing.T) {
	srv := newServer(t)
	q := createQuiz(t, srv, 1, 0)

	resp, body := do(t, srv, http.MethodPost, "/api/quizzes/"+q.ID+"/assign", map[string]any{"studentIds": []string{"s1"}})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"created":1`) {
		t.Fatalf("assign status = %d, body = %s", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodDelete, "/api/quizzes/"+q.ID, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete status = %d, want 409", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != `{"message":"You cannot delete an assigned quiz"}` {
		t.Errorf("body = %s", body)
	}

	resp, _ = do(t, srv, http.MethodGet, "/api/quizzes/"+q.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("quiz missing after rejected delete: %d", resp.StatusCode)
	}
}

func TestDeleteQuiz(t *testing.T) {
	srv := newServer(t)
	q := createQuiz(t, srv, 1, 0)

	resp, _ := do(t, srv, http.MethodDelete, "/api/quizzes/"+q.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}
	resp, _ = do(t, srv, http.MethodGet, "/api/quizzes/"+q.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestStudentFlow(t *testing.T) {
	srv := newServer(t)
	q := createQuiz(t, srv, 2, 0)
	base := "/api/students/s1/quizzes/" + q.ID

	resp, _ := do(t, srv, http.MethodPost, base+"/start", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("start before assignment = %d, want 403", resp.StatusCode)
	}

	resp, _ = do(t, srv, http.MethodPost, "/api/quizzes/"+q.ID+"/assign-all", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign-all = %d", resp.StatusCode)
	}

	resp, body := do(t, srv, http.MethodPost, base+"/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start = %d, body = %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), "correctAnswer") {
		t.Errorf("start response leaks answers: %s", body)
	}
	var view struct {
		QuizID    string `json:"quizId"`
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
	}
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.QuizID != q.ID || len(view.Questions) != 2 {
		t.Fatalf("view = %+v", view)
	}

	answers := map[string]string{q.Questions[0].ID: "A", q.Questions[1].ID: "C"}
	resp, body = do(t, srv, http.MethodPost, base+"/submit", map[string]any{"answers": answers})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit = %d, body = %s", resp.StatusCode, body)
	}
	var res struct {
		Score          int    `json:"score"`
		TotalQuestions int    `json:"totalQuestions"`
		Accuracy       int    `json:"accuracy"`
		AttemptID      string `json:"attemptId"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Score != 1 || res.TotalQuestions != 2 || res.Accuracy != 50 || res.AttemptID == "" {
		t.Errorf("result = %+v", res)
	}

	resp, body = do(t, srv, http.MethodGet, "/api/students/s1/assignments", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"SUBMITTED"`) {
		t.Errorf("assignments = %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodGet, "/api/students/s1/progress", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"totalAttempts":1`) {
		t.Errorf("progress = %d %s", resp.StatusCode, body)
	}

	resp, _ = do(t, srv, http.MethodGet, "/api/students/ghost/attempts", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("attempts for unknown student = %d, want 404", resp.StatusCode)
	}

	resp, _ = do(t, srv, http.MethodPost, "/api/students/s2/quizzes/"+q.ID+"/submit", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("submit with empty answers = %d, want 200", resp.StatusCode)
	}
}

func TestQuestionRoutes(t *testing.T) {
	srv := newServer(t)
	q := createQuiz(t, srv, 1, 0)
	base := "/api/quizzes/" + q.ID + "/questions"

	resp, body := do(t, srv, http.MethodPost, base, map[string]any{"type": "SAQ", "question": "Explain."})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create question = %d, body = %s", resp.StatusCode, body)
	}
	var created quiz.Question
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, _ = do(t, srv, http.MethodPost, base, map[string]any{"type": "MCQ", "question": "x", "options": []string{"a"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid question = %d, want 400", resp.StatusCode)
	}

	resp, body = do(t, srv, http.MethodPut, base+"/"+created.ID, map[string]any{"question": "Explain again."})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Explain again.") {
		t.Errorf("update = %d %s", resp.StatusCode, body)
	}

	resp, _ = do(t, srv, http.MethodDelete, base+"/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", resp.StatusCode)
	}
	resp, _ = do(t, srv, http.MethodDelete, base+"/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", resp.StatusCode)
	}
}

func TestExportResults(t *testing.T) {
	srv := newServer(t)
	q := createQuiz(t, srv, 1, 0)

	resp, body := do(t, srv, http.MethodGet, "/api/quizzes/"+q.ID+"/results.xlsx", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "spreadsheetml") {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Error("export is not a zip container")
	}

	resp, _ = do(t, srv, http.MethodGet, "/api/quizzes/missing/results.xlsx", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("export unknown quiz = %d, want 404", resp.StatusCode)
	}
}
