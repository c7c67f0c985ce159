// Package api exposes the quiz service as JSON over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const maxBodyBytes = 1 << 20

// Handler serves the quiz routes.
type Handler struct {
	svc *quiz.Service
}

// NewHandler creates a Handler for svc.
func NewHandler(svc *quiz.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the quiz routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quizzes", h.createQuiz)
	mux.HandleFunc("GET /api/quizzes", h.listQuizzes)
	mux.HandleFunc("GET /api/topics/{topicID}/quizzes", h.listQuizzesByTopic)
	mux.HandleFunc("GET /api/quizzes/{quizID}", h.getQuiz)
	mux.HandleFunc("DELETE /api/quizzes/{quizID}", h.deleteQuiz)

	mux.HandleFunc("GET /api/quizzes/{quizID}/questions", h.listQuestions)
	mux.HandleFunc("POST /api/quizzes/{quizID}/questions", h.createQuestion)
	mux.HandleFunc("PUT /api/quizzes/{quizID}/questions/{questionID}", h.updateQuestion)
	mux.HandleFunc("DELETE /api/quizzes/{quizID}/questions/{questionID}", h.deleteQuestion)

	mux.HandleFunc("POST /api/quizzes/{quizID}/assign", h.assign)
	mux.HandleFunc("POST /api/quizzes/{quizID}/assign-all", h.assignAll)
	mux.HandleFunc("GET /api/quizzes/{quizID}/results.xlsx", h.exportResults)

	mux.HandleFunc("POST /api/students/{studentID}/quizzes/{quizID}/start", h.start)
	mux.HandleFunc("POST /api/students/{studentID}/quizzes/{quizID}/submit", h.submit)
	mux.HandleFunc("GET /api/students/{studentID}/assignments", h.studentAssignments)
	mux.HandleFunc("GET /api/students/{studentID}/attempts", h.studentAttempts)
	mux.HandleFunc("GET /api/students/{studentID}/progress", h.studentProgress)
}

type createQuizRequest struct {
	TopicID    string `json:"topicId"`
	Difficulty string `json:"difficulty"`
	CountMCQ   int    `json:"countMCQ"`
	CountSAQ   int    `json:"countSAQ"`
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TopicID == "" {
		writeError(w, fmt.Errorf("%w: topicId is required", quiz.ErrInvalidInput))
		return
	}

	created, err := h.svc.CreateQuiz(r.Context(), req.TopicID, req.Difficulty, req.CountMCQ, req.CountSAQ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.svc.ListQuizzes(r.Context())
	respond(w, quizzes, err)
}

func (h *Handler) listQuizzesByTopic(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.svc.ListQuizzesByTopic(r.Context(), r.PathValue("topicID"))
	respond(w, quizzes, err)
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.GetQuiz(r.Context(), r.PathValue("quizID"))
	respond(w, q, err)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteQuiz(r.Context(), r.PathValue("quizID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.svc.ListQuestions(r.Context(), r.PathValue("quizID"))
	respond(w, questions, err)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var in quiz.QuestionInput
	if !decode(w, r, &in) {
		return
	}
	q, err := h.svc.CreateQuestion(r.Context(), r.PathValue("quizID"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var in quiz.QuestionInput
	if !decode(w, r, &in) {
		return
	}
	q, err := h.svc.UpdateQuestion(r.Context(), r.PathValue("quizID"), r.PathValue("questionID"), in)
	respond(w, q, err)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteQuestion(r.Context(), r.PathValue("quizID"), r.PathValue("questionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	StudentIDs []string `json:"studentIds"`
}

type assignResponse struct {
	Created int `json:"created"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.svc.AssignToStudents(r.Context(), r.PathValue("quizID"), req.StudentIDs)
	respond(w, assignResponse{Created: n}, err)
}

func (h *Handler) assignAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.AssignToAllStudents(r.Context(), r.PathValue("quizID"))
	respond(w, assignResponse{Created: n}, err)
}

func (h *Handler) exportResults(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizID")
	// Render first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.svc.ExportQuizResults(r.Context(), quizID, &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-%s-results.xlsx"`, quizID))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("writing results export failed", "quiz_id", quizID, "error", err)
	}
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.StartAssignedQuiz(r.Context(), r.PathValue("studentID"), r.PathValue("quizID"))
	respond(w, view, err)
}

type submitRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.SubmitAssignedQuiz(r.Context(), r.PathValue("studentID"), r.PathValue("quizID"), req.Answers)
	respond(w, res, err)
}

func (h *Handler) studentAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.svc.ListAssignmentsForStudent(r.Context(), r.PathValue("studentID"))
	respond(w, assignments, err)
}

func (h *Handler) studentAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.svc.ListAttemptsForStudent(r.Context(), r.PathValue("studentID"))
	respond(w, attempts, err)
}

func (h *Handler) studentProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.StudentProgress(r.Context(), r.PathValue("studentID"))
	respond(w, p, err)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, fmt.Errorf("%w: malformed JSON body: %v", quiz.ErrInvalidInput, err))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "error", err)
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrQuizAssigned):
		writeJSON(w, http.StatusConflict, errorResponse{Message: "You cannot delete an assigned quiz"})
	case errors.Is(err, quiz.ErrNotAssigned):
		writeJSON(w, http.StatusForbidden, errorResponse{Message: err.Error()})
	case errors.Is(err, quiz.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, quiz.ErrInvalidInput), errors.Is(err, quiz.ErrInvalidQuestion):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}
