package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
	"quizme-backend/internal/quiz"
	"quizme-backend/internal/services"
)

type QuizHandler struct {
	ctrl *quiz.Controller
	log  zerolog.Logger
}

func NewQuizHandler(ctrl *quiz.Controller, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{ctrl: ctrl, log: log}
}

func (h *QuizHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.Status(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Subject) == "" {
		fields["subject"] = "subject is required"
	}
	if strings.TrimSpace(req.Chapter) == "" {
		fields["chapter"] = "chapter is required"
	}
	if len(fields) > 0 {
		handleServiceError(w, r, h.log, &services.ValidationError{Fields: fields})
		return
	}

	sess, err := h.ctrl.StartChapter(r.Context(), trimmed(req.Subject), trimmed(req.Chapter))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *QuizHandler) StartRandom(w http.ResponseWriter, r *http.Request) {
	sess, err := h.ctrl.StartRandom(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *QuizHandler) Resume(w http.ResponseWriter, r *http.Request) {
	sess, err := h.ctrl.Resume(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *QuizHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Suspend(r.Context()); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	h.Status(w, r)
}

func (h *QuizHandler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.RecordAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.QuestionID == "" {
		handleServiceError(w, r, h.log, &services.ValidationError{Fields: map[string]string{"question_id": "question_id is required"}})
		return
	}

	sess, err := h.ctrl.RecordAnswer(r.Context(), req.QuestionID, req.Value)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *QuizHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req models.NavigateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Index == nil {
		handleServiceError(w, r, h.log, &services.ValidationError{Fields: map[string]string{"index": "index is required"}})
		return
	}

	sess, err := h.ctrl.Navigate(r.Context(), *req.Index)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Submit scores the session. An empty body, or one without user_answers,
// submits the answers recorded so far.
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	attempt, err := h.ctrl.Submit(r.Context(), req.UserAnswers)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz.Review(*attempt))
}

func (h *QuizHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Abandon(r.Context()); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
