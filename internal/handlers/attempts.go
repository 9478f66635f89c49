package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
	"quizme-backend/internal/quiz"
	"quizme-backend/internal/services"
)

type AttemptsHandler struct {
	ctrl      *quiz.Controller
	explainer *services.Explainer
	log       zerolog.Logger
}

func NewAttemptsHandler(ctrl *quiz.Controller, explainer *services.Explainer, log zerolog.Logger) *AttemptsHandler {
	return &AttemptsHandler{ctrl: ctrl, explainer: explainer, log: log}
}

func (h *AttemptsHandler) List(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.ctrl.Attempts(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"total":    len(attempts),
	})
}

// Latest returns the most recent attempt with its review.
func (h *AttemptsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.ctrl.LatestAttempt(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz.Review(*attempt))
}

func (h *AttemptsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	var req models.ExplainRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.QuestionID == "" {
		handleServiceError(w, r, h.log, &services.ValidationError{Fields: map[string]string{"question_id": "question_id is required"}})
		return
	}

	text, err := h.explainer.Explain(r.Context(), req.QuestionID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ExplainResponse{QuestionID: req.QuestionID, Explanation: text})
}
