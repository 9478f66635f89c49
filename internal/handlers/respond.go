package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"quizme-backend/internal/middleware"
	"quizme-backend/internal/models"
	"quizme-backend/internal/quiz"
	"quizme-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(middleware.RequestIDHeader),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return false
	}
	return true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"index": "index must be an integer"}, r))
		return 0, false
	}
	return index, true
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var (
		validation *services.ValidationError
		conflict   *services.ConflictError
		notFound   *services.NotFoundError
		upstream   *services.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", validation.Fields, r))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflict.Message, r))
	case errors.Is(err, services.ErrStaleResult):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "The request was cancelled", r))
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFound.Message, r))
	case errors.As(err, &upstream):
		log.Warn().Err(upstream.Err).Msg("AI request failed")
		writeJSON(w, http.StatusBadGateway, errorResp("AI_ERROR", upstream.Message, r))
	case errors.Is(err, quiz.ErrNoQuestions):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "There are no questions to start a quiz with", r))
	case errors.Is(err, quiz.ErrIndexOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"index": "index is out of range"}, r))
	case errors.Is(err, quiz.ErrUnknownQuestion):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"question_id": "question is not part of the active session"}, r))
	case errors.Is(err, quiz.ErrNoActiveSession):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No active quiz session", r))
	case errors.Is(err, quiz.ErrChapterNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chapter not found", r))
	case errors.Is(err, quiz.ErrNoAttempts):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No quiz attempts yet", r))
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
