package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"quizme-backend/internal/catalog"
	"quizme-backend/internal/models"
	"quizme-backend/internal/services"
)

type LibraryHandler struct {
	catalog *catalog.Catalog
	log     zerolog.Logger
}

func NewLibraryHandler(c *catalog.Catalog, log zerolog.Logger) *LibraryHandler {
	return &LibraryHandler{catalog: c, log: log}
}

func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	lib := h.catalog.Library()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subjects": lib,
		"stats":    catalog.Stats(lib),
	})
}

func (h *LibraryHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"subjects": h.catalog.Subjects()})
}

func (h *LibraryHandler) Chapters(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when it is set, leaving the param escaped.
	subject := chi.URLParam(r, "subject")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(subject)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid subject", r))
			return
		}
		subject = unescaped
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subject":  subject,
		"chapters": h.catalog.Chapters(subject),
	})
}

// CreateQuestion appends one manually authored question.
func (h *LibraryHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.CreateQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	draft, err := services.ValidateQuestionInput(req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	added, err := h.catalog.AppendQuestions(r.Context(), trimmed(req.Subject), trimmed(req.Chapter), []models.Draft{draft})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, added[0])
}
