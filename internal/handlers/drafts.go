package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
	"quizme-backend/internal/services"
)

type DraftsHandler struct {
	board     *services.DraftBoard
	extractor *services.SourceExtractor
	maxUpload int64
	log       zerolog.Logger
}

func NewDraftsHandler(board *services.DraftBoard, extractor *services.SourceExtractor, maxUpload int64, log zerolog.Logger) *DraftsHandler {
	return &DraftsHandler{board: board, extractor: extractor, maxUpload: maxUpload, log: log}
}

func (h *DraftsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateDraftsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	drafts, err := h.board.Generate(r.Context(), req.SourceText, req.Count)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"drafts": drafts, "count": len(drafts)})
}

// Extract turns an uploaded file into source text for Generate.
func (h *DraftsHandler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid upload", r))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"file": "file is required"}, r))
		return
	}
	defer file.Close()

	text, err := h.extractor.Extract(header.Filename, file)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename":    header.Filename,
		"source_text": text,
	})
}

func (h *DraftsHandler) List(w http.ResponseWriter, r *http.Request) {
	drafts := h.board.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"drafts":     drafts,
		"count":      len(drafts),
		"generating": h.board.Generating(),
	})
}

func (h *DraftsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req models.EditDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	draft, err := h.board.Edit(r.Context(), index, req.Draft)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *DraftsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := h.board.Remove(r.Context(), index); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftsHandler) Discard(w http.ResponseWriter, r *http.Request) {
	h.board.Discard(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.SaveDraftsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	added, err := h.board.Save(r.Context(), req.Subject, req.Chapter)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"subject":   trimmed(req.Subject),
		"chapter":   trimmed(req.Chapter),
		"questions": added,
		"count":     len(added),
	})
}

func trimmed(s string) string { return strings.TrimSpace(s) }
