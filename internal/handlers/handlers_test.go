package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"quizme-backend/internal/catalog"
	"quizme-backend/internal/models"
	"quizme-backend/internal/quiz"
	"quizme-backend/internal/services"
	"quizme-backend/internal/store"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"a": "b"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "busy"}, http.StatusConflict, "CONFLICT"},
		{"stale", services.ErrStaleResult, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "gone"}, http.StatusNotFound, "NOT_FOUND"},
		{"upstream", &services.UpstreamError{Message: "AI down", Err: errors.New("502")}, http.StatusBadGateway, "AI_ERROR"},
		{"no questions", quiz.ErrNoQuestions, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"out of range", quiz.ErrIndexOutOfRange, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown question", quiz.ErrUnknownQuestion, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no session", quiz.ErrNoActiveSession, http.StatusNotFound, "NOT_FOUND"},
		{"no chapter", quiz.ErrChapterNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"no attempts", quiz.ErrNoAttempts, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped sentinel", fmt.Errorf("load: %w", quiz.ErrNoActiveSession), http.StatusNotFound, "NOT_FOUND"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "rid")
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, zerolog.Nop(), tc.err)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var body models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.code || body.Error.RequestID != "rid" {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestHandleServiceError_HidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	handleServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), zerolog.Nop(), errors.New("pq: password=hunter2"))

	var body models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Error.Message != "An unexpected error occurred" {
		t.Fatalf("internal error detail leaked: %q", body.Error.Message)
	}
}

func TestLibraryHandler_Chapters(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New(store.NewMemoryStore(), nil, zerolog.Nop())
	cat.Load(ctx)
	for _, subject := range []string{"Lịch sử", "100% Math", "Toán/Lý"} {
		cat.AppendQuestions(ctx, subject, "Chương 1", []models.Draft{{Text: "q", Type: models.QuestionTypeFillInBlank, Answer: "a"}})
	}
	h := NewLibraryHandler(cat, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/api/v1/library/subjects/{subject}/chapters", h.Chapters)

	tests := []struct {
		name        string
		path        string
		wantSubject string
		wantLen     int
	}{
		{"escaped subject", "L%E1%BB%8Bch%20s%E1%BB%AD", "Lịch sử", 1},
		{"percent sign", "100%25%20Math", "100% Math", 1},
		{"escaped slash", "To%C3%A1n%2FL%C3%BD", "Toán/Lý", 1},
		{"unknown subject", "Nope", "Nope", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/library/subjects/"+tc.path+"/chapters", nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			var body struct {
				Subject  string   `json:"subject"`
				Chapters []string `json:"chapters"`
			}
			json.NewDecoder(rr.Body).Decode(&body)
			if body.Subject != tc.wantSubject {
				t.Fatalf("expected subject %q, got %q", tc.wantSubject, body.Subject)
			}
			if len(body.Chapters) != tc.wantLen {
				t.Fatalf("expected %d chapters, got %v", tc.wantLen, body.Chapters)
			}
		})
	}
}

func TestQuizHandler_SubmitBodyVariants(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantScore int
	}{
		{"empty body uses recorded answers", "", 1},
		{"missing user_answers uses recorded answers", `{}`, 1},
		{"explicit answers", `{"user_answers":{}}`, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := store.NewMemoryStore()
			cat := catalog.New(s, nil, zerolog.Nop())
			cat.Load(ctx)
			added, _ := cat.AppendQuestions(ctx, "S", "C", []models.Draft{{Text: "q", Type: models.QuestionTypeFillInBlank, Answer: "a"}})
			ctrl := quiz.NewController(s, cat, nil, zerolog.Nop())
			ctrl.StartChapter(ctx, "S", "C")
			ctrl.RecordAnswer(ctx, added[0].ID, "A")

			h := NewQuizHandler(ctrl, zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/quiz/session/submit", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.Submit(rr, req)

			if rr.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
			}
			var review models.AttemptReview
			json.NewDecoder(rr.Body).Decode(&review)
			if review.Attempt.Score != tc.wantScore {
				t.Fatalf("expected score %d, got %d", tc.wantScore, review.Attempt.Score)
			}
		})
	}
}
