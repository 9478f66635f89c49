package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"quizme-backend/internal/catalog"
	"quizme-backend/internal/handlers"
	"quizme-backend/internal/models"
	"quizme-backend/internal/proxy"
	"quizme-backend/internal/quiz"
	"quizme-backend/internal/services"
	"quizme-backend/internal/store"
	"quizme-backend/internal/websocket"
)

type stubGenerator struct {
	text string
	err  error
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

type testServer struct {
	handler http.Handler
	gen     *stubGenerator
	store   store.Store
}

func newTestServer(t *testing.T, s store.Store) *testServer {
	t.Helper()
	log := zerolog.Nop()
	hub := websocket.NewHub(nil, log)

	cat := catalog.New(s, hub, log)
	if err := cat.Load(context.Background()); err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	ctrl := quiz.NewController(s, cat, hub, log)

	gen := &stubGenerator{}
	gateway := services.NewGateway(gen, 2, log)
	board := services.NewDraftBoard(gateway, cat, hub, log)
	explainer := services.NewExplainer(gateway, ctrl, log)
	extractor := services.NewSourceExtractor(1 << 20)

	h := New(
		log,
		proxy.NewHandler(proxy.Config{}, log),
		handlers.NewLibraryHandler(cat, log),
		handlers.NewDraftsHandler(board, extractor, 1<<20, log),
		handlers.NewQuizHandler(ctrl, log),
		handlers.NewAttemptsHandler(ctrl, explainer, log),
		hub,
		"http://localhost:5173",
		1000,
	)
	return &testServer{handler: h, gen: gen, store: s}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func addQuestion(t *testing.T, ts *testServer, q models.CreateQuestionRequest) models.Question {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/v1/library/questions", q)
	expectStatus(t, rr, http.StatusCreated)
	return decode[models.Question](t, rr)
}

func seedMathAlgebra(t *testing.T, ts *testServer) []models.Question {
	return []models.Question{
		addQuestion(t, ts, models.CreateQuestionRequest{Subject: "Math", Chapter: "Algebra", Text: "2+2?",
			Type: models.QuestionTypeMultipleChoice, Options: []string{"3", "4", "5", "6"}, Answer: "4"}),
		addQuestion(t, ts, models.CreateQuestionRequest{Subject: "Math", Chapter: "Algebra", Text: "x+1=3",
			Type: models.QuestionTypeFillInBlank, Answer: "2", Topic: "Equations"}),
		addQuestion(t, ts, models.CreateQuestionRequest{Subject: "Math", Chapter: "Algebra", Text: "0 is even",
			Type: models.QuestionTypeTrueFalse, Answer: models.AnswerTrue}),
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	rr := ts.do(t, http.MethodGet, "/health", nil)
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestQuizFlow_EndToEnd(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	qs := seedMathAlgebra(t, ts)

	if qs[0].Topic != models.DefaultTopic {
		t.Fatalf("blank topic should default, got %q", qs[0].Topic)
	}

	rr := ts.do(t, http.MethodGet, "/api/v1/library/subjects/Math/chapters", nil)
	expectStatus(t, rr, http.StatusOK)
	chapters := decode[struct {
		Chapters []string `json:"chapters"`
	}](t, rr)
	if len(chapters.Chapters) != 1 || chapters.Chapters[0] != "Algebra" {
		t.Fatalf("unexpected chapters %v", chapters.Chapters)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/quiz/start", models.StartQuizRequest{Subject: "Math", Chapter: "Algebra"})
	expectStatus(t, rr, http.StatusCreated)

	answers := map[string]string{qs[0].ID: "4", qs[1].ID: "2", qs[2].ID: models.AnswerFalse}
	for id, v := range answers {
		rr = ts.do(t, http.MethodPut, "/api/v1/quiz/session/answers", models.RecordAnswerRequest{QuestionID: id, Value: v})
		expectStatus(t, rr, http.StatusOK)
	}

	idx := 2
	rr = ts.do(t, http.MethodPut, "/api/v1/quiz/session/index", models.NavigateRequest{Index: &idx})
	expectStatus(t, rr, http.StatusOK)

	rr = ts.do(t, http.MethodPost, "/api/v1/quiz/session/submit", nil)
	expectStatus(t, rr, http.StatusCreated)
	review := decode[models.AttemptReview](t, rr)
	if review.Attempt.Score != 2 || review.Attempt.Total != 3 {
		t.Fatalf("expected 2/3, got %d/%d", review.Attempt.Score, review.Attempt.Total)
	}
	if len(review.Incorrect) != 1 || review.Incorrect[0].ID != qs[2].ID {
		t.Fatalf("unexpected incorrect list %+v", review.Incorrect)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/quiz/session", nil)
	st := decode[models.SessionStatus](t, rr)
	if st.State != models.SessionStateIdle {
		t.Fatalf("expected idle after submit, got %s", st.State)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/attempts", nil)
	history := decode[struct {
		Total int `json:"total"`
	}](t, rr)
	if history.Total != 1 {
		t.Fatalf("expected one attempt, got %d", history.Total)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/attempts/latest", nil)
	expectStatus(t, rr, http.StatusOK)
}

func TestQuizFlow_ResumeAfterRestart(t *testing.T) {
	s := store.NewMemoryStore()
	ts := newTestServer(t, s)
	qs := seedMathAlgebra(t, ts)

	ts.do(t, http.MethodPost, "/api/v1/quiz/start", models.StartQuizRequest{Subject: "Math", Chapter: "Algebra"})
	ts.do(t, http.MethodPut, "/api/v1/quiz/session/answers", models.RecordAnswerRequest{QuestionID: qs[1].ID, Value: "2"})
	idx := 1
	ts.do(t, http.MethodPut, "/api/v1/quiz/session/index", models.NavigateRequest{Index: &idx})

	restarted := newTestServer(t, s)
	rr := restarted.do(t, http.MethodGet, "/api/v1/quiz/session", nil)
	st := decode[models.SessionStatus](t, rr)
	if st.State != models.SessionStateSuspended || st.CurrentIndex != 1 || st.AnsweredCount != 1 {
		t.Fatalf("unexpected status after restart: %+v", st)
	}

	rr = restarted.do(t, http.MethodPost, "/api/v1/quiz/session/resume", nil)
	expectStatus(t, rr, http.StatusOK)
	sess := decode[models.QuizSession](t, rr)
	if sess.UserAnswers[qs[1].ID] != "2" || sess.CurrentIndex != 1 {
		t.Fatalf("session not restored: %+v", sess)
	}
}

func TestQuizErrors(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())

	rr := ts.do(t, http.MethodPost, "/api/v1/quiz/start-random", nil)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = ts.do(t, http.MethodPost, "/api/v1/quiz/start", models.StartQuizRequest{Subject: "Math", Chapter: "Nope"})
	expectStatus(t, rr, http.StatusNotFound)

	rr = ts.do(t, http.MethodPost, "/api/v1/quiz/start", models.StartQuizRequest{})
	expectStatus(t, rr, http.StatusBadRequest)
	errBody := decode[models.ErrorResponse](t, rr)
	if errBody.Error.Fields["subject"] == "" || errBody.Error.RequestID == "" {
		t.Fatalf("expected field errors and request id: %+v", errBody)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/quiz/session/submit", nil)
	expectStatus(t, rr, http.StatusNotFound)

	seedMathAlgebra(t, ts)
	ts.do(t, http.MethodPost, "/api/v1/quiz/start", models.StartQuizRequest{Subject: "Math", Chapter: "Algebra"})

	idx := 7
	rr = ts.do(t, http.MethodPut, "/api/v1/quiz/session/index", models.NavigateRequest{Index: &idx})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = ts.do(t, http.MethodPut, "/api/v1/quiz/session/index", map[string]string{})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = ts.do(t, http.MethodPut, "/api/v1/quiz/session/answers", models.RecordAnswerRequest{QuestionID: "nope", Value: "x"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = ts.do(t, http.MethodDelete, "/api/v1/quiz/session", nil)
	expectStatus(t, rr, http.StatusNoContent)

	rr = ts.do(t, http.MethodGet, "/api/v1/attempts/latest", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestCreateQuestion_Validation(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())

	rr := ts.do(t, http.MethodPost, "/api/v1/library/questions", models.CreateQuestionRequest{
		Subject: "Math", Chapter: "Algebra", Text: "2+2?",
		Type: models.QuestionTypeMultipleChoice, Options: []string{"3", "4", "5"}, Answer: "4",
	})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = ts.do(t, http.MethodGet, "/api/v1/library", nil)
	lib := decode[struct {
		Stats models.LibraryStats `json:"stats"`
	}](t, rr)
	if lib.Stats.Questions != 0 {
		t.Fatalf("rejected question must not be stored")
	}
}

func TestDraftsFlow(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	ts.gen.text = "```json\n" + `[
	 {"text":"Capital of France?","type":"MULTIPLE_CHOICE","options":["Paris","Rome","Oslo","Bern"],"answer":"Paris","topic":"Geography"},
	 {"text":"The Seine flows through Paris","type":"TRUE_FALSE","answer":"Đúng","topic":"Geography"},
	 {"text":"France uses the ___","type":"FILL_IN_THE_BLANK","answer":"euro","topic":"Economy"}
	]` + "\n```"

	rr := ts.do(t, http.MethodPost, "/api/v1/drafts/generate", models.GenerateDraftsRequest{SourceText: "France...", Count: 3})
	expectStatus(t, rr, http.StatusOK)

	rr = ts.do(t, http.MethodDelete, "/api/v1/drafts/1", nil)
	expectStatus(t, rr, http.StatusNoContent)

	rr = ts.do(t, http.MethodPut, "/api/v1/drafts/1", models.EditDraftRequest{Draft: models.Draft{
		Text: "France uses the ___", Type: models.QuestionTypeFillInBlank, Answer: "Euro", Topic: "Economy",
	}})
	expectStatus(t, rr, http.StatusOK)

	rr = ts.do(t, http.MethodPut, "/api/v1/drafts/9", models.EditDraftRequest{})
	expectStatus(t, rr, http.StatusNotFound)
	rr = ts.do(t, http.MethodPut, "/api/v1/drafts/abc", models.EditDraftRequest{})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = ts.do(t, http.MethodPost, "/api/v1/drafts/save", models.SaveDraftsRequest{Subject: "Geo", Chapter: "Europe"})
	expectStatus(t, rr, http.StatusCreated)
	saved := decode[struct {
		Count int `json:"count"`
	}](t, rr)
	if saved.Count != 2 {
		t.Fatalf("expected 2 saved, got %d", saved.Count)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/drafts", nil)
	list := decode[struct {
		Count int `json:"count"`
	}](t, rr)
	if list.Count != 0 {
		t.Fatalf("board should be empty after save")
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/library/subjects/Geo/chapters", nil)
	chapters := decode[struct {
		Chapters []string `json:"chapters"`
	}](t, rr)
	if len(chapters.Chapters) != 1 {
		t.Fatalf("expected saved chapter, got %v", chapters.Chapters)
	}
}

func TestDraftsGenerate_Errors(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())

	rr := ts.do(t, http.MethodPost, "/api/v1/drafts/generate", models.GenerateDraftsRequest{SourceText: "x", Count: 50})
	expectStatus(t, rr, http.StatusBadRequest)

	ts.gen.text = "not json at all"
	rr = ts.do(t, http.MethodPost, "/api/v1/drafts/generate", models.GenerateDraftsRequest{SourceText: "x", Count: 5})
	expectStatus(t, rr, http.StatusBadGateway)
	body := decode[models.ErrorResponse](t, rr)
	if body.Error.Code != "AI_ERROR" {
		t.Fatalf("expected AI_ERROR, got %s", body.Error.Code)
	}
}

func TestDraftsExtract(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	io.WriteString(fw, "Photosynthesis turns light into energy.\n")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drafts/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	expectStatus(t, rr, http.StatusOK)
	out := decode[struct {
		SourceText string `json:"source_text"`
	}](t, rr)
	if out.SourceText != "Photosynthesis turns light into energy." {
		t.Fatalf("unexpected text %q", out.SourceText)
	}
}

func TestExplain(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	qs := seedMathAlgebra(t, ts)
	ts.do(t, http.MethodPost, "/api/v1/quiz/start", models.StartQuizRequest{Subject: "Math", Chapter: "Algebra"})
	ts.do(t, http.MethodPost, "/api/v1/quiz/session/submit", models.SubmitQuizRequest{UserAnswers: models.UserAnswers{}})

	ts.gen.text = "Because four."
	rr := ts.do(t, http.MethodPost, "/api/v1/attempts/latest/explain", models.ExplainRequest{QuestionID: qs[0].ID})
	expectStatus(t, rr, http.StatusOK)
	resp := decode[models.ExplainResponse](t, rr)
	if resp.Explanation != "Because four." {
		t.Fatalf("unexpected explanation %q", resp.Explanation)
	}

	ts.gen.text = ""
	rr = ts.do(t, http.MethodPost, "/api/v1/attempts/latest/explain", models.ExplainRequest{QuestionID: qs[1].ID})
	expectStatus(t, rr, http.StatusBadGateway)
	body := decode[models.ErrorResponse](t, rr)
	if body.Error.Message != services.ExplanationUnavailable {
		t.Fatalf("expected fixed unavailable message, got %q", body.Error.Message)
	}

	rr = ts.do(t, http.MethodPost, "/api/v1/attempts/latest/explain", models.ExplainRequest{QuestionID: "missing"})
	expectStatus(t, rr, http.StatusNotFound)
}

func TestProxyRoute(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())

	rr := ts.do(t, http.MethodGet, "/api/proxy", nil)
	expectStatus(t, rr, http.StatusMethodNotAllowed)
	if rr.Header().Get("Allow") != "POST" {
		t.Fatalf("expected Allow: POST")
	}

	rr = ts.do(t, http.MethodPost, "/api/proxy", map[string]string{})
	expectStatus(t, rr, http.StatusInternalServerError)
}

func TestRateLimitedAIRoutes(t *testing.T) {
	log := zerolog.Nop()
	s := store.NewMemoryStore()
	hub := websocket.NewHub(nil, log)
	cat := catalog.New(s, hub, log)
	cat.Load(context.Background())
	ctrl := quiz.NewController(s, cat, hub, log)
	gateway := services.NewGateway(&stubGenerator{text: "[]"}, 1, log)

	h := New(log,
		proxy.NewHandler(proxy.Config{}, log),
		handlers.NewLibraryHandler(cat, log),
		handlers.NewDraftsHandler(services.NewDraftBoard(gateway, cat, hub, log), services.NewSourceExtractor(1024), 1024, log),
		handlers.NewQuizHandler(ctrl, log),
		handlers.NewAttemptsHandler(ctrl, services.NewExplainer(gateway, ctrl, log), log),
		hub, "http://localhost:5173", 1)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/drafts/generate", bytes.NewReader([]byte(`{"source_text":"x","count":1}`)))
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected second AI call to be limited, got %v", codes)
	}

	// Non-AI routes are not limited.
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/library", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("library should not be rate limited, got %d", rr.Code)
		}
	}

	// The server's own generator reaches the proxy over loopback and is not
	// counted again; browsers are.
	proxyCall := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/proxy", bytes.NewReader([]byte(`{}`)))
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	for i := 0; i < 3; i++ {
		if code := proxyCall("127.0.0.1:40000"); code == http.StatusTooManyRequests {
			t.Fatalf("loopback proxy call %d was rate limited", i)
		}
	}
	proxyCall("10.0.0.2:1234")
	if code := proxyCall("10.0.0.2:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("expected browser proxy call limited, got %d", code)
	}
}
