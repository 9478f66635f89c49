package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"quizme-backend/internal/handlers"
	"quizme-backend/internal/middleware"
	"quizme-backend/internal/websocket"
)

func New(
	log zerolog.Logger,
	proxyHandler http.Handler,
	libraryHandler *handlers.LibraryHandler,
	draftsHandler *handlers.DraftsHandler,
	quizHandler *handlers.QuizHandler,
	attemptsHandler *handlers.AttemptsHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	aiRateLimitPerMinute int,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(frontendURL))

	// AI rate limiter (per IP)
	aiLimiter := middleware.NewRateLimiter(aiRateLimitPerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// The proxy answers every method itself so non-POST gets its 405 body.
	// Calls from the server's own generator were already counted on the
	// route that triggered them.
	r.With(aiLimiter.Except(middleware.FromLoopback)).Handle("/api/proxy", proxyHandler)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Library Routes ────
		r.Route("/library", func(r chi.Router) {
			r.Get("/", libraryHandler.Get)
			r.Get("/subjects", libraryHandler.Subjects)
			r.Get("/subjects/{subject}/chapters", libraryHandler.Chapters)
			r.Post("/questions", libraryHandler.CreateQuestion)
		})

		// ──── Draft Routes ────
		r.Route("/drafts", func(r chi.Router) {
			r.With(aiLimiter.Middleware).Post("/generate", draftsHandler.Generate)
			r.Post("/extract", draftsHandler.Extract)
			r.Post("/save", draftsHandler.Save)
			r.Get("/", draftsHandler.List)
			r.Delete("/", draftsHandler.Discard)
			r.Put("/{index}", draftsHandler.Edit)
			r.Delete("/{index}", draftsHandler.Remove)
		})

		// ──── Quiz Routes ────
		r.Route("/quiz", func(r chi.Router) {
			r.Post("/start", quizHandler.Start)
			r.Post("/start-random", quizHandler.StartRandom)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", quizHandler.Status)
				r.Delete("/", quizHandler.Abandon)
				r.Post("/resume", quizHandler.Resume)
				r.Post("/suspend", quizHandler.Suspend)
				r.Put("/answers", quizHandler.RecordAnswer)
				r.Put("/index", quizHandler.Navigate)
				r.Post("/submit", quizHandler.Submit)
			})
		})

		// ──── Attempt Routes ────
		r.Route("/attempts", func(r chi.Router) {
			r.Get("/", attemptsHandler.List)
			r.Get("/latest", attemptsHandler.Latest)
			r.With(aiLimiter.Middleware).Post("/latest/explain", attemptsHandler.Explain)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
