package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quizme-backend/internal/catalog"
	"quizme-backend/internal/config"
	"quizme-backend/internal/database"
	"quizme-backend/internal/handlers"
	"quizme-backend/internal/logger"
	"quizme-backend/internal/proxy"
	"quizme-backend/internal/quiz"
	"quizme-backend/internal/router"
	"quizme-backend/internal/services"
	"quizme-backend/internal/store"
	"quizme-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.Env).Msg("🚀 Starting QuizMe Backend...")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("✗ Invalid configuration")
	}
	log.Info().Msg("✓ Environment variables loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize Redis Clients (optional) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		var err error
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("✗ Redis connection failed")
		}
		defer redisClients.Close()
		log.Info().Msg("✓ Redis connected")
	}

	// ──── Step 3: Open Store ────
	st, err := openStore(ctx, cfg, redisClients, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("✗ Store initialization failed")
	}
	defer st.Close()
	st = store.WithPrefix(st, cfg.StoreKeyPrefix)
	log.Info().Str("backend", cfg.StoreBackend).Msg("✓ Store ready")

	// ──── Step 4: Start WebSocket Hub ────
	var pubsub *redis.Client
	if redisClients != nil {
		pubsub = redisClients.PubSub
	}
	wsHub := websocket.NewHub(pubsub, log)
	go wsHub.Run(ctx)
	log.Info().Bool("redis", pubsub != nil).Msg("✓ WebSocket hub started")

	// ──── Step 5: Load Library and Session State ────
	cat := catalog.New(st, wsHub, log)
	if err := cat.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("✗ Library load failed")
	}
	ctrl := quiz.NewController(st, cat, wsHub, log)

	// ──── Step 6: Initialize AI Gateway ────
	gen, closeGen, err := newGenerator(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ AI client initialization failed")
	}
	defer closeGen()
	gateway := services.NewGateway(gen, cfg.AIConcurrentReqs, log)
	log.Info().Str("provider", cfg.AIProvider).Int("concurrency", cfg.AIConcurrentReqs).Msg("✓ AI gateway initialized")

	if cfg.AIEndpoint == "" || cfg.AIAPIKey == "" {
		log.Warn().Msg("AI_ENDPOINT or AI_API_KEY not set; /api/proxy will report it is not configured")
	}

	// ──── Initialize Services ────
	board := services.NewDraftBoard(gateway, cat, wsHub, log)
	explainer := services.NewExplainer(gateway, ctrl, log)
	extractor := services.NewSourceExtractor(cfg.UploadMaxBytes)

	// ──── Initialize Handlers ────
	aiTimeout := time.Duration(cfg.AITimeoutSeconds) * time.Second
	proxyHandler := proxy.NewHandler(proxy.Config{
		Endpoint:     cfg.AIEndpoint,
		APIKey:       cfg.AIAPIKey,
		MaxBodyBytes: cfg.ProxyMaxBodyBytes,
		Timeout:      aiTimeout,
	}, log)
	libraryHandler := handlers.NewLibraryHandler(cat, log)
	draftsHandler := handlers.NewDraftsHandler(board, extractor, cfg.UploadMaxBytes, log)
	quizHandler := handlers.NewQuizHandler(ctrl, log)
	attemptsHandler := handlers.NewAttemptsHandler(ctrl, explainer, log)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		log,
		proxyHandler,
		libraryHandler,
		draftsHandler,
		quizHandler,
		attemptsHandler,
		wsHub,
		cfg.FrontendURL,
		cfg.AIRateLimitPerMinute,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: aiTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		wsHub.Close()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("✓ QuizMe Backend ready on http://localhost:%s", cfg.Port)
	log.Info().Msgf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Info().Msgf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func openStore(ctx context.Context, cfg *config.Config, redisClients *database.RedisClients, log zerolog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn().Msg("Memory store selected; state is lost on restart")
		return store.NewMemoryStore(), nil
	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store.NewSQLStore(db), nil
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(pool, database.Migrations); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("✓ Database migrations applied")
		return store.NewPostgresStore(pool), nil
	case config.StoreRedis:
		if redisClients == nil {
			return nil, fmt.Errorf("redis store requires REDIS_URL")
		}
		return store.NewRedisStore(redisClients.Store), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (services.TextGenerator, func(), error) {
	timeout := time.Duration(cfg.AITimeoutSeconds) * time.Second
	switch cfg.AIProvider {
	case config.AIProviderGemini:
		g, err := services.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	default:
		return services.NewProxyGenerator(cfg.AIProxyURL, timeout), func() {}, nil
	}
}
