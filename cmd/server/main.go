package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/config"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/database"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/handler"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/jobs"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/middleware"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/redis"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/repository"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/service"
	"github.com/martinsmelkis/bartering-app-backend-sub000/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	identityRepo := repository.NewIdentityRepository(db.DB)
	relationshipRepo := repository.NewRelationshipRepository(db.DB)
	offlineRepo := repository.NewOfflineMessageRepository(db.DB)
	receiptRepo := repository.NewReceiptRepository(db.DB)
	transactionRepo := repository.NewTransactionRepository(db.DB)
	analyticsRepo := repository.NewAnalyticsRepository(db.DB)

	pool := service.NewWorkerPool(cfg.SideEffectWorkers, cfg.SideEffectQueueSize)
	defer pool.Close()

	table := ws.NewTable()
	announcer := ws.NewAnnouncer(table)

	keyResolver := service.NewKeyResolver(identityRepo, table, cfg.KeyCacheTTL())
	authenticator := service.NewAuthenticator(keyResolver, relationshipRepo, cfg.AuthFreshness())
	mailbox := service.NewMailbox(offlineRepo)
	receipts := service.NewReceipts(receiptRepo)
	notifier := service.NewNotifier(redisClient)
	engagement := service.NewEngagement(analyticsRepo, transactionRepo, pool, announcer)

	router := ws.NewRouter(table, authenticator, keyResolver, mailbox, receipts, engagement, notifier, pool, cfg.AllowedOrigin)
	receiptHandler := handler.NewReceiptHandler(receipts)
	fileNoticeHandler := handler.NewFileNoticeHandler(notifier)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	if isProduction && cfg.AllowedOrigin == "" {
		log.Warn().Msg("ALLOWED_ORIGIN not set; websocket origin checks rely on the edge proxy")
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Get("/ws", router.ServeHTTP)

	r.Route("/v1/receipts", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Mount("/", receiptHandler.Routes())
	})

	r.Route("/v1/files", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Mount("/", fileNoticeHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		offlineRepo, receiptRepo,
		cfg.OfflineRetention(), cfg.OfflineSafetyBound(), cfg.ReceiptRetention(),
		cfg.CleanupInterval(),
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// WriteTimeout stays zero; websocket connections outlive any sane value.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
