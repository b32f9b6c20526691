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

	"github.com/rabbitask/rabbitask-server-go/internal/config"
	"github.com/rabbitask/rabbitask-server-go/internal/database"
	"github.com/rabbitask/rabbitask-server-go/internal/handler"
	"github.com/rabbitask/rabbitask-server-go/internal/jobs"
	"github.com/rabbitask/rabbitask-server-go/internal/middleware"
	"github.com/rabbitask/rabbitask-server-go/internal/redis"
	"github.com/rabbitask/rabbitask-server-go/internal/repository"
	"github.com/rabbitask/rabbitask-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

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

	if err := db.Migrate(context.Background(), cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	connRepo := repository.NewConnectionRepository(db.DB)
	codeRepo := repository.NewConnectionCodeRepository(db.DB)
	taskRepo := repository.NewTaskRepository(db.DB)
	tagRepo := repository.NewTagRepository(db.DB)
	priorityRepo := repository.NewPriorityRepository(db.DB)

	rateLimiter := service.NewRateLimiter(redisClient.Client)

	authzService := service.NewAuthzService(userRepo, connRepo)
	connService := service.NewConnectionService(db, codeRepo, connRepo, userRepo, authzService, rateLimiter)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL())
	taskService := service.NewTaskService(taskRepo, priorityRepo, authzService)
	tagService := service.NewTagService(tagRepo)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	loginLimitMiddleware := middleware.NewLoginRateLimitMiddleware(rateLimiter)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userRepo, authzService)
	connHandler := handler.NewConnectionHandler(connService, authzService)
	taskHandler := handler.NewTaskHandler(taskService)
	tagHandler := handler.NewTagHandler(tagService)
	maintenanceHandler := handler.NewMaintenanceHandler(connService, cfg.MaintenanceToken)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer pingCancel()

		status := "ok"
		code := http.StatusOK
		if err := db.Ping(pingCtx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else if err := redisClient.Ping(pingCtx).Err(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(loginLimitMiddleware.Handler)
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", userHandler.Routes())
	})

	r.Route("/connections", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", connHandler.Routes())
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", taskHandler.Routes())
	})

	r.Route("/tags", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Mount("/", tagHandler.Routes())
	})

	r.With(authMiddleware.Handler).Get("/priorities", taskHandler.Priorities)

	r.Mount("/maintenance", maintenanceHandler.Routes())

	cleanupJob := jobs.NewCleanupJob(connService, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
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
