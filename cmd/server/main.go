// Command server starts the recruiting platform HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hrselector/backend/internal/adapter/analyzer"
	httpserver "github.com/hrselector/backend/internal/adapter/httpserver"
	"github.com/hrselector/backend/internal/adapter/observability"
	"github.com/hrselector/backend/internal/adapter/repo/postgres"
	"github.com/hrselector/backend/internal/adapter/storage/local"
	tikaext "github.com/hrselector/backend/internal/adapter/textextractor/tika"
	"github.com/hrselector/backend/internal/app"
	"github.com/hrselector/backend/internal/config"
	"github.com/hrselector/backend/internal/service/ratelimiter"
	"github.com/hrselector/backend/internal/usecase"
)

func main() {
	// Best-effort: local development keeps settings in .env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.JWTSecret == "" && !cfg.IsDev() {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required outside dev")
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Infra: DB pool
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Repositories
	userRepo := postgres.NewUserRepo(pool)
	cvRepo := postgres.NewCVRepo(pool)
	candidateRepo := postgres.NewCandidateRepo(pool)

	// File storage for original documents
	files, err := local.New(cfg.UploadDir)
	if err != nil {
		slog.Error("upload dir init failed", slog.Any("error", err))
		os.Exit(1)
	}

	// External text extractor (Apache Tika)
	ext := tikaext.New(cfg.TikaURL)

	// Heuristic analyzer; SKILLS_FILE overrides the embedded dictionary.
	var an *analyzer.Heuristic
	if cfg.SkillsFile != "" {
		an, err = analyzer.NewFromFile(cfg.SkillsFile)
		if err != nil {
			slog.Error("skills dictionary load failed", slog.String("path", cfg.SkillsFile), slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		an = analyzer.New()
	}

	// Optional Redis-backed limiter for credential endpoints.
	var redisClient *redis.Client
	var limiter ratelimiter.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("redis url invalid", slog.Any("error", err))
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		rl := ratelimiter.NewRedisLuaLimiter(redisClient, pool, map[string]ratelimiter.BucketConfig{
			app.AuthBucket: ratelimiter.NewBucketConfigFromPerMinute(cfg.AuthRatePerMin),
		})
		if err := rl.WarmFromPostgres(ctx); err != nil {
			slog.Warn("rate limiter warm failed", slog.Any("error", err))
		}
		limiter = rl
	}

	// Usecases
	authSvc := usecase.NewAuthService(userRepo)
	cvSvc := usecase.NewCVService(cvRepo, ext, an, files)
	profileSvc := usecase.NewProfileService(userRepo, cvRepo)
	rankingSvc := usecase.NewRankingService(candidateRepo)

	// Readiness checks
	dbCheck, tikaCheck, redisCheck := app.BuildReadinessChecks(cfg, pool, redisClient)

	// HTTP server
	tokens := httpserver.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	srv := httpserver.NewServer(cfg, authSvc, cvSvc, profileSvc, rankingSvc, tokens, dbCheck, tikaCheck, redisCheck)
	handler := app.BuildRouter(cfg, srv, limiter)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
	pool.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
