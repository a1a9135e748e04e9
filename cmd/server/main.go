// Command nisab-server starts the nisab-keeper HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amqadri/nisab-keeper/internal/config"
	"github.com/amqadri/nisab-keeper/internal/crypto"
	"github.com/amqadri/nisab-keeper/internal/limiter"
	"github.com/amqadri/nisab-keeper/internal/migrate"
	"github.com/amqadri/nisab-keeper/internal/repository/postgres"
	httpserver "github.com/amqadri/nisab-keeper/internal/server/http"
	"github.com/amqadri/nisab-keeper/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Parse()
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.RunAddress),
	)

	if cfg.JWTKey == "" {
		logger.Fatal("missing jwt verification key (--jwt-key)")
	}
	fieldKey, err := cfg.FieldKey()
	if err != nil {
		logger.Fatal("invalid field key", zap.Error(err))
	}
	codec, err := crypto.NewAEADCodec(fieldKey)
	if err != nil {
		logger.Fatal("field codec", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURI); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURI)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	db := &postgres.DB{Pool: pool}
	recordRepo := postgres.NewRecordRepo(db)
	assetRepo := postgres.NewAssetRepo(db)

	lim := limiter.NewPG(pool, cfg.UnlockWindow, cfg.UnlockMaxFail, cfg.UnlockBlock)

	svc := service.NewLifecycleService(recordRepo, assetRepo, codec, lim)

	auth := httpserver.NewAuth([]byte(cfg.JWTKey))
	h := httpserver.NewHandler(svc, logger, auth)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.Router(cfg.CORSOrigins),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.RunAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("application terminated", zap.Error(err))
	}
}
