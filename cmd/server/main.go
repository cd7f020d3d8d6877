package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pokazuha/backend/internal/config"
	"github.com/pokazuha/backend/internal/db"
	"github.com/pokazuha/backend/internal/es"
	"github.com/pokazuha/backend/internal/events"
	"github.com/pokazuha/backend/internal/googleauth"
	"github.com/pokazuha/backend/internal/httpserver"
	"github.com/pokazuha/backend/internal/logging"
	"github.com/pokazuha/backend/internal/repo"
	"github.com/pokazuha/backend/internal/service"
	"github.com/pokazuha/backend/internal/service/search"
	"github.com/pokazuha/backend/internal/storage"
	"github.com/pokazuha/backend/internal/tokens"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gormDB, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	if err := repo.Migrate(gormDB); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}
	if err := repo.SeedRoles(context.Background(), gormDB); err != nil {
		log.Fatalf("role seed error: %v", err)
	}
	if err := repo.SeedAdmin(context.Background(), gormDB, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("admin seed error: %v", err)
	}

	issuer, err := tokens.NewIssuer(cfg.JWTSecret, cfg.TokenIssuer, cfg.TokenAudience, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	producer := events.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	var index *search.Index
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
		index = &search.Index{ES: esClient, Name: cfg.ESIndex}
	}

	files, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}

	userRepo := &repo.UserRepo{DB: gormDB}
	tokenRepo := &repo.RefreshTokenRepo{DB: gormDB}
	postadRepo := &repo.PostadRepo{DB: gormDB}

	authSvc := &service.AuthService{
		DB:     gormDB,
		Users:  userRepo,
		Tokens: tokenRepo,
		Issuer: issuer,
		Google: googleauth.New(cfg.GoogleClientID),
		Events: producer,
	}
	postadSvc := &service.PostadService{
		DB:      gormDB,
		Postads: postadRepo,
		Index:   index,
		Events:  producer,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(logging.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		Auth:    &httpserver.AuthHTTP{Svc: authSvc},
		Postads: &httpserver.PostadHTTP{Svc: postadSvc, Files: files},
		Issuer:  issuer,
	})

	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()
	go purgeExpiredTokens(purgeCtx, tokenRepo, cfg.PurgeInterval, logger)

	go func() {
		if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}

// purgeExpiredTokens drops expired refresh tokens on a timer.
func purgeExpiredTokens(ctx context.Context, tokenRepo *repo.RefreshTokenRepo, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokenRepo.PurgeExpired(ctx)
			if err != nil {
				logger.Error("token_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("token_purge", "deleted", n)
			}
		}
	}
}
