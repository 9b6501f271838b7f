package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"nf-licencas.app/cloud/handlers"
	"nf-licencas.app/cloud/internal/config"
	"nf-licencas.app/cloud/internal/email"
	"nf-licencas.app/cloud/internal/licensing"
	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/internal/pagbank"
	"nf-licencas.app/cloud/internal/ratelimit"
	"nf-licencas.app/cloud/internal/version"
	"nf-licencas.app/cloud/storage"
)

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Warn("Using in-memory storage; licenses are lost on restart")
		return storage.NewMemoryStorage(), nil
	case config.BackendFile:
		return storage.NewFileStorage(cfg.StorageFile)
	case config.BackendSQLite:
		return storage.NewSQLiteStorage(cfg.DatabaseURL)
	case config.BackendRedis:
		return storage.NewRedisStorage(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newNotifier(cfg *config.Config) *email.LicenseMailer {
	var sender email.Sender = email.LogSender{}
	if cfg.SMTPConfigured() {
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
	} else {
		logger.Warn("SMTP not configured, license emails will only be logged")
	}
	return email.NewLicenseMailer(sender, cfg.MeuDanfeAPIKey, cfg.LicenseDays)
}

func main() {
	version.Load("VERSION")

	godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Release:          version.Version,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			log.Fatalf("sentry.Init: %s", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open license storage", map[string]interface{}{
			"backend": cfg.StorageBackend,
			"error":   err.Error(),
		})
		os.Exit(1)
	}
	defer store.Close()

	issuer := licensing.NewIssuer(store, newNotifier(cfg), licensing.IssuerConfig{
		Validity:        cfg.ValidityWindow(),
		Plan:            cfg.LicensePlan,
		MaxCodeAttempts: cfg.MaxCodeAttempts,
	})
	validator := licensing.NewValidator(store)

	client := pagbank.NewClient(cfg.PagBankNotificationURL, cfg.PagBankEmail, cfg.PagBankToken, cfg.PagBankTimeout)
	reconciler := pagbank.NewReconciler(client, cfg.PaidStatuses, cfg.AllowDirectPayload)
	if cfg.AllowDirectPayload {
		logger.Warn("ALLOW_DIRECT_PAYLOAD is on: unauthenticated JSON payments will issue licenses")
	}

	server := handlers.NewHttpServer(reconciler, issuer, validator, handlers.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		Limiter:           ratelimit.New(cfg.ValidateRateLimit, time.Minute),
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.PagBankTimeout + 20*time.Second,
	}

	go func() {
		logger.Info("NF license service starting", map[string]interface{}{
			"version": version.Version,
			"port":    cfg.Port,
			"storage": cfg.StorageBackend,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", map[string]interface{}{
				"error": err.Error(),
			})
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down", map[string]interface{}{
		"timeout": cfg.ShutdownTimeout.String(),
	})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
