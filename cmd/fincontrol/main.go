package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fincontrol/internal/backend"
	"fincontrol/internal/cache"
	"fincontrol/internal/cli"
	"fincontrol/internal/events"
	"fincontrol/internal/export/sheets"
	apphttp "fincontrol/internal/http"
	"fincontrol/internal/log"
	"fincontrol/internal/services"
	"fincontrol/internal/session"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()

	client := cli.NewAPIClient(cfg, logger)

	dashboard := services.NewDashboardService(client, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	caches := cache.NewManager(logger)

	checks := []apphttp.ReadinessCheck{{Name: "api", Check: client.Ping}}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid session backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	sessions, err := backend.NewSessionStore(backendCfg, logger)
	if err != nil {
		logger.Error("Failed to initialize session store", log.FieldError, err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}
	if sessions.Cleanup != nil {
		defer func() {
			if err := sessions.Cleanup(); err != nil {
				logger.Error("Failed to close session store", log.FieldError, err)
			}
		}()
	}
	if sessions.Cleaner != nil {
		caches.Register(sessions.Cleaner)
	}
	if sessions.Ping != nil {
		checks = append(checks, apphttp.ReadinessCheck{Name: "sessions", Check: sessions.Ping})
	}
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	// A nil *events.Client must not end up inside the Publisher interface.
	var publisher services.Publisher
	if cfg.EventsEnabled() {
		ev, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer ev.Close()
		publisher = ev
		go func() {
			if err := ev.Subscribe(ctx, services.HandleChange(dashboard, logger)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change event subscription stopped", log.FieldError, err)
			}
		}()
		logger.Info("Change events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Change events disabled - no AMQP_URL provided")
	}

	deps := apphttp.Deps{
		Auth:               client,
		Sessions:           session.NewManager(sessions.Store, cfg.SessionTTL, cfg.CookieSecure, logger),
		Dashboard:          dashboard,
		Transactions:       services.NewTransactionService(client, dashboard, publisher, logger),
		Tags:               services.NewTagService(client, dashboard, publisher, logger),
		Users:              services.NewUserService(client, dashboard, publisher, logger),
		Checks:             checks,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}

	if cfg.ExportEnabled() {
		exporter, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetPrefix:     cfg.GoogleSheetPrefix,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		deps.Exporter = exporter
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting fincontrol server",
		"port", cfg.Port,
		"api", client.BaseURL(),
		"session_backend", cfg.SessionBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
