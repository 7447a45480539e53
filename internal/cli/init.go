// Package cli provides common initialization shared by cmd/fincontrol and
// cmd/fincontrol-summary.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"fincontrol/internal/api"
	"fincontrol/internal/config"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
)

// LoadAndValidateConfig loads the .env file and the environment, builds the
// logger it describes and validates the rest. It exits the process on failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	if err := config.LoadEnvFile(); err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load .env file", log.FieldError, err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := SetupLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// SetupLogger builds the logger described by cfg and makes it the default.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logCfg.Output = out
	logger := log.New(logCfg)
	log.SetDefault(logger)
	return logger
}

// NewAPIClient returns a client for the configured remote API.
func NewAPIClient(cfg *config.Config, logger *log.Logger) *api.Client {
	return api.NewClient(api.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.APITimeout,
		RetryDelay: cfg.APIRetryDelay,
		Logger:     logger,
	})
}

// GracefulShutdown calls shutdown with a bounded context on SIGINT or
// SIGTERM. The returned context is cancelled when the signal arrives and
// the channel is closed once shutdown returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, shutdown func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if shutdown != nil {
			shutdown(shutdownCtx)
		}
	}()

	return ctx, done
}

// WriteSummary prints the dashboard statistics as an aligned table.
func WriteSummary(w io.Writer, user core.User, stats core.SummaryStatistics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Usuário\t%s <%s>\t\n", user.Name, user.Email)
	fmt.Fprintf(tw, "Receitas\t%s\t\n", stats.Income.BRL())
	fmt.Fprintf(tw, "Despesas\t%s\t\n", stats.Expense.BRL())
	fmt.Fprintf(tw, "Saldo\t%s\t\n", stats.Balance().BRL())
	fmt.Fprintf(tw, "Transações\t%d\t\n", stats.TotalTransactions)
	fmt.Fprintf(tw, "Tags\t%d\t\n", stats.TotalTags)
	if n := len(stats.Anomalies); n > 0 {
		fmt.Fprintf(tw, "Valores inválidos\t%d\t\n", n)
	}
	return tw.Flush()
}
