// Command fincontrol-summary logs in to the finance API and prints the
// dashboard statistics of the account.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"fincontrol/internal/cli"
	"fincontrol/internal/log"
	"fincontrol/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentCLI)

	email := flag.String("email", os.Getenv("FINCONTROL_EMAIL"), "account e-mail (FINCONTROL_EMAIL)")
	password := flag.String("password", os.Getenv("FINCONTROL_PASSWORD"), "account password (FINCONTROL_PASSWORD)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if *email == "" || *password == "" {
		logger.Error("Missing credentials: set FINCONTROL_EMAIL and FINCONTROL_PASSWORD or pass -email and -password")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := cli.NewAPIClient(cfg, logger)
	user, cred, err := client.Login(ctx, *email, *password)
	if err != nil {
		logger.Error("Login failed", log.FieldError, err)
		os.Exit(1)
	}

	dashboard := services.NewDashboardService(client, logger)
	d, err := dashboard.Snapshot(ctx, cred)
	if err != nil {
		logger.Error("Failed to load dashboard", log.FieldError, err, log.FieldUserID, user.ID)
		os.Exit(1)
	}

	if err := cli.WriteSummary(os.Stdout, user, d.Stats); err != nil {
		logger.Error("Failed to write summary", log.FieldError, err)
		os.Exit(1)
	}
}
