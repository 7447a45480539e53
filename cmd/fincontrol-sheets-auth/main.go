// Command fincontrol-sheets-auth runs the OAuth consent flow once and saves
// the token the Google Sheets export uses when no service account is set.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/oauth2"

	"fincontrol/internal/export/sheets"
	"fincontrol/internal/log"
)

func main() {
	clientFile := flag.String("client", os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"), "OAuth client JSON file")
	tokenFile := flag.String("token", envOr("GOOGLE_OAUTH_TOKEN_FILE", "token.json"), "where to save the token")
	port := flag.String("port", envOr("OAUTH_REDIRECT_PORT", "8085"), "local port for the redirect")
	wait := flag.Duration("timeout", 5*time.Minute, "how long to wait for consent")
	flag.Parse()

	logCfg := log.DefaultConfig()
	logCfg.Component = log.ComponentCLI
	logCfg.Output = os.Stderr
	logger := log.New(logCfg)

	cfg, err := sheets.LoadOAuthConfig(*clientFile)
	if err != nil {
		logger.Error("Failed to load OAuth client", log.FieldError, err)
		os.Exit(1)
	}
	cfg.RedirectURL = "http://localhost:" + *port + "/callback"

	state := randomState()
	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: "localhost:" + *port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Autorização concluída. Pode fechar esta janela.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server failed", log.FieldError, err)
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		logger.Error("Authorization not completed", log.FieldError, ctx.Err())
		os.Exit(1)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := sheets.SaveToken(*tokenFile, tok); err != nil {
		logger.Error("Failed to save token", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Saved OAuth token", "path", *tokenFile)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
