// Command formhandler serves the form submission endpoint a mirrored site
// posts to, relaying submissions by email.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stasazaryarozet/sitemirror/internal/formhandler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	smtpCfg := formhandler.SMTPConfig{
		Host:     getenv("SMTP_HOST", ""),
		Port:     getenv("SMTP_PORT", "587"),
		User:     getenv("SMTP_USER", ""),
		Password: getenv("SMTP_PASSWORD", ""),
		From:     getenv("FROM_EMAIL", "noreply@localhost"),
		To:       getenv("TO_EMAIL", ""),
	}
	if smtpCfg.Host == "" || smtpCfg.To == "" {
		logger.Error("SMTP_HOST and TO_EMAIL must be set")
		os.Exit(1)
	}

	if getenv("GIN_MODE", "") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := formhandler.NewSubmissionHandler(
		formhandler.NewSMTPSender(smtpCfg),
		getenv("SITE_NAME", "sitemirror"),
		getenv("REDIRECT_URL", ""),
		logger,
	)
	router := formhandler.NewRouter(handler, logger)

	addr := ":" + getenv("PORT", "8085")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("form handler listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
