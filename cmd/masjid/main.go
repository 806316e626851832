package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"masjid/internal/auth"
	"masjid/internal/cli"
	apphttp "masjid/internal/http"
	"masjid/internal/log"
	"masjid/internal/media"
	"masjid/internal/report"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting masjid server")

	res := cli.InitBackend(context.Background(), logger, cfg)

	identity := auth.NewService(res.Store, auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL), auth.Config{
		CountryCode: cfg.DefaultCountryCode,
		AdminPhones: cfg.AdminPhones,
	})
	if len(cfg.AdminPhones) == 0 {
		logger.Warn("ADMIN_PHONES is empty; nobody can approve new accounts from the web UI")
	}

	deps := apphttp.Deps{
		Balance: res.Balance,
		Auth:    identity,
		Reports: report.NewRenderer(report.Options{
			PreparedBy: cfg.ReportPreparedBy,
			ApprovedBy: cfg.ReportApprovedBy,
		}),
		Media:         media.NewStore(cfg.UploadsDir, cfg.MaxUploadBytes),
		Logger:        log.New(log.Config{Handler: logger.Handler()}),
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.CookieSecure,
		Ready:         res.Ping,
	}
	if res.AMQP != nil {
		deps.MessagingHealthy = res.AMQP.Healthy
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Listening",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"uploads_dir", cfg.UploadsDir,
		"amqp_enabled", res.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
