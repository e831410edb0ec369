package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/api"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/config"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/engine"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/logger"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/metrics"
)

func main() {
	addr := flag.String("addr", envOr("AUDIT_ADDR", ":8080"), "HTTP listen address")
	profilePath := flag.String("profile", envOr("AUDIT_PROFILE", "configs/profile.yaml"),
		"Path to threshold profile YAML; empty runs on built-in defaults")
	logLevel := flag.String("log-level", os.Getenv("AUDIT_LOG_LEVEL"), "Overrides the profile log level")
	flag.Parse()

	// ── Load profile ─────────────────────────────────────────────────────────
	var (
		loader  *config.Loader
		profile = config.Default()
	)
	if *profilePath != "" {
		l, err := config.NewLoader(*profilePath)
		if err != nil {
			log := logger.New(logger.Options{})
			log.Fatal().Err(err).Str("path", *profilePath).Msg("failed to load profile")
		}
		loader = l
		profile = l.Profile()
	}

	level := profile.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	log := logger.New(logger.Options{Level: level, Format: profile.Logging.Format})
	log.Info().
		Str("profile_version", profile.Version).
		Int("workers", profile.Engine.Workers).
		Int("queue_depth", profile.Engine.QueueDepth).
		Msg("profile loaded")

	// ── Engine ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := anomaly.DefaultRegistry()
	eng := engine.New(ctx, profile, registry, log)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	var profiles api.ProfileSource
	if loader != nil {
		profiles = loader
		loader.OnChange(func(p *config.Profile) {
			eng.SwapProfile(p)
			metrics.ProfileReloads.WithLabelValues("ok").Inc()
			log.Info().Str("profile_version", p.Version).Msg("profile hot-reloaded")
		})
		loader.OnError(func(err error) {
			metrics.ProfileReloads.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("hot-reload skipped: profile invalid")
		})
		stopWatch, err := loader.Watch()
		if err != nil {
			log.Warn().Err(err).Msg("profile watcher unavailable (hot-reload disabled)")
		} else {
			defer stopWatch()
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(eng, profiles, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop worker pool
	eng.Shutdown()
	log.Info().Msg("goodbye")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

