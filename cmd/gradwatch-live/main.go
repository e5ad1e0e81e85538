package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gradwatch/gradwatch/internal/config"
	"github.com/gradwatch/gradwatch/internal/observability"
	"github.com/gradwatch/gradwatch/internal/publish"
	"github.com/gradwatch/gradwatch/internal/pumpportal"
)

func main() {
	// 1. Parse flags.
	configPath := flag.String("config", "", "Path to configuration file (optional, env vars apply on top)")
	flag.Parse()

	// 2. Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup logging.
	setupLogging(cfg.General, "gradwatch-live")

	if err := cfg.ValidateLive(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	log.Info().Msg("=============================================")
	log.Info().Msg("Gradwatch Live Listener - Starting")
	log.Info().Msg("FEED -> CLASSIFY -> DEDUP -> PUBLISH")
	log.Info().Msg("=============================================")

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Str("feed", cfg.Live.Endpoint).
		Str("webhook", cfg.Webhook.URL).
		Msg("Configuration loaded")

	// 4. Create publisher + metrics.
	publisher := publish.NewWebhookPublisher(cfg.Webhook.URL)

	var metrics *observability.MetricsRegistry
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetricsRegistry()
	}

	// 5. Create listener.
	listenerConfig := pumpportal.ListenerConfig{
		Endpoint:         cfg.Live.Endpoint,
		MigrationAccount: cfg.Live.MigrationAccount,
		ReconnectDelayMs: cfg.Live.ReconnectDelayMs,
		PingIntervalS:    cfg.Live.PingIntervalS,
		DedupCap:         cfg.Live.DedupCap,
	}
	if listenerConfig.MigrationAccount == "" {
		listenerConfig.MigrationAccount = pumpportal.RaydiumMigrationAccount
	}
	listener := pumpportal.NewListener(listenerConfig, publisher, metrics)

	// 6. Setup context + signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	// 7. HTTP health/stats/metrics endpoint.
	if cfg.Metrics.Enabled {
		go serveHTTP(ctx, cfg.Metrics.Port, listener, metrics)
	}

	// 8. Periodic stats logging.
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := listener.Stats()
				log.Info().
					Bool("connected", st.Connected).
					Int64("messages", st.MessagesRecv).
					Int64("graduations", st.Graduations).
					Int64("published", st.Published).
					Int64("duplicates", st.Duplicates).
					Int64("reconnects", st.Reconnects).
					Msg("[STATS]")
			}
		}
	}()

	// 9. Run until shutdown.
	listener.Run(ctx)

	// 10. Final stats.
	st := listener.Stats()
	log.Info().
		Int64("messages", st.MessagesRecv).
		Int64("graduations", st.Graduations).
		Int64("published", st.Published).
		Int64("duplicates", st.Duplicates).
		Int64("reconnects", st.Reconnects).
		Msg("Gradwatch Live Listener - Final Statistics")

	log.Info().Msg("Gradwatch Live Listener - Shutdown complete")
}

func serveHTTP(ctx context.Context, port int, listener *pumpportal.Listener, metrics *observability.MetricsRegistry) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"connected": listener.Stats().Connected,
		})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(listener.Stats())
	})
	mux.Handle("/metrics", metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("HTTP server started (health + stats + metrics)")

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("HTTP server error")
	}
}

func setupLogging(general config.GeneralConfig, service string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", service).
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().Timestamp().Str("service", service).
			Str("instance", general.InstanceID).Logger()
	}
}
