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
	"github.com/gradwatch/gradwatch/internal/helius"
	"github.com/gradwatch/gradwatch/internal/observability"
	"github.com/gradwatch/gradwatch/internal/publish"
	"github.com/gradwatch/gradwatch/internal/scanner"
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
	setupLogging(cfg.General, "gradwatch-scanner")

	if err := cfg.ValidatePoll(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	log.Info().Msg("=============================================")
	log.Info().Msg("Gradwatch Survivor Scanner - Starting")
	log.Info().Msg("DISCOVER -> ENRICH -> RANK -> PUBLISH")
	log.Info().Msg("=============================================")

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Int("poll_interval_ms", cfg.Scan.PollIntervalMs).
		Int("min_holders", cfg.Scan.MinHolders).
		Int("min_age_minutes", cfg.Scan.MinAgeMinutes).
		Int("top_k", cfg.Scan.TopK).
		Bool("webhook_enabled", cfg.Webhook.URL != "").
		Msg("Configuration loaded")

	// 4. Create Helius RPC client.
	rpc := helius.NewClient(helius.Config{
		Endpoint:     cfg.RPC.Endpoint,
		Timeout:      time.Duration(cfg.RPC.TimeoutS) * time.Second,
		MaxRetries:   cfg.RPC.MaxRetries,
		RateLimitRPS: cfg.RPC.RateLimitRPS,
	})

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rpc.Health(healthCtx); err != nil {
		log.Warn().Err(err).Msg("RPC health check failed (continuing, may be rate-limited)")
	} else {
		log.Info().Msg("Helius RPC: connected")
	}
	healthCancel()

	// 5. Create publisher. Without a URL the cycle still runs, publish is a no-op.
	var publisher publish.Publisher
	if cfg.Webhook.URL != "" {
		publisher = publish.NewWebhookPublisher(cfg.Webhook.URL)
	} else {
		log.Warn().Msg("No webhook URL configured - survivors will be logged only")
	}

	// 6. Create metrics registry.
	var metrics *observability.MetricsRegistry
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetricsRegistry()
	}

	// 7. Wire the pipeline.
	discoverConfig := scanner.DiscoverConfig{
		Program:         helius.PumpAMMProgram,
		PageSize:        cfg.Scan.PageSize,
		TxSamplePerPage: cfg.Scan.TxSamplePerPage,
		MaxPages:        cfg.Scan.MaxPages,
		TxLookupDelay:   time.Duration(cfg.Scan.TxLookupDelayMs) * time.Millisecond,
	}
	if cfg.Scan.Program != "" {
		discoverConfig.Program = helius.Pubkey(cfg.Scan.Program)
	}
	discoverer := scanner.NewDiscoverer(discoverConfig, rpc)
	enricher := scanner.NewEnricher(rpc, cfg.Scan.MinHolders)

	poller := scanner.NewPoller(scanner.PollerConfig{
		Interval:   time.Duration(cfg.Scan.PollIntervalMs) * time.Millisecond,
		MinAge:     time.Duration(cfg.Scan.MinAgeMinutes) * time.Minute,
		MinHolders: cfg.Scan.MinHolders,
		TopK:       cfg.Scan.TopK,
	}, discoverer, enricher, rpc, publisher, metrics)

	// 8. Setup context + signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	// 9. HTTP health/stats/metrics endpoint.
	if cfg.Metrics.Enabled {
		go serveHTTP(ctx, cfg.Metrics.Port, poller, rpc, metrics)
	}

	// 10. Run until shutdown.
	if err := poller.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Poller error")
	}

	// 11. Final stats.
	stats := poller.Stats()
	log.Info().
		Int64("cycles", stats.CycleCount).
		Int64("failed_cycles", stats.FailedCycles).
		Int64("survivors_total", stats.SurvivorsTotal).
		Int64("published_total", stats.PublishedTotal).
		Int64("credits_used", stats.CreditsUsed).
		Msg("Gradwatch Survivor Scanner - Final Statistics")

	log.Info().Msg("Gradwatch Survivor Scanner - Shutdown complete")
}

func serveHTTP(ctx context.Context, port int, poller *scanner.Poller, rpc *helius.Client, metrics *observability.MetricsRegistry) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"poller": poller.Stats(),
			"rpc":    rpc.Stats(),
		})
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
