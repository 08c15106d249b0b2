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

	"sidedoor/internal/balancer"
	"sidedoor/internal/config"
	"sidedoor/internal/health"
	"sidedoor/internal/logging"
	"sidedoor/internal/metrics"
	"sidedoor/internal/transport"
	"sidedoor/internal/types"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		requestURL  = flag.String("url", "", "Absolute URL to fetch")
		method      = flag.String("method", http.MethodGet, "HTTP method")
		showStats   = flag.Bool("stats", false, "Print the diagnostics snapshot after the request")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sidedoor %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if *requestURL == "" {
		fmt.Fprintln(os.Stderr, "usage: sidedoor -url <absolute url> [-config <file>]")
		os.Exit(2)
	}

	logger, err := logging.NewZap("info", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile, logger)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Rebuild with the configured level
	logger, err = logging.NewZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector()
	prober := health.NewPingProber(cfg.HealthCheck.Timeout)

	registry := health.NewRegistry(cfg, prober, collector, logger)
	registry.Start()
	defer registry.Stop()

	lb, err := balancer.New(cfg, registry, logger)
	if err != nil {
		logger.Error("Failed to initialize load balancer", "error", err)
		os.Exit(1)
	}

	handler := transport.New(transport.Options{
		Config:    cfg,
		Health:    registry,
		Balancer:  lb,
		Logger:    logger,
		Collector: collector,
	})

	resp, err := handler.Execute(ctx, &types.Request{
		Method: *method,
		URL:    *requestURL,
	})
	if err != nil {
		logger.Error("Request failed", "url", *requestURL, "error", err)
		if *showStats {
			printSnapshot(lb)
		}
		os.Exit(1)
	}

	logger.Info("Request completed",
		"url", *requestURL,
		"status", resp.StatusCode,
		"body_bytes", len(resp.Body),
	)

	os.Stdout.Write(resp.Body)
	fmt.Println()

	if *showStats {
		printSnapshot(lb)
	}
}

func printSnapshot(lb *balancer.Balancer) {
	out, err := json.MarshalIndent(lb.Snapshot(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render snapshot: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, string(out))
}
