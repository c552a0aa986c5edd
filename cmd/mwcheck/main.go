package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mwcheck/internal/core/app"
	"mwcheck/internal/core/config"
	"mwcheck/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./mwcheck.toml", "Path to config file")
	watch      = flag.Bool("watch", false, "Rescan when files under the target root change")
	trend      = flag.String("trend", "", "Print the stored run trend for a middleware and exit")
	root       = flag.String("root", "", "Override the scan root from the config")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("mwcheck v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath == "./mwcheck.toml" {
			cfg, err = config.Load("./mwcheck.example.toml")
		}
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if *root != "" {
		cfg.Scan.Root = *root
	} else if flag.NArg() > 0 {
		cfg.Scan.Root = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, VERSION)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	if cfg.Telemetry.MetricsAddr != "" {
		go serveMetrics(cfg.Telemetry.MetricsAddr)
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *trend != "" {
		report, err := a.Trend(*trend, time.Time{})
		if err != nil {
			slog.Error("failed to load trend", "middleware", *trend, "error", err)
			os.Exit(1)
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			slog.Error("failed to encode trend", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	if *watch {
		if err := a.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("watch failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Run(ctx); err != nil {
		slog.Error("check failed", "error", err)
		os.Exit(1)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics endpoint failed", "error", err)
	}
}
