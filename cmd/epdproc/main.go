// Command epdproc runs the impact processing pipeline over the stored
// buildups and prints a summary of the processed results. It is the
// operational entry point for batch (re)processing; interactive callers
// use the core service API directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"epdcore/internal/config"
	"epdcore/internal/core"
	"epdcore/internal/docstore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("epdproc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "epdcore.yaml", "path to the configuration file")
	refresh := fs.Bool("refresh", false, "reprocess every buildup, ignoring cached timestamps")
	metricsListen := fs.String("metrics-listen", "", "address to serve prometheus metrics on (empty disables)")
	tracePath := fs.String("trace", "", "file to append JSON trace spans to (empty disables)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	cfg.ExportEnv()
	logger := newLogger(cfg.Logging, stderr)

	ctx := context.Background()
	engine := core.DefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		logger.Error("open persistent store", "error", err)
		return 1
	}
	defer closeStore(store, logger)

	docs, err := docstore.Open(ctx)
	if err != nil {
		logger.Error("open document store", "error", err)
		return 1
	}

	opts := []core.Option{core.WithLogger(logger)}
	if *metricsListen != "" {
		registry := prometheus.NewRegistry()
		opts = append(opts, core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(registry)))
		go serveMetrics(*metricsListen, registry, logger)
	}
	if *tracePath != "" {
		f, err := os.OpenFile(*tracePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Error("open trace file", "error", err)
			return 1
		}
		defer f.Close()
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}

	svc := core.NewService(store, core.NewCatalog(store, docs), opts...)
	if *refresh {
		svc.MarkAllStale()
	}

	started := time.Now()
	combined, err := svc.ProcessAllBuildups(ctx)
	if err != nil {
		logger.Error("process buildups", "error", err)
		return 1
	}

	fullyProcessed := 0
	for _, c := range combined {
		status := "partial"
		if c.Processed.FullyProcessed {
			status = "ok"
			fullyProcessed++
		}
		line := fmt.Sprintf("buildup %d %-30q %s products=%d", c.ID, c.Name, status, len(c.Processed.ProcessedProducts))
		if msg, ok := svc.ProcessingError(c.ID); ok {
			line += " error=" + msg
		}
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintf(stdout, "processed %d/%d buildups fully in %s\n",
		fullyProcessed, len(combined), time.Since(started).Round(time.Millisecond))
	return 0
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener stopped", "error", err)
	}
}

func closeStore(store core.PersistentStore, logger *slog.Logger) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}
}
