package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/codekiln/langstar/internal/app"
	"github.com/codekiln/langstar/internal/config"
	"github.com/codekiln/langstar/internal/logging"
	"github.com/codekiln/langstar/internal/mcpserver"
	"github.com/codekiln/langstar/internal/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config.yaml (default: $XDG_CONFIG_HOME/langstar/config.yaml)")
		addr       = flag.String("addr", ":8090", "Listen address")
		logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger := logging.NewLogger(cfg, "langstar-mcp", os.Stdout)

	if envAddr := os.Getenv("LANGSTAR_MCP_ADDR"); envAddr != "" {
		*addr = envAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := app.New(cfg, logger, app.Options{Observer: metrics.NewPollMetrics(reg)})
	srv := mcpserver.New(a.Manager, a, reg, app.Version, logger)

	// Waits run inside tool calls, so the write timeout has to cover a full
	// poll timeout.
	httpSrv := &http.Server{
		Addr:         *addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.PollTimeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info().Str("addr", *addr).Str("control_plane", cfg.BaseURL()).Msg("MCP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-done
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	fmt.Println("MCP server stopped")
}
