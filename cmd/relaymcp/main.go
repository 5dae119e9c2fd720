package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaymcp/relaymcp/internal/bridge"
	"github.com/relaymcp/relaymcp/internal/config"
	"github.com/relaymcp/relaymcp/internal/frontend"
	"github.com/relaymcp/relaymcp/internal/logx"
	"github.com/relaymcp/relaymcp/internal/metrics"
	"github.com/relaymcp/relaymcp/internal/server"
	"github.com/relaymcp/relaymcp/internal/session"
	"github.com/relaymcp/relaymcp/internal/state"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.Config
	cfg.BindFlags(flag.CommandLine)
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "relaymcp version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Printf("relaymcp version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}

	if err := cfg.Finalize(); err != nil {
		fmt.Fprintln(os.Stderr, "relaymcp:", err)
		os.Exit(1)
	}
	logx.Configure(cfg.LogLevel)

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	var healthStore state.Store
	if cfg.StateRedisAddr != "" {
		rs, err := state.NewRedisStore(cfg.StateRedisAddr)
		if err != nil {
			logx.Log.Fatal().Err(err).Msg("connect redis state store")
		}
		healthStore = rs
		logx.Log.Info().Str("addr", logx.MaskURL(cfg.StateRedisAddr)).Msg("using redis state store")
	} else {
		healthStore = state.NewMemoryStore()
	}

	table := session.NewTable()
	br := bridge.New(cfg.OutputMode, cfg.Endpoint, cfg.ConnectTimeout)

	// The proxy serves exactly one downstream transport per process;
	// cfg.InputMode (validated by Finalize) selects which frontend
	// listener gets built and mounted.
	var listener server.Listener
	switch cfg.InputMode {
	case config.ModeSSE:
		listener = frontend.NewSSEListener(cfg.SSEEndpoint, cfg.MessagePath, table, br.Admit, br.Route, br.End)
	case config.ModeStreamable:
		listener = frontend.NewStreamableListener(cfg.HTTPEndpoint, table, br.Admit, br.Route, br.End)
	}

	metricsSameAddr := cfg.MetricsAddr == fmt.Sprintf(":%d", cfg.Port)
	handler := server.New(&cfg, reg, table, healthStore, metricsSameAddr, listener)

	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: handler}
	var metricsSrv *http.Server
	if !metricsSameAddr {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: server.MetricsHandler(reg)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Log.Warn().Msg("shutdown signal received")
		healthStore.Store(state.Health{Status: "draining"})
		listener.Shutdown()
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logx.Log.Error().Err(err).Msg("server shutdown")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logx.Log.Error().Err(err).Msg("metrics server shutdown")
			}
		}
	}()

	if metricsSrv != nil {
		go func() {
			logx.Log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.Log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	healthStore.Store(state.Health{Status: "ok"})
	logx.Log.Info().
		Int("port", cfg.Port).
		Str("input_mode", string(cfg.InputMode)).
		Str("output_mode", string(cfg.OutputMode)).
		Str("endpoint", logx.MaskURL(cfg.Endpoint)).
		Msg("relaymcp starting")

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Log.Fatal().Err(err).Msg("server error")
	}
}
