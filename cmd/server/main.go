package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leonardcser/kvcache/internal/config"
	"github.com/leonardcser/kvcache/internal/engine"
	"github.com/leonardcser/kvcache/internal/logger"
	"github.com/leonardcser/kvcache/internal/tools"
)

func main() {
	configPath := flag.String("config", os.Getenv("KVCACHE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logPath := cfg.Logging.Path
	if logPath == "" {
		logPath = logger.DefaultPath()
	}
	if err := logger.Init(logPath, cfg.Logging.Level, logger.Rotation{
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting kvcache MCP server")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng, err := engine.Open(cfg, logger.L(), reg)
	if err != nil {
		logger.Errorf("Failed to open cache engine: %v", err)
		panic(err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Errorf("Failed to close cache engine: %v", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	s := server.NewMCPServer(
		"kvcache",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	tools.Register(s, eng.Cache)
	logger.Infof("Registered cache tools for engine %s", eng.Name)

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.L().Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
