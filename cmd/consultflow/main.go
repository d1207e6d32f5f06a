// consultflow 服务入口：组装存储、模型适配、智能体运行时与
// 工作流编排器，并暴露 Prometheus 指标端点。
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/consultflow/agent"
	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/config"
	"github.com/BaSui01/consultflow/internal/cache"
	"github.com/BaSui01/consultflow/internal/metrics"
	"github.com/BaSui01/consultflow/llm"
	"github.com/BaSui01/consultflow/llm/budget"
	"github.com/BaSui01/consultflow/llm/providers/openaicompat"
	"github.com/BaSui01/consultflow/workflow"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(registry)

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := artifact.NewMongoStore(connectCtx, cfg.Mongo, logger)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	defer store.Close(context.Background())

	clients := workflow.NewMongoClientStore(
		store.Client().Database(cfg.Mongo.Database).Collection("clients"),
	)

	deliverableCache := cache.NewManager(cfg.Redis, collector, logger)
	defer deliverableCache.Close()
	if err := deliverableCache.Ping(connectCtx); err != nil {
		// 缓存不可用只降级发布快照，不阻止启动
		logger.Warn("deliverable cache unreachable", zap.Error(err))
	}

	var provider llm.Provider = openaicompat.New(openaicompat.Config{
		Name:    "openai",
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: cfg.LLM.Timeout.Std(),
	}, logger)
	provider = llm.NewRateLimitedProvider(provider, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst, logger)

	governor := budget.NewGovernor(cfg.Budget, logger)
	runtime := agent.NewRuntime(cfg.Agent, provider, store, governor, collector, logger)

	var renderer workflow.Renderer
	if cfg.Renderer.BaseURL != "" {
		renderer = workflow.NewHTTPRenderer(cfg.Renderer.BaseURL, cfg.Renderer.Timeout.Std())
	}

	orchestrator := workflow.NewOrchestrator(cfg.Workflow, runtime, clients, store, renderer, deliverableCache, collector, logger)

	mux := http.NewServeMux()
	(&api{orchestrator: orchestrator, logger: logger}).register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "artifact store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
