// Research-server — HTTP фронт research-агента.
//
// Использование:
//
//	./research-server
//	./research-server -config config.yaml
//
//	curl -X POST localhost:8080/ -d '{"query":"research the latest advances in battery technology"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/poncho-research/internal/observability"
	"github.com/ilkoid/poncho-research/internal/server"
	"github.com/ilkoid/poncho-research/pkg/agent"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: ./config.yaml if present)")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.FindConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// Логгер ещё не инициализирован
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	utils.InitLogger(cfg.App.LogLevel, cfg.App.LogPretty)

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	if err := run(ctx, cfg); err != nil {
		utils.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	client, err := agent.New(ctx, agent.Config{AppConfig: cfg})
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	defer client.Close()

	var metrics *observability.Metrics
	if cfg.Server.MetricsEnabled {
		metrics = observability.NewMetrics()
		client.SetEmitter(metrics)
		utils.Info("Prometheus metrics enabled at /metrics")
	}

	srv := server.New(client, cfg.Server, metrics)
	if store := client.History(); store != nil {
		srv.WithHistory(store)
		utils.Info("Run history enabled at /runs", "path", cfg.History.Path)
	}
	return srv.ListenAndServe(ctx)
}
