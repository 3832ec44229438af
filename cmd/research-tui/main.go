// Research-tui — интерактивный терминальный фронт research-агента.
//
// Использование:
//
//	./research-tui
//	./research-tui -theme dracula
//
// Логи пишутся в <logs_dir>/research-tui.log: терминал занят интерфейсом.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/poncho-research/pkg/agent"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/tui"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: ./config.yaml if present)")
	theme := flag.String("theme", "default", "Color scheme: default, dark, light, dracula")
	timestamps := flag.Bool("timestamps", false, "Prefix queries and answers with time")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.FindConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.App.LogsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logs directory: %v\n", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.App.LogsDir, "research-tui.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	utils.SetLogOutput(logFile, cfg.App.LogLevel)

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	client, err := agent.New(ctx, agent.Config{AppConfig: cfg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create agent: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	emitter := events.NewChanEmitter(100)
	client.SetEmitter(emitter)

	_, chatModel := cfg.GetChatModel()
	model := tui.New(emitter.Subscribe(), tui.Config{
		Colors:        tui.GetColorScheme(*theme),
		ModelName:     chatModel.ModelName,
		MaxIterations: cfg.Agent.MaxIterations,
		ShowTimestamp: *timestamps,
	})
	model.OnQuery(func(query string) {
		// Ошибка уже пришла в TUI событием EventError
		if _, err := client.Execute(ctx, query); err != nil {
			utils.Warn("Research failed", "error", err)
		}
	})

	runErr := model.Run()

	// Сначала отменяем прогон: Emit в закрываемый канал ждёт ctx
	shutdown()
	emitter.Close()

	if runErr != nil {
		utils.Error("TUI stopped with error", "error", runErr)
		fmt.Fprintln(os.Stderr, runErr)
	}
}
