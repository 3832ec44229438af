// Research-mcp — research-агент как MCP сервер на stdio.
//
// Логи пишутся в stderr: stdout занят протоколом.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/poncho-research/internal/mcpserver"
	"github.com/ilkoid/poncho-research/pkg/agent"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// Version содержит версию сервера (заполняется при сборке)
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: ./config.yaml if present)")
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

	utils.SetLogOutput(os.Stderr, cfg.App.LogLevel)

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	client, err := agent.New(ctx, agent.Config{AppConfig: cfg})
	if err != nil {
		utils.Error("Failed to create agent", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := mcpserver.New("research-agent", Version, client).Start(ctx); err != nil && ctx.Err() == nil {
		utils.Error("MCP server stopped with error", "error", err)
		os.Exit(1)
	}
}
