// Research-cli — разовое исследование из командной строки.
//
// Использование:
//
//	./research-cli "research the latest advances in battery technology"
//	./research-cli -debug -json "query"
//	./research-cli -traces          # список трасс в архиве trace_archive
//	./research-cli -trace <key>     # печать одной трассы из архива
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilkoid/poncho-research/pkg/agent"
	"github.com/ilkoid/poncho-research/pkg/config"
	"github.com/ilkoid/poncho-research/pkg/events"
	"github.com/ilkoid/poncho-research/pkg/s3storage"
	"github.com/ilkoid/poncho-research/pkg/utils"
)

// Version содержит версию утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: ./config.yaml if present)")
		debugFlag   = flag.Bool("debug", false, "Write a JSON trace to logs_dir and log at debug level")
		jsonOutput  = flag.Bool("json", false, "Output the full run result as JSON")
		verbose     = flag.Bool("v", false, "Print tool calls while the agent works")
		timeout     = flag.Duration("timeout", 5*time.Minute, "Overall research timeout")
		listTraces  = flag.Bool("traces", false, "List debug traces stored in trace_archive and exit")
		showTrace   = flag.String("trace", "", "Print the archived debug trace with this key and exit")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("research-cli version %s\n", Version)
		return
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.FindConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *debugFlag {
		cfg.App.Debug = true
		cfg.App.LogLevel = "debug"
	}
	utils.SetLogOutput(os.Stderr, cfg.App.LogLevel)

	if *listTraces {
		if err := printTraces(cfg.Archive); err != nil {
			fmt.Fprintf(os.Stderr, "Error listing traces: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if *showTrace != "" {
		if err := printTrace(cfg.Archive, *showTrace); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading trace: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: query argument is required")
		fmt.Fprintln(os.Stderr, "Usage: research-cli [flags] \"query\"")
		os.Exit(1)
	}
	query := flag.Arg(0)

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client, err := agent.New(ctx, agent.Config{AppConfig: cfg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating agent: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	if *verbose {
		client.SetEmitter(events.EmitterFunc(printProgress))
	}

	out, err := client.Execute(ctx, query)
	if err != nil {
		client.Close()
		fmt.Fprintf(os.Stderr, "Research failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(out.Result)
	fmt.Fprintf(os.Stderr, "\n%s after %d tool call(s) in %v\n",
		out.Termination, out.Iterations, out.Duration.Round(time.Millisecond))
}

// printTraces печатает содержимое архива трасс.
func printTraces(cfg config.S3Config) error {
	if !cfg.Enabled() {
		return fmt.Errorf("trace_archive is not configured")
	}
	archive, err := s3storage.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	traces, err := archive.ListTraces(ctx)
	if err != nil {
		return err
	}
	for _, t := range traces {
		fmt.Printf("%s  %8d  %s\n", t.LastModified.Format(time.RFC3339), t.Size, t.Key)
	}
	return nil
}

// printTrace печатает одну трассу из архива.
func printTrace(cfg config.S3Config, key string) error {
	if !cfg.Enabled() {
		return fmt.Errorf("trace_archive is not configured")
	}
	archive, err := s3storage.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	data, err := archive.Download(ctx, key)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// printProgress печатает ход исследования в stderr.
func printProgress(_ context.Context, ev events.Event) {
	switch data := ev.Data.(type) {
	case events.ToolCallData:
		fmt.Fprintf(os.Stderr, "→ %s %s\n", data.ToolName, data.Args)
	case events.ToolResultData:
		status := "ok"
		if data.IsError {
			status = "failed"
		}
		fmt.Fprintf(os.Stderr, "  %s (%d chars, %v)\n", status, len(data.Result), data.Duration.Round(time.Millisecond))
	case events.CompactedData:
		fmt.Fprintf(os.Stderr, "  memory folded %d turn(s): %d → %d tokens\n", data.FoldedTurns, data.TokensBefore, data.TokensAfter)
	}
}
