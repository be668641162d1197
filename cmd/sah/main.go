// Command sah wires together the resolver, prompt library, workflow store,
// execution engine, semantic index, and the optional status server from a
// loaded Config. It is a thin assembly point for manual smoke use, not a
// full CLI front-end.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/engine"
	"github.com/wballard/swissarmyhammer/internal/httpapi"
	"github.com/wballard/swissarmyhammer/internal/logger"
	"github.com/wballard/swissarmyhammer/internal/prompts"
	"github.com/wballard/swissarmyhammer/internal/resolver"
	"github.com/wballard/swissarmyhammer/internal/semantic"
	"github.com/wballard/swissarmyhammer/internal/validator"
	"github.com/wballard/swissarmyhammer/internal/workflow"
)

var version = "dev"

func main() {
	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
	}

	var err error
	switch command {
	case "serve":
		err = cmdServe()
	case "validate":
		err = cmdValidate()
	case "version", "-v", "--version":
		fmt.Printf("sah version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`sah - prompts, workflows, issues, and semantic code search

Usage:
  sah [command]

Commands:
  serve       Assemble the engine and start the optional status server
  validate    Validate loaded prompts and workflows, print a report
  version     Show version information
  help        Show this help

Environment:
  HOME               user-scope directory root
  SAH_CONFIG         path to a TOML config file (default: ~/.swissarmyhammer/config.toml)
  SAH_MAX_FILENAME_LEN  override the max filename length (default 100)
  GOOGLE_GEMINI_API_KEY  API key for the semantic index's embedding backend`)
}

func configPath() string {
	if p := os.Getenv("SAH_CONFIG"); p != "" {
		return p
	}
	return config.DefaultConfigPath()
}

// assemble builds every component from a loaded Config, in the dependency
// order each one requires: resolver-populated stores first, then the
// engine and index that sit on top of them.
func assemble() (*config.Config, *prompts.Library, *workflow.Store, *workflow.RunStore, *engine.Engine, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("ensure directories: %w", err)
	}

	log := logger.Setup(cfg)

	lib := prompts.New(cfg)
	wfStore := workflow.New(cfg)

	res := resolver.New(log)
	if err := res.LoadAll(cfg, lib); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("load prompts: %w", err)
	}
	if err := res.LoadAll(cfg, wfStore); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("load workflows: %w", err)
	}

	runStore := workflow.NewRunStore(cfg)
	eng := engine.New(cfg, log, lib, wfStore, runStore)

	return cfg, lib, wfStore, runStore, eng, nil
}

func cmdServe() error {
	cfg, _, wfStore, runStore, _, err := assemble()
	if err != nil {
		return err
	}

	var indexer *semantic.Indexer
	if cfg.Semantic.EmbeddingAPIKey != "" {
		embedder, err := semantic.NewEmbedder(&cfg.Semantic)
		if err == nil {
			store, err := semantic.OpenStore(&cfg.Semantic, embedder)
			if err == nil {
				indexer = semantic.NewIndexer(&cfg.Semantic, store, embedder)
			}
		}
	}

	if !cfg.Monitor.Enabled {
		fmt.Println("sah: monitor disabled, nothing to serve (engine and stores are assembled and idle)")
		return nil
	}

	server := httpapi.NewServer(cfg, runStore, wfStore, indexer)
	addr := fmt.Sprintf(":%d", cfg.Monitor.Port)
	fmt.Printf("sah status server listening on %s\n", addr)
	return http.ListenAndServe(addr, server.Handler())
}

func cmdValidate() error {
	cfg, lib, wfStore, _, _, err := assemble()
	if err != nil {
		return err
	}

	v := validator.New(&cfg.Validator)
	result := v.ValidateAll(lib, wfStore)

	for _, issue := range result.Issues {
		fmt.Printf("[%s] %s: %s\n", issue.Level, issue.FilePath, issue.Message)
	}
	fmt.Printf("\n%d files checked, %d errors, %d warnings\n", result.FilesChecked, result.Errors, result.Warnings)

	os.Exit(result.ExitCode())
	return nil
}
