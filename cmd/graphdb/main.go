package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/conure-db/graphdb/internal/config"
	"github.com/conure-db/graphdb/internal/repository"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		dataDir    = flag.String("data-dir", "", "data directory for repository state")
		prompt     = flag.String("prompt", "", "console prompt string")
		noColor    = flag.Bool("no-color", false, "disable colored console output")
	)
	flag.Parse()

	// Suppress the global logger some dependencies write through; use
	// our own logger instead, following cmd/conure-db/main.go.
	log.SetOutput(io.Discard)
	appLog := log.New(os.Stdout, "", log.LstdFlags)

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		appLog.Fatalf("load config: %v", err)
	}
	cli := CLIOverrides{DataDir: *dataDir, Prompt: *prompt}
	if isFlagSet("no-color") {
		cli.SetColor = true
		cli.NoColor = *noColor
	}
	cfg := mergeConfig(fileCfg, cli)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		appLog.Fatalf("mkdir: %v", err)
	}
	repo, err := repository.Open(cfg.DataDir)
	if err != nil {
		appLog.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	c := newConsole(cfg, repo)
	if err := c.run(); err != nil {
		appLog.Fatalf("console: %v", err)
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
