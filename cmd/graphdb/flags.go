package main

import "github.com/conure-db/graphdb/internal/config"

// CLIOverrides carries CLI-provided values. Empty strings mean "not
// set", following the teacher's cmd/conure-db/runtime_config.go
// convention.
type CLIOverrides struct {
	DataDir  string
	Prompt   string
	NoColor  bool
	SetColor bool
}

// mergeConfig applies CLI overrides on top of a loaded file Config,
// then fills in any field neither source set, mirroring
// cmd/conure-db/runtime_config.go's mergeConfig.
func mergeConfig(fileCfg config.Config, cli CLIOverrides) config.Config {
	cfg := fileCfg

	if cli.DataDir != "" {
		cfg.DataDir = cli.DataDir
	}
	if cli.Prompt != "" {
		cfg.Prompt = cli.Prompt
	}
	if cli.SetColor {
		cfg.NoColor = cli.NoColor
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "./graphdb-data"
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "graphdb> "
	}
	if cfg.SessionMaxReentry == 0 {
		cfg.SessionMaxReentry = 10000
	}

	return cfg
}
