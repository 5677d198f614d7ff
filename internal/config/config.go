// Package config is the engine's YAML configuration layer, grounded on
// the teacher's pkg/config/config.go: a tolerant Load that returns a
// zero Config for a missing/empty path. Field set is adapted from the
// teacher's raft-cluster shape to this engine's embedded, single-process
// shape (data directory, session re-entry bound, console defaults — no
// raft/HTTP addresses, since there is no network front-end here).
// Defaulting and CLI-flag precedence live in cmd/graphdb, following the
// teacher's own split between pkg/config (bare Load) and
// cmd/conure-db/runtime_config.go (merge + defaults).
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines runtime configuration loaded from YAML and/or flags.
type Config struct {
	DataDir string `yaml:"data_dir"`

	// SessionMaxReentry bounds how many times a Session re-enters
	// itself while WaitForCurrentTx, before giving up with an error
	// (spec.md §5: "the handler MUST bound re-entry depth"). Zero
	// means "use the package default".
	SessionMaxReentry int `yaml:"session_max_reentry"`

	// SnapshotInterval is read from the config file but not used by
	// the console: it has no background snapshot loop, and snapshots
	// are taken only by explicit :save commands.
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	// Prompt is the interactive console's prompt string.
	Prompt string `yaml:"prompt"`

	// NoColor disables fatih/color output in the console, for
	// non-interactive/CI use.
	NoColor bool `yaml:"no_color"`
}

// Load reads a YAML config file from path. If path is empty or the
// file does not exist, returns an empty Config and nil error.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close config file %q: %v\n", path, closeErr)
		}
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
