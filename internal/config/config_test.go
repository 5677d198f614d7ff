package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingPathReturnsZeroConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg != (Config{}) {
		t.Fatalf("expected zero Config, got %+v", cfg)
	}

	cfg, err = Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load(missing file): %v", err)
	}
	if cfg != (Config{}) {
		t.Fatalf("expected zero Config for a missing file, got %+v", cfg)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphdb.yaml")
	yaml := "data_dir: /var/lib/graphdb\nsession_max_reentry: 42\nsnapshot_interval: 30s\nprompt: \"db> \"\nno_color: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Config{
		DataDir:           "/var/lib/graphdb",
		SessionMaxReentry: 42,
		SnapshotInterval:  30 * time.Second,
		Prompt:            "db> ",
		NoColor:           true,
	}
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}
