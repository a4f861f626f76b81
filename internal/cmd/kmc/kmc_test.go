package kmc

import (
	"context"
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("kmc", flag.ContinueOnError)
	t.Setenv("MORPHKMC_NETWORK_PATH", "in/network.json")
	t.Setenv("MORPHKMC_STORE", "sqlite")

	cfg, err := ParseConfig(fs, []string{"-params", "in/params.json", "-checkpoint-interval", "90s", "-resume"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.NetworkPath != "in/network.json" {
		t.Fatalf("network path = %q, want %q", cfg.NetworkPath, "in/network.json")
	}
	if cfg.ParamsPath != "in/params.json" {
		t.Fatalf("params path = %q, want %q", cfg.ParamsPath, "in/params.json")
	}
	if cfg.Store != "sqlite" {
		t.Fatalf("store = %q, want sqlite", cfg.Store)
	}
	if cfg.CheckpointInterval != 90*time.Second {
		t.Fatalf("checkpoint interval = %v, want 90s", cfg.CheckpointInterval)
	}
	if !cfg.Resume {
		t.Fatal("resume should be set")
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("kmc", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.OutputDir != "data/kmc" {
		t.Fatalf("output dir = %q, want data/kmc", cfg.OutputDir)
	}
	if cfg.Store != "file" {
		t.Fatalf("store = %q, want file", cfg.Store)
	}
	if cfg.CheckpointInterval != time.Hour {
		t.Fatalf("checkpoint interval = %v, want 1h", cfg.CheckpointInterval)
	}
	if cfg.HealthPort != 0 || cfg.Resume {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseConfig_RejectsBadEnv(t *testing.T) {
	t.Setenv("MORPHKMC_CHECKPOINT_INTERVAL", "soon")
	if _, err := ParseConfig(flag.NewFlagSet("kmc", flag.ContinueOnError), nil); err == nil {
		t.Fatal("expected env parse error")
	}
}

func TestRun_RequiresInputs(t *testing.T) {
	t.Setenv("MORPHKMC_OTEL_ENDPOINT", "")
	err := Run(context.Background(), Config{OutputDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error without network path")
	}
}
