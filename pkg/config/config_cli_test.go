package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	writeFile(t, path, `{
  "llm": {"provider": "openai", "model": "model-a"},
  "telemetry": {"exporter": "stdout"}
}`)
	os.Setenv("GNOSIS_LLM_PROVIDER", "openai")
	defer os.Unsetenv("GNOSIS_LLM_PROVIDER")

	cfg, err := LoadWithCLI([]string{
		"--config", path,
		"--set", "llm.provider=mock",
		"--set", "telemetry.enabled=true",
		"--set", "embedding.sync_threshold=8",
		"--set", "agent.max_iterations=5",
		"--set", `ingest.extensions=["md","txt"]`,
	})
	if err != nil {
		t.Fatalf("LoadWithCLI() error: %v", err)
	}
	if cfg.LLM.Provider != "mock" {
		t.Errorf("LLM.Provider = %q, want the --set override to beat file and env", cfg.LLM.Provider)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled should be true after override")
	}
	if cfg.Embedding.SyncThreshold != 8 {
		t.Errorf("Embedding.SyncThreshold = %d, want 8", cfg.Embedding.SyncThreshold)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("Agent.MaxIterations = %d, want 5", cfg.Agent.MaxIterations)
	}
	if len(cfg.Ingest.Extensions) != 2 || cfg.Ingest.Extensions[0] != "md" {
		t.Errorf("Ingest.Extensions = %v, want the JSON override [md txt]", cfg.Ingest.Extensions)
	}
}

func TestLoadWithCLIProfile(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "config.yaml")
	writeFile(t, basePath, "llm:\n  provider: \"openai\"\n")
	writeFile(t, filepath.Join(dir, "config.dev.yaml"), "llm:\n  provider: \"mock\"\n")

	tests := []struct {
		name string
		args []string
	}{
		{"profile flag", []string{"--config", basePath, "--profile", "dev"}},
		{"env flag alias", []string{"--config", basePath, "--env", "dev"}},
		{"profile with equals", []string{"--config=" + basePath, "--profile=dev"}},
		{"env with equals", []string{"--config=" + basePath, "--env=dev"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithCLI(tc.args)
			if err != nil {
				t.Fatalf("LoadWithCLI() error: %v", err)
			}
			if cfg.LLM.Provider != "mock" {
				t.Errorf("LLM.Provider = %q, want the dev overlay's mock", cfg.LLM.Provider)
			}
		})
	}
}

func TestParseCLIOverridesErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--config"},
		{"--set"},
		{"--set", "invalid"},
	} {
		if _, _, err := parseCLIOverrides(args); err == nil {
			t.Errorf("parseCLIOverrides(%v) should fail", args)
		}
	}
}

func TestParseCLIOverridesRest(t *testing.T) {
	opts, rest, err := parseCLIOverrides([]string{"serve", "--config", "conf.yaml", "--addr", ":9000"})
	if err != nil {
		t.Fatalf("parseCLIOverrides() error: %v", err)
	}
	if opts.ConfigPath != "conf.yaml" {
		t.Errorf("ConfigPath = %q, want conf.yaml", opts.ConfigPath)
	}
	if len(rest) != 3 || rest[0] != "serve" {
		t.Errorf("rest = %v, want the 3 non-config args starting with serve", rest)
	}
}
