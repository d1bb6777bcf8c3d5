package storygraph

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HopLimit != 2 || cfg.MaxContextItems != 20 || cfg.FallbackChapters != 3 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "db_path: /tmp/custom.db\nhop_limit: 3\nllm:\n  provider: ollama\n  model: llama3\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/custom.db" || cfg.HopLimit != 3 {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3" {
		t.Errorf("llm config not applied: %+v", cfg.LLM)
	}
	if cfg.MaxContextItems != 20 {
		t.Errorf("unset yaml field should keep its default: %+v", cfg)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STORYGRAPH_DB_PATH", "/tmp/env.db")
	t.Setenv("STORYGRAPH_LLM_MODEL", "qwen3")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("env override not applied: %q", cfg.DBPath)
	}
	if cfg.LLM.Model != "qwen3" {
		t.Errorf("nested env prefix not applied: %q", cfg.LLM.Model)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/no/such/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
