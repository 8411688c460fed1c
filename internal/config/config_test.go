package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PAWD_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.MaxRounds != 30 {
		t.Errorf("expected default maxRounds 30, got %d", cfg.Engine.MaxRounds)
	}
	if cfg.Model.Name != "openai/gpt-4o" {
		t.Errorf("expected default model, got %s", cfg.Model.Name)
	}
	if len(cfg.Engine.SafeTools) == 0 {
		t.Error("expected default safe tool list")
	}
}

func TestLoad_FileAndEnvPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"model":{"name":"deepseek/deepseek-chat"},"engine":{"maxRounds":5}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAWD_CONFIG", path)
	t.Setenv("PAWD_ENGINE_MAX_ROUNDS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Model.Name != "deepseek/deepseek-chat" {
		t.Errorf("file value not applied: %s", cfg.Model.Name)
	}
	if cfg.Engine.MaxRounds != 7 {
		t.Errorf("env should override file, got maxRounds %d", cfg.Engine.MaxRounds)
	}
}

func TestLoad_FloorsAppliedToBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"engine":{"maxRounds":-1,"contextWindowTokens":0}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAWD_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.MaxRounds != 30 {
		t.Errorf("expected floor to restore maxRounds, got %d", cfg.Engine.MaxRounds)
	}
	if cfg.Engine.ContextWindowTokens != 100000 {
		t.Errorf("expected floor to restore context window, got %d", cfg.Engine.ContextWindowTokens)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("PAWD_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Model.Name = "groq/llama-3.3-70b"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Model.Name != "groq/llama-3.3-70b" {
		t.Errorf("round trip lost model name: %s", loaded.Model.Name)
	}
}
