package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".pawd"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. PAWD_CONFIG
// overrides the default ~/.pawd/config.json location.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("PAWD_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults.

	// Override with environment variables for each group.
	envconfig.Process("PAWD_PATHS", &cfg.Paths)
	envconfig.Process("PAWD_MODEL", &cfg.Model)
	envconfig.Process("PAWD_ENGINE", &cfg.Engine)
	envconfig.Process("PAWD_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("PAWD_OPENROUTER", &cfg.Providers.OpenRouter)
	envconfig.Process("PAWD_DEEPSEEK", &cfg.Providers.DeepSeek)
	envconfig.Process("PAWD_GROQ", &cfg.Providers.Groq)
	envconfig.Process("PAWD_VLLM", &cfg.Providers.VLLM)
	envconfig.Process("PAWD_ORCHESTRATOR", &cfg.Orchestrator)
	envconfig.Process("PAWD_TRACE", &cfg.Trace)
	envconfig.Process("PAWD_CHANNELS_SLACK", &cfg.Channels.Slack)

	// Fallback for API key.
	if cfg.Providers.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Providers.OpenAI.APIKey = key
		}
	}
	if cfg.Providers.OpenRouter.APIKey == "" {
		if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
			cfg.Providers.OpenRouter.APIKey = key
		}
	}

	expandHome(&cfg.Paths.Workspace)
	expandHome(&cfg.Paths.DataDir)

	applyFloors(cfg)
	return cfg, nil
}

func expandHome(p *string) {
	if strings.HasPrefix(*p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			*p = filepath.Join(home, (*p)[1:])
		}
	}
}

// applyFloors clamps nonsensical values back to safe minimums.
func applyFloors(cfg *Config) {
	if cfg.Engine.MaxRounds <= 0 {
		cfg.Engine.MaxRounds = 30
	}
	if cfg.Engine.ToolTimeoutSeconds <= 0 {
		cfg.Engine.ToolTimeoutSeconds = 120
	}
	if cfg.Engine.ApprovalTimeoutSecs <= 0 {
		cfg.Engine.ApprovalTimeoutSecs = 300
	}
	if cfg.Engine.ContextWindowTokens <= 0 {
		cfg.Engine.ContextWindowTokens = 100000
	}
	if cfg.Orchestrator.MaxWorkers <= 0 {
		cfg.Orchestrator.MaxWorkers = 4
	}
	if cfg.Orchestrator.WorkerMaxRounds <= 0 {
		cfg.Orchestrator.WorkerMaxRounds = 20
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
