// Package config provides configuration types and loading for pawd.
package config

import "time"

// Config is the root configuration struct.
type Config struct {
	Paths        PathsConfig        `json:"paths"`
	Model        ModelConfig        `json:"model"`
	Engine       EngineConfig       `json:"engine"`
	Providers    ProvidersConfig    `json:"providers"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Trace        TraceConfig        `json:"trace"`
	Channels     ChannelsConfig     `json:"channels"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
	DataDir   string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ---------------------------------------------------------------------------
// Model – LLM behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups LLM model settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// ---------------------------------------------------------------------------
// Engine – agent loop behaviour
// ---------------------------------------------------------------------------

// EngineConfig groups round-loop settings.
type EngineConfig struct {
	MaxRounds           int      `json:"maxRounds" envconfig:"MAX_ROUNDS"`
	ToolTimeoutSeconds  int      `json:"toolTimeoutSeconds" envconfig:"TOOL_TIMEOUT_SECONDS"`
	ApprovalTimeoutSecs int      `json:"approvalTimeoutSeconds" envconfig:"APPROVAL_TIMEOUT_SECONDS"`
	ContextWindowTokens int      `json:"contextWindowTokens" envconfig:"CONTEXT_WINDOW_TOKENS"`
	SafeTools           []string `json:"safeTools"`
}

// ToolTimeout returns the per-tool execution timeout.
func (e EngineConfig) ToolTimeout() time.Duration {
	return time.Duration(e.ToolTimeoutSeconds) * time.Second
}

// ApprovalTimeout returns how long an unsafe tool call waits for a
// human verdict before it is treated as denied.
func (e EngineConfig) ApprovalTimeout() time.Duration {
	return time.Duration(e.ApprovalTimeoutSecs) * time.Second
}

// ---------------------------------------------------------------------------
// Providers – LLM API keys & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Groq       ProviderConfig `json:"groq"`
	VLLM       ProviderConfig `json:"vllm"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Orchestrator – boss/worker coordination
// ---------------------------------------------------------------------------

// OrchestratorConfig contains settings for boss/worker projects.
type OrchestratorConfig struct {
	MaxWorkers      int    `json:"maxWorkers" envconfig:"MAX_WORKERS"`
	WorkerMaxRounds int    `json:"workerMaxRounds" envconfig:"WORKER_MAX_ROUNDS"`
	WorkerModel     string `json:"workerModel,omitempty" envconfig:"WORKER_MODEL"`
}

// ---------------------------------------------------------------------------
// Trace – Kafka span publishing
// ---------------------------------------------------------------------------

// TraceConfig contains settings for the Kafka trace publisher.
type TraceConfig struct {
	Enabled      bool   `json:"enabled" envconfig:"ENABLED"`
	KafkaBrokers string `json:"kafkaBrokers" envconfig:"KAFKA_BROKERS"`
	RunGroup     string `json:"runGroup" envconfig:"RUN_GROUP"`
}

// ---------------------------------------------------------------------------
// Channels – outbound messaging
// ---------------------------------------------------------------------------

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Slack SlackConfig `json:"slack"`
}

// SlackConfig configures the Slack outbound channel used for approval
// prompts and run notifications.
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"ENABLED"`
	BotToken string `json:"botToken" envconfig:"BOT_TOKEN"`
	Channel  string `json:"channel" envconfig:"CHANNEL"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Workspace: "~/pawd",
			DataDir:   "~/.pawd",
		},
		Model: ModelConfig{
			Name:        "openai/gpt-4o",
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		Engine: EngineConfig{
			MaxRounds:           30,
			ToolTimeoutSeconds:  120,
			ApprovalTimeoutSecs: 300,
			ContextWindowTokens: 100000,
			SafeTools:           []string{"read_file", "list_dir", "fetch"},
		},
		Orchestrator: OrchestratorConfig{
			MaxWorkers:      4,
			WorkerMaxRounds: 20,
		},
		Trace: TraceConfig{
			RunGroup: "pawd",
		},
	}
}
