package config

import "time"

const (
	defaultDataDirectory = "~/.local/share/attache"
	defaultOllamaHost    = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1:latest"

	defaultMaxToolDepth   = 2
	defaultRequestTimeout = 120 * time.Second

	// Assumed context window when a provider does not report one.
	defaultContextLength = 8192
)

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: defaultDataDirectory,
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Ollama: OllamaConfig{
			Host:         defaultOllamaHost,
			DefaultModel: defaultOllamaModel,
		},
		ActiveProvider: "ollama",
		Providers: []ProviderConfig{
			{ID: "ollama", Name: "Ollama", BaseURL: defaultOllamaHost, Enabled: true},
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Attache System Configuration
# Location: ~/.config/attache/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations and user config are stored
data_directory = "~/.local/share/attache"
`
}

func GenerateUserConfigTemplate() string {
	return `# Attache User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[ollama]
# Ollama server URL
host = "http://localhost:11434"

# Default model for new conversations
default_model = "llama3.1:latest"

# Provider tried first; others fall back in the order listed below
active_provider = "ollama"

# Default system prompt for new conversations (optional)
default_system_prompt = ""

[[providers]]
id = "ollama"
name = "Ollama"
base_url = "http://localhost:11434"
enabled = true

[[providers]]
id = "anthropic"
name = "Anthropic"
enabled = false

[[providers]]
id = "openai"
name = "OpenAI"
enabled = false

[[providers]]
id = "openrouter"
name = "OpenRouter"
enabled = false

[orchestrator]
# How many rounds of tool execution to allow per user message
max_tool_depth = 2

# Per-provider attempt timeout in seconds
request_timeout_seconds = 120

# Context window assumed when a provider does not report one
default_context_length = 8192

[security]
# Credential storage: "plaintext" or "ssh_key"
method = "plaintext"
`
}
