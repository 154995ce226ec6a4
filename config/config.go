package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type OllamaConfig struct {
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
}

// ProviderConfig is one entry of the [[providers]] array in the user
// config.
type ProviderConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
	Model   string `toml:"model,omitempty"`
	Enabled bool   `toml:"enabled"`
}

type OrchestratorConfig struct {
	MaxToolDepth          int `toml:"max_tool_depth"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	DefaultContextLength  int `toml:"default_context_length"`
}

type UserConfig struct {
	Ollama              OllamaConfig       `toml:"ollama"`
	Providers           []ProviderConfig   `toml:"providers"`
	ActiveProvider      string             `toml:"active_provider,omitempty"`
	DefaultSystemPrompt string             `toml:"default_system_prompt,omitempty"`
	Orchestrator        OrchestratorConfig `toml:"orchestrator"`
	Security            SecurityConfig     `toml:"security"`
}

type SecurityConfig struct {
	Method     string `toml:"method,omitempty"` // "plaintext" or "ssh_key"
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// Config is the resolved runtime configuration after merging system
// config, user config, and environment overrides.
type Config struct {
	DataDirectory       string
	OllamaHost          string
	DefaultModel        string
	ActiveProvider      string
	DefaultSystemPrompt string
	Providers           []ProviderConfig
	MaxToolDepth        int
	RequestTimeout      time.Duration
	ContextLength       int
	CredentialStore     *CredentialStore
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// ProviderByID returns the configured entry for a provider id.
func (c *Config) ProviderByID(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("ATTACHE_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if model := os.Getenv("ATTACHE_OLLAMA_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("ATTACHE_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if active := os.Getenv("ATTACHE_ACTIVE_PROVIDER"); active != "" {
		c.ActiveProvider = active
	}
}

func CheckDebug() bool {
	debug := os.Getenv("ATTACHE_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log under the data directory when
// ATTACHE_DEBUG is set. Without it Debug stays false and DebugLog nil.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: debug output can contain request payloads
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (ATTACHE_DEBUG=%s) ===", os.Getenv("ATTACHE_DEBUG"))
}

// Load resolves configuration: defaults, then settings.toml for the
// data directory, then the user config inside it, then environment
// overrides on top.
func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory:  defaultDataDirectory,
		OllamaHost:     defaultOllamaHost,
		DefaultModel:   defaultOllamaModel,
		ActiveProvider: "ollama",
		MaxToolDepth:   defaultMaxToolDepth,
		RequestTimeout: defaultRequestTimeout,
		ContextLength:  defaultContextLength,
	}

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	if systemCfg.DataDirectory != "" {
		cfg.DataDirectory = systemCfg.DataDirectory
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.applyUserConfig(userCfg)
	cfg.applyEnvOverrides()

	store := NewCredentialStore(securityMethodFrom(userCfg.Security), ExpandPath(userCfg.Security.SSHKeyPath))
	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.CredentialStore = store

	InitDebugLog(dataDir)
	return cfg, nil
}

func (c *Config) applyUserConfig(userCfg *UserConfig) {
	if userCfg.Ollama.Host != "" {
		c.OllamaHost = userCfg.Ollama.Host
	}
	if userCfg.Ollama.DefaultModel != "" {
		c.DefaultModel = userCfg.Ollama.DefaultModel
	}
	if userCfg.ActiveProvider != "" {
		c.ActiveProvider = userCfg.ActiveProvider
	}
	c.DefaultSystemPrompt = userCfg.DefaultSystemPrompt
	c.Providers = userCfg.Providers

	if userCfg.Orchestrator.MaxToolDepth > 0 {
		c.MaxToolDepth = userCfg.Orchestrator.MaxToolDepth
	}
	if userCfg.Orchestrator.RequestTimeoutSeconds > 0 {
		c.RequestTimeout = time.Duration(userCfg.Orchestrator.RequestTimeoutSeconds) * time.Second
	}
	if userCfg.Orchestrator.DefaultContextLength > 0 {
		c.ContextLength = userCfg.Orchestrator.DefaultContextLength
	}
}

func securityMethodFrom(sec SecurityConfig) SecurityMethod {
	if sec.Method == string(SecuritySSHKey) {
		return SecuritySSHKey
	}
	return SecurityPlainText
}
