package provider

import (
	"fmt"

	"attache/config"
)

// InitializeProviders builds a registry from configuration. Every
// enabled provider is registered even without a credential; the
// fallback chain skips credential-less providers at send time, so a
// key added later starts working without re-registration.
func InitializeProviders(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()

	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}

		p, err := NewProvider(providerConfigFor(cfg, pc))
		if err != nil {
			return nil, fmt.Errorf("initializing provider %s: %w", pc.ID, err)
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}

		if config.Debug && config.DebugLog != nil {
			config.DebugLog.Printf("registered provider %s (credential: %v)", p.Name(), p.HasValidCredential())
		}
	}

	if len(registry.Names()) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	if cfg.ActiveProvider != "" {
		if err := registry.SetActive(cfg.ActiveProvider); err != nil {
			// A stale active_provider falls back to the first
			// registered provider rather than failing startup.
			if config.Debug && config.DebugLog != nil {
				config.DebugLog.Printf("active provider %s not registered, using %s", cfg.ActiveProvider, registry.ActiveName())
			}
		}
	}

	return registry, nil
}

// providerConfigFor assembles the factory config for one provider
// entry, pulling the API key from the credential store and Ollama
// settings from their dedicated config section.
func providerConfigFor(cfg *config.Config, pc config.ProviderConfig) Config {
	out := Config{
		Type:    MapProviderIDToType(pc.ID),
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
	}

	if pc.ID == "ollama" {
		if out.BaseURL == "" {
			out.BaseURL = cfg.OllamaHost
		}
		if out.Model == "" {
			out.Model = cfg.DefaultModel
		}
		return out
	}

	if cfg.CredentialStore != nil {
		out.APIKey = cfg.CredentialStore.Get(pc.ID)
	}
	return out
}
