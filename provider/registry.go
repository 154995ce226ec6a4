package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"attache/config"
	"attache/model"
)

// Registry holds the configured providers, remembers which one is
// active, and hands out fallback chains. Registration order is
// preserved: it is the order providers are tried after the active one.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]model.Provider
	order     []string
	active    string
	models    map[string][]model.ModelInfo
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]model.Provider),
		models:    make(map[string][]model.ModelInfo),
	}
}

// Register adds a provider under its own name. Registering the same
// name twice replaces the adapter but keeps its chain position.
func (r *Registry) Register(p model.Provider) error {
	if p == nil {
		return fmt.Errorf("cannot register nil provider")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("cannot register provider with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p

	if r.active == "" {
		r.active = name
	}
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (model.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SetActive marks the named provider as the preferred one. Unknown
// names are rejected so a stale config cannot silently clear the
// selection.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("unknown provider: %s", name)
	}
	r.active = name
	return nil
}

// ActiveName returns the name of the active provider, or "" when the
// registry is empty.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Active returns the active provider.
func (r *Registry) Active() (model.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.active]
	return p, ok
}

// Chain returns a snapshot of providers in fallback order: the active
// provider first, then the rest in registration order. Later
// registrations or SetActive calls do not affect a snapshot already
// handed out.
func (r *Registry) Chain() []model.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := make([]model.Provider, 0, len(r.order))
	if p, ok := r.providers[r.active]; ok {
		chain = append(chain, p)
	}
	for _, name := range r.order {
		if name == r.active {
			continue
		}
		chain = append(chain, r.providers[name])
	}
	return chain
}

// RefreshModels refreshes the model catalog of every registered
// provider. Providers without credentials are skipped; individual
// fetch failures are logged and do not abort the rest.
func (r *Registry) RefreshModels(ctx context.Context) {
	for _, name := range r.Names() {
		if err := r.RefreshModelsForProvider(ctx, name); err != nil {
			config.DebugLog.Printf("model refresh for %s failed: %v", name, err)
		}
	}
}

// RefreshModelsForProvider refreshes the model catalog for one
// provider and caches the result.
func (r *Registry) RefreshModelsForProvider(ctx context.Context, name string) error {
	p, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown provider: %s", name)
	}
	if !p.HasValidCredential() {
		return nil
	}

	models, err := p.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models for %s: %w", name, err)
	}

	r.mu.Lock()
	r.models[name] = models
	r.mu.Unlock()
	return nil
}

// Models returns the cached model catalog across all providers, sorted
// by provider then model name. Call RefreshModels first to populate it.
func (r *Registry) Models() []model.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.ModelInfo
	for _, models := range r.models {
		out = append(out, models...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ModelsFor returns the cached model catalog for one provider.
func (r *Registry) ModelsFor(name string) []model.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := r.models[name]
	out := make([]model.ModelInfo, len(models))
	copy(out, models)
	return out
}
