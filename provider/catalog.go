package provider

import (
	"sync"

	"attache/model"
)

// modelCatalog caches a provider's last-fetched model list so SetModel
// can validate ids without a network round trip. Before the first fetch
// the catalog is empty and any id is accepted; the first RefreshModels
// makes validation strict.
type modelCatalog struct {
	mu     sync.RWMutex
	models []model.ModelInfo
}

func (c *modelCatalog) store(models []model.ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
}

func (c *modelCatalog) snapshot() []model.ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// resolve maps a display or internal name to the internal name used in
// API calls. ok is false when the catalog is populated and the id does
// not appear in it.
func (c *modelCatalog) resolve(id string) (string, bool) {
	if id == "" {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.models) == 0 {
		return id, true
	}
	for _, m := range c.models {
		if m.Name == id || m.InternalName == id {
			return m.InternalName, true
		}
	}
	return "", false
}

// contextLength returns the context window for the given internal name,
// or 0 when unknown.
func (c *modelCatalog) contextLength(internalName string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.InternalName == internalName {
			return m.ContextLength
		}
	}
	return 0
}
