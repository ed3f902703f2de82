package webhook

import (
	"strings"

	"github.com/smallbiznis/paybridge/internal/payment/domain"
)

// Registry holds the known provider adapters, keyed by provider name.
type Registry struct {
	adapters map[string]domain.EventAdapter
}

func NewRegistry(adapters ...domain.EventAdapter) *Registry {
	registry := &Registry{adapters: map[string]domain.EventAdapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
		if provider == "" {
			continue
		}
		registry.adapters[provider] = adapter
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	_, ok := r.adapters[provider]
	return ok
}

func (r *Registry) Adapter(provider string) (domain.EventAdapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return adapter, nil
}
