package adapter

import (
	"context"
	"sync"

	"github.com/cflagle/unified-events/internal/models"
)

// Registry caches constructed adapters by platform ID so a platform's
// client (a Pub/Sub topic handle, an SNS client, an HTTP client) is built
// once and reused across every job routed to it, rather than once per send.
type Registry struct {
	mu       sync.Mutex
	adapters map[int64]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[int64]Adapter)}
}

// Get returns the cached adapter for p, constructing and caching it on
// first use.
func (r *Registry) Get(ctx context.Context, p *models.PlatformDefinition) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[p.ID]; ok {
		return a, nil
	}
	a, err := New(ctx, p)
	if err != nil {
		return nil, err
	}
	r.adapters[p.ID] = a
	return a, nil
}

// Forget drops a cached adapter, e.g. after a platform's api_config changes
// and the router is reloaded.
func (r *Registry) Forget(platformID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, platformID)
}
