package provider

import (
	"strings"

	"github.com/goliatone/go-accounts"
)

// Registry holds the configured providers in registration order.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry registers providers by name. A later provider with the same
// name replaces an earlier one. Nil entries are skipped.
func NewRegistry(list ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range list {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	name := strings.ToLower(p.Name())
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Get returns the provider by name or accounts.ErrProviderNotFound.
func (r *Registry) Get(name string) (Provider, error) {
	if r == nil {
		return nil, accounts.ErrProviderNotFound
	}
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, accounts.ErrProviderNotFound
	}
	return p, nil
}

// List describes the providers for login pages.
func (r *Registry) List() []accounts.ExternalProvider {
	if r == nil {
		return nil
	}
	out := make([]accounts.ExternalProvider, 0, len(r.order))
	for _, name := range r.order {
		p := r.providers[name]
		out = append(out, accounts.ExternalProvider{
			Name:        p.Name(),
			DisplayName: p.DisplayName(),
		})
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
