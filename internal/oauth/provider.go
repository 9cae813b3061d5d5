// Package oauth talks to external identity providers. Each Provider turns an
// authorization code into a model.FederatedProfile; what happens to the
// profile afterwards is up to the caller.
package oauth

import (
	"context"
	"errors"
	"sort"

	"go-shop-admin/internal/model"
)

var (
	ErrMissingCode  = errors.New("missing authorization code")
	ErrMissingEmail = errors.New("identity provider returned no email")
)

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (model.FederatedProfile, error)
}

// Registry holds the providers that are configured for this deployment.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
