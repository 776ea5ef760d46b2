// Package identity resolves who a captured event belongs to.
//
// The Resolver asks a Provider for the current principal and, when team
// enrichment is enabled, asks a Directory for the metadata entity of that
// principal. Both collaborators may fail; the Resolver turns every failure
// into an absent value and a debug-gated diagnostic.
package identity

import (
	"context"

	"github.com/roach88/pulse/internal/event"
)

// Identity is the current principal as reported by the host.
type Identity struct {
	UserEntityRef       string   `json:"userEntityRef" yaml:"userEntityRef"`
	OwnershipEntityRefs []string `json:"ownershipEntityRefs,omitempty" yaml:"ownershipEntityRefs,omitempty"`
}

// Provider returns the current principal.
type Provider interface {
	Identity(ctx context.Context) (Identity, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Identity, error)

// Identity calls f(ctx).
func (f ProviderFunc) Identity(ctx context.Context) (Identity, error) { return f(ctx) }

// Static is a Provider that always returns the same principal.
type Static Identity

// Identity implements Provider.
func (s Static) Identity(context.Context) (Identity, error) {
	return Identity(s), nil
}

// Directory maps a user reference to its metadata entity or entity list.
type Directory interface {
	Lookup(ctx context.Context, userRef string) (event.Metadata, error)
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(ctx context.Context, userRef string) (event.Metadata, error)

// Lookup calls f(ctx, userRef).
func (f DirectoryFunc) Lookup(ctx context.Context, userRef string) (event.Metadata, error) {
	return f(ctx, userRef)
}
