package identity

import (
	"context"

	"github.com/roach88/pulse/internal/debuglog"
	"github.com/roach88/pulse/internal/engine"
	"github.com/roach88/pulse/internal/event"
)

// Resolver resolves the user and team metadata for a capture.
// A nil Provider or Directory is allowed and yields absent values.
//
// Thread-safety: Resolver holds no mutable state; concurrent use is safe
// when the collaborators are.
type Resolver struct {
	provider  Provider
	directory Directory
	log       *debuglog.Logger
}

// NewResolver creates a Resolver. If log is nil, a non-debug logger over
// slog.Default() is used.
func NewResolver(provider Provider, directory Directory, log *debuglog.Logger) *Resolver {
	if log == nil {
		log = debuglog.New(false, nil, nil)
	}
	return &Resolver{provider: provider, directory: directory, log: log}
}

// ResolveUser returns the current user reference. ok is false when no
// provider is configured, when the provider fails, or when it reports an
// empty reference. Failures are logged through the debug gate.
func (r *Resolver) ResolveUser(ctx context.Context) (user string, ok bool) {
	if r.provider == nil {
		r.log.Log("No identity provider configured", false)
		return "", false
	}

	id, err := r.provider.Identity(ctx)
	if err != nil {
		r.log.Log(engine.NewIdentityError(err).Error(), true)
		return "", false
	}
	if id.UserEntityRef == "" {
		r.log.Log("Identity provider returned no user reference", false)
		return "", false
	}
	return id.UserEntityRef, true
}

// ResolveTeamMetadata looks up metadata for user. ok is false when no
// directory is configured, when the lookup fails, or when it returns
// nothing. A failure never aborts the capture.
func (r *Resolver) ResolveTeamMetadata(ctx context.Context, user string) (event.Metadata, bool) {
	if r.directory == nil {
		return nil, false
	}

	md, err := r.directory.Lookup(ctx, user)
	if err != nil {
		r.log.Log(engine.NewMetadataError(user, err).Error(), true)
		return nil, false
	}
	if len(md) == 0 || string(md) == "null" {
		return nil, false
	}
	return md, true
}
