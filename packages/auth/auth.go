// Package auth simulates a logged-in client before a request executes.
// Guards mirror the host application's authentication schemes: a session
// guard seeds the user id into the request's session, a token guard issues a
// bearer token. Guards are registered on an Authenticator keyed by scheme
// name, with a configurable default.
package auth

import (
	"context"
	"fmt"
)

// Credential is what a successful login attaches to the outgoing request.
// Headers are set verbatim; SessionValues are merged into the session seeded
// for the request.
type Credential struct {
	Headers       map[string]string
	SessionValues map[string]any
}

// Guard authenticates a user for one scheme.
type Guard interface {
	Login(ctx context.Context, user any) (*Credential, error)
}

// UnknownSchemeError is returned when a login names a scheme no guard is
// registered for.
type UnknownSchemeError struct {
	Scheme string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("unknown auth scheme: %s", e.Scheme)
}

// Authenticator dispatches logins to registered guards.
type Authenticator struct {
	defaultScheme string
	guards        map[string]Guard
}

// New creates an Authenticator whose empty-scheme logins use defaultScheme.
func New(defaultScheme string) *Authenticator {
	return &Authenticator{
		defaultScheme: defaultScheme,
		guards:        make(map[string]Guard),
	}
}

// Register adds a guard under a scheme name, replacing any previous guard.
func (a *Authenticator) Register(scheme string, g Guard) *Authenticator {
	a.guards[scheme] = g
	return a
}

// Login authenticates user via the named scheme, or the default scheme when
// scheme is empty.
func (a *Authenticator) Login(ctx context.Context, user any, scheme string) (*Credential, error) {
	if scheme == "" {
		scheme = a.defaultScheme
	}

	guard, ok := a.guards[scheme]
	if !ok {
		return nil, &UnknownSchemeError{Scheme: scheme}
	}

	return guard.Login(ctx, user)
}

// TokenGuard authenticates by issuing a bearer token for the user. Lookup
// maps a user to its token; a static map can be wrapped with TokenMap.
type TokenGuard struct {
	Lookup func(ctx context.Context, user any) (string, error)
}

func (g *TokenGuard) Login(ctx context.Context, user any) (*Credential, error) {
	if g.Lookup == nil {
		return nil, fmt.Errorf("token guard has no lookup configured")
	}

	token, err := g.Lookup(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}

	return &Credential{
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}, nil
}

// TokenMap builds a TokenGuard lookup from a static user -> token map.
func TokenMap(tokens map[any]string) func(context.Context, any) (string, error) {
	return func(_ context.Context, user any) (string, error) {
		token, ok := tokens[user]
		if !ok {
			return "", fmt.Errorf("no token for user %v", user)
		}
		return token, nil
	}
}

// SessionGuard authenticates by writing the user's identifier into the
// session seeded for the request, the way a session-based login leaves the
// server. Key defaults to "auth_uid".
type SessionGuard struct {
	Key string
	// Identify extracts the stored identifier from the user value. When nil
	// the user value itself is stored.
	Identify func(user any) any
}

func (g *SessionGuard) Login(_ context.Context, user any) (*Credential, error) {
	key := g.Key
	if key == "" {
		key = "auth_uid"
	}

	id := user
	if g.Identify != nil {
		id = g.Identify(user)
	}

	return &Credential{
		SessionValues: map[string]any{key: id},
	}, nil
}
