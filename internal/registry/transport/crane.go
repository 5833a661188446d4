package transport

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/rs/zerolog/log"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// Crane copies images registry-to-registry without a local runtime
type Crane struct {
	targetHost string
	tokens     registry.TokenSource
	options    []crane.Option
}

// NewCrane creates a crane transport pushing to targetHost with credentials from tokens
func NewCrane(targetHost string, tokens registry.TokenSource, opts ...crane.Option) *Crane {
	return &Crane{
		targetHost: targetHost,
		tokens:     tokens,
		options:    opts,
	}
}

// Import copies every manifest and blob of the source reference to the target.
// Multi-arch indexes are preserved.
func (c *Crane) Import(ctx context.Context, req registry.ImportRequest) error {
	targetRef := fmt.Sprintf("%s/%s", c.targetHost, req.Target)

	targetCreds, err := c.tokens.LoginCredentials(ctx)
	if err != nil {
		return registry.ErrImportFailed{Source: req.Source, Target: req.Target, Err: err}
	}

	keychain := staticKeychain{
		hostOf(req.Source): basicAuth(req.Credentials),
		c.targetHost:       basicAuth(targetCreds),
	}

	opts := append([]crane.Option{
		crane.WithContext(ctx),
		crane.WithAuthFromKeychain(keychain),
	}, c.options...)

	log.Debug().
		Str("source", req.Source).
		Str("target", targetRef).
		Msg("Copying image with crane")

	if err := crane.Copy(req.Source, targetRef, opts...); err != nil {
		return registry.ErrImportFailed{Source: req.Source, Target: req.Target, Err: err}
	}

	return nil
}

// staticKeychain resolves registry hosts to fixed credentials
type staticKeychain map[string]authn.Authenticator

// Resolve implements authn.Keychain
func (k staticKeychain) Resolve(res authn.Resource) (authn.Authenticator, error) {
	if auth, ok := k[res.RegistryStr()]; ok {
		return auth, nil
	}
	return authn.Anonymous, nil
}

func basicAuth(creds registry.Credentials) authn.Authenticator {
	if creds.Empty() {
		return authn.Anonymous
	}
	return authn.FromConfig(authn.AuthConfig{
		Username: creds.Username,
		Password: creds.Secret,
	})
}
