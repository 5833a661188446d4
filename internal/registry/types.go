package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Endpoint identifies a registry instance
type Endpoint struct {
	Name    string // registry name (ACR) or empty
	Host    string // e.g., 123456789012.dkr.ecr.us-east-1.amazonaws.com
	Region  string // AWS region
	Account string // AWS account id or Azure subscription id
}

// Credentials are short-lived pull or push credentials for a registry
type Credentials struct {
	Username  string
	Secret    string
	ExpiresAt time.Time
}

// String never renders the secret
func (c Credentials) String() string {
	return fmt.Sprintf("%s:%s", c.Username, Redacted)
}

// MarshalZerologObject keeps the secret out of structured log fields
func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Str("username", c.Username).Str("secret", Redacted)
	if !c.ExpiresAt.IsZero() {
		e.Time("expires_at", c.ExpiresAt)
	}
}

// Empty reports whether no credentials were obtained
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Secret == ""
}

// Redacted replaces secrets wherever a credential would be printed
const Redacted = "****"

// ImageID identifies one image in a repository. Tag is empty for untagged images.
type ImageID struct {
	Tag    string
	Digest string
}

// Tagged reports whether the image has a tag
func (i ImageID) Tagged() bool {
	return i.Tag != ""
}

// ImportRequest describes a single cross-registry copy
type ImportRequest struct {
	Source      string // fully qualified source reference, host/repo:tag
	Target      string // target reference relative to the target registry, repo:tag
	Credentials Credentials
	Force       bool // overwrite an existing tag in the target
}

// Source is the registry images are read from
type Source interface {
	// Endpoint returns the source registry endpoint
	Endpoint() Endpoint

	// Authenticate obtains credentials valid for pulling from the source
	Authenticate(ctx context.Context) (Credentials, error)

	// ListRepositories returns every repository name, draining all pages
	ListRepositories(ctx context.Context) ([]string, error)

	// ListImages returns every image of a repository, draining all pages.
	// A missing repository is reported as ErrRepositoryNotFound.
	ListImages(ctx context.Context, repository string) ([]ImageID, error)
}

// Target is the registry images are written to
type Target interface {
	// Endpoint returns the target registry endpoint
	Endpoint() Endpoint

	// Verify checks the registry exists and is reachable
	Verify(ctx context.Context) error

	// CreateRepository creates a repository. ErrRepositoryExists means nothing changed.
	CreateRepository(ctx context.Context, repository string) error
}

// Importer copies one image into the target registry
type Importer interface {
	Import(ctx context.Context, req ImportRequest) error
}

// TokenSource issues credentials for pushing into the target registry
type TokenSource interface {
	LoginCredentials(ctx context.Context) (Credentials, error)
}

// SourceReference builds host/repository:tag
func SourceReference(host, repository, tag string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(host, "/"), TargetReference(repository, tag))
}

// TargetReference builds repository:tag
func TargetReference(repository, tag string) string {
	return fmt.Sprintf("%s:%s", repository, tag)
}
