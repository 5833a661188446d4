// Package transport provides the ways an image can be copied into the target registry.
package transport

import (
	"github.com/alvesdmateus/registry-migrator/internal/registry"
	"github.com/alvesdmateus/registry-migrator/internal/registry/acr"
)

// Kind selects a copy transport
type Kind string

const (
	// KindImport asks the target registry to pull from the source (az acr import)
	KindImport Kind = "import"
	// KindDocker pulls, tags and pushes through the local docker daemon
	KindDocker Kind = "docker"
	// KindCrane streams the copy through go-containerregistry
	KindCrane Kind = "crane"
)

// ErrUnknownTransport is returned when an unknown transport is requested
type ErrUnknownTransport struct {
	Kind Kind
}

func (e ErrUnknownTransport) Error() string {
	return "unknown transport: " + string(e.Kind)
}

// Options tune transports that copy through this host
type Options struct {
	// CleanupLocal removes pulled and tagged images after a docker copy
	CleanupLocal bool
}

// Transport is an Importer that may hold resources
type Transport interface {
	registry.Importer
	Close() error
}

// New creates the transport for kind, writing into target
func New(kind Kind, target *acr.Client, opts Options) (Transport, error) {
	switch kind {
	case KindImport, "":
		return nopCloser{target}, nil
	case KindDocker:
		return NewDocker(target.Endpoint().Host, target, opts.CleanupLocal)
	case KindCrane:
		return nopCloser{NewCrane(target.Endpoint().Host, target)}, nil
	default:
		return nil, ErrUnknownTransport{Kind: kind}
	}
}

type nopCloser struct {
	registry.Importer
}

func (nopCloser) Close() error { return nil }
