package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrRepositoryNotFound is returned when a source repository does not exist
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrRepositoryExists is returned when creating a repository that already exists
	ErrRepositoryExists = errors.New("repository already exists")

	// ErrTargetRepositoryMissing is returned when an import fails because the target repository is absent
	ErrTargetRepositoryMissing = errors.New("target repository missing")
)

// ErrAuthenticationFailed is returned when registry authentication fails
type ErrAuthenticationFailed struct {
	Registry string
	Err      error
}

func (e ErrAuthenticationFailed) Error() string {
	return fmt.Sprintf("authentication failed for registry %s: %v", e.Registry, e.Err)
}

func (e ErrAuthenticationFailed) Unwrap() error {
	return e.Err
}

// ErrRegistryUnavailable is returned when a registry cannot be found or reached
type ErrRegistryUnavailable struct {
	Registry string
	Err      error
}

func (e ErrRegistryUnavailable) Error() string {
	return fmt.Sprintf("registry %s unavailable: %v", e.Registry, e.Err)
}

func (e ErrRegistryUnavailable) Unwrap() error {
	return e.Err
}

// ErrImportFailed is returned when an image copy fails
type ErrImportFailed struct {
	Source string
	Target string
	Err    error
}

func (e ErrImportFailed) Error() string {
	return fmt.Sprintf("failed to import %s as %s: %v", e.Source, e.Target, e.Err)
}

func (e ErrImportFailed) Unwrap() error {
	return e.Err
}

// ErrPushFailed is returned when image push fails
type ErrPushFailed struct {
	ImageTag string
	Err      error
}

func (e ErrPushFailed) Error() string {
	return fmt.Sprintf("failed to push image %s: %v", e.ImageTag, e.Err)
}

func (e ErrPushFailed) Unwrap() error {
	return e.Err
}

// ErrPullFailed is returned when image pull fails
type ErrPullFailed struct {
	ImageTag string
	Err      error
}

func (e ErrPullFailed) Error() string {
	return fmt.Sprintf("failed to pull image %s: %v", e.ImageTag, e.Err)
}

func (e ErrPullFailed) Unwrap() error {
	return e.Err
}
