package migration

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError is returned when required settings are missing or invalid
type ConfigError struct {
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PreconditionError is returned when the target registry cannot be verified
type PreconditionError struct {
	Registry string
	Err      error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("target registry %s is not available: %v", e.Registry, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// AuthError is returned when source credentials cannot be acquired
type AuthError struct {
	Registry string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("could not get credentials for %s: %v", e.Registry, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CatalogError is returned when enumerating the source fails.
// Repository is empty when the repository list itself failed.
type CatalogError struct {
	Repository string
	Err        error
}

func (e *CatalogError) Error() string {
	if e.Repository == "" {
		return fmt.Sprintf("could not list repositories: %v", e.Err)
	}
	return fmt.Sprintf("could not list images for repository %s: %v", e.Repository, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// ProvisionWarning is returned when a target repository could not be created
type ProvisionWarning struct {
	Repository string
	Err        error
}

func (e *ProvisionWarning) Error() string {
	return fmt.Sprintf("could not create target repository %s: %v", e.Repository, e.Err)
}

func (e *ProvisionWarning) Unwrap() error { return e.Err }

// MigrationFailure describes why a single image could not be copied
type MigrationFailure struct {
	Repository string
	Tag        string
	Reason     string
	Err        error
}

func (e *MigrationFailure) Error() string {
	return fmt.Sprintf("failed to migrate %s:%s (%s): %v", e.Repository, e.Tag, e.Reason, e.Err)
}

func (e *MigrationFailure) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	var (
		configErr       *ConfigError
		preconditionErr *PreconditionError
		authErr         *AuthError
		catalogErr      *CatalogError
	)

	switch {
	case errors.As(err, &configErr), errors.As(err, &preconditionErr), errors.As(err, &authErr):
		return true
	case errors.As(err, &catalogErr):
		return catalogErr.Repository == ""
	default:
		return false
	}
}
