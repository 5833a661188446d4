package migration

import (
	"time"

	"github.com/alvesdmateus/registry-migrator/internal/registry"
)

// DefaultImportTimeout bounds a single image copy
const DefaultImportTimeout = 30 * time.Minute

// Settings is the explicit configuration of a run
type Settings struct {
	Source registry.Endpoint // Region and Account required
	Target registry.Endpoint // Name and Account (subscription) required

	// Workers is the number of images copied at once within a repository
	Workers int

	// ImportTimeout bounds each image copy; zero uses DefaultImportTimeout
	ImportTimeout time.Duration

	// Repositories restricts the run to these repositories when non-empty
	Repositories []string
}

// Validate checks every mandatory setting and reports all missing ones at once
func (s Settings) Validate() error {
	var missing []string

	if s.Source.Region == "" {
		missing = append(missing, "source region")
	}
	if s.Source.Account == "" {
		missing = append(missing, "source account")
	}
	if s.Target.Name == "" {
		missing = append(missing, "target registry name")
	}
	if s.Target.Account == "" {
		missing = append(missing, "target subscription")
	}

	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func (s Settings) workers() int {
	if s.Workers < 1 {
		return 1
	}
	return s.Workers
}

func (s Settings) importTimeout() time.Duration {
	if s.ImportTimeout <= 0 {
		return DefaultImportTimeout
	}
	return s.ImportTimeout
}
