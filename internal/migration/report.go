package migration

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Status is the result of migrating one image
type Status string

const (
	StatusMigrated Status = "migrated"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Outcome reasons
const (
	ReasonUntagged                = "untagged"
	ReasonTargetRepositoryMissing = "target repository missing"
	ReasonImportFailed            = "import failed"
	ReasonPanicked                = "import panicked"
)

// Outcome is the recorded result for one image identifier
type Outcome struct {
	Repository string        `yaml:"repository"`
	Tag        string        `yaml:"tag,omitempty"`
	Digest     string        `yaml:"digest,omitempty"`
	Status     Status        `yaml:"status"`
	Reason     string        `yaml:"reason,omitempty"`
	Detail     string        `yaml:"detail,omitempty"`
	Source     string        `yaml:"source,omitempty"`
	Target     string        `yaml:"target,omitempty"`
	Duration   time.Duration `yaml:"duration,omitempty"`
}

// Err returns the failure as an error, or nil when the outcome is not a failure
func (o Outcome) Err() error {
	if o.Status != StatusFailed {
		return nil
	}
	return &MigrationFailure{
		Repository: o.Repository,
		Tag:        o.Tag,
		Reason:     o.Reason,
		Err:        errors.New(o.Detail),
	}
}

// RepositoryError records a repository whose images could not be listed
type RepositoryError struct {
	Repository string `yaml:"repository"`
	Error      string `yaml:"error"`
}

// Summary counts outcomes by status
type Summary struct {
	Migrated int `yaml:"migrated"`
	Skipped  int `yaml:"skipped"`
	Failed   int `yaml:"failed"`
	Total    int `yaml:"total"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d migrated, %d skipped, %d failed (%d total)", s.Migrated, s.Skipped, s.Failed, s.Total)
}

// Report aggregates the outcomes of a run. It is only appended to by the orchestrator.
type Report struct {
	RunID             string            `yaml:"run_id"`
	Source            string            `yaml:"source"`
	Target            string            `yaml:"target"`
	StartedAt         time.Time         `yaml:"started_at"`
	FinishedAt        time.Time         `yaml:"finished_at"`
	Aborted           bool              `yaml:"aborted"`
	Error             string            `yaml:"error,omitempty"`
	Repositories      []string          `yaml:"repositories"`
	ProvisionWarnings []string          `yaml:"provision_warnings,omitempty"`
	RepositoryErrors  []RepositoryError `yaml:"repository_errors,omitempty"`
	Outcomes          []Outcome         `yaml:"outcomes"`
}

// Summary returns counts by status
func (r *Report) Summary() Summary {
	var s Summary
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusMigrated:
			s.Migrated++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	s.Total = len(r.Outcomes)
	return s
}

// Failures returns the failed outcomes
func (r *Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// WriteFile exports the report as YAML
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(struct {
		Summary Summary `yaml:"summary"`
		Report  `yaml:",inline"`
	}{r.Summary(), *r})
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
