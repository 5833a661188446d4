package migration

import (
	"context"
)

// Plan lists what a run would do without touching the target registry
type Plan struct {
	Source       string              `yaml:"source"`
	Target       string              `yaml:"target"`
	Repositories []PlannedRepository `yaml:"repositories"`
}

// PlannedRepository is the plan for one source repository
type PlannedRepository struct {
	Name    string   `yaml:"name"`
	Migrate []string `yaml:"migrate,omitempty"` // tags
	Skip    []string `yaml:"skip,omitempty"`    // untagged digests
	Error   string   `yaml:"error,omitempty"`
}

// Counts returns the number of images to migrate and to skip
func (p *Plan) Counts() (migrate, skip int) {
	for _, repo := range p.Repositories {
		migrate += len(repo.Migrate)
		skip += len(repo.Skip)
	}
	return migrate, skip
}

// Plan enumerates the source catalog and applies the eligibility policy.
// Only settings validation and repository listing can fail it.
func (o *Orchestrator) Plan(ctx context.Context) (*Plan, error) {
	if err := o.settings.Validate(); err != nil {
		return nil, err
	}

	repos, err := o.catalog.Repositories(ctx)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Source:       o.source.Endpoint().Host,
		Target:       o.settings.Target.Name,
		Repositories: make([]PlannedRepository, 0, len(repos)),
	}

	for _, repo := range repos {
		planned := PlannedRepository{Name: repo}

		images, err := o.catalog.Images(ctx, repo)
		if err != nil {
			planned.Error = err.Error()
		}

		for _, id := range images {
			if Eligible(id) {
				planned.Migrate = append(planned.Migrate, id.Tag)
			} else {
				planned.Skip = append(planned.Skip, id.Digest)
			}
		}

		plan.Repositories = append(plan.Repositories, planned)
	}

	return plan, nil
}
