package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alvesdmateus/registry-migrator/internal/migration"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "List what a migration would copy without changing the target",
	Long: `Enumerate the source catalog and print, per repository, the tags that would be
migrated and the untagged digests that would be skipped. The target registry is
never contacted.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	flags := planCmd.Flags()
	addSourceFlags(flags)
	addTargetFlags(flags)
	flags.StringP("output", "o", "", "write the plan to this file instead of stdout")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := setupLogging(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	source, err := newSource(cmd, cfg)
	if err != nil {
		return err
	}

	orch := migration.NewOrchestrator(settingsFromConfig(cfg), source, newTarget(cfg), nil, logger)
	plan, err := orch.Plan(cmd.Context())
	if err != nil {
		return err
	}

	migrate, skip := plan.Counts()
	logger.Info().
		Int("repositories", len(plan.Repositories)).
		Int("migrate", migrate).
		Int("skip", skip).
		Msg("Plan ready")

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return writePlan(cmd.OutOrStdout(), plan)
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer file.Close()

	return writePlan(file, plan)
}

func writePlan(w io.Writer, plan *migration.Plan) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(plan); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return encoder.Close()
}
