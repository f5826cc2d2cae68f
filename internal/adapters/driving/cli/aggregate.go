package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

var aggregateAll bool

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [entity-id]",
	Short: "Consolidate records into entity profiles",
	Long: `Recomputes the profile of one entity, or of every known entity with --all.

Each run replaces the stored profile wholesale. Entities without any record
carrying judicial data are skipped and keep their previous profile.
In batch mode the command exits with status 1 if any entity failed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().BoolVar(&aggregateAll, "all", false, "aggregate every entity")
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	if aggregatorService == nil {
		return errors.New("aggregator service not configured")
	}
	if err := entityOrAll(args, aggregateAll); err != nil {
		return err
	}

	ctx := cmd.Context()
	if aggregateAll {
		report, err := aggregatorService.AggregateAll(ctx)
		if err != nil {
			return fmt.Errorf("aggregation failed: %w", err)
		}
		printBatch(cmd, "Aggregation", report)
		return batchExit(report.Failed)
	}

	result, err := aggregatorService.Aggregate(ctx, args[0])
	if errors.Is(err, domain.ErrNoData) {
		cmd.Printf("No judicial data for %s; profile unchanged.\n", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	p := result.Profile
	cmd.Printf("%s %s\n", st.Title("Profile"), p.EntityID)
	cmd.Printf("  records     %d (%d without judicial data)\n", p.RecordCount, result.Skipped)
	cmd.Printf("  confidence  %s (%s)\n", formatScore(p.Confidence), p.ConfidenceModel)
	cmd.Printf("  manifest    %s\n", p.ManifestVersion)
	return nil
}

// entityOrAll enforces exactly one of a positional entity id or --all.
func entityOrAll(args []string, all bool) error {
	switch {
	case all && len(args) > 0:
		return errors.New("pass either an entity id or --all, not both")
	case !all && len(args) == 0:
		return errors.New("an entity id or --all is required")
	}
	return nil
}

// configuredInt returns the flag value when it was set explicitly,
// otherwise the configured value for key, otherwise the flag default.
func configuredInt(cmd *cobra.Command, flag string, value int, key string) int {
	if cmd.Flags().Changed(flag) || settingsService == nil {
		return value
	}
	raw, err := settingsService.Value(key)
	if err != nil {
		return value
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return value
	}
	return n
}
