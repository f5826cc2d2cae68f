package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
)

var (
	linesAll          bool
	linesMinGroupSize int
	linesMissingRatio string
)

var linesCmd = &cobra.Command{
	Use:   "lines [entity-id]",
	Short: "Detect jurisprudential lines per topic",
	Long: `Groups an entity's records by topic and scores how consistently the
entity decides each topic. Topics with fewer than --min-records records are
reported as insufficient evidence. Lines are replaced wholesale and the
profile's consolidated and inconsistent line summary is updated.

Use --all to analyze every entity. In batch mode the command exits with
status 1 if any entity failed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLines,
}

func init() {
	linesCmd.Flags().BoolVar(&linesAll, "all", false, "analyze every entity")
	linesCmd.Flags().IntVar(&linesMinGroupSize, "min-records", domain.DefaultMinGroupSize,
		"minimum records per topic for a line")
	linesCmd.Flags().IntVar(&linesMinGroupSize, "min-group-size", domain.DefaultMinGroupSize,
		"alias for --min-records")
	linesCmd.Flags().StringVar(&linesMissingRatio, "missing-ratio", "",
		"scoring of unobserved agreement ratios: neutral or exclude (default from config)")
	rootCmd.AddCommand(linesCmd)
}

func runLines(cmd *cobra.Command, args []string) error {
	if lineAnalyzer == nil {
		return errors.New("line analyzer not configured")
	}
	if err := entityOrAll(args, linesAll); err != nil {
		return err
	}

	sizeFlag := "min-records"
	if cmd.Flags().Changed("min-group-size") {
		sizeFlag = "min-group-size"
	}
	opts := driving.LineOptions{
		MinGroupSize: configuredInt(cmd, sizeFlag, linesMinGroupSize, keyLinesMinGroupSize),
	}
	if linesMissingRatio != "" {
		policy := domain.MissingRatioPolicy(linesMissingRatio)
		if policy != domain.MissingRatioNeutral && policy != domain.MissingRatioExclude {
			return fmt.Errorf("invalid --missing-ratio %q: %w", linesMissingRatio, domain.ErrInvalidInput)
		}
		opts.MissingRatio = policy
	}

	ctx := cmd.Context()
	if linesAll {
		report, err := lineAnalyzer.AnalyzeAll(ctx, opts)
		if err != nil {
			return fmt.Errorf("line analysis failed: %w", err)
		}
		printBatch(cmd, "Line analysis", report)
		return batchExit(report.Failed)
	}

	analysis, err := lineAnalyzer.Analyze(ctx, args[0], opts)
	if errors.Is(err, domain.ErrNoData) {
		cmd.Printf("No records for %s; lines unchanged.\n", args[0])
		return nil
	}
	if err != nil {
		return fmt.Errorf("line analysis failed: %w", err)
	}
	printLines(cmd, analysis.EntityID, analysis.Lines)
	if len(analysis.DroppedGroups) > 0 {
		st := newStyles(cmd.OutOrStdout())
		cmd.Printf("  %s %s\n", st.Muted("below min group size:"), joinOrDash(analysis.DroppedGroups))
	}
	return nil
}

func printLines(cmd *cobra.Command, entityID string, lines []domain.JurisprudentialLine) {
	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("%s %s\n", st.Title("Lines"), entityID)
	if len(lines) == 0 {
		cmd.Println("  No lines found.")
		return
	}
	for i := range lines {
		l := &lines[i]
		class := l.Classification()
		switch class {
		case domain.LineConsolidated:
			class = st.Success(class)
		case domain.LineInconsistent:
			class = st.Failure(class)
		default:
			class = st.Warning(class)
		}
		cmd.Printf("  %s  %s  %s  %d records\n", st.Key(l.Topic), formatScore(l.ConsistencyScore), class, l.RecordCount())
		if l.Criterion != "" {
			cmd.Printf("    %s\n", st.Muted(l.Criterion))
		}
	}
}
