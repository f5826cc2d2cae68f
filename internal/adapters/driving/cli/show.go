package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

var (
	showJSON bool

	listJSON bool

	searchLimit int
	searchJSON  bool
)

var showCmd = &cobra.Command{
	Use:   "show <entity-id>",
	Short: "Show an entity's profile and lines",
	Long: `Prints the stored profile and jurisprudential lines of an entity.
With --json the output is the flat row shape consumed by report generators:
{"profile": {...}, "lines": [...]}.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Find profiles by entity id or recurring topic",
	Long: `Case-insensitive substring lookup over entity ids and recurring topics.
It needs no vector index; see "index query" for similarity search.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON rows")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON rows")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON rows")
	rootCmd.AddCommand(showCmd, listCmd, searchCmd)
}

type showOutput struct {
	Profile domain.ProfileRow `json:"profile"`
	Lines   []domain.LineRow  `json:"lines"`
}

func runShow(cmd *cobra.Command, args []string) error {
	if profileReader == nil {
		return errors.New("profile reader not configured")
	}

	ctx := cmd.Context()
	p, err := profileReader.GetProfile(ctx, args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no profile for %s; run aggregate first", args[0])
	}
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	lines, err := profileReader.GetLines(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading lines: %w", err)
	}

	if showJSON {
		out := showOutput{Profile: p.Row(), Lines: make([]domain.LineRow, 0, len(lines))}
		for i := range lines {
			out.Lines = append(out.Lines, lines[i].Row())
		}
		return printJSON(cmd, out)
	}

	printProfile(cmd, p)
	cmd.Println()
	printLines(cmd, p.EntityID, lines)
	return nil
}

func printProfile(cmd *cobra.Command, p *domain.EntityProfile) {
	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("%s %s\n", st.Title("Profile"), p.EntityID)
	cmd.Printf("  records     %d\n", p.RecordCount)
	cmd.Printf("  confidence  %s (%s)\n", formatScore(p.Confidence), p.ConfidenceModel)
	cmd.Printf("  updated     %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05"))

	cmd.Println(st.Title("Judicial"))
	for _, name := range domain.JudicialMetrics {
		m, _ := p.Judicial.Metric(name)
		cmd.Printf("  %-22s %s\n", name, formatMetric(m))
	}
	for _, name := range domain.JudicialLabels {
		if l := p.Judicial.Label(name); l.Valid() {
			cmd.Printf("  %-22s %s\n", name, string(l))
		}
	}

	if len(p.RecurringTopics) > 0 {
		cmd.Println(st.Title("Recurring topics"))
		for _, t := range p.RecurringTopics {
			cmd.Printf("  %s %d\n", st.Key(t.Topic), t.Count)
		}
	}

	consolidated := make([]string, 0, len(p.ConsolidatedLines))
	for topic := range p.ConsolidatedLines {
		consolidated = append(consolidated, topic)
	}
	sort.Strings(consolidated)
	cmd.Println(st.Title("Line summary"))
	cmd.Printf("  %s %s\n", st.Success("consolidated"), joinOrDash(consolidated))
	cmd.Printf("  %s %s\n", st.Warning("emerging    "), joinOrDash(p.EmergingLines))
	cmd.Printf("  %s %s\n", st.Failure("inconsistent"), joinOrDash(p.InconsistentLines))
}

func runList(cmd *cobra.Command, _ []string) error {
	if profileReader == nil {
		return errors.New("profile reader not configured")
	}

	profiles, err := profileReader.ListProfiles(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}
	return outputProfiles(cmd, profiles, listJSON)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if profileReader == nil {
		return errors.New("profile reader not configured")
	}

	profiles, err := profileReader.SearchProfiles(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return outputProfiles(cmd, profiles, searchJSON)
}

func outputProfiles(cmd *cobra.Command, profiles []domain.EntityProfile, asJSON bool) error {
	if asJSON {
		rows := make([]domain.ProfileRow, 0, len(profiles))
		for i := range profiles {
			rows = append(rows, profiles[i].Row())
		}
		return printJSON(cmd, rows)
	}
	if len(profiles) == 0 {
		cmd.Println("No profiles found.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("%s (%d)\n", st.Title("Profiles"), len(profiles))
	for i := range profiles {
		p := &profiles[i]
		cmd.Printf("  %s  %d records  confidence %s  %s\n",
			st.Key(p.EntityID), p.RecordCount, formatScore(p.Confidence),
			st.Muted(fmt.Sprintf("%d consolidated, %d inconsistent", len(p.ConsolidatedLines), len(p.InconsistentLines))))
	}
	return nil
}
