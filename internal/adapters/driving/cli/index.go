package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

const defaultTopK = 8

var (
	indexStatusJSON bool

	queryEntity string
	queryK      int
	queryJSON   bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector indexes",
	Long: `Maintains the on-disk similarity indexes:

  profiles    manifest vectors of every profile (always available)
  signatures  text embeddings of profile signatures (needs an embedding provider)

When an index is unavailable, queries fall back to exact lookups.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build indexes that are missing on disk",
	Args:  cobra.NoArgs,
	RunE:  runIndexBuild,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild every index from the stored profiles",
	Args:  cobra.NoArgs,
	RunE:  runIndexRebuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of each index",
	Args:  cobra.NoArgs,
	RunE:  runIndexStatus,
}

var indexCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete vector files no profile references",
	Args:  cobra.NoArgs,
	RunE:  runIndexCleanup,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query an index by free text or by entity",
	Long: `Finds the profiles nearest to a free-text description (signature index)
or to an existing entity (--entity, profile index).

Examples:
  cogniprof index query "formalist, deferential to the legislature"
  cogniprof index query --entity judge-42 -k 5`,
	RunE: runIndexQuery,
}

func init() {
	indexStatusCmd.Flags().BoolVar(&indexStatusJSON, "json", false, "output as JSON")
	indexQueryCmd.Flags().StringVar(&queryEntity, "entity", "", "query with this entity's profile vector")
	indexQueryCmd.Flags().IntVarP(&queryK, "top-k", "k", defaultTopK, "number of neighbours")
	indexQueryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")

	indexCmd.AddCommand(indexBuildCmd, indexRebuildCmd, indexStatusCmd, indexCleanupCmd, indexQueryCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if err := indexService.EnsureBuilt(cmd.Context()); err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}
	return printIndexStatus(cmd, indexService.Status(cmd.Context()))
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if err := indexService.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("index rebuild failed: %w", err)
	}
	return printIndexStatus(cmd, indexService.Status(cmd.Context()))
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	statuses := indexService.Status(cmd.Context())
	if indexStatusJSON {
		return printJSON(cmd, statuses)
	}
	return printIndexStatus(cmd, statuses)
}

func printIndexStatus(cmd *cobra.Command, statuses []domain.IndexStatus) error {
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title("Indexes"))
	for _, s := range statuses {
		state := string(s.State)
		switch s.State {
		case domain.IndexReady:
			state = st.Success(state)
		case domain.IndexCorrupt:
			state = st.Failure(state)
		default:
			state = st.Warning(state)
		}
		cmd.Printf("  %-11s %s", s.Name, state)
		if s.State == domain.IndexReady {
			cmd.Printf("  %d entries, %d dims", s.Count, s.Dimensions)
			if s.Tag != "" {
				cmd.Printf(", %s", s.Tag)
			}
		}
		if s.Reason != "" {
			cmd.Printf("  %s", st.Muted(s.Reason))
		}
		cmd.Println()
	}
	return nil
}

func runIndexCleanup(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	report, err := indexService.CleanupOrphans(cmd.Context())
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	cmd.Printf("Removed %d orphaned vector files, kept %d.\n", len(report.Removed), report.Kept)
	for _, p := range report.Removed {
		cmd.Printf("  %s\n", p)
	}
	return nil
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if (text == "") == (queryEntity == "") {
		return errors.New("pass either query text or --entity")
	}

	ctx := cmd.Context()
	k := configuredInt(cmd, "top-k", queryK, keyIndexTopK)
	var (
		ranked []domain.RankedEntity
		err    error
	)
	if queryEntity != "" {
		ranked, err = indexService.QueryEntity(ctx, queryEntity, k)
	} else {
		ranked, err = indexService.QueryText(ctx, text, k)
	}
	if indexUnavailable(err) {
		cmd.PrintErrf("Index unavailable (%v); using exact lookup.\n", err)
		ranked, err = exactLookup(cmd, text, k)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, ranked)
	}
	title := "Nearest to " + queryEntity
	if queryEntity == "" {
		title = fmt.Sprintf("Nearest to %q", text)
	}
	printRanked(cmd, title, ranked)
	return nil
}

func indexUnavailable(err error) bool {
	return errors.Is(err, domain.ErrEmbeddingUnavailable) ||
		errors.Is(err, domain.ErrVectorIndexUnavailable) ||
		errors.Is(err, domain.ErrIndexCorrupt)
}

// exactLookup answers a query without the indexes: brute-force ranking for
// an entity, substring search for text.
func exactLookup(cmd *cobra.Command, text string, k int) ([]domain.RankedEntity, error) {
	ctx := cmd.Context()
	if queryEntity != "" {
		if similarityService == nil {
			return nil, errors.New("similarity service not configured")
		}
		return similarityService.Rank(ctx, queryEntity, k)
	}
	if profileReader == nil {
		return nil, errors.New("profile reader not configured")
	}
	profiles, err := profileReader.SearchProfiles(ctx, text, k)
	if err != nil {
		return nil, err
	}
	ranked := make([]domain.RankedEntity, 0, len(profiles))
	for i := range profiles {
		ranked = append(ranked, domain.RankedEntity{EntityID: profiles[i].EntityID, Similarity: 1})
	}
	return ranked, nil
}
