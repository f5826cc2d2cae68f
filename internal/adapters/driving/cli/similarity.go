package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

var (
	compareTop  int
	compareJSON bool

	rankLimit int
	rankJSON  bool

	patternThreshold float64
	patternJSON      bool

	matrixOut  string
	matrixJSON bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <entity-a> <entity-b>",
	Short: "Compare two entity profiles",
	Long: `Compares two profiles in the feature space: cosine similarity, euclidean
distance, per-section similarity, affinity level and the dimensions where the
two entities differ most.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

var rankCmd = &cobra.Command{
	Use:   "rank <entity-id>",
	Short: "Rank profiles by similarity to an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runRank,
}

var patternCmd = &cobra.Command{
	Use:   "pattern <key=value>...",
	Short: "Find profiles matching a partial feature pattern",
	Long: `Scores every profile on the named dimensions only. Keys may be full feature
keys (cognition.reasoning.deductive) or leaf names (deductive).

Example:
  cogniprof pattern activism=0.8 formalism=0.2 --threshold 0.9`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPattern,
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Export the pairwise similarity matrix",
	Long: `Computes cosine similarity between every pair of profiles and writes it as
CSV (header row of entity ids, one row per entity) to stdout or --out.`,
	Args: cobra.NoArgs,
	RunE: runMatrix,
}

func init() {
	compareCmd.Flags().IntVarP(&compareTop, "top", "n", 5, "number of differentiators")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "output as JSON")
	rankCmd.Flags().IntVarP(&rankLimit, "limit", "n", 10, "maximum number of results (0 = all)")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "output as JSON")
	patternCmd.Flags().Float64Var(&patternThreshold, "threshold", 0.7, "minimum similarity")
	patternCmd.Flags().BoolVar(&patternJSON, "json", false, "output as JSON")
	matrixCmd.Flags().StringVarP(&matrixOut, "out", "o", "", "write to file instead of stdout")
	matrixCmd.Flags().BoolVar(&matrixJSON, "json", false, "output as JSON instead of CSV")

	rootCmd.AddCommand(compareCmd, rankCmd, patternCmd, matrixCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	if similarityService == nil {
		return errors.New("similarity service not configured")
	}

	result, err := similarityService.Compare(cmd.Context(), args[0], args[1], compareTop)
	if err != nil {
		return fmt.Errorf("compare failed: %w", err)
	}
	if compareJSON {
		return printJSON(cmd, result)
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("%s %s vs %s\n", st.Title("Comparison"), result.EntityA, result.EntityB)
	cmd.Printf("  cosine     %s (%s affinity)\n", formatScore(result.CosineSimilarity), result.Affinity)
	cmd.Printf("  euclidean  %s\n", formatScore(result.EuclideanDistance))
	if len(result.Sections) > 0 {
		cmd.Println(st.Title("Sections"))
		for _, s := range result.Sections {
			cmd.Printf("  %-20s %s\n", s.Section, formatScore(s.Similarity))
		}
	}
	if len(result.Differentiators) > 0 {
		cmd.Println(st.Title("Differentiators"))
		for _, d := range result.Differentiators {
			cmd.Printf("  %s  %s vs %s  %s\n", st.Key(d.Key),
				formatScore(d.ValueA), formatScore(d.ValueB),
				st.Muted("delta "+formatScore(d.Delta)))
		}
	}
	return nil
}

func runRank(cmd *cobra.Command, args []string) error {
	if similarityService == nil {
		return errors.New("similarity service not configured")
	}

	ranked, err := similarityService.Rank(cmd.Context(), args[0], rankLimit)
	if err != nil {
		return fmt.Errorf("rank failed: %w", err)
	}
	if rankJSON {
		return printJSON(cmd, ranked)
	}
	printRanked(cmd, "Most similar to "+args[0], ranked)
	return nil
}

func printRanked(cmd *cobra.Command, title string, ranked []domain.RankedEntity) {
	if len(ranked) == 0 {
		cmd.Println("No results found.")
		return
	}
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title(title))
	for i, r := range ranked {
		cmd.Printf("  [%d] %s  %s\n", i+1, st.Key(r.EntityID), formatScore(r.Similarity))
		if r.Detail != "" {
			cmd.Printf("      %s\n", st.Muted(r.Detail))
		}
	}
}

func runPattern(cmd *cobra.Command, args []string) error {
	if similarityService == nil {
		return errors.New("similarity service not configured")
	}

	pattern, err := parsePattern(args)
	if err != nil {
		return err
	}
	matches, err := similarityService.PatternSearch(cmd.Context(), pattern, patternThreshold)
	if err != nil {
		return fmt.Errorf("pattern search failed: %w", err)
	}
	if patternJSON {
		return printJSON(cmd, matches)
	}
	if len(matches) == 0 {
		cmd.Println("No matching profiles.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title("Pattern matches"))
	for i, m := range matches {
		cmd.Printf("  [%d] %s  %s  %s\n", i+1, st.Key(m.EntityID), formatScore(m.Similarity),
			st.Muted(strings.Join(m.Dimensions, ", ")))
	}
	return nil
}

// parsePattern reads key=value pairs.
func parsePattern(args []string) (map[string]float64, error) {
	pattern := make(map[string]float64, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid pattern %q, expected key=value: %w", arg, domain.ErrInvalidInput)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", arg, domain.ErrInvalidInput)
		}
		pattern[key] = v
	}
	return pattern, nil
}

func runMatrix(cmd *cobra.Command, _ []string) error {
	if similarityService == nil {
		return errors.New("similarity service not configured")
	}

	matrix, err := similarityService.Matrix(cmd.Context())
	if err != nil {
		return fmt.Errorf("matrix failed: %w", err)
	}

	if matrixOut == "" {
		if matrixJSON {
			return printJSON(cmd, matrix)
		}
		return writeMatrixCSV(cmd.OutOrStdout(), matrix)
	}

	f, err := os.Create(matrixOut)
	if err != nil {
		return fmt.Errorf("creating %s: %w", matrixOut, err)
	}
	if matrixJSON {
		enc := jsonEncoder(f)
		err = enc.Encode(matrix)
	} else {
		err = writeMatrixCSV(f, matrix)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", matrixOut, err)
	}
	cmd.Printf("Wrote %dx%d matrix to %s\n", len(matrix.EntityIDs), len(matrix.EntityIDs), matrixOut)
	return nil
}

// writeMatrixCSV writes a header of entity ids with a leading empty cell,
// then one row per entity.
func writeMatrixCSV(w io.Writer, m *domain.SimilarityMatrix) error {
	cw := csv.NewWriter(w)
	header := append([]string{""}, m.EntityIDs...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, id := range m.EntityIDs {
		row := make([]string, 0, len(m.EntityIDs)+1)
		row = append(row, id)
		for _, v := range m.Values[i] {
			row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
