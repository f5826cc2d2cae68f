package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// printBatch writes the batch tally and one line per entity that did not succeed.
func printBatch(cmd *cobra.Command, title string, report *domain.BatchReport) {
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title(title))
	cmd.Printf("  %s %d  %s %d  %s %d  %s %d\n",
		st.Key("total"), report.Total,
		st.Success("succeeded"), report.Succeeded,
		st.Warning("skipped"), report.Skipped,
		st.Failure("failed"), report.Failed,
	)
	for _, o := range report.Outcomes {
		switch o.Status {
		case domain.OutcomeSkipped:
			cmd.Printf("  %s %s %s\n", st.Warning("skip"), o.EntityID, st.Muted(o.Detail))
		case domain.OutcomeFailed:
			cmd.Printf("  %s %s %s\n", st.Failure("fail"), o.EntityID, st.Muted(o.Detail))
		}
	}
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func formatMetric(m domain.Metric) string {
	if !m.Valid {
		return "-"
	}
	return formatScore(m.Value)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
