package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/adapters/driving/watch"
	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Load extractor output into the record store",
	Long: `Reads analysis records from JSON files. Each file may hold a single
object, an array of objects or one object per line. Directories are scanned
recursively for .json and .jsonl files.

Records are upserted by (entity_id, document_id); malformed entries are
skipped and counted.

With --watch the command keeps running and ingests files as they are
created or modified.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the paths for new or changed files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st := newStyles(cmd.OutOrStdout())
	var accepted, skipped int
	entities := map[string]bool{}
	for _, path := range files {
		report, err := ingestService.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		accepted += report.Accepted
		skipped += report.Skipped
		for _, id := range report.Entities {
			entities[id] = true
		}
		cmd.Printf("  %s %s\n", st.Key(path), st.Muted(fmt.Sprintf("%d accepted, %d skipped", report.Accepted, report.Skipped)))
	}
	cmd.Printf("%s %d records from %d files (%d skipped, %d entities)\n",
		st.Title("Ingested"), accepted, len(files), skipped, len(entities))

	if !ingestWatch {
		return nil
	}
	return watchPaths(cmd, args)
}

func watchPaths(cmd *cobra.Command, paths []string) error {
	st := newStyles(cmd.OutOrStdout())
	w, err := watch.New(ingestService, watch.Options{
		OnIngest: func(path string, report *domain.IngestReport, err error) {
			if err != nil {
				cmd.Printf("  %s %s: %v\n", st.Failure("error"), path, err)
				return
			}
			cmd.Printf("  %s %s %s\n", st.Success("ingested"), path,
				st.Muted(fmt.Sprintf("%d accepted, %d skipped", report.Accepted, report.Skipped)))
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	for _, p := range paths {
		if err := w.Add(p); err != nil {
			return err
		}
	}
	cmd.Println(st.Muted("Watching for changes (Ctrl+C to stop)..."))
	return w.Run(cmd.Context())
}

// collectFiles expands directories into their record files, sorted.
// Explicit file arguments are kept whatever their extension.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && watch.Matches(p) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
