// Package cli provides the cobra command tree for cogniprof.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/ports/driving"
	"github.com/custodia-labs/cogniprof/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// ErrPartialFailure is returned when a batch finished but some entities failed.
// The process exits with status 1 in that case.
var ErrPartialFailure = errors.New("one or more entities failed")

// Services holds the driving ports the commands call into.
type Services struct {
	Ingest     driving.IngestService
	Aggregator driving.ProfileAggregator
	Lines      driving.LineAnalyzer
	Reader     driving.ProfileReader
	Similarity driving.SimilarityService
	Index      driving.IndexService
	Settings   driving.SettingsService
}

// Bootstrap builds the services once global flags are parsed.
// The returned func releases whatever the services hold open.
type Bootstrap func(configDir string) (*Services, func(), error)

var (
	ingestService     driving.IngestService
	aggregatorService driving.ProfileAggregator
	lineAnalyzer      driving.LineAnalyzer
	profileReader     driving.ProfileReader
	similarityService driving.SimilarityService
	indexService      driving.IndexService
	settingsService   driving.SettingsService

	bootstrap Bootstrap
	shutdown  func()
)

var (
	verbose   bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "cogniprof",
	Short: "Cognitive profile aggregation and similarity engine",
	Long: `cogniprof consolidates per-document analysis records into entity profiles,
detects jurisprudential lines per topic and compares profiles in a fixed
feature space.

Typical flow:
  cogniprof ingest ./extracted
  cogniprof aggregate --all
  cogniprof lines --all
  cogniprof rank judge-42`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.cogniprof)")
}

// SetServices injects the driving ports directly.
func SetServices(s Services) {
	ingestService = s.Ingest
	aggregatorService = s.Aggregator
	lineAnalyzer = s.Lines
	profileReader = s.Reader
	similarityService = s.Similarity
	indexService = s.Index
	settingsService = s.Settings
}

// SetBootstrap registers the builder used to create services lazily,
// after --config-dir has been parsed.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer func() {
		if shutdown != nil {
			shutdown()
			shutdown = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetOutput(cmd.ErrOrStderr())
	if bootstrap == nil || skipBootstrap(cmd) {
		return nil
	}
	s, closeFn, err := bootstrap(configDir)
	if err != nil {
		return err
	}
	SetServices(*s)
	shutdown = closeFn
	bootstrap = nil
	return nil
}

// skipBootstrap reports commands that never touch the stores.
func skipBootstrap(cmd *cobra.Command) bool {
	return cmd == versionCmd || cmd.Name() == "help"
}

// batchExit maps a batch report's failures onto ErrPartialFailure.
func batchExit(failed int) error {
	if failed > 0 {
		return ErrPartialFailure
	}
	return nil
}
