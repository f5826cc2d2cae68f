package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

// Config keys read by commands for their flag defaults.
const (
	keyIndexTopK         = "index.top_k"
	keyLinesMinGroupSize = "lines.min_group_size"
)

var configListJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the settings stored in config.toml.

Without a subcommand the effective settings are shown grouped by section.`,
	RunE: runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key with its value and default",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the embedding provider is reachable",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

func init() {
	configListCmd.Flags().BoolVar(&configListJSON, "json", false, "output as JSON")
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd, configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title("Current Settings"))
	cmd.Println()

	cmd.Println("[Data]")
	cmd.Printf("  Directory: %s\n", settings.DataDir)
	cmd.Println()

	cmd.Println("[Index]")
	cmd.Printf("  Directory: %s\n", settings.Index.Dir)
	cmd.Printf("  Top K: %d\n", settings.Index.TopK)
	cmd.Printf("  Query timeout: %s\n", settings.Index.QueryTimeout)
	cmd.Println()

	cmd.Println("[Embedding]")
	emb := settings.Embedding
	cmd.Printf("  Provider: %s\n", emb.Provider.Description())
	if emb.Provider != domain.AIProviderNone {
		cmd.Printf("  Model: %s\n", valueOrDefault(emb.Model))
		cmd.Printf("  Rate limit: %.1f req/s\n", emb.RequestsPerSecond)
	}
	if emb.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", valueOrDefault(emb.BaseURL))
	}
	if emb.Provider.RequiresAPIKey() {
		if key := os.Getenv(emb.APIKeyEnv); key != "" {
			cmd.Printf("  API Key: %s (from $%s)\n", maskAPIKey(key), emb.APIKeyEnv)
		} else {
			cmd.Printf("  API Key: %s\n", st.Warning("$"+emb.APIKeyEnv+" not set"))
		}
	}
	cmd.Println()

	cmd.Println("[Batch]")
	cmd.Printf("  Workers: %d\n", settings.Batch.Workers)
	cmd.Println()

	cmd.Println("[Lines]")
	cmd.Printf("  Min group size: %d\n", settings.Lines.MinGroupSize)
	cmd.Printf("  Missing ratio policy: %s\n", settings.Lines.MissingRatio)
	cmd.Println()

	cmd.Println("[Profile]")
	cmd.Printf("  Confidence model: %s\n", settings.Profile.ConfidenceModel)
	cmd.Printf("  Top topics: %d\n", settings.Profile.TopTopics)

	if err := settings.Validate(); err != nil {
		cmd.Println()
		cmd.Printf("%s %v\n", st.Warning("Warning:"), err)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	v, err := settingsService.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Println(v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	v, err := settingsService.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Printf("%s = %s\n", args[0], v)
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	entries := settingsService.List()
	if configListJSON {
		return printJSON(cmd, entries)
	}

	st := newStyles(cmd.OutOrStdout())
	for _, e := range entries {
		marker := " "
		if e.Configured {
			marker = "*"
		}
		cmd.Printf("%s %-34s %s", marker, st.Key(e.Key), valueOrDefault(e.Value))
		if e.Configured && e.Value != e.Default {
			cmd.Printf("  %s", st.Muted("(default "+valueOrDefault(e.Default)+")"))
		}
		cmd.Println()
	}
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	if err := settings.Validate(); err != nil {
		cmd.Printf("%s %v\n", st.Failure("Settings:"), err)
		return err
	}
	cmd.Printf("%s ok\n", st.Success("Settings:"))

	if !settings.Embedding.IsConfigured() {
		cmd.Printf("%s disabled (profile index only)\n", st.Muted("Embedding:"))
		return nil
	}
	if err := settingsService.ValidateEmbedding(); err != nil {
		cmd.Printf("%s %v\n", st.Failure("Embedding:"), err)
		return err
	}
	cmd.Printf("%s %s reachable\n", st.Success("Embedding:"), settings.Embedding.Provider.Description())
	return nil
}

// maskAPIKey masks an API key for display, showing only first and last 4 chars.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func valueOrDefault(v string) string {
	if v == "" {
		return "(provider default)"
	}
	return v
}
