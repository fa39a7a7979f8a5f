package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gumaertl2/PPT-sub001/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View or create ppt configuration.

Configuration is read from ~/.config/ppt/config.yaml, then .ppt.yaml in
the current directory or a parent, then PPT_* environment variables.
API keys come from ANTHROPIC_API_KEY or GEMINI_API_KEY.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		displayAllConfig(cfg)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file locations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("user:    %s\n", config.GetUserConfigPath())
		project := config.GetProjectConfigPath()
		if project == "" {
			project = "(none)"
		}
		fmt.Printf("project: %s\n", project)
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a project config with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = ".ppt.yaml"
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.SaveTo(config.Default(), path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("%s Created %s\n", okMark(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	b := cfg.Backend
	fmt.Printf("backend.provider: %s\n", b.Provider)
	for _, p := range []string{config.ProviderAnthropic, config.ProviderGemini} {
		key, _ := config.GetAPIKey(cfg, p)
		fmt.Printf("backend.%s.api_key: %s (%s)\n", p, config.MaskAPIKey(key), config.GetAPIKeySource(cfg, p))
	}
	if b.Anthropic.UseBedrock {
		fmt.Printf("backend.anthropic.use_bedrock: true (region %s, profile %s)\n", b.Anthropic.AWSRegion, b.Anthropic.AWSProfile)
	}
	fmt.Printf("backend.max_tokens: %d\n", b.MaxTokens)
	fmt.Printf("backend.requests_per_minute: %d\n", b.RequestsPerMinute)
	fmt.Printf("backend.max_retries: %d\n", b.MaxRetries)
	fmt.Printf("backend.initial_backoff: %s\n", b.InitialBackoff)
	fmt.Printf("backend.max_backoff: %s\n", b.MaxBackoff)
	fmt.Printf("backend.inbox_dir: %s\n", b.InboxDir)

	tiers := make([]string, 0, len(cfg.Tiers))
	for name := range cfg.Tiers {
		tiers = append(tiers, name)
	}
	sort.Strings(tiers)
	for _, name := range tiers {
		tc := cfg.Tiers[name]
		fmt.Printf("tiers.%s: anthropic=%s gemini=%s fallback=%s\n", name, tc.Anthropic, tc.Gemini, tc.Fallback)
	}

	ids := make([]string, 0, len(cfg.Tasks))
	for id := range cfg.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		tc := cfg.Tasks[id]
		fmt.Printf("tasks.%s:", id)
		if tc.AutoChunkSize != nil {
			fmt.Printf(" auto_chunk_size=%d", *tc.AutoChunkSize)
		}
		if tc.ManualChunkSize != nil {
			fmt.Printf(" manual_chunk_size=%d", *tc.ManualChunkSize)
		}
		if tc.ModelTier != "" {
			fmt.Printf(" model_tier=%s", tc.ModelTier)
		}
		fmt.Println()
	}

	fmt.Printf("store.path: %s\n", cfg.Store.Path)
	fmt.Printf("store.driver: %s\n", cfg.Store.Driver)
	fmt.Printf("resolve.min_match_length: %d\n", cfg.Resolve.MinMatchLength)
	fmt.Printf("logging.level: %s\n", cfg.Logging.Level)
	fmt.Printf("logging.file: %s\n", cfg.Logging.File)
	fmt.Printf("logging.json: %t\n", cfg.Logging.JSON)
}
