package retrievo

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/retrievo/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration after merging defaults, the config file,
environment variables and flags. Secrets are redacted.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Embedding.APIKey != "" {
		cfg.Embedding.APIKey = "***"
	}
	if cfg.LLM.APIKey != "" {
		cfg.LLM.APIKey = "***"
	}
	if cfg.Alert.Password != "" {
		cfg.Alert.Password = "***"
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
