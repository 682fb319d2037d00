package main

import (
	"github.com/matsen/scholarsync/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying the config file and environment.
The Tor control password is masked.

With --human the output is YAML that can be saved as scholarsync.yml.`,
	Args: cobra.NoArgs,
	Run:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	if err := cfg.Validate(); err != nil {
		newLogger().Warn("configuration is invalid", "error", err)
	}

	data, err := configYAML(cfg)
	if err != nil {
		exitWithError(ExitError, "encoding config: %v", err)
	}
	if humanOutput {
		outputHuman("%s", data)
		return
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		exitWithError(ExitError, "encoding config: %v", err)
	}
	outputJSON(m)
}

// configYAML renders cfg as YAML with the control password masked.
func configYAML(cfg config.Config) ([]byte, error) {
	if cfg.ControlPassword != "" {
		cfg.ControlPassword = "********"
	}
	return yaml.Marshal(cfg)
}
