// Package main provides the scholarsync CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/matsen/scholarsync/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scholarsync",
	Short: "Sync Google Scholar publications into a CV addendum",
	Long: `scholarsync fetches a Google Scholar profile through Tor, classifies each
publication as journal, conference or preprint, drops titles already in
your CV, and writes a CV-formatted addendum plus a JSON record.

Progress is checkpointed after every publication; an interrupted sync
resumes where it stopped.

Configuration is read from --config, ./scholarsync.yml or
$XDG_CONFIG_HOME/scholarsync/config.yml, then the environment (a .env
file is loaded if present), then flags.

Environment Variables:
  SCHOLARSYNC_SCHOLAR_ID  Google Scholar profile ID
  SCHOLARSYNC_PROXY       SOCKS proxy URL (default socks5h://127.0.0.1:9050)
  SCHOLARSYNC_CHECKPOINT  Checkpoint path
  TOR_CONTROL_ADDR        Tor control port address (default 127.0.0.1:9051)
  TOR_CONTROL_PASSWORD    Tor control port password

All commands output JSON by default. Use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env file if present (for TOR_CONTROL_PASSWORD)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noTor, "no-tor", false, "Connect directly, without the SOCKS proxy or identity rotation")
	rootCmd.Version = Version
}

// newLogger returns the diagnostic logger. Logs go to stderr so stdout
// stays parseable.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// mustLoadConfig builds the effective configuration from file and
// environment, exiting with ExitConfigError on failure. Callers apply
// their flags and then call mustValidate.
func mustLoadConfig() config.Config {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg.ApplyEnv(os.Getenv)
}

// mustValidate exits with ExitConfigError when cfg is invalid.
func mustValidate(cfg config.Config) {
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
}

// scholarIDArg returns the positional profile ID, else the --id flag
// value, else "". IDs such as -rmRjqIAAAAJ must come after "--" or via
// --id=, since pflag reads a leading dash as shorthand flags.
func scholarIDArg(cmd *cobra.Command, args []string, flagValue string) string {
	if len(args) == 1 {
		return args[0]
	}
	if cmd.Flags().Changed("id") {
		return flagValue
	}
	return ""
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
