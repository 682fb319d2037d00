package main

import (
	"github.com/matsen/scholarsync/internal/probe"
	"github.com/matsen/scholarsync/internal/scholar"
	"github.com/spf13/cobra"
)

var (
	probeScholarID string
	probeAttempts  int
	probeTarget    string
)

var probeCmd = &cobra.Command{
	Use:   "probe [scholar-id]",
	Short: "Check that Google Scholar answers through the current identity",
	Long: `Request the profile page (or --target) and report whether it is blocked.
Blocked identities are rotated up to --attempts times.

Examples:
  scholarsync probe --id=-rmRjqIAAAAJ
  scholarsync probe -- -rmRjqIAAAAJ
  scholarsync probe --target https://scholar.google.com --attempts 3 --human`,
	Args: cobra.MaximumNArgs(1),
	Run:  runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeScholarID, "id", "", "Google Scholar profile ID (use for IDs starting with -)")
	probeCmd.Flags().IntVar(&probeAttempts, "attempts", 0, "Identities to try (default from config)")
	probeCmd.Flags().StringVar(&probeTarget, "target", "", "URL to probe instead of the profile page")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	if id := scholarIDArg(cmd, args, probeScholarID); id != "" {
		cfg.ScholarID = id
	}
	if cmd.Flags().Changed("attempts") {
		cfg.ProbeAttempts = probeAttempts
	}
	mustValidate(cfg)

	target := probeTarget
	if target == "" {
		if cfg.ScholarID == "" {
			target = scholar.BaseURL
		} else {
			target = scholar.NewClient().ProfileURL(cfg.ScholarID)
		}
	}

	logger := newLogger()
	ctx, stop := signalContext()
	defer stop()

	hc := newHTTPClient(cfg)
	p := probe.New(hc, newRotator(cfg, logger), target, cfg.SettleWait, probe.WithLogger(logger))

	attempts := cfg.ProbeAttempts
	if attempts < 1 {
		attempts = 1
	}
	resp := ProbeResponse{
		Reachable: p.FindCleanPath(ctx, attempts),
		Target:    target,
	}
	if id, err := p.CurrentIdentity(ctx); err == nil {
		resp.IP = id.IP
		resp.IsTor = id.IsTor
	}

	if humanOutput {
		status := "blocked"
		if resp.Reachable {
			status = "reachable"
		}
		outputHuman("%s: %s\n", target, status)
		if resp.IP != "" {
			outputHuman("exit IP: %s (tor: %v)\n", resp.IP, resp.IsTor)
		}
	} else {
		outputJSON(resp)
	}
	if !resp.Reachable {
		exitWithCode(ExitError)
	}
}
