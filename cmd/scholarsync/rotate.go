package main

import (
	"github.com/matsen/scholarsync/internal/tor"
	"github.com/spf13/cobra"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Request a new Tor identity",
	Long: `Send SIGNAL NEWNYM to the Tor control port.

The control port address and password come from the configuration or
TOR_CONTROL_ADDR / TOR_CONTROL_PASSWORD.`,
	Args: cobra.NoArgs,
	Run:  runRotate,
}

func init() {
	rootCmd.AddCommand(rotateCmd)
}

func runRotate(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	mustValidate(cfg)

	ctx, stop := signalContext()
	defer stop()

	c := tor.NewController(cfg.ControlEndpoint, cfg.ControlPassword, newLogger())
	resp := RotateResponse{Rotated: c.Rotate(ctx), Control: c.Addr()}

	if humanOutput {
		if resp.Rotated {
			outputHuman("New identity requested via %s\n", resp.Control)
		} else {
			outputHuman("Identity rotation via %s failed\n", resp.Control)
		}
	} else {
		outputJSON(resp)
	}
	if !resp.Rotated {
		exitWithCode(ExitError)
	}
}
