package main

import (
	"time"

	"github.com/matsen/scholarsync/internal/checkpoint"
	"github.com/spf13/cobra"
)

var checkpointPath string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or remove sync progress",
	Long: `Inspect or remove the checkpoint a sync writes after every publication.

Subcommands:
  show   Print the stored progress
  clear  Delete it so the next sync starts over`,
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored progress",
	Args:  cobra.NoArgs,
	Run:   runCheckpointShow,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored progress",
	Args:  cobra.NoArgs,
	Run:   runCheckpointClear,
}

func init() {
	checkpointCmd.PersistentFlags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint path (default from config)")
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}

// mustOpenCheckpoint opens the configured store, honoring --checkpoint.
func mustOpenCheckpoint(cmd *cobra.Command) (checkpoint.Store, string) {
	cfg := mustLoadConfig()
	if cmd.Flags().Changed("checkpoint") {
		cfg.CheckpointPath = checkpointPath
	}
	mustValidate(cfg)

	store, err := checkpoint.Open(cfg.CheckpointPath)
	if err != nil {
		exitWithError(ExitError, "opening checkpoint: %v", err)
	}
	return store, cfg.CheckpointPath
}

func runCheckpointShow(cmd *cobra.Command, args []string) {
	store, path := mustOpenCheckpoint(cmd)
	defer store.Close()

	st, err := store.Load()
	if err != nil {
		exitWithError(ExitError, "reading checkpoint: %v", err)
	}

	resp := CheckpointResponse{Path: path, Exists: st != nil}
	if st != nil {
		resp.NextIdx = st.NextIdx
		resp.Total = st.Total
		resp.Journals = len(st.Journals)
		resp.Conferences = len(st.Conferences)
		resp.Preprints = len(st.Preprints)
		resp.SavedAt = st.SavedAt.Format(time.RFC3339)
		resp.Fingerprint = st.Fingerprint
	}

	if !humanOutput {
		outputJSON(resp)
		return
	}
	if !resp.Exists {
		outputHuman("No checkpoint at %s\n", path)
		return
	}
	outputHuman("Checkpoint: %s\n", path)
	outputHuman("Progress:   %d/%d publications\n", resp.NextIdx, resp.Total)
	outputHuman("Collected:  %d journal, %d conference, %d preprint\n", resp.Journals, resp.Conferences, resp.Preprints)
	outputHuman("Saved at:   %s\n", resp.SavedAt)
}

func runCheckpointClear(cmd *cobra.Command, args []string) {
	store, path := mustOpenCheckpoint(cmd)
	defer store.Close()

	if err := store.Clear(); err != nil {
		exitWithError(ExitError, "clearing checkpoint: %v", err)
	}
	if humanOutput {
		outputHuman("Cleared %s\n", path)
		return
	}
	outputJSON(StatusResponse{Status: "cleared", Path: path})
}
