package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chr1sbest/imagebatch/internal/status"
	"github.com/chr1sbest/imagebatch/internal/tracker"
)

func newStopCmd() *cobra.Command {
	var stateDir string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the running batch to stop after its current prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			trk := tracker.NewWriter(stateDir)
			l, err := trk.ReadLock()
			if err != nil {
				return err
			}
			if l == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No batch is running.")
				return nil
			}
			if err := trk.RequestStop(); err != nil {
				return fmt.Errorf("failed to request stop: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for run %s (pid %d, running for %s).\n",
				l.RunID, l.PID, time.Since(l.StartedAt).Round(time.Second))
			return nil
		},
	}
	cmd.Flags().StringVar(&stateDir, "state-dir", defaultStateDir, "Directory for run state, lock and logs")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var stateDir string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the progress of the current or last batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			trk := tracker.NewWriter(stateDir)
			rs, err := trk.LoadRunState()
			if err != nil {
				return err
			}
			m, err := trk.LoadMetrics()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), status.Report(rs, m, rs.Active(), time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&stateDir, "state-dir", defaultStateDir, "Directory for run state, lock and logs")
	return cmd
}
