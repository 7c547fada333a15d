package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepWatch bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove stale job workspaces",
	Long: `Remove job workspaces under the scratch root that are older than the
configured retention. With --watch the sweep repeats on the configured
interval until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepWatch, "watch", false, "keep sweeping on the configured interval")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	manager := newWorkspace(globalConfig)

	if sweepWatch {
		manager.Run(ctx)
		return nil
	}

	removed, err := manager.Sweep(ctx, time.Now())
	for _, dir := range removed {
		fmt.Fprintln(cmd.OutOrStdout(), dir)
	}
	return err
}
