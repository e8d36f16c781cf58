package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/universe-simulator/internal/logging"
	"github.com/signalsfoundry/universe-simulator/internal/sim/registry"
	"github.com/signalsfoundry/universe-simulator/internal/sim/scheduler"
	"github.com/signalsfoundry/universe-simulator/internal/sim/universe"
	"github.com/signalsfoundry/universe-simulator/model"
)

// NewInspectCmd creates the inspect subcommand.
func NewInspectCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "inspect <state-dir>",
		Short: "Summarise a saved state directory",
		Long: `Restore a saved state directory into an idle universe and print what it
holds. Nothing is started and nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every entity")
	return cmd
}

func runInspect(ctx context.Context, w io.Writer, dir string, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	u := universe.New(scheduler.New(), registry.New(), logging.Noop())
	if err := u.RestoreState(ctx, dir); err != nil {
		return err
	}

	snap := u.Snapshot()
	fmt.Fprintf(w, "state:      %s\n", dir)
	fmt.Fprintf(w, "locations:  %d\n", snap.Locations)
	fmt.Fprintf(w, "ships:      %d\n", snap.Ships)
	fmt.Fprintf(w, "stations:   %d\n", snap.Stations)
	fmt.Fprintf(w, "graveyard:  %d\n", snap.Graveyard)
	if !verbose {
		return nil
	}
	for _, e := range u.Registry().Find(registry.Filter{IncludeGraveyard: true}) {
		var at model.Vec3
		if loc := e.GetLocation(); loc != nil {
			at = loc.Coordinates
		}
		fmt.Fprintf(w, "  %-8s %-16s user=%s parent=%s at=(%.1f, %.1f, %.1f)\n",
			e.GetKind(), e.GetID(), e.GetUserID(), e.GetParent(), at.X, at.Y, at.Z)
	}
	return nil
}
