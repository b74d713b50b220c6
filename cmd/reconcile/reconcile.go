// Package reconcile runs a single reconciliation pass.
package reconcile

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/findrapp/findr/internal/app"
	"github.com/findrapp/findr/internal/conf"
)

// Command creates the reconcile command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Push queued sightings and unmirrored accounts to the hosted store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Supabase == nil {
				return fmt.Errorf("hosted store is not configured, set supabase.url and supabase.anonkey")
			}
			a.ConnectMQTT(cmd.Context())

			sr, mr, err := a.ReconcileOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sightings: %d attempted, %d synced, %d failed\n", sr.Attempted, sr.Synced, sr.Failed)
			fmt.Fprintf(out, "accounts:  %d attempted, %d mirrored, %d failed\n", mr.Attempted, mr.Mirrored, mr.Failed)
			return nil
		},
	}
}
