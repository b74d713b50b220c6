// Package serve runs the HTTP API together with background reconciliation.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/findrapp/findr/internal/api"
	"github.com/findrapp/findr/internal/app"
	"github.com/findrapp/findr/internal/buildinfo"
	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/logger"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serve the Findr API, retry queued sightings and accounts in the background, and publish sighting events over MQTT when enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", viper.GetString("webserver.listen"), "Listen address of the HTTP API")
	cmd.Flags().Bool("reconcile", viper.GetBool("reconcile.enabled"), "Retry queued sightings and accounts in the background")

	if err := viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("reconcile.enabled", cmd.Flags().Lookup("reconcile")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run serves until SIGINT or SIGTERM.
func Run(ctx context.Context, settings *conf.Settings) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Global().Module("serve")
	a, err := app.New(ctx, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	a.ConnectMQTT(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()
	if settings.Reconcile.Enabled {
		wg.Go(func() { a.ReconcileLoop(ctx, settings.Reconcile.Interval) })
	}

	if !settings.WebServer.Enabled {
		log.Info("web server disabled, running background tasks only")
		<-ctx.Done()
		return nil
	}

	cfg := api.ConfigFromSettings(settings)
	cfg.Version = buildinfo.Current().Version
	srv := api.New(cfg, api.Deps{
		Classifier: a.Classifier,
		Sightings:  a.Sightings,
		Identity:   a.Identity,
		Reconciler: a.Reconciler,
		Mirror:     a.Mirror,
		Metrics:    a.Metrics,
	}, api.WithLogger(logger.Global().Module("api")))

	err = srv.Start(ctx)
	stop()
	return err
}
