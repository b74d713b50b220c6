// Package cmd assembles the findr command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/findrapp/findr/cmd/classify"
	"github.com/findrapp/findr/cmd/ranking"
	"github.com/findrapp/findr/cmd/reconcile"
	"github.com/findrapp/findr/cmd/serve"
	"github.com/findrapp/findr/internal/buildinfo"
	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/logger"
)

// RootCommand creates the root command. settings is populated from the
// config file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "findr",
		Short:         "Findr wildlife sightings service",
		Version:       buildinfo.Current().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		classify.Command(settings),
		reconcile.Command(settings),
		ranking.StatsCommand(settings),
		ranking.LeaderboardCommand(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, configFile)
	}

	return rootCmd
}

// initialize loads settings and installs the global logger.
func initialize(settings *conf.Settings, configFile string) error {
	loaded, err := conf.LoadFile(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}
	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVar(configFile, "config", "", "Config file (default: search ., ~/.config/findr, /etc/findr)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
