package cmd

import (
	"os"

	"github.com/plotwatch/plotwatch/cmd/config"
	"github.com/plotwatch/plotwatch/cmd/replay"
	"github.com/plotwatch/plotwatch/cmd/version"
	"github.com/plotwatch/plotwatch/cmd/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "plotwatch",
		Short:        "Harvester log monitoring and notifications",
		SilenceUsage: true,
	}

	// each command decodes into its own config
	cmd.AddCommand(watch.NewCmd(&config.Config{}, viper.New()))
	cmd.AddCommand(replay.NewCmd(&config.Config{}, viper.New()))
	cmd.AddCommand(version.NewCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
