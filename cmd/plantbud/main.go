package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vthunder/plantbud/internal/config"
	"github.com/vthunder/plantbud/internal/logging"
)

var (
	configPath string
	debug      bool
	cfg        *config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "plantbud",
		Short:         "Decision engine for an indoor plant: schedule, diagnose, actuate",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = c
			logging.Init(debug || cfg.Debug)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default plantbud.yaml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	root.AddCommand(
		newRunCmd(),
		newCycleCmd(),
		newScheduleCmd(),
		newLedgerCmd(),
		newStatusCmd(),
		newRulesCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
