package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	requestPath string
	configPath  string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "ppt",
	Short: "Travel guide generation pipeline",
	Long: `ppt turns a trip request into a travel guide by running a fixed set of
agent tasks against a language model.

Each task reads the trip request and the entities committed by the tasks
before it, asks the model for structured JSON, and merges the answer into
the project's entity store (.ppt/entities.db).

Tasks can run automatically against a configured backend, or manually:
ppt writes each prompt to a file, you paste it into any chat model, and
ppt ingests the answer.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", failMark(), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&requestPath, "request", "r", "trip.yaml", "trip request document (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: user and project config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr as well as the log file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
