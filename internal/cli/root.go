package cli

import (
	"github.com/spf13/cobra"

	"github.com/stockpile-io/stockpile/internal/logging"
)

var (
	stateOverride string
	logLevel      string
	noColor       bool
)

var rootCmd = &cobra.Command{
	Use:   "stockpile",
	Short: "Serverless inventory lab provisioning for AWS",
	Long: `Stockpile provisions a small serverless inventory pipeline on AWS:
an uploads bucket feeding a loader function, an inventory table with a
change stream, a low-stock alert topic, an HTTP API and a public
dashboard bucket.

Deployments are resumable. Running apply again verifies resources that
already exist instead of recreating them, and picks up a half-finished
deployment where it stopped.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateOverride, "state", "", "Deployment record path (overrides STATE_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
