package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "apitest",
	Short: "HTTP functional testing from the command line.",
	Long: `apitest sends HTTP requests defined in small YAML files and checks
the responses against an expectation block, using the same client and
assertions the Go test API exposes.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(versionCmd)
}
