package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"nosql-labs/cmd/check"
	"nosql-labs/cmd/dataset"
	"nosql-labs/cmd/importsql"
	"nosql-labs/cmd/run"
	"nosql-labs/cmd/schema"
	"nosql-labs/cmd/seed"
	"nosql-labs/cmd/server"
	"nosql-labs/cmd/version"
	"nosql-labs/common/global"
	"nosql-labs/common/log"
)

var rootCmd = &cobra.Command{
	Use:          "labctl",
	Short:        "labctl runs named MongoDB query books",
	SilenceUsage: true,
	Long:         `labctl loads query books, runs them against MongoDB and reports the results`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			tip()
			return errors.New("requires at least one arg")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		tip()
	},
}

func tip() {
	fmt.Printf("labctl %s, use -h for the list of commands\n", global.Version)
}

func init() {
	rootCmd.AddCommand(run.StartCmd)
	rootCmd.AddCommand(check.StartCmd)
	rootCmd.AddCommand(seed.StartCmd)
	rootCmd.AddCommand(dataset.StartCmd)
	rootCmd.AddCommand(schema.StartCmd)
	rootCmd.AddCommand(importsql.StartCmd)
	rootCmd.AddCommand(server.StartCmd)
	rootCmd.AddCommand(version.StartCmd)
}

// Execute runs the root command and exits non-zero when it fails.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Exit(1)
	}
}
