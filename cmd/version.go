package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/staffapply/staffapply/staffapply"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the application",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf(
			"version=%s commit=%s built: %s",
			staffapply.Version,
			staffapply.CommitSHA,
			staffapply.BuildTime,
		)
	},
}

//nolint:gochecknoinits
func init() {
	rootCmd.AddCommand(versionCmd)
}
