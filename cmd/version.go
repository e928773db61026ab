package cmd

import (
	"fmt"

	"github.com/dbgate/dbdeploy/internal/version"
	"github.com/spf13/cobra"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of dbdeploy",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dbdeploy v%s@%s %s %s\n",
			version.App(), version.GetGitCommit(), version.Platform(), version.GetBuildDate())
	},
}
