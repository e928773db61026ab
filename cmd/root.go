package cmd

import (
	"fmt"
	"os"

	"github.com/dbgate/dbdeploy/cmd/analyse"
	"github.com/dbgate/dbdeploy/cmd/deploy"
	"github.com/dbgate/dbdeploy/cmd/diff"
	"github.com/dbgate/dbdeploy/cmd/journal"
	"github.com/dbgate/dbdeploy/cmd/plan"
	"github.com/dbgate/dbdeploy/cmd/util"
	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/dbgate/dbdeploy/internal/version"
	"github.com/spf13/cobra"
)

var (
	Debug      bool
	ConfigFile string
)

var RootCmd = &cobra.Command{
	Use:   "dbdeploy",
	Short: "Declarative database deploy tool",
	Long: fmt.Sprintf(`dbdeploy brings a PostgreSQL, CockroachDB, MySQL, SQL Server or SQLite database to the
structure described by a model folder of table files, SQL objects and deploy scripts.

Version: %s@%s %s %s

Commands:
  analyse  Analyse the structure of a database
  plan     Generate a deploy plan
  deploy   Deploy a model to a database
  diff     Compare two structure snapshots
  journal  Show the deploy journal

Use "dbdeploy [command] --help" for more information about a command.`,
		version.App(), version.GetGitCommit(), version.Platform(), version.GetBuildDate()),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Setup(Debug)
		return util.InitConfig(ConfigFile)
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "Config file (default: .dbdeploy.yaml in the working or home directory)")
	RootCmd.AddCommand(analyse.AnalyseCmd)
	RootCmd.AddCommand(plan.PlanCmd)
	RootCmd.AddCommand(deploy.DeployCmd)
	RootCmd.AddCommand(diff.DiffCmd)
	RootCmd.AddCommand(journal.JournalCmd)
	RootCmd.AddCommand(VersionCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
