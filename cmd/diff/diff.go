package diff

import (
	"fmt"

	"github.com/dbgate/dbdeploy/cmd/util"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/diff"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
	"github.com/spf13/cobra"
)

var (
	sourceFile    string
	targetFile    string
	engine        string
	serverVersion string
	schemaMode    string
	deletedPrefix string
	noDrop        bool
	output        string
)

var DiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two structure snapshots",
	Long: `Diff compares two snapshots written by the analyse command and prints the script that turns
the source structure into the target structure for the given engine.`,
	RunE:         runDiff,
	SilenceUsage: true,
}

func init() {
	DiffCmd.Flags().StringVar(&sourceFile, "source", "", "Snapshot of the current structure (required)")
	DiffCmd.Flags().StringVar(&targetFile, "target", "", "Snapshot of the desired structure (required)")
	DiffCmd.Flags().StringVar(&engine, "engine", string(dialect.Postgres), "Engine the script is rendered for")
	DiffCmd.Flags().StringVar(&serverVersion, "server-version", "", "Server version the script targets, newest features when empty")
	DiffCmd.Flags().StringVar(&schemaMode, "schema-mode", string(diff.SchemaModeStrict), "strict pairs objects within a schema, ignore pairs them across schemas")
	DiffCmd.Flags().StringVar(&deletedPrefix, "deleted-prefix", "", "Rename removed tables, columns and SQL objects with this prefix instead of dropping them")
	DiffCmd.Flags().BoolVar(&noDrop, "no-drop", false, "Keep removed tables, columns and SQL objects")
	DiffCmd.Flags().StringVar(&output, "output", "", "Output file path (default: stdout)")
	DiffCmd.MarkFlagRequired("source")
	DiffCmd.MarkFlagRequired("target")
}

// DiffConfig holds configuration for comparing two snapshots
type DiffConfig struct {
	Source, Target model.DatabaseInfo
	Engine         dialect.Engine
	ServerVersion  string
	Options        diff.Options
}

// ExecuteDiff renders the script that turns the source snapshot into the target snapshot.
func ExecuteDiff(config *DiffConfig) (*diff.ScriptResult, error) {
	caps, err := dialect.For(config.Engine, config.ServerVersion)
	if err != nil {
		return nil, err
	}
	r, err := render.New(caps)
	if err != nil {
		return nil, err
	}
	return diff.AlterDatabaseScript(config.Source, config.Target, config.Options, r)
}

func parseSchemaMode(s string) (diff.SchemaMode, error) {
	switch mode := diff.SchemaMode(s); mode {
	case diff.SchemaModeStrict, diff.SchemaModeIgnore:
		return mode, nil
	}
	return "", fmt.Errorf("unknown schema mode %q (use strict or ignore)", s)
}

func runDiff(cmd *cobra.Command, args []string) error {
	eng, err := dialect.ParseEngine(engine)
	if err != nil {
		return err
	}
	mode, err := parseSchemaMode(schemaMode)
	if err != nil {
		return err
	}
	source, err := util.ReadSnapshot(util.AppFs, sourceFile)
	if err != nil {
		return err
	}
	target, err := util.ReadSnapshot(util.AppFs, targetFile)
	if err != nil {
		return err
	}

	config := &DiffConfig{
		Source:        *source,
		Target:        *target,
		Engine:        eng,
		ServerVersion: serverVersion,
		Options: diff.Options{
			SchemaMode:             mode,
			DeletedTablePrefix:     deletedPrefix,
			DeletedColumnPrefix:    deletedPrefix,
			DeletedSQLObjectPrefix: deletedPrefix,
			NoDropTable:            noDrop,
			NoDropColumn:           noDrop,
			NoDropSQLObject:        noDrop,
		},
	}
	script, err := ExecuteDiff(config)
	if err != nil {
		return fmt.Errorf("failed to generate diff: %w", err)
	}
	if script.IsEmpty {
		fmt.Fprintln(cmd.ErrOrStderr(), "No differences found.")
		return nil
	}
	return util.WriteOutput(cmd.OutOrStdout(), output, script.SQL)
}
