package analyse

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/dbgate/dbdeploy/cmd/util"
	"github.com/dbgate/dbdeploy/internal/diff"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
	"github.com/spf13/cobra"
)

var (
	connection util.ConnectionFlags
	format     string
	output     string
	previous   string
	asSQL      bool
)

var AnalyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "Analyse the structure of a database",
	Long: `Analyse reads the tables, views, materialized views, procedures, functions and schemas of a
database and writes them as a YAML or JSON snapshot. With --previous only objects changed since the
previous snapshot are read again. With --sql the structure is written as a create script instead.`,
	Aliases:      []string{"analyze"},
	RunE:         runAnalyse,
	SilenceUsage: true,
}

func init() {
	connection.Register(AnalyseCmd)
	AnalyseCmd.Flags().StringVar(&format, "format", "", "Snapshot format: yaml or json (default: from --output extension, yaml for stdout)")
	AnalyseCmd.Flags().StringVar(&output, "output", "", "Output file path (default: stdout)")
	AnalyseCmd.Flags().StringVar(&previous, "previous", "", "Previous snapshot; only changed objects are analysed again")
	AnalyseCmd.Flags().BoolVar(&asSQL, "sql", false, "Write a create script instead of a snapshot")
}

// AnalyseConfig holds configuration for an analysis
type AnalyseConfig struct {
	Connection driver.Config
	// Previous enables incremental analysis.
	Previous *model.DatabaseInfo
}

// ExecuteAnalyse connects and reads the structure of the database. With a previous snapshot
// it returns nil when nothing changed.
func ExecuteAnalyse(ctx context.Context, config *AnalyseConfig) (*model.DatabaseInfo, *driver.Conn, error) {
	conn, err := util.Connect(ctx, config.Connection)
	if err != nil {
		return nil, nil, err
	}

	var db *model.DatabaseInfo
	if config.Previous != nil {
		db, err = conn.AnalyseIncremental(ctx, config.Previous)
	} else {
		db, err = conn.AnalyseFull(ctx)
	}
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to analyse database: %w", err)
	}
	return db, conn, nil
}

// CreateScript renders the statements that create db from an empty database.
func CreateScript(db model.DatabaseInfo, r render.Renderer) (string, error) {
	script, err := diff.AlterDatabaseScript(model.DatabaseInfo{}, db, diff.Options{SchemaMode: diff.SchemaModeStrict}, r)
	if err != nil {
		return "", err
	}
	return diff.ScriptHeader(r.Capabilities()) + script.SQL, nil
}

func runAnalyse(cmd *cobra.Command, args []string) error {
	connConfig, err := connection.Resolve(cmd)
	if err != nil {
		return err
	}

	snapshotFormat := util.FormatForPath(output)
	if format != "" {
		if snapshotFormat, err = util.ParseSnapshotFormat(format); err != nil {
			return err
		}
	}

	config := &AnalyseConfig{Connection: connConfig}
	if previous != "" {
		if config.Previous, err = util.ReadSnapshot(util.AppFs, previous); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, conn, err := ExecuteAnalyse(ctx, config)
	if err != nil {
		return err
	}
	defer conn.Close()

	if db == nil {
		fmt.Fprintln(os.Stderr, "No structure changes since the previous snapshot.")
		return nil
	}

	if asSQL {
		script, err := CreateScript(*db, conn.CreateDumper())
		if err != nil {
			return err
		}
		return util.WriteOutput(cmd.OutOrStdout(), output, script)
	}

	var buf bytes.Buffer
	if err := util.WriteSnapshot(&buf, db, snapshotFormat); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return util.WriteOutput(cmd.OutOrStdout(), output, buf.String())
}
