package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dbgate/dbdeploy/cmd/util"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/journal"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	connection    util.ConnectionFlags
	journalTable  string
	journalSchema string
	outputJSON    bool
)

var JournalCmd = &cobra.Command{
	Use:          "journal",
	Short:        "Show the deploy journal",
	Long:         "List the install and once scripts recorded in the deploy journal of the target database with their run counts.",
	RunE:         runJournal,
	SilenceUsage: true,
}

func init() {
	connection.Register(JournalCmd)
	JournalCmd.Flags().StringVar(&journalTable, "journal-table", journal.DefaultTableName, "Name of the deploy journal table")
	JournalCmd.Flags().StringVar(&journalSchema, "journal-schema", "", "Schema of the deploy journal table, default schema when empty")
	JournalCmd.Flags().BoolVar(&outputJSON, "json", false, "Print the entries as JSON")
}

// ListEntries reads the journal of the target database. A missing journal table yields no
// entries.
func ListEntries(ctx context.Context, conn *driver.Conn, config journal.Config) ([]journal.Entry, error) {
	j := journal.New(conn, config)
	return j.Entries(ctx)
}

// WriteEntries prints entries as a table, or as JSON.
func WriteEntries(w io.Writer, entries []journal.Entry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []journal.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No scripts recorded in the deploy journal.")
		return err
	}
	data := pterm.TableData{{"Script", "Runs"}}
	for _, e := range entries {
		data = append(data, []string{e.Name, strconv.Itoa(e.RunCount)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func runJournal(cmd *cobra.Command, args []string) error {
	config, err := connection.Resolve(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := util.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer conn.Close()

	entries, err := ListEntries(ctx, conn, journal.Config{TableName: journalTable, SchemaName: journalSchema})
	if err != nil {
		return err
	}
	return WriteEntries(cmd.OutOrStdout(), entries, outputJSON)
}
