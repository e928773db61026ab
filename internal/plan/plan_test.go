package plan

import (
	"strings"
	"testing"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/fingerprint"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
	"github.com/google/go-cmp/cmp"
)

func newRenderer(t *testing.T) render.Renderer {
	t.Helper()
	r, err := render.New(dialect.MustFor(dialect.Postgres))
	if err != nil {
		t.Fatalf("render.New() error = %v", err)
	}
	return r
}

func usersTable() model.TableInfo {
	return model.TableInfo{
		SchemaName: "public",
		PureName:   "users",
		Columns: []model.ColumnInfo{
			{ColumnName: "id", DataType: "int", NotNull: true},
		},
	}
}

func samplePlan(t *testing.T) *Plan {
	t.Helper()
	r := newRenderer(t)
	p := NewPlan(dialect.Postgres, &fingerprint.StructureFingerprint{Hash: "abc"})

	users := usersTable()
	structure := []command.Command{
		&command.CreateTable{Table: users},
		&command.AddColumn{Table: model.NameInfo{SchemaName: "public", PureName: "posts"}, Column: model.ColumnInfo{ColumnName: "title", DataType: "text"}},
		&command.DropTable{Table: model.TableInfo{SchemaName: "public", PureName: "old"}},
	}
	if err := p.AddCommands(StepStructure, structure, r); err != nil {
		t.Fatalf("AddCommands() error = %v", err)
	}
	data := []command.Command{
		&command.Insert{Table: users.Name(), Values: []command.ColumnValue{{Column: "id", Value: 1}}},
	}
	if err := p.AddCommands(StepData, data, r); err != nil {
		t.Fatalf("AddCommands() error = %v", err)
	}
	return p
}

func TestPlanSummary(t *testing.T) {
	planJSON := samplePlan(t).convertToStructuredJSON()

	want := PlanSummary{
		Add:     3,
		Destroy: 1,
		Total:   4,
		ByType: map[string]TypeSummary{
			"table":  {Add: 1, Destroy: 1},
			"column": {Add: 1},
			"row":    {Add: 1},
		},
	}
	if diff := cmp.Diff(want, planJSON.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderedStepsFollowsPhases(t *testing.T) {
	p := NewPlan(dialect.Postgres, nil)
	p.AddScript(StepOnce, "seed.once.sql", []string{"INSERT INTO t VALUES (1)"}, []string{"J1"})
	p.AddScript(StepInstall, "a.install.sql", []string{"SELECT 1"}, []string{"J2"})
	if err := p.AddCommands(StepStructure, []command.Command{&command.CreateTable{Table: usersTable()}}, newRenderer(t)); err != nil {
		t.Fatalf("AddCommands() error = %v", err)
	}
	p.AddScript(StepUninstall, "a.uninstall.sql", []string{"SELECT 0"}, nil)
	p.AddScript(StepPredeploy, "pre.predeploy.sql", []string{"SELECT 'pre'"}, nil)

	var kinds []StepKind
	for _, s := range p.OrderedSteps() {
		kinds = append(kinds, s.Kind)
	}
	want := []StepKind{StepPredeploy, StepUninstall, StepStructure, StepInstall, StepOnce}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("OrderedSteps() mismatch (-want +got):\n%s", diff)
	}
}

func TestStatementsCreatesJournalBeforeFirstJournaledScript(t *testing.T) {
	p := NewPlan(dialect.SQLite, nil)
	p.CreateJournal = []string{"CREATE JOURNAL"}
	p.AddScript(StepInstall, "a.install.sql", []string{"A1", "A2"}, []string{"JA"})
	p.AddScript(StepPredeploy, "pre.predeploy.sql", []string{"P"}, nil)
	p.AddScript(StepOnce, "b.once.sql", []string{"B"}, []string{"JB"})

	want := []string{"P", "CREATE JOURNAL", "A1", "A2", "JA", "B", "JB"}
	if diff := cmp.Diff(want, p.Statements()); diff != "" {
		t.Errorf("Statements() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsEmptyIgnoresScripts(t *testing.T) {
	p := NewPlan(dialect.Postgres, nil)
	p.AddScript(StepPredeploy, "pre.predeploy.sql", []string{"SELECT 1"}, nil)
	if !p.IsEmpty() {
		t.Error("plan with only scripts should be empty")
	}
	if !p.HasSteps() {
		t.Error("plan with scripts should have steps")
	}
	if samplePlan(t).IsEmpty() {
		t.Error("plan with structure steps should not be empty")
	}
}

func TestHumanColoredNoChanges(t *testing.T) {
	p := NewPlan(dialect.Postgres, nil)
	if got := p.HumanColored(false); got != "No changes detected.\n" {
		t.Errorf("HumanColored() = %q", got)
	}
}

func TestHumanColored(t *testing.T) {
	p := samplePlan(t)
	p.AddScript(StepInstall, "grants.install.sql", []string{"GRANT SELECT ON users TO app"}, nil)
	out := p.HumanColored(false)

	for _, want := range []string{
		"Plan: 3 to add, 0 to modify, 1 to drop.",
		"  table: 1 to add, 0 to modify, 1 to drop",
		"Table:\n  + public.users\n  - public.old\n",
		"Column:\n  + public.posts.title\n",
		"Scripts:\n  ~ grants.install.sql (install)\n",
		`CREATE TABLE "public"."users"`,
		"GRANT SELECT ON users TO app",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HumanColored() missing %q in:\n%s", want, out)
		}
	}
}

func TestToJSONRoundTrip(t *testing.T) {
	p := samplePlan(t)
	p.CreateJournal = []string{"CREATE TABLE j (name text)"}
	p.AddScript(StepOnce, "seed.once.sql", []string{"INSERT INTO users VALUES (2)"}, []string{"INSERT INTO j VALUES ('seed.once.sql')"})

	data, err := p.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(data, `"source_fingerprint"`) {
		t.Errorf("JSON output should contain the source fingerprint:\n%s", data)
	}

	loaded, err := FromJSON([]byte(data))
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if diff := cmp.Diff(p.Statements(), loaded.Statements()); diff != "" {
		t.Errorf("statements mismatch after round trip (-want +got):\n%s", diff)
	}
	if loaded.SourceFingerprint.Hash != "abc" {
		t.Errorf("SourceFingerprint = %v", loaded.SourceFingerprint)
	}
}

func TestFromJSONRejectsUnknownFormat(t *testing.T) {
	if _, err := FromJSON([]byte(`{"version":"0.0.1","engine":"postgres"}`)); err == nil {
		t.Error("FromJSON() should reject an unknown plan format")
	}
	if _, err := FromJSON([]byte(`not json`)); err == nil {
		t.Error("FromJSON() should reject invalid JSON")
	}
}

func TestToSQL(t *testing.T) {
	if got := NewPlan(dialect.Postgres, nil).ToSQL(); got != "" {
		t.Errorf("ToSQL() of an empty plan = %q", got)
	}
	sql := samplePlan(t).ToSQL()
	if !strings.Contains(sql, `INSERT INTO "public"."users" ("id") VALUES (1)`) {
		t.Errorf("ToSQL() should contain the data insert:\n%s", sql)
	}
}
