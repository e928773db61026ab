// Package deploy reconciles a database with a model made of declarative fragments and
// free-form scripts, tracking scripts in the deploy journal.
package deploy

import (
	"context"
	"fmt"

	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/diff"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/fingerprint"
	"github.com/dbgate/dbdeploy/internal/journal"
	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/dbgate/dbdeploy/internal/plan"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/model"
)

// DefaultDeletedPrefix is prepended to objects removed from the model when MarkDeleted is set.
const DefaultDeletedPrefix = "_deleted_"

// Options tunes a deploy.
type Options struct {
	// AllowDropStatements lets the deploy drop tables, columns and SQL objects missing from the
	// model. Without it they are kept.
	AllowDropStatements bool
	// MarkDeleted renames removed objects with DeletedPrefix instead of dropping them, and
	// restores them when they reappear in the model.
	MarkDeleted   bool
	DeletedPrefix string

	// CurrentStructure is used instead of analysing the target.
	CurrentStructure *model.DatabaseInfo

	Journal journal.Config
}

func (o Options) deletedPrefix() string {
	if o.DeletedPrefix != "" {
		return o.DeletedPrefix
	}
	return DefaultDeletedPrefix
}

func (o Options) diffOptions() diff.Options {
	opts := diff.Options{
		SchemaMode:      diff.SchemaModeIgnore,
		NoDropTable:     !o.AllowDropStatements,
		NoDropColumn:    !o.AllowDropStatements,
		NoDropSQLObject: !o.AllowDropStatements,
	}
	if o.MarkDeleted {
		prefix := o.deletedPrefix()
		opts.DeletedTablePrefix = prefix
		opts.DeletedColumnPrefix = prefix
		opts.DeletedSQLObjectPrefix = prefix
	}
	return opts
}

// Target is the database a deploy runs against: a live connection, or a prepared configuration
// that is connected only when the deploy needs to read from the database.
type Target struct {
	conn   *driver.Conn
	config *driver.Config
}

// Live targets an open connection. The connection is left open.
func Live(conn *driver.Conn) Target {
	return Target{conn: conn}
}

// Prepared targets a database that is not connected yet.
func Prepared(config driver.Config) Target {
	return Target{config: &config}
}

// Engine returns the engine of the target.
func (t Target) Engine() dialect.Engine {
	if t.conn != nil {
		return t.conn.Config().Engine
	}
	return t.config.Engine
}

// session holds the connection of one deploy call, opening it on first use for prepared
// targets.
type session struct {
	target Target
	opened *driver.Conn
}

func (s *session) conn(ctx context.Context) (*driver.Conn, error) {
	if s.target.conn != nil {
		return s.target.conn, nil
	}
	if s.opened == nil {
		conn, err := driver.Open(ctx, *s.target.config)
		if err != nil {
			return nil, err
		}
		s.opened = conn
	}
	return s.opened, nil
}

// capabilities of the target: detected when connected, assumed from the engine otherwise.
func (s *session) capabilities() (dialect.Capabilities, error) {
	if c := s.connected(); c != nil {
		return c.Dialect(), nil
	}
	return dialect.For(s.target.config.Engine, "")
}

func (s *session) connected() *driver.Conn {
	if s.target.conn != nil {
		return s.target.conn
	}
	return s.opened
}

func (s *session) close() {
	if s.opened != nil {
		s.opened.Close()
		s.opened = nil
	}
}

// ExecError is a failed statement of a deploy.
type ExecError struct {
	Statement string
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("failed to execute statement %q: %v", e.Statement, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// GenerateDeploySQL computes the plan that brings the target to the model without executing
// anything.
func GenerateDeploySQL(ctx context.Context, target Target, fragments []Fragment, opts Options) (*plan.Plan, error) {
	s := &session{target: target}
	defer s.close()
	return generate(ctx, s, fragments, opts)
}

// DeployDB computes the plan that brings the target to the model and executes it on a live
// target. A prepared target only gets the plan: nothing is executed, and the plan can be run
// later with Execute.
func DeployDB(ctx context.Context, target Target, fragments []Fragment, opts Options) (*plan.Plan, error) {
	s := &session{target: target}
	defer s.close()

	p, err := generate(ctx, s, fragments, opts)
	if err != nil {
		return nil, err
	}
	if target.conn == nil {
		logger.Component("deploy").Debug("Prepared target, deploy plan not executed", "steps", len(p.Steps))
		return p, nil
	}
	if err := run(ctx, target.conn, p); err != nil {
		return p, err
	}
	return p, nil
}

// Execute runs a saved plan after checking that the structure it was computed against did
// not change.
func Execute(ctx context.Context, conn *driver.Conn, p *plan.Plan, journalConfig journal.Config) error {
	if p.Engine != conn.Config().Engine {
		return fmt.Errorf("plan was generated for %s, target is %s", p.Engine, conn.Config().Engine)
	}
	if p.SourceFingerprint != nil {
		current, err := conn.AnalyseFull(ctx)
		if err != nil {
			return fmt.Errorf("failed to analyse target: %w", err)
		}
		fp, err := fingerprint.Compute(journalConfig.Without(*current, conn.Dialect()))
		if err != nil {
			return err
		}
		if err := fingerprint.Compare(p.SourceFingerprint, fp); err != nil {
			return err
		}
	}
	return run(ctx, conn, p)
}

func run(ctx context.Context, conn *driver.Conn, p *plan.Plan) error {
	log := logger.Component("deploy")
	statements := p.Statements()
	log.Debug("Executing deploy plan", "statements", len(statements))
	for _, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.Exec(ctx, stmt); err != nil {
			return &ExecError{Statement: stmt, Err: err}
		}
	}
	return nil
}

func generate(ctx context.Context, s *session, fragments []Fragment, opts Options) (*plan.Plan, error) {
	log := logger.Component("deploy")

	target, scripts, err := buildModel(fragments)
	if err != nil {
		return nil, err
	}

	var current model.DatabaseInfo
	if opts.CurrentStructure != nil {
		current = opts.CurrentStructure.Clone()
	} else {
		conn, err := s.conn(ctx)
		if err != nil {
			return nil, err
		}
		analysed, err := conn.AnalyseFull(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to analyse target: %w", err)
		}
		current = *analysed
	}

	caps, err := s.capabilities()
	if err != nil {
		return nil, err
	}
	r, err := render.New(caps)
	if err != nil {
		return nil, err
	}

	current = model.ClearPairingIDs(opts.Journal.Without(current, caps))
	source, err := fingerprint.Compute(current)
	if err != nil {
		return nil, err
	}
	p := plan.NewPlan(caps.Engine, source)

	defs, err := loadDefinitions(ctx, s, opts.Journal)
	if err != nil {
		return nil, err
	}

	structure := diff.AlterDatabase(defs.apply(current, target, opts), target, opts.diffOptions(), caps)
	first := len(p.Steps)
	if err := p.AddCommands(plan.StepStructure, structure.Commands, r); err != nil {
		return nil, err
	}
	if err := defs.record(p, first, structure.Commands, target, opts.Journal, r); err != nil {
		return nil, err
	}

	data, err := dataCommands(ctx, target, current, opts, connRowReader(s))
	if err != nil {
		return nil, err
	}
	if err := p.AddCommands(plan.StepData, data, r); err != nil {
		return nil, err
	}

	if err := addScripts(ctx, s, p, scripts, opts.Journal, r); err != nil {
		return nil, err
	}

	log.Debug("Deploy plan generated",
		"structureCommands", len(structure.Commands),
		"dataCommands", len(data),
		"steps", len(p.Steps))
	return p, nil
}

// addScripts decides which scripts run from the journal: predeploy always, install always with
// its uninstall first when it ran before, once only when it never ran.
func addScripts(ctx context.Context, s *session, p *plan.Plan, scripts []script, config journal.Config, r render.Renderer) error {
	if len(scripts) == 0 {
		return nil
	}

	runCounts := map[string]int{}
	journalExists := false
	if needsJournal(scripts) {
		conn, err := s.conn(ctx)
		if err != nil {
			return err
		}
		j := journal.New(conn, config)
		if journalExists, err = j.Exists(ctx); err != nil {
			return fmt.Errorf("failed to check journal: %w", err)
		}
		if journalExists {
			if runCounts, err = j.Load(ctx); err != nil {
				return err
			}
		}
	}
	if !journalExists && needsJournal(scripts) {
		create, err := r.RenderCommand(&command.CreateTable{Table: config.Table(), WithForeignKeys: true})
		if err != nil {
			return err
		}
		p.CreateJournal = append(p.CreateJournal, create...)
	}

	engine := r.Capabilities().Engine
	for _, sc := range scripts {
		f := sc.fragment
		count, ran := runCounts[f.Name]
		switch f.Kind {
		case FragmentPredeploy:
			p.AddScript(plan.StepPredeploy, f.Name, driver.SplitStatements(engine, f.Text), nil)
		case FragmentInstall:
			if ran && sc.uninstall != nil {
				p.AddScript(plan.StepUninstall, sc.uninstall.Name, driver.SplitStatements(engine, sc.uninstall.Text), nil)
			}
			record, err := r.RenderCommand(journal.RecordCommand(config, f.Name, count+1, !ran))
			if err != nil {
				return err
			}
			p.AddScript(plan.StepInstall, f.Name, driver.SplitStatements(engine, f.Text), record)
		case FragmentOnce:
			if ran {
				continue
			}
			record, err := r.RenderCommand(journal.RecordCommand(config, f.Name, 1, true))
			if err != nil {
				return err
			}
			p.AddScript(plan.StepOnce, f.Name, driver.SplitStatements(engine, f.Text), record)
		default:
			return fmt.Errorf("unexpected script kind %s", f.Kind)
		}
	}
	return nil
}

func needsJournal(scripts []script) bool {
	for _, sc := range scripts {
		if sc.fragment.Kind == FragmentInstall || sc.fragment.Kind == FragmentOnce {
			return true
		}
	}
	return false
}
