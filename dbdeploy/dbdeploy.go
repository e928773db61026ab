// Package dbdeploy provides a programmatic API for declarative database deploys.
// It analyses PostgreSQL, CockroachDB, MySQL, SQL Server and SQLite databases and brings them
// to the structure described by a model of table files, SQL objects and deploy scripts.
package dbdeploy

import (
	"context"
	"fmt"
	"io"

	"github.com/dbgate/dbdeploy/cmd/analyse"
	deployCmd "github.com/dbgate/dbdeploy/cmd/deploy"
	"github.com/dbgate/dbdeploy/cmd/util"
	"github.com/dbgate/dbdeploy/internal/deploy"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/diff"
	"github.com/dbgate/dbdeploy/internal/plan"
	"github.com/dbgate/dbdeploy/internal/render"
	"golang.org/x/sync/errgroup"
)

const defaultApplicationName = "dbdeploy"

// AnalyseOptions configures how a database structure is read.
type AnalyseOptions struct {
	Connection *ConnectionConfig // Overrides the client connection (optional)
	Previous   *DatabaseInfo     // Previous structure; only changed objects are read again
}

// DeployOptions configures plan generation and deploys.
type DeployOptions struct {
	Connection *ConnectionConfig // Overrides the client connection (optional)
	ModelDir   string            // Model folder (alternative to Fragments)
	Fragments  []Fragment        // Model fragments (alternative to ModelDir)
	Plan       *Plan             // Pre-generated plan, Deploy only (alternative to the model)

	AllowDropStatements bool
	MarkDeleted         bool
	DeletedPrefix       string
	CurrentStructure    *DatabaseInfo // Used instead of analysing the target, GenerateDeploySQL only
	Journal             JournalConfig

	AutoApprove bool      // Deploy without prompting for approval
	NoColor     bool      // Disable colored output
	Quiet       bool      // Suppress plan display and progress messages
	Out         io.Writer // Progress output (default: stdout)
}

func (o DeployOptions) options() deploy.Options {
	return deploy.Options{
		AllowDropStatements: o.AllowDropStatements,
		MarkDeleted:         o.MarkDeleted,
		DeletedPrefix:       o.DeletedPrefix,
		CurrentStructure:    o.CurrentStructure,
		Journal:             o.Journal,
	}
}

func (o DeployOptions) fragments() ([]Fragment, error) {
	if o.ModelDir == "" {
		return o.Fragments, nil
	}
	if len(o.Fragments) > 0 {
		return nil, fmt.Errorf("either ModelDir or Fragments must be provided, not both")
	}
	return deploy.LoadFolder(util.AppFs, o.ModelDir)
}

// Client provides the main interface for dbdeploy operations.
type Client struct {
	// Default connection that can be overridden by individual operations
	defaultConn ConnectionConfig
}

// NewClient creates a new dbdeploy client with a default connection.
func NewClient(conn ConnectionConfig) *Client {
	if conn.ApplicationName == "" {
		conn.ApplicationName = defaultApplicationName
	}
	return &Client{defaultConn: conn}
}

func (c *Client) connection(override *ConnectionConfig) ConnectionConfig {
	if override == nil {
		return c.defaultConn
	}
	conn := *override
	if conn.ApplicationName == "" {
		conn.ApplicationName = defaultApplicationName
	}
	return conn
}

// Analyse reads the structure of the database. With opts.Previous it returns nil when nothing
// changed since the previous analysis.
func (c *Client) Analyse(ctx context.Context, opts AnalyseOptions) (*DatabaseInfo, error) {
	db, conn, err := analyse.ExecuteAnalyse(ctx, &analyse.AnalyseConfig{
		Connection: c.connection(opts.Connection),
		Previous:   opts.Previous,
	})
	if err != nil {
		return nil, err
	}
	conn.Close()
	return db, nil
}

// GenerateDeploySQL computes the deploy plan without changing the database. The database is
// only connected when the plan needs to read from it.
func (c *Client) GenerateDeploySQL(ctx context.Context, opts DeployOptions) (*Plan, error) {
	fragments, err := opts.fragments()
	if err != nil {
		return nil, err
	}
	return deploy.GenerateDeploySQL(ctx, deploy.Prepared(c.connection(opts.Connection)), fragments, opts.options())
}

// Deploy brings the database to the model, or executes opts.Plan after checking that the
// database did not change since the plan was generated.
func (c *Client) Deploy(ctx context.Context, opts DeployOptions) error {
	if opts.Plan == nil && opts.ModelDir == "" && len(opts.Fragments) == 0 {
		return fmt.Errorf("either a model or a Plan must be provided")
	}
	if opts.CurrentStructure != nil {
		return fmt.Errorf("CurrentStructure is not supported by Deploy")
	}
	fragments, err := opts.fragments()
	if err != nil {
		return err
	}
	return deployCmd.ExecuteDeploy(ctx, &deployCmd.DeployConfig{
		Connection:  c.connection(opts.Connection),
		Fragments:   fragments,
		Options:     opts.options(),
		Plan:        opts.Plan,
		AutoApprove: opts.AutoApprove,
		NoColor:     opts.NoColor,
		Quiet:       opts.Quiet,
		Out:         opts.Out,
	})
}

// DeployAll deploys the same model to every target concurrently, at most limit at a time
// (unlimited when limit <= 0). Deploys are auto-approved and quiet. The first error cancels
// the deploys that did not start yet.
func (c *Client) DeployAll(ctx context.Context, targets []ConnectionConfig, opts DeployOptions, limit int) error {
	fragments, err := opts.fragments()
	if err != nil {
		return err
	}
	opts.ModelDir = ""
	opts.Fragments = fragments
	opts.AutoApprove = true
	opts.Quiet = true

	eg, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for _, target := range targets {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := opts
			o.Connection = &target
			if err := c.Deploy(ctx, o); err != nil {
				return fmt.Errorf("deploy to %s: %w", target.String(), err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// AlterDatabaseScript returns the script that turns oldDb into newDb on the given engine. An
// empty serverVersion assumes the newest server.
func AlterDatabaseScript(oldDb, newDb DatabaseInfo, opts DiffOptions, engine Engine, serverVersion string) (string, error) {
	caps, err := dialect.For(engine, serverVersion)
	if err != nil {
		return "", err
	}
	r, err := render.New(caps)
	if err != nil {
		return "", err
	}
	res, err := diff.AlterDatabaseScript(oldDb, newDb, opts, r)
	if err != nil {
		return "", err
	}
	return res.SQL, nil
}

// LoadPlan reads a plan saved as JSON by the plan command.
func LoadPlan(data []byte) (*Plan, error) {
	return plan.FromJSON(data)
}
