package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	planCmd "github.com/dbgate/dbdeploy/cmd/plan"
	"github.com/dbgate/dbdeploy/cmd/util"
	"github.com/dbgate/dbdeploy/internal/deploy"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/dbgate/dbdeploy/internal/plan"
	"github.com/dbgate/dbdeploy/internal/watch"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	connection        util.ConnectionFlags
	modelFlags        util.ModelFlags
	deployPlanFile    string
	deployAutoApprove bool
	deployNoColor     bool
	deployDryRun      bool
	deployWatch       bool
)

var DeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a model folder to a database",
	Long: `Deploy brings the target database to the model folder given by --model: it creates and
alters tables, views and routines, reconciles preloaded rows and runs the predeploy, install and
once scripts recorded in the deploy journal. A plan saved with "plan --output-json" can be
deployed with --plan; it is refused when the database changed since the plan was generated.`,
	RunE:         runDeploy,
	SilenceUsage: true,
}

func init() {
	connection.Register(DeployCmd)
	modelFlags.Register(DeployCmd)

	DeployCmd.Flags().StringVar(&deployPlanFile, "plan", "", "Path to a plan JSON file generated by the plan command (alternative to --model)")
	DeployCmd.Flags().BoolVar(&deployAutoApprove, "auto-approve", false, "Deploy changes without prompting for approval")
	DeployCmd.Flags().BoolVar(&deployNoColor, "no-color", false, "Disable colored output")
	DeployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Show plan without deploying changes")
	DeployCmd.Flags().BoolVar(&deployWatch, "watch", false, "Deploy again whenever a file of the model folder changes (requires --auto-approve)")
}

// DeployConfig holds configuration for a deploy
type DeployConfig struct {
	Connection driver.Config
	// Fragments is the model; ignored when Plan is set.
	Fragments []deploy.Fragment
	Options   deploy.Options
	// Plan is a pre-generated plan executed after its fingerprint is checked.
	Plan *plan.Plan

	AutoApprove bool
	NoColor     bool
	DryRun      bool
	// Quiet suppresses the plan display and progress messages.
	Quiet bool
	Out   io.Writer
}

func (c *DeployConfig) out() io.Writer {
	if c.Quiet {
		return io.Discard
	}
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

// ExecuteDeploy generates the plan, or takes the given one, shows it, asks for approval unless
// auto-approved and executes it.
func ExecuteDeploy(ctx context.Context, config *DeployConfig) error {
	out := config.out()

	conn, err := util.Connect(ctx, config.Connection)
	if err != nil {
		return err
	}
	defer conn.Close()

	deployPlan := config.Plan
	if deployPlan == nil {
		deployPlan, err = planCmd.GeneratePlan(ctx, &planCmd.PlanConfig{
			Fragments: config.Fragments,
			Options:   config.Options,
			Conn:      conn,
		})
		if err != nil {
			return err
		}
	}

	if !deployPlan.HasSteps() {
		fmt.Fprintln(out, "No changes to deploy. Database is already up to date.")
		return nil
	}

	fmt.Fprint(out, deployPlan.HumanColored(!config.NoColor))

	if config.DryRun {
		return nil
	}

	if !config.AutoApprove {
		approved, err := util.Confirm("Do you want to deploy these changes?")
		if err != nil {
			return err
		}
		if !approved {
			fmt.Fprintln(out, "Deploy cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "\nDeploying changes...")
	if err := deploy.Execute(ctx, conn, deployPlan, config.Options.Journal); err != nil {
		return fmt.Errorf("failed to deploy changes: %w", err)
	}
	fmt.Fprintln(out, "Changes deployed successfully!")
	return nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	connConfig, err := connection.Resolve(cmd)
	if err != nil {
		return err
	}
	if err := modelFlags.Resolve(cmd, deployPlanFile == ""); err != nil {
		return err
	}
	if deployPlanFile != "" && modelFlags.Dir != "" {
		return fmt.Errorf("--plan and --model cannot be used together")
	}
	if deployWatch && (deployPlanFile != "" || !deployAutoApprove) {
		return fmt.Errorf("--watch requires --model and --auto-approve")
	}

	config := &DeployConfig{
		Connection:  connConfig,
		Options:     modelFlags.Options(),
		AutoApprove: deployAutoApprove,
		NoColor:     deployNoColor,
		DryRun:      deployDryRun,
		Out:         cmd.OutOrStdout(),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if deployPlanFile != "" {
		data, err := afero.ReadFile(util.AppFs, deployPlanFile)
		if err != nil {
			return fmt.Errorf("failed to read plan file: %w", err)
		}
		if config.Plan, err = plan.FromJSON(data); err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}
		return ExecuteDeploy(ctx, config)
	}

	if deployWatch {
		return watchModel(ctx, config)
	}

	if config.Fragments, err = modelFlags.LoadModel(); err != nil {
		return err
	}
	return ExecuteDeploy(ctx, config)
}

// watchModel deploys the model folder, then again after every change, until interrupted.
func watchModel(ctx context.Context, config *DeployConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	w, err := watch.NewWatcher(modelFlags.Dir, func(ctx context.Context) error {
		fragments, err := modelFlags.LoadModel()
		if err != nil {
			return err
		}
		config.Fragments = fragments
		return ExecuteDeploy(ctx, config)
	})
	if err != nil {
		return err
	}
	// included files have no model suffix, so every .sql change counts
	w.Filter = func(path string) bool {
		_, ok := deploy.ClassifyFragment(path)
		return ok || strings.EqualFold(filepath.Ext(path), ".sql")
	}
	w.OnError = func(err error) {
		logger.Get().Error("Deploy failed", "error", err)
	}

	fmt.Fprintf(config.out(), "Watching %s for changes. Press Ctrl+C to stop.\n", modelFlags.Dir)
	return w.Run(ctx)
}
