package plan

import (
	"context"
	"fmt"
	"io"

	"github.com/dbgate/dbdeploy/cmd/util"
	"github.com/dbgate/dbdeploy/internal/deploy"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/plan"
	"github.com/spf13/cobra"
)

var (
	connection  util.ConnectionFlags
	modelFlags  util.ModelFlags
	currentFile string
	outputHuman string
	outputJSON  string
	outputSQL   string
	planNoColor bool
)

var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a deploy plan for a model folder",
	Long: `Plan compares the model folder (given by --model) with the structure of the target database
and shows the structure, data and script steps a deploy would run. Nothing is executed.
With --current the structure is read from a snapshot file; the target is then contacted only
to read preloaded rows and the deploy journal.`,
	RunE:         runPlan,
	SilenceUsage: true,
}

func init() {
	connection.Register(PlanCmd)
	modelFlags.Register(PlanCmd)

	PlanCmd.Flags().StringVar(&currentFile, "current", "", "Snapshot of the current structure used instead of analysing the target")

	// Output flags
	PlanCmd.Flags().StringVar(&outputHuman, "output-human", "", "Output human-readable format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputJSON, "output-json", "", "Output JSON format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputSQL, "output-sql", "", "Output SQL format to stdout or file path")
	PlanCmd.Flags().BoolVar(&planNoColor, "no-color", false, "Disable colored output")
}

func runPlan(cmd *cobra.Command, args []string) error {
	connConfig, err := connection.Resolve(cmd)
	if err != nil {
		return err
	}
	if err := modelFlags.Resolve(cmd, true); err != nil {
		return err
	}
	fragments, err := modelFlags.LoadModel()
	if err != nil {
		return err
	}

	config := &PlanConfig{
		Connection: connConfig,
		Fragments:  fragments,
		Options:    modelFlags.Options(),
	}
	if currentFile != "" {
		if config.Options.CurrentStructure, err = util.ReadSnapshot(util.AppFs, currentFile); err != nil {
			return err
		}
	}

	// Determine which outputs to generate before doing any work
	outputs, err := determineOutputs()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	deployPlan, err := GeneratePlan(ctx, config)
	if err != nil {
		return err
	}

	for _, output := range outputs {
		if err := processOutput(deployPlan, output, cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	return nil
}

// PlanConfig holds configuration for plan generation
type PlanConfig struct {
	Connection driver.Config
	Fragments  []deploy.Fragment
	Options    deploy.Options
	// Conn is used instead of connecting with Connection when set. It is left open.
	Conn *driver.Conn
}

// GeneratePlan computes the deploy plan of the configured model against the target.
func GeneratePlan(ctx context.Context, config *PlanConfig) (*plan.Plan, error) {
	target := deploy.Prepared(config.Connection)
	if config.Conn != nil {
		target = deploy.Live(config.Conn)
	}
	deployPlan, err := deploy.GenerateDeploySQL(ctx, target, config.Fragments, config.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}
	return deployPlan, nil
}

// outputSpec represents a single output specification
type outputSpec struct {
	format string // "human", "json", or "sql"
	target string // "stdout" or file path
}

// determineOutputs parses the output flags and returns the list of outputs to generate
func determineOutputs() ([]outputSpec, error) {
	var outputs []outputSpec
	stdoutCount := 0

	for _, o := range []outputSpec{
		{format: "human", target: outputHuman},
		{format: "json", target: outputJSON},
		{format: "sql", target: outputSQL},
	} {
		if o.target == "" {
			continue
		}
		if o.target == "stdout" {
			stdoutCount++
		}
		outputs = append(outputs, o)
	}

	if stdoutCount > 1 {
		return nil, fmt.Errorf("only one output format can use stdout")
	}

	// Default behavior: if no outputs specified, output human to stdout
	if len(outputs) == 0 {
		outputs = append(outputs, outputSpec{format: "human", target: "stdout"})
	}
	return outputs, nil
}

// processOutput writes the plan in the specified format to the target destination
func processOutput(deployPlan *plan.Plan, output outputSpec, stdout io.Writer) error {
	var content string
	switch output.format {
	case "human":
		useColor := output.target == "stdout" && !planNoColor
		content = deployPlan.HumanColored(useColor)
	case "json":
		data, err := deployPlan.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to generate JSON output: %w", err)
		}
		content = data + "\n"
	case "sql":
		content = deployPlan.ToSQL()
	default:
		return fmt.Errorf("unknown output format: %s", output.format)
	}

	if err := util.WriteOutput(stdout, output.target, content); err != nil {
		return fmt.Errorf("failed to write %s output: %w", output.format, err)
	}
	return nil
}
