package dbdeploy

import (
	"context"
)

// AnalyseDatabase is a convenience function to read the full structure of a database.
func AnalyseDatabase(ctx context.Context, conn ConnectionConfig) (*DatabaseInfo, error) {
	client := NewClient(conn)
	return client.Analyse(ctx, AnalyseOptions{})
}

// GeneratePlan is a convenience function to compute a deploy plan from a model folder.
func GeneratePlan(ctx context.Context, conn ConnectionConfig, modelDir string) (*Plan, error) {
	client := NewClient(conn)
	return client.GenerateDeploySQL(ctx, DeployOptions{
		ModelDir: modelDir,
	})
}

// DeployModel is a convenience function to deploy a model folder directly.
// This generates a plan and executes it in one operation.
func DeployModel(ctx context.Context, conn ConnectionConfig, modelDir string, autoApprove bool) error {
	client := NewClient(conn)
	return client.Deploy(ctx, DeployOptions{
		ModelDir:    modelDir,
		AutoApprove: autoApprove,
	})
}

// DeployPlan is a convenience function to execute a pre-generated deploy plan.
func DeployPlan(ctx context.Context, conn ConnectionConfig, deployPlan *Plan, autoApprove bool) error {
	client := NewClient(conn)
	return client.Deploy(ctx, DeployOptions{
		Plan:        deployPlan,
		AutoApprove: autoApprove,
	})
}

// QuietDeployModel is like DeployModel but suppresses all output except errors.
func QuietDeployModel(ctx context.Context, conn ConnectionConfig, modelDir string) error {
	client := NewClient(conn)
	return client.Deploy(ctx, DeployOptions{
		ModelDir:    modelDir,
		AutoApprove: true,
		Quiet:       true,
	})
}
