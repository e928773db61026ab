package deploy

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	planCmd "github.com/dbgate/dbdeploy/cmd/plan"
	"github.com/dbgate/dbdeploy/internal/deploy"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/dbgate/dbdeploy/internal/fingerprint"
	"github.com/stretchr/testify/require"
)

func usersModel(t *testing.T) []deploy.Fragment {
	t.Helper()
	f, err := deploy.NewFragment("users.table.yaml", "columns:\n  - name: id\n    type: int\n  - name: name\n    type: varchar(50)\nprimaryKey: [id]\n")
	require.NoError(t, err)
	return []deploy.Fragment{f}
}

func sqliteTarget(t *testing.T) driver.Config {
	return driver.Config{Engine: dialect.SQLite, File: filepath.Join(t.TempDir(), "deploy.db")}
}

func tableCount(t *testing.T, config driver.Config) int {
	t.Helper()
	conn, err := driver.Open(context.Background(), config)
	require.NoError(t, err)
	defer conn.Close()
	db, err := conn.AnalyseFull(context.Background())
	require.NoError(t, err)
	return len(db.Tables)
}

func TestExecuteDeploy(t *testing.T) {
	ctx := context.Background()
	target := sqliteTarget(t)
	var out bytes.Buffer
	config := &DeployConfig{
		Connection:  target,
		Fragments:   usersModel(t),
		AutoApprove: true,
		NoColor:     true,
		Out:         &out,
	}

	require.NoError(t, ExecuteDeploy(ctx, config))
	require.Contains(t, out.String(), "Plan: 1 to add")
	require.Contains(t, out.String(), "Changes deployed successfully!")
	require.Equal(t, 1, tableCount(t, target))

	out.Reset()
	require.NoError(t, ExecuteDeploy(ctx, config))
	require.Contains(t, out.String(), "No changes to deploy")
}

func TestExecuteDeployDryRun(t *testing.T) {
	target := sqliteTarget(t)
	var out bytes.Buffer
	config := &DeployConfig{
		Connection: target,
		Fragments:  usersModel(t),
		DryRun:     true,
		NoColor:    true,
		Out:        &out,
	}

	require.NoError(t, ExecuteDeploy(context.Background(), config))
	require.True(t, strings.Contains(out.String(), `CREATE TABLE "users"`))
	require.Equal(t, 0, tableCount(t, target))
}

func TestExecuteDeploySavedPlan(t *testing.T) {
	ctx := context.Background()
	target := sqliteTarget(t)

	saved, err := planCmd.GeneratePlan(ctx, &planCmd.PlanConfig{Connection: target, Fragments: usersModel(t)})
	require.NoError(t, err)

	conn, err := driver.Open(ctx, target)
	require.NoError(t, err)
	require.NoError(t, conn.Script(ctx, "CREATE TABLE other (id int)"))
	conn.Close()

	config := &DeployConfig{Connection: target, Plan: saved, AutoApprove: true, Quiet: true}
	err = ExecuteDeploy(ctx, config)
	require.True(t, errors.Is(err, fingerprint.ErrFingerprintMismatch), "ExecuteDeploy() error = %v", err)
	require.Equal(t, 1, tableCount(t, target))
}
