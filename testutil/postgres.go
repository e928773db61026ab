// Package testutil provides shared test utilities for dbdeploy
package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/driver"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var suppressedLogger = log.New(io.Discard, "", 0)

// PostgresImageVersion is the PostgreSQL image tag integration tests run against, taken from
// DBDEPLOY_POSTGRES_VERSION and defaulting to 17.
func PostgresImageVersion() string {
	if version := os.Getenv("DBDEPLOY_POSTGRES_VERSION"); version != "" {
		return version
	}
	return "17"
}

// ContainerInfo is a running PostgreSQL container with an open connection to its database.
type ContainerInfo struct {
	Container testcontainers.Container
	Config    driver.Config
	Conn      *driver.Conn
}

// SetupPostgresContainer starts a PostgreSQL container with the testdb database
func SetupPostgresContainer(ctx context.Context, t *testing.T) *ContainerInfo {
	return SetupPostgresContainerWithDB(ctx, t, "testdb", "testuser", "testpass")
}

// SetupPostgresContainerWithDB starts a PostgreSQL container and connects to database as
// username. The returned Config connects to the same database.
func SetupPostgresContainerWithDB(ctx context.Context, t *testing.T, database, username, password string) *ContainerInfo {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:"+PostgresImageVersion()+"-alpine",
		postgres.WithDatabase(database),
		postgres.WithUsername(username),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(suppressedLogger),
	)
	if err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}

	config, err := containerConfig(ctx, container, database, username, password)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to read container address: %v", err)
	}
	conn, err := driver.Open(ctx, config)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect to database: %v", err)
	}

	return &ContainerInfo{Container: container, Config: config, Conn: conn}
}

func containerConfig(ctx context.Context, container *postgres.PostgresContainer, database, username, password string) (driver.Config, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return driver.Config{}, err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return driver.Config{}, err
	}
	return driver.Config{
		Engine:          dialect.Postgres,
		Host:            host,
		Port:            port.Int(),
		Database:        database,
		User:            username,
		Password:        password,
		SSLMode:         "disable",
		ApplicationName: "dbdeploy-test",
	}, nil
}

// Terminate closes the connection and removes the container
func (ci *ContainerInfo) Terminate(ctx context.Context, t *testing.T) {
	ci.Conn.Close()
	if err := ci.Container.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate container: %v", err)
	}
}
