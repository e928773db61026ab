package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change to %s: %v", dir, err)
	}
	t.Cleanup(func() { os.Chdir(original) })
}

func TestLoadDotEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DBDEPLOY_TEST_SET", "from environment")
	t.Setenv("DBDEPLOY_TEST_ENV", "")
	t.Setenv("DBDEPLOY_TEST_LOCAL", "")
	os.Unsetenv("DBDEPLOY_TEST_ENV")
	os.Unsetenv("DBDEPLOY_TEST_LOCAL")

	env := "DBDEPLOY_TEST_SET=from dotenv\nDBDEPLOY_TEST_ENV=dotenv\nDBDEPLOY_TEST_LOCAL=dotenv\n"
	if err := os.WriteFile(".env", []byte(env), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".env.local", []byte("DBDEPLOY_TEST_LOCAL=local\n"), 0644); err != nil {
		t.Fatal(err)
	}

	LoadDotEnv()

	tests := map[string]string{
		"DBDEPLOY_TEST_SET":   "from environment",
		"DBDEPLOY_TEST_ENV":   "dotenv",
		"DBDEPLOY_TEST_LOCAL": "local",
	}
	for key, want := range tests {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLoadDotEnvMissingFiles(t *testing.T) {
	chdir(t, t.TempDir())
	LoadDotEnv()
}

func TestInitConfig(t *testing.T) {
	defer viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "dbdeploy.yaml")
	if err := os.WriteFile(path, []byte("engine: sqlite\nmodel: ./model\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := InitConfig(path); err != nil {
		t.Fatalf("InitConfig() error = %v", err)
	}
	if got := viper.GetString("engine"); got != "sqlite" {
		t.Errorf("engine = %q, want sqlite", got)
	}

	viper.Reset()
	if err := InitConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("InitConfig() with missing explicit file expected error")
	}

	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	if err := InitConfig(""); err != nil {
		t.Errorf("InitConfig() without config file error = %v", err)
	}
}
