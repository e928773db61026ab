package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	SetGlobal(New(&buf, true), true)
	defer SetGlobal(nil, false)

	Component("deploy").Debug("Executing statement", "sql", "CREATE TABLE t1 (id int)")

	out := buf.String()
	for _, want := range []string{"level=DEBUG", "component=deploy", `sql="CREATE TABLE t1 (id int)"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}
	if !IsDebug() {
		t.Error("IsDebug() = false after SetGlobal(..., true)")
	}
}

func TestInfoLevelHidesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	log.Debug("hidden")
	log.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
