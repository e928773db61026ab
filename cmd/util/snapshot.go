package util

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dbgate/dbdeploy/model"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// SnapshotFormat is the encoding of a structure snapshot file.
type SnapshotFormat string

const (
	FormatYAML SnapshotFormat = "yaml"
	FormatJSON SnapshotFormat = "json"
)

// ParseSnapshotFormat validates a --format value.
func ParseSnapshotFormat(s string) (SnapshotFormat, error) {
	switch SnapshotFormat(strings.ToLower(s)) {
	case FormatYAML, "yml":
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown snapshot format %q (use yaml or json)", s)
}

// FormatForPath picks the snapshot format from a file extension, YAML unless it is .json.
func FormatForPath(path string) SnapshotFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ReadSnapshot reads a structure snapshot written by the analyse command.
func ReadSnapshot(fs afero.Fs, path string) (*model.DatabaseInfo, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	var db model.DatabaseInfo
	if FormatForPath(path) == FormatJSON {
		err = json.Unmarshal(data, &db)
	} else {
		err = yaml.Unmarshal(data, &db)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return &db, nil
}

// WriteSnapshot encodes db in the given format.
func WriteSnapshot(w io.Writer, db *model.DatabaseInfo, format SnapshotFormat) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(db)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(db); err != nil {
		return err
	}
	return enc.Close()
}

// WriteOutput writes content to stdout when target is empty or "stdout", to a file otherwise.
func WriteOutput(stdout io.Writer, target, content string) error {
	if target == "" || target == "stdout" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := afero.WriteFile(AppFs, target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
