package ignore

import (
	"errors"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

const (
	// IgnoreFileName is the default name of the ignore file
	IgnoreFileName = ".dbdeployignore"
)

// TomlConfig represents the TOML structure of the ignore file
type TomlConfig struct {
	Tables     PatternConfig `toml:"tables,omitempty"`
	Views      PatternConfig `toml:"views,omitempty"`
	MatViews   PatternConfig `toml:"matviews,omitempty"`
	Functions  PatternConfig `toml:"functions,omitempty"`
	Procedures PatternConfig `toml:"procedures,omitempty"`
}

// PatternConfig holds the patterns of one object type
type PatternConfig struct {
	Patterns []string `toml:"patterns,omitempty"`
}

// LoadIgnoreFile loads the ignore file from the current directory
// Returns nil if the file doesn't exist (ignore functionality is optional)
func LoadIgnoreFile(fsys afero.Fs) (*IgnoreConfig, error) {
	return LoadIgnoreFileFromPath(fsys, IgnoreFileName)
}

// LoadIgnoreFileFromPath loads an ignore file from the specified path
// Returns nil if the file doesn't exist
func LoadIgnoreFileFromPath(fsys afero.Fs, filePath string) (*IgnoreConfig, error) {
	data, err := afero.ReadFile(fsys, filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tomlConfig TomlConfig
	if _, err := toml.Decode(string(data), &tomlConfig); err != nil {
		return nil, err
	}

	return &IgnoreConfig{
		Tables:     tomlConfig.Tables.Patterns,
		Views:      tomlConfig.Views.Patterns,
		MatViews:   tomlConfig.MatViews.Patterns,
		Functions:  tomlConfig.Functions.Patterns,
		Procedures: tomlConfig.Procedures.Patterns,
	}, nil
}
