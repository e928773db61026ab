package deploy

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dbgate/dbdeploy/internal/include"
	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/dbgate/dbdeploy/model"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FragmentKind classifies a model fragment by its file name suffix.
type FragmentKind string

const (
	FragmentTable     FragmentKind = "table"
	FragmentView      FragmentKind = "view"
	FragmentMatView   FragmentKind = "matview"
	FragmentProcedure FragmentKind = "proc"
	FragmentFunction  FragmentKind = "func"
	FragmentPredeploy FragmentKind = "predeploy"
	FragmentInstall   FragmentKind = "install"
	FragmentUninstall FragmentKind = "uninstall"
	FragmentOnce      FragmentKind = "once"
)

var fragmentSuffixes = []struct {
	suffix string
	kind   FragmentKind
}{
	{".table.yaml", FragmentTable},
	{".table.yml", FragmentTable},
	{".view.sql", FragmentView},
	{".matview.sql", FragmentMatView},
	{".proc.sql", FragmentProcedure},
	{".func.sql", FragmentFunction},
	{".predeploy.sql", FragmentPredeploy},
	{".install.sql", FragmentInstall},
	{".uninstall.sql", FragmentUninstall},
	{".once.sql", FragmentOnce},
}

// sqlObjectTypes maps declarative SQL fragments to the object type they define.
var sqlObjectTypes = map[FragmentKind]model.ObjectType{
	FragmentView:      model.ObjectTypeView,
	FragmentMatView:   model.ObjectTypeMatView,
	FragmentProcedure: model.ObjectTypeProcedure,
	FragmentFunction:  model.ObjectTypeFunction,
}

// Fragment is one file of a model: a declarative table or SQL object, or a free-form script.
type Fragment struct {
	// Name is the file name, used as the journal key of scripts.
	Name string
	Kind FragmentKind
	// Text is the SQL of script and SQL object fragments, with includes resolved.
	Text string
	// Table is set for table fragments.
	Table *model.TableInfo
}

// ObjectName returns the file name without its kind suffix. Suffixes match in any case.
func (f Fragment) ObjectName() string {
	lower := strings.ToLower(f.Name)
	for _, s := range fragmentSuffixes {
		if s.kind == f.Kind && strings.HasSuffix(lower, s.suffix) {
			return f.Name[:len(f.Name)-len(s.suffix)]
		}
	}
	return f.Name
}

// IsScript reports whether the fragment is free-form SQL rather than a declaration.
func (f Fragment) IsScript() bool {
	switch f.Kind {
	case FragmentPredeploy, FragmentInstall, FragmentUninstall, FragmentOnce:
		return true
	}
	return false
}

// ClassifyFragment returns the kind of a file name, or false for files that are not part of
// a model.
func ClassifyFragment(name string) (FragmentKind, bool) {
	lower := strings.ToLower(filepath.Base(name))
	for _, s := range fragmentSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind, true
		}
	}
	return "", false
}

// NewFragment builds a fragment from a file name and its content. Includes are not resolved.
func NewFragment(name, content string) (Fragment, error) {
	kind, ok := ClassifyFragment(name)
	if !ok {
		return Fragment{}, fmt.Errorf("unknown model file type: %s", name)
	}
	f := Fragment{Name: filepath.Base(name), Kind: kind}
	if kind != FragmentTable {
		f.Text = content
		return f, nil
	}

	var def tableDefinition
	if err := yaml.Unmarshal([]byte(content), &def); err != nil {
		return Fragment{}, fmt.Errorf("failed to parse table file %s: %w", name, err)
	}
	if def.Name == "" {
		def.Name = f.ObjectName()
	}
	table, err := def.toTable()
	if err != nil {
		return Fragment{}, fmt.Errorf("invalid table file %s: %w", name, err)
	}
	f.Table = &table
	return f, nil
}

// LoadFolder reads every model file of dir, sorted by file name. SQL files have their \i
// includes resolved relative to dir. Other files are skipped.
func LoadFolder(fs afero.Fs, dir string) ([]Fragment, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read model folder %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	processor := include.NewProcessor(fs, dir)
	var fragments []Fragment
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		kind, ok := ClassifyFragment(info.Name())
		if !ok {
			logger.Get().Debug("Skipping file outside of the model", "file", info.Name())
			continue
		}

		path := filepath.Join(dir, info.Name())
		var content string
		if kind == FragmentTable {
			data, err := afero.ReadFile(fs, path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			content = string(data)
		} else {
			content, err = processor.ProcessFile(path)
			if err != nil {
				return nil, err
			}
		}

		fragment, err := NewFragment(info.Name(), content)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

// tableDefinition is the YAML layout of a table fragment.
type tableDefinition struct {
	Name       string             `yaml:"name"`
	Schema     string             `yaml:"schema"`
	Comment    string             `yaml:"comment"`
	Columns    []columnDefinition `yaml:"columns"`
	PrimaryKey []string           `yaml:"primaryKey"`
	Indexes    []indexDefinition  `yaml:"indexes"`
	Uniques    []uniqueDefinition `yaml:"uniques"`
	Data       []map[string]any   `yaml:"data"`
	InsertKey  []string           `yaml:"insertKey"`
	InsertOnly []string           `yaml:"insertOnly"`
}

type columnDefinition struct {
	Name          string  `yaml:"name"`
	Type          string  `yaml:"type"`
	NotNull       bool    `yaml:"notNull"`
	AutoIncrement bool    `yaml:"autoIncrement"`
	Default       *string `yaml:"default"`
	Comment       string  `yaml:"comment"`
	// References names the table this column points to; RefColumn defaults to that table's
	// single primary key column.
	References string `yaml:"references"`
	RefColumn  string `yaml:"refColumn"`
	OnDelete   string `yaml:"onDelete"`
	OnUpdate   string `yaml:"onUpdate"`
}

type indexDefinition struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique"`
	Filter  string   `yaml:"filter"`
}

type uniqueDefinition struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

func indexColumns(names []string) []model.IndexColumn {
	cols := make([]model.IndexColumn, 0, len(names))
	for _, name := range names {
		desc := false
		if fields := strings.Fields(name); len(fields) == 2 && strings.EqualFold(fields[1], "desc") {
			name, desc = fields[0], true
		}
		cols = append(cols, model.IndexColumn{ColumnName: name, IsDescending: desc})
	}
	return cols
}

func defaultConstraintName(prefix, table string, cols []model.IndexColumn) string {
	parts := []string{prefix, table}
	for _, c := range cols {
		parts = append(parts, c.ColumnName)
	}
	return strings.Join(parts, "_")
}

func (d tableDefinition) toTable() (model.TableInfo, error) {
	t := model.TableInfo{
		SchemaName:              d.Schema,
		PureName:                d.Name,
		ObjectComment:           d.Comment,
		PreloadedRows:           d.Data,
		PreloadedRowsKey:        d.InsertKey,
		PreloadedRowsInsertOnly: d.InsertOnly,
	}
	if len(d.Columns) == 0 {
		return t, fmt.Errorf("table %s has no columns", d.Name)
	}

	pk := make(map[string]bool, len(d.PrimaryKey))
	for _, name := range d.PrimaryKey {
		pk[name] = true
	}
	for _, c := range d.Columns {
		if c.Name == "" || c.Type == "" {
			return t, fmt.Errorf("column of table %s needs a name and a type", d.Name)
		}
		t.Columns = append(t.Columns, model.ColumnInfo{
			ColumnName:    c.Name,
			DataType:      c.Type,
			NotNull:       c.NotNull || pk[c.Name],
			AutoIncrement: c.AutoIncrement,
			DefaultValue:  c.Default,
			ColumnComment: c.Comment,
		})
		if c.References != "" {
			t.ForeignKeys = append(t.ForeignKeys, model.ForeignKeyInfo{
				ConstraintName: fmt.Sprintf("FK_%s_%s", d.Name, c.Name),
				RefTableName:   c.References,
				Columns:        []model.ColumnReference{{ColumnName: c.Name, RefColumnName: c.RefColumn}},
				DeleteAction:   strings.ToUpper(c.OnDelete),
				UpdateAction:   strings.ToUpper(c.OnUpdate),
			})
		}
	}
	for name := range pk {
		if _, ok := t.Column(name); !ok {
			return t, fmt.Errorf("primary key column %s is not a column of table %s", name, d.Name)
		}
	}

	if len(d.PrimaryKey) > 0 {
		t.PrimaryKey = &model.PrimaryKeyInfo{
			ConstraintName: "PK_" + d.Name,
			Columns:        indexColumns(d.PrimaryKey),
		}
	}
	for _, ix := range d.Indexes {
		cols := indexColumns(ix.Columns)
		name := ix.Name
		if name == "" {
			name = defaultConstraintName("IX", d.Name, cols)
		}
		t.Indexes = append(t.Indexes, model.IndexInfo{
			ConstraintName: name,
			Columns:        cols,
			IsUnique:       ix.Unique,
			Filter:         ix.Filter,
		})
	}
	for _, uq := range d.Uniques {
		cols := indexColumns(uq.Columns)
		name := uq.Name
		if name == "" {
			name = defaultConstraintName("UQ", d.Name, cols)
		}
		t.Uniques = append(t.Uniques, model.UniqueInfo{ConstraintName: name, Columns: cols})
	}
	return t, nil
}
