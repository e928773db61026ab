package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dbgate/dbdeploy/internal/color"
	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/fingerprint"
	"github.com/dbgate/dbdeploy/internal/render"
	"github.com/dbgate/dbdeploy/internal/version"
)

// StepKind is the phase a step belongs to. Phases run in the order of stepOrder.
type StepKind string

const (
	StepPredeploy StepKind = "predeploy"
	StepUninstall StepKind = "uninstall"
	StepStructure StepKind = "structure"
	StepData      StepKind = "data"
	StepInstall   StepKind = "install"
	StepOnce      StepKind = "once"
)

var stepOrder = map[StepKind]int{
	StepPredeploy: 0,
	StepUninstall: 1,
	StepStructure: 2,
	StepData:      3,
	StepInstall:   4,
	StepOnce:      5,
}

// IsScript reports whether steps of this kind come from free-form SQL fragments.
func (k StepKind) IsScript() bool {
	switch k {
	case StepPredeploy, StepUninstall, StepInstall, StepOnce:
		return true
	}
	return false
}

// Step is one command or one script of a deploy
type Step struct {
	Kind       StepKind `json:"kind"`
	Operation  string   `json:"operation"`
	ObjectType string   `json:"type"`
	Path       string   `json:"path"`
	Statements []string `json:"statements"`

	// Journal records the run of a journaled script, or the definition of a created SQL
	// object; executed right after Statements.
	Journal []string `json:"journal,omitempty"`
}

// Plan represents the deploy plan of a model against one database
type Plan struct {
	Engine dialect.Engine `json:"engine"`

	// Structure the plan was computed against; nil when the plan was generated without analysis.
	SourceFingerprint *fingerprint.StructureFingerprint `json:"source_fingerprint,omitempty"`

	// CreateJournal creates the journal tables before the first journaled step. Empty when the
	// tables already exist.
	CreateJournal []string `json:"create_journal,omitempty"`

	Steps []Step `json:"steps"`

	// Plan metadata
	CreatedAt time.Time `json:"created_at"`
}

// PlanJSON represents the structured JSON output format
type PlanJSON struct {
	Version           string                            `json:"version"`
	DbdeployVersion   string                            `json:"dbdeploy_version"`
	CreatedAt         time.Time                         `json:"created_at"`
	Engine            dialect.Engine                    `json:"engine"`
	SourceFingerprint *fingerprint.StructureFingerprint `json:"source_fingerprint,omitempty"`
	Summary           PlanSummary                       `json:"summary"`
	CreateJournal     []string                          `json:"create_journal,omitempty"`
	Steps             []Step                            `json:"steps"`
}

// PlanSummary provides counts of changes by type
type PlanSummary struct {
	Add     int                    `json:"add"`
	Change  int                    `json:"change"`
	Destroy int                    `json:"destroy"`
	Total   int                    `json:"total"`
	Scripts int                    `json:"scripts"`
	ByType  map[string]TypeSummary `json:"by_type"`
}

// TypeSummary provides counts for a specific object type
type TypeSummary struct {
	Add     int `json:"add"`
	Change  int `json:"change"`
	Destroy int `json:"destroy"`
}

// typeOrder is the display order of object types in the human summary.
var typeOrder = []string{
	"schema", "table", "column", "primary key", "unique", "index", "foreign key", "comment",
	"view", "materialized view", "procedure", "function", "row", "sql",
}

// ========== PUBLIC METHODS ==========

// NewPlan creates an empty plan for the given engine
func NewPlan(engine dialect.Engine, source *fingerprint.StructureFingerprint) *Plan {
	return &Plan{
		Engine:            engine,
		SourceFingerprint: source,
		CreatedAt:         time.Now(),
	}
}

// AddCommands renders cmds with r and appends one step per command.
func (p *Plan) AddCommands(kind StepKind, cmds []command.Command, r render.Renderer) error {
	for _, cmd := range cmds {
		statements, err := r.RenderCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to render %s command: %w", kind, err)
		}
		d := command.Describe(cmd)
		p.Steps = append(p.Steps, Step{
			Kind:       kind,
			Operation:  string(d.Operation),
			ObjectType: d.ObjectType,
			Path:       d.ObjectPath,
			Statements: statements,
		})
	}
	return nil
}

// AddScript appends a free-form script. journal holds the statements recording the run and is
// empty for scripts that are not journaled.
func (p *Plan) AddScript(kind StepKind, name string, statements, journal []string) {
	p.Steps = append(p.Steps, Step{
		Kind:       kind,
		Operation:  "run",
		ObjectType: "script",
		Path:       name,
		Statements: statements,
		Journal:    journal,
	})
}

// OrderedSteps returns the steps in execution order. Steps of the same kind keep the order in
// which they were added.
func (p *Plan) OrderedSteps() []Step {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return stepOrder[steps[i].Kind] < stepOrder[steps[j].Kind]
	})
	return steps
}

// Statements returns every statement of the plan in execution order, including the journal
// table creation and journal updates.
func (p *Plan) Statements() []string {
	var out []string
	journalCreated := len(p.CreateJournal) == 0
	for _, step := range p.OrderedSteps() {
		if len(step.Journal) > 0 && !journalCreated {
			out = append(out, p.CreateJournal...)
			journalCreated = true
		}
		out = append(out, step.Statements...)
		out = append(out, step.Journal...)
	}
	return out
}

// IsEmpty reports whether the plan changes neither structure nor data. Scripts are not
// considered, since predeploy and install scripts run on every deploy.
func (p *Plan) IsEmpty() bool {
	for _, step := range p.Steps {
		if !step.Kind.IsScript() {
			return false
		}
	}
	return true
}

// HasSteps reports whether executing the plan would run anything at all.
func (p *Plan) HasSteps() bool {
	return len(p.Steps) > 0
}

// HumanColored returns a human-readable summary of the plan with color support
func (p *Plan) HumanColored(enableColor bool) string {
	c := color.New(enableColor)
	var summary strings.Builder

	planJSON := p.convertToStructuredJSON()

	if planJSON.Summary.Total == 0 && planJSON.Summary.Scripts == 0 {
		summary.WriteString("No changes detected.\n")
		return summary.String()
	}

	if planJSON.Summary.Total == 0 {
		summary.WriteString("No structure or data changes detected.\n\n")
	} else {
		summary.WriteString(c.FormatPlanHeader(planJSON.Summary.Add, planJSON.Summary.Change, planJSON.Summary.Destroy) + "\n\n")

		summary.WriteString(c.Bold("Summary by type:") + "\n")
		for _, objType := range p.objectTypes(planJSON) {
			ts := planJSON.Summary.ByType[objType]
			summary.WriteString(c.FormatSummaryLine(objType, ts.Add, ts.Change, ts.Destroy) + "\n")
		}
		summary.WriteString("\n")

		for _, objType := range p.objectTypes(planJSON) {
			p.writeDetailedChanges(&summary, objType, planJSON.Steps, c)
		}
	}

	if planJSON.Summary.Scripts > 0 {
		summary.WriteString(c.Bold("Scripts:") + "\n")
		for _, step := range planJSON.Steps {
			if step.Kind.IsScript() {
				fmt.Fprintf(&summary, "  %s %s (%s)\n", c.PlanSymbol(step.Operation), step.Path, step.Kind)
			}
		}
		summary.WriteString("\n")
	}

	summary.WriteString(c.Bold("SQL to be executed:") + "\n")
	summary.WriteString(strings.Repeat("-", 50) + "\n\n")
	if sql := p.ToSQL(); sql != "" {
		summary.WriteString(sql)
		if !strings.HasSuffix(sql, "\n") {
			summary.WriteString("\n")
		}
	} else {
		summary.WriteString("-- No SQL statements generated\n")
	}

	return summary.String()
}

// ToJSON returns the plan as structured JSON
func (p *Plan) ToJSON() (string, error) {
	planJSON := p.convertToStructuredJSON()

	data, err := json.MarshalIndent(planJSON, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data), nil
}

// FromJSON reads a plan written by ToJSON.
func FromJSON(data []byte) (*Plan, error) {
	var planJSON PlanJSON
	if err := json.Unmarshal(data, &planJSON); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	if planJSON.Version != version.PlanFormat() {
		return nil, fmt.Errorf("unsupported plan format version %q, expected %q", planJSON.Version, version.PlanFormat())
	}
	if _, err := dialect.ParseEngine(string(planJSON.Engine)); err != nil {
		return nil, err
	}
	return &Plan{
		Engine:            planJSON.Engine,
		SourceFingerprint: planJSON.SourceFingerprint,
		CreateJournal:     planJSON.CreateJournal,
		Steps:             planJSON.Steps,
		CreatedAt:         planJSON.CreatedAt,
	}, nil
}

// ToSQL returns only the SQL statements, one per paragraph, in execution order
func (p *Plan) ToSQL() string {
	statements := p.Statements()
	if len(statements) == 0 {
		return ""
	}
	return render.JoinStatements(statements)
}

// ========== PRIVATE METHODS ==========

// objectTypes returns the object types present in the summary, known types first.
func (p *Plan) objectTypes(planJSON *PlanJSON) []string {
	var types []string
	known := make(map[string]bool, len(typeOrder))
	for _, t := range typeOrder {
		known[t] = true
		if _, ok := planJSON.Summary.ByType[t]; ok {
			types = append(types, t)
		}
	}
	var rest []string
	for t := range planJSON.Summary.ByType {
		if !known[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	return append(types, rest...)
}

func (p *Plan) writeDetailedChanges(summary *strings.Builder, objType string, steps []Step, c *color.Color) {
	displayName := strings.ToUpper(objType[:1]) + objType[1:]
	fmt.Fprintf(summary, "%s:\n", c.Bold(displayName))

	for _, step := range steps {
		if step.Kind.IsScript() || step.ObjectType != objType {
			continue
		}
		if step.Path == "" {
			fmt.Fprintf(summary, "  %s %s\n", c.PlanSymbol(step.Operation), step.Operation)
			continue
		}
		fmt.Fprintf(summary, "  %s %s\n", c.PlanSymbol(step.Operation), step.Path)
	}

	summary.WriteString("\n")
}

// convertToStructuredJSON converts the plan to the structured JSON format
func (p *Plan) convertToStructuredJSON() *PlanJSON {
	planJSON := &PlanJSON{
		Version:           version.PlanFormat(),
		DbdeployVersion:   version.App(),
		CreatedAt:         p.CreatedAt.Truncate(time.Second),
		Engine:            p.Engine,
		SourceFingerprint: p.SourceFingerprint,
		Summary: PlanSummary{
			ByType: make(map[string]TypeSummary),
		},
		CreateJournal: p.CreateJournal,
		Steps:         p.OrderedSteps(),
	}

	p.calculateSummary(planJSON)

	return planJSON
}

// calculateSummary calculates the summary statistics. Scripts are counted separately.
func (p *Plan) calculateSummary(planJSON *PlanJSON) {
	for _, step := range planJSON.Steps {
		if step.Kind.IsScript() {
			planJSON.Summary.Scripts++
			continue
		}

		stats := planJSON.Summary.ByType[step.ObjectType]
		switch command.Operation(step.Operation) {
		case command.OperationCreate, command.OperationInsert:
			stats.Add++
			planJSON.Summary.Add++
		case command.OperationDrop, command.OperationDelete:
			stats.Destroy++
			planJSON.Summary.Destroy++
		default:
			stats.Change++
			planJSON.Summary.Change++
		}
		planJSON.Summary.ByType[step.ObjectType] = stats
	}

	planJSON.Summary.Total = planJSON.Summary.Add + planJSON.Summary.Change + planJSON.Summary.Destroy
}
