// Package color formats plan output in Terraform style on top of fatih/color.
package color

import (
	"fmt"
	"strings"

	fcolor "github.com/fatih/color"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool

	add     *fcolor.Color
	change  *fcolor.Color
	destroy *fcolor.Color
	bold    *fcolor.Color
	cyan    *fcolor.Color
}

// New creates a new Color instance. fatih/color already turns colors off for NO_COLOR, dumb
// terminals and non-tty output.
func New(enabled bool) *Color {
	c := &Color{
		enabled: enabled && !fcolor.NoColor,
		add:     fcolor.New(fcolor.FgGreen),
		change:  fcolor.New(fcolor.FgYellow),
		destroy: fcolor.New(fcolor.FgRed),
		bold:    fcolor.New(fcolor.Bold),
		cyan:    fcolor.New(fcolor.FgCyan),
	}
	for _, fc := range []*fcolor.Color{c.add, c.change, c.destroy, c.bold, c.cyan} {
		if c.enabled {
			fc.EnableColor()
		} else {
			fc.DisableColor()
		}
	}
	return c
}

// Enabled reports whether escape codes are written.
func (c *Color) Enabled() bool {
	return c.enabled
}

// Add colors a string to indicate additions (green, like Terraform)
func (c *Color) Add(text string) string {
	return c.add.Sprint(text)
}

// Change colors a string to indicate modifications (yellow, like Terraform)
func (c *Color) Change(text string) string {
	return c.change.Sprint(text)
}

// Destroy colors a string to indicate deletions (red, like Terraform)
func (c *Color) Destroy(text string) string {
	return c.destroy.Sprint(text)
}

// Bold makes text bold
func (c *Color) Bold(text string) string {
	return c.bold.Sprint(text)
}

// Cyan colors text cyan (for headers and labels)
func (c *Color) Cyan(text string) string {
	return c.cyan.Sprint(text)
}

// PlanSymbol returns the appropriate symbol for plan actions
func (c *Color) PlanSymbol(action string) string {
	switch action {
	case "add", "create", "insert":
		return c.Add("+")
	case "change", "alter", "update", "rename", "run":
		return c.Change("~")
	case "destroy", "drop", "delete":
		return c.Destroy("-")
	default:
		return " "
	}
}

// FormatSummaryLine formats summary counts with colors
func (c *Color) FormatSummaryLine(objectType string, added, modified, dropped int) string {
	return fmt.Sprintf("  %s: %s", objectType, c.counts(added, modified, dropped))
}

// FormatPlanHeader formats the main plan header
func (c *Color) FormatPlanHeader(added, modified, dropped int) string {
	return fmt.Sprintf("Plan: %s.", c.counts(added, modified, dropped))
}

// counts always shows all three categories, even if zero.
func (c *Color) counts(added, modified, dropped int) string {
	parts := []string{
		c.Add(fmt.Sprintf("%d to add", added)),
		c.Change(fmt.Sprintf("%d to modify", modified)),
		c.Destroy(fmt.Sprintf("%d to drop", dropped)),
	}
	return strings.Join(parts, ", ")
}
