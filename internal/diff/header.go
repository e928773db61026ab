package diff

import (
	"fmt"
	"strings"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/version"
)

// ScriptHeader generates the comment header of generated scripts
func ScriptHeader(caps dialect.Capabilities) string {
	var header strings.Builder

	header.WriteString("--\n")
	header.WriteString("-- dbdeploy script\n")
	header.WriteString("--\n")
	header.WriteString("\n")

	if caps.ServerVersion != "" {
		header.WriteString(fmt.Sprintf("-- Generated from %s version %s\n", caps.Engine, caps.ServerVersion))
	} else {
		header.WriteString(fmt.Sprintf("-- Generated for %s\n", caps.Engine))
	}
	header.WriteString(fmt.Sprintf("-- Generated by dbdeploy version %s\n", version.App()))
	header.WriteString("\n")
	header.WriteString("\n")
	return header.String()
}
