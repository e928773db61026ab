package diff

import (
	"github.com/dbgate/dbdeploy/internal/command"
	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/model"
)

// diffSchemas creates schemas missing from the old snapshot. Schemas are only dropped in strict
// mode; default schemas are never touched.
func diffSchemas(oldSchemas, newSchemas []model.SchemaInfo, opts Options, caps dialect.Capabilities) (creates, drops []command.Command) {
	if !caps.SupportsSchemas {
		return nil, nil
	}
	isDefault := func(s model.SchemaInfo) bool {
		return s.IsDefault || s.SchemaName == caps.DefaultSchema
	}
	oldSet := make(map[string]bool, len(oldSchemas))
	for _, s := range oldSchemas {
		oldSet[s.SchemaName] = true
	}
	newSet := make(map[string]bool, len(newSchemas))
	for _, s := range newSchemas {
		newSet[s.SchemaName] = true
		if !oldSet[s.SchemaName] && !isDefault(s) {
			creates = append(creates, &command.CreateSchema{SchemaName: s.SchemaName})
		}
	}
	if opts.strict() {
		for _, s := range oldSchemas {
			if !newSet[s.SchemaName] && !isDefault(s) {
				drops = append(drops, &command.DropSchema{SchemaName: s.SchemaName})
			}
		}
	}
	return creates, drops
}
