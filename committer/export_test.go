package committer

import "time"

// Exported aliases for testing internal functions from
// the committer_test package.

// RenderForTest exposes render.
var RenderForTest = render

// BuildContentForTest exposes buildContent.
var BuildContentForTest = buildContent

// TemplateVarsForTest exposes templateVars.
func TemplateVarsForTest(cfg Config, now time.Time) map[string]any {
	return templateVars(cfg, now)
}
