package committer

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"
)

// templateVars builds the placeholder values shared by
// the content and message templates.
func templateVars(cfg Config, now time.Time) map[string]any {
	now = now.UTC()

	return map[string]any{
		"timestamp":  now.Format(time.RFC3339Nano),
		"unix_nano":  strconv.FormatInt(now.UnixNano(), 10),
		"branch":     cfg.Branch,
		"file_path":  cfg.FilePath,
		"repository": cfg.Repository,
		"account":    cfg.Account,
	}
}

// render replaces {{name}} placeholders in tpl. Unknown
// placeholders are kept as-is.
func render(tpl string, vars map[string]any) string {
	return fasttemplate.ExecuteStringStd(tpl, "{{", "}}", vars)
}

// buildContent appends marker as the last line of base.
func buildContent(base string, marker string) string {
	if base == "" {
		return marker
	}

	if !strings.HasSuffix(base, "\n") {
		base += "\n"
	}

	return base + marker + "\n"
}
