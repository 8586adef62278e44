package util

import (
	"regexp"
	"strings"
)

var nonWordRegex = regexp.MustCompile(`\W+`)

// ParamName turns a field name or raw SQL expression into a bind-parameter
// name: runs of non-word characters collapse to "_" and the result is
// trimmed ("LOWER(name)" -> "LOWER_name"). Empty results become "param".
func ParamName(expr string) string {
	name := strings.Trim(nonWordRegex.ReplaceAllString(expr, "_"), "_")
	if name == "" {
		return "param"
	}
	return name
}
