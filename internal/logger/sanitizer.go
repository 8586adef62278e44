package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSensitiveFields are masked when NewSanitizer gets no field list.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

const maskValue = "***REDACTED***"

// rowSuffix matches the row index appended to batch bind names (name_0).
var rowSuffix = regexp.MustCompile(`_\d+$`)

// Sanitizer masks bind values of sensitive fields before they reach a log.
//
// Statements generated by quickdao know the bind name of every placeholder,
// so values are masked one by one (MaskNamed). For SQL without names,
// MaskParams masks every value once a sensitive column shows up in the text.
type Sanitizer struct {
	fields   map[string]bool
	patterns []*regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given field or column names,
// matched case-insensitively.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}
	s := &Sanitizer{
		fields:   make(map[string]bool, len(sensitiveFields)),
		patterns: make([]*regexp.Regexp, 0, len(sensitiveFields)),
	}
	for _, f := range sensitiveFields {
		f = strings.ToLower(f)
		s.fields[f] = true
		s.patterns = append(s.patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(f)+`\b`))
	}
	return s
}

// IsSensitive reports whether a bind name refers to a sensitive field.
// Batch suffixes are ignored and camelCase names are compared in
// snake_case too ("apiKey_3" matches "api_key").
func (s *Sanitizer) IsSensitive(name string) bool {
	base := strings.Split(name, "__")[0]
	base = strings.TrimSuffix(base, rowSuffix.FindString(base))
	if s.fields[strings.ToLower(base)] {
		return true
	}
	return s.fields[snake(base)]
}

func snake(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// MaskNamed returns a copy of values where values[i] is masked when names[i]
// is sensitive. names and values are parallel, as returned by
// Statement.Names and Statement.Args.
func (s *Sanitizer) MaskNamed(names []string, values []interface{}) []interface{} {
	masked := make([]interface{}, len(values))
	for i, v := range values {
		if i < len(names) && s.IsSensitive(names[i]) {
			masked[i] = maskValue
			continue
		}
		masked[i] = v
	}
	return masked
}

// MaskParams masks every value when sql mentions a sensitive column.
// Original parameters are not modified.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.mentionsSensitive(sql) {
		return params
	}
	masked := make([]interface{}, len(params))
	for i := range masked {
		masked[i] = maskValue
	}
	return masked
}

func (s *Sanitizer) mentionsSensitive(sql string) bool {
	for _, p := range s.patterns {
		if p.MatchString(sql) {
			return true
		}
	}
	return false
}

// FormatParams renders values for a log line. Long values are truncated.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	str := fmt.Sprintf("%v", v)
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
