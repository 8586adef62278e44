// Package security screens the raw SQL fragments a query may carry and
// records an audit trail of executed statements.
//
// Field names are always mapped to quoted columns, but entries that do not
// name a field (computed select expressions, LOWER(name) criteria, ORDER BY
// expressions) are rendered verbatim. Those fragments are what the Validator
// checks; bound values never reach the SQL text.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrDangerousSQL is returned when a fragment or value matches an injection rule.
var ErrDangerousSQL = errors.New("dangerous SQL pattern detected")

type rule struct {
	name    string
	pattern *regexp.Regexp
}

func rules(defs [][2]string) []rule {
	out := make([]rule, len(defs))
	for i, d := range defs {
		out[i] = rule{name: d[0], pattern: regexp.MustCompile(`(?i)` + d[1])}
	}
	return out
}

// fragmentRules apply to every raw fragment.
var fragmentRules = rules([][2]string{
	{"line comment", `--`},
	{"block comment", `/\*|\*/`},
	{"hash comment", `#\s`},
	{"statement separator", `;`},
	{"union select", `\bUNION\s+(ALL\s+)?SELECT\b`},
	{"string literal", `'`},
	{"command execution", `\bXP_CMDSHELL\b|\bSP_EXECUTESQL\b|\bEXEC(UTE)?\s*(\(|XP_|SP_)`},
	{"metadata access", `\bINFORMATION_SCHEMA\b|\bPG_CATALOG\b|\bSQLITE_MASTER\b`},
	{"timing attack", `\bPG_SLEEP\s*\(|\bBENCHMARK\s*\(|\bWAITFOR\s+DELAY\b|\bSLEEP\s*\(`},
	{"tautology", `\bOR\s+1\s*=\s*1\b|\bOR\s+TRUE\b`},
})

// strictRules are added by WithStrict; they also reject subqueries and
// boolean operators inside a single fragment.
var strictRules = rules([][2]string{
	{"subquery", `\bSELECT\b`},
	{"boolean operator", `\b(OR|AND)\b`},
	{"data modification", `\b(INSERT|UPDATE|DELETE|DROP|ALTER|TRUNCATE|CREATE)\b`},
})

// valueIndicators are substrings of bound string values that only make sense
// as an attempt to break out of a literal.
var valueIndicators = []string{"'--", "';", "' OR ", "' AND ", "/*", "*/", "' UNION ", "' DROP ", "XP_"}

// Validator checks raw SQL fragments and bound values.
type Validator struct {
	rules  []rule
	strict bool
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithStrict enables the strict rule set.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator creates a Validator with the default rules.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	v.rules = append(v.rules, fragmentRules...)
	if v.strict {
		v.rules = append(v.rules, strictRules...)
	}
	return v
}

// ValidateFragment checks one raw expression.
func (v *Validator) ValidateFragment(expr string) error {
	for _, r := range v.rules {
		if r.pattern.MatchString(expr) {
			return fmt.Errorf("%w: %s in %q", ErrDangerousSQL, r.name, expr)
		}
	}
	return nil
}

// ValidateFragments checks every fragment and returns the first failure.
func (v *Validator) ValidateFragments(exprs []string) error {
	for _, expr := range exprs {
		if err := v.ValidateFragment(expr); err != nil {
			return err
		}
	}
	return nil
}

// ValidateParams checks bound string values for literal break-out attempts.
// Values are bound, so this only flags probing; it never alters them.
func (v *Validator) ValidateParams(params []interface{}) error {
	for i, p := range params {
		s, ok := p.(string)
		if !ok {
			continue
		}
		upper := strings.ToUpper(s)
		for _, ind := range valueIndicators {
			if strings.Contains(upper, ind) {
				return fmt.Errorf("%w: suspicious value at index %d", ErrDangerousSQL, i)
			}
		}
	}
	return nil
}
