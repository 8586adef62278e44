package core

import (
	"strconv"
	"strings"

	"github.com/coregx/quickdao/internal/dialects"
)

// IdentifierWrapper quotes table and column names for a dialect.
type IdentifierWrapper interface {
	Wrap(identifier string) string
}

// IdentifierWrapperFunc adapts a function to IdentifierWrapper.
type IdentifierWrapperFunc func(string) string

// Wrap calls f(identifier).
func (f IdentifierWrapperFunc) Wrap(identifier string) string {
	return f(identifier)
}

// Built-in identifier wrappers.
var (
	// NoQuote leaves identifiers untouched.
	NoQuote IdentifierWrapper = IdentifierWrapperFunc(func(s string) string { return s })
	// Backtick quotes identifiers MySQL style: `name`.
	Backtick = QuoteWith(&dialects.MySQLDialect{})
	// DoubleQuote quotes identifiers ANSI style: "name".
	DoubleQuote = QuoteWith(&dialects.SQLiteDialect{})
)

// QuoteWith returns an IdentifierWrapper using the dialect's quoting.
// Qualified identifiers like "schema.table" are quoted part by part.
//
// Example:
//
//	PostgreSQL: "users" → "users", "public.users" → "public"."users"
//	MySQL: `users` → `users`, `mydb.users` → `mydb`.`users`
func QuoteWith(d dialects.Dialect) IdentifierWrapper {
	return IdentifierWrapperFunc(func(identifier string) string {
		if strings.Contains(identifier, ".") {
			parts := strings.Split(identifier, ".")
			for i, part := range parts {
				parts[i] = d.QuoteIdentifier(strings.TrimSpace(part))
			}
			return strings.Join(parts, ".")
		}
		return d.QuoteIdentifier(strings.TrimSpace(identifier))
	})
}

// PlaceholderWrapper renders bind-parameter markers.
// position is the 1-based ordinal of the placeholder within the statement;
// named styles ignore it, positional styles use nothing else.
type PlaceholderWrapper interface {
	// Wrap renders the placeholder for a named parameter.
	Wrap(name string, position int) string
	// WrapRow renders the placeholder for a field of one batch row.
	// Placeholders for the same field must differ across rows.
	WrapRow(row int, name string, position int) string
}

// RowParamName is the bind name of a field inside batch row row.
func RowParamName(row int, name string) string {
	return name + "_" + strconv.Itoa(row)
}

type colonPlaceholder struct{}

func (colonPlaceholder) Wrap(name string, _ int) string {
	return ":" + name
}

func (colonPlaceholder) WrapRow(row int, name string, _ int) string {
	return ":" + RowParamName(row, name)
}

type mybatisPlaceholder struct{}

func (mybatisPlaceholder) Wrap(name string, _ int) string {
	return "#{" + name + "}"
}

func (mybatisPlaceholder) WrapRow(row int, name string, _ int) string {
	return "#{list[" + strconv.Itoa(row) + "]." + name + "}"
}

type positionalPlaceholder struct {
	dialect dialects.Dialect
}

func (p positionalPlaceholder) Wrap(_ string, position int) string {
	return p.dialect.Placeholder(position)
}

func (p positionalPlaceholder) WrapRow(_ int, _ string, position int) string {
	return p.dialect.Placeholder(position)
}

// Built-in placeholder wrappers.
var (
	// Colon renders :name and :name_0 for batch rows.
	Colon PlaceholderWrapper = colonPlaceholder{}
	// MyBatis renders #{name} and #{list[0].name} for batch rows.
	MyBatis PlaceholderWrapper = mybatisPlaceholder{}
)

// Positional renders the dialect's positional markers (? or $n).
// Values must then be bound in order with Statement.Args.
func Positional(d dialects.Dialect) PlaceholderWrapper {
	return positionalPlaceholder{dialect: d}
}
