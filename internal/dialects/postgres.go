package dialects

import (
	"strconv"

	"github.com/lib/pq"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pgx", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
// Embedded quotes are doubled and NUL bytes are stripped by pq.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return pq.QuoteIdentifier(s)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}
