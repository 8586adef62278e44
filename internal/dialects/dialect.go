// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling identifier quoting and positional
// placeholders.
package dialects

import "sync"

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name.
	Name() string
	// QuoteIdentifier quotes a single identifier (no dots are interpreted).
	QuoteIdentifier(string) string
	// Placeholder returns the positional placeholder for the 1-based index.
	Placeholder(int) string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// LookupDialect retrieves a registered dialect by driver name.
func LookupDialect(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := LookupDialect(name); ok {
		return d
	}
	panic("unsupported dialect: " + name)
}
