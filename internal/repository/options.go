package repository

import (
	"github.com/coregx/quickdao/internal/cache"
	"github.com/coregx/quickdao/internal/logger"
	"github.com/coregx/quickdao/internal/security"
	"github.com/coregx/quickdao/internal/tracer"
)

type config struct {
	logger       logger.Logger
	sanitizer    *logger.Sanitizer
	tracer       tracer.Tracer
	validator    *security.Validator
	auditor      *security.Auditor
	stmtCapacity int
	stmtCache    *cache.StmtCache
}

// Option is a functional option for configuring a Repository.
type Option func(*config)

// WithLogger sets the logger for generated and executed statements.
// Executions are logged at Info, generation at Debug.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithSensitiveFields replaces the default list of field names whose bound
// values are masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(c *config) {
		c.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer enables a span per executed statement.
//
// Example:
//
//	repo, _ := repository.New[User](db, "postgres",
//	    repository.WithTracer(tracer.NewOtelTracer(otel.Tracer("app"))))
func WithTracer(t tracer.Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// WithValidator checks the raw SQL fragments of queries and criteria, and
// their bound values, before execution.
func WithValidator(v *security.Validator) Option {
	return func(c *config) {
		c.validator = v
	}
}

// WithAuditor records an audit event per executed statement.
func WithAuditor(a *security.Auditor) Option {
	return func(c *config) {
		c.auditor = a
	}
}

// WithStmtCacheCapacity sets the number of prepared statements kept per
// repository. Ignored when WithStmtCache is also given.
func WithStmtCacheCapacity(capacity int) Option {
	return func(c *config) {
		c.stmtCapacity = capacity
	}
}

// WithStmtCache shares one statement cache between repositories on the same
// *sql.DB.
func WithStmtCache(sc *cache.StmtCache) Option {
	return func(c *config) {
		c.stmtCache = sc
	}
}
