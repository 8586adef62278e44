// Package quickdao turns composable descriptions of database operations into
// parameterized SQL for PostgreSQL, MySQL, and SQLite. It offers struct-tag
// entity metadata, nested AND/OR criteria, type-safe field accessors, and a
// database/sql repository with prepared statement caching and OpenTelemetry
// tracing.
package quickdao

import (
	"database/sql"

	"github.com/coregx/quickdao/internal/cache"
	"github.com/coregx/quickdao/internal/core"
	"github.com/coregx/quickdao/internal/logger"
	"github.com/coregx/quickdao/internal/repository"
	"github.com/coregx/quickdao/internal/security"
	"github.com/coregx/quickdao/internal/tracer"
)

type (
	// EntityMeta describes the table, identity field and fields of an entity.
	EntityMeta = core.EntityMeta
	// Field is one mapped entity field.
	Field = core.Field

	// Generator renders statements for an identifier and placeholder style.
	Generator = core.Generator
	// GeneratorOption is a functional option for configuring a Generator.
	GeneratorOption = core.Option
	// Statement is generated SQL plus its placeholders.
	Statement = core.Statement
	// Param is one placeholder of a Statement.
	Param = core.Param
	// Params supplies placeholder values by bind name.
	Params = core.Params
	// ParamSource supplies values for placeholders not bound at generation time.
	ParamSource = core.ParamSource

	// IdentifierWrapper quotes table and column names.
	IdentifierWrapper = core.IdentifierWrapper
	// PlaceholderWrapper renders bind-parameter markers.
	PlaceholderWrapper = core.PlaceholderWrapper

	// Criteria is a tree of conditions joined by AND and OR.
	Criteria = core.Criteria
	// Criterion is one condition: field or expression, operator and value.
	Criterion = core.Criterion
	// Operator is a criterion comparison.
	Operator = core.Operator
	// Value is a scalar or sequence operand.
	Value = core.Value
	// Query describes select list, criteria, grouping, order and page.
	Query = core.Query
	// Direction is an ORDER BY direction.
	Direction = core.Direction
	// QuerySource is implemented by *Query and *TypedQuery.
	QuerySource = core.QuerySource
	// CriteriaSource is implemented by *Criteria, *Query and *TypedCriteria.
	CriteriaSource = core.CriteriaSource

	// Accessor returns a pointer to a field of T.
	Accessor[T any] = core.Accessor[T]
	// TypedQuery is a Query built from accessors of T.
	TypedQuery[T any] = core.TypedQuery[T]
	// TypedCriteria is Criteria built from accessors of T.
	TypedCriteria[T any] = core.TypedCriteria[T]

	// Repository executes statements for entity type T over database/sql.
	Repository[T any] = repository.Repository[T]
	// RepositoryOption is a functional option for configuring a Repository.
	RepositoryOption = repository.Option
	// StmtCache is an LRU cache of prepared statements.
	StmtCache = cache.StmtCache
	// StmtCacheStats holds statement cache metrics.
	StmtCacheStats = cache.Stats

	// Logger is the logging interface used by the generator and repository.
	Logger = logger.Logger
	// Tracer starts a span per executed statement.
	Tracer = tracer.Tracer
	// Validator rejects raw SQL fragments and bound values that look like injection.
	Validator = security.Validator
	// Auditor writes an audit record per executed statement.
	Auditor = security.Auditor
	// AuditLevel selects which statements are audited.
	AuditLevel = security.AuditLevel
)

// Re-export errors.
var (
	ErrUnmappedField        = core.ErrUnmappedField
	ErrUnresolvableAccessor = core.ErrUnresolvableAccessor
	ErrEmptyClause          = core.ErrEmptyClause
	ErrInvalidOperand       = core.ErrInvalidOperand
	ErrMissingParam         = core.ErrMissingParam
	ErrInvalidModelType     = core.ErrInvalidModelType
	ErrUnsupportedDialect   = core.ErrUnsupportedDialect
	ErrNoRows               = core.ErrNoRows
	ErrDangerousSQL         = security.ErrDangerousSQL
)

// Re-export constructors, wrappers and options.
var (
	NewEntityMeta       = core.NewEntityMeta
	DeriveEntityMeta    = core.DeriveEntityMeta
	NewGenerator        = core.NewGenerator
	NewDialectGenerator = core.NewDialectGenerator
	WithLogger          = core.WithLogger
	NewCriteria         = core.NewCriteria
	NewQuery            = core.NewQuery
	NewCriterion        = core.NewCriterion
	ParseOperator       = core.ParseOperator
	ParseDirection      = core.ParseDirection
	Scalar              = core.Scalar
	Sequence            = core.Sequence
	SequenceOf          = core.SequenceOf
	EntitySource        = core.EntitySource
	QuoteWith           = core.QuoteWith
	Positional          = core.Positional

	NoQuote     = core.NoQuote
	Backtick    = core.Backtick
	DoubleQuote = core.DoubleQuote
	Colon       = core.Colon
	MyBatis     = core.MyBatis

	WithRepositoryLogger  = repository.WithLogger
	WithSensitiveFields   = repository.WithSensitiveFields
	WithTracer            = repository.WithTracer
	WithValidator         = repository.WithValidator
	WithAuditor           = repository.WithAuditor
	WithStmtCacheCapacity = repository.WithStmtCacheCapacity
	WithStmtCache         = repository.WithStmtCache

	NewStmtCache   = cache.NewStmtCache
	NewSlogAdapter = logger.NewSlogAdapter
	NewTextLogger  = logger.NewTextLogger
	NewOtelTracer  = tracer.NewOtelTracer
	NewValidator   = security.NewValidator
	WithStrict     = security.WithStrict
	NewAuditor     = security.NewAuditor
	WithUser       = security.WithUser
	WithRequestID  = security.WithRequestID
)

// Audit levels.
const (
	AuditNone   = security.AuditNone
	AuditWrites = security.AuditWrites
	AuditAll    = security.AuditAll
)

// Order directions.
const (
	Asc  = core.Asc
	Desc = core.Desc
)

// Operators.
const (
	Eq           = core.Eq
	Ne           = core.Ne
	Gt           = core.Gt
	Ge           = core.Ge
	Lt           = core.Lt
	Le           = core.Le
	Like         = core.Like
	NotLike      = core.NotLike
	Contain      = core.Contain
	NotContain   = core.NotContain
	StartWith    = core.StartWith
	NotStartWith = core.NotStartWith
	EndWith      = core.EndWith
	NotEndWith   = core.NotEndWith
	In           = core.In
	NotIn        = core.NotIn
	Between      = core.Between
	NotBetween   = core.NotBetween
	IsNull       = core.IsNull
	IsNotNull    = core.IsNotNull
)

// MetaOf returns the cached metadata derived from T's db tags.
func MetaOf[T any]() (*EntityMeta, error) {
	return core.MetaOf[T]()
}

// BatchSource supplies batch placeholders from rows.
func BatchSource[T any](meta *EntityMeta, rows []T) ParamSource {
	return core.BatchSource(meta, rows)
}

// NewTypedQuery starts a TypedQuery for T using the cached field resolver.
func NewTypedQuery[T any]() (*TypedQuery[T], error) {
	resolver, err := core.ResolverOf[T]()
	if err != nil {
		return nil, err
	}
	return core.NewTypedQuery[T](resolver), nil
}

// NewTypedCriteria starts TypedCriteria for T using the cached field resolver.
func NewTypedCriteria[T any]() (*TypedCriteria[T], error) {
	resolver, err := core.ResolverOf[T]()
	if err != nil {
		return nil, err
	}
	return core.NewTypedCriteria[T](resolver), nil
}

// NewRepository creates a Repository for T on db. driverName selects the
// dialect: postgres, pgx, mysql, sqlite or sqlite3.
//
// Example:
//
//	db, _ := sql.Open("postgres", dsn)
//	users, err := quickdao.NewRepository[User](db, "postgres")
//	u, err := users.GetByID(ctx, 1)
func NewRepository[T any](db *sql.DB, driverName string, opts ...RepositoryOption) (*Repository[T], error) {
	return repository.New[T](db, driverName, opts...)
}
