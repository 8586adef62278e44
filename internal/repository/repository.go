// Package repository executes generated statements over database/sql.
//
// A Repository[T] pairs the metadata of one entity type with a Generator
// configured for the database dialect, binds values positionally and scans
// rows back into T by column name.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/coregx/quickdao/internal/cache"
	"github.com/coregx/quickdao/internal/core"
	"github.com/coregx/quickdao/internal/dialects"
	"github.com/coregx/quickdao/internal/logger"
	"github.com/coregx/quickdao/internal/security"
	"github.com/coregx/quickdao/internal/tracer"
)

// Repository runs CRUD and query operations for entity type T.
// It is safe for concurrent use.
type Repository[T any] struct {
	db        *sql.DB
	dialect   dialects.Dialect
	meta      *core.EntityMeta
	gen       *core.Generator
	resolver  core.FieldResolver[T]
	logger    logger.Logger
	sanitizer *logger.Sanitizer
	tracer    tracer.Tracer
	validator *security.Validator
	auditor   *security.Auditor
	stmts     *cache.StmtCache
}

// New creates a repository for T on db. driverName selects the dialect
// (postgres, mysql, sqlite, ...).
func New[T any](db *sql.DB, driverName string, opts ...Option) (*Repository[T], error) {
	d, ok := dialects.LookupDialect(driverName)
	if !ok {
		return nil, core.WrapError(core.ErrUnsupportedDialect, driverName)
	}
	meta, err := core.MetaOf[T]()
	if err != nil {
		return nil, err
	}
	resolver, err := core.ResolverOf[T]()
	if err != nil {
		return nil, err
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sanitizer == nil {
		cfg.sanitizer = logger.NewSanitizer(nil)
	}
	if cfg.tracer == nil {
		cfg.tracer = &tracer.NoopTracer{}
	}
	if cfg.stmtCache == nil {
		cfg.stmtCache = cache.NewStmtCache(cfg.stmtCapacity)
	}
	l := logger.OrNoop(cfg.logger)

	return &Repository[T]{
		db:        db,
		dialect:   d,
		meta:      meta,
		gen:       core.NewGenerator(core.QuoteWith(d), core.Positional(d), core.WithLogger(l)),
		resolver:  resolver,
		logger:    l,
		sanitizer: cfg.sanitizer,
		tracer:    cfg.tracer,
		validator: cfg.validator,
		auditor:   cfg.auditor,
		stmts:     cfg.stmtCache,
	}, nil
}

// Meta returns the entity metadata.
func (r *Repository[T]) Meta() *core.EntityMeta {
	return r.meta
}

// Generator returns the dialect-configured generator.
func (r *Repository[T]) Generator() *core.Generator {
	return r.gen
}

// Query starts a typed query for T.
func (r *Repository[T]) Query() *core.TypedQuery[T] {
	return core.NewTypedQuery[T](r.resolver)
}

// Criteria starts typed criteria for T.
func (r *Repository[T]) Criteria() *core.TypedCriteria[T] {
	return core.NewTypedCriteria[T](r.resolver)
}

// StmtCacheStats returns prepared statement cache metrics.
func (r *Repository[T]) StmtCacheStats() cache.Stats {
	return r.stmts.Stats()
}

// Close releases the cached prepared statements. The *sql.DB stays open.
func (r *Repository[T]) Close() {
	r.stmts.Clear()
}

// Insert inserts entity. When its id is zero and the driver reports
// LastInsertId, the generated id is stored back into entity.
func (r *Repository[T]) Insert(ctx context.Context, entity *T) error {
	stmt, err := r.gen.Insert(r.meta)
	if err != nil {
		return err
	}
	_, zero, err := r.meta.IDValue(entity)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, "insert", stmt, core.EntitySource(r.meta, entity))
	if err != nil {
		return err
	}
	if !zero {
		return nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		// lib/pq does not support LastInsertId.
		r.logger.Debug("generated id not available", "table", r.meta.Table(), "error", err)
		return nil
	}
	return r.meta.SetID(entity, id)
}

// BatchInsert inserts all entities with one multi-row statement and returns
// the number of rows inserted. An empty slice is a no-op.
func (r *Repository[T]) BatchInsert(ctx context.Context, entities []T) (int64, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	stmt, err := r.gen.BatchInsert(r.meta, len(entities))
	if err != nil {
		return 0, err
	}
	res, err := r.exec(ctx, "batch_insert", stmt, core.BatchSource(r.meta, entities))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Update writes every non-id field of entity and returns rows affected.
func (r *Repository[T]) Update(ctx context.Context, entity *T) (int64, error) {
	stmt, err := r.gen.Update(r.meta)
	if err != nil {
		return 0, err
	}
	return r.execAffected(ctx, "update", stmt, core.EntitySource(r.meta, entity))
}

// UpdateSelective writes the non-id fields of entity that are not null.
func (r *Repository[T]) UpdateSelective(ctx context.Context, entity *T) (int64, error) {
	stmt, err := r.gen.UpdateSelective(r.meta, entity)
	if err != nil {
		return 0, err
	}
	return r.execAffected(ctx, "update_selective", stmt, core.EntitySource(r.meta, entity))
}

// DeleteByID deletes the row with the given id.
func (r *Repository[T]) DeleteByID(ctx context.Context, id interface{}) (int64, error) {
	stmt, err := r.gen.DeleteByID(r.meta)
	if err != nil {
		return 0, err
	}
	return r.execAffected(ctx, "delete", stmt, core.Params{r.meta.IDFieldName(): id})
}

// Delete deletes the rows matching c. Empty criteria delete every row.
func (r *Repository[T]) Delete(ctx context.Context, c core.CriteriaSource) (int64, error) {
	if err := r.validateFragments(ctx, "delete_by_criteria", core.RawCriteriaExpressions(r.meta, c)); err != nil {
		return 0, err
	}
	stmt, err := r.gen.DeleteByCriteria(r.meta, c)
	if err != nil {
		return 0, err
	}
	return r.execAffected(ctx, "delete_by_criteria", stmt)
}

// GetByID loads the row with the given id. A missing row yields core.ErrNoRows.
func (r *Repository[T]) GetByID(ctx context.Context, id interface{}) (*T, error) {
	stmt, err := r.gen.GetByID(r.meta)
	if err != nil {
		return nil, err
	}
	items, err := r.query(ctx, "get_by_id", stmt, core.Params{r.meta.IDFieldName(): id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, core.WrapError(core.ErrNoRows, r.meta.Table())
	}
	return &items[0], nil
}

// List loads the rows described by q. A nil q lists every row.
func (r *Repository[T]) List(ctx context.Context, q core.QuerySource) ([]T, error) {
	if err := r.validateFragments(ctx, "list", core.RawExpressions(r.meta, q)); err != nil {
		return nil, err
	}
	stmt, err := r.gen.List(r.meta, q)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, "list", stmt)
}

// ListTyped is List for a typed query.
func (r *Repository[T]) ListTyped(ctx context.Context, q *core.TypedQuery[T]) ([]T, error) {
	if q == nil {
		return r.List(ctx, nil)
	}
	return r.List(ctx, q)
}

// Count counts the rows (or groups) described by q.
func (r *Repository[T]) Count(ctx context.Context, q core.QuerySource) (int64, error) {
	if err := r.validateFragments(ctx, "count", core.RawExpressions(r.meta, q)); err != nil {
		return 0, err
	}
	stmt, err := r.gen.Count(r.meta, q)
	if err != nil {
		return 0, err
	}

	var n int64
	err = r.run(ctx, "count", stmt, nil, func(ctx context.Context, ps *sql.Stmt, args []interface{}) (int64, error) {
		if err := ps.QueryRowContext(ctx, args...).Scan(&n); err != nil {
			return 0, err
		}
		return 1, nil
	})
	return n, err
}

// CountTyped is Count for a typed query.
func (r *Repository[T]) CountTyped(ctx context.Context, q *core.TypedQuery[T]) (int64, error) {
	if q == nil {
		return r.Count(ctx, nil)
	}
	return r.Count(ctx, q)
}

func (r *Repository[T]) validateFragments(ctx context.Context, op string, raw []string) error {
	if r.validator == nil {
		return nil
	}
	err := r.validator.ValidateFragments(raw)
	if err != nil {
		r.logger.Warn("statement rejected", "operation", op, "table", r.meta.Table(), "error", err)
		if r.auditor != nil {
			r.auditor.RecordRejected(ctx, op, r.meta.Table(), err)
		}
	}
	return err
}

func (r *Repository[T]) execAffected(ctx context.Context, op string, stmt *core.Statement, sources ...core.ParamSource) (int64, error) {
	res, err := r.exec(ctx, op, stmt, sources...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository[T]) exec(ctx context.Context, op string, stmt *core.Statement, sources ...core.ParamSource) (sql.Result, error) {
	var res sql.Result
	err := r.run(ctx, op, stmt, sources, func(ctx context.Context, ps *sql.Stmt, args []interface{}) (int64, error) {
		var err error
		res, err = ps.ExecContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		return n, nil
	})
	return res, err
}

func (r *Repository[T]) query(ctx context.Context, op string, stmt *core.Statement, sources ...core.ParamSource) ([]T, error) {
	var items []T
	err := r.run(ctx, op, stmt, sources, func(ctx context.Context, ps *sql.Stmt, args []interface{}) (int64, error) {
		rows, err := ps.QueryContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		items, err = scanAll[T](r.meta, rows)
		return int64(len(items)), err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

type runFunc func(ctx context.Context, ps *sql.Stmt, args []interface{}) (int64, error)

// run binds, prepares (through the cache) and executes stmt, with logging,
// tracing and auditing around fn.
func (r *Repository[T]) run(ctx context.Context, op string, stmt *core.Statement, sources []core.ParamSource, fn runFunc) error {
	args, err := stmt.Args(sources...)
	if err != nil {
		return err
	}
	if r.validator != nil {
		if err := r.validator.ValidateParams(boundValues(stmt)); err != nil {
			r.logger.Warn("statement rejected", "operation", op, "table", r.meta.Table(), "error", err)
			if r.auditor != nil {
				r.auditor.RecordRejected(ctx, op, r.meta.Table(), err)
			}
			return err
		}
	}

	ctx, span := r.tracer.StartSpan(ctx, tracer.SpanName(op))
	defer span.End()

	start := time.Now()
	var rows int64
	ps, err := r.stmts.Prepare(ctx, r.db, stmt.SQL)
	if err == nil {
		rows, err = fn(ctx, ps, args)
		if errors.Is(err, driver.ErrBadConn) {
			r.stmts.Invalidate(stmt.SQL)
		}
	}
	elapsed := time.Since(start)

	tracer.Record(span, &tracer.StatementInfo{
		Database:  r.dialect.Name(),
		Operation: op,
		Table:     r.meta.Table(),
		SQL:       stmt.SQL,
		Params:    len(args),
		Duration:  elapsed,
		Rows:      rows,
		Err:       err,
	})
	if r.auditor != nil {
		r.auditor.Record(ctx, security.AuditEvent{
			Operation: op,
			Verb:      tracer.Verb(stmt.SQL),
			Table:     r.meta.Table(),
			SQL:       stmt.SQL,
			Rows:      rows,
			Duration:  elapsed,
		}, args, err)
	}

	params := r.sanitizer.FormatParams(r.sanitizer.MaskNamed(stmt.Names(), args))
	if err != nil {
		r.logger.Error("sql failed",
			"operation", op,
			"sql", stmt.SQL,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return err
	}
	r.logger.Info("sql executed",
		"operation", op,
		"sql", stmt.SQL,
		"params", params,
		"rows", rows,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

func boundValues(stmt *core.Statement) []interface{} {
	var values []interface{}
	for _, p := range stmt.Params {
		if p.Bound {
			values = append(values, p.Value)
		}
	}
	return values
}
