package core

import (
	"strconv"
	"strings"

	"github.com/coregx/quickdao/internal/dialects"
	"github.com/coregx/quickdao/internal/logger"
	"github.com/coregx/quickdao/internal/util"
)

// Generator renders SQL statements for entities described by EntityMeta.
// A Generator holds no per-call state and is safe for concurrent use.
type Generator struct {
	idents       IdentifierWrapper
	placeholders PlaceholderWrapper
	logger       logger.Logger
}

// Option is a functional option for configuring a Generator.
type Option func(*Generator)

// WithLogger sets the logger used to report generated statements.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a Generator. nil wrappers default to NoQuote and Colon.
func NewGenerator(idents IdentifierWrapper, placeholders PlaceholderWrapper, opts ...Option) *Generator {
	if idents == nil {
		idents = NoQuote
	}
	if placeholders == nil {
		placeholders = Colon
	}
	g := &Generator{
		idents:       idents,
		placeholders: placeholders,
		logger:       &logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewDialectGenerator creates a Generator that quotes identifiers and renders
// positional placeholders the way driverName expects.
func NewDialectGenerator(driverName string, opts ...Option) (*Generator, error) {
	d, ok := dialects.LookupDialect(driverName)
	if !ok {
		return nil, WrapError(ErrUnsupportedDialect, driverName)
	}
	return NewGenerator(QuoteWith(d), Positional(d), opts...), nil
}

// IdentifierWrapper returns the identifier wrapper in use.
func (g *Generator) IdentifierWrapper() IdentifierWrapper {
	return g.idents
}

// PlaceholderWrapper returns the placeholder wrapper in use.
func (g *Generator) PlaceholderWrapper() PlaceholderWrapper {
	return g.placeholders
}

func (g *Generator) renderer(meta *EntityMeta) *renderer {
	return newRenderer(meta, g.idents, g.placeholders)
}

func (g *Generator) done(op string, meta *EntityMeta, stmt *Statement) *Statement {
	g.logger.Debug("sql generated",
		"operation", op,
		"table", meta.Table(),
		"sql", stmt.SQL,
		"params", len(stmt.Params),
	)
	return stmt
}

func (g *Generator) columns(fields []Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = g.idents.Wrap(f.Column)
	}
	return strings.Join(cols, ", ")
}

// Insert renders an INSERT of every non-identity field.
//
//	INSERT INTO "user" ( "name", "age" ) VALUES ( :name, :age )
func (g *Generator) Insert(meta *EntityMeta) (*Statement, error) {
	fields := meta.FieldsWithoutID()
	if len(fields) == 0 {
		return nil, WrapError(ErrEmptyClause, "entity "+meta.Table()+" has no insertable fields")
	}
	r := g.renderer(meta)
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = r.field(f)
	}
	sql := "INSERT INTO " + g.idents.Wrap(meta.Table()) +
		" ( " + g.columns(fields) + " ) VALUES ( " + strings.Join(values, ", ") + " )"
	return g.done("insert", meta, r.statement(sql)), nil
}

// BatchInsert renders a multi-row INSERT of batchSize rows. Placeholders of
// the same field differ across rows: :name_0, :name_1, ...
func (g *Generator) BatchInsert(meta *EntityMeta, batchSize int) (*Statement, error) {
	if batchSize < 1 {
		return nil, WrapError(ErrEmptyClause, "batch size must be positive, got "+strconv.Itoa(batchSize))
	}
	fields := meta.FieldsWithoutID()
	if len(fields) == 0 {
		return nil, WrapError(ErrEmptyClause, "entity "+meta.Table()+" has no insertable fields")
	}
	r := g.renderer(meta)
	rows := make([]string, batchSize)
	values := make([]string, len(fields))
	for row := range rows {
		for i, f := range fields {
			values[i] = r.row(row, f)
		}
		rows[row] = "( " + strings.Join(values, ", ") + " )"
	}
	sql := "INSERT INTO " + g.idents.Wrap(meta.Table()) +
		" ( " + g.columns(fields) + " ) VALUES " + strings.Join(rows, ", ")
	return g.done("batch_insert", meta, r.statement(sql)), nil
}

// Update renders an UPDATE of every non-identity field, keyed by identity.
//
//	UPDATE "user" SET "name" = :name, "age" = :age WHERE "id" = :id
func (g *Generator) Update(meta *EntityMeta) (*Statement, error) {
	return g.update("update", meta, meta.FieldsWithoutID())
}

// UpdateSelective renders an UPDATE of the non-identity fields whose value in
// entity is not null. entity is a struct, a pointer to one, or a
// map[string]interface{} keyed by field name.
func (g *Generator) UpdateSelective(meta *EntityMeta, entity interface{}) (*Statement, error) {
	all := meta.FieldsWithoutID()
	fields := make([]Field, 0, len(all))
	for _, f := range all {
		v, err := meta.FieldValue(entity, f)
		if err != nil {
			return nil, err
		}
		if !util.IsNull(v) {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil, WrapError(ErrEmptyClause, "no non-null field to update in "+meta.Table())
	}
	return g.update("update_selective", meta, fields)
}

func (g *Generator) update(op string, meta *EntityMeta, fields []Field) (*Statement, error) {
	if len(fields) == 0 {
		return nil, WrapError(ErrEmptyClause, "entity "+meta.Table()+" has no updatable fields")
	}
	r := g.renderer(meta)
	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = g.idents.Wrap(f.Column) + " = " + r.field(f)
	}
	id := meta.IDField()
	sql := "UPDATE " + g.idents.Wrap(meta.Table()) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + g.idents.Wrap(id.Column) + " = " + r.field(id)
	return g.done(op, meta, r.statement(sql)), nil
}

// DeleteByID renders a DELETE keyed by identity.
func (g *Generator) DeleteByID(meta *EntityMeta) (*Statement, error) {
	r := g.renderer(meta)
	id := meta.IDField()
	sql := "DELETE FROM " + g.idents.Wrap(meta.Table()) +
		" WHERE " + g.idents.Wrap(id.Column) + " = " + r.field(id)
	return g.done("delete", meta, r.statement(sql)), nil
}

// DeleteByCriteria renders a DELETE filtered by criteria. Empty criteria
// render a DELETE without WHERE, which removes every row.
func (g *Generator) DeleteByCriteria(meta *EntityMeta, src CriteriaSource) (*Statement, error) {
	var c *Criteria
	if src != nil {
		c = src.Criteria()
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	r := g.renderer(meta)
	sql := "DELETE FROM " + g.idents.Wrap(meta.Table())
	where, err := g.where(r, " WHERE ", c)
	if err != nil {
		return nil, err
	}
	if where == "" {
		g.logger.Warn("delete without criteria affects every row", "table", meta.Table())
	}
	return g.done("delete_by_criteria", meta, r.statement(sql+where)), nil
}

// GetByID renders a SELECT of every field keyed by identity.
func (g *Generator) GetByID(meta *EntityMeta) (*Statement, error) {
	r := g.renderer(meta)
	id := meta.IDField()
	sql := "SELECT " + strings.Join(meta.SelectStmts(g.idents), ", ") +
		" FROM " + g.idents.Wrap(meta.Table()) +
		" WHERE " + g.idents.Wrap(id.Column) + " = " + r.field(id)
	return g.done("get_by_id", meta, r.statement(sql)), nil
}

// List renders a SELECT described by the query.
//
//	SELECT ... FROM "user" WHERE ( "name" = :name ) ORDER BY "age" desc LIMIT 10 OFFSET 0
func (g *Generator) List(meta *EntityMeta, src QuerySource) (*Statement, error) {
	q := queryOf(src)
	if err := q.Err(); err != nil {
		return nil, err
	}
	r := g.renderer(meta)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(g.selectList(r, q))
	sb.WriteString(" FROM ")
	sb.WriteString(g.idents.Wrap(meta.Table()))
	if err := g.filter(r, &sb, q, true); err != nil {
		return nil, err
	}

	if len(q.orders) > 0 {
		orders := make([]string, len(q.orders))
		for i, o := range q.orders {
			orders[i] = r.column(o.Name) + " " + o.Direction.String()
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	}
	if offset, limit := q.Bounds(); limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(limit))
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(offset))
	}
	return g.done("list", meta, r.statement(sb.String())), nil
}

// Count renders a SELECT COUNT(*) with the query's filters. Ordering and
// paging are ignored. Grouped queries count groups; without GROUP BY the
// HAVING criteria are ignored too, so the statement always yields one row.
func (g *Generator) Count(meta *EntityMeta, src QuerySource) (*Statement, error) {
	q := queryOf(src)
	if err := q.Err(); err != nil {
		return nil, err
	}
	r := g.renderer(meta)

	var sb strings.Builder
	grouped := len(q.groupBy) > 0
	if grouped {
		sb.WriteString("SELECT COUNT(*) FROM ( SELECT 1 FROM ")
	} else {
		sb.WriteString("SELECT COUNT(*) FROM ")
	}
	sb.WriteString(g.idents.Wrap(meta.Table()))
	if err := g.filter(r, &sb, q, grouped); err != nil {
		return nil, err
	}
	if grouped {
		sb.WriteString(" ) result")
	}
	return g.done("count", meta, r.statement(sb.String())), nil
}

func queryOf(src QuerySource) *Query {
	if src == nil {
		return NewQuery()
	}
	if q := src.Query(); q != nil {
		return q
	}
	return NewQuery()
}

func (g *Generator) selectList(r *renderer, q *Query) string {
	if len(q.selects) == 0 {
		return strings.Join(r.meta.SelectStmts(g.idents), ", ")
	}
	stmts := make([]string, len(q.selects))
	for i, s := range q.selects {
		if f, ok := r.meta.Field(s.Expr); ok {
			stmt := g.idents.Wrap(f.Column)
			switch {
			case s.Alias != "":
				stmt += " AS " + g.idents.Wrap(s.Alias)
			case f.Column != f.Name:
				stmt += " AS " + g.idents.Wrap(f.Name)
			}
			stmts[i] = stmt
			continue
		}
		stmt := s.Expr
		if s.Alias != "" {
			stmt += " AS " + g.idents.Wrap(s.Alias)
		}
		stmts[i] = stmt
	}
	return strings.Join(stmts, ", ")
}

// filter writes WHERE and, when grouping is set, GROUP BY and HAVING.
func (g *Generator) filter(r *renderer, sb *strings.Builder, q *Query, grouping bool) error {
	where, err := g.where(r, " WHERE ", q.where)
	if err != nil {
		return err
	}
	sb.WriteString(where)
	if !grouping {
		return nil
	}

	if len(q.groupBy) > 0 {
		groups := make([]string, len(q.groupBy))
		for i, name := range q.groupBy {
			groups[i] = r.column(name)
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groups, ", "))
	}

	having, err := g.where(r, " HAVING ", q.having)
	if err != nil {
		return err
	}
	sb.WriteString(having)
	return nil
}

func (g *Generator) where(r *renderer, keyword string, c *Criteria) (string, error) {
	if c.IsEmpty() {
		return "", nil
	}
	s, terms, err := c.render(r)
	if err != nil {
		return "", err
	}
	if terms == 0 {
		return "", nil
	}
	return keyword + s, nil
}
