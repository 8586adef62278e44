package core

import "strings"

// Direction is an ORDER BY direction.
type Direction int

// Order directions.
const (
	Asc Direction = iota
	Desc
)

// String returns "asc" or "desc", the form rendered into ORDER BY.
func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection parses "asc" or "desc" (case-insensitive). Empty means Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return Asc, WrapError(ErrInvalidOperand, "unknown order direction "+s)
}

// Order is one ORDER BY entry: a field name or raw expression.
type Order struct {
	Name      string
	Direction Direction
}

// SelectStmt is one entry of an explicit select list.
type SelectStmt struct {
	// Expr is a field name or raw SQL expression.
	Expr string
	// Alias is rendered as "AS alias" when set.
	Alias string
}

// Query describes a SELECT: select list, WHERE criteria, GROUP BY, HAVING
// criteria, ORDER BY and LIMIT/OFFSET.
//
// Example:
//
//	q := NewQuery().
//	    WhereFunc(func(c *Criteria) {
//	        c.And("name").Eq("Tom").And("age").Ge(18)
//	    }).
//	    Desc("name").
//	    Limit(10)
//
// A Query is built by one owner; generation only reads it.
type Query struct {
	selects []SelectStmt
	where   *Criteria
	groupBy []string
	having  *Criteria
	orders  []Order
	offset  int
	limit   int
	err     error
}

// QuerySource is implemented by *Query and *TypedQuery.
type QuerySource interface {
	Query() *Query
}

// CriteriaSource is implemented by *Criteria, *Query (its WHERE criteria)
// and *TypedCriteria.
type CriteriaSource interface {
	Criteria() *Criteria
}

// NewQuery creates an empty query.
func NewQuery() *Query {
	return &Query{
		where:  NewCriteria(),
		having: NewCriteriaWithKey("having"),
	}
}

// Query returns q, so *Query satisfies QuerySource.
func (q *Query) Query() *Query {
	return q
}

// Select appends select entries: field names (rendered as their columns) or
// raw expressions.
func (q *Query) Select(fields ...string) *Query {
	for _, f := range fields {
		q.selects = append(q.selects, SelectStmt{Expr: f})
	}
	return q
}

// SelectAs appends a select entry with an alias.
func (q *Query) SelectAs(expr, alias string) *Query {
	q.selects = append(q.selects, SelectStmt{Expr: expr, Alias: alias})
	return q
}

// SelectStmts returns the explicit select list.
func (q *Query) SelectStmts() []SelectStmt {
	out := make([]SelectStmt, len(q.selects))
	copy(out, q.selects)
	return out
}

// Where replaces the WHERE criteria. nil resets it to empty.
func (q *Query) Where(c *Criteria) *Query {
	if c == nil {
		c = NewCriteria()
	}
	q.where = c
	return q
}

// WhereFunc edits the current WHERE criteria.
func (q *Query) WhereFunc(fn func(*Criteria)) *Query {
	fn(q.where)
	return q
}

// Criteria returns the current WHERE criteria.
func (q *Query) Criteria() *Criteria {
	return q.where
}

// GroupBy appends GROUP BY entries: field names or raw expressions.
func (q *Query) GroupBy(stmts ...string) *Query {
	q.groupBy = append(q.groupBy, stmts...)
	return q
}

// GroupByList returns the GROUP BY entries.
func (q *Query) GroupByList() []string {
	out := make([]string, len(q.groupBy))
	copy(out, q.groupBy)
	return out
}

// Having replaces the HAVING criteria. nil resets it to empty.
func (q *Query) Having(c *Criteria) *Query {
	if c == nil {
		c = NewCriteriaWithKey("having")
	}
	q.having = c
	return q
}

// HavingFunc edits the current HAVING criteria.
func (q *Query) HavingFunc(fn func(*Criteria)) *Query {
	fn(q.having)
	return q
}

// HavingCriteria returns the current HAVING criteria.
func (q *Query) HavingCriteria() *Criteria {
	return q.having
}

// OrderBy appends an ORDER BY entry.
func (q *Query) OrderBy(name string, dir Direction) *Query {
	q.orders = append(q.orders, Order{Name: name, Direction: dir})
	return q
}

// Asc appends ascending ORDER BY entries.
func (q *Query) Asc(names ...string) *Query {
	for _, n := range names {
		q.OrderBy(n, Asc)
	}
	return q
}

// Desc appends descending ORDER BY entries.
func (q *Query) Desc(names ...string) *Query {
	for _, n := range names {
		q.OrderBy(n, Desc)
	}
	return q
}

// Orders returns the ORDER BY entries.
func (q *Query) Orders() []Order {
	out := make([]Order, len(q.orders))
	copy(out, q.orders)
	return out
}

// Offset sets the row offset. Negative offsets render as 0.
func (q *Query) Offset(offset int) *Query {
	q.offset = offset
	return q
}

// Limit sets the row limit. limit <= 0 renders no LIMIT/OFFSET at all.
func (q *Query) Limit(limit int) *Query {
	q.limit = limit
	return q
}

// Page sets limit and offset for a 1-based page number.
func (q *Query) Page(page, size int) *Query {
	if page < 1 {
		page = 1
	}
	q.limit = size
	q.offset = (page - 1) * size
	return q
}

// Bounds returns the rendered offset and limit.
func (q *Query) Bounds() (offset, limit int) {
	offset = q.offset
	if offset < 0 {
		offset = 0
	}
	return offset, q.limit
}

// Err returns the first error recorded while building the query, its WHERE
// criteria or its HAVING criteria.
func (q *Query) Err() error {
	if q.err != nil {
		return q.err
	}
	if err := q.where.Err(); err != nil {
		return err
	}
	return q.having.Err()
}

func (q *Query) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// RawExpressions returns the entries of src that meta does not map to a field
// and that are therefore rendered verbatim: select expressions, criterion
// names of WHERE and HAVING, GROUP BY and ORDER BY entries.
func RawExpressions(meta *EntityMeta, src QuerySource) []string {
	q := queryOf(src)
	var raw []string
	add := func(expr string) {
		if _, ok := meta.ColumnNameByFieldName(expr); !ok {
			raw = append(raw, expr)
		}
	}
	for _, s := range q.selects {
		add(s.Expr)
	}
	q.where.walk(add)
	for _, g := range q.groupBy {
		add(g)
	}
	q.having.walk(add)
	for _, o := range q.orders {
		add(o.Name)
	}
	return raw
}
