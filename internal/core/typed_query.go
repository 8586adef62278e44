package core

import (
	"fmt"
	"reflect"
	"sync"
)

// Accessor selects a field of T by returning a pointer to it.
//
// Example:
//
//	func(u *User) any { return &u.Name }
type Accessor[T any] func(*T) any

// FieldResolver maps an accessor to the entity field name it selects.
type FieldResolver[T any] interface {
	ResolveField(acc Accessor[T]) (string, error)
}

// FieldResolverFunc adapts a function to FieldResolver.
type FieldResolverFunc[T any] func(Accessor[T]) (string, error)

// ResolveField calls f(acc).
func (f FieldResolverFunc[T]) ResolveField(acc Accessor[T]) (string, error) {
	return f(acc)
}

type fieldKey struct {
	offset uintptr
	typ    reflect.Type
}

// OffsetResolver resolves accessors by the address they return: the offset
// into a sample value of T, together with the field type, identifies the
// field. The registry is built once from the entity metadata.
type OffsetResolver[T any] struct {
	sample *T
	base   uintptr
	size   uintptr
	fields map[fieldKey]string
}

// NewFieldResolver builds the resolver for T from metadata derived from T.
func NewFieldResolver[T any](meta *EntityMeta) (*OffsetResolver[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if meta.Type() != t {
		return nil, WrapError(ErrInvalidModelType,
			fmt.Sprintf("metadata of %v cannot resolve accessors of %v", meta.Type(), t))
	}

	r := &OffsetResolver[T]{
		sample: new(T),
		size:   t.Size(),
		fields: make(map[fieldKey]string, len(meta.fields)),
	}
	r.base = reflect.ValueOf(r.sample).Pointer()
	for _, f := range meta.fields {
		r.fields[fieldKey{offset: f.offset, typ: f.Type}] = f.Name
	}
	return r, nil
}

var resolverCache sync.Map // reflect.Type -> FieldResolver[T]

// ResolverOf returns the cached resolver for T, built from MetaOf[T].
func ResolverOf[T any]() (FieldResolver[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := resolverCache.Load(t); ok {
		return cached.(FieldResolver[T]), nil
	}
	meta, err := MetaOf[T]()
	if err != nil {
		return nil, err
	}
	r, err := NewFieldResolver[T](meta)
	if err != nil {
		return nil, err
	}
	actual, _ := resolverCache.LoadOrStore(t, FieldResolver[T](r))
	return actual.(FieldResolver[T]), nil
}

// ResolveField returns the field name selected by acc.
func (r *OffsetResolver[T]) ResolveField(acc Accessor[T]) (name string, err error) {
	if acc == nil {
		return "", WrapError(ErrUnresolvableAccessor, "nil accessor")
	}
	defer func() {
		if p := recover(); p != nil {
			name, err = "", WrapError(ErrUnresolvableAccessor, fmt.Sprintf("accessor panicked: %v", p))
		}
	}()

	rv := reflect.ValueOf(acc(r.sample))
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return "", WrapError(ErrUnresolvableAccessor, "accessor must return a pointer to a field")
	}
	addr := rv.Pointer()
	if addr < r.base || addr >= r.base+r.size {
		return "", WrapError(ErrUnresolvableAccessor, "accessor returned a pointer outside the entity")
	}
	name, ok := r.fields[fieldKey{offset: addr - r.base, typ: rv.Type().Elem()}]
	if !ok {
		return "", WrapError(ErrUnresolvableAccessor,
			fmt.Sprintf("no persisted field of type %v at offset %d", rv.Type().Elem(), addr-r.base))
	}
	return name, nil
}

// TypedCriteria mirrors Criteria with accessors in place of field names.
type TypedCriteria[T any] struct {
	criteria *Criteria
	resolver FieldResolver[T]
}

// NewTypedCriteria creates an empty typed criteria.
func NewTypedCriteria[T any](resolver FieldResolver[T]) *TypedCriteria[T] {
	return &TypedCriteria[T]{criteria: NewCriteria(), resolver: resolver}
}

// Criteria returns the underlying criteria.
func (c *TypedCriteria[T]) Criteria() *Criteria {
	return c.criteria
}

// And starts a condition on the field selected by acc. An unresolvable
// accessor records ErrUnresolvableAccessor and adds nothing.
func (c *TypedCriteria[T]) And(acc Accessor[T]) *Condition[*TypedCriteria[T]] {
	name, err := c.resolver.ResolveField(acc)
	if err != nil {
		c.criteria.fail(err)
		return &Condition[*TypedCriteria[T]]{parent: c}
	}
	return &Condition[*TypedCriteria[T]]{parent: c, target: c.criteria, name: name}
}

// AndRaw starts a condition on a field name or raw SQL expression.
func (c *TypedCriteria[T]) AndRaw(expr string) *Condition[*TypedCriteria[T]] {
	return &Condition[*TypedCriteria[T]]{parent: c, target: c.criteria, name: expr}
}

// Or adds a sibling group that is OR'd with this group's conditions.
func (c *TypedCriteria[T]) Or(fn func(*TypedCriteria[T])) *TypedCriteria[T] {
	fn(&TypedCriteria[T]{criteria: c.criteria.nest(OrGroup), resolver: c.resolver})
	return c
}

// AndGroup adds a parenthesized group AND'ed with this group's conditions.
func (c *TypedCriteria[T]) AndGroup(fn func(*TypedCriteria[T])) *TypedCriteria[T] {
	fn(&TypedCriteria[T]{criteria: c.criteria.nest(AndGroup), resolver: c.resolver})
	return c
}

// IsEmpty reports whether the criteria renders nothing.
func (c *TypedCriteria[T]) IsEmpty() bool {
	return c.criteria.IsEmpty()
}

// Err returns the first recorded error.
func (c *TypedCriteria[T]) Err() error {
	return c.criteria.Err()
}

// TypedQuery mirrors Query with accessors in place of field names.
// Accessors are resolved when the builder method is called; a failure is
// recorded and returned by Err and by every generator call, never replaced
// by a raw-expression interpretation.
//
// Example:
//
//	q := NewTypedQuery[User](resolver).
//	    WhereFunc(func(c *TypedCriteria[User]) {
//	        c.And(func(u *User) any { return &u.Name }).Eq("Tom")
//	    }).
//	    Desc(func(u *User) any { return &u.Age })
type TypedQuery[T any] struct {
	query    *Query
	resolver FieldResolver[T]
	where    *TypedCriteria[T]
	having   *TypedCriteria[T]
}

// NewTypedQuery creates an empty typed query.
func NewTypedQuery[T any](resolver FieldResolver[T]) *TypedQuery[T] {
	q := &TypedQuery[T]{
		query:    NewQuery(),
		resolver: resolver,
	}
	q.where = &TypedCriteria[T]{criteria: q.query.where, resolver: resolver}
	q.having = &TypedCriteria[T]{criteria: q.query.having, resolver: resolver}
	return q
}

// Query returns the underlying query.
func (q *TypedQuery[T]) Query() *Query {
	return q.query
}

// Err returns the first error recorded while building.
func (q *TypedQuery[T]) Err() error {
	return q.query.Err()
}

func (q *TypedQuery[T]) resolve(acc Accessor[T]) (string, bool) {
	name, err := q.resolver.ResolveField(acc)
	if err != nil {
		q.query.fail(err)
		return "", false
	}
	return name, true
}

// Select appends the fields selected by accs.
func (q *TypedQuery[T]) Select(accs ...Accessor[T]) *TypedQuery[T] {
	for _, acc := range accs {
		if name, ok := q.resolve(acc); ok {
			q.query.Select(name)
		}
	}
	return q
}

// SelectRaw appends field names or raw expressions.
func (q *TypedQuery[T]) SelectRaw(fields ...string) *TypedQuery[T] {
	q.query.Select(fields...)
	return q
}

// SelectAs appends a raw expression aliased to the field selected by alias.
func (q *TypedQuery[T]) SelectAs(expr string, alias Accessor[T]) *TypedQuery[T] {
	if name, ok := q.resolve(alias); ok {
		q.query.SelectAs(expr, name)
	}
	return q
}

// SelectExprAs appends a raw expression with a string alias.
func (q *TypedQuery[T]) SelectExprAs(expr, alias string) *TypedQuery[T] {
	q.query.SelectAs(expr, alias)
	return q
}

// Where replaces the WHERE criteria.
func (q *TypedQuery[T]) Where(c *TypedCriteria[T]) *TypedQuery[T] {
	if c == nil {
		c = NewTypedCriteria(q.resolver)
	}
	q.where = c
	q.query.Where(c.criteria)
	return q
}

// WhereFunc edits the current WHERE criteria.
func (q *TypedQuery[T]) WhereFunc(fn func(*TypedCriteria[T])) *TypedQuery[T] {
	fn(q.where)
	return q
}

// Criteria returns the current WHERE criteria.
func (q *TypedQuery[T]) Criteria() *TypedCriteria[T] {
	return q.where
}

// GroupBy appends the fields selected by accs to GROUP BY.
func (q *TypedQuery[T]) GroupBy(accs ...Accessor[T]) *TypedQuery[T] {
	for _, acc := range accs {
		if name, ok := q.resolve(acc); ok {
			q.query.GroupBy(name)
		}
	}
	return q
}

// GroupByRaw appends field names or raw expressions to GROUP BY.
func (q *TypedQuery[T]) GroupByRaw(stmts ...string) *TypedQuery[T] {
	q.query.GroupBy(stmts...)
	return q
}

// Having replaces the HAVING criteria.
func (q *TypedQuery[T]) Having(c *TypedCriteria[T]) *TypedQuery[T] {
	if c == nil {
		c = NewTypedCriteria(q.resolver)
	}
	q.having = c
	q.query.Having(c.criteria)
	return q
}

// HavingFunc edits the current HAVING criteria.
func (q *TypedQuery[T]) HavingFunc(fn func(*TypedCriteria[T])) *TypedQuery[T] {
	fn(q.having)
	return q
}

// HavingCriteria returns the current HAVING criteria.
func (q *TypedQuery[T]) HavingCriteria() *TypedCriteria[T] {
	return q.having
}

// OrderBy appends the field selected by acc to ORDER BY.
func (q *TypedQuery[T]) OrderBy(acc Accessor[T], dir Direction) *TypedQuery[T] {
	if name, ok := q.resolve(acc); ok {
		q.query.OrderBy(name, dir)
	}
	return q
}

// Asc appends ascending ORDER BY entries.
func (q *TypedQuery[T]) Asc(accs ...Accessor[T]) *TypedQuery[T] {
	for _, acc := range accs {
		q.OrderBy(acc, Asc)
	}
	return q
}

// Desc appends descending ORDER BY entries.
func (q *TypedQuery[T]) Desc(accs ...Accessor[T]) *TypedQuery[T] {
	for _, acc := range accs {
		q.OrderBy(acc, Desc)
	}
	return q
}

// OrderByRaw appends a field name or raw expression to ORDER BY.
func (q *TypedQuery[T]) OrderByRaw(expr string, dir Direction) *TypedQuery[T] {
	q.query.OrderBy(expr, dir)
	return q
}

// Offset sets the row offset.
func (q *TypedQuery[T]) Offset(offset int) *TypedQuery[T] {
	q.query.Offset(offset)
	return q
}

// Limit sets the row limit.
func (q *TypedQuery[T]) Limit(limit int) *TypedQuery[T] {
	q.query.Limit(limit)
	return q
}

// Page sets limit and offset for a 1-based page number.
func (q *TypedQuery[T]) Page(page, size int) *TypedQuery[T] {
	q.query.Page(page, size)
	return q
}
