package core

import (
	"strconv"
	"strings"
)

// GroupRelation tells how a nested Criteria combines with its parent.
type GroupRelation int

const (
	// AndGroup nests a group as one parenthesized AND term of the parent,
	// e.g. a AND (b OR c).
	AndGroup GroupRelation = iota + 1
	// OrGroup appends a group after the parent's own conditions as OR (…).
	OrGroup
)

// String returns "and" or "or".
func (r GroupRelation) String() string {
	switch r {
	case AndGroup:
		return "and"
	case OrGroup:
		return "or"
	}
	return "GroupRelation(" + strconv.Itoa(int(r)) + ")"
}

// NestedCriteria is a child group of a Criteria.
type NestedCriteria struct {
	Key      string
	Relation GroupRelation
	Criteria *Criteria
}

// Criteria is a named, ordered set of conditions joined by AND, plus nested
// groups. Sibling OR groups are OR'd with the parent's own conditions.
//
// Example:
//
//	c := NewCriteria().
//	    And("name").Eq("Tom").
//	    And("age").Ge(18).
//	    Or(func(o *Criteria) { o.And("vip").Eq(true) })
//
// Renders: ( "name" = :name AND "age" >= :age ) OR ( "vip" = :vip )
//
// A Criteria is built by one owner and read-only while SQL is generated.
type Criteria struct {
	key        string
	criterions []Criterion
	nested     []NestedCriteria
	err        error
}

// NewCriteria creates an empty root criteria.
func NewCriteria() *Criteria {
	return &Criteria{}
}

// NewCriteriaWithKey creates an empty criteria with the given key.
func NewCriteriaWithKey(key string) *Criteria {
	return &Criteria{key: key}
}

// Key returns the criteria key; nested keys are prefixed with their parent's.
func (c *Criteria) Key() string {
	return c.key
}

// Criteria returns c, so *Criteria satisfies CriteriaSource.
func (c *Criteria) Criteria() *Criteria {
	return c
}

// And starts a condition on a field name or raw SQL expression.
// Names that are not entity fields are rendered verbatim.
func (c *Criteria) And(name string) *Condition[*Criteria] {
	return &Condition[*Criteria]{parent: c, target: c, name: name}
}

// Add appends prebuilt criterions.
func (c *Criteria) Add(criterions ...Criterion) *Criteria {
	c.criterions = append(c.criterions, criterions...)
	return c
}

// Or adds a sibling group that is OR'd with this group's conditions.
func (c *Criteria) Or(fn func(*Criteria)) *Criteria {
	fn(c.nest(OrGroup))
	return c
}

// AndGroup adds a parenthesized group AND'ed with this group's conditions.
func (c *Criteria) AndGroup(fn func(*Criteria)) *Criteria {
	fn(c.nest(AndGroup))
	return c
}

func (c *Criteria) nest(relation GroupRelation) *Criteria {
	return c.Nest(c.childKey(relation.String()+strconv.Itoa(len(c.nested))), relation)
}

func (c *Criteria) childKey(suffix string) string {
	if c.key == "" {
		return suffix
	}
	return c.key + "." + suffix
}

// Nest returns the nested group stored under key, creating it with the given
// relation when missing. An existing group keeps its original relation.
func (c *Criteria) Nest(key string, relation GroupRelation) *Criteria {
	for _, n := range c.nested {
		if n.Key == key {
			return n.Criteria
		}
	}
	child := &Criteria{key: key}
	c.nested = append(c.nested, NestedCriteria{Key: key, Relation: relation, Criteria: child})
	return child
}

// Criterions returns this group's own conditions.
func (c *Criteria) Criterions() []Criterion {
	out := make([]Criterion, len(c.criterions))
	copy(out, c.criterions)
	return out
}

// Nested returns the nested groups in insertion order.
func (c *Criteria) Nested() []NestedCriteria {
	out := make([]NestedCriteria, len(c.nested))
	copy(out, c.nested)
	return out
}

// IsEmpty reports whether the criteria renders nothing: no own conditions
// and no non-empty nested group.
func (c *Criteria) IsEmpty() bool {
	if c == nil {
		return true
	}
	if len(c.criterions) > 0 {
		return false
	}
	for _, n := range c.nested {
		if !n.Criteria.IsEmpty() {
			return false
		}
	}
	return true
}

// Err returns the first error recorded while building this criteria or any
// nested group.
func (c *Criteria) Err() error {
	if c == nil {
		return nil
	}
	if c.err != nil {
		return c.err
	}
	for _, n := range c.nested {
		if err := n.Criteria.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Criteria) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// render returns the condition text and the number of OR-joined terms.
func (c *Criteria) render(r *renderer) (string, int, error) {
	ands := make([]string, 0, len(c.criterions))
	for _, cr := range c.criterions {
		s, err := cr.render(r)
		if err != nil {
			return "", 0, err
		}
		ands = append(ands, s)
	}
	for _, n := range c.nested {
		if n.Relation != AndGroup {
			continue
		}
		s, terms, err := n.Criteria.render(r)
		if err != nil {
			return "", 0, err
		}
		switch {
		case terms == 1:
			ands = append(ands, s)
		case terms > 1:
			ands = append(ands, "( "+s+" )")
		}
	}

	var parts []string
	if len(ands) > 0 {
		parts = append(parts, "( "+strings.Join(ands, " AND ")+" )")
	}
	for _, n := range c.nested {
		if n.Relation != OrGroup {
			continue
		}
		s, terms, err := n.Criteria.render(r)
		if err != nil {
			return "", 0, err
		}
		if terms > 0 {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " OR "), len(parts), nil
}

// Condition is the pending half of a criterion: the field is known, the
// operator call completes it and returns the owning builder.
type Condition[P any] struct {
	parent P
	target *Criteria
	name   string
}

func (c *Condition[P]) add(op Operator, v Value) P {
	// target is nil when the field could not be resolved; the error is
	// already recorded on the owning criteria.
	if c.target != nil {
		c.target.criterions = append(c.target.criterions, NewCriterion(c.name, op, v))
	}
	return c.parent
}

// Eq adds "= value"; a nil value renders IS NULL.
func (c *Condition[P]) Eq(v interface{}) P { return c.add(Eq, Scalar(v)) }

// Ne adds "<> value"; a nil value renders IS NOT NULL.
func (c *Condition[P]) Ne(v interface{}) P { return c.add(Ne, Scalar(v)) }

// Gt adds "> value".
func (c *Condition[P]) Gt(v interface{}) P { return c.add(Gt, Scalar(v)) }

// Ge adds ">= value".
func (c *Condition[P]) Ge(v interface{}) P { return c.add(Ge, Scalar(v)) }

// Lt adds "< value".
func (c *Condition[P]) Lt(v interface{}) P { return c.add(Lt, Scalar(v)) }

// Le adds "<= value".
func (c *Condition[P]) Le(v interface{}) P { return c.add(Le, Scalar(v)) }

// Like adds "LIKE pattern" with a caller-supplied pattern.
func (c *Condition[P]) Like(pattern string) P { return c.add(Like, Scalar(pattern)) }

// NotLike adds "NOT LIKE pattern".
func (c *Condition[P]) NotLike(pattern string) P { return c.add(NotLike, Scalar(pattern)) }

// Contain adds "LIKE %value%".
func (c *Condition[P]) Contain(v interface{}) P { return c.add(Contain, Scalar(v)) }

// NotContain adds "NOT LIKE %value%".
func (c *Condition[P]) NotContain(v interface{}) P { return c.add(NotContain, Scalar(v)) }

// StartWith adds "LIKE value%".
func (c *Condition[P]) StartWith(v interface{}) P { return c.add(StartWith, Scalar(v)) }

// NotStartWith adds "NOT LIKE value%".
func (c *Condition[P]) NotStartWith(v interface{}) P { return c.add(NotStartWith, Scalar(v)) }

// EndWith adds "LIKE %value".
func (c *Condition[P]) EndWith(v interface{}) P { return c.add(EndWith, Scalar(v)) }

// NotEndWith adds "NOT LIKE %value".
func (c *Condition[P]) NotEndWith(v interface{}) P { return c.add(NotEndWith, Scalar(v)) }

// In adds "IN ( … )". A single slice or array argument is unpacked.
func (c *Condition[P]) In(vs ...interface{}) P { return c.add(In, sequenceArgs(vs)) }

// NotIn adds "NOT IN ( … )". A single slice or array argument is unpacked.
func (c *Condition[P]) NotIn(vs ...interface{}) P { return c.add(NotIn, sequenceArgs(vs)) }

// Between adds "BETWEEN from AND to".
func (c *Condition[P]) Between(from, to interface{}) P { return c.add(Between, Sequence(from, to)) }

// NotBetween adds "NOT BETWEEN from AND to".
func (c *Condition[P]) NotBetween(from, to interface{}) P {
	return c.add(NotBetween, Sequence(from, to))
}

// IsNull adds "IS NULL".
func (c *Condition[P]) IsNull() P { return c.add(IsNull, Value{}) }

// IsNotNull adds "IS NOT NULL".
func (c *Condition[P]) IsNotNull() P { return c.add(IsNotNull, Value{}) }

// Op adds a condition with an explicit operator and operand.
func (c *Condition[P]) Op(op Operator, v Value) P { return c.add(op, v) }

// walk calls fn with every criterion name, depth first.
func (c *Criteria) walk(fn func(name string)) {
	if c == nil {
		return
	}
	for _, cr := range c.criterions {
		fn(cr.Name)
	}
	for _, n := range c.nested {
		n.Criteria.walk(fn)
	}
}

// RawCriteriaExpressions returns the criterion names of c that meta does not
// map to a field.
func RawCriteriaExpressions(meta *EntityMeta, src CriteriaSource) []string {
	if src == nil {
		return nil
	}
	var raw []string
	src.Criteria().walk(func(name string) {
		if _, ok := meta.ColumnNameByFieldName(name); !ok {
			raw = append(raw, name)
		}
	})
	return raw
}
