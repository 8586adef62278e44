package core

import (
	"fmt"
	"reflect"
	"strings"
)

// Operator is a comparison operator of a Criterion.
type Operator int

// Supported operators. The SQL keyword of each is fixed; see Keyword.
const (
	Eq Operator = iota
	Ne
	Gt
	Ge
	Lt
	Le
	Like
	NotLike
	Contain
	NotContain
	StartWith
	NotStartWith
	EndWith
	NotEndWith
	In
	NotIn
	Between
	NotBetween
	IsNull
	IsNotNull
)

type operatorInfo struct {
	name    string
	keyword string
	arity   operandArity
}

type operandArity int

const (
	noOperand operandArity = iota
	scalarOperand
	sequenceOperand
)

var operators = [...]operatorInfo{
	Eq:           {"eq", "=", scalarOperand},
	Ne:           {"ne", "<>", scalarOperand},
	Gt:           {"gt", ">", scalarOperand},
	Ge:           {"ge", ">=", scalarOperand},
	Lt:           {"lt", "<", scalarOperand},
	Le:           {"le", "<=", scalarOperand},
	Like:         {"like", "LIKE", scalarOperand},
	NotLike:      {"not_like", "NOT LIKE", scalarOperand},
	Contain:      {"contain", "LIKE", scalarOperand},
	NotContain:   {"not_contain", "NOT LIKE", scalarOperand},
	StartWith:    {"start_with", "LIKE", scalarOperand},
	NotStartWith: {"not_start_with", "NOT LIKE", scalarOperand},
	EndWith:      {"end_with", "LIKE", scalarOperand},
	NotEndWith:   {"not_end_with", "NOT LIKE", scalarOperand},
	In:           {"in", "IN", sequenceOperand},
	NotIn:        {"not_in", "NOT IN", sequenceOperand},
	Between:      {"between", "BETWEEN", sequenceOperand},
	NotBetween:   {"not_between", "NOT BETWEEN", sequenceOperand},
	IsNull:       {"is_null", "IS NULL", noOperand},
	IsNotNull:    {"is_not_null", "IS NOT NULL", noOperand},
}

func (o Operator) valid() bool {
	return o >= 0 && int(o) < len(operators)
}

// String returns the snake_case operator name ("eq", "not_in", ...).
func (o Operator) String() string {
	if !o.valid() {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operators[o].name
}

// Keyword returns the SQL keyword rendered for the operator.
func (o Operator) Keyword() string {
	if !o.valid() {
		return ""
	}
	return operators[o].keyword
}

// ParseOperator parses an operator name as returned by String.
// Symbolic forms ("=", ">=", "!=", ...) are accepted too.
func ParseOperator(s string) (Operator, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "=", "==":
		return Eq, nil
	case "!=", "<>":
		return Ne, nil
	case ">":
		return Gt, nil
	case ">=":
		return Ge, nil
	case "<":
		return Lt, nil
	case "<=":
		return Le, nil
	}
	key = strings.ReplaceAll(key, " ", "_")
	for i, info := range operators {
		if info.name == key {
			return Operator(i), nil
		}
	}
	return 0, WrapError(ErrInvalidOperand, "unknown operator "+s)
}

// operand converts a scalar value into the value actually bound.
func (o Operator) operand(v interface{}) interface{} {
	switch o {
	case Contain, NotContain:
		return fmt.Sprintf("%%%v%%", v)
	case StartWith, NotStartWith:
		return fmt.Sprintf("%v%%", v)
	case EndWith, NotEndWith:
		return fmt.Sprintf("%%%v", v)
	}
	return v
}

// Value is a criterion operand, tagged as scalar or sequence when built.
type Value struct {
	items []interface{}
	seq   bool
}

// Scalar wraps a single operand value.
func Scalar(v interface{}) Value {
	return Value{items: []interface{}{v}}
}

// Sequence wraps an ordered list of operand values.
func Sequence(vs ...interface{}) Value {
	items := make([]interface{}, len(vs))
	copy(items, vs)
	return Value{items: items, seq: true}
}

// SequenceOf normalizes a slice or array into a sequence operand.
// Any other value becomes a one-element sequence.
func SequenceOf(list interface{}) Value {
	rv := reflect.ValueOf(list)
	if !isListValue(rv) {
		return Sequence(list)
	}
	items := make([]interface{}, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return Value{items: items, seq: true}
}

func isListValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice:
		// []byte binds as a single blob.
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

// sequenceArgs builds a sequence from variadic arguments, unpacking a single
// slice argument: In("id", []int{1, 2}) equals In("id", 1, 2).
func sequenceArgs(vs []interface{}) Value {
	if len(vs) == 1 && isListValue(reflect.ValueOf(vs[0])) {
		return SequenceOf(vs[0])
	}
	return Sequence(vs...)
}

// IsSequence reports whether the value is a sequence.
func (v Value) IsSequence() bool {
	return v.seq
}

// Values returns the operand values in order.
func (v Value) Values() []interface{} {
	out := make([]interface{}, len(v.items))
	copy(out, v.items)
	return out
}

// Criterion is one atomic condition: a field name or raw SQL expression,
// an operator and its operand.
type Criterion struct {
	Name     string
	Operator Operator
	Value    Value
}

// NewCriterion builds a criterion. Eq and Ne with a nil scalar become
// IsNull and IsNotNull.
func NewCriterion(name string, op Operator, value Value) Criterion {
	if !value.seq && len(value.items) == 1 && value.items[0] == nil {
		switch op {
		case Eq:
			op, value = IsNull, Value{}
		case Ne:
			op, value = IsNotNull, Value{}
		}
	}
	return Criterion{Name: name, Operator: op, Value: value}
}

// render writes "<column-or-raw> <op> <placeholder(s)>".
func (c Criterion) render(r *renderer) (string, error) {
	if !c.Operator.valid() {
		return "", WrapError(ErrInvalidOperand, c.Name+": "+c.Operator.String())
	}
	col := r.column(c.Name)
	info := operators[c.Operator]

	switch info.arity {
	case noOperand:
		return col + " " + info.keyword, nil

	case scalarOperand:
		if c.Value.seq || len(c.Value.items) != 1 {
			return "", WrapError(ErrInvalidOperand, c.Name+": "+info.name+" expects a single value")
		}
		return col + " " + info.keyword + " " + r.bind(c.Name, c.Operator.operand(c.Value.items[0])), nil
	}

	items := c.Value.items
	if c.Operator == Between || c.Operator == NotBetween {
		if len(items) != 2 {
			return "", WrapError(ErrInvalidOperand,
				fmt.Sprintf("%s: %s expects 2 values, got %d", c.Name, info.name, len(items)))
		}
		return col + " " + info.keyword + " " + r.bind(c.Name, items[0]) + " AND " + r.bind(c.Name, items[1]), nil
	}

	if len(items) == 0 {
		// IN () is always false, NOT IN () always true.
		if c.Operator == NotIn {
			return "1 = 1", nil
		}
		return "1 = 0", nil
	}
	placeholders := make([]string, len(items))
	for i, item := range items {
		placeholders[i] = r.bind(c.Name, item)
	}
	return col + " " + info.keyword + " ( " + strings.Join(placeholders, ", ") + " )", nil
}
