package core

import (
	"strconv"

	"github.com/coregx/quickdao/internal/util"
)

// Param is one placeholder of a generated statement.
type Param struct {
	// Name is the field name, or the derived name of a criterion operand.
	Name string
	// Row is the batch row index when Batch is true.
	Row   int
	Batch bool
	// Bound is true when Value was known at generation time (criteria operands).
	Bound bool
	Value interface{}
}

// Key returns the bind name: Name, or name_<row> for batch rows.
func (p Param) Key() string {
	if p.Batch {
		return RowParamName(p.Row, p.Name)
	}
	return p.Name
}

// Statement is generated SQL plus its placeholders in order of appearance.
type Statement struct {
	SQL    string
	Params []Param
}

// String returns the SQL text.
func (s *Statement) String() string {
	return s.SQL
}

// Names returns the bind names in placeholder order.
func (s *Statement) Names() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Key()
	}
	return names
}

// Bound returns the values fixed at generation time, keyed by bind name.
func (s *Statement) Bound() map[string]interface{} {
	values := make(map[string]interface{})
	for _, p := range s.Params {
		if p.Bound {
			values[p.Key()] = p.Value
		}
	}
	return values
}

// ParamSource supplies values for placeholders not bound at generation time.
type ParamSource interface {
	Lookup(p Param) (interface{}, bool)
}

// Params is a ParamSource keyed by bind name (Param.Key).
//
// Example:
//
//	args, err := stmt.Args(quickdao.Params{"id": 1, "name": "Tom"})
type Params map[string]interface{}

// Lookup returns the value stored under p.Key().
func (ps Params) Lookup(p Param) (interface{}, bool) {
	v, ok := ps[p.Key()]
	return v, ok
}

// Args resolves every placeholder to a value, in placeholder order, ready for
// positional binding. Unbound placeholders are looked up in the sources, in
// order; a placeholder no source can supply yields ErrMissingParam.
func (s *Statement) Args(sources ...ParamSource) ([]interface{}, error) {
	values := make([]interface{}, len(s.Params))
	for i, p := range s.Params {
		if p.Bound {
			values[i] = p.Value
			continue
		}
		found := false
		for _, src := range sources {
			if src == nil {
				continue
			}
			if v, ok := src.Lookup(p); ok {
				values[i], found = v, true
				break
			}
		}
		if !found {
			return nil, WrapError(ErrMissingParam, p.Key())
		}
	}
	return values, nil
}

type entitySource struct {
	meta   *EntityMeta
	entity interface{}
}

// EntitySource reads non-batch placeholders from the fields of entity.
func EntitySource(meta *EntityMeta, entity interface{}) ParamSource {
	return entitySource{meta: meta, entity: entity}
}

func (s entitySource) Lookup(p Param) (interface{}, bool) {
	if p.Batch {
		return nil, false
	}
	f, ok := s.meta.Field(p.Name)
	if !ok {
		return nil, false
	}
	v, err := s.meta.FieldValue(s.entity, f)
	if err != nil {
		return nil, false
	}
	return v, true
}

type batchSource[T any] struct {
	meta *EntityMeta
	rows []T
}

// BatchSource reads batch placeholders from rows; placeholder row i reads rows[i].
func BatchSource[T any](meta *EntityMeta, rows []T) ParamSource {
	return batchSource[T]{meta: meta, rows: rows}
}

func (s batchSource[T]) Lookup(p Param) (interface{}, bool) {
	if !p.Batch || p.Row < 0 || p.Row >= len(s.rows) {
		return nil, false
	}
	f, ok := s.meta.Field(p.Name)
	if !ok {
		return nil, false
	}
	v, err := s.meta.FieldValue(s.rows[p.Row], f)
	if err != nil {
		return nil, false
	}
	return v, true
}

// renderer accumulates placeholders for one generation call.
type renderer struct {
	meta         *EntityMeta
	idents       IdentifierWrapper
	placeholders PlaceholderWrapper
	params       []Param
	// used counts names derived per base; taken holds every name emitted.
	used  map[string]int
	taken map[string]bool
}

func newRenderer(meta *EntityMeta, idents IdentifierWrapper, placeholders PlaceholderWrapper) *renderer {
	return &renderer{
		meta:         meta,
		idents:       idents,
		placeholders: placeholders,
		used:         make(map[string]int),
		taken:        make(map[string]bool),
	}
}

// column maps a field name to its quoted column, or returns it verbatim
// as a raw SQL expression.
func (r *renderer) column(name string) string {
	if col, ok := r.meta.ColumnNameByFieldName(name); ok {
		return r.idents.Wrap(col)
	}
	return name
}

// uniqueName derives a placeholder name from a field or expression:
// name, name__2, name__3, ... skipping names already emitted in the
// statement.
func (r *renderer) uniqueName(expr string) string {
	base := util.ParamName(expr)
	if f, ok := r.meta.Field(expr); ok {
		base = f.Name
	}
	for n := r.used[base] + 1; ; n++ {
		name := base
		if n > 1 {
			name = base + "__" + strconv.Itoa(n)
		}
		if !r.taken[name] {
			r.used[base] = n
			r.taken[name] = true
			return name
		}
	}
}

// bind adds a placeholder whose value is known now.
func (r *renderer) bind(expr string, value interface{}) string {
	r.params = append(r.params, Param{Name: r.uniqueName(expr), Bound: true, Value: value})
	return r.placeholders.Wrap(r.params[len(r.params)-1].Name, len(r.params))
}

// field adds a placeholder bound later from an entity field.
func (r *renderer) field(f Field) string {
	r.used[f.Name]++
	r.taken[f.Name] = true
	r.params = append(r.params, Param{Name: f.Name})
	return r.placeholders.Wrap(f.Name, len(r.params))
}

// row adds a placeholder bound later from field f of batch row row.
func (r *renderer) row(row int, f Field) string {
	r.params = append(r.params, Param{Name: f.Name, Row: row, Batch: true})
	return r.placeholders.WrapRow(row, f.Name, len(r.params))
}

func (r *renderer) statement(sql string) *Statement {
	return &Statement{SQL: sql, Params: r.params}
}
