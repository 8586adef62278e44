package core

import (
	"database/sql/driver"
	"reflect"
	"sync"

	"github.com/coregx/quickdao/internal/util"
)

// Field describes one persisted field of an entity.
type Field struct {
	// Name is the logical field name used by queries and placeholders.
	Name string
	// Column is the database column. Defaults to Name.
	Column string
	// Type is the declared Go type, nil when unknown.
	Type reflect.Type
	// Nullable reports whether the field can hold NULL.
	Nullable bool

	index  []int
	offset uintptr
}

// EntityMeta is the static metadata of one entity type: table, fields in
// declaration order, field↔column mapping and the identity field.
// It is immutable after construction and safe for concurrent use.
type EntityMeta struct {
	typ     reflect.Type
	table   string
	id      int
	fields  []Field
	byName  map[string]int
	byInput map[string]int
}

// NewEntityMeta builds metadata supplied by an external collaborator.
// Field names and columns must be unique and idField must be one of fields.
func NewEntityMeta(table, idField string, fields ...Field) (*EntityMeta, error) {
	if table == "" {
		return nil, WrapError(ErrInvalidModelType, "entity table name is empty")
	}
	if len(fields) == 0 {
		return nil, WrapError(ErrInvalidModelType, "entity "+table+" declares no fields")
	}

	m := &EntityMeta{
		table:  table,
		id:     -1,
		fields: make([]Field, len(fields)),
		byName: make(map[string]int, len(fields)),
	}
	columns := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, WrapError(ErrInvalidModelType, "entity "+table+" has a field without name")
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		if _, dup := m.byName[f.Name]; dup {
			return nil, WrapError(ErrInvalidModelType, "entity "+table+" declares field "+f.Name+" twice")
		}
		if columns[f.Column] {
			return nil, WrapError(ErrInvalidModelType, "entity "+table+" maps column "+f.Column+" twice")
		}
		columns[f.Column] = true
		m.byName[f.Name] = i
		m.fields[i] = f
		if f.Name == idField {
			m.id = i
		}
	}
	if m.id < 0 {
		return nil, WrapError(ErrInvalidModelType, "entity "+table+" has no id field "+idField)
	}

	return m, nil
}

// DeriveEntityMeta builds metadata from a tagged struct (db:"column[,pk]").
func DeriveEntityMeta(model interface{}) (*EntityMeta, error) {
	info, err := util.ParseModel(model)
	if err != nil {
		return nil, WrapError(ErrInvalidModelType, err.Error())
	}

	fields := make([]Field, len(info.Fields))
	idField := ""
	for i, f := range info.Fields {
		fields[i] = Field{
			Name:     f.Name,
			Column:   f.Column,
			Type:     f.Type,
			Nullable: isNullableKind(f.Type),
			index:    f.Index,
			offset:   f.Offset,
		}
		if f.PK {
			idField = f.Name
		}
	}

	m, err := NewEntityMeta(info.Table, idField, fields...)
	if err != nil {
		return nil, err
	}
	m.typ = info.Type
	// Go field names are accepted as aliases of the logical names.
	m.byInput = make(map[string]int, len(info.Fields))
	for i, f := range info.Fields {
		m.byInput[f.GoName] = i
	}
	return m, nil
}

var (
	metaCache  sync.Map // reflect.Type -> *EntityMeta
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// MetaOf returns the cached metadata of T, deriving it on first use.
func MetaOf[T any]() (*EntityMeta, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := metaCache.Load(t); ok {
		return cached.(*EntityMeta), nil
	}
	m, err := DeriveEntityMeta(new(T))
	if err != nil {
		return nil, err
	}
	actual, _ := metaCache.LoadOrStore(t, m)
	return actual.(*EntityMeta), nil
}

// MustMetaOf is like MetaOf but panics on error. Intended for package-level
// variables initialized at startup.
func MustMetaOf[T any]() *EntityMeta {
	m, err := MetaOf[T]()
	if err != nil {
		panic(err)
	}
	return m
}

func isNullableKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return t.Implements(valuerType)
}

// Type returns the entity struct type, nil for manually built metadata.
func (m *EntityMeta) Type() reflect.Type {
	return m.typ
}

// Table returns the table name.
func (m *EntityMeta) Table() string {
	return m.table
}

// IDField returns the identity field.
func (m *EntityMeta) IDField() Field {
	return m.fields[m.id]
}

// IDFieldName returns the identity field name.
func (m *EntityMeta) IDFieldName() string {
	return m.fields[m.id].Name
}

// IDColumnName returns the identity column name.
func (m *EntityMeta) IDColumnName() string {
	return m.fields[m.id].Column
}

// Fields returns every field in declaration order.
func (m *EntityMeta) Fields() []Field {
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// FieldsWithoutID returns every non-identity field in declaration order.
// This is the column order of inserts and updates.
func (m *EntityMeta) FieldsWithoutID() []Field {
	out := make([]Field, 0, len(m.fields)-1)
	for i, f := range m.fields {
		if i != m.id {
			out = append(out, f)
		}
	}
	return out
}

// Field looks a field up by logical name (or Go name for derived metadata).
func (m *EntityMeta) Field(name string) (Field, bool) {
	i, ok := m.lookup(name)
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

func (m *EntityMeta) lookup(name string) (int, bool) {
	if i, ok := m.byName[name]; ok {
		return i, true
	}
	i, ok := m.byInput[name]
	return i, ok
}

// FieldByColumnOrName finds the field a result column refers to: a field
// name (as produced by SelectStmts aliases) or a column name.
func (m *EntityMeta) FieldByColumnOrName(name string) (Field, bool) {
	if f, ok := m.Field(name); ok {
		return f, true
	}
	for _, f := range m.fields {
		if f.Column == name {
			return f, true
		}
	}
	return Field{}, false
}

// ColumnNameByField returns the column of a field of this entity.
// A field belonging to another entity yields ErrUnmappedField.
func (m *EntityMeta) ColumnNameByField(f Field) (string, error) {
	i, ok := m.byName[f.Name]
	if !ok || m.fields[i].Column != f.Column {
		return "", WrapError(ErrUnmappedField, m.table+"."+f.Name)
	}
	return m.fields[i].Column, nil
}

// ColumnNamesByFields maps fields to their columns, preserving order.
func (m *EntityMeta) ColumnNamesByFields(fields []Field) ([]string, error) {
	columns := make([]string, len(fields))
	for i, f := range fields {
		col, err := m.ColumnNameByField(f)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}
	return columns, nil
}

// ColumnNameByFieldName returns the column mapped to name. ok is false when
// name is not a declared field; callers then treat name as a raw expression.
func (m *EntityMeta) ColumnNameByFieldName(name string) (column string, ok bool) {
	i, ok := m.lookup(name)
	if !ok {
		return "", false
	}
	return m.fields[i].Column, true
}

// SelectStmts returns the select list covering every field:
// table.column, aliased to the field name when the two differ.
func (m *EntityMeta) SelectStmts(w IdentifierWrapper) []string {
	table := w.Wrap(m.table)
	stmts := make([]string, len(m.fields))
	for i, f := range m.fields {
		stmt := table + "." + w.Wrap(f.Column)
		if f.Column != f.Name {
			stmt += " AS " + w.Wrap(f.Name)
		}
		stmts[i] = stmt
	}
	return stmts
}

// FieldValue reads the value of f from entity, which is either a
// map[string]interface{} keyed by field name or a struct (or pointer) of the
// entity type.
func (m *EntityMeta) FieldValue(entity interface{}, f Field) (interface{}, error) {
	if values, ok := entity.(map[string]interface{}); ok {
		return values[f.Name], nil
	}

	i, ok := m.byName[f.Name]
	if !ok {
		return nil, WrapError(ErrUnmappedField, m.table+"."+f.Name)
	}
	v, err := m.structValue(entity)
	if err != nil {
		return nil, err
	}
	return v.FieldByIndex(m.fields[i].index).Interface(), nil
}

// FieldPointer returns a pointer to the named field of entityPtr, suitable
// for database/sql scanning.
func (m *EntityMeta) FieldPointer(entityPtr interface{}, name string) (interface{}, error) {
	i, ok := m.lookup(name)
	if !ok {
		return nil, WrapError(ErrUnmappedField, m.table+"."+name)
	}
	v, err := m.addressable(entityPtr)
	if err != nil {
		return nil, err
	}
	return v.FieldByIndex(m.fields[i].index).Addr().Interface(), nil
}

// IDValue returns the identity field value and whether it still holds the
// zero value (an id the database is expected to generate).
func (m *EntityMeta) IDValue(entity interface{}) (value interface{}, zero bool, err error) {
	if values, ok := entity.(map[string]interface{}); ok {
		value = values[m.IDFieldName()]
		return value, value == nil, nil
	}
	v, err := m.structValue(entity)
	if err != nil {
		return nil, false, err
	}
	fv := v.FieldByIndex(m.fields[m.id].index)
	return fv.Interface(), util.IsPrimaryKeyZero(fv), nil
}

// SetID stores a generated id into entityPtr.
func (m *EntityMeta) SetID(entityPtr interface{}, id int64) error {
	v, err := m.addressable(entityPtr)
	if err != nil {
		return err
	}
	return util.SetPrimaryKeyValue(v.FieldByIndex(m.fields[m.id].index), id)
}

func (m *EntityMeta) structValue(entity interface{}) (reflect.Value, error) {
	if m.typ == nil {
		return reflect.Value{}, WrapError(ErrInvalidModelType, "entity "+m.table+" has no struct type, pass a map")
	}
	v := reflect.ValueOf(entity)
	if !v.IsValid() {
		return reflect.Value{}, WrapError(ErrInvalidModelType, "nil entity")
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, WrapError(ErrInvalidModelType, "nil entity")
		}
		v = v.Elem()
	}
	if v.Type() != m.typ {
		return reflect.Value{}, WrapError(ErrInvalidModelType, "expected "+m.typ.String()+", got "+v.Type().String())
	}
	return v, nil
}

func (m *EntityMeta) addressable(entityPtr interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(entityPtr)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, WrapError(ErrInvalidModelType, "expected non-nil pointer to entity")
	}
	return m.structValue(entityPtr)
}
