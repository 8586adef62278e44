// Package util provides reflection helpers that derive entity metadata from
// struct tags, plus naming and value helpers shared by the query core.
package util

import (
	"database/sql/driver"
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

// FieldInfo describes one persisted struct field.
type FieldInfo struct {
	GoName string       // struct field name
	Name   string       // logical field name used by queries (lowerCamel)
	Column string       // database column name
	PK     bool         // true for the identity field
	Index  []int        // reflect index path, for embedded structs
	Offset uintptr      // byte offset from the start of the outermost struct
	Type   reflect.Type // declared type
}

// ModelInfo is the result of parsing a tagged struct type.
type ModelInfo struct {
	Type   reflect.Type
	Table  string
	Fields []FieldInfo // declaration order, embedded structs flattened
}

// PrimaryKey returns the identity field.
func (m *ModelInfo) PrimaryKey() *FieldInfo {
	for i := range m.Fields {
		if m.Fields[i].PK {
			return &m.Fields[i]
		}
	}
	return nil
}

// parseDBTag parses db tag to extract column name and pk flag.
//
// Supported formats:
//   - "pk"           -> column="pk", isPK=true (legacy single PK)
//   - "column"       -> column="column", isPK=false
//   - "column,pk"    -> column="column", isPK=true
//   - "-"            -> column="-", isPK=false (skip field)
func parseDBTag(tag string) (column string, isPK bool) {
	parts := strings.Split(tag, ",")
	column = strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "pk" {
			isPK = true
			break
		}
	}

	if column == "pk" {
		isPK = true
	}

	return column, isPK
}

// ParseModel extracts table and field metadata from a struct or *struct.
//
// Primary key priority:
//  1. Field tagged db:"column,pk" or db:"pk"
//  2. Field named "ID"
//  3. Field named "Id"
//
// More than one tagged primary key is rejected: an entity has exactly one
// identity field.
func ParseModel(model interface{}) (*ModelInfo, error) {
	if model == nil {
		return nil, errors.New("ParseModel: nil model")
	}
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.New("ParseModel: expected struct, got " + t.Kind().String())
	}

	info := &ModelInfo{
		Type:  t,
		Table: TableName(model),
	}
	collectFields(t, nil, 0, &info.Fields)
	if len(info.Fields) == 0 {
		return nil, errors.New("ParseModel: " + t.Name() + " has no persisted fields")
	}

	pkCount := 0
	for _, f := range info.Fields {
		if f.PK {
			pkCount++
		}
	}
	switch {
	case pkCount > 1:
		return nil, errors.New("ParseModel: composite primary keys not supported")
	case pkCount == 0:
		idx := fieldByGoName(info.Fields, "ID")
		if idx < 0 {
			idx = fieldByGoName(info.Fields, "Id")
		}
		if idx < 0 {
			return nil, errors.New("ParseModel: no primary key found in " + t.Name())
		}
		info.Fields[idx].PK = true
	}

	return info, nil
}

func collectFields(t reflect.Type, index []int, base uintptr, out *[]FieldInfo) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		path := make([]int, len(index)+1)
		copy(path, index)
		path[len(index)] = i

		tag, hasTag := field.Tag.Lookup("db")
		if field.Anonymous && !hasTag && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, path, base+field.Offset, out)
			continue
		}

		column, isPK := "", false
		if hasTag {
			column, isPK = parseDBTag(tag)
			if column == "-" {
				continue
			}
			// Legacy db:"pk": the column takes the field's own name.
			if column == "pk" || column == "" {
				column = ColumnName(field.Name)
			}
		} else {
			column = ColumnName(field.Name)
		}

		*out = append(*out, FieldInfo{
			GoName: field.Name,
			Name:   FieldName(field.Name),
			Column: column,
			PK:     isPK,
			Index:  path,
			Offset: base + field.Offset,
			Type:   field.Type,
		})
	}
}

func fieldByGoName(fields []FieldInfo, name string) int {
	for i := range fields {
		if fields[i].GoName == name {
			return i
		}
	}
	return -1
}

// TableName determines the table name for a model.
// A TableName() method wins; otherwise the pluralized snake_case type name is used.
func TableName(model interface{}) string {
	if tn, ok := model.(interface{ TableName() string }); ok {
		return tn.TableName()
	}

	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	// Pointer receivers are only visible through a pointer value.
	if tn, ok := reflect.New(t).Interface().(interface{ TableName() string }); ok {
		return tn.TableName()
	}

	return inflect.Underscore(inflect.Pluralize(titleAcronyms(t.Name())))
}

// ColumnName converts a Go field name to its default column name
// (snake_case). Acronyms stay one word: "ID" -> "id", "UserID" -> "user_id",
// "HTTPCode" -> "http_code".
func ColumnName(goName string) string {
	return inflect.Underscore(titleAcronyms(goName))
}

// titleAcronyms rewrites every run of upper-case letters as one title-case
// word ("UserID" -> "UserId", "HTTPCode" -> "HttpCode"), since inflect
// starts a new word at each upper-case letter. The last letter of a run
// followed by a lower-case letter begins the next word.
func titleAcronyms(name string) string {
	runes := []rune(name)
	for i := 0; i < len(runes); {
		if !unicode.IsUpper(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsUpper(runes[j]) {
			j++
		}
		end := j
		if j < len(runes) && unicode.IsLower(runes[j]) && j-i > 1 {
			end = j - 1
		}
		for k := i + 1; k < end; k++ {
			runes[k] = unicode.ToLower(runes[k])
		}
		i = j
	}
	return string(runes)
}

// FieldName converts a Go field name to the logical field name used in
// queries: the leading run of upper-case letters is lowered, keeping the
// last one when it starts the next word ("ID" -> "id", "UserID" -> "userID",
// "HTTPCode" -> "httpCode").
func FieldName(goName string) string {
	runes := []rune(goName)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	if n == 0 {
		return goName
	}
	if n > 1 && n < len(runes) {
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// IsNull reports whether v represents SQL NULL: an untyped nil, a nil
// pointer, map, slice, interface, func or chan, or a driver.Valuer whose
// value is nil (sql.NullString{Valid: false} and friends).
func IsNull(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return true
		}
	}
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		return err == nil && val == nil
	}
	return false
}

// IsPrimaryKeyZero checks if primary key value is zero (needs auto-population).
//
// Handles:
//   - int types: v.Int() == 0
//   - uint types: v.Uint() == 0
//   - pointers: v.IsNil() || (deref and check)
//
// Returns false for non-numeric types (string, UUID, etc).
func IsPrimaryKeyZero(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Ptr:
		if v.IsNil() {
			return true
		}
		return IsPrimaryKeyZero(v.Elem())
	default:
		return false
	}
}

// SetPrimaryKeyValue sets a generated primary key value using reflection.
// Pointers are allocated when nil. Overflowing the target type is an error.
//
//nolint:cyclop,gocyclo // Acceptable complexity for handling all numeric kinds.
func SetPrimaryKeyValue(field reflect.Value, id int64) error {
	if !field.IsValid() {
		return errors.New("SetPrimaryKeyValue: invalid field")
	}

	if !field.CanSet() {
		return errors.New("SetPrimaryKeyValue: field is not settable")
	}

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return SetPrimaryKeyValue(field.Elem(), id)
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.OverflowInt(id) {
			return errors.New("SetPrimaryKeyValue: " + field.Kind().String() + " overflow")
		}
		field.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if id < 0 || field.OverflowUint(uint64(id)) {
			return errors.New("SetPrimaryKeyValue: " + field.Kind().String() + " overflow")
		}
		field.SetUint(uint64(id))
	default:
		return errors.New("SetPrimaryKeyValue: unsupported type " + field.Kind().String())
	}

	return nil
}
