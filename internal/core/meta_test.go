package core

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	ID    int64   `db:"id,pk"`
	Name  string  `db:"name"`
	Age   int     `db:"age"`
	Email *string `db:"email_address"`
}

func (testUser) TableName() string { return "user" }

func strPtr(s string) *string { return &s }

func userMeta(t *testing.T) *EntityMeta {
	t.Helper()
	meta, err := MetaOf[testUser]()
	require.NoError(t, err)
	return meta
}

func TestMetaOf_Derived(t *testing.T) {
	meta := userMeta(t)

	assert.Equal(t, "user", meta.Table())
	assert.Equal(t, "id", meta.IDFieldName())
	assert.Equal(t, "id", meta.IDColumnName())
	assert.Equal(t, reflect.TypeOf(testUser{}), meta.Type())

	names := make([]string, 0)
	for _, f := range meta.FieldsWithoutID() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"name", "age", "email"}, names)

	email, ok := meta.Field("email")
	require.True(t, ok)
	assert.Equal(t, "email_address", email.Column)
	assert.True(t, email.Nullable)

	age, ok := meta.Field("age")
	require.True(t, ok)
	assert.False(t, age.Nullable)
}

type untaggedAccount struct {
	ID     int64
	UserID int64
	Name   string
}

func TestMetaOf_DerivedUntagged(t *testing.T) {
	meta, err := MetaOf[untaggedAccount]()
	require.NoError(t, err)

	assert.Equal(t, "untagged_accounts", meta.Table())
	assert.Equal(t, "id", meta.IDFieldName())
	assert.Equal(t, "id", meta.IDColumnName())
	column, ok := meta.ColumnNameByFieldName("userID")
	require.True(t, ok)
	assert.Equal(t, "user_id", column)

	stmt, err := NewGenerator(DoubleQuote, Colon).Insert(meta)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "untagged_accounts" ( "user_id", "name" ) VALUES ( :userID, :name )`, stmt.SQL)
}

func TestMetaOf_Cached(t *testing.T) {
	a, err := MetaOf[testUser]()
	require.NoError(t, err)
	b, err := MetaOf[testUser]()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestEntityMeta_ColumnLookups(t *testing.T) {
	meta := userMeta(t)

	col, ok := meta.ColumnNameByFieldName("email")
	assert.True(t, ok)
	assert.Equal(t, "email_address", col)

	// Go field names are accepted as aliases.
	col, ok = meta.ColumnNameByFieldName("Email")
	assert.True(t, ok)
	assert.Equal(t, "email_address", col)

	col, ok = meta.ColumnNameByFieldName("LOWER(name)")
	assert.False(t, ok)
	assert.Empty(t, col)

	f, _ := meta.Field("age")
	col, err := meta.ColumnNameByField(f)
	require.NoError(t, err)
	assert.Equal(t, "age", col)

	_, err = meta.ColumnNameByField(Field{Name: "salary", Column: "salary"})
	assert.ErrorIs(t, err, ErrUnmappedField)

	cols, err := meta.ColumnNamesByFields(meta.FieldsWithoutID())
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "email_address"}, cols)
}

func TestEntityMeta_SelectStmts(t *testing.T) {
	meta := userMeta(t)

	assert.Equal(t, []string{
		`"user"."id"`,
		`"user"."name"`,
		`"user"."age"`,
		`"user"."email_address" AS "email"`,
	}, meta.SelectStmts(DoubleQuote))

	assert.Equal(t, []string{
		"user.id",
		"user.name",
		"user.age",
		"user.email_address AS email",
	}, meta.SelectStmts(NoQuote))
}

func TestEntityMeta_Values(t *testing.T) {
	meta := userMeta(t)
	u := &testUser{Name: "Tom", Age: 20}

	name, _ := meta.Field("name")
	v, err := meta.FieldValue(u, name)
	require.NoError(t, err)
	assert.Equal(t, "Tom", v)

	v, err = meta.FieldValue(*u, name)
	require.NoError(t, err)
	assert.Equal(t, "Tom", v)

	v, err = meta.FieldValue(map[string]interface{}{"name": "Ann"}, name)
	require.NoError(t, err)
	assert.Equal(t, "Ann", v)

	_, err = meta.FieldValue(struct{ X int }{}, name)
	assert.ErrorIs(t, err, ErrInvalidModelType)

	_, zero, err := meta.IDValue(u)
	require.NoError(t, err)
	assert.True(t, zero)

	require.NoError(t, meta.SetID(u, 42))
	id, zero, err := meta.IDValue(u)
	require.NoError(t, err)
	assert.False(t, zero)
	assert.Equal(t, int64(42), id)

	assert.ErrorIs(t, meta.SetID(*u, 1), ErrInvalidModelType)

	ptr, err := meta.FieldPointer(u, "age")
	require.NoError(t, err)
	*(ptr.(*int)) = 33
	assert.Equal(t, 33, u.Age)
}

func TestNewEntityMeta(t *testing.T) {
	meta, err := NewEntityMeta("account", "id",
		Field{Name: "id"},
		Field{Name: "ownerName", Column: "owner_name"},
	)
	require.NoError(t, err)
	assert.Equal(t, "account", meta.Table())
	assert.Nil(t, meta.Type())
	assert.Equal(t, "owner_name", meta.FieldsWithoutID()[0].Column)

	// Manually built metadata reads values from maps only.
	f, _ := meta.Field("ownerName")
	_, err = meta.FieldValue(struct{}{}, f)
	assert.ErrorIs(t, err, ErrInvalidModelType)

	tests := []struct {
		name   string
		table  string
		id     string
		fields []Field
	}{
		{"empty table", "", "id", []Field{{Name: "id"}}},
		{"no fields", "t", "id", nil},
		{"missing id", "t", "id", []Field{{Name: "name"}}},
		{"duplicate field", "t", "id", []Field{{Name: "id"}, {Name: "id", Column: "x"}}},
		{"duplicate column", "t", "id", []Field{{Name: "id"}, {Name: "a", Column: "id"}}},
		{"unnamed field", "t", "id", []Field{{Name: "id"}, {Column: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEntityMeta(tt.table, tt.id, tt.fields...)
			assert.ErrorIs(t, err, ErrInvalidModelType)
		})
	}
}

func TestDeriveEntityMeta_Invalid(t *testing.T) {
	_, err := DeriveEntityMeta(42)
	assert.ErrorIs(t, err, ErrInvalidModelType)

	type noKey struct {
		Name string
	}
	_, err = DeriveEntityMeta(noKey{})
	assert.ErrorIs(t, err, ErrInvalidModelType)

	assert.Panics(t, func() { MustMetaOf[noKey]() })
}
