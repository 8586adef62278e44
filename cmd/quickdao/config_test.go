package main

import (
	"strings"
	"testing"

	"github.com/coregx/quickdao/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userFile = `
entity:
  table: user
  id: id
  fields:
    - id
    - name
    - age
    - name: email
      column: email_address
operation: list
query:
  where:
    - field: age
      op: ge
      value: 18
    - field: name
      op: in
      value: [Tom, Ann]
    - or:
        - field: email
          op: is_null
    - and:
        - field: age
          op: lt
          value: 65
        - or:
            - field: name
              op: start_with
              value: A
  group_by: [age]
  having:
    - field: COUNT(*)
      op: ">"
      value: 1
  order_by:
    - name desc
    - age
  limit: 10
  offset: 20
`

func TestDecodeFile(t *testing.T) {
	file, err := DecodeFile(strings.NewReader(userFile))
	require.NoError(t, err)

	assert.Equal(t, "list", file.Operation)
	assert.Equal(t, "user", file.Entity.Table)
	assert.Equal(t, []FieldConfig{
		{Name: "id"}, {Name: "name"}, {Name: "age"}, {Name: "email", Column: "email_address"},
	}, file.Entity.Fields)
	assert.Equal(t, StringList{"age"}, file.Query.GroupBy)
	assert.Equal(t, StringList{"name desc", "age"}, file.Query.OrderBy)
	assert.Len(t, file.Query.Where, 4)
	assert.Equal(t, []interface{}{"Tom", "Ann"}, file.Query.Where[1].Value)
}

func TestDecodeFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing operation", "entity: {table: t, fields: [id]}\n"},
		{"unknown key", "operation: list\nentity: {table: t, fields: [id]}\nlimit: 3\n"},
		{"bad string list", "operation: list\nquery: {group_by: {a: b}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFile(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestQueryConfig_Build(t *testing.T) {
	file, err := DecodeFile(strings.NewReader(userFile))
	require.NoError(t, err)
	meta, err := file.Entity.Meta()
	require.NoError(t, err)
	q, err := file.Query.Build()
	require.NoError(t, err)

	stmt, err := core.NewGenerator(core.DoubleQuote, core.Colon).List(meta, q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "user"."id", "user"."name", "user"."age", "user"."email_address" AS "email" FROM "user"`+
			` WHERE ( "age" >= :age AND "name" IN ( :name, :name__2 )`+
			` AND ( ( "age" < :age__2 ) OR ( "name" LIKE :name__3 ) ) )`+
			` OR ( "email_address" IS NULL )`+
			` GROUP BY "age" HAVING ( COUNT(*) > :COUNT )`+
			` ORDER BY "name" desc, "age" asc LIMIT 10 OFFSET 20`,
		stmt.SQL)
	assert.Equal(t, "A%", stmt.Bound()["name__3"])
}

func TestConditionConfig_Errors(t *testing.T) {
	_, err := QueryConfig{Where: []ConditionConfig{{Op: "eq", Value: 1}}}.Build()
	assert.Error(t, err)

	_, err = QueryConfig{Where: []ConditionConfig{{Field: "a", Op: "approximately"}}}.Build()
	assert.ErrorIs(t, err, core.ErrInvalidOperand)

	_, err = QueryConfig{Having: []ConditionConfig{{Or: []ConditionConfig{{Field: ""}}}}}.Build()
	assert.Error(t, err)
}

func TestConditionConfig_NilValue(t *testing.T) {
	c, err := ConditionConfig{Field: "email"}.criterion()
	require.NoError(t, err)
	assert.Equal(t, core.IsNull, c.Operator)

	c, err = ConditionConfig{Field: "email", Op: "is_not_null"}.criterion()
	require.NoError(t, err)
	assert.Equal(t, core.IsNotNull, c.Operator)
	assert.Empty(t, c.Value.Values())
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		entry   string
		name    string
		dir     core.Direction
		wantErr bool
	}{
		{entry: "name", name: "name", dir: core.Asc},
		{entry: "name DESC", name: "name", dir: core.Desc},
		{entry: "LOWER(name) || age desc", name: "LOWER(name) || age", dir: core.Desc},
		{entry: "a + b", name: "a + b", dir: core.Asc},
		{entry: "name sideways", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			name, dir, err := parseOrder(tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.dir, dir)
		})
	}
}
