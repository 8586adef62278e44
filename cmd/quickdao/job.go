package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coregx/quickdao/internal/core"
	"github.com/coregx/quickdao/internal/security"
)

type job struct {
	operation string
	stmt      *core.Statement
	sources   []core.ParamSource
	// raw holds the unmapped expressions of the query, checked before use.
	raw []string
	// args are the values bound by the last execute.
	args []interface{}
}

// plan renders the statement for file.Operation.
func plan(gen *core.Generator, meta *core.EntityMeta, file *File) (*job, error) {
	j := &job{operation: file.Operation}
	values := file.Values
	if values == nil {
		values = map[string]interface{}{}
	}
	entity := core.EntitySource(meta, values)

	var err error
	switch file.Operation {
	case "insert":
		j.stmt, err = gen.Insert(meta)
		j.sources = []core.ParamSource{entity}
	case "batch_insert":
		n := len(file.Rows)
		if n == 0 {
			n = file.BatchSize
		}
		j.stmt, err = gen.BatchInsert(meta, n)
		j.sources = []core.ParamSource{core.BatchSource(meta, file.Rows)}
	case "update":
		j.stmt, err = gen.Update(meta)
		j.sources = []core.ParamSource{entity}
	case "update_selective":
		j.stmt, err = gen.UpdateSelective(meta, values)
		j.sources = []core.ParamSource{entity}
	case "delete_by_id":
		j.stmt, err = gen.DeleteByID(meta)
		j.sources = []core.ParamSource{entity}
	case "get":
		j.stmt, err = gen.GetByID(meta)
		j.sources = []core.ParamSource{entity}
	case "delete", "list", "count":
		var q *core.Query
		q, err = file.Query.Build()
		if err != nil {
			return nil, err
		}
		switch file.Operation {
		case "delete":
			j.raw = core.RawCriteriaExpressions(meta, q)
			j.stmt, err = gen.DeleteByCriteria(meta, q)
		case "list":
			j.raw = core.RawExpressions(meta, q)
			j.stmt, err = gen.List(meta, q)
		default:
			j.raw = core.RawExpressions(meta, q)
			j.stmt, err = gen.Count(meta, q)
		}
	default:
		return nil, fmt.Errorf("unknown operation %q", file.Operation)
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (j *job) validate(v *security.Validator) error {
	if err := v.ValidateFragments(j.raw); err != nil {
		return err
	}
	bound := make([]interface{}, 0, len(j.stmt.Params))
	for _, value := range j.stmt.Bound() {
		bound = append(bound, value)
	}
	return v.ValidateParams(bound)
}

// execResult is printed after running a write.
type execResult struct {
	RowsAffected int64  `yaml:"rows_affected"`
	LastInsertID *int64 `yaml:"last_insert_id,omitempty"`
}

// countResult is printed after running count.
type countResult struct {
	Count int64 `yaml:"count"`
}

func (j *job) execute(ctx context.Context, db *sql.DB) (interface{}, error) {
	args, err := j.stmt.Args(j.sources...)
	if err != nil {
		return nil, err
	}
	j.args = args

	switch j.operation {
	case "count":
		var res countResult
		if err := db.QueryRowContext(ctx, j.stmt.SQL, args...).Scan(&res.Count); err != nil {
			return nil, err
		}
		return res, nil
	case "list", "get":
		rows, err := db.QueryContext(ctx, j.stmt.SQL, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanMaps(rows)
	}

	res, err := db.ExecContext(ctx, j.stmt.SQL, args...)
	if err != nil {
		return nil, err
	}
	var out execResult
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return nil, err
	}
	if j.operation == "insert" {
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = &id
		}
	}
	return out, nil
}

// scanMaps reads every row into a column -> value map; []byte becomes string.
func scanMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	items := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		dest := make([]interface{}, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		item := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				item[col] = string(b)
				continue
			}
			item[col] = values[i]
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
