package repository

import (
	"database/sql"

	"github.com/coregx/quickdao/internal/core"
)

// scanAll reads every row into a new T. Columns are matched by column name,
// then by field name; columns T does not map are discarded.
func scanAll[T any](meta *core.EntityMeta, rows *sql.Rows) ([]T, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(cols))
	for i, col := range cols {
		if f, ok := meta.FieldByColumnOrName(col); ok {
			fields[i] = f.Name
		}
	}

	var items []T
	for rows.Next() {
		var item T
		dest := make([]interface{}, len(cols))
		for i, name := range fields {
			if name == "" {
				dest[i] = new(interface{})
				continue
			}
			ptr, err := meta.FieldPointer(&item, name)
			if err != nil {
				return nil, err
			}
			dest[i] = ptr
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
