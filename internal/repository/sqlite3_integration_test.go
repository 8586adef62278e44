//go:build integration

package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/coregx/quickdao/internal/core"
	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLite3_CGODriver runs the repository against mattn/go-sqlite3.
func TestSQLite3_CGODriver(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE "user" (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		email_address TEXT
	)`)
	require.NoError(t, err)

	repo, err := New[user](db, "sqlite3")
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()

	u := &user{Name: "Tom", Age: 30}
	require.NoError(t, repo.Insert(ctx, u))
	assert.Equal(t, int64(1), u.ID)

	_, err = repo.BatchInsert(ctx, []user{{Name: "Ann", Age: 20}, {Name: "Bob", Age: 40}})
	require.NoError(t, err)

	items, err := repo.List(ctx, core.NewQuery().
		WhereFunc(func(c *core.Criteria) { c.And("age").Between(25, 50) }).
		Asc("age"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Tom", items[0].Name)
	assert.Equal(t, "Bob", items[1].Name)

	n, err := repo.Delete(ctx, core.NewCriteria())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
