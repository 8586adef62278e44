package repository

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coregx/quickdao/internal/core"
	"github.com/coregx/quickdao/internal/logger"
	"github.com/coregx/quickdao/internal/security"
	"github.com/coregx/quickdao/internal/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type user struct {
	ID    int64   `db:"id,pk"`
	Name  string  `db:"name"`
	Age   int     `db:"age"`
	Email *string `db:"email_address"`
}

func (user) TableName() string { return "user" }

const selectUser = `SELECT "user"."id", "user"."name", "user"."age", "user"."email_address" AS "email" FROM "user"`

func strPtr(s string) *string { return &s }

func userName(u *user) any { return &u.Name }
func userAge(u *user) any  { return &u.Age }

func newMockRepo(t *testing.T, opts ...Option) (*Repository[user], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := New[user](db, "postgres", opts...)
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo, mock
}

func TestNew_UnsupportedDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = New[user](db, "oracle")
	assert.ErrorIs(t, err, core.ErrUnsupportedDialect)
}

func TestRepository_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(`INSERT INTO "user" ( "name", "age", "email_address" ) VALUES ( $1, $2, $3 )`).
		ExpectExec().
		WithArgs("Tom", 30, nil).
		WillReturnResult(sqlmock.NewResult(42, 1))

	u := &user{Name: "Tom", Age: 30}
	require.NoError(t, repo.Insert(context.Background(), u))
	assert.Equal(t, int64(42), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertWithoutLastInsertID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(`INSERT INTO "user" ( "name", "age", "email_address" ) VALUES ( $1, $2, $3 )`).
		ExpectExec().
		WithArgs("Tom", 30, "t@x.io").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("LastInsertId is not supported")))

	u := &user{Name: "Tom", Age: 30, Email: strPtr("t@x.io")}
	require.NoError(t, repo.Insert(context.Background(), u))
	assert.Zero(t, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_BatchInsert(t *testing.T) {
	repo, mock := newMockRepo(t)

	n, err := repo.BatchInsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectPrepare(`INSERT INTO "user" ( "name", "age", "email_address" ) VALUES ( $1, $2, $3 ), ( $4, $5, $6 )`).
		ExpectExec().
		WithArgs("a", 1, nil, "b", 2, "b@x.io").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err = repo.BatchInsert(context.Background(), []user{
		{Name: "a", Age: 1},
		{Name: "b", Age: 2, Email: strPtr("b@x.io")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Update(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(`UPDATE "user" SET "name" = $1, "age" = $2, "email_address" = $3 WHERE "id" = $4`).
		ExpectExec().
		WithArgs("Tom", 31, nil, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(`UPDATE "user" SET "name" = $1, "age" = $2 WHERE "id" = $3`).
		ExpectExec().
		WithArgs("Tom", 32, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &user{ID: 7, Name: "Tom", Age: 31}
	n, err := repo.Update(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	u.Age = 32
	n, err = repo.UpdateSelective(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(`DELETE FROM "user" WHERE "id" = $1`).
		ExpectExec().
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare(`DELETE FROM "user" WHERE ( "age" < $1 )`).
		ExpectExec().
		WithArgs(18).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(context.Background(), core.NewCriteria().And("age").Lt(18))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	prep := mock.ExpectPrepare(selectUser + ` WHERE "id" = $1`)
	prep.ExpectQuery().
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "email"}).
			AddRow(1, "Tom", 30, "t@x.io"))
	prep.ExpectQuery().
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "email"}))

	u, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &user{ID: 1, Name: "Tom", Age: 30, Email: strPtr("t@x.io")}, u)

	_, err = repo.GetByID(context.Background(), 2)
	assert.ErrorIs(t, err, core.ErrNoRows)

	stats := repo.StmtCacheStats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(selectUser+` WHERE ( "name" = $1 AND "age" >= $2 ) ORDER BY "name" desc LIMIT 10 OFFSET 0`).
		ExpectQuery().
		WithArgs("Tom", 18).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "email", "extra"}).
			AddRow(1, "Tom", 30, nil, "ignored").
			AddRow(2, "Tom", 18, "t@x.io", "ignored"))

	items, err := repo.List(context.Background(), core.NewQuery().
		WhereFunc(func(c *core.Criteria) { c.And("name").Eq("Tom").And("age").Ge(18) }).
		Desc("name").
		Limit(10))
	require.NoError(t, err)
	assert.Equal(t, []user{
		{ID: 1, Name: "Tom", Age: 30},
		{ID: 2, Name: "Tom", Age: 18, Email: strPtr("t@x.io")},
	}, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListTyped(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(selectUser+` WHERE ( "age" BETWEEN $1 AND $2 ) ORDER BY "name" asc LIMIT 5 OFFSET 5`).
		ExpectQuery().
		WithArgs(18, 30).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "email"}).
			AddRow(6, "Ann", 20, nil))

	q := repo.Query().
		WhereFunc(func(c *core.TypedCriteria[user]) { c.And(userAge).Between(18, 30) }).
		Asc(userName).
		Page(2, 5)
	items, err := repo.ListTyped(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ann", items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListTypedBadAccessor(t *testing.T) {
	repo, mock := newMockRepo(t)

	q := repo.Query().Asc(func(u *user) any { return u.Name })
	_, err := repo.ListTyped(context.Background(), q)
	assert.ErrorIs(t, err, core.ErrUnresolvableAccessor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Count(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPrepare(`SELECT COUNT(*) FROM "user" WHERE ( "age" > $1 )`).
		ExpectQuery().
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectPrepare(`SELECT COUNT(*) FROM ( SELECT 1 FROM "user" GROUP BY "age" ) result`).
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.Count(context.Background(), core.NewQuery().
		WhereFunc(func(c *core.Criteria) { c.And("age").Gt(1) }))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.CountTyped(context.Background(), repo.Query().GroupBy(userAge))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ExecError(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	repo, mock := newMockRepo(t, WithLogger(l))

	mock.ExpectPrepare(`DELETE FROM "user" WHERE "id" = $1`).
		ExpectExec().
		WithArgs(7).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.DeleteByID(context.Background(), 7)
	assert.EqualError(t, err, "connection reset")
	assert.Contains(t, buf.String(), "sql failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LogsMaskSensitiveParams(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	repo, mock := newMockRepo(t, WithLogger(l), WithSensitiveFields("name"))

	mock.ExpectPrepare(`INSERT INTO "user" ( "name", "age", "email_address" ) VALUES ( $1, $2, $3 )`).
		ExpectExec().
		WithArgs("Secret Name", 30, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), &user{Name: "Secret Name", Age: 30}))

	out := buf.String()
	assert.Contains(t, out, "sql executed")
	assert.Contains(t, out, "***REDACTED***")
	assert.NotContains(t, out, "Secret Name")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ValidatorRejects(t *testing.T) {
	var buf bytes.Buffer
	audit := security.NewAuditor(logger.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil))), security.AuditWrites)
	repo, mock := newMockRepo(t, WithValidator(security.NewValidator()), WithAuditor(audit))
	ctx := context.Background()

	_, err := repo.List(ctx, core.NewQuery().Asc("name; DROP TABLE user"))
	assert.ErrorIs(t, err, security.ErrDangerousSQL)

	_, err = repo.Count(ctx, core.NewQuery().GroupBy("age UNION SELECT 1"))
	assert.ErrorIs(t, err, security.ErrDangerousSQL)

	_, err = repo.Delete(ctx, core.NewCriteria().And("name").Eq("admin'--"))
	assert.ErrorIs(t, err, security.ErrDangerousSQL)

	assert.Contains(t, buf.String(), "audit rejected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Audit(t *testing.T) {
	var buf bytes.Buffer
	audit := security.NewAuditor(logger.NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil))), security.AuditWrites)
	repo, mock := newMockRepo(t, WithAuditor(audit))

	mock.ExpectPrepare(`DELETE FROM "user" WHERE "id" = $1`).
		ExpectExec().
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := security.WithUser(context.Background(), "alice")
	_, err := repo.DeleteByID(ctx, 7)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"operation":"delete"`)
	assert.Contains(t, out, `"verb":"DELETE"`)
	assert.Contains(t, out, `"user":"alice"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	repo, mock := newMockRepo(t, WithTracer(tracer.NewOtelTracer(tp.Tracer("repository-test"))))

	mock.ExpectPrepare(`DELETE FROM "user" WHERE "id" = $1`).
		ExpectExec().
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := repo.DeleteByID(context.Background(), 7)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "quickdao.delete", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "postgres", attrs["db.system"].AsString())
	assert.Equal(t, "DELETE", attrs["db.operation"].AsString())
	assert.Equal(t, "user", attrs["db.sql.table"].AsString())
	assert.Equal(t, int64(1), attrs["db.rows"].AsInt64())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SharedStmtCache(t *testing.T) {
	repo, mock := newMockRepo(t)
	other, err := New[user](nil, "postgres", WithStmtCache(nil))
	require.NoError(t, err)
	assert.NotNil(t, other.stmts)
	assert.NotSame(t, repo.stmts, other.stmts)

	shared, err := New[user](nil, "postgres", WithStmtCache(repo.stmts))
	require.NoError(t, err)
	assert.Same(t, repo.stmts, shared.stmts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
