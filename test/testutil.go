//go:build integration
// +build integration

package test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite"
)

// Backend describes one database the repository suite runs against.
type Backend struct {
	// Driver is both the database/sql driver and the quickdao dialect name.
	Driver string
	// EnvDSN names the variable that points at an existing database and
	// skips the container.
	EnvDSN string
	// Start launches a container and returns its DSN. Nil for embedded databases.
	Start func(ctx context.Context) (testcontainers.Container, string, error)
	// MessagesDDL creates the messages table.
	MessagesDDL string
}

// Backends lists every database of the integration suite.
var Backends = []Backend{
	{
		Driver: "postgres",
		EnvDSN: "POSTGRES_TEST_DSN",
		Start:  startPostgres,
		MessagesDDL: `CREATE TABLE IF NOT EXISTS messages (
			id SERIAL PRIMARY KEY,
			mailbox_id INTEGER NOT NULL,
			uid INTEGER NOT NULL,
			status INTEGER DEFAULT 1,
			size INTEGER DEFAULT 0,
			subject TEXT
		)`,
	},
	{
		Driver: "mysql",
		EnvDSN: "MYSQL_TEST_DSN",
		Start:  startMySQL,
		MessagesDDL: `CREATE TABLE IF NOT EXISTS messages (
			id INT AUTO_INCREMENT PRIMARY KEY,
			mailbox_id INT NOT NULL,
			uid INT NOT NULL,
			status INT DEFAULT 1,
			size INT DEFAULT 0,
			subject TEXT
		)`,
	},
	{
		Driver: "sqlite",
		MessagesDDL: `CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mailbox_id INTEGER NOT NULL,
			uid INTEGER NOT NULL,
			status INTEGER DEFAULT 1,
			size INTEGER DEFAULT 0,
			subject TEXT
		)`,
	},
}

// Connection is an open test database and the container behind it, if any.
type Connection struct {
	DB        *sql.DB
	Driver    string
	container testcontainers.Container
}

// Close closes the pool and stops the container.
func (c *Connection) Close() {
	if c.DB != nil {
		c.DB.Close() //nolint:errcheck
	}
	if c.container != nil {
		c.container.Terminate(context.Background()) //nolint:errcheck
	}
}

// Open connects to b and creates the messages table. Container backends
// are skipped when Docker is unavailable.
func (b Backend) Open(t *testing.T) *Connection {
	t.Helper()
	ctx := context.Background()
	conn := &Connection{Driver: b.Driver}

	var dsn string
	switch {
	case b.EnvDSN != "" && os.Getenv(b.EnvDSN) != "":
		dsn = os.Getenv(b.EnvDSN)
	case b.Start != nil:
		container, containerDSN, err := b.Start(ctx)
		if err != nil {
			t.Skipf("%s container not available: %v", b.Driver, err)
		}
		conn.container, dsn = container, containerDSN
	default:
		dsn = ":memory:"
	}

	db, err := sql.Open(b.Driver, dsn)
	require.NoError(t, err)
	if b.Start == nil {
		// Each connection of an in-memory database is a separate database.
		db.SetMaxOpenConns(1)
	}
	conn.DB = db

	_, err = db.ExecContext(ctx, b.MessagesDDL)
	require.NoError(t, err)
	return conn
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("quickdao"),
		postgres.WithUsername("quickdao"),
		postgres.WithPassword("quickdao"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}
	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	return c, dsn, err
}

func startMySQL(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("quickdao"),
		mysql.WithUsername("quickdao"),
		mysql.WithPassword("quickdao"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}
	dsn, err := c.ConnectionString(ctx)
	return c, dsn, err
}
