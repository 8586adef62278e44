// Command quickdao renders the SQL of one operation described in a YAML file
// and optionally runs it against a database.
//
// Usage:
//
//	quickdao -f query.yaml [-dialect postgres|mysql|sqlite|sqlite3]
//	         [-placeholder colon|mybatis|positional] [-dsn DSN] [-strict] [-v]
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/coregx/quickdao/internal/core"
	"github.com/coregx/quickdao/internal/dialects"
	"github.com/coregx/quickdao/internal/logger"
	"github.com/coregx/quickdao/internal/security"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "quickdao: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	file        string
	dialect     string
	placeholder string
	dsn         string
	strict      bool
	verbose     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("quickdao", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "f", "", "YAML query file (- for stdin)")
	fs.StringVar(&opts.dialect, "dialect", "postgres", "database dialect and driver: postgres, mysql, sqlite or sqlite3")
	fs.StringVar(&opts.placeholder, "placeholder", "positional", "placeholder style: colon, mybatis or positional")
	fs.StringVar(&opts.dsn, "dsn", "", "run the statement against this data source")
	fs.BoolVar(&opts.strict, "strict", false, "reject subqueries and boolean logic in raw fragments")
	fs.BoolVar(&opts.verbose, "v", false, "log generated statements")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.file == "" {
		return nil, errors.New("-f is required")
	}
	return opts, nil
}

// rendered is what quickdao prints for a statement.
type rendered struct {
	SQL    string                 `yaml:"sql"`
	Params []string               `yaml:"params,omitempty"`
	Bound  map[string]interface{} `yaml:"bound,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := logger.NewTextLogger(stderr, level)

	file, err := LoadFile(opts.file)
	if err != nil {
		return err
	}
	meta, err := file.Entity.Meta()
	if err != nil {
		return err
	}
	gen, err := newGenerator(opts, log)
	if err != nil {
		return err
	}

	job, err := plan(gen, meta, file)
	if err != nil {
		return err
	}
	if err := job.validate(security.NewValidator(security.WithStrict(opts.strict))); err != nil {
		return err
	}

	out := yaml.NewEncoder(stdout)
	defer out.Close()
	if err := out.Encode(rendered{SQL: job.stmt.SQL, Params: job.stmt.Names(), Bound: job.stmt.Bound()}); err != nil {
		return err
	}
	if opts.dsn == "" {
		return nil
	}

	db, err := sql.Open(opts.dialect, opts.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	result, err := job.execute(ctx, db)
	if err != nil {
		sanitizer := logger.NewSanitizer(nil)
		log.Error("sql failed",
			"operation", file.Operation,
			"sql", job.stmt.SQL,
			"params", sanitizer.FormatParams(sanitizer.MaskParams(job.stmt.SQL, job.args)),
			"error", err,
		)
		return err
	}
	log.Info("sql executed", "operation", file.Operation, "duration_ms", time.Since(start).Milliseconds())
	return out.Encode(result)
}

func newGenerator(opts *options, log logger.Logger) (*core.Generator, error) {
	d, ok := dialects.LookupDialect(opts.dialect)
	if !ok {
		return nil, core.WrapError(core.ErrUnsupportedDialect, opts.dialect)
	}

	placeholder := opts.placeholder
	if opts.dsn != "" && placeholder != "positional" {
		log.Warn("placeholder style forced to positional for execution", "requested", placeholder)
		placeholder = "positional"
	}

	var pw core.PlaceholderWrapper
	switch placeholder {
	case "colon":
		pw = core.Colon
	case "mybatis":
		pw = core.MyBatis
	case "positional":
		pw = core.Positional(d)
	default:
		return nil, fmt.Errorf("unknown placeholder style %q", placeholder)
	}
	return core.NewGenerator(core.QuoteWith(d), pw, core.WithLogger(log)), nil
}
