package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/dbal/internal/querysql"
	"github.com/roach88/dbal/internal/schema"
)

// drivers maps accepted driver names to database/sql driver names.
var drivers = map[string]string{
	"sqlite":     "sqlite3",
	"sqlite3":    "sqlite3",
	"mysql":      "mysql",
	"mariadb":    "mysql",
	"postgres":   "pgx",
	"postgresql": "pgx",
	"pgx":        "pgx",
}

// KnownDriver reports whether Open accepts driver.
func KnownDriver(driver string) bool {
	_, ok := drivers[strings.ToLower(driver)]
	return ok
}

// DB is a SQL database reached through database/sql. It compiles
// selections for its dialect and executes the resulting statements.
type DB struct {
	db       *sqlx.DB
	compiler *querysql.Compiler
}

// Open connects to a database. driver is one of sqlite, mysql or postgres
// (or an alias); MySQL DSNs are normalized so affected-row counts report
// matched rows.
//
// SQLite connections are configured with:
//   - a single open connection, so :memory: databases persist
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	name, ok := drivers[strings.ToLower(driver)]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
	dialect, err := querysql.DialectFor(driver)
	if err != nil {
		return nil, err
	}

	if name == "mysql" {
		if dsn, err = normalizeMySQLDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if name == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if name == "sqlite3" {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	slog.Debug("database opened", "driver", name, "dialect", dialect.Name())
	return &DB{db: db, compiler: querysql.NewCompiler(dialect)}, nil
}

func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ClientFoundRows = true
	cfg.MultiStatements = false
	return cfg.FormatDSN(), nil
}

func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Dialect returns the database's SQL dialect.
func (d *DB) Dialect() querysql.Dialect { return d.compiler.Dialect }

// Compiler returns the compiler used for this database. Its Prefix and
// Models may be configured before tables are used.
func (d *DB) Compiler() *querysql.Compiler { return d.compiler }

// Query runs a statement and returns every row as a column-name map.
// []byte column values are returned as strings.
func (d *DB) Query(ctx context.Context, stmt string) ([]map[string]any, error) {
	slog.Debug("sql query", "sql", stmt)
	rows, err := d.db.QueryxContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Exec runs a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, stmt string) (sql.Result, error) {
	slog.Debug("sql query", "sql", stmt)
	res, err := d.db.ExecContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// CreateTable creates the table for def if it does not exist.
func (d *DB) CreateTable(ctx context.Context, def schema.Definition) error {
	stmt, err := d.compiler.CreateTable(def)
	if err != nil {
		return err
	}
	_, err = d.Exec(ctx, stmt)
	return err
}

// DropTable drops a table if it exists.
func (d *DB) DropTable(ctx context.Context, name string) error {
	_, err := d.Exec(ctx, d.compiler.DropTable(name))
	return err
}

// Table returns a data source for the table described by def.
func (d *DB) Table(def schema.Definition) *Table {
	return &Table{db: d, def: def}
}
