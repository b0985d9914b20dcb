// Package store executes selections against SQL databases.
//
// A DB wraps a database/sql pool (through sqlx) together with a
// querysql.Compiler for the database's dialect. Tables obtained from a DB
// implement query.DataSource, so the same Selection that runs against the
// in-memory executor runs here as compiled SQL.
//
// # Drivers
//
//   - sqlite, sqlite3: github.com/mattn/go-sqlite3
//   - mysql, mariadb: github.com/go-sql-driver/mysql
//   - postgres, postgresql, pgx: github.com/jackc/pgx/v5/stdlib
//
// # Values
//
// Statements carry every value as an inline literal quoted by the dialect.
// Rows are decoded through the table definition, so a column read back from
// any driver converts to the same value.Value as the one written.
//
// Every statement is logged at debug level under the "sql" key.
package store
