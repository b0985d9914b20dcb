// Package querysql compiles selections into SQL statements for a dialect.
package querysql

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Dialect is the database-specific half of SQL generation: quoting and the
// syntax of clauses that differ between engines.
type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	QuoteLiteral(t schema.DataType, v value.Value) (string, error)
	LikeOperator() string
	LikeEscape() string
	// LimitOffset renders the clause that windows a result. It returns ""
	// when there is nothing to window.
	LimitOffset(limit int, hasLimit bool, offset int) string
	// MutationLimit reports whether UPDATE and DELETE accept ORDER BY and
	// LIMIT directly.
	MutationLimit() bool
	// RowID names the hidden row identifier used to bound mutations when
	// MutationLimit is false.
	RowID() string
	// Returning reports whether INSERT ... RETURNING yields generated keys.
	Returning() bool
	// ColumnType is the column type used to store t.
	ColumnType(t schema.DataType) string
	// SerialColumn is the full definition of an auto-incrementing integer
	// primary key column, without its name.
	SerialColumn() string
}

var dialects = map[string]Dialect{
	"sqlite":   SQLite{},
	"mysql":    MySQL{},
	"postgres": Postgres{},
}

var dialectAliases = map[string]string{
	"sqlite3":    "sqlite",
	"mariadb":    "mysql",
	"postgresql": "postgres",
	"pgx":        "postgres",
	"pg":         "postgres",
}

// DialectFor resolves a dialect or driver name.
func DialectFor(name string) (Dialect, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := dialectAliases[key]; ok {
		key = alias
	}
	d, ok := dialects[key]
	if !ok {
		return nil, fmt.Errorf("unknown SQL dialect %q", name)
	}
	return d, nil
}

// literal holds the quoting rules shared by the dialects.
type literal struct {
	quoteString func(string) string
	boolean     func(bool) string
	date        func(t schema.DataType, ts int64) string
	binary      func([]byte) string
}

func (l literal) render(t schema.DataType, v value.Value) (string, error) {
	switch val := v.(type) {
	case nil, value.Null:
		return "NULL", nil
	case value.Bool:
		return l.boolean(bool(val)), nil
	case value.Int:
		if t.Kind == schema.Date || t.Kind == schema.DateTime {
			return l.date(t, int64(val)), nil
		}
		return strconv.FormatInt(int64(val), 10), nil
	case value.Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", &schema.TypeCoercionError{Type: t, Value: v, Reason: "not a finite number"}
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case value.String:
		if t.Kind == schema.Binary {
			return l.binary([]byte(val)), nil
		}
		return l.quoteString(string(val)), nil
	case value.List, value.Object:
		data, err := value.Canonical(v)
		if err != nil {
			return "", &schema.TypeCoercionError{Type: t, Value: v, Reason: err.Error()}
		}
		return l.quoteString(string(data)), nil
	}
	return "", &schema.TypeCoercionError{Type: t, Value: v, Reason: "no SQL literal form"}
}

func numericBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func varcharLength(t schema.DataType) int {
	if t.Length > 0 {
		return t.Length
	}
	return 255
}

func hexBlob(b []byte) string { return "X'" + hex.EncodeToString(b) + "'" }

// SQLite stores booleans as 1/0 and dates as unix timestamps.
type SQLite struct{}

var sqliteLiterals = literal{
	quoteString: func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" },
	boolean:     numericBool,
	date:        func(_ schema.DataType, ts int64) string { return strconv.FormatInt(ts, 10) },
	binary:      hexBlob,
}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) QuoteLiteral(t schema.DataType, v value.Value) (string, error) {
	return sqliteLiterals.render(t, v)
}

func (SQLite) LikeOperator() string { return "LIKE" }
func (SQLite) LikeEscape() string   { return ` ESCAPE '\'` }

func (SQLite) LimitOffset(limit int, hasLimit bool, offset int) string {
	switch {
	case hasLimit && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case hasLimit:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
	}
	return ""
}

func (SQLite) MutationLimit() bool { return false }
func (SQLite) RowID() string       { return "rowid" }
func (SQLite) Returning() bool     { return false }

func (SQLite) ColumnType(t schema.DataType) string {
	switch t.Kind {
	case schema.Integer, schema.Boolean, schema.Date, schema.DateTime:
		return "INTEGER"
	case schema.Float:
		return "REAL"
	case schema.Binary:
		return "BLOB"
	}
	return "TEXT"
}

func (SQLite) SerialColumn() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

// MySQL renders dates as quoted strings and escapes with backslashes.
type MySQL struct{}

var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

var mysqlLiterals = literal{
	quoteString: func(s string) string { return "'" + mysqlEscaper.Replace(s) + "'" },
	boolean:     numericBool,
	date: func(t schema.DataType, ts int64) string {
		return "'" + t.FormatDate(ts) + "'"
	},
	binary: hexBlob,
}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQL) QuoteLiteral(t schema.DataType, v value.Value) (string, error) {
	return mysqlLiterals.render(t, v)
}

func (MySQL) LikeOperator() string { return "LIKE" }
func (MySQL) LikeEscape() string   { return ` ESCAPE '\\'` }

func (MySQL) LimitOffset(limit int, hasLimit bool, offset int) string {
	switch {
	case hasLimit && offset > 0:
		return fmt.Sprintf("LIMIT %d, %d", offset, limit)
	case hasLimit:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		// MySQL has no unbounded LIMIT; this is the documented idiom.
		return fmt.Sprintf("LIMIT %d, 18446744073709551615", offset)
	}
	return ""
}

func (MySQL) MutationLimit() bool { return true }
func (MySQL) RowID() string       { return "" }
func (MySQL) Returning() bool     { return false }

func (MySQL) ColumnType(t schema.DataType) string {
	switch t.Kind {
	case schema.Integer:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE"
	case schema.Boolean:
		return "TINYINT(1)"
	case schema.String:
		return fmt.Sprintf("VARCHAR(%d)", varcharLength(t))
	case schema.Date:
		return "DATE"
	case schema.DateTime:
		return "DATETIME"
	case schema.Binary:
		return "BLOB"
	case schema.UUID:
		return "CHAR(36)"
	case schema.Enum:
		if len(t.Values) > 0 {
			vals := make([]string, len(t.Values))
			for i, v := range t.Values {
				vals[i] = mysqlLiterals.quoteString(v)
			}
			return "ENUM(" + strings.Join(vals, ", ") + ")"
		}
	}
	return "TEXT"
}

func (MySQL) SerialColumn() string { return "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY" }

// Postgres quotes through lib/pq and matches LIKE case-insensitively.
type Postgres struct{}

// pgQuote drops the space pq puts before E'' strings.
func pgQuote(s string) string { return strings.TrimLeft(pq.QuoteLiteral(s), " ") }

var postgresLiterals = literal{
	quoteString: pgQuote,
	boolean: func(b bool) string {
		if b {
			return "TRUE"
		}
		return "FALSE"
	},
	date: func(t schema.DataType, ts int64) string {
		return pgQuote(t.FormatDate(ts))
	},
	binary: func(b []byte) string { return `'\x` + hex.EncodeToString(b) + `'::bytea` },
}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

func (Postgres) QuoteLiteral(t schema.DataType, v value.Value) (string, error) {
	return postgresLiterals.render(t, v)
}

func (Postgres) LikeOperator() string { return "ILIKE" }
func (Postgres) LikeEscape() string   { return ` ESCAPE '\'` }

func (Postgres) LimitOffset(limit int, hasLimit bool, offset int) string {
	switch {
	case hasLimit && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case hasLimit:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf("LIMIT ALL OFFSET %d", offset)
	}
	return ""
}

func (Postgres) MutationLimit() bool { return false }
func (Postgres) RowID() string       { return "ctid" }
func (Postgres) Returning() bool     { return true }

func (Postgres) ColumnType(t schema.DataType) string {
	switch t.Kind {
	case schema.Integer:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE PRECISION"
	case schema.Boolean:
		return "BOOLEAN"
	case schema.String:
		return fmt.Sprintf("VARCHAR(%d)", varcharLength(t))
	case schema.Date:
		return "DATE"
	case schema.DateTime:
		return "TIMESTAMP"
	case schema.Binary:
		return "BYTEA"
	case schema.UUID:
		return "UUID"
	}
	return "TEXT"
}

func (Postgres) SerialColumn() string { return "BIGSERIAL PRIMARY KEY" }
