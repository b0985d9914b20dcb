package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

// Introspect builds a definition from the live columns of a table. Only
// SQLite is supported.
func (d *DB) Introspect(ctx context.Context, table string) (*schema.Table, error) {
	if d.Dialect().Name() != "sqlite" {
		return nil, &expr.UnsupportedOperationError{
			Operation: "introspect on " + d.Dialect().Name(),
		}
	}
	name := d.compiler.TableName(table)
	rows, err := d.Query(ctx, "PRAGMA table_info("+d.Dialect().QuoteIdentifier(name)+")")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %s does not exist", name)
	}

	def := schema.NewTable(table)
	type pkCol struct {
		name string
		pos  int64
	}
	var pks []pkCol
	for _, row := range rows {
		col := fmt.Sprint(row["name"])
		typ := sqliteKind(fmt.Sprint(row["type"]))
		if notNull, _ := row["notnull"].(int64); notNull == 0 {
			typ = typ.AsNullable()
		}
		pos, _ := row["pk"].(int64)
		if pos > 0 {
			pks = append(pks, pkCol{col, pos})
			if typ.Kind == schema.Integer {
				typ = typ.AsSerial()
			}
		}
		if dflt, ok := row["dflt_value"].(string); ok {
			if v, err := defaultValue(typ, dflt); err == nil {
				typ = typ.WithDefault(v)
			}
		}
		def.AddField(col, typ)
	}

	pk := make([]string, len(pks))
	for _, c := range pks {
		pk[c.pos-1] = c.name
	}
	if len(pk) > 1 {
		// Only a lone INTEGER PRIMARY KEY aliases the rowid.
		for _, f := range pk {
			typ, _ := def.TypeOf(f)
			typ.Serial = false
			def.AddField(f, typ)
		}
	}
	if len(pk) > 0 {
		def.SetPrimaryKey(pk...)
	}
	return def, nil
}

// sqliteKind maps a declared column type to a kind using SQLite's type
// affinity rules.
func sqliteKind(declared string) schema.DataType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return schema.TypeFor(schema.Integer)
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"):
		return schema.TypeFor(schema.String)
	case strings.Contains(t, "TEXT"):
		return schema.TypeFor(schema.Text)
	case strings.Contains(t, "BLOB"), t == "":
		return schema.TypeFor(schema.Binary)
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return schema.TypeFor(schema.Float)
	case strings.Contains(t, "BOOL"):
		return schema.TypeFor(schema.Boolean)
	case strings.Contains(t, "DATETIME"), strings.Contains(t, "TIMESTAMP"):
		return schema.TypeFor(schema.DateTime)
	case strings.Contains(t, "DATE"):
		return schema.TypeFor(schema.Date)
	}
	return schema.TypeFor(schema.Float)
}

// defaultValue parses a column default as reported by PRAGMA table_info.
func defaultValue(typ schema.DataType, dflt string) (value.Value, error) {
	if strings.EqualFold(dflt, "NULL") {
		return value.Null{}, nil
	}
	if len(dflt) >= 2 && dflt[0] == '\'' && dflt[len(dflt)-1] == '\'' {
		dflt = strings.ReplaceAll(dflt[1:len(dflt)-1], "''", "'")
	}
	return typ.Convert(value.String(dflt))
}
