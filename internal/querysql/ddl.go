package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/dbal/internal/schema"
)

// CreateTable compiles a CREATE TABLE IF NOT EXISTS statement for def.
// A single serial integer primary key becomes the dialect's
// auto-increment column; unique keys become UNIQUE constraints.
func (c *Compiler) CreateTable(def schema.Definition) (string, error) {
	fields := def.Fields()
	if len(fields) == 0 {
		return "", fmt.Errorf("table %s declares no fields", def.Name())
	}
	serial, _, hasSerial := schema.SerialField(def)
	if typ, _ := def.TypeOf(serial); hasSerial && typ.Kind != schema.Integer {
		hasSerial = false
	}

	var cols []string
	for _, f := range fields {
		typ, _ := def.TypeOf(f)
		name := c.Dialect.QuoteIdentifier(f)
		if hasSerial && f == serial {
			cols = append(cols, name+" "+c.Dialect.SerialColumn())
			continue
		}
		col := name + " " + c.Dialect.ColumnType(typ)
		if !typ.Nullable {
			col += " NOT NULL"
		}
		if typ.Default != nil {
			lit, err := c.Dialect.QuoteLiteral(typ, typ.Default)
			if err != nil {
				return "", fmt.Errorf("default of %s: %w", f, err)
			}
			col += " DEFAULT " + lit
		}
		cols = append(cols, col)
	}

	if pk := def.PrimaryKey(); len(pk) > 0 && !hasSerial {
		cols = append(cols, "PRIMARY KEY ("+c.quoteList(pk)+")")
	}
	if keyed, ok := def.(interface{ Keys() []schema.Key }); ok {
		for _, k := range keyed.Keys() {
			if k.Unique {
				cols = append(cols, "UNIQUE ("+c.quoteList(k.Fields)+")")
			}
		}
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		c.Dialect.QuoteIdentifier(c.TableName(def.Name())),
		strings.Join(cols, ", ")), nil
}

// DropTable compiles a DROP TABLE IF EXISTS statement.
func (c *Compiler) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + c.Dialect.QuoteIdentifier(c.TableName(name))
}

func (c *Compiler) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = c.Dialect.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
