package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersCUE = `
table: users: {
	primary_key: ["id"]
	fields: {
		id: {type: "integer", serial: true}
		name: "string"
		group: {type: "string", nullable: true}
	}
}
`

// writeSchema writes the users schema into a new directory.
func writeSchema(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "schema")
	writeFile(t, filepath.Join(dir, "users.cue"), usersCUE)
	return dir
}

func TestCompileCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "where",
			args: []string{"users", "--where", "name = ?", "--arg", "bar"},
			want: `SELECT * FROM "users" WHERE "name" = 'bar'`,
		},
		{
			name: "order and limit",
			args: []string{"users", "--where", "group = ?", "--arg", "user", "--order-by", "id", "--desc", "--limit", "2"},
			want: `SELECT * FROM "users" WHERE "group" = 'user' ORDER BY "id" DESC LIMIT 2`,
		},
		{
			name: "mysql",
			args: []string{"users", "--where", "name = ?", "--arg", "bar", "--dialect", "mysql"},
			want: "SELECT * FROM `users` WHERE `name` = 'bar'",
		},
		{
			name: "grouped projection",
			args: []string{"users", "--group-by", "group", "--having", "group = ?", "--having-arg", "user", "--select", "g=group"},
			want: `SELECT "group" AS "g" FROM "users" GROUP BY "group" HAVING "group" = 'user'`,
		},
		{
			name: "count",
			args: []string{"users", "--where", "name = ?", "--arg", "bar", "--order-by", "id", "--limit", "3", "--count"},
			want: `SELECT COUNT(*) FROM "users" WHERE "name" = 'bar'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewCompileCommand(testOptions("text")), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestCompileCommandTablePrefix(t *testing.T) {
	opts := testOptions("text")
	opts.Config.TablePrefix = "app_"
	out, err := execute(t, NewCompileCommand(opts), "users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM \"app_users\"\n", out)
}

func TestCompileCommandJSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testOptions("json")), "users", "--dialect", "postgres", "--where", "name like ?", "--arg", "fo%")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "postgres", resp.Data.Dialect)
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" ILIKE 'fo%' ESCAPE '\'`, resp.Data.SQL)
}

func TestCompileCommandSchemaValidation(t *testing.T) {
	dir := writeSchema(t)

	out, err := execute(t, NewCompileCommand(testOptions("text")), "users", "--schema", dir, "--where", "name = ?", "--arg", "foo")
	require.NoError(t, err)
	assert.Contains(t, out, `WHERE "name" = 'foo'`)

	out, err = execute(t, NewCompileCommand(testOptions("text")), "users", "--schema", dir, "--where", "nope = 1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeUnknownField+"]")

	out, err = execute(t, NewCompileCommand(testOptions("text")), "posts", "--schema", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `table "posts" is not defined`)
}

func TestCompileCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"parse error", []string{"users", "--where", "name ="}, ErrCodeParse},
		{"missing argument", []string{"users", "--where", "name = ?"}, ErrCodeBinding},
		{"bad argument", []string{"users", "--where", "id = ?", "--arg", "[1"}, ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewCompileCommand(testOptions("text")), tt.args...)
			require.Error(t, err)
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}

	_, err := execute(t, NewCompileCommand(testOptions("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
