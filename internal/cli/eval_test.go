package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbal/internal/schema"
)

const usersData = `
- {id: 1, name: foo, group: admin}
- {id: 2, name: bar, group: user}
- {id: 3, name: foobar, group: user}
- {id: 4, name: foo, group: admin}
- {id: 5, name: baz, group: user}
- {id: 6, name: foobaz, group: user}
`

func writeData(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.yaml")
	writeFile(t, path, content)
	return path
}

func TestEvalCommand(t *testing.T) {
	path := writeData(t, usersData)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "filter and order",
			args: []string{"--where", "group = ?", "--arg", "user", "--order-by", "id", "--desc", "--limit", "2"},
			want: "{\"group\":\"user\",\"id\":6,\"name\":\"foobaz\"}\n{\"group\":\"user\",\"id\":5,\"name\":\"baz\"}\n(2 row(s))\n",
		},
		{
			name: "like",
			args: []string{"--where", "name like ?", "--arg", "fo%", "--count"},
			want: "4\n",
		},
		{
			name: "grouping",
			args: []string{"--group-by", "group", "--count"},
			want: "2\n",
		},
		{
			name: "offset",
			args: []string{"--order-by", "id", "--offset", "4", "--select", "n=name"},
			want: "{\"n\":\"baz\"}\n{\"n\":\"foobaz\"}\n(2 row(s))\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewEvalCommand(testOptions("text")), append([]string{path}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEvalCommandInlineSchema(t *testing.T) {
	path := writeData(t, `
table: users
schema: |
  table: users: {
  	primary_key: ["id"]
  	fields: {
  		id: "integer"
  		name: "string"
  		active: {type: "boolean", default: true}
  	}
  }
rows:
  - {id: 1, name: foo}
  - {id: 2, name: bar, active: false}
`)

	out, err := execute(t, NewEvalCommand(testOptions("json")), path, "--where", "active = %b", "--arg", "true")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Rows  []map[string]any `json:"rows"`
			Count int              `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Data.Count)
	assert.Equal(t, "foo", resp.Data.Rows[0]["name"])
	assert.Equal(t, true, resp.Data.Rows[0]["active"])
}

func TestEvalCommandSchemaDir(t *testing.T) {
	dir := writeSchema(t)
	path := writeData(t, usersData)

	out, err := execute(t, NewEvalCommand(testOptions("text")), path, "--schema", dir, "--table", "users", "--where", "id <= 2", "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, NewEvalCommand(testOptions("text")), path, "--schema", dir, "--table", "users", "--where", "age > 1")
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeUnknownField+"]")
}

func TestEvalCommandErrors(t *testing.T) {
	_, err := execute(t, NewEvalCommand(testOptions("text")), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	path := writeData(t, "- {id: 1, name: foo}\n- {id: two, name: bar}\n")
	out, err := execute(t, NewEvalCommand(testOptions("text")), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "field id mixes integer and string values")
}

func TestInferDefinition(t *testing.T) {
	def, err := inferDefinition("data", []map[string]any{
		{"id": 1, "score": 2, "note": nil},
		{"id": 2, "score": 2.5, "tags": []any{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "note", "score", "tags"}, def.Fields())

	kinds := map[string]schema.Kind{}
	for _, f := range def.Fields() {
		typ, _ := def.TypeOf(f)
		assert.True(t, typ.Nullable, f)
		kinds[f] = typ.Kind
	}
	assert.Equal(t, map[string]schema.Kind{
		"id":    schema.Integer,
		"note":  schema.String,
		"score": schema.Float,
		"tags":  schema.Object,
	}, kinds)
}
