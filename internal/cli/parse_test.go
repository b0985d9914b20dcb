package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	out, err := execute(t, NewParseCommand(testOptions("text")), "name = ? and age >= %i", "--arg", "foo", "--arg", "18")
	require.NoError(t, err)
	assert.Contains(t, out, `expression: name = "foo" and age >= 18`)
	assert.Contains(t, out, `sqlite: "name" = 'foo' AND "age" >= 18`)
	assert.Contains(t, out, `"node": "infix"`)
}

func TestParseCommandDialect(t *testing.T) {
	out, err := execute(t, NewParseCommand(testOptions("text")), "name like ?", "--arg", "fo%", "--dialect", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, `postgres: "name" ILIKE 'fo%'`)
}

func TestParseCommandKeepsPlaceholders(t *testing.T) {
	out, err := execute(t, NewParseCommand(testOptions("json")), "id in %i()")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Expression string         `json:"expression"`
			SQL        string         `json:"sql"`
			AST        map[string]any `json:"ast"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data.SQL)
	assert.Equal(t, "in", resp.Data.AST["op"])
	right := resp.Data.AST["right"].(map[string]any)
	assert.Equal(t, "placeholder", right["node"])
	assert.Equal(t, "i", right["tag"])
	assert.Equal(t, true, right["list"])
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
		exit     int
	}{
		{"lex", []string{"id = $"}, ErrCodeLex, ExitFailure},
		{"parse", []string{"id ="}, ErrCodeParse, ExitFailure},
		{"binding", []string{"id = %i", "--arg", "x"}, ErrCodeBinding, ExitFailure},
		{"dialect", []string{"id = 1", "--dialect", "oracle"}, ErrCodeGeneric, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewParseCommand(testOptions("text")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}
