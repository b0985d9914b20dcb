package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbal/internal/expr"
	"github.com/roach88/dbal/internal/schema"
	"github.com/roach88/dbal/internal/value"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E102", "unexpected end of input", map[string]int{"offset": 4})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E102", resp.Error.Code)
	assert.Equal(t, "unexpected end of input", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "query failed", map[string]string{"table": "users"}))
			assert.Contains(t, buf.String(), "Error [E001]: query failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Loaded %d record(s)", 3)
	assert.Empty(t, out.String())
	assert.Equal(t, "Loaded 3 record(s)\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("ignored")
	assert.Equal(t, "Loaded 3 record(s)\n", errOut.String())
}

func TestOutputFormatter_Rows(t *testing.T) {
	rows := []value.Object{
		{"id": value.Int(1), "name": value.String("foo")},
		{"id": value.Int(2), "name": value.Null{}},
	}

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Rows(rows))
	assert.Equal(t, "{\"id\":1,\"name\":\"foo\"}\n{\"id\":2,\"name\":null}\n(2 row(s))\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Rows(nil))
	var resp struct {
		Data struct {
			Rows  []map[string]any `json:"rows"`
			Count int              `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.NotNil(t, resp.Data.Rows)
	assert.Equal(t, 0, resp.Data.Count)
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	cause := &schema.UnknownFieldError{Field: "nope", Source: "users"}
	err := formatter.Fail(ExitFailure, cause)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "Error [E104]")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open", errors.New("refused")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: open: refused", wrapped.Error())
}

func TestErrorCode(t *testing.T) {
	parse := func(text string, args ...any) error {
		_, err := expr.E(text, args...)
		return err
	}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"lex", parse("id = $"), ErrCodeLex},
		{"parse", parse("id ="), ErrCodeParse},
		{"binding", parse("id = ?"), ErrCodeBinding},
		{"unknown field", &schema.UnknownFieldError{Field: "x"}, ErrCodeUnknownField},
		{"unsupported", &expr.UnsupportedOperationError{Operation: "join"}, ErrCodeUnsupported},
		{"load", &LoadError{Code: ErrCodeNotFound, Message: "missing"}, ErrCodeNotFound},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
