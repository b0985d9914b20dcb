package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `name: minimal
description: one filtered read
schema: |
  table: users: {
  	primary_key: ["id"]
  	fields: {
  		id: "integer"
  		name: "string"
  	}
  }
table: users
rows:
  - {id: 1, name: foo}
  - {id: 2, name: bar}
steps:
  - op: read
    query:
      where: "name = ?"
      args: [bar]
    expect:
      rows:
        - {id: 2}
`

const failingScenario = `name: failing
description: count expectation that does not hold
schema: |
  table: users: {
  	primary_key: ["id"]
  	fields: {id: "integer"}
  }
table: users
rows:
  - {id: 1}
steps:
  - op: count
    expect:
      count: 5
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeFile(t, filepath.Join(dir, name), content)
	}
	return dir
}

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(testOptions("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NonexistentDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(testOptions("text")), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, NewTestCommand(testOptions("text")), dir)
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	out, err = execute(t, NewTestCommand(testOptions("json")), dir)
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommand_Passing(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"minimal.yaml": minimalScenario})

	out, err := execute(t, NewTestCommand(testOptions("text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ minimal")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_Golden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"minimal.yaml": minimalScenario})
	golden := filepath.Join(dir, "golden", "minimal.golden")

	out, err := execute(t, NewTestCommand(testOptions("text")), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "minimal (golden updated)")

	content, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"name" = 'bar'`)

	_, err = execute(t, NewTestCommand(testOptions("text")), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0644))
	out, err = execute(t, NewTestCommand(testOptions("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ minimal")
	assert.Contains(t, out, "compiled SQL does not match golden file")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"minimal.yaml": minimalScenario,
		"failing.yaml": failingScenario,
	})

	out, err := execute(t, NewTestCommand(testOptions("text")), dir, "--filter", "min*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "failing")

	_, err = execute(t, NewTestCommand(testOptions("text")), dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_JSONFailure(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"minimal.yaml": minimalScenario,
		"failing.yaml": failingScenario,
	})

	out, err := execute(t, NewTestCommand(testOptions("json")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	for _, s := range resp.Data.Scenarios {
		if s.Name == "minimal" {
			assert.Equal(t, GoldenMissing, s.Golden)
		}
	}
}
