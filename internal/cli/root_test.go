package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbal/internal/config"
)

// testOptions returns root options with an in-memory SQLite configuration,
// so commands never read config files or the environment.
func testOptions(format string) *RootOptions {
	return &RootOptions{
		Format: format,
		Config: &config.Config{
			Driver:     "sqlite",
			DSN:        ":memory:",
			Dialect:    "sqlite",
			SchemaDir:  "",
			ParseCache: 16,
			LogLevel:   "warn",
		},
	}
}

// execute runs cmd with args and returns its standard output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dbal", cmd.Use)
	assert.Contains(t, cmd.Long, "compile them to SQL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"parse", "compile", "eval", "query", "validate", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestSelectionFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"compile", "eval", "query"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range []string{"where", "arg", "order-by", "desc", "limit", "offset", "group-by", "having", "select", "distinct", "count"} {
				assert.NotNil(t, sub.Flags().Lookup(flag), "flag %s", flag)
			}
			assert.Equal(t, "-1", sub.Flags().Lookup("limit").DefValue)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(t, cmd, "--format", "xml", "parse", "id = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "dbal.yaml")
	writeFile(t, path, "dialect: mysql\n")

	cmd := NewRootCommand()
	out, err := execute(t, cmd, "--config", path, "parse", "name = ?", "--arg", "foo")
	require.NoError(t, err)
	assert.Contains(t, out, "mysql: `name` = 'foo'")
}

func TestRootOptionsParserIsShared(t *testing.T) {
	opts := testOptions("text")
	p1, err := opts.Parser()
	require.NoError(t, err)
	p2, err := opts.Parser()
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}
