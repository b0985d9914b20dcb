package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dbal/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance harness",
		Long: `Run conformance scenarios on the in-memory and SQLite sources.

Every step's outcome is checked against its expectations and the two
sources must agree. The SQL each step compiles to in every dialect is
compared with golden/<scenario>.golden next to the scenario file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dbal test ./scenarios
  dbal test ./scenarios --filter "users*"
  dbal test ./scenarios --update
  dbal test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Running scenario: %s", file)
		sr := runScenario(ctx, file, opts.Update)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if formatter.JSON() {
		if err := reportJSON(formatter, result); err != nil {
			return err
		}
	} else {
		reportText(formatter, result)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles walks dir for .yaml and .yml files whose base name
// matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// Golden file states reported per scenario.
const (
	GoldenMatched = "matched"
	GoldenMissing = "missing"
	GoldenUpdated = "updated"
	GoldenStale   = "stale"
)

// runScenario runs one scenario and checks its compiled SQL against the
// golden file, rewriting the file instead when update is set.
func runScenario(ctx context.Context, file string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: filepath.Base(file), Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}
	}
	sr := ScenarioResult{Name: scenario.Name}

	result, err := harness.Run(ctx, scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Pass, sr.Errors = result.Pass, result.Errors

	snapshot, err := harness.CompileSnapshot(scenario)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("compile failed: %v", err))
		return sr
	}

	path := goldenPath(file)
	if update {
		if err := writeGolden(path, snapshot); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return sr
		}
		sr.Golden = GoldenUpdated
		return sr
	}

	golden, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		sr.Golden = GoldenMissing
	case err != nil:
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	case bytes.Equal(golden, []byte(snapshot)):
		sr.Golden = GoldenMatched
	default:
		sr.Golden = GoldenStale
		sr.Pass = false
		sr.Errors = append(sr.Errors, "compiled SQL does not match golden file (run with --update to regenerate)")
	}
	return sr
}

// goldenPath is golden/<name>.golden beside the scenario file.
func goldenPath(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(file), "golden", name+".golden")
}

func writeGolden(path, snapshot string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, []byte(snapshot), 0o644)
}

func reportJSON(f *OutputFormatter, result TestResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total),
		}
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func reportText(f *OutputFormatter, result TestResult) {
	if result.Total == 0 {
		fmt.Fprintln(f.Writer, "No scenarios found.")
		return
	}
	for _, s := range result.Scenarios {
		mark := passMark
		if !s.Pass {
			mark = failMark
		}
		line := mark + " " + s.Name
		if s.Golden == GoldenUpdated {
			line += " (golden updated)"
		}
		fmt.Fprintln(f.Writer, line)
		for _, e := range s.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", e)
		}
	}
	fmt.Fprintf(f.Writer, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
