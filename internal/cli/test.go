package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flipbook/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestData holds the overall test command output.
type TestData struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>...",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios against a fresh in-memory animation.

Each scenario performs edit batches, undo and redo steps, and asserts on
the resulting edit log and animation state.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - command error (invalid paths, unreadable scenarios)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name matches this glob")

	return cmd
}

func runScenarios(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	files, err := collectScenarioFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	out := cmd.OutOrStdout()
	data := TestData{}
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "load scenario", err)
		}
		if opts.Filter != "" {
			matched, err := filepath.Match(opts.Filter, scenario.Name)
			if err != nil {
				return WrapExitError(ExitCommandError, "bad --filter pattern", err)
			}
			if !matched {
				continue
			}
		}

		result, err := harness.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run scenario %s", scenario.Name), err)
		}
		sr := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
		data.Scenarios = append(data.Scenarios, sr)
		if result.Pass {
			data.Passed++
			if opts.Format != "json" {
				fmt.Fprintf(out, "PASS  %s\n", scenario.Name)
			}
		} else {
			data.Failed++
			if opts.Format != "json" {
				fmt.Fprintf(out, "FAIL  %s\n", scenario.Name)
				for _, msg := range result.Errors {
					fmt.Fprintf(out, "      %s\n", msg)
				}
			}
		}
	}

	f := &Formatter{Format: opts.Format, Writer: out, ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if handled, err := f.JSON(data); handled {
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%d passed, %d failed\n", data.Passed, data.Failed)
	}

	if data.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", data.Failed))
	}
	return nil
}

// collectScenarioFiles expands the given paths: directories contribute their
// .yaml and .yml files, sorted by name.
func collectScenarioFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "stat scenario path", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read scenario directory", err)
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
				found = append(found, filepath.Join(path, name))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
