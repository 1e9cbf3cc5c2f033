package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// snapshot renders a result as the stable text form stored in golden files:
// the scenario name, the final stack depths, and every log entry in order.
func snapshot(name string, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "sizes: undo=%d redo=%d\n", result.Sizes.Undo, result.Sizes.Redo)
	fmt.Fprintf(&buf, "log:\n")
	for i, line := range result.Log {
		fmt.Fprintf(&buf, "  %d: %s\n", i, line)
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its final log and stack
// depths against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed: %v", scenario.Name, result.Errors)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshot(scenario.Name, result))
	return nil
}
