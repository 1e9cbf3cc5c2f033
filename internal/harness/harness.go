// Package harness runs conformance scenarios against a full animation stack:
// an in-memory backend, the edit log, the animator and the undo engine.
//
// Scenarios are YAML files describing edit batches, undo and redo steps, and
// assertions on the final log and state. Every run uses a fresh in-memory
// store and a fixed undo token, so element ids and log contents are
// deterministic and can be compared against golden files.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/flipbook/internal/animator"
	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/encode"
	"github.com/roach88/flipbook/internal/storage"
	"github.com/roach88/flipbook/internal/testutil"
	"github.com/roach88/flipbook/internal/undo"
)

// stepTimeout bounds each flow step; a scenario that hangs is a failure, not
// a stuck test run.
const stepTimeout = 30 * time.Second

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion succeeded.
	Pass bool

	// Log holds the final edit log, one encoded edit per entry, in order.
	Log []string

	// Sizes holds the final undo and redo stack depths.
	Sizes undo.Sizes

	// Errors lists what failed. Empty when Pass is true.
	Errors []string
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario against a fresh animation and evaluates its
// assertions. A non-nil error means the scenario itself could not be run;
// assertion failures are reported in the result instead.
func Run(s *Scenario) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	tokens := testutil.NewFixedTokens(s.Token)
	anim := undo.New(animator.New(storage.NewInMemory()), tokens.Next)
	defer anim.Close()

	follower := anim.FollowSizes()
	result := &Result{Pass: true}

	for i, step := range s.Setup {
		if err := runStep(ctx, anim, follower, step); err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := runStep(ctx, anim, follower, step); err != nil {
			result.addError("flow step %d: %v", i, err)
			break
		}
	}

	if err := captureLog(ctx, anim, result); err != nil {
		return nil, err
	}
	result.Sizes = anim.StackSizes()

	for i, assertion := range s.Assertions {
		if err := checkAssertion(ctx, anim, result, assertion); err != nil {
			result.addError("assertion %d (%s): %v", i, assertion.Type, err)
		}
	}
	return result, nil
}

func runStep(ctx context.Context, anim *undo.Animation, follower *undo.SizeFollower, step FlowStep) error {
	switch {
	case step.Undo:
		return checkStepOutcome(anim.Undo(ctx), step.ExpectFailure)
	case step.Redo:
		return checkStepOutcome(anim.Redo(ctx), step.ExpectFailure)
	default:
		batch := make([]edit.AnimationEdit, len(step.Edits))
		finishes := false
		for i, es := range step.Edits {
			e, err := es.edit()
			if err != nil {
				return err
			}
			batch[i] = e
			if es.Op == "finish" {
				finishes = true
			}
		}
		wantUndo := anim.StackSizes().Undo + 1
		if err := anim.PerformEdits(ctx, batch); err != nil {
			return err
		}
		if err := anim.LastError(); err != nil {
			return fmt.Errorf("batch left an error behind: %w", err)
		}
		if finishes {
			// The action commits on the follow goroutine; wait for it so
			// subsequent undo steps see it.
			return waitForSizes(ctx, follower, undo.Sizes{Undo: wantUndo, Redo: 0})
		}
		return nil
	}
}

func checkStepOutcome(err error, expectFailure string) error {
	if expectFailure == "" {
		return err
	}
	if err == nil {
		return fmt.Errorf("expected failure %s, step succeeded", expectFailure)
	}
	failure, ok := err.(undo.Failure)
	if !ok {
		return fmt.Errorf("expected failure %s, got: %w", expectFailure, err)
	}
	if failure.Reason.String() != expectFailure {
		return fmt.Errorf("expected failure %s, got %s", expectFailure, failure.Reason)
	}
	return nil
}

func waitForSizes(ctx context.Context, follower *undo.SizeFollower, want undo.Sizes) error {
	for {
		got, ok, err := follower.Next(ctx)
		if err != nil {
			return fmt.Errorf("waiting for stack sizes %+v: %w", want, err)
		}
		if !ok {
			return fmt.Errorf("engine stopped while waiting for stack sizes %+v", want)
		}
		if got == want {
			return nil
		}
	}
}

// captureLog reads the whole edit log and re-encodes each entry into the
// canonical single-edit form used for golden comparison.
func captureLog(ctx context.Context, anim *undo.Animation, result *Result) error {
	length, err := anim.LogLength(ctx)
	if err != nil {
		return fmt.Errorf("read log length: %w", err)
	}
	stream := anim.ReadEditLog(0, length)
	defer stream.Close()
	for {
		e, ok, err := stream.Next(ctx)
		if err != nil {
			return fmt.Errorf("read edit log: %w", err)
		}
		if !ok {
			return nil
		}
		result.Log = append(result.Log, encode.Edit(e))
	}
}
