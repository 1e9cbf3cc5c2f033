package harness

import (
	"context"
	"fmt"

	"github.com/sanity-io/litter"

	"github.com/roach88/flipbook/internal/undo"
)

// checkAssertion evaluates one assertion against the finished run. Failure
// messages include a dump of the offending state so a failing scenario can be
// read without re-running it under a debugger.
func checkAssertion(ctx context.Context, anim *undo.Animation, result *Result, a Assertion) error {
	switch a.Type {
	case AssertLogLength:
		if len(result.Log) != a.Count {
			return fmt.Errorf("log has %d entries, want %d:\n%s",
				len(result.Log), a.Count, litter.Sdump(result.Log))
		}
		return nil

	case AssertLogContains:
		for _, line := range result.Log {
			if line == a.Encoded {
				return nil
			}
		}
		return fmt.Errorf("log does not contain %q:\n%s", a.Encoded, litter.Sdump(result.Log))

	case AssertFrameElements:
		at, err := stepDuration(a.At)
		if err != nil {
			return err
		}
		frame, err := anim.GetFrameAtTime(ctx, a.Layer, at)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if len(frame.Elements) != a.Count {
			return fmt.Errorf("frame at %s on layer %d has %d elements, want %d:\n%s",
				at, a.Layer, len(frame.Elements), a.Count, litter.Sdump(frame.Elements))
		}
		return nil

	case AssertLayers:
		layers, err := anim.LayerIDs(ctx)
		if err != nil {
			return fmt.Errorf("read layers: %w", err)
		}
		want := make([]uint64, len(a.Layers))
		for i, id := range a.Layers {
			want[i] = uint64(id)
		}
		if !equalLayers(layers, want) {
			return fmt.Errorf("layers are %v, want %v", layers, want)
		}
		return nil

	case AssertStackSizes:
		want := undo.Sizes{Undo: a.Undo, Redo: a.Redo}
		if result.Sizes != want {
			return fmt.Errorf("stack sizes are %+v, want %+v", result.Sizes, want)
		}
		return nil

	case AssertSize:
		w, h, err := anim.Size(ctx)
		if err != nil {
			return fmt.Errorf("read size: %w", err)
		}
		if w != a.Width || h != a.Height {
			return fmt.Errorf("size is %gx%g, want %gx%g", w, h, a.Width, a.Height)
		}
		return nil

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func equalLayers(got, want []uint64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
