package undo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flipbook/internal/animator"
	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/storage"
)

func newTestEngine(t *testing.T) *Animation {
	t.Helper()
	n := 0
	tokens := func() string {
		n++
		return fmt.Sprintf("token-%d", n)
	}
	a := New(animator.New(storage.NewInMemory()), tokens)
	t.Cleanup(func() { a.Close() })
	return a
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// waitSizes reads the follower until the wanted depths arrive. Intermediate
// snapshots may be coalesced away.
func waitSizes(t *testing.T, ctx context.Context, f *SizeFollower, want Sizes) {
	t.Helper()
	for {
		got, ok, err := f.Next(ctx)
		require.NoError(t, err, "waiting for stack sizes %+v", want)
		require.True(t, ok)
		if got == want {
			return
		}
	}
}

// drawing returns one complete undoable action: a layer with a keyframe, a
// brush selection and three strokes, closed by a FinishAction.
func drawing() []edit.AnimationEdit {
	stroke := func() edit.AnimationEdit {
		return edit.Layer{LayerID: 2, Edit: edit.Paint{
			When: 442 * time.Millisecond,
			Edit: edit.BrushStroke{
				Element: edit.Unassigned(),
				Points:  []edit.RawPoint{{X: 1, Y: 2, Pressure: 1}, {X: 3, Y: 4, Pressure: 0.5}},
			},
		}}
	}
	return []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: 2},
		edit.Layer{LayerID: 2, Edit: edit.AddKeyFrame{When: 0}},
		edit.Layer{LayerID: 2, Edit: edit.Paint{
			When: 442 * time.Millisecond,
			Edit: edit.SelectBrush{
				Element:    edit.Unassigned(),
				Definition: edit.BrushDefinition{Kind: edit.BrushInk, Ink: edit.InkDefinition{MinWidth: 1, MaxWidth: 4, ScaleUpDistance: 30}},
				Style:      edit.StyleDraw,
			},
		}},
		edit.Layer{LayerID: 2, Edit: edit.Paint{
			When: 442 * time.Millisecond,
			Edit: edit.SetBrushProperties{Element: edit.Unassigned(), Properties: edit.DefaultBrushProperties()},
		}},
		stroke(), stroke(), stroke(),
		edit.Undo{Edit: edit.FinishAction{}},
	}
}

func TestSizes_FollowTheUndoRedoCycle(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	got, ok, err := f.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Sizes{Undo: 0, Redo: 0}, got)

	require.NoError(t, a.PerformEdits(ctx, drawing()))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	require.NoError(t, a.Undo(ctx))
	assert.Equal(t, Sizes{Undo: 0, Redo: 1}, a.StackSizes())

	require.NoError(t, a.Redo(ctx))
	assert.Equal(t, Sizes{Undo: 1, Redo: 0}, a.StackSizes())
}

func TestUndoRedo_RestoreAnimationState(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, drawing()))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	frame, err := a.GetFrameAtTime(ctx, 2, 442*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, frame.Elements, 5)

	require.NoError(t, a.Undo(ctx))

	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers, "undo removes the drawn layer")

	require.NoError(t, a.Redo(ctx))

	frame, err = a.GetFrameAtTime(ctx, 2, 442*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, frame.Elements, 5, "redo restores the drawing")

	// Undo works again after the redo.
	require.NoError(t, a.Undo(ctx))
	layers, err = a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers)
}

func TestUndo_NeverShortensTheLog(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, drawing()))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	before, err := a.LogLength(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Undo(ctx))

	after, err := a.LogLength(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before, "undo appends inverse edits")
}

func TestUndo_EmptyStacks(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	err := a.Undo(ctx)
	require.Error(t, err)
	assert.Equal(t, Failure{Reason: edit.NothingToUndo}, err)

	err = a.Redo(ctx)
	require.Error(t, err)
	assert.Equal(t, Failure{Reason: edit.NothingToRedo}, err)
}

func TestUndo_ExhaustsAndRefuses(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, drawing()))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	require.NoError(t, a.Undo(ctx))
	err := a.Undo(ctx)
	assert.Equal(t, Failure{Reason: edit.NothingToUndo}, err)
	assert.Equal(t, Sizes{Undo: 0, Redo: 1}, a.StackSizes())
}

func TestUndo_GroupsBatchesUntilFinishAction(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.AddNewLayer{LayerID: 1}}))
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.AddNewLayer{LayerID: 2}}))
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.Undo{Edit: edit.FinishAction{}}}))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	require.NoError(t, a.Undo(ctx))

	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers, "both batches belong to the one action")
}

func TestNewAction_ClearsTheRedoStack(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: 1},
		edit.Undo{Edit: edit.FinishAction{}},
	}))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	require.NoError(t, a.Undo(ctx))
	assert.Equal(t, Sizes{Undo: 0, Redo: 1}, a.StackSizes())

	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: 2},
		edit.Undo{Edit: edit.FinishAction{}},
	}))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	err := a.Redo(ctx)
	assert.Equal(t, Failure{Reason: edit.NothingToRedo}, err)
}

func TestUndoRedo_TwoActionsCycleInOrder(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: 1},
		edit.Undo{Edit: edit.FinishAction{}},
	}))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: 2},
		edit.Undo{Edit: edit.FinishAction{}},
	}))
	waitSizes(t, ctx, f, Sizes{Undo: 2, Redo: 0})

	// Two undos peel the actions off newest-first.
	require.NoError(t, a.Undo(ctx))
	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, layers)

	require.NoError(t, a.Undo(ctx))
	layers, err = a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers)
	assert.Equal(t, Sizes{Undo: 0, Redo: 2}, a.StackSizes())

	// Two redos restore them in their original order.
	require.NoError(t, a.Redo(ctx))
	layers, err = a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, layers)

	require.NoError(t, a.Redo(ctx))
	layers, err = a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, layers)
	assert.Equal(t, Sizes{Undo: 2, Redo: 0}, a.StackSizes())

	// And the cycle keeps working: the restored actions undo again.
	require.NoError(t, a.Undo(ctx))
	layers, err = a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, layers)
}

func TestUndo_TakesBackActionSettledBeforeTheSentinel(t *testing.T) {
	ctx := testContext(t)

	// An action that completes while the undo call is getting under way:
	// the sentinel settles it first, so it is the one undone.
	var a *Animation
	injected := false
	n := 0
	a = New(animator.New(storage.NewInMemory()), func() string {
		if !injected {
			injected = true
			if err := a.PerformEdits(ctx, []edit.AnimationEdit{
				edit.AddNewLayer{LayerID: 9},
				edit.Undo{Edit: edit.FinishAction{}},
			}); err != nil {
				t.Errorf("commit while undo is starting: %v", err)
			}
		}
		n++
		return fmt.Sprintf("token-%d", n)
	})
	t.Cleanup(func() { a.Close() })

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: 1},
		edit.Undo{Edit: edit.FinishAction{}},
	}))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	require.NoError(t, a.Undo(ctx))
	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, layers, "the freshly settled action is the one undone")

	require.NoError(t, a.Undo(ctx))
	layers, err = a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers)
	assert.Equal(t, Sizes{Undo: 0, Redo: 2}, a.StackSizes())
}

func TestUndo_EmptyStackStillDrains(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	sub := a.RetiredEdits()
	defer sub.Close()

	err := a.Undo(ctx)
	assert.Equal(t, Failure{Reason: edit.NothingToUndo}, err)

	// The sentinel is published before the stacks are inspected, so it
	// retires even when there is nothing to undo.
	retired, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, retired.Committed, 1)
	u, isSignal := retired.Committed[0].(edit.Undo)
	require.True(t, isSignal)
	_, isSentinel := u.Edit.(edit.PrepareToUndo)
	assert.True(t, isSentinel)
}

func TestUndo_RefusesWhenLaterEditsExist(t *testing.T) {
	a := newTestEngine(t)
	ctx := testContext(t)

	f := a.FollowSizes()
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: 1},
		edit.Undo{Edit: edit.FinishAction{}},
	}))
	waitSizes(t, ctx, f, Sizes{Undo: 1, Redo: 0})

	// Open-ended edits after the action: the log tail no longer matches.
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.AddNewLayer{LayerID: 2}}))

	err := a.Undo(ctx)
	require.Error(t, err)
	assert.Equal(t, Failure{Reason: edit.OriginalActionsDoNotMatch}, err)
	assert.Equal(t, 1, a.StackSizes().Undo, "failed undo restores the popped action")

	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, layers)
}
