package animator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/encode"
	"github.com/roach88/flipbook/internal/storage"
)

func newTestAnimation(t *testing.T) *Animation {
	t.Helper()
	a := New(storage.NewInMemory())
	t.Cleanup(func() { a.Close() })
	return a
}

// paintScenario is the canonical drawing session: one layer, one keyframe,
// a brush selection and three strokes at 442ms.
func paintScenario() []edit.AnimationEdit {
	stroke := func() edit.AnimationEdit {
		return edit.Layer{LayerID: 2, Edit: edit.Paint{
			When: 442 * time.Millisecond,
			Edit: edit.BrushStroke{
				Element: edit.Unassigned(),
				Points:  []edit.RawPoint{{X: 10, Y: 10, Pressure: 1}, {X: 20, Y: 15, Pressure: 0.8}},
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
				Definition: edit.BrushDefinition{Kind: edit.BrushInk, Ink: edit.InkDefinition{MinWidth: 1, MaxWidth: 5, ScaleUpDistance: 40}},
				Style:      edit.StyleDraw,
			},
		}},
		edit.Layer{LayerID: 2, Edit: edit.Paint{
			When: 442 * time.Millisecond,
			Edit: edit.SetBrushProperties{
				Element:    edit.Unassigned(),
				Properties: edit.DefaultBrushProperties(),
			},
		}},
		stroke(), stroke(), stroke(),
	}
}

func TestPerformEdits_FrameAtTime(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	require.NoError(t, a.PerformEdits(ctx, paintScenario()))

	frame, err := a.GetFrameAtTime(ctx, 2, 442*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, frame.InFrame)
	assert.Len(t, frame.Elements, 5, "brush selection, properties, and three strokes")

	// Commit order: ids strictly increase.
	for i := 1; i < len(frame.Elements); i++ {
		prev, _ := frame.Elements[i-1].ID.Value()
		cur, _ := frame.Elements[i].ID.Value()
		assert.Greater(t, cur, prev, "elements out of commit order")
	}

	// The keyframe at 0 contains 60ms, but nothing has appeared yet.
	frame, err = a.GetFrameAtTime(ctx, 2, 60*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, frame.InFrame)
	assert.Empty(t, frame.Elements)
}

func TestPerformEdits_AssignsIDsBeforeCommit(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	require.NoError(t, a.PerformEdits(ctx, paintScenario()))

	length, err := a.LogLength(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(7), length)

	stream := a.ReadEditLog(0, length)
	defer stream.Close()

	seen := map[int64]bool{}
	for {
		e, ok, err := stream.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		layer, ok := e.(edit.Layer)
		if !ok {
			continue
		}
		paint, ok := layer.Edit.(edit.Paint)
		if !ok {
			continue
		}
		var el edit.ElementID
		switch v := paint.Edit.(type) {
		case edit.SelectBrush:
			el = v.Element
		case edit.SetBrushProperties:
			el = v.Element
		case edit.BrushStroke:
			el = v.Element
		}
		id, assigned := el.Value()
		require.True(t, assigned, "committed edit re-read with unassigned id")
		assert.False(t, seen[id], "element id %d reused", id)
		seen[id] = true
	}
	assert.Len(t, seen, 5)
}

func TestReverseBatch_RestoresPriorState(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	sub := a.RetiredEdits()
	defer sub.Close()

	require.NoError(t, a.PerformEdits(ctx, paintScenario()))

	retired, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, retired.Committed, 7)
	require.NotEmpty(t, retired.Reverse)

	// Performing the reverse batch undoes the whole scenario.
	require.NoError(t, a.PerformEdits(ctx, retired.Reverse))

	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers)

	frame, err := a.GetFrameAtTime(ctx, 2, 442*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, frame.InFrame)
	assert.Empty(t, frame.Elements)

	// And the reverse of the reverse restores it, ids and all.
	reretired, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, a.PerformEdits(ctx, reretired.Reverse))

	frame, err = a.GetFrameAtTime(ctx, 2, 442*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, frame.Elements, 5)
}

func TestRemoveLayer_KeepsHistoryReadable(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	require.NoError(t, a.PerformEdits(ctx, paintScenario()))
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.RemoveLayer{LayerID: 2}}))

	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers)

	length, err := a.LogLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), length)

	stream := a.ReadEditLog(0, length)
	defer stream.Close()
	count := 0
	for {
		_, ok, err := stream.Next(ctx)
		require.NoError(t, err, "history unreadable after layer removal")
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 8, count)
}

func TestRetiredEdits_OrderMatchesAppendOrder(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	sub := a.RetiredEdits()
	defer sub.Close()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.AddNewLayer{LayerID: i}}))
	}

	for i := uint64(1); i <= 5; i++ {
		retired, ok, err := sub.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, retired.Committed, 1)
		assert.Equal(t, edit.AddNewLayer{LayerID: i}, retired.Committed[0])
	}
}

func TestAssignElementID_MonotonicAcrossBatches(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	first, err := a.AssignElementID(ctx)
	require.NoError(t, err)

	require.NoError(t, a.PerformEdits(ctx, paintScenario()))

	second, err := a.AssignElementID(ctx)
	require.NoError(t, err)

	f, _ := first.Value()
	s, _ := second.Value()
	assert.Greater(t, s, f)
}

func TestProperties_DefaultsAndEdits(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	w, h, err := a.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1920.0, w)
	assert.Equal(t, 1080.0, h)

	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{
		edit.SetSize{Width: 640, Height: 480},
		edit.SetFrameLength{Length: time.Second / 60},
		edit.SetLength{Length: time.Minute},
	}))

	w, h, err = a.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 640.0, w)
	assert.Equal(t, 480.0, h)

	fl, err := a.FrameLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Second/60, fl)

	d, err := a.Duration(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
}

func TestPerformEdits_StorageFailureBurnsIDs(t *testing.T) {
	backend := &flakyBackend{InMemory: storage.NewInMemory()}
	a := New(backend)
	defer a.Close()
	ctx := context.Background()

	// Prime the lazy state so the failure hits the append itself.
	before, err := a.AssignElementID(ctx)
	require.NoError(t, err)

	backend.fail = true
	err = a.PerformEdits(ctx, paintScenario())
	require.Error(t, err)
	require.Error(t, a.LastError())
	assert.NoError(t, a.LastError(), "last error slot should clear on read")

	// The animation stays usable and ids handed to the failed batch are
	// never reissued.
	backend.fail = false
	after, err := a.AssignElementID(ctx)
	require.NoError(t, err)
	b, _ := before.Value()
	f, _ := after.Value()
	assert.GreaterOrEqual(t, f, b+6, "ids from the failed batch were reused")

	length, err := a.LogLength(ctx)
	require.NoError(t, err)
	assert.Zero(t, length, "failed batch committed nothing")
}

func TestEditSink_DeliversBatches(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	sub := a.RetiredEdits()
	defer sub.Close()

	sink := a.Edit()
	sink <- []edit.AnimationEdit{edit.AddNewLayer{LayerID: 1}}
	sink <- []edit.AnimationEdit{edit.AddNewLayer{LayerID: 2}}

	for i := uint64(1); i <= 2; i++ {
		retired, ok, err := sub.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, retired.Committed, 1)
		assert.Equal(t, edit.AddNewLayer{LayerID: i}, retired.Committed[0])
	}

	length, err := a.LogLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)
}

func TestReadEditLog_EndsAfterClose(t *testing.T) {
	a := New(storage.NewInMemory())
	ctx := context.Background()

	require.NoError(t, a.PerformEdits(ctx, paintScenario()))
	require.NoError(t, a.Close())

	// The schedule no longer runs refills; the stream reports the end
	// instead of suspending the reader until its context expires.
	stream := a.ReadEditLog(0, 7)
	defer stream.Close()

	_, ok, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUndoSignals_RetireButAreNotPersisted(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	sub := a.RetiredEdits()
	defer sub.Close()

	sentinel := edit.Undo{Edit: edit.PrepareToUndo{Name: "token-1"}}
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{sentinel}))

	retired, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, retired.Committed, 1)
	assert.True(t, encode.Equal(sentinel, retired.Committed[0]))

	length, err := a.LogLength(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestPerformUndo_AppliesInverseAndCompletes(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	sub := a.RetiredEdits()
	defer sub.Close()

	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.AddNewLayer{LayerID: 7}}))
	retired, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	perform := edit.Undo{Edit: edit.PerformUndo{Original: retired.Committed, Inverse: retired.Reverse}}
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{perform}))

	// Success retires the inverse batch first, then the completion marker.
	inv, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, inv.Committed, 1)
	assert.Equal(t, edit.RemoveLayer{LayerID: 7}, inv.Committed[0])

	marker, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, marker.Committed, 1)
	u, isUndo := marker.Committed[0].(edit.Undo)
	require.True(t, isUndo)
	_, completed := u.Edit.(edit.CompletedUndo)
	assert.True(t, completed)

	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, layers)

	length, err := a.LogLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), length, "the inverse is appended, never erased")
}

func TestPerformUndo_RefusesStaleOriginal(t *testing.T) {
	a := newTestAnimation(t)
	ctx := context.Background()

	sub := a.RetiredEdits()
	defer sub.Close()

	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{edit.AddNewLayer{LayerID: 7}}))
	_, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	stale := edit.Undo{Edit: edit.PerformUndo{
		Original: []edit.AnimationEdit{edit.AddNewLayer{LayerID: 8}},
		Inverse:  []edit.AnimationEdit{edit.RemoveLayer{LayerID: 8}},
	}}
	require.NoError(t, a.PerformEdits(ctx, []edit.AnimationEdit{stale}))

	failed, ok, err := sub.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, failed.Committed, 1)
	u, isUndo := failed.Committed[0].(edit.Undo)
	require.True(t, isUndo)
	f, isFailed := u.Edit.(edit.FailedUndo)
	require.True(t, isFailed)
	assert.Equal(t, edit.OriginalActionsDoNotMatch, f.Reason)

	layers, err := a.LayerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, layers)

	length, err := a.LogLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

// flakyBackend wraps the in-memory backend and fails every command batch on
// demand.
type flakyBackend struct {
	*storage.InMemory
	fail bool
}

func (f *flakyBackend) RunCommands(ctx context.Context, cmds []storage.Command) ([]storage.Response, error) {
	if f.fail {
		return nil, errors.New("storage offline")
	}
	return f.InMemory.RunCommands(ctx, cmds)
}
