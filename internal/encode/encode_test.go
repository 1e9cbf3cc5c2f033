package encode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flipbook/internal/edit"
)

func id(n int64) edit.ElementID { return edit.Assigned(n) }

func sampleEdits() []edit.AnimationEdit {
	return []edit.AnimationEdit{
		edit.SetSize{Width: 1920, Height: 1080.5},
		edit.SetFrameLength{Length: 16666667 * time.Nanosecond},
		edit.SetLength{Length: 2 * time.Minute},
		edit.AddNewLayer{LayerID: 0},
		edit.RemoveLayer{LayerID: 42},
		edit.Layer{LayerID: 3, Edit: edit.AddKeyFrame{When: 442 * time.Millisecond}},
		edit.Layer{LayerID: 3, Edit: edit.RemoveKeyFrame{When: 0}},
		edit.Layer{LayerID: 7, Edit: edit.SetLayerName{Name: "Ink \"layer\" é"}},
		edit.Layer{LayerID: 7, Edit: edit.SetLayerOrdering{Ordering: 2}},
		edit.Layer{LayerID: 1, Edit: edit.Paint{
			When: time.Second,
			Edit: edit.SelectBrush{
				Element:    id(10),
				Definition: edit.BrushDefinition{Kind: edit.BrushInk, Ink: edit.InkDefinition{MinWidth: 0.25, MaxWidth: 5, ScaleUpDistance: 40}},
				Style:      edit.StyleErase,
			},
		}},
		edit.Layer{LayerID: 1, Edit: edit.Paint{
			When: time.Second,
			Edit: edit.SetBrushProperties{
				Element:    id(11),
				Properties: edit.BrushProperties{Size: 3.5, Opacity: 0.75, Color: edit.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}},
			},
		}},
		edit.Layer{LayerID: 1, Edit: edit.Paint{
			When: 1500 * time.Millisecond,
			Edit: edit.BrushStroke{
				Element: edit.Unassigned(),
				Points: []edit.RawPoint{
					{X: 0, Y: 0, Pressure: 0.5},
					{X: 10.25, Y: -4, Pressure: 1},
				},
			},
		}},
		edit.Layer{LayerID: 2, Edit: edit.Path{
			When: 0,
			Edit: edit.CreatePath{
				Element: id(20),
				Components: []edit.PathComponent{
					{Kind: edit.PathMove, P1: edit.PathPoint{X: 1, Y: 2}},
					{Kind: edit.PathLine, P1: edit.PathPoint{X: 3, Y: 4}},
					{Kind: edit.PathBezier, P1: edit.PathPoint{X: 5, Y: 6}, P2: edit.PathPoint{X: 7, Y: 8}, P3: edit.PathPoint{X: 9, Y: 10}},
					{Kind: edit.PathClose},
				},
			},
		}},
		edit.Layer{LayerID: 2, Edit: edit.Path{
			When: time.Millisecond,
			Edit: edit.SelectPathBrush{Element: id(21), Definition: edit.SimplestBrush(), Style: edit.StyleDraw},
		}},
		edit.Layer{LayerID: 2, Edit: edit.Path{
			When: time.Millisecond,
			Edit: edit.SetPathBrushProperties{Element: id(22), Properties: edit.DefaultBrushProperties()},
		}},
		edit.Element{Elements: []edit.ElementID{id(5), id(6)}, Edit: edit.DeleteElements{}},
		edit.Element{Elements: []edit.ElementID{id(5)}, Edit: edit.AddAttachment{Attachment: id(9)}},
		edit.Element{Elements: []edit.ElementID{id(5)}, Edit: edit.RemoveAttachment{Attachment: id(9)}},
		edit.Element{Elements: nil, Edit: edit.OrderElements{Ordering: edit.OrderToTop}},
		edit.Motion{Target: id(30), Edit: edit.CreateMotion{}},
		edit.Motion{Target: id(30), Edit: edit.DeleteMotion{}},
		edit.Motion{Target: id(30), Edit: edit.SetMotionOrigin{X: 100, Y: 200}},
		edit.Motion{Target: id(30), Edit: edit.SetMotionPath{Points: []edit.TimePoint{
			{X: 0, Y: 0, At: 0},
			{X: 50, Y: 25, At: 250 * time.Millisecond},
		}}},
		edit.Undo{Edit: edit.PrepareToUndo{Name: "a1b2c3"}},
		edit.Undo{Edit: edit.BeginAction{}},
		edit.Undo{Edit: edit.FinishAction{}},
		edit.Undo{Edit: edit.PerformUndo{
			Original: []edit.AnimationEdit{edit.AddNewLayer{LayerID: 1}},
			Inverse:  []edit.AnimationEdit{edit.RemoveLayer{LayerID: 1}},
		}},
		edit.Undo{Edit: edit.CompletedUndo{Edits: []edit.AnimationEdit{edit.RemoveLayer{LayerID: 1}}}},
		edit.Undo{Edit: edit.FailedUndo{Reason: edit.NothingToRedo}},
	}
}

func TestEditRoundTrip(t *testing.T) {
	for _, e := range sampleEdits() {
		encoded := Edit(e)
		decoded, ok := DecodeEdit(encoded)
		require.True(t, ok, "decode %q", encoded)
		assert.Equal(t, encoded, Edit(decoded), "unstable encoding for %q", encoded)
		assert.True(t, Equal(e, decoded))
	}
}

func TestDecodeEditRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"Z",                // unknown edit tag
		"S 100",            // truncated
		"L 3 Q",            // unknown layer edit tag
		"+ 1 extra",        // trailing garbage
		"E 2 5",            // fewer elements than declared
		"E -1 D",           // negative count
		"E 99999999999 D",  // absurd count
		"U F notanumber",   // bad failure reason
		"L 1 P 0 B * s Z",  // unknown drawing style
		"S 1e309 2",        // float overflow
		`L 7 N "unclosed`,  // bad string quoting
		"E 0 o 9",          // ordering out of range
	}
	for _, c := range cases {
		_, ok := DecodeEdit(c)
		assert.False(t, ok, "expected decode failure for %q", c)
	}
}

func TestEncodedFormsAreStable(t *testing.T) {
	// Encoded edits are persisted: these exact strings live in edit logs on
	// disk, so changing them breaks every existing animation file.
	assert.Equal(t, "S 1920 1080", Edit(edit.SetSize{Width: 1920, Height: 1080}))
	assert.Equal(t, "+ 4", Edit(edit.AddNewLayer{LayerID: 4}))
	assert.Equal(t, "L 4 K 442000000", Edit(edit.Layer{LayerID: 4, Edit: edit.AddKeyFrame{When: 442 * time.Millisecond}}))
	assert.Equal(t, "E 1 5 D", Edit(edit.Element{Elements: []edit.ElementID{id(5)}, Edit: edit.DeleteElements{}}))
	assert.Equal(t, "U b", Edit(edit.Undo{Edit: edit.BeginAction{}}))
	assert.Equal(t, "U P 1 + 1 1 - 1", Edit(edit.Undo{Edit: edit.PerformUndo{
		Original: []edit.AnimationEdit{edit.AddNewLayer{LayerID: 1}},
		Inverse:  []edit.AnimationEdit{edit.RemoveLayer{LayerID: 1}},
	}}))
}

func TestUnassignedElementID(t *testing.T) {
	encoded := Edit(edit.Element{Elements: []edit.ElementID{edit.Unassigned()}, Edit: edit.DeleteElements{}})
	assert.Equal(t, "E 1 * D", encoded)

	decoded, ok := DecodeEdit(encoded)
	require.True(t, ok)
	el := decoded.(edit.Element)
	assert.False(t, el.Elements[0].IsAssigned())
}

func TestStringNormalization(t *testing.T) {
	// "é" as 'e' + combining acute normalizes to the precomposed form, so
	// both spellings of a layer name encode identically.
	composed := edit.Layer{LayerID: 1, Edit: edit.SetLayerName{Name: "café"}}
	decomposed := edit.Layer{LayerID: 1, Edit: edit.SetLayerName{Name: "café"}}
	assert.True(t, Equal(composed, decomposed))
}

func TestBatchEqual(t *testing.T) {
	a := []edit.AnimationEdit{edit.AddNewLayer{LayerID: 1}, edit.RemoveLayer{LayerID: 2}}
	b := []edit.AnimationEdit{edit.AddNewLayer{LayerID: 1}, edit.RemoveLayer{LayerID: 2}}
	assert.True(t, BatchEqual(a, b))
	assert.False(t, BatchEqual(a, b[:1]))
	assert.False(t, BatchEqual(a, []edit.AnimationEdit{edit.AddNewLayer{LayerID: 1}, edit.RemoveLayer{LayerID: 3}}))
}

func TestValueRecordRoundTrip(t *testing.T) {
	def := edit.BrushDefinition{Kind: edit.BrushInk, Ink: edit.InkDefinition{MinWidth: 1, MaxWidth: 4, ScaleUpDistance: 32}}
	encodedDef := BrushDefinition(def, edit.StyleErase)
	gotDef, gotStyle, ok := DecodeBrushDefinition(encodedDef)
	require.True(t, ok)
	assert.Equal(t, def, gotDef)
	assert.Equal(t, edit.StyleErase, gotStyle)

	props := edit.BrushProperties{Size: 2, Opacity: 0.5, Color: edit.Color{R: 1, A: 1}}
	gotProps, ok := DecodeBrushProperties(BrushProperties(props))
	require.True(t, ok)
	assert.Equal(t, props, gotProps)

	ids := []edit.ElementID{id(1), edit.Unassigned(), id(3)}
	gotIDs, ok := DecodeElementList(ElementList(ids))
	require.True(t, ok)
	assert.Equal(t, ids, gotIDs)
}
