package testutil

import (
	"time"

	"github.com/roach88/flipbook/internal/edit"
)

// NewLayerWithFrame builds the batch that opens nearly every editing session:
// create a layer and give it a keyframe at the start of the timeline.
func NewLayerWithFrame(layer uint64) []edit.AnimationEdit {
	return []edit.AnimationEdit{
		edit.AddNewLayer{LayerID: layer},
		edit.Layer{LayerID: layer, Edit: edit.AddKeyFrame{When: 0}},
	}
}

// SelectInkBrush builds a brush selection followed by default properties, the
// two elements that precede any stroke.
func SelectInkBrush(layer uint64, when time.Duration) []edit.AnimationEdit {
	return []edit.AnimationEdit{
		edit.Layer{LayerID: layer, Edit: edit.Paint{
			When: when,
			Edit: edit.SelectBrush{
				Element: edit.Unassigned(),
				Definition: edit.BrushDefinition{
					Kind: edit.BrushInk,
					Ink:  edit.InkDefinition{MinWidth: 1, MaxWidth: 5, ScaleUpDistance: 40},
				},
				Style: edit.StyleDraw,
			},
		}},
		edit.Layer{LayerID: layer, Edit: edit.Paint{
			When: when,
			Edit: edit.SetBrushProperties{
				Element:    edit.Unassigned(),
				Properties: edit.DefaultBrushProperties(),
			},
		}},
	}
}

// Stroke builds one brush stroke from (x, y) pairs at full pressure.
func Stroke(layer uint64, when time.Duration, xy ...float64) edit.AnimationEdit {
	points := make([]edit.RawPoint, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		points = append(points, edit.RawPoint{X: xy[i], Y: xy[i+1], Pressure: 1})
	}
	return edit.Layer{LayerID: layer, Edit: edit.Paint{
		When: when,
		Edit: edit.BrushStroke{Element: edit.Unassigned(), Points: points},
	}}
}

// FinishAction closes the current undoable action.
func FinishAction() edit.AnimationEdit {
	return edit.Undo{Edit: edit.FinishAction{}}
}
