package harness

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flipbook/internal/edit"
)

// Scenario defines a conformance scenario: a sequence of edit batches, undo
// and redo steps, and assertions on the resulting log and animation state.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are stored under
	// testdata/golden/<name>.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Token is the fixed undo token used for every PrepareToUndo sentinel.
	// Fixing it keeps the run deterministic. Empty selects a default.
	Token string `yaml:"token,omitempty"`

	// Setup contains edit batches applied before the main flow. They are
	// assumed to succeed.
	Setup []FlowStep `yaml:"setup,omitempty"`

	// Flow is the main sequence of steps.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final log and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FlowStep is one step: either an edit batch, an undo, or a redo.
type FlowStep struct {
	// Edits is a batch committed atomically. Exclusive with Undo and Redo.
	Edits []EditStep `yaml:"edits,omitempty"`

	// Undo takes back the latest completed action.
	Undo bool `yaml:"undo,omitempty"`

	// Redo re-applies the latest undone action.
	Redo bool `yaml:"redo,omitempty"`

	// ExpectFailure names the UndoFailureReason an undo or redo step is
	// expected to fail with (e.g. "NothingToUndo"). Empty means the step
	// must succeed.
	ExpectFailure string `yaml:"expect_failure,omitempty"`
}

// EditStep describes one edit in YAML form.
type EditStep struct {
	// Op selects the edit: set_size, set_frame_length, set_length,
	// add_layer, remove_layer, add_keyframe, remove_keyframe,
	// set_layer_name, set_layer_ordering, select_brush, brush_properties,
	// brush_stroke, delete_elements, finish.
	Op string `yaml:"op"`

	Layer    uint64 `yaml:"layer,omitempty"`
	At       string `yaml:"at,omitempty"` // duration, e.g. "442ms"
	Name     string `yaml:"name,omitempty"`
	Ordering uint64 `yaml:"ordering,omitempty"`

	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
	Length string  `yaml:"length,omitempty"`

	// Points are [x, y] or [x, y, pressure] triples for brush_stroke.
	Points [][]float64 `yaml:"points,omitempty"`

	// Elements are assigned element ids for delete_elements.
	Elements []int64 `yaml:"elements,omitempty"`
}

// Assertion validates the final log or animation state.
type Assertion struct {
	// Type selects the check: log_length, log_contains, frame_elements,
	// layers, stack_sizes, size.
	Type string `yaml:"type"`

	Count   int     `yaml:"count,omitempty"`
	Encoded string  `yaml:"encoded,omitempty"`
	Layer   uint64  `yaml:"layer,omitempty"`
	At      string  `yaml:"at,omitempty"`
	IDs     []int64 `yaml:"ids,omitempty"`
	Layers  []int64 `yaml:"layers,omitempty"`
	Undo    int     `yaml:"undo,omitempty"`
	Redo    int     `yaml:"redo,omitempty"`
	Width   float64 `yaml:"width,omitempty"`
	Height  float64 `yaml:"height,omitempty"`
}

// Assertion type constants.
const (
	AssertLogLength     = "log_length"
	AssertLogContains   = "log_contains"
	AssertFrameElements = "frame_elements"
	AssertLayers        = "layers"
	AssertStackSizes    = "stack_sizes"
	AssertSize          = "size"
)

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	return &s, nil
}

// edit converts one YAML edit step into an AnimationEdit.
func (e EditStep) edit() (edit.AnimationEdit, error) {
	at, err := stepDuration(e.At)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "set_size":
		return edit.SetSize{Width: e.Width, Height: e.Height}, nil
	case "set_frame_length":
		length, err := stepDuration(e.Length)
		if err != nil {
			return nil, err
		}
		return edit.SetFrameLength{Length: length}, nil
	case "set_length":
		length, err := stepDuration(e.Length)
		if err != nil {
			return nil, err
		}
		return edit.SetLength{Length: length}, nil
	case "add_layer":
		return edit.AddNewLayer{LayerID: e.Layer}, nil
	case "remove_layer":
		return edit.RemoveLayer{LayerID: e.Layer}, nil
	case "add_keyframe":
		return edit.Layer{LayerID: e.Layer, Edit: edit.AddKeyFrame{When: at}}, nil
	case "remove_keyframe":
		return edit.Layer{LayerID: e.Layer, Edit: edit.RemoveKeyFrame{When: at}}, nil
	case "set_layer_name":
		return edit.Layer{LayerID: e.Layer, Edit: edit.SetLayerName{Name: e.Name}}, nil
	case "set_layer_ordering":
		return edit.Layer{LayerID: e.Layer, Edit: edit.SetLayerOrdering{Ordering: e.Ordering}}, nil
	case "select_brush":
		return edit.Layer{LayerID: e.Layer, Edit: edit.Paint{
			When: at,
			Edit: edit.SelectBrush{
				Element: edit.Unassigned(),
				Definition: edit.BrushDefinition{
					Kind: edit.BrushInk,
					Ink:  edit.InkDefinition{MinWidth: 1, MaxWidth: 5, ScaleUpDistance: 40},
				},
				Style: edit.StyleDraw,
			},
		}}, nil
	case "brush_properties":
		return edit.Layer{LayerID: e.Layer, Edit: edit.Paint{
			When: at,
			Edit: edit.SetBrushProperties{
				Element:    edit.Unassigned(),
				Properties: edit.DefaultBrushProperties(),
			},
		}}, nil
	case "brush_stroke":
		points := make([]edit.RawPoint, 0, len(e.Points))
		for _, p := range e.Points {
			switch len(p) {
			case 2:
				points = append(points, edit.RawPoint{X: p[0], Y: p[1], Pressure: 1})
			case 3:
				points = append(points, edit.RawPoint{X: p[0], Y: p[1], Pressure: p[2]})
			default:
				return nil, fmt.Errorf("brush_stroke point needs 2 or 3 values, got %d", len(p))
			}
		}
		return edit.Layer{LayerID: e.Layer, Edit: edit.Paint{
			When: at,
			Edit: edit.BrushStroke{Element: edit.Unassigned(), Points: points},
		}}, nil
	case "delete_elements":
		ids := make([]edit.ElementID, len(e.Elements))
		for i, id := range e.Elements {
			ids[i] = edit.Assigned(id)
		}
		return edit.Element{Elements: ids, Edit: edit.DeleteElements{}}, nil
	case "finish":
		return edit.Undo{Edit: edit.FinishAction{}}, nil
	default:
		return nil, fmt.Errorf("unknown edit op %q", e.Op)
	}
}

func stepDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q: %w", s, err)
	}
	return d, nil
}
