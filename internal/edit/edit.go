// Package edit defines the vocabulary of mutations that can be applied to an
// animation, along with the element-identity rules that keep the edit log
// replayable.
//
// Every mutation is an AnimationEdit, a sealed tagged union. Edits are
// submitted in batches; a batch is the unit of atomicity for the edit log and
// the unit of retirement for observers.
package edit

import "time"

// AnimationEdit is a sealed interface representing one logical mutation
// request against an animation. Only the types in this package implement it.
type AnimationEdit interface {
	animationEdit() // Sealed - only these types implement it
}

// SetSize changes the frame size of the animation.
type SetSize struct {
	Width  float64
	Height float64
}

func (SetSize) animationEdit() {}

// SetFrameLength changes the duration of a single frame.
type SetFrameLength struct {
	Length time.Duration
}

func (SetFrameLength) animationEdit() {}

// SetLength changes the total duration of the animation.
type SetLength struct {
	Length time.Duration
}

func (SetLength) animationEdit() {}

// AddNewLayer creates a new, empty layer with the given ID.
type AddNewLayer struct {
	LayerID uint64
}

func (AddNewLayer) animationEdit() {}

// RemoveLayer removes a layer from the animation. The layer's history stays
// in the edit log; only later interpretation changes.
type RemoveLayer struct {
	LayerID uint64
}

func (RemoveLayer) animationEdit() {}

// Layer applies a LayerEdit to the layer with the given ID.
type Layer struct {
	LayerID uint64
	Edit    LayerEdit
}

func (Layer) animationEdit() {}

// Element applies an ElementEdit to one or more existing elements.
type Element struct {
	Elements []ElementID
	Edit     ElementEdit
}

func (Element) animationEdit() {}

// Motion applies a MotionEdit to the motion identified by Target.
type Motion struct {
	Target ElementID
	Edit   MotionEdit
}

func (Motion) animationEdit() {}

// Undo wraps an UndoEdit. Most undo edits are signalling values that travel
// through the edit pipeline without being persisted; only FinishAction is
// written to the log.
type Undo struct {
	Edit UndoEdit
}

func (Undo) animationEdit() {}

// LayerEdit is a sealed interface for edits scoped to a single layer.
type LayerEdit interface {
	layerEdit()
}

// AddKeyFrame creates a keyframe at the given time offset.
type AddKeyFrame struct {
	When time.Duration
}

func (AddKeyFrame) layerEdit() {}

// RemoveKeyFrame removes the keyframe at the given time offset.
type RemoveKeyFrame struct {
	When time.Duration
}

func (RemoveKeyFrame) layerEdit() {}

// SetLayerName renames a layer.
type SetLayerName struct {
	Name string
}

func (SetLayerName) layerEdit() {}

// SetLayerOrdering moves a layer to a new position in the layer stack.
type SetLayerOrdering struct {
	Ordering uint64
}

func (SetLayerOrdering) layerEdit() {}

// Paint applies a paint edit at a moment in the layer's timeline.
type Paint struct {
	When time.Duration
	Edit PaintEdit
}

func (Paint) layerEdit() {}

// Path applies a path edit at a moment in the layer's timeline.
type Path struct {
	When time.Duration
	Edit PathEdit
}

func (Path) layerEdit() {}

// PaintEdit is a sealed interface for paint operations. Paint edits create
// elements, so each carries an ElementID that is Unassigned until the batch
// is committed.
type PaintEdit interface {
	paintEdit()
}

// SelectBrush creates a brush-definition element: subsequent strokes on the
// layer are drawn with this brush.
type SelectBrush struct {
	Element    ElementID
	Definition BrushDefinition
	Style      DrawingStyle
}

func (SelectBrush) paintEdit() {}

// SetBrushProperties creates a brush-properties element: subsequent strokes
// use these properties (size, opacity, colour).
type SetBrushProperties struct {
	Element    ElementID
	Properties BrushProperties
}

func (SetBrushProperties) paintEdit() {}

// BrushStroke creates a stroke element from a list of raw input points.
type BrushStroke struct {
	Element ElementID
	Points  []RawPoint
}

func (BrushStroke) paintEdit() {}

// PathEdit is a sealed interface for vector-path operations.
type PathEdit interface {
	pathEdit()
}

// CreatePath creates a path element from a list of path components.
type CreatePath struct {
	Element    ElementID
	Components []PathComponent
}

func (CreatePath) pathEdit() {}

// SelectPathBrush creates a brush-definition element used for future paths.
type SelectPathBrush struct {
	Element    ElementID
	Definition BrushDefinition
	Style      DrawingStyle
}

func (SelectPathBrush) pathEdit() {}

// SetPathBrushProperties creates a brush-properties element used for future
// paths.
type SetPathBrushProperties struct {
	Element    ElementID
	Properties BrushProperties
}

func (SetPathBrushProperties) pathEdit() {}

// ElementEdit is a sealed interface for edits that target existing elements.
type ElementEdit interface {
	elementEdit()
}

// DeleteElements removes the targeted elements from their layers. The log
// entry remains; historical reads still decode the original creation edits.
type DeleteElements struct{}

func (DeleteElements) elementEdit() {}

// AddAttachment attaches another element (such as a brush definition) to the
// targeted elements.
type AddAttachment struct {
	Attachment ElementID
}

func (AddAttachment) elementEdit() {}

// RemoveAttachment detaches an element previously attached with
// AddAttachment.
type RemoveAttachment struct {
	Attachment ElementID
}

func (RemoveAttachment) elementEdit() {}

// ElementOrdering names a z-order move for OrderElements.
type ElementOrdering int

const (
	OrderInFront ElementOrdering = iota + 1
	OrderBehind
	OrderToTop
	OrderToBottom
)

// OrderElements changes the z-order of the targeted elements.
type OrderElements struct {
	Ordering ElementOrdering
}

func (OrderElements) elementEdit() {}

// MotionEdit is a sealed interface for edits to motion descriptions.
type MotionEdit interface {
	motionEdit()
}

// CreateMotion creates a new motion element.
type CreateMotion struct{}

func (CreateMotion) motionEdit() {}

// DeleteMotion removes a motion element.
type DeleteMotion struct{}

func (DeleteMotion) motionEdit() {}

// SetMotionOrigin sets the origin point a motion is relative to.
type SetMotionOrigin struct {
	X float64
	Y float64
}

func (SetMotionOrigin) motionEdit() {}

// SetMotionPath sets the path a motion follows over time.
type SetMotionPath struct {
	Points []TimePoint
}

func (SetMotionPath) motionEdit() {}

// RetiredEdit is the notification published once a batch has been durably
// appended to the edit log and applied to live state. It is transient - never
// persisted.
type RetiredEdit struct {
	// Committed holds the batch as it was applied, with every ElementID
	// assigned.
	Committed []AnimationEdit

	// Reverse holds the edits that undo the committed batch, in the order
	// they should be performed.
	Reverse []AnimationEdit
}

// Persisted reports whether an edit is written to the edit log. Undo
// signalling edits travel through the pipeline for synchronisation but are
// never persisted, with the exception of the FinishAction marker that
// delimits undoable actions.
func Persisted(e AnimationEdit) bool {
	u, ok := e.(Undo)
	if !ok {
		return true
	}
	_, finish := u.Edit.(FinishAction)
	return finish
}
