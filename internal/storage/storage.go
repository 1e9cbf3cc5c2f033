// Package storage defines the command/response contract between an animation
// core and its storage backend.
//
// A backend executes ordered command batches and answers with ordered
// response batches. Commands and responses are not paired one to one: a
// write-style command contributes a single Updated (or NotFound) response,
// while a read over a range contributes one response per item found. All
// values cross the boundary in their encoded text form; the backend never
// interprets them.
package storage

import (
	"context"
	"time"
)

// Command is one storage operation. The set of commands is closed: backends
// switch exhaustively over it.
type Command interface {
	storageCommand()
}

// Response is one storage result. The set of responses is closed.
type Response interface {
	storageResponse()
}

// Backend executes command batches against durable (or in-memory) storage.
//
// A batch is atomic with respect to writes: either every write in the batch
// is committed or none is. The returned error reports backend-level failure
// (I/O, corruption); per-command outcomes like a missing record are reported
// in the response batch instead.
type Backend interface {
	RunCommands(ctx context.Context, cmds []Command) ([]Response, error)
	Close() error
}

// WriteAnimationProperties replaces the animation-wide property record.
type WriteAnimationProperties struct {
	Data string
}

// ReadAnimationProperties reads the animation-wide property record.
// Responds AnimationProperties, or NotFound if never written.
type ReadAnimationProperties struct{}

// WriteEdit appends one encoded edit to the end of the edit log.
type WriteEdit struct {
	Data string
}

// ReadEdits reads the log entries with indices in [From, Until). Responds
// with one Edit per index present, in index order.
type ReadEdits struct {
	From  int64
	Until int64
}

// ReadEditLogLength responds NumberOfEdits.
type ReadEditLogLength struct{}

// ReadHighestUnusedElementID responds HighestUnusedElementID: one greater
// than the highest element id ever written, 0 for a fresh animation. The
// value never decreases, even after element deletion.
type ReadHighestUnusedElementID struct{}

// WriteElement creates or replaces an element record.
type WriteElement struct {
	ID   int64
	Data string
}

// ReadElement responds Element, or NotFound.
type ReadElement struct {
	ID int64
}

// DeleteElement removes an element record and any keyframe attachments it
// holds. Deleting a missing element responds Updated all the same.
type DeleteElement struct {
	ID int64
}

// AddLayer creates a layer with the given property record.
type AddLayer struct {
	ID         uint64
	Properties string
}

// DeleteLayer removes a layer, its keyframes, and their attachments.
type DeleteLayer struct {
	ID uint64
}

// ReadLayers responds with one LayerProperties per layer, ordered by id.
type ReadLayers struct{}

// WriteLayerProperties replaces a layer's property record. Responds NotFound
// if the layer does not exist.
type WriteLayerProperties struct {
	ID         uint64
	Properties string
}

// ReadLayerProperties responds LayerProperties, or NotFound.
type ReadLayerProperties struct {
	ID uint64
}

// AddKeyFrame creates a keyframe on a layer. Adding a keyframe that already
// exists is a no-op.
type AddKeyFrame struct {
	Layer uint64
	When  time.Duration
}

// DeleteKeyFrame removes a keyframe and its attachments.
type DeleteKeyFrame struct {
	Layer uint64
	When  time.Duration
}

// ReadKeyFrames reads the keyframes on a layer whose frames intersect
// [From, Until). Responds with one KeyFrame per frame in time order, or a
// single NotInAFrame when the range falls entirely outside every frame.
type ReadKeyFrames struct {
	Layer uint64
	From  time.Duration
	Until time.Duration
}

// AttachElementToLayer attaches an element to the keyframe containing When
// on the given layer. Attach order is preserved. Responds NotFound if no
// keyframe contains When.
type AttachElementToLayer struct {
	Layer   uint64
	Element int64
	When    time.Duration
}

// DetachElementFromLayer removes an element's keyframe attachments on every
// layer.
type DetachElementFromLayer struct {
	Element int64
}

// ReadElementAttachments responds ElementAttachments: the (layer, keyframe)
// pairs an element is attached to.
type ReadElementAttachments struct {
	Element int64
}

// ReadElementsForKeyFrame responds with one Element per element attached to
// the keyframe containing When, in attach order.
type ReadElementsForKeyFrame struct {
	Layer uint64
	When  time.Duration
}

func (WriteAnimationProperties) storageCommand()   {}
func (ReadAnimationProperties) storageCommand()    {}
func (WriteEdit) storageCommand()                  {}
func (ReadEdits) storageCommand()                  {}
func (ReadEditLogLength) storageCommand()          {}
func (ReadHighestUnusedElementID) storageCommand() {}
func (WriteElement) storageCommand()               {}
func (ReadElement) storageCommand()                {}
func (DeleteElement) storageCommand()              {}
func (AddLayer) storageCommand()                   {}
func (DeleteLayer) storageCommand()                {}
func (ReadLayers) storageCommand()                 {}
func (WriteLayerProperties) storageCommand()       {}
func (ReadLayerProperties) storageCommand()        {}
func (AddKeyFrame) storageCommand()                {}
func (DeleteKeyFrame) storageCommand()             {}
func (ReadKeyFrames) storageCommand()              {}
func (AttachElementToLayer) storageCommand()       {}
func (DetachElementFromLayer) storageCommand()     {}
func (ReadElementAttachments) storageCommand()     {}
func (ReadElementsForKeyFrame) storageCommand()    {}

// Updated acknowledges a write-style command.
type Updated struct{}

// NotFound reports that the record a command addressed does not exist.
type NotFound struct{}

// NumberOfEdits carries the edit log length.
type NumberOfEdits struct {
	Count int64
}

// HighestUnusedElementID carries the next element id watermark.
type HighestUnusedElementID struct {
	ID int64
}

// AnimationProperties carries the encoded animation property record.
type AnimationProperties struct {
	Data string
}

// LayerProperties carries one layer's encoded property record.
type LayerProperties struct {
	ID         uint64
	Properties string
}

// Edit carries one edit log entry and its index.
type Edit struct {
	Index int64
	Data  string
}

// KeyFrame carries one frame: it starts at Start and runs until End (the
// start of the next keyframe, or MaxDuration for the last frame).
type KeyFrame struct {
	Start time.Duration
	End   time.Duration
}

// NotInAFrame reports that a requested time range precedes every keyframe.
// Next is the start of the first frame after the range, or MaxDuration if
// the layer has no keyframes at all.
type NotInAFrame struct {
	Next time.Duration
}

// Element carries one encoded element record.
type Element struct {
	ID   int64
	Data string
}

// ElementAttachments carries the keyframes an element is attached to.
type ElementAttachments struct {
	Element  int64
	Attached []Attachment
}

// Attachment names one keyframe an element is attached to.
type Attachment struct {
	Layer uint64
	When  time.Duration
}

func (Updated) storageResponse()                {}
func (NotFound) storageResponse()               {}
func (NumberOfEdits) storageResponse()          {}
func (HighestUnusedElementID) storageResponse() {}
func (AnimationProperties) storageResponse()    {}
func (LayerProperties) storageResponse()        {}
func (Edit) storageResponse()                   {}
func (KeyFrame) storageResponse()               {}
func (NotInAFrame) storageResponse()            {}
func (Element) storageResponse()                {}
func (ElementAttachments) storageResponse()     {}

// MaxDuration marks the open end of the last frame on a layer.
const MaxDuration = time.Duration(1<<63 - 1)
