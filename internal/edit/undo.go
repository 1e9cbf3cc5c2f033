package edit

// UndoEdit is a sealed interface for the undo protocol's edits. Apart from
// FinishAction these are signalling values: they synchronise the undo engine
// with the edit pipeline but are never written to the edit log.
type UndoEdit interface {
	undoEdit()
}

// PrepareToUndo is a sentinel published before an undo or redo begins. The
// edit pipeline retires edits in strict submission order, so once this
// sentinel comes back on the retirement stream everything queued ahead of it
// has settled. Name carries a unique token so concurrent observers can match
// their own sentinel.
type PrepareToUndo struct {
	Name string
}

func (PrepareToUndo) undoEdit() {}

// BeginAction marks the start of a group of edits treated as one undoable
// action.
type BeginAction struct{}

func (BeginAction) undoEdit() {}

// FinishAction marks the end of a group of edits treated as one undoable
// action. It is the only undo edit written to the log.
type FinishAction struct{}

func (FinishAction) undoEdit() {}

// PerformUndo asks the animation to verify that Original matches the tail of
// the edit log and then perform Inverse. On success the animation retires the
// inverse edits followed by a CompletedUndo marker; on failure it retires a
// single FailedUndo.
type PerformUndo struct {
	Original []AnimationEdit
	Inverse  []AnimationEdit
}

func (PerformUndo) undoEdit() {}

// CompletedUndo reports that a PerformUndo succeeded. Edits holds the inverse
// batch that was applied.
type CompletedUndo struct {
	Edits []AnimationEdit
}

func (CompletedUndo) undoEdit() {}

// FailedUndo reports that a PerformUndo failed; the animation state is
// unchanged.
type FailedUndo struct {
	Reason UndoFailureReason
}

func (FailedUndo) undoEdit() {}

// UndoFailureReason is the typed result of a failed undo or redo.
type UndoFailureReason int

const (
	// NothingToUndo: the undo stack is empty.
	NothingToUndo UndoFailureReason = iota + 1
	// NothingToRedo: the redo stack is empty.
	NothingToRedo
	// BadEditingSequence: an expected completion marker never arrived or was
	// malformed. Always a defect, never a recoverable user case.
	BadEditingSequence
	// UndoStorageError: the storage layer failed while verifying or applying
	// the undo.
	UndoStorageError
	// EditLogTooShort: the edit log holds fewer entries than the action being
	// undone.
	EditLogTooShort
	// CannotReadOriginalActions: the tail of the edit log could not be read
	// back for verification.
	CannotReadOriginalActions
	// OriginalActionsDoNotMatch: the tail of the edit log is not the action
	// being undone.
	OriginalActionsDoNotMatch
)

// String returns the reason's name.
func (r UndoFailureReason) String() string {
	switch r {
	case NothingToUndo:
		return "NothingToUndo"
	case NothingToRedo:
		return "NothingToRedo"
	case BadEditingSequence:
		return "BadEditingSequence"
	case UndoStorageError:
		return "StorageError"
	case EditLogTooShort:
		return "EditLogTooShort"
	case CannotReadOriginalActions:
		return "CannotReadOriginalActions"
	case OriginalActionsDoNotMatch:
		return "OriginalActionsDoNotMatch"
	default:
		return "UnknownFailure"
	}
}
