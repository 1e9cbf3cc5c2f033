// Package undo layers an undo/redo engine on top of an animation.
//
// The engine never rewrites history: undoing an action appends the action's
// inverse edits to the log. Actions are groups of retired edit batches
// delimited by FinishAction markers; the engine follows the animation's
// retirement stream to build them, so it observes exactly what was committed,
// ids and all.
//
// An undo or redo is a three-step conversation with the animation, carried
// over the same ordered edit pipeline as every other edit:
//
//  1. send a PrepareToUndo sentinel and wait for it to retire - everything
//     queued ahead of it has now settled and the stacks account for every
//     action completed before the sentinel;
//  2. pop the stack and send PerformUndo naming the action's committed edits
//     and their inverse - the animation verifies the log tail still matches
//     and commits the inverse;
//  3. read the outcome off the retirement stream: the inverse batch followed
//     by CompletedUndo, or a single FailedUndo.
package undo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/flipbook/internal/animator"
	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/encode"
)

// TokenGenerator mints the unique names carried by PrepareToUndo sentinels.
type TokenGenerator func() string

func defaultTokens() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Failure is the error returned when an undo or redo cannot be performed.
// The animation state is unchanged and the popped action is restored.
type Failure struct {
	Reason edit.UndoFailureReason
}

func (f Failure) Error() string {
	return "undo failed: " + f.Reason.String()
}

// action is one undoable unit: the edits as they were committed to the log,
// and the inverse batch that takes the animation back to the state before
// them.
type action struct {
	edits   []edit.AnimationEdit
	inverse []edit.AnimationEdit
}

// sequence is one in-flight undo or redo conversation.
type sequence struct {
	token   string
	drained chan struct{}
	result  chan outcome
	// expect is the inverse batch the conversation committed. Guarded by the
	// engine mutex; the follow goroutine matches retirements against it to
	// tell the conversation's own batch apart from foreign edits.
	expect []edit.AnimationEdit
	// captured is written only by the follow goroutine, then handed over
	// through result.
	captured action
}

type outcome struct {
	ok     bool
	redo   action
	reason edit.UndoFailureReason
}

// Animation wraps an animator.Animation with undo and redo. All the wrapped
// animation's operations remain available; edits performed through it become
// undoable once a FinishAction retires.
type Animation struct {
	*animator.Animation

	tokens TokenGenerator

	// opMu serializes Undo and Redo calls: one sequence at a time.
	opMu sync.Mutex

	mu        sync.Mutex
	undoStack []action
	redoStack []action
	current   action
	commits   uint64
	seq       *sequence
	followers []*SizeFollower
	done      chan struct{}
}

// New wraps an animation. A nil token generator selects UUID tokens.
func New(anim *animator.Animation, tokens TokenGenerator) *Animation {
	if tokens == nil {
		tokens = defaultTokens
	}
	a := &Animation{
		Animation: anim,
		tokens:    tokens,
		done:      make(chan struct{}),
	}
	go a.follow(anim.RetiredEdits())
	return a
}

// Close stops the engine and the underlying animation.
func (a *Animation) Close() error {
	err := a.Animation.Close()
	<-a.done
	return err
}

// Sizes is a snapshot of the undo and redo stack depths.
type Sizes struct {
	Undo int
	Redo int
}

// Undo takes back the newest completed action by appending its inverse to
// the edit log. The stack is popped only once the sentinel has settled, so
// an action finishing while the call is queued is the one undone. It blocks
// until the animation confirms or refuses; refusal is reported as a Failure
// and leaves the stacks as they were.
func (a *Animation) Undo(ctx context.Context) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	seq, err := a.drain(ctx)
	if err != nil {
		return err
	}
	defer a.release(seq)

	a.mu.Lock()
	if len(a.undoStack) == 0 {
		a.mu.Unlock()
		return Failure{Reason: edit.NothingToUndo}
	}
	idx := len(a.undoStack) - 1
	act := a.undoStack[idx]
	a.undoStack = a.undoStack[:idx]
	a.mu.Unlock()

	redo, err := a.apply(ctx, seq, act)
	a.mu.Lock()
	if err != nil {
		// Put the action back where it was, beneath anything that completed
		// since the pop, so the stack keeps matching the log tail.
		if idx > len(a.undoStack) {
			idx = len(a.undoStack)
		}
		tail := append([]action{act}, a.undoStack[idx:]...)
		a.undoStack = append(a.undoStack[:idx], tail...)
	} else {
		// The log is append-only, so the undone action and its inverse stay
		// in it as a cancelling pair. Fold the pair into the next action's
		// expected tail, keeping its verification valid.
		foldInto(a.undoStack, act, redo)
		a.redoStack = append(a.redoStack, redo)
	}
	a.publishSizesLocked()
	a.mu.Unlock()
	return err
}

// Redo re-applies the most recently undone action.
func (a *Animation) Redo(ctx context.Context) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	seq, err := a.drain(ctx)
	if err != nil {
		return err
	}
	defer a.release(seq)

	a.mu.Lock()
	if len(a.redoStack) == 0 {
		a.mu.Unlock()
		return Failure{Reason: edit.NothingToRedo}
	}
	act := a.redoStack[len(a.redoStack)-1]
	a.redoStack = a.redoStack[:len(a.redoStack)-1]
	gen := a.commits
	a.mu.Unlock()

	undoAct, err := a.apply(ctx, seq, act)
	a.mu.Lock()
	if err != nil {
		// A fresh action invalidates the redo stack, the popped entry
		// included; restore only when nothing completed in between.
		if a.commits == gen {
			a.redoStack = append(a.redoStack, act)
		}
	} else {
		foldInto(a.redoStack, act, undoAct)
		a.undoStack = append(a.undoStack, undoAct)
	}
	a.publishSizesLocked()
	a.mu.Unlock()
	return err
}

// drain registers a fresh conversation, publishes its PrepareToUndo sentinel
// and waits for the echo: once the sentinel retires, everything queued ahead
// of it has settled.
func (a *Animation) drain(ctx context.Context) (*sequence, error) {
	seq := &sequence{
		token:   a.tokens(),
		drained: make(chan struct{}),
		result:  make(chan outcome, 1),
	}
	a.mu.Lock()
	a.seq = seq
	a.mu.Unlock()

	sentinel := edit.Undo{Edit: edit.PrepareToUndo{Name: seq.token}}
	if err := a.PerformEdits(ctx, []edit.AnimationEdit{sentinel}); err != nil {
		a.release(seq)
		return nil, err
	}
	select {
	case <-seq.drained:
		return seq, nil
	case <-ctx.Done():
		a.release(seq)
		return nil, ctx.Err()
	case <-a.done:
		a.release(seq)
		return nil, Failure{Reason: edit.BadEditingSequence}
	}
}

func (a *Animation) release(seq *sequence) {
	a.mu.Lock()
	if a.seq == seq {
		a.seq = nil
	}
	a.mu.Unlock()
}

// apply sends the PerformUndo for act and waits for the outcome: the
// committed counter-action on success, a typed Failure otherwise.
func (a *Animation) apply(ctx context.Context, seq *sequence, act action) (action, error) {
	a.mu.Lock()
	seq.expect = act.inverse
	a.mu.Unlock()

	perform := edit.Undo{Edit: edit.PerformUndo{Original: act.edits, Inverse: act.inverse}}
	if err := a.PerformEdits(ctx, []edit.AnimationEdit{perform}); err != nil {
		return action{}, err
	}
	select {
	case out := <-seq.result:
		if !out.ok {
			return action{}, Failure{Reason: out.reason}
		}
		return out.redo, nil
	case <-ctx.Done():
		return action{}, ctx.Err()
	case <-a.done:
		return action{}, Failure{Reason: edit.BadEditingSequence}
	}
}

// follow consumes the animation's retirement stream, grouping ordinary
// batches into actions and routing undo signals to the sequence in flight.
func (a *Animation) follow(sub *animator.Subscription) {
	defer func() {
		a.mu.Lock()
		if a.seq != nil {
			a.seq.result <- outcome{reason: edit.BadEditingSequence}
			a.seq = nil
		}
		followers := a.followers
		a.followers = nil
		a.mu.Unlock()
		for _, f := range followers {
			f.finish()
		}
		close(a.done)
	}()
	ctx := context.Background()
	for {
		retired, ok, err := sub.Next(ctx)
		if err != nil || !ok {
			return
		}
		a.consume(retired)
	}
}

func (a *Animation) consume(retired edit.RetiredEdit) {
	a.mu.Lock()
	seq := a.seq
	var expect []edit.AnimationEdit
	if seq != nil {
		expect = seq.expect
	}
	a.mu.Unlock()

	// The inverse batch of the conversation in flight becomes its
	// counter-action, not a fresh undoable action. Anything else retiring
	// mid-conversation is foreign traffic and accumulates normally below.
	if expect != nil && encode.BatchEqual(retired.Committed, expect) {
		seq.captured = action{
			edits:   append([]edit.AnimationEdit{}, retired.Committed...),
			inverse: append([]edit.AnimationEdit{}, retired.Reverse...),
		}
		return
	}

	finish := false
	var plain []edit.AnimationEdit
	for _, e := range retired.Committed {
		u, isSignal := e.(edit.Undo)
		if !isSignal {
			plain = append(plain, e)
			continue
		}
		switch s := u.Edit.(type) {
		case edit.PrepareToUndo:
			if seq != nil && s.Name == seq.token {
				close(seq.drained)
			}
		case edit.BeginAction:
			a.commitCurrent()
		case edit.FinishAction:
			plain = append(plain, e)
			finish = true
		case edit.CompletedUndo:
			if seq != nil {
				a.clearExpect(seq)
				seq.result <- outcome{ok: true, redo: seq.captured}
			}
		case edit.FailedUndo:
			if seq != nil {
				a.clearExpect(seq)
				seq.result <- outcome{reason: s.Reason}
			}
		}
	}

	if len(plain) > 0 {
		a.mu.Lock()
		a.current.edits = append(a.current.edits, plain...)
		a.current.inverse = append(append([]edit.AnimationEdit{}, retired.Reverse...), a.current.inverse...)
		a.mu.Unlock()
	}
	if finish {
		a.commitCurrent()
	}
}

// foldInto extends the top entry's expected log tail with a performed action
// and its committed counter-batch. The two cancel out in the animation's
// state but remain in the append-only log, so the next entry on the stack
// must expect them when its own turn comes. Called with the engine mutex
// held.
func foldInto(stack []action, popped, counter action) {
	if len(stack) == 0 {
		return
	}
	top := &stack[len(stack)-1]
	top.edits = append(top.edits, popped.edits...)
	top.edits = append(top.edits, counter.edits...)
}

func (a *Animation) clearExpect(seq *sequence) {
	a.mu.Lock()
	seq.expect = nil
	a.mu.Unlock()
}

// commitCurrent pushes the open action, if any, onto the undo stack. A new
// completed action invalidates everything on the redo stack.
func (a *Animation) commitCurrent() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.current.edits) == 0 {
		return
	}
	a.undoStack = append(a.undoStack, a.current)
	a.current = action{}
	a.redoStack = nil
	a.commits++
	a.publishSizesLocked()
}

func (a *Animation) publishSizesLocked() {
	s := Sizes{Undo: len(a.undoStack), Redo: len(a.redoStack)}
	for _, f := range a.followers {
		f.push(s)
	}
}

// StackSizes reports the current undo and redo depths.
func (a *Animation) StackSizes() Sizes {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Sizes{Undo: len(a.undoStack), Redo: len(a.redoStack)}
}
