// Package animator implements the core actor that owns one animation.
//
// All mutable state of an animation - the storage handle, the element-id
// counter, the keyframe and brush-selection caches - is owned by a single
// goroutine and reached only through queued operations, so every mutating
// call is one indivisible turn with respect to every other call on the same
// animation. Batches retire in exact append order; no observer of the log or
// of the retirement stream ever sees a partially applied batch.
package animator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/editlog"
	"github.com/roach88/flipbook/internal/encode"
	"github.com/roach88/flipbook/internal/storage"
)

// ErrClosed is returned for operations submitted after Close.
var ErrClosed = errors.New("animation is closed")

// Animation is the serialized owner of one animation's state. Creating it
// starts the schedule goroutine; Close stops it and closes the backend.
type Animation struct {
	backend storage.Backend
	log     *editlog.Log
	queue   *opQueue
	retired publisher
	done    chan struct{}

	// core state, touched only from the run goroutine
	props       animationProperties
	propsLoaded bool
	nextElement int64
	idsReady    bool
	keyframes   map[uint64][]time.Duration
	brushes     map[uint64]brushSelection

	editOnce sync.Once
	editCh   chan []edit.AnimationEdit

	errMu   sync.Mutex
	lastErr error
}

// brushSelection caches the most recent brush elements on a layer; strokes
// and paths created while a selection is active attach to those elements.
type brushSelection struct {
	definition edit.ElementID
	properties edit.ElementID
	pathDef    edit.ElementID
	pathProps  edit.ElementID
}

// New starts an animation over the given backend. The animation takes
// ownership of the backend and closes it on Close.
func New(backend storage.Backend) *Animation {
	a := &Animation{
		backend:   backend,
		queue:     newOpQueue(),
		done:      make(chan struct{}),
		keyframes: make(map[uint64][]time.Duration),
		brushes:   make(map[uint64]brushSelection),
	}
	a.log = editlog.New(backend, a.allocElementID)
	go a.run()
	return a
}

// run is the single-writer loop. All state mutation happens here.
func (a *Animation) run() {
	defer close(a.done)
	defer a.retired.closeAll()

	for {
		o, ok := a.queue.TryDequeue()
		if ok {
			o.run()
			continue
		}

		<-a.queue.Wait()
		if a.queue.Drained() {
			return
		}
	}
}

// do runs f as one unit on the schedule and waits for it. Cancelling the
// context abandons the wait but does not un-queue the unit; it still runs in
// its turn.
func (a *Animation) do(ctx context.Context, f func()) error {
	ran := make(chan struct{})
	ok := a.queue.Enqueue(op{run: func() {
		defer close(ran)
		f()
	}})
	if !ok {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schedule submits background work (stream refills) without waiting. It
// reports false once the schedule has stopped accepting work.
func (a *Animation) schedule(f func()) bool {
	return a.queue.Enqueue(op{run: f})
}

// Close stops the schedule after draining already-queued work, closes every
// retirement subscription, and closes the backend.
func (a *Animation) Close() error {
	a.queue.Close()
	<-a.done
	return a.backend.Close()
}

// PerformEdits commits a batch of edits and waits for its retirement: id
// assignment, log append, application to live state, and publication run as
// one turn. On storage failure nothing from the batch is committed and the
// error is both returned and recorded in the last-error slot.
func (a *Animation) PerformEdits(ctx context.Context, batch []edit.AnimationEdit) error {
	var err error
	if doErr := a.do(ctx, func() { err = a.performEdits(batch) }); doErr != nil {
		return doErr
	}
	return err
}

// Edit returns an asynchronous sink with the same retirement semantics as
// PerformEdits. Failures of sunk batches go to the last-error slot, so a
// batched UI operation keeps flowing. The caller should close the channel
// when done with it.
func (a *Animation) Edit() chan<- []edit.AnimationEdit {
	a.editOnce.Do(func() {
		a.editCh = make(chan []edit.AnimationEdit, 16)
		go func() {
			for {
				select {
				case batch, ok := <-a.editCh:
					if !ok {
						return
					}
					// Error already lands in the last-error slot.
					_ = a.PerformEdits(context.Background(), batch)
				case <-a.done:
					return
				}
			}
		}()
	})
	return a.editCh
}

// RetiredEdits subscribes to the retirement stream. Every committed batch is
// delivered to every subscriber in retirement order.
func (a *Animation) RetiredEdits() *Subscription {
	return a.retired.subscribe()
}

// ReadEditLog returns a lazy stream over the log entries in [from, until).
// Refills run as background units on this animation's schedule.
func (a *Animation) ReadEditLog(from, until int64) *editlog.Stream {
	return a.log.Stream(from, until, a.schedule)
}

// LogLength returns the number of committed log entries, observed at a
// settled point in the schedule.
func (a *Animation) LogLength(ctx context.Context) (int64, error) {
	var (
		length int64
		err    error
	)
	if doErr := a.do(ctx, func() { length, err = a.log.Length(context.Background()) }); doErr != nil {
		return 0, doErr
	}
	return length, err
}

// AssignElementID reserves a fresh element id. Ids are unique and monotonic
// for the lifetime of the animation and are never reused, even when the
// batch they were assigned for is aborted.
func (a *Animation) AssignElementID(ctx context.Context) (edit.ElementID, error) {
	var (
		id  edit.ElementID
		err error
	)
	if doErr := a.do(ctx, func() {
		if err = a.ensureReady(context.Background()); err != nil {
			return
		}
		id = edit.Assigned(a.allocElementID())
	}); doErr != nil {
		return edit.Unassigned(), doErr
	}
	return id, err
}

// FlushCaches drops the keyframe and brush-selection caches. They rebuild
// lazily from storage.
func (a *Animation) FlushCaches(ctx context.Context) error {
	return a.do(ctx, func() {
		a.keyframes = make(map[uint64][]time.Duration)
		a.brushes = make(map[uint64]brushSelection)
	})
}

// LastError returns and clears the most recent recorded failure, or nil.
func (a *Animation) LastError() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	err := a.lastErr
	a.lastErr = nil
	return err
}

// Size returns the animation's canvas size.
func (a *Animation) Size(ctx context.Context) (width, height float64, err error) {
	props, err := a.readProperties(ctx)
	return props.width, props.height, err
}

// FrameLength returns the duration of one frame.
func (a *Animation) FrameLength(ctx context.Context) (time.Duration, error) {
	props, err := a.readProperties(ctx)
	return props.frameLength, err
}

// Duration returns the overall animation length.
func (a *Animation) Duration(ctx context.Context) (time.Duration, error) {
	props, err := a.readProperties(ctx)
	return props.duration, err
}

// LayerInfo describes one layer of the animation.
type LayerInfo struct {
	ID        uint64
	Name      string
	Ordering  uint64
	KeyFrames []time.Duration
}

// Layers returns every layer with its properties and keyframe times, ordered
// by layer ordering, then id.
func (a *Animation) Layers(ctx context.Context) ([]LayerInfo, error) {
	var (
		layers []LayerInfo
		err    error
	)
	doErr := a.do(ctx, func() {
		ctx := context.Background()
		out, runErr := a.backend.RunCommands(ctx, []storage.Command{storage.ReadLayers{}})
		if runErr != nil {
			err = fmt.Errorf("read layers: %w", runErr)
			return
		}
		for _, r := range out {
			lp, ok := r.(storage.LayerProperties)
			if !ok {
				continue
			}
			info := LayerInfo{ID: lp.ID, Ordering: lp.ID}
			if props, ok := decodeLayerProperties(lp.Properties); ok {
				info.Name = props.name
				info.Ordering = props.ordering
			}
			frames, frameErr := a.layerKeyframes(ctx, lp.ID)
			if frameErr != nil {
				err = frameErr
				return
			}
			info.KeyFrames = append([]time.Duration{}, frames...)
			layers = append(layers, info)
		}
	})
	if doErr != nil {
		return nil, doErr
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(layers, func(i, j int) bool {
		if layers[i].Ordering != layers[j].Ordering {
			return layers[i].Ordering < layers[j].Ordering
		}
		return layers[i].ID < layers[j].ID
	})
	return layers, nil
}

// LayerIDs returns the layer ids ordered by their layer ordering, then id.
func (a *Animation) LayerIDs(ctx context.Context) ([]uint64, error) {
	layers, err := a.Layers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	return ids, nil
}

func (a *Animation) readProperties(ctx context.Context) (animationProperties, error) {
	var (
		props animationProperties
		err   error
	)
	doErr := a.do(ctx, func() {
		if err = a.ensureReady(context.Background()); err == nil {
			props = a.props
		}
	})
	if doErr != nil {
		return animationProperties{}, doErr
	}
	return props, err
}

// performEdits is one indivisible turn: ids, append, apply, retire.
func (a *Animation) performEdits(batch []edit.AnimationEdit) error {
	ctx := context.Background()
	if err := a.ensureReady(ctx); err != nil {
		a.recordError(err)
		return err
	}

	if len(batch) == 1 {
		if u, ok := batch[0].(edit.Undo); ok {
			if p, ok := u.Edit.(edit.PerformUndo); ok {
				return a.performUndo(ctx, p)
			}
		}
	}

	assigned := make([]edit.AnimationEdit, len(batch))
	for i, e := range batch {
		assigned[i] = edit.MapUnassigned(e, a.allocElementID)
	}

	if _, err := a.log.Append(ctx, assigned); err != nil {
		// Ids already assigned to the batch stay burned.
		a.recordError(err)
		return err
	}

	reverse := a.applyBatch(ctx, assigned)
	a.retired.publish(edit.RetiredEdit{Committed: assigned, Reverse: reverse})
	return nil
}

// performUndo checks that Original is still the tail of the edit log and, if
// so, commits Inverse. Success retires the inverse batch followed by a
// CompletedUndo marker; any failure retires a single FailedUndo and leaves
// the animation untouched.
func (a *Animation) performUndo(ctx context.Context, p edit.PerformUndo) error {
	fail := func(reason edit.UndoFailureReason) error {
		a.retired.publish(edit.RetiredEdit{
			Committed: []edit.AnimationEdit{edit.Undo{Edit: edit.FailedUndo{Reason: reason}}},
		})
		return nil
	}

	// Only persisted edits have log entries to compare against.
	var original []edit.AnimationEdit
	for _, e := range p.Original {
		if edit.Persisted(e) {
			original = append(original, e)
		}
	}

	length, err := a.log.Length(ctx)
	if err != nil {
		a.recordError(err)
		return fail(edit.UndoStorageError)
	}
	n := int64(len(original))
	if length < n {
		return fail(edit.EditLogTooShort)
	}
	if n > 0 {
		tail, err := a.log.Read(ctx, length-n, length)
		if err != nil {
			a.recordError(err)
			return fail(edit.CannotReadOriginalActions)
		}
		if !encode.BatchEqual(tail, original) {
			return fail(edit.OriginalActionsDoNotMatch)
		}
	}

	inverse := make([]edit.AnimationEdit, len(p.Inverse))
	for i, e := range p.Inverse {
		inverse[i] = edit.MapUnassigned(e, a.allocElementID)
	}
	if _, err := a.log.Append(ctx, inverse); err != nil {
		a.recordError(err)
		return fail(edit.UndoStorageError)
	}

	reverse := a.applyBatch(ctx, inverse)
	a.retired.publish(edit.RetiredEdit{Committed: inverse, Reverse: reverse})
	a.retired.publish(edit.RetiredEdit{
		Committed: []edit.AnimationEdit{edit.Undo{Edit: edit.CompletedUndo{Edits: inverse}}},
	})
	return nil
}

// ensureReady lazily loads the element-id watermark and the animation
// properties on the first operation that needs them.
func (a *Animation) ensureReady(ctx context.Context) error {
	if !a.idsReady {
		out, err := a.backend.RunCommands(ctx, []storage.Command{storage.ReadHighestUnusedElementID{}})
		if err != nil {
			return fmt.Errorf("read element id watermark: %w", err)
		}
		if len(out) != 1 {
			return fmt.Errorf("read element id watermark: unexpected response batch")
		}
		watermark, ok := out[0].(storage.HighestUnusedElementID)
		if !ok {
			return fmt.Errorf("read element id watermark: unexpected response %T", out[0])
		}
		a.nextElement = watermark.ID
		a.idsReady = true
	}

	if !a.propsLoaded {
		out, err := a.backend.RunCommands(ctx, []storage.Command{storage.ReadAnimationProperties{}})
		if err != nil {
			return fmt.Errorf("read animation properties: %w", err)
		}
		a.props = defaultAnimationProperties()
		if len(out) == 1 {
			if rec, ok := out[0].(storage.AnimationProperties); ok {
				if props, ok := decodeAnimationProperties(rec.Data); ok {
					a.props = props
				} else {
					slog.Debug("animation properties record is damaged, using defaults")
				}
			}
		}
		a.propsLoaded = true
	}
	return nil
}

// allocElementID burns the next id off the counter. Only called from the run
// goroutine; the counter never decreases.
func (a *Animation) allocElementID() int64 {
	id := a.nextElement
	a.nextElement++
	return id
}

func (a *Animation) recordError(err error) {
	slog.Error("edit batch failed", "err", err)
	a.errMu.Lock()
	a.lastErr = err
	a.errMu.Unlock()
}
