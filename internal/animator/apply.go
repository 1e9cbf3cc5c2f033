package animator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/encode"
	"github.com/roach88/flipbook/internal/storage"
)

// applyBatch applies every edit of an appended batch to live state and
// returns the batch's reverse: the edits that restore the state from before
// the batch, in the order they should be performed. A storage failure while
// applying one edit is recorded and the rest of the batch still applies, so
// the log and live state never drift by more than the failed edit.
func (a *Animation) applyBatch(ctx context.Context, batch []edit.AnimationEdit) []edit.AnimationEdit {
	var reverse []edit.AnimationEdit
	for _, e := range batch {
		rev, err := a.applyEdit(ctx, e)
		if err != nil {
			a.recordError(fmt.Errorf("apply %T: %w", e, err))
			continue
		}
		reverse = append(rev, reverse...)
	}
	return reverse
}

func (a *Animation) applyEdit(ctx context.Context, e edit.AnimationEdit) ([]edit.AnimationEdit, error) {
	switch v := e.(type) {
	case edit.SetSize:
		old := a.props
		a.props.width, a.props.height = v.Width, v.Height
		if err := a.writeProps(ctx); err != nil {
			a.props = old
			return nil, err
		}
		return []edit.AnimationEdit{edit.SetSize{Width: old.width, Height: old.height}}, nil

	case edit.SetFrameLength:
		old := a.props
		a.props.frameLength = v.Length
		if err := a.writeProps(ctx); err != nil {
			a.props = old
			return nil, err
		}
		return []edit.AnimationEdit{edit.SetFrameLength{Length: old.frameLength}}, nil

	case edit.SetLength:
		old := a.props
		a.props.duration = v.Length
		if err := a.writeProps(ctx); err != nil {
			a.props = old
			return nil, err
		}
		return []edit.AnimationEdit{edit.SetLength{Length: old.duration}}, nil

	case edit.AddNewLayer:
		props := layerProperties{ordering: v.LayerID}
		_, err := a.backend.RunCommands(ctx, []storage.Command{
			storage.AddLayer{ID: v.LayerID, Properties: encodeLayerProperties(props)},
		})
		if err != nil {
			return nil, err
		}
		a.keyframes[v.LayerID] = nil
		return []edit.AnimationEdit{edit.RemoveLayer{LayerID: v.LayerID}}, nil

	case edit.RemoveLayer:
		recreate, err := a.recreateLayer(ctx, v.LayerID)
		if err != nil {
			return nil, err
		}
		out, err := a.backend.RunCommands(ctx, []storage.Command{storage.DeleteLayer{ID: v.LayerID}})
		if err != nil {
			return nil, err
		}
		delete(a.keyframes, v.LayerID)
		delete(a.brushes, v.LayerID)
		if _, missing := out[0].(storage.NotFound); missing {
			return nil, nil
		}
		return recreate, nil

	case edit.Layer:
		return a.applyLayerEdit(ctx, v.LayerID, v.Edit)

	case edit.Element:
		return a.applyElementEdit(ctx, v.Elements, v.Edit)

	case edit.Motion:
		return a.applyMotionEdit(ctx, v.Target, v.Edit)

	case edit.Undo:
		// Signalling only: travels the pipeline for ordering, mutates nothing.
		return nil, nil
	}
	return nil, nil
}

func (a *Animation) applyLayerEdit(ctx context.Context, layerID uint64, e edit.LayerEdit) ([]edit.AnimationEdit, error) {
	switch v := e.(type) {
	case edit.AddKeyFrame:
		frames, err := a.layerKeyframes(ctx, layerID)
		if err != nil {
			return nil, err
		}
		if containsFrame(frames, v.When) {
			return nil, nil
		}
		out, err := a.backend.RunCommands(ctx, []storage.Command{storage.AddKeyFrame{Layer: layerID, When: v.When}})
		if err != nil {
			return nil, err
		}
		if _, missing := out[0].(storage.NotFound); missing {
			return nil, fmt.Errorf("layer %d not found", layerID)
		}
		a.keyframes[layerID] = insertFrame(frames, v.When)
		return []edit.AnimationEdit{edit.Layer{LayerID: layerID, Edit: edit.RemoveKeyFrame{When: v.When}}}, nil

	case edit.RemoveKeyFrame:
		recreates, err := a.recreateKeyFrameElements(ctx, layerID, v.When)
		if err != nil {
			return nil, err
		}
		out, err := a.backend.RunCommands(ctx, []storage.Command{storage.DeleteKeyFrame{Layer: layerID, When: v.When}})
		if err != nil {
			return nil, err
		}
		if _, missing := out[0].(storage.NotFound); missing {
			return nil, nil
		}
		if frames, ok := a.keyframes[layerID]; ok {
			a.keyframes[layerID] = removeFrame(frames, v.When)
		}
		reverse := []edit.AnimationEdit{edit.Layer{LayerID: layerID, Edit: edit.AddKeyFrame{When: v.When}}}
		return append(reverse, recreates...), nil

	case edit.SetLayerName:
		old, found, err := a.readLayerProps(ctx, layerID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("layer %d not found", layerID)
		}
		updated := old
		updated.name = v.Name
		if err := a.writeLayerProps(ctx, layerID, updated); err != nil {
			return nil, err
		}
		return []edit.AnimationEdit{edit.Layer{LayerID: layerID, Edit: edit.SetLayerName{Name: old.name}}}, nil

	case edit.SetLayerOrdering:
		old, found, err := a.readLayerProps(ctx, layerID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("layer %d not found", layerID)
		}
		updated := old
		updated.ordering = v.Ordering
		if err := a.writeLayerProps(ctx, layerID, updated); err != nil {
			return nil, err
		}
		return []edit.AnimationEdit{edit.Layer{LayerID: layerID, Edit: edit.SetLayerOrdering{Ordering: old.ordering}}}, nil

	case edit.Paint:
		return a.applyPaint(ctx, layerID, v)

	case edit.Path:
		return a.applyPath(ctx, layerID, v)
	}
	return nil, nil
}

// applyPaint creates the element a paint edit describes, attaches it to the
// keyframe containing the edit's time, and tracks brush selection. The
// element record stores the full recreate batch, so deleting and later
// undoing the deletion replays exactly this edit.
func (a *Animation) applyPaint(ctx context.Context, layerID uint64, p edit.Paint) ([]edit.AnimationEdit, error) {
	sel := a.brushes[layerID]
	var el edit.ElementID

	switch v := p.Edit.(type) {
	case edit.SelectBrush:
		el = v.Element
		sel.definition = el
	case edit.SetBrushProperties:
		el = v.Element
		sel.properties = el
	case edit.BrushStroke:
		el = v.Element
	}

	record := []edit.AnimationEdit{edit.Layer{LayerID: layerID, Edit: p}}
	if _, isStroke := p.Edit.(edit.BrushStroke); isStroke {
		record = append(record, attachmentEdits(el, sel.definition, sel.properties)...)
	}
	a.brushes[layerID] = sel

	return a.createElement(ctx, layerID, el, p.When, record)
}

func (a *Animation) applyPath(ctx context.Context, layerID uint64, p edit.Path) ([]edit.AnimationEdit, error) {
	sel := a.brushes[layerID]
	var el edit.ElementID

	switch v := p.Edit.(type) {
	case edit.SelectPathBrush:
		el = v.Element
		sel.pathDef = el
	case edit.SetPathBrushProperties:
		el = v.Element
		sel.pathProps = el
	case edit.CreatePath:
		el = v.Element
	}

	record := []edit.AnimationEdit{edit.Layer{LayerID: layerID, Edit: p}}
	if _, isPath := p.Edit.(edit.CreatePath); isPath {
		record = append(record, attachmentEdits(el, sel.pathDef, sel.pathProps)...)
	}
	a.brushes[layerID] = sel

	return a.createElement(ctx, layerID, el, p.When, record)
}

// createElement writes an element's recreate record and attaches it to the
// frame containing when. An edit outside any keyframe still creates the
// element; it just never shows in a frame.
func (a *Animation) createElement(ctx context.Context, layerID uint64, el edit.ElementID, when time.Duration, record []edit.AnimationEdit) ([]edit.AnimationEdit, error) {
	id, ok := el.Value()
	if !ok {
		return nil, fmt.Errorf("element id not assigned")
	}
	_, err := a.backend.RunCommands(ctx, []storage.Command{
		storage.WriteElement{ID: id, Data: encode.EditBatch(record)},
		storage.AttachElementToLayer{Layer: layerID, Element: id, When: when},
	})
	if err != nil {
		return nil, err
	}
	return []edit.AnimationEdit{
		edit.Element{Elements: []edit.ElementID{el}, Edit: edit.DeleteElements{}},
	}, nil
}

func attachmentEdits(el edit.ElementID, refs ...edit.ElementID) []edit.AnimationEdit {
	var out []edit.AnimationEdit
	for _, ref := range refs {
		if !ref.IsAssigned() {
			continue
		}
		out = append(out, edit.Element{Elements: []edit.ElementID{el}, Edit: edit.AddAttachment{Attachment: ref}})
	}
	return out
}

func (a *Animation) applyElementEdit(ctx context.Context, elements []edit.ElementID, e edit.ElementEdit) ([]edit.AnimationEdit, error) {
	switch v := e.(type) {
	case edit.DeleteElements:
		var recreates []edit.AnimationEdit
		var cmds []storage.Command
		for _, el := range elements {
			id, ok := el.Value()
			if !ok {
				continue
			}
			record, found, err := a.readElementRecord(ctx, id)
			if err != nil {
				return nil, err
			}
			if found {
				recreates = append(recreates, record...)
			}
			cmds = append(cmds, storage.DeleteElement{ID: id})
		}
		if len(cmds) > 0 {
			if _, err := a.backend.RunCommands(ctx, cmds); err != nil {
				return nil, err
			}
		}
		a.dropBrushSelections(elements)
		return recreates, nil

	case edit.AddAttachment:
		for _, el := range elements {
			if err := a.amendElementRecord(ctx, el, func(record []edit.AnimationEdit) []edit.AnimationEdit {
				return append(record, edit.Element{Elements: []edit.ElementID{el}, Edit: edit.AddAttachment{Attachment: v.Attachment}})
			}); err != nil {
				return nil, err
			}
		}
		return []edit.AnimationEdit{
			edit.Element{Elements: elements, Edit: edit.RemoveAttachment{Attachment: v.Attachment}},
		}, nil

	case edit.RemoveAttachment:
		for _, el := range elements {
			attachment := edit.Element{Elements: []edit.ElementID{el}, Edit: edit.AddAttachment{Attachment: v.Attachment}}
			if err := a.amendElementRecord(ctx, el, func(record []edit.AnimationEdit) []edit.AnimationEdit {
				kept := record[:0]
				for _, r := range record {
					if !encode.Equal(r, attachment) {
						kept = append(kept, r)
					}
				}
				return kept
			}); err != nil {
				return nil, err
			}
		}
		return []edit.AnimationEdit{
			edit.Element{Elements: elements, Edit: edit.AddAttachment{Attachment: v.Attachment}},
		}, nil

	case edit.OrderElements:
		// Decoded for log compatibility; z-order application is not
		// implemented, so replaying one is a no-op.
		return nil, nil
	}
	return nil, nil
}

func (a *Animation) applyMotionEdit(ctx context.Context, target edit.ElementID, e edit.MotionEdit) ([]edit.AnimationEdit, error) {
	id, ok := target.Value()
	if !ok {
		return nil, fmt.Errorf("motion target not assigned")
	}

	switch v := e.(type) {
	case edit.CreateMotion:
		record := []edit.AnimationEdit{edit.Motion{Target: target, Edit: edit.CreateMotion{}}}
		_, err := a.backend.RunCommands(ctx, []storage.Command{
			storage.WriteElement{ID: id, Data: encode.EditBatch(record)},
		})
		if err != nil {
			return nil, err
		}
		return []edit.AnimationEdit{edit.Motion{Target: target, Edit: edit.DeleteMotion{}}}, nil

	case edit.DeleteMotion:
		record, found, err := a.readElementRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := a.backend.RunCommands(ctx, []storage.Command{storage.DeleteElement{ID: id}}); err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return record, nil

	case edit.SetMotionOrigin:
		old := edit.SetMotionOrigin{}
		if err := a.amendElementRecord(ctx, target, func(record []edit.AnimationEdit) []edit.AnimationEdit {
			kept := record[:0]
			for _, r := range record {
				if m, ok := r.(edit.Motion); ok {
					if origin, ok := m.Edit.(edit.SetMotionOrigin); ok {
						old = origin
						continue
					}
				}
				kept = append(kept, r)
			}
			return append(kept, edit.Motion{Target: target, Edit: v})
		}); err != nil {
			return nil, err
		}
		return []edit.AnimationEdit{edit.Motion{Target: target, Edit: old}}, nil

	case edit.SetMotionPath:
		old := edit.SetMotionPath{}
		if err := a.amendElementRecord(ctx, target, func(record []edit.AnimationEdit) []edit.AnimationEdit {
			kept := record[:0]
			for _, r := range record {
				if m, ok := r.(edit.Motion); ok {
					if path, ok := m.Edit.(edit.SetMotionPath); ok {
						old = path
						continue
					}
				}
				kept = append(kept, r)
			}
			return append(kept, edit.Motion{Target: target, Edit: v})
		}); err != nil {
			return nil, err
		}
		return []edit.AnimationEdit{edit.Motion{Target: target, Edit: old}}, nil
	}
	return nil, nil
}

// readElementRecord fetches and decodes one element's recreate batch. A
// damaged record reads as found-but-empty: deletion still works, recreation
// degrades to nothing rather than failing the whole edit.
func (a *Animation) readElementRecord(ctx context.Context, id int64) ([]edit.AnimationEdit, bool, error) {
	out, err := a.backend.RunCommands(ctx, []storage.Command{storage.ReadElement{ID: id}})
	if err != nil {
		return nil, false, err
	}
	el, ok := out[0].(storage.Element)
	if !ok {
		return nil, false, nil
	}
	record, ok := encode.DecodeEditBatch(el.Data)
	if !ok {
		slog.Debug("element record is damaged", "element", id)
		return nil, true, nil
	}
	return record, true, nil
}

// amendElementRecord rewrites one element's recreate batch in place. Missing
// elements are skipped silently; the edit stream may legitimately reference
// elements deleted by a later-undone action.
func (a *Animation) amendElementRecord(ctx context.Context, el edit.ElementID, amend func([]edit.AnimationEdit) []edit.AnimationEdit) error {
	id, ok := el.Value()
	if !ok {
		return nil
	}
	record, found, err := a.readElementRecord(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	_, err = a.backend.RunCommands(ctx, []storage.Command{
		storage.WriteElement{ID: id, Data: encode.EditBatch(amend(record))},
	})
	return err
}

// dropBrushSelections clears cached brush selections that point at deleted
// elements.
func (a *Animation) dropBrushSelections(deleted []edit.ElementID) {
	isDeleted := func(id edit.ElementID) bool {
		for _, d := range deleted {
			if encodeSameID(id, d) {
				return true
			}
		}
		return false
	}
	for layer, sel := range a.brushes {
		changed := false
		for _, field := range []*edit.ElementID{&sel.definition, &sel.properties, &sel.pathDef, &sel.pathProps} {
			if field.IsAssigned() && isDeleted(*field) {
				*field = edit.Unassigned()
				changed = true
			}
		}
		if changed {
			a.brushes[layer] = sel
		}
	}
}

func encodeSameID(a, b edit.ElementID) bool {
	av, aok := a.Value()
	bv, bok := b.Value()
	return aok && bok && av == bv
}

// recreateLayer builds the edits that rebuild a layer exactly: the layer
// itself, its properties, its keyframes, and every element attached to them
// in attach order.
func (a *Animation) recreateLayer(ctx context.Context, layerID uint64) ([]edit.AnimationEdit, error) {
	props, found, err := a.readLayerProps(ctx, layerID)
	if err != nil {
		return nil, err
	}
	if !found {
		// Layer missing: the delete becomes a no-op with nothing to restore.
		return nil, nil
	}
	frames, err := a.layerKeyframes(ctx, layerID)
	if err != nil {
		return nil, err
	}

	recreate := []edit.AnimationEdit{edit.AddNewLayer{LayerID: layerID}}
	if props.name != "" {
		recreate = append(recreate, edit.Layer{LayerID: layerID, Edit: edit.SetLayerName{Name: props.name}})
	}
	recreate = append(recreate, edit.Layer{LayerID: layerID, Edit: edit.SetLayerOrdering{Ordering: props.ordering}})

	for _, frame := range frames {
		recreate = append(recreate, edit.Layer{LayerID: layerID, Edit: edit.AddKeyFrame{When: frame}})
		elements, err := a.recreateKeyFrameElements(ctx, layerID, frame)
		if err != nil {
			return nil, err
		}
		recreate = append(recreate, elements...)
	}
	return recreate, nil
}

// recreateKeyFrameElements concatenates the recreate batches of every
// element attached to the frame containing when, in attach order.
func (a *Animation) recreateKeyFrameElements(ctx context.Context, layerID uint64, when time.Duration) ([]edit.AnimationEdit, error) {
	out, err := a.backend.RunCommands(ctx, []storage.Command{
		storage.ReadElementsForKeyFrame{Layer: layerID, When: when},
	})
	if err != nil {
		return nil, err
	}
	var recreates []edit.AnimationEdit
	for _, r := range out {
		el, ok := r.(storage.Element)
		if !ok {
			continue
		}
		record, ok := encode.DecodeEditBatch(el.Data)
		if !ok {
			slog.Debug("element record is damaged", "element", el.ID)
			continue
		}
		recreates = append(recreates, record...)
	}
	return recreates, nil
}

func (a *Animation) writeProps(ctx context.Context) error {
	_, err := a.backend.RunCommands(ctx, []storage.Command{
		storage.WriteAnimationProperties{Data: encodeAnimationProperties(a.props)},
	})
	return err
}

func (a *Animation) readLayerProps(ctx context.Context, layerID uint64) (layerProperties, bool, error) {
	out, err := a.backend.RunCommands(ctx, []storage.Command{storage.ReadLayerProperties{ID: layerID}})
	if err != nil {
		return layerProperties{}, false, err
	}
	rec, ok := out[0].(storage.LayerProperties)
	if !ok {
		return layerProperties{}, false, nil
	}
	props, ok := decodeLayerProperties(rec.Properties)
	if !ok {
		slog.Debug("layer properties record is damaged", "layer", layerID)
		return layerProperties{ordering: layerID}, true, nil
	}
	return props, true, nil
}

func (a *Animation) writeLayerProps(ctx context.Context, layerID uint64, props layerProperties) error {
	out, err := a.backend.RunCommands(ctx, []storage.Command{
		storage.WriteLayerProperties{ID: layerID, Properties: encodeLayerProperties(props)},
	})
	if err != nil {
		return err
	}
	if _, missing := out[0].(storage.NotFound); missing {
		return fmt.Errorf("layer %d not found", layerID)
	}
	return nil
}

// layerKeyframes returns the cached keyframe starts for a layer, loading
// them from storage on first use.
func (a *Animation) layerKeyframes(ctx context.Context, layerID uint64) ([]time.Duration, error) {
	if frames, ok := a.keyframes[layerID]; ok {
		return frames, nil
	}
	out, err := a.backend.RunCommands(ctx, []storage.Command{
		storage.ReadKeyFrames{Layer: layerID, From: 0, Until: storage.MaxDuration},
	})
	if err != nil {
		return nil, err
	}
	var frames []time.Duration
	for _, r := range out {
		if kf, ok := r.(storage.KeyFrame); ok {
			frames = append(frames, kf.Start)
		}
	}
	a.keyframes[layerID] = frames
	return frames, nil
}

func containsFrame(frames []time.Duration, when time.Duration) bool {
	for _, f := range frames {
		if f == when {
			return true
		}
	}
	return false
}

func insertFrame(frames []time.Duration, when time.Duration) []time.Duration {
	i := 0
	for i < len(frames) && frames[i] < when {
		i++
	}
	frames = append(frames, 0)
	copy(frames[i+1:], frames[i:])
	frames[i] = when
	return frames
}

func removeFrame(frames []time.Duration, when time.Duration) []time.Duration {
	for i, f := range frames {
		if f == when {
			return append(frames[:i], frames[i+1:]...)
		}
	}
	return frames
}
