package edit

// ElementID identifies a drawable vector element.
//
// The zero value is Unassigned. Callers create edits with unassigned IDs;
// the animation assigns a fresh, globally unique ID to every unassigned slot
// before a batch is appended to the log, so re-reading a committed edit only
// ever yields assigned IDs.
type ElementID struct {
	id       int64
	assigned bool
}

// Unassigned returns the unassigned element ID.
func Unassigned() ElementID {
	return ElementID{}
}

// Assigned returns an element ID with a concrete value.
func Assigned(id int64) ElementID {
	return ElementID{id: id, assigned: true}
}

// IsAssigned reports whether the ID has been assigned a value.
func (e ElementID) IsAssigned() bool {
	return e.assigned
}

// Value returns the numeric ID. ok is false for the unassigned ID.
func (e ElementID) Value() (id int64, ok bool) {
	return e.id, e.assigned
}

// MapUnassigned rewrites every unassigned ElementID inside an edit using the
// supplied allocator, returning the rewritten edit. Assigned IDs pass through
// untouched. The allocator is called once per unassigned slot, so two
// unassigned slots in the same batch always receive distinct IDs.
//
// Undo signalling edits are returned unchanged: the batches they carry are
// assigned when (and if) they are replayed.
func MapUnassigned(e AnimationEdit, alloc func() int64) AnimationEdit {
	assign := func(id ElementID) ElementID {
		if id.IsAssigned() {
			return id
		}
		return Assigned(alloc())
	}

	switch v := e.(type) {
	case Layer:
		return Layer{LayerID: v.LayerID, Edit: mapLayerEdit(v.Edit, assign)}

	case Element:
		ids := make([]ElementID, len(v.Elements))
		for i, id := range v.Elements {
			ids[i] = assign(id)
		}
		inner := v.Edit
		switch ie := inner.(type) {
		case AddAttachment:
			inner = AddAttachment{Attachment: assign(ie.Attachment)}
		case RemoveAttachment:
			inner = RemoveAttachment{Attachment: assign(ie.Attachment)}
		}
		return Element{Elements: ids, Edit: inner}

	case Motion:
		return Motion{Target: assign(v.Target), Edit: v.Edit}

	default:
		return e
	}
}

func mapLayerEdit(e LayerEdit, assign func(ElementID) ElementID) LayerEdit {
	switch v := e.(type) {
	case Paint:
		return Paint{When: v.When, Edit: mapPaintEdit(v.Edit, assign)}
	case Path:
		return Path{When: v.When, Edit: mapPathEdit(v.Edit, assign)}
	default:
		return e
	}
}

func mapPaintEdit(e PaintEdit, assign func(ElementID) ElementID) PaintEdit {
	switch v := e.(type) {
	case SelectBrush:
		return SelectBrush{Element: assign(v.Element), Definition: v.Definition, Style: v.Style}
	case SetBrushProperties:
		return SetBrushProperties{Element: assign(v.Element), Properties: v.Properties}
	case BrushStroke:
		return BrushStroke{Element: assign(v.Element), Points: v.Points}
	default:
		return e
	}
}

func mapPathEdit(e PathEdit, assign func(ElementID) ElementID) PathEdit {
	switch v := e.(type) {
	case CreatePath:
		return CreatePath{Element: assign(v.Element), Components: v.Components}
	case SelectPathBrush:
		return SelectPathBrush{Element: assign(v.Element), Definition: v.Definition, Style: v.Style}
	case SetPathBrushProperties:
		return SetPathBrushProperties{Element: assign(v.Element), Properties: v.Properties}
	default:
		return e
	}
}
