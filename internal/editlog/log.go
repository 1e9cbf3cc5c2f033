// Package editlog implements the append-only edit log: the durable,
// replayable record of every committed animation edit.
//
// Entries are stored in a normalized form that keeps each log row small;
// bulky payloads live in auxiliary records referenced by id. Reads are
// lenient about auxiliary damage - a missing brush definition decodes as the
// simplest brush rather than blocking replay of the rest of the timeline -
// but strict about the entries themselves: an unknown tag is a
// ProtocolViolation, a data/version mismatch that cannot be papered over.
package editlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/flipbook/internal/edit"
	"github.com/roach88/flipbook/internal/storage"
)

// ProtocolViolation reports a log entry that no decode path understands.
// It signals a data or version mismatch and is never recovered from.
type ProtocolViolation struct {
	Index int64
	Data  string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("edit log entry %d cannot be decoded: %q", e.Index, e.Data)
}

// Log is the append-only edit log of one animation.
//
// The id allocator burns ids off the owning animation's element-id counter
// for auxiliary records, so aux records and live elements share one id space
// and never collide.
type Log struct {
	backend storage.Backend
	alloc   func() int64
}

// New returns a log reading and writing through the given backend.
func New(backend storage.Backend, alloc func() int64) *Log {
	return &Log{backend: backend, alloc: alloc}
}

// Append durably appends the persisted edits of a batch in order and returns
// their assigned log indices. Undo signalling edits other than FinishAction
// are skipped. The append is atomic: on error nothing is committed, though
// any aux ids allocated for the batch stay burned.
func (l *Log) Append(ctx context.Context, batch []edit.AnimationEdit) ([]int64, error) {
	var cmds []storage.Command
	persisted := 0
	for _, e := range batch {
		if !edit.Persisted(e) {
			continue
		}
		entry, aux := encodeEntry(e, l.alloc)
		for _, a := range aux {
			cmds = append(cmds, storage.WriteElement{ID: a.id, Data: a.data})
		}
		cmds = append(cmds, storage.WriteEdit{Data: entry})
		persisted++
	}
	if persisted == 0 {
		return nil, nil
	}
	cmds = append(cmds, storage.ReadEditLogLength{})

	out, err := l.backend.RunCommands(ctx, cmds)
	if err != nil {
		return nil, fmt.Errorf("append edit batch: %w", err)
	}
	length, ok := lastResponse[storage.NumberOfEdits](out)
	if !ok {
		return nil, fmt.Errorf("append edit batch: storage returned no edit count")
	}

	indices := make([]int64, persisted)
	for i := range indices {
		indices[i] = length.Count - int64(persisted) + int64(i)
	}
	return indices, nil
}

// Length returns the number of committed log entries.
func (l *Log) Length(ctx context.Context) (int64, error) {
	out, err := l.backend.RunCommands(ctx, []storage.Command{storage.ReadEditLogLength{}})
	if err != nil {
		return 0, fmt.Errorf("read edit log length: %w", err)
	}
	length, ok := lastResponse[storage.NumberOfEdits](out)
	if !ok {
		return 0, fmt.Errorf("read edit log length: storage returned no edit count")
	}
	return length.Count, nil
}

// Read decodes the entries with indices in [from, until), in order. Indices
// outside the log are skipped, not errors.
func (l *Log) Read(ctx context.Context, from, until int64) ([]edit.AnimationEdit, error) {
	out, err := l.backend.RunCommands(ctx, []storage.Command{storage.ReadEdits{From: from, Until: until}})
	if err != nil {
		return nil, fmt.Errorf("read edits [%d,%d): %w", from, until, err)
	}

	entries := make([]storage.Edit, 0, len(out))
	for _, r := range out {
		if e, ok := r.(storage.Edit); ok {
			entries = append(entries, e)
		}
	}

	aux, err := l.fetchAux(ctx, entries)
	if err != nil {
		return nil, err
	}

	resolve := func(id int64) (string, bool) {
		data, ok := aux[id]
		return data, ok
	}

	edits := make([]edit.AnimationEdit, 0, len(entries))
	defaults := 0
	for _, entry := range entries {
		decoded, n, err := decodeEntry(entry.Data, resolve)
		if err != nil {
			return nil, &ProtocolViolation{Index: entry.Index, Data: entry.Data}
		}
		defaults += n
		edits = append(edits, decoded)
	}
	if defaults > 0 {
		slog.Debug("substituted defaults for damaged auxiliary records",
			"count", defaults,
			"from", from,
			"until", until)
	}
	return edits, nil
}

// fetchAux collects every aux record id the entries reference and reads them
// in one batch. Missing records are simply absent from the result.
func (l *Log) fetchAux(ctx context.Context, entries []storage.Edit) (map[int64]string, error) {
	var ids []int64
	collect := func(id int64) (string, bool) {
		ids = append(ids, id)
		return "", false
	}
	for _, entry := range entries {
		decodeEntry(entry.Data, collect) // structural pass; errors surface on the real pass
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]storage.Command, len(ids))
	for i, id := range ids {
		cmds[i] = storage.ReadElement{ID: id}
	}
	out, err := l.backend.RunCommands(ctx, cmds)
	if err != nil {
		return nil, fmt.Errorf("read auxiliary records: %w", err)
	}

	aux := make(map[int64]string, len(ids))
	for _, r := range out {
		if e, ok := r.(storage.Element); ok {
			aux[e.ID] = e.Data
		}
	}
	return aux, nil
}

// lastResponse returns the final response of a batch if it has the expected
// type.
func lastResponse[T storage.Response](out []storage.Response) (T, bool) {
	var zero T
	if len(out) == 0 {
		return zero, false
	}
	v, ok := out[len(out)-1].(T)
	if !ok {
		return zero, false
	}
	return v, true
}
