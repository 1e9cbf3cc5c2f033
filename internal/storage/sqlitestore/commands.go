package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/flipbook/internal/storage"
)

// RunCommands executes a command batch inside one transaction: either every
// write in the batch commits or none does.
func (s *Store) RunCommands(ctx context.Context, cmds []storage.Command) ([]storage.Response, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin command batch: %w", err)
	}
	defer tx.Rollback()

	var out []storage.Response
	for _, cmd := range cmds {
		out, err = s.run(ctx, tx, out, cmd)
		if err != nil {
			return nil, fmt.Errorf("run %T: %w", cmd, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit command batch: %w", err)
	}
	return out, nil
}

func (s *Store) run(ctx context.Context, tx *sql.Tx, out []storage.Response, cmd storage.Command) ([]storage.Response, error) {
	switch c := cmd.(type) {
	case storage.WriteAnimationProperties:
		_, err := tx.ExecContext(ctx, `UPDATE animation SET properties = ? WHERE id = 0`, c.Data)
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.ReadAnimationProperties:
		var data sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT properties FROM animation WHERE id = 0`).Scan(&data)
		if err != nil {
			return nil, err
		}
		if !data.Valid {
			return append(out, storage.NotFound{}), nil
		}
		return append(out, storage.AnimationProperties{Data: data.String}), nil

	case storage.WriteEdit:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edit_log (idx, data)
			VALUES ((SELECT COUNT(*) FROM edit_log), ?)
		`, c.Data)
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.ReadEdits:
		rows, err := tx.QueryContext(ctx, `
			SELECT idx, data FROM edit_log
			WHERE idx >= ? AND idx < ?
			ORDER BY idx
		`, c.From, c.Until)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var e storage.Edit
			if err := rows.Scan(&e.Index, &e.Data); err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, rows.Err()

	case storage.ReadEditLogLength:
		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM edit_log`).Scan(&count); err != nil {
			return nil, err
		}
		return append(out, storage.NumberOfEdits{Count: count}), nil

	case storage.ReadHighestUnusedElementID:
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT highest_unused_element FROM animation WHERE id = 0`).Scan(&id)
		if err != nil {
			return nil, err
		}
		return append(out, storage.HighestUnusedElementID{ID: id}), nil

	case storage.WriteElement:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO elements (id, data) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data
		`, c.ID, c.Data)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE animation SET highest_unused_element = MAX(highest_unused_element, ?)
			WHERE id = 0
		`, c.ID+1)
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.ReadElement:
		var data string
		err := tx.QueryRowContext(ctx, `SELECT data FROM elements WHERE id = ?`, c.ID).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return append(out, storage.NotFound{}), nil
		}
		if err != nil {
			return nil, err
		}
		return append(out, storage.Element{ID: c.ID, Data: data}), nil

	case storage.DeleteElement:
		// ON DELETE CASCADE removes the element's attachments.
		_, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE id = ?`, c.ID)
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.AddLayer:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO layers (id, properties) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET properties = excluded.properties
		`, int64(c.ID), c.Properties)
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.DeleteLayer:
		res, err := tx.ExecContext(ctx, `DELETE FROM layers WHERE id = ?`, int64(c.ID))
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return append(out, storage.NotFound{}), nil
		}
		return append(out, storage.Updated{}), nil

	case storage.ReadLayers:
		rows, err := tx.QueryContext(ctx, `SELECT id, properties FROM layers ORDER BY id`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var props string
			if err := rows.Scan(&id, &props); err != nil {
				return nil, err
			}
			out = append(out, storage.LayerProperties{ID: uint64(id), Properties: props})
		}
		return out, rows.Err()

	case storage.WriteLayerProperties:
		res, err := tx.ExecContext(ctx, `UPDATE layers SET properties = ? WHERE id = ?`, c.Properties, int64(c.ID))
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return append(out, storage.NotFound{}), nil
		}
		return append(out, storage.Updated{}), nil

	case storage.ReadLayerProperties:
		var props string
		err := tx.QueryRowContext(ctx, `SELECT properties FROM layers WHERE id = ?`, int64(c.ID)).Scan(&props)
		if errors.Is(err, sql.ErrNoRows) {
			return append(out, storage.NotFound{}), nil
		}
		if err != nil {
			return nil, err
		}
		return append(out, storage.LayerProperties{ID: c.ID, Properties: props}), nil

	case storage.AddKeyFrame:
		if exists, err := layerExists(ctx, tx, c.Layer); err != nil {
			return nil, err
		} else if !exists {
			return append(out, storage.NotFound{}), nil
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO keyframes (layer_id, at_time) VALUES (?, ?)
		`, int64(c.Layer), int64(c.When))
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.DeleteKeyFrame:
		res, err := tx.ExecContext(ctx, `
			DELETE FROM keyframes WHERE layer_id = ? AND at_time = ?
		`, int64(c.Layer), int64(c.When))
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return append(out, storage.NotFound{}), nil
		}
		return append(out, storage.Updated{}), nil

	case storage.ReadKeyFrames:
		return s.readKeyFrames(ctx, tx, out, c)

	case storage.AttachElementToLayer:
		frame, ok, err := frameContaining(ctx, tx, c.Layer, c.When)
		if err != nil {
			return nil, err
		}
		if !ok {
			return append(out, storage.NotFound{}), nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO attachments (layer_id, at_time, element_id) VALUES (?, ?, ?)
		`, int64(c.Layer), int64(frame), c.Element)
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.DetachElementFromLayer:
		_, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE element_id = ?`, c.Element)
		if err != nil {
			return nil, err
		}
		return append(out, storage.Updated{}), nil

	case storage.ReadElementAttachments:
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT layer_id, at_time FROM attachments
			WHERE element_id = ?
			ORDER BY layer_id, at_time
		`, c.Element)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		resp := storage.ElementAttachments{Element: c.Element}
		for rows.Next() {
			var layer, at int64
			if err := rows.Scan(&layer, &at); err != nil {
				return nil, err
			}
			resp.Attached = append(resp.Attached, storage.Attachment{Layer: uint64(layer), When: time.Duration(at)})
		}
		return append(out, resp), rows.Err()

	case storage.ReadElementsForKeyFrame:
		frame, ok, err := frameContaining(ctx, tx, c.Layer, c.When)
		if err != nil {
			return nil, err
		}
		if !ok {
			return append(out, storage.NotFound{}), nil
		}
		rows, err := tx.QueryContext(ctx, `
			SELECT e.id, e.data FROM attachments a
			JOIN elements e ON e.id = a.element_id
			WHERE a.layer_id = ? AND a.at_time = ?
			ORDER BY a.id
		`, int64(c.Layer), int64(frame))
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var e storage.Element
			if err := rows.Scan(&e.ID, &e.Data); err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, rows.Err()

	default:
		return nil, fmt.Errorf("unknown storage command %T", cmd)
	}
}

func layerExists(ctx context.Context, tx *sql.Tx, layer uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM layers WHERE id = ?`, int64(layer)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// frameContaining returns the keyframe whose frame covers the given time:
// the greatest keyframe at or before it.
func frameContaining(ctx context.Context, tx *sql.Tx, layer uint64, when time.Duration) (time.Duration, bool, error) {
	var at int64
	err := tx.QueryRowContext(ctx, `
		SELECT at_time FROM keyframes
		WHERE layer_id = ? AND at_time <= ?
		ORDER BY at_time DESC LIMIT 1
	`, int64(layer), int64(when)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return time.Duration(at), true, nil
}

func (s *Store) readKeyFrames(ctx context.Context, tx *sql.Tx, out []storage.Response, c storage.ReadKeyFrames) ([]storage.Response, error) {
	if exists, err := layerExists(ctx, tx, c.Layer); err != nil {
		return nil, err
	} else if !exists {
		return append(out, storage.NotFound{}), nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT at_time FROM keyframes WHERE layer_id = ? ORDER BY at_time
	`, int64(c.Layer))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []time.Duration
	for rows.Next() {
		var at int64
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		starts = append(starts, time.Duration(at))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	found := false
	for i, start := range starts {
		end := storage.MaxDuration
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if end <= c.From || start >= c.Until {
			continue
		}
		out = append(out, storage.KeyFrame{Start: start, End: end})
		found = true
	}
	if !found {
		next := storage.MaxDuration
		for _, start := range starts {
			if start >= c.Until {
				next = start
				break
			}
		}
		out = append(out, storage.NotInAFrame{Next: next})
	}
	return out, nil
}
