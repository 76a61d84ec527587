package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

func (s *Store) AvailableProperties(ctx context.Context, obj store.Handle) ([]propstream.PropTag, error) {
	rows, err := s.stmts.availableProps.QueryContext(ctx, int64(obj))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: available properties for handle %d: %w", obj, err)
	}
	defer rows.Close()

	var tags []propstream.PropTag

	for rows.Next() {
		var tag int64
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning available property tag: %w", err)
		}

		tags = append(tags, propstream.PropTag(uint32(tag)))
	}

	return tags, rows.Err()
}

func (s *Store) Properties(ctx context.Context, obj store.Handle, tags []propstream.PropTag) ([]propstream.Value, []store.PropStatus, error) {
	values := make([]propstream.Value, len(tags))
	statuses := make([]store.PropStatus, len(tags))

	for i, tag := range tags {
		if tag == mapitags.TagMid || tag == mapitags.TagFid {
			var fid int64
			var isFolder bool

			err := s.db.QueryRowContext(ctx, `SELECT fid, is_folder FROM objects WHERE handle = ?`, int64(obj)).Scan(&fid, &isFolder)
			if err == nil && isFolder == (tag == mapitags.TagFid) {
				values[i], statuses[i] = propstream.I8Value(fid), store.PropFound
				continue
			}
		}

		var valueType int64
		var blob []byte

		err := s.stmts.getProp.QueryRowContext(ctx, int64(obj), int64(tag)).Scan(&valueType, &blob)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			statuses[i] = store.PropNotFound
		case err != nil:
			return nil, nil, fmt.Errorf("sqlstore: reading property %#x on handle %d: %w", tag, obj, err)
		default:
			v, decErr := decodeValue(uint16(valueType), blob)
			if decErr != nil {
				statuses[i] = store.PropError
				continue
			}

			values[i] = v
			statuses[i] = store.PropFound
		}
	}

	return values, statuses, nil
}

func (s *Store) OpenFolder(ctx context.Context, parent store.Handle, fid fxid.FMID) (store.Handle, error) {
	var handle int64

	err := s.stmts.lookupChild.QueryRowContext(ctx, int64(parent), int64(fid), 1).Scan(&handle)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotAFolder
	}

	if err != nil {
		return 0, fmt.Errorf("sqlstore: opening folder %#x under %d: %w", fid, parent, err)
	}

	return store.Handle(handle), nil
}

func (s *Store) CreateFolder(ctx context.Context, parent store.Handle, fid fxid.FMID, props []store.PropValue) (store.Handle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: begin create folder: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.StmtContext(ctx, s.stmts.insertObject).ExecContext(ctx, int64(fid), 1, int64(parent), 0)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: inserting folder %#x under %d: %w", fid, parent, err)
	}

	handle, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: resolving new folder handle: %w", err)
	}

	if err := insertProps(ctx, tx, s.stmts.upsertProp, store.Handle(handle), props); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: committing create folder: %w", err)
	}

	return store.Handle(handle), nil
}

func (s *Store) OpenMessage(ctx context.Context, folder store.Handle, fid fxid.FMID) (store.Handle, error) {
	var handle int64

	err := s.stmts.lookupChild.QueryRowContext(ctx, int64(folder), int64(fid), 0).Scan(&handle)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotAMessage
	}

	if err != nil {
		return 0, fmt.Errorf("sqlstore: opening message %#x in %d: %w", fid, folder, err)
	}

	return store.Handle(handle), nil
}

func (s *Store) CreateMessage(ctx context.Context, folder store.Handle, fid fxid.FMID, associated bool) (store.Handle, error) {
	res, err := s.stmts.insertObject.ExecContext(ctx, int64(fid), 0, int64(folder), boolInt(associated))
	if err != nil {
		return 0, fmt.Errorf("sqlstore: inserting message %#x in %d: %w", fid, folder, err)
	}

	handle, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: resolving new message handle: %w", err)
	}

	return store.Handle(handle), nil
}

func (s *Store) SetProperties(ctx context.Context, obj store.Handle, props []store.PropValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin set properties: %w", err)
	}
	defer tx.Rollback()

	if err := insertProps(ctx, tx, s.stmts.upsertProp, obj, props); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) DeleteMessage(ctx context.Context, folder store.Handle, fid fxid.FMID, hard bool) error {
	stmt := s.stmts.markDeleted
	if hard {
		stmt = s.stmts.hardDelete
	}

	res, err := stmt.ExecContext(ctx, int64(folder), int64(fid))
	if err != nil {
		return fmt.Errorf("sqlstore: deleting message %#x in %d: %w", fid, folder, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking delete result: %w", err)
	}

	if n == 0 {
		return store.ErrNotAMessage
	}

	return nil
}

func insertProps(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, obj store.Handle, props []store.PropValue) error {
	txStmt := tx.StmtContext(ctx, stmt)

	for _, pv := range props {
		valueType, blob, err := encodeValue(pv.Value)
		if err != nil {
			return fmt.Errorf("sqlstore: encoding property %#x on handle %d: %w", pv.Tag, obj, err)
		}

		if _, err := txStmt.ExecContext(ctx, int64(obj), int64(pv.Tag), valueType, blob); err != nil {
			return fmt.Errorf("sqlstore: writing property %#x on handle %d: %w", pv.Tag, obj, err)
		}
	}

	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
