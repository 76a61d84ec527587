package sqlstore

import (
	"context"
	"fmt"

	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

func (s *Store) OpenTable(ctx context.Context, folder store.Handle, kind store.TableKind) (store.Table, error) {
	var handles []store.Handle

	switch kind {
	case store.HierarchyTable:
		rows, err := s.stmts.listChildren.QueryContext(ctx, int64(folder))
		if err != nil {
			return nil, fmt.Errorf("sqlstore: opening hierarchy table for %d: %w", folder, err)
		}
		defer rows.Close()

		handles, err = scanHandles(rows)
		if err != nil {
			return nil, err
		}
	case store.ContentsTable, store.FAIContentsTable:
		associated := 0
		if kind == store.FAIContentsTable {
			associated = 1
		}

		rows, err := s.stmts.listMessages.QueryContext(ctx, int64(folder), associated)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: opening contents table for %d: %w", folder, err)
		}
		defer rows.Close()

		handles, err = scanHandles(rows)
		if err != nil {
			return nil, err
		}
	default:
		return nil, store.ErrNotAFolder
	}

	return &objectTable{store: s, handles: handles}, nil
}

func (s *Store) OpenRecipientsTable(ctx context.Context, message store.Handle) (store.Table, error) {
	return s.openSubRows(ctx, "recipients", message)
}

func (s *Store) OpenAttachmentsTable(ctx context.Context, message store.Handle) (store.Table, error) {
	return s.openSubRows(ctx, "attachments", message)
}

func (s *Store) openSubRows(ctx context.Context, tableName string, message store.Handle) (store.Table, error) {
	query := fmt.Sprintf(`SELECT row_order, tag, value_type, value_blob FROM %s WHERE message_handle = ? ORDER BY row_order, tag`, tableName)

	rows, err := s.db.QueryContext(ctx, query, int64(message))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s for message %d: %w", tableName, message, err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]store.PropValue)
	var order []int64

	for rows.Next() {
		var rowOrder int64
		var tag int64
		var valueType int64
		var blob []byte

		if err := rows.Scan(&rowOrder, &tag, &valueType, &blob); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning %s row: %w", tableName, err)
		}

		v, err := decodeValue(uint16(valueType), blob)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decoding %s value: %w", tableName, err)
		}

		if _, seen := byOrder[rowOrder]; !seen {
			order = append(order, rowOrder)
		}

		byOrder[rowOrder] = append(byOrder[rowOrder], store.PropValue{Tag: propstream.PropTag(uint32(tag)), Value: v})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	rowSet := make([][]store.PropValue, len(order))
	for i, o := range order {
		rowSet[i] = byOrder[o]
	}

	return &rowTable{rows: rowSet}, nil
}

// PutRecipient and PutAttachment seed a message's recipient/attachment
// sub-tables (spec.md §6 has no RPC that populates these; a real store
// fills them out-of-band the way it ingests mail in the first place).
func (s *Store) PutRecipient(ctx context.Context, message store.Handle, order int, props []store.PropValue) error {
	return s.putSubRow(ctx, "recipients", message, order, props)
}

func (s *Store) PutAttachment(ctx context.Context, message store.Handle, order int, props []store.PropValue) error {
	return s.putSubRow(ctx, "attachments", message, order, props)
}

func (s *Store) putSubRow(ctx context.Context, tableName string, message store.Handle, order int, props []store.PropValue) error {
	query := fmt.Sprintf(`INSERT INTO %s (message_handle, row_order, tag, value_type, value_blob) VALUES (?, ?, ?, ?, ?)`, tableName)

	for _, pv := range props {
		valueType, blob, err := encodeValue(pv.Value)
		if err != nil {
			return fmt.Errorf("sqlstore: encoding %s property %#x: %w", tableName, pv.Tag, err)
		}

		if _, err := s.db.ExecContext(ctx, query, int64(message), order, int64(pv.Tag), valueType, blob); err != nil {
			return fmt.Errorf("sqlstore: writing %s row: %w", tableName, err)
		}
	}

	return nil
}

func scanHandles(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]store.Handle, error) {
	var handles []store.Handle

	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning handle: %w", err)
		}

		handles = append(handles, store.Handle(h))
	}

	return handles, rows.Err()
}

// objectTable is a store.Table over a fixed slice of folder/message
// handles, reading each row's columns through Store.Properties.
type objectTable struct {
	store   *Store
	handles []store.Handle
	columns []propstream.PropTag
}

func (t *objectTable) SetColumns(_ context.Context, tags []propstream.PropTag) error {
	t.columns = tags
	return nil
}

func (t *objectTable) RowCount(_ context.Context) (int, error) {
	return len(t.handles), nil
}

func (t *objectTable) GetRow(ctx context.Context, i int) ([]propstream.Value, []store.PropStatus, error) {
	if i < 0 || i >= len(t.handles) {
		return nil, nil, store.ErrNotAFolder
	}

	return t.store.Properties(ctx, t.handles[i], t.columns)
}

// rowTable is a store.Table over precomputed (tag, value) rows, used for
// recipients and attachments.
type rowTable struct {
	rows    [][]store.PropValue
	columns []propstream.PropTag
}

func (t *rowTable) SetColumns(_ context.Context, tags []propstream.PropTag) error {
	t.columns = tags
	return nil
}

func (t *rowTable) RowCount(_ context.Context) (int, error) {
	return len(t.rows), nil
}

func (t *rowTable) GetRow(_ context.Context, i int) ([]propstream.Value, []store.PropStatus, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, nil, store.ErrNotAFolder
	}

	byTag := make(map[propstream.PropTag]propstream.Value, len(t.rows[i]))
	for _, pv := range t.rows[i] {
		byTag[pv.Tag] = pv.Value
	}

	values := make([]propstream.Value, len(t.columns))
	statuses := make([]store.PropStatus, len(t.columns))

	for col, tag := range t.columns {
		if v, ok := byTag[tag]; ok {
			values[col] = v
			statuses[col] = store.PropFound
		} else {
			statuses[col] = store.PropNotFound
		}
	}

	return values, statuses, nil
}
