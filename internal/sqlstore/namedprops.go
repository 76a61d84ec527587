package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// ResolveNamed implements propstream.Resolver (spec.md §6
// "namedprops_lookup(id) -> (guid, kind, lid|name)"), making *Store
// usable wherever a store.NamedPropsResolver is expected.
func (s *Store) ResolveNamed(tag propstream.PropTag) (propstream.NamedInfo, error) {
	var guid []byte
	var kind int64
	var lid sql.NullInt64
	var name sql.NullString

	err := s.stmts.namedProp.QueryRow(int64(tag)).Scan(&guid, &kind, &lid, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return propstream.NamedInfo{}, store.ErrNamedPropNotFound
	}

	if err != nil {
		return propstream.NamedInfo{}, fmt.Errorf("sqlstore: resolving named property %#x: %w", tag, err)
	}

	info := propstream.NamedInfo{Kind: propstream.NamedKind(kind)}
	copy(info.GUID[:], guid)

	if lid.Valid {
		info.LID = uint32(lid.Int64)
	}

	if name.Valid {
		info.Name = name.String
	}

	return info, nil
}

// RegisterNamedProp records a named-property mapping so subsequent
// ResolveNamed calls against tag succeed.
func (s *Store) RegisterNamedProp(ctx context.Context, tag propstream.PropTag, info propstream.NamedInfo) error {
	var lid sql.NullInt64
	var name sql.NullString

	switch info.Kind {
	case propstream.NamedKindID:
		lid = sql.NullInt64{Int64: int64(info.LID), Valid: true}
	case propstream.NamedKindString:
		name = sql.NullString{String: info.Name, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO named_props (tag, guid, kind, lid, name) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET guid = excluded.guid, kind = excluded.kind, lid = excluded.lid, name = excluded.name`,
		int64(tag), info.GUID[:], int64(info.Kind), lid, name)
	if err != nil {
		return fmt.Errorf("sqlstore: registering named property %#x: %w", tag, err)
	}

	return nil
}
