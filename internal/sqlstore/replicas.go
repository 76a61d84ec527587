package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tonimelisma/fxicsd/internal/fxid"
)

// ReplicaGUID and ReplicaID implement fxid.ReplicaRegistry directly off
// the replicas table (spec.md §6 "replid_to_guid"/"guid_to_replid").
func (s *Store) ReplicaGUID(id fxid.ReplicaID) (uuid.UUID, error) {
	var blob []byte

	err := s.stmts.replicaGUID.QueryRow(int64(id)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.UUID{}, fxid.ErrUnknownReplica
	}

	if err != nil {
		return uuid.UUID{}, fmt.Errorf("sqlstore: resolving replica %d: %w", id, err)
	}

	guid, err := uuid.FromBytes(blob)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("sqlstore: decoding stored replica guid: %w", err)
	}

	return guid, nil
}

func (s *Store) ReplicaID(guid uuid.UUID) (fxid.ReplicaID, error) {
	var id int64

	err := s.stmts.replicaID.QueryRow(guid[:]).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fxid.ErrUnknownReplica
	}

	if err != nil {
		return 0, fmt.Errorf("sqlstore: resolving replica guid: %w", err)
	}

	return fxid.ReplicaID(id), nil
}

// RegisterReplica records a replica id/GUID pairing. The local replica
// (id 1) must be registered once at store provisioning time. No import
// registers a foreign replica: ImportHierarchyChange/ImportMessageChange
// reject a source key whose replica GUID is not registered here, so a
// foreign replica is known only once this method has recorded it.
func (s *Store) RegisterReplica(ctx context.Context, id fxid.ReplicaID, guid uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO replicas (replica_id, guid) VALUES (?, ?)
		ON CONFLICT(replica_id) DO UPDATE SET guid = excluded.guid`, int64(id), guid[:])
	if err != nil {
		return fmt.Errorf("sqlstore: registering replica %d: %w", id, err)
	}

	return nil
}
