package config

import "github.com/google/uuid"

// ReplicaGUIDOrGenerate parses cfg.Replica.GUID if set, otherwise mints a
// new random replica GUID. Callers that mint one should persist it back
// into the config file so the replica identity survives restarts (spec.md
// §3 "Replica" — a replica's GUID must be stable across the process
// lifetime it owns data for).
func ReplicaGUIDOrGenerate(cfg *Config) (uuid.UUID, bool, error) {
	if cfg.Replica.GUID == "" {
		return uuid.New(), true, nil
	}

	guid, err := uuid.Parse(cfg.Replica.GUID)

	return guid, false, err
}
