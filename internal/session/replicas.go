package session

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// localReplicaID is the session-local replica id this process always
// uses for itself (spec.md §4.3 "the local replica is always id 1").
const localReplicaID fxid.ReplicaID = 1

// ReplicaAllocator backs GetLocalReplicaIds (spec.md §6
// "GetLocalReplicaIds(count) -> (guid, starting_gc)"): it reserves a
// contiguous range of global-counter values for the local replica and
// reports the range's start. mu serializes concurrent reservations so
// the store's allocator sees one in-flight reservation at a time and two
// callers requesting the same count still get disjoint ranges.
type ReplicaAllocator struct {
	st  store.Store
	reg fxid.ReplicaRegistry

	mu sync.Mutex
}

// NewReplicaAllocator returns an allocator over st/reg.
func NewReplicaAllocator(st store.Store, reg fxid.ReplicaRegistry) *ReplicaAllocator {
	return &ReplicaAllocator{st: st, reg: reg}
}

// GetLocalReplicaIds reserves count consecutive global-counter values and
// returns the local replica's GUID and the 6-byte little-endian starting
// global counter (spec.md §6 "GetLocalReplicaIds").
func (a *ReplicaAllocator) GetLocalReplicaIds(ctx context.Context, count int) ([16]byte, [6]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	guid, err := a.reg.ReplicaGUID(localReplicaID)
	if err != nil {
		return [16]byte{}, [6]byte{}, err
	}

	start, err := a.st.ReserveFMIDRange(ctx, count)
	if err != nil {
		return [16]byte{}, [6]byte{}, err
	}

	var tail [8]byte
	binary.LittleEndian.PutUint64(tail[:], start)

	var gc [6]byte
	copy(gc[:], tail[:6])

	return [16]byte(guid), gc, nil
}
