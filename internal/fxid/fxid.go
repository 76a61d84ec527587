// Package fxid provides the FMID/SourceKey/ChangeKey identifier codec
// described in spec.md §4.1. A folder or a message is named internally by
// a 64-bit FMID (48-bit global counter, low 16 bits a session-local
// replica id); on the wire it is named by a 22-byte source key (16-byte
// replica GUID plus 6-byte little-endian global counter). This is a leaf
// package: it depends on nothing but the standard library and
// github.com/google/uuid.
package fxid

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnknownReplica is returned when a source key or change key names a
// replica GUID the registry does not recognize (spec.md §4.1, §7 NotFound).
var ErrUnknownReplica = errors.New("fxid: unknown replica guid")

// SourceKeyLen and ChangeKeyLen are both 22 bytes: a 16-byte replica GUID
// followed by a 6-byte little-endian tail (spec.md §3).
const (
	SourceKeyLen = 22
	ChangeKeyLen = 22

	guidLen    = 16
	maxIDBytes = 8
)

// FMID is a packed 64-bit folder or message identifier: the low 16 bits
// are a session-local replica id, the high 48 bits a global counter
// (spec.md §3 "FMID"). A folder and a message share this type; the
// caller's context distinguishes them.
type FMID uint64

// ReplicaID is the low 16 bits of an FMID — a session-local tag that maps
// 1:1 to a replica GUID through a ReplicaRegistry.
type ReplicaID uint16

// GlobalCounter is the high 48 bits of an FMID, also used as the tail of
// a SourceKey and (reinterpreted) of a ChangeKey.
type GlobalCounter uint64

const globalCounterMask = (uint64(1) << 48) - 1

// NewFMID packs a replica id and a 48-bit global counter into an FMID.
// Bits above 48 in gc are silently discarded, matching the source's
// packed-word semantics.
func NewFMID(replica ReplicaID, gc GlobalCounter) FMID {
	return FMID((uint64(gc) << 16) | uint64(replica))
}

// ReplicaID returns the low 16 bits of the FMID.
func (f FMID) ReplicaID() ReplicaID {
	return ReplicaID(uint64(f) & 0xffff)
}

// GlobalCounter returns the high 48 bits of the FMID.
func (f FMID) GlobalCounter() GlobalCounter {
	return GlobalCounter(uint64(f) >> 16)
}

// SourceKey is the 22-byte wire form of an FMID: replica GUID (16 bytes)
// followed by the global counter, little-endian, in the low 6 bytes
// (spec.md §3 "SourceKey").
type SourceKey [SourceKeyLen]byte

// ChangeKey is the 22-byte wire form of (replica, change number): same
// layout as SourceKey, but the tail is a change number rather than a
// global counter (spec.md §3 "XID / ChangeKey").
type ChangeKey [ChangeKeyLen]byte

// ReplicaRegistry resolves between a session-local replica id and its
// 16-byte GUID (spec.md §6 "replid_to_guid"/"guid_to_replid"). The core
// treats this purely as an external collaborator; internal/sqlstore and
// testutil provide implementations.
type ReplicaRegistry interface {
	// ReplicaGUID returns the GUID for a known replica id, or
	// ErrUnknownReplica if id is not registered.
	ReplicaGUID(id ReplicaID) (uuid.UUID, error)
	// ReplicaID returns the session-local id for a known GUID, or
	// ErrUnknownReplica if guid is not registered.
	ReplicaID(guid uuid.UUID) (ReplicaID, error)
}

// FMIDFromSourceKey validates and decodes a 22-byte source key into an
// FMID, resolving the replica GUID through reg. Returns ErrUnknownReplica
// when the GUID is not registered (spec.md §4.1, §7 NotFound).
func FMIDFromSourceKey(reg ReplicaRegistry, sk SourceKey) (FMID, error) {
	guid, err := uuid.FromBytes(sk[:guidLen])
	if err != nil {
		return 0, fmt.Errorf("fxid: decoding source key guid: %w", err)
	}

	replica, err := reg.ReplicaID(guid)
	if err != nil {
		return 0, err
	}

	gc := readUint48LE(sk[guidLen:])

	return NewFMID(replica, GlobalCounter(gc)), nil
}

// SourceKeyFromFMID encodes an FMID as a 22-byte source key, resolving
// the FMID's replica id to a GUID through reg.
func SourceKeyFromFMID(reg ReplicaRegistry, f FMID) (SourceKey, error) {
	guid, err := reg.ReplicaGUID(f.ReplicaID())
	if err != nil {
		return SourceKey{}, err
	}

	return makeXID(guid, uint64(f.GlobalCounter()), 6), nil
}

// ChangeKeyFromReplica builds a 22-byte change key from a replica GUID
// and a change number (spec.md §3 "XID / ChangeKey").
func ChangeKeyFromReplica(guid uuid.UUID, cn uint64) ChangeKey {
	return ChangeKey(makeXID(guid, cn, 6))
}

// MakeXID produces guid || id_le[0:idLen], the shared layout underlying
// both SourceKey and ChangeKey (spec.md §4.1 "make_xid"). idLen must be
// at most 8.
func MakeXID(guid uuid.UUID, id uint64, idLen int) []byte {
	if idLen <= 0 || idLen > maxIDBytes {
		panic(fmt.Sprintf("fxid: MakeXID: invalid id_len %d", idLen))
	}

	var tail [maxIDBytes]byte
	binary.LittleEndian.PutUint64(tail[:], id)

	out := make([]byte, 0, guidLen+idLen)
	out = append(out, guid[:]...)

	return append(out, tail[:idLen]...)
}

// MakeGID is MakeXID with idLen fixed at 6, spec.md §4.1 "make_gid".
func MakeGID(guid uuid.UUID, id uint64) []byte {
	arr := makeXID(guid, id, 6)
	return arr[:guidLen+6]
}

func makeXID(guid uuid.UUID, id uint64, idLen int) [22]byte {
	if idLen <= 0 || idLen > maxIDBytes {
		panic(fmt.Sprintf("fxid: makeXID: invalid id_len %d", idLen))
	}

	var out [22]byte
	copy(out[:guidLen], guid[:])

	var tail [maxIDBytes]byte
	binary.LittleEndian.PutUint64(tail[:], id)
	copy(out[guidLen:guidLen+idLen], tail[:idLen])

	return out
}

func readUint48LE(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:6], b[:6])

	return binary.LittleEndian.Uint64(buf[:])
}
