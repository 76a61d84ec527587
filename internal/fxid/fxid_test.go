package fxid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRegistry struct {
	byID   map[ReplicaID]uuid.UUID
	byGUID map[uuid.UUID]ReplicaID
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		byID:   make(map[ReplicaID]uuid.UUID),
		byGUID: make(map[uuid.UUID]ReplicaID),
	}
}

func (m *memRegistry) register(id ReplicaID, guid uuid.UUID) {
	m.byID[id] = guid
	m.byGUID[guid] = id
}

func (m *memRegistry) ReplicaGUID(id ReplicaID) (uuid.UUID, error) {
	guid, ok := m.byID[id]
	if !ok {
		return uuid.UUID{}, ErrUnknownReplica
	}

	return guid, nil
}

func (m *memRegistry) ReplicaID(guid uuid.UUID) (ReplicaID, error) {
	id, ok := m.byGUID[guid]
	if !ok {
		return 0, ErrUnknownReplica
	}

	return id, nil
}

// TestFMIDSourceKeyRoundTrip verifies invariant I1 from spec.md §8: for
// all FMIDs with a known replica, decoding the encoded source key yields
// the original FMID exactly.
func TestFMIDSourceKeyRoundTrip(t *testing.T) {
	reg := newMemRegistry()
	guid := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	reg.register(1, guid)

	for _, gc := range []GlobalCounter{0, 1, 0xffffffffffff, 0x010203040506} {
		f := NewFMID(1, gc)

		sk, err := SourceKeyFromFMID(reg, f)
		require.NoError(t, err)

		got, err := FMIDFromSourceKey(reg, sk)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestSourceKeyLayout(t *testing.T) {
	reg := newMemRegistry()
	guid := uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d0e0f")
	reg.register(1, guid)

	f := NewFMID(1, 1)

	sk, err := SourceKeyFromFMID(reg, f)
	require.NoError(t, err)

	assert.Equal(t, guid[:], sk[:16])
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}, sk[16:22])
}

func TestFMIDFromSourceKey_UnknownReplica(t *testing.T) {
	reg := newMemRegistry()

	var sk SourceKey
	copy(sk[:16], uuid.New().NodeID()) // arbitrary unregistered bytes

	_, err := FMIDFromSourceKey(reg, sk)
	require.ErrorIs(t, err, ErrUnknownReplica)
}

func TestMakeXIDAndMakeGID(t *testing.T) {
	guid := uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d0e0f")

	xid := MakeXID(guid, 0x0102030405, 5)
	require.Len(t, xid, 21)
	assert.Equal(t, guid[:], xid[:16])
	assert.Equal(t, []byte{0x05, 0x04, 0x03, 0x02, 0x01}, xid[16:])

	gid := MakeGID(guid, 1)
	require.Len(t, gid, 22)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}, gid[16:])
}

func TestReplicaIDAndGlobalCounterAccessors(t *testing.T) {
	f := NewFMID(0x1234, 0x0000123456789abc&globalCounterMask)
	assert.Equal(t, ReplicaID(0x1234), f.ReplicaID())
	assert.Equal(t, GlobalCounter(0x123456789abc), f.GlobalCounter())
}
