package idset

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeEmptySetParsesToEmptySet(t *testing.T) {
	wire := Serialize(New())

	parsed, err := Parse(wire)
	require.NoError(t, err)
	assert.True(t, parsed.IsEmpty())
}

func TestParse_TruncatedInputIsMalformed(t *testing.T) {
	full := buildSet(t, map[uuid.UUID][]Range{guidA: {{Lo: 1, Hi: 5}}})
	wire := Serialize(full)

	for n := 0; n < len(wire); n++ {
		_, err := Parse(wire[:n])
		require.ErrorIs(t, err, ErrMalformed, "truncation at byte %d must be malformed", n)
	}
}

func uvarint(v uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)

	return buf[:n]
}

// TestParse_ZeroLengthRangeIsMalformed hand-crafts a replica entry whose
// second range has a zero-length encoding, which parseReplica must
// reject outright (spec.md §4.2 "Failure").
func TestParse_ZeroLengthRangeIsMalformed(t *testing.T) {
	var zeroLenBuf bytes.Buffer

	zeroLenBuf.Write(guidA[:])
	zeroLenBuf.Write(uvarint(2))
	zeroLenBuf.Write(uvarint(1)) // lo=1
	zeroLenBuf.Write(uvarint(5)) // length=5 -> hi=5
	zeroLenBuf.Write(uvarint(0)) // gap=0 -> lo=6
	zeroLenBuf.Write(uvarint(0)) // length=0 -> rejected: length must be > 0

	_, _, err := parseReplica(bytes.NewReader(zeroLenBuf.Bytes()))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParse_ZeroRangeCountIsMalformed(t *testing.T) {
	var buf bytes.Buffer

	buf.Write(guidA[:])
	buf.Write(uvarint(0)) // range_count = 0, invalid

	_, _, err := parseReplica(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, ErrMalformed)
}
