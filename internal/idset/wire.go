package idset

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

// Serialize encodes s into the peer-compatible compact wire form
// (spec.md §6 "Wire formats": "variable-length encoding of range deltas
// per replica GUID"). The encoding is canonical: replicas with no ranges
// are omitted, replicas are written in sorted GUID order, and ranges are
// sorted and fused before encoding. serialize(parse(x)) == x for any
// canonical x (spec.md §8 I3).
//
// Layout:
//
//	uvarint replica_count
//	for each replica, in sorted GUID order:
//	    16 bytes   replica GUID
//	    uvarint    range_count (always > 0)
//	    uvarint    first range's Lo
//	    uvarint    first range's length (Hi - Lo + 1)
//	    for each subsequent range:
//	        uvarint   gap since previous Hi (Lo - prevHi - 1, always >= 1)
//	        uvarint   length (Hi - Lo + 1)
func Serialize(s *IdSet) []byte {
	if s == nil {
		s = New()
	}

	var buf bytes.Buffer

	var hdr [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(hdr[:], uint64(len(s.replicas)))
	buf.Write(hdr[:n])

	for _, guid := range s.replicas {
		rs := s.ranges[guid]
		if len(rs) == 0 {
			continue
		}

		buf.Write(guid[:])

		n = binary.PutUvarint(hdr[:], uint64(len(rs)))
		buf.Write(hdr[:n])

		prevHi := uint64(0)

		for i, r := range rs {
			length := r.Hi - r.Lo + 1

			if i == 0 {
				n = binary.PutUvarint(hdr[:], r.Lo)
				buf.Write(hdr[:n])
			} else {
				gap := r.Lo - prevHi - 1

				n = binary.PutUvarint(hdr[:], gap)
				buf.Write(hdr[:n])
			}

			n = binary.PutUvarint(hdr[:], length)
			buf.Write(hdr[:n])

			prevHi = r.Hi
		}
	}

	return buf.Bytes()
}

// Parse decodes the wire form produced by Serialize, returning
// ErrMalformed on truncated or non-monotone input (spec.md §4.2
// "Failure"; spec.md §7 "Malformed").
func Parse(data []byte) (*IdSet, error) {
	r := bytes.NewReader(data)

	replicaCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, ErrMalformed
	}

	out := New()

	for i := uint64(0); i < replicaCount; i++ {
		guid, rs, err := parseReplica(r)
		if err != nil {
			return nil, err
		}

		out.put(guid, rs)
	}

	if r.Len() != 0 {
		return nil, ErrMalformed
	}

	return out, nil
}

func parseReplica(r *bytes.Reader) (uuid.UUID, []Range, error) {
	var guidBytes [16]byte

	if _, err := readFull(r, guidBytes[:]); err != nil {
		return uuid.UUID{}, nil, ErrMalformed
	}

	guid := uuid.UUID(guidBytes)

	rangeCount, err := binary.ReadUvarint(r)
	if err != nil || rangeCount == 0 {
		return uuid.UUID{}, nil, ErrMalformed
	}

	rs := make([]Range, 0, rangeCount)

	prevHi := uint64(0)

	for i := uint64(0); i < rangeCount; i++ {
		var lo uint64

		if i == 0 {
			lo, err = binary.ReadUvarint(r)
			if err != nil {
				return uuid.UUID{}, nil, ErrMalformed
			}
		} else {
			gap, gapErr := binary.ReadUvarint(r)
			if gapErr != nil {
				return uuid.UUID{}, nil, ErrMalformed
			}

			lo = prevHi + gap + 1
		}

		length, lenErr := binary.ReadUvarint(r)
		if lenErr != nil || length == 0 {
			return uuid.UUID{}, nil, ErrMalformed
		}

		hi := lo + length - 1
		if i > 0 && lo <= prevHi+1 {
			// Non-monotone: ranges must be strictly increasing and
			// non-adjacent (spec.md §3 invariant ii).
			return uuid.UUID{}, nil, ErrMalformed
		}

		rs = append(rs, Range{Lo: lo, Hi: hi})
		prevHi = hi
	}

	return guid, rs, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0

	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m

		if err != nil {
			return n, err
		}
	}

	return n, nil
}
