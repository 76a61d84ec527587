package fxid

import "time"

// Epoch is the server's fixed birth-time constant (spec.md §4.1:
// "EPOCH = 0x4dbb2dbe (fixed constant, the server's birth time)"). It is
// an immutable package-level value (spec.md §9 "Global mutable state").
const Epoch uint32 = 0x4dbb2dbe

// ChangeNumber derives cn from an FMID and a last-modification time,
// following spec.md §4.1:
//
//	cn = ((fmid & 0xffff000000000000) >> 16) | (globcnt(unix_time - EPOCH) >> 16)
//
// When lastModified is zero or predates Epoch, Epoch is substituted
// first, so cn strictly increases with wall time and never collides with
// legacy ids (spec.md §4.1 "Rationale").
func ChangeNumber(f FMID, lastModified time.Time) uint64 {
	secs := coerceToEpoch(lastModified)

	delta := secs - Epoch

	highFMID := uint64(f) & 0xffff000000000000
	gc := globcnt(delta)

	return (highFMID >> 16) | (gc >> 16)
}

// coerceToEpoch returns lastModified as Unix seconds, substituting Epoch
// when lastModified is the zero time or predates it (spec.md §4.1).
func coerceToEpoch(lastModified time.Time) uint32 {
	if lastModified.IsZero() {
		return Epoch
	}

	secs := lastModified.Unix()
	if secs < 0 || uint32(secs) < Epoch {
		return Epoch
	}

	return uint32(secs)
}

// globcnt is the pure, deterministic 32-bit-delta -> 48-bit monotone
// injection referenced by spec.md §4.1: "the implementer must define
// globcnt as a pure function; the source uses a bit-interleaved counter
// but treats it opaquely -- any monotone injection u32 -> u48 suffices
// provided it is stable across restarts." Shifting the 32-bit delta left
// by 16 keeps it within 48 bits and is monotone, deterministic, and
// restart-stable by construction; ChangeNumber's ">> 16" then recovers
// the full delta, so cn changes with every second of wall time.
func globcnt(delta uint32) uint64 {
	return uint64(delta) << 16
}
