// Package idset implements the compact range-set algebra used to describe
// "what the peer already has" (spec.md §4.2): sets of 48-bit global
// counters or change numbers, grouped by 16-byte replica GUID, stored as
// sorted non-overlapping, non-adjacent inclusive ranges.
package idset

import (
	"errors"
	"sort"

	"github.com/google/uuid"
)

// ErrMalformed is returned by Parse on truncated or non-monotone wire
// input (spec.md §4.2 "Failure").
var ErrMalformed = errors.New("idset: malformed wire input")

// Range is an inclusive [Lo, Hi] range of 48-bit counters.
type Range struct {
	Lo uint64
	Hi uint64
}

// IdSet is an ordered mapping replica GUID -> sorted, fused inclusive
// ranges (spec.md §3 "IdSet"). The zero value is an empty set.
type IdSet struct {
	// replicas lists the GUIDs in sorted byte order; ranges within each
	// entry are kept sorted by Lo and fused (invariants i, ii of spec.md
	// §3).
	replicas []uuid.UUID
	ranges   map[uuid.UUID][]Range

	// single marks a set destined for a change-number-seen slot: merges
	// retain only the final range per replica (spec.md §4.2 "Property
	// 'single'").
	single bool
}

// New returns an empty IdSet.
func New() *IdSet {
	return &IdSet{ranges: make(map[uuid.UUID][]Range)}
}

// SetSingle marks the set as "single" (spec.md §4.2). Returns the set for
// chaining.
func (s *IdSet) SetSingle(single bool) *IdSet {
	s.single = single
	return s
}

// Single reports whether the set carries the "single" flag.
func (s *IdSet) Single() bool {
	return s.single
}

// Replicas returns the GUIDs with at least one range, in the set's
// canonical (sorted) order. The caller must not mutate the result.
func (s *IdSet) Replicas() []uuid.UUID {
	out := make([]uuid.UUID, len(s.replicas))
	copy(out, s.replicas)

	return out
}

// Ranges returns a copy of the ranges for guid, or nil if guid has none.
func (s *IdSet) Ranges(guid uuid.UUID) []Range {
	rs := s.ranges[guid]
	if len(rs) == 0 {
		return nil
	}

	out := make([]Range, len(rs))
	copy(out, rs)

	return out
}

// IsEmpty reports whether the set has no ranges at all.
func (s *IdSet) IsEmpty() bool {
	return len(s.replicas) == 0
}

// Includes reports whether id is a member of guid's range list under s
// (spec.md §4.2 "includes"), using binary search over the sorted ranges.
func (s *IdSet) Includes(guid uuid.UUID, id uint64) bool {
	rs := s.ranges[guid]
	if len(rs) == 0 {
		return false
	}

	i := sort.Search(len(rs), func(i int) bool { return rs[i].Hi >= id })

	return i < len(rs) && rs[i].Lo <= id
}

// put installs a canonical (sorted, fused) range list for guid, dropping
// the entry entirely if rs is empty, and keeping s.replicas in sorted
// order.
func (s *IdSet) put(guid uuid.UUID, rs []Range) {
	_, existed := s.ranges[guid]

	if len(rs) == 0 {
		if existed {
			delete(s.ranges, guid)
			s.removeReplica(guid)
		}

		return
	}

	if s.ranges == nil {
		s.ranges = make(map[uuid.UUID][]Range)
	}

	s.ranges[guid] = rs

	if !existed {
		s.insertReplicaSorted(guid)
	}
}

func (s *IdSet) removeReplica(guid uuid.UUID) {
	for i, g := range s.replicas {
		if g == guid {
			s.replicas = append(s.replicas[:i], s.replicas[i+1:]...)
			return
		}
	}
}

func (s *IdSet) insertReplicaSorted(guid uuid.UUID) {
	i := sort.Search(len(s.replicas), func(i int) bool {
		return compareGUID(s.replicas[i], guid) >= 0
	})

	s.replicas = append(s.replicas, uuid.UUID{})
	copy(s.replicas[i+1:], s.replicas[i:])
	s.replicas[i] = guid
}

func compareGUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}

			return 1
		}
	}

	return 0
}

// fuse sorts rs by Lo and merges ranges whose gap is zero, i.e. fuses r1,
// r2 when r1.Hi+1 >= r2.Lo (spec.md §3 invariant ii, §4.2 "merge... fuse
// ranges whose gap is zero after union").
func fuse(rs []Range) []Range {
	if len(rs) == 0 {
		return nil
	}

	sort.Slice(rs, func(i, j int) bool { return rs[i].Lo < rs[j].Lo })

	out := make([]Range, 0, len(rs))
	cur := rs[0]

	for _, r := range rs[1:] {
		if r.Lo <= cur.Hi+1 {
			if r.Hi > cur.Hi {
				cur.Hi = r.Hi
			}

			continue
		}

		out = append(out, cur)
		cur = r
	}

	out = append(out, cur)

	return out
}

// Merge replica-wise unions a and b, fusing adjacent/overlapping ranges
// (spec.md §4.2 "merge"). It is associative and commutative, and
// merge(x, empty) == x (spec.md §8 I2). When either set is marked
// "single", the result is single and keeps only the final (highest)
// range per replica, per spec.md §4.2 "Property 'single'".
func Merge(a, b *IdSet) *IdSet {
	if a == nil {
		a = New()
	}

	if b == nil {
		b = New()
	}

	out := New()
	out.single = a.single || b.single

	seen := make(map[uuid.UUID]bool)

	for _, guid := range append(append([]uuid.UUID{}, a.replicas...), b.replicas...) {
		if seen[guid] {
			continue
		}

		seen[guid] = true

		combined := append(append([]Range{}, a.ranges[guid]...), b.ranges[guid]...)
		fused := fuse(combined)

		if out.single && len(fused) > 0 {
			fused = fused[len(fused)-1:]
		}

		out.put(guid, fused)
	}

	return out
}

// Push adds id under guid's range list, fusing with neighbors in place.
// Used by SyncContext merging a single newly-derived id without
// rebuilding the whole set (a convenience wrapper over Merge for exactly
// one point).
func (s *IdSet) Push(guid uuid.UUID, id uint64) {
	point := New()
	point.put(guid, []Range{{Lo: id, Hi: id}})

	merged := Merge(s, point)
	*s = *merged
}

// Clone returns a deep copy of s.
func (s *IdSet) Clone() *IdSet {
	out := New()
	out.single = s.single

	for _, guid := range s.replicas {
		rs := make([]Range, len(s.ranges[guid]))
		copy(rs, s.ranges[guid])
		out.put(guid, rs)
	}

	return out
}
