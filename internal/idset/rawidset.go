package idset

import (
	"sort"

	"github.com/google/uuid"
)

// point is one (replica, id) pair pushed onto a RawIdSet.
type point struct {
	guid uuid.UUID
	id   uint64
}

// RawIdSet is an unnormalized accumulator of (replica GUID, id) points in
// insertion order (spec.md §3 "RawIdSet"). Callers push ids as they walk
// a table, then convert to a canonical IdSet once. O(1) per push.
type RawIdSet struct {
	points []point
}

// NewRawIdSet returns an empty accumulator. The zero value is also ready
// to use.
func NewRawIdSet() *RawIdSet {
	return &RawIdSet{}
}

// Push appends (guid, id) to the accumulator (spec.md §4.2 "raw.push").
func (r *RawIdSet) Push(guid uuid.UUID, id uint64) {
	r.points = append(r.points, point{guid: guid, id: id})
}

// Len reports the number of points pushed so far (including duplicates).
func (r *RawIdSet) Len() int {
	return len(r.points)
}

// ToIdSet sorts the accumulated points by (guid, id) and folds adjacent
// identical and consecutive ids into inclusive ranges (spec.md §4.2
// "raw.to_idset", O(n log n)).
func (r *RawIdSet) ToIdSet() *IdSet {
	out := New()

	if len(r.points) == 0 {
		return out
	}

	sorted := make([]point, len(r.points))
	copy(sorted, r.points)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].guid != sorted[j].guid {
			return compareGUID(sorted[i].guid, sorted[j].guid) < 0
		}

		return sorted[i].id < sorted[j].id
	})

	var (
		curGUID   uuid.UUID
		curRanges []Range
		started   bool
	)

	flush := func() {
		if started {
			out.put(curGUID, fuse(curRanges))
		}
	}

	for _, p := range sorted {
		if !started || p.guid != curGUID {
			flush()

			curGUID = p.guid
			curRanges = nil
			started = true
		}

		curRanges = append(curRanges, Range{Lo: p.id, Hi: p.id})
	}

	flush()

	return out
}
