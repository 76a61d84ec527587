package sqlstore

import (
	"context"
	"fmt"
)

// ReserveFMIDRange atomically reserves count consecutive global-counter
// values and returns the first (spec.md §6 "reserve_fmid_range(count) ->
// start"). The single-row globcnt table is the store's monotone
// allocator; it is never rolled back, so no reservation is ever reused
// (spec.md §4.3).
func (s *Store) ReserveFMIDRange(ctx context.Context, count int) (uint64, error) {
	var start int64

	err := s.stmts.reserveCounter.QueryRowContext(ctx, count, count).Scan(&start)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: reserving %d global counter values: %w", count, err)
	}

	return uint64(start), nil
}
