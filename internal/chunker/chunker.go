// Package chunker splits a frozen (stream, cutmarks) pair produced by
// internal/propstream into transport-sized buffers without ever splitting
// a value mid-record (spec.md §4.4).
package chunker

import (
	"errors"
	"math"
)

// BufferSizeSentinel requests the maximum allowed buffer size in place of
// an explicit size (spec.md §4.4 "If buffer_size == 0xBABE, substitute the
// maximum allowed").
const BufferSizeSentinel uint32 = 0xBABE

// MaxBufferSize bounds the chunk size substituted for BufferSizeSentinel
// and clamps any caller-requested size above it.
const MaxBufferSize = 1 << 20 // 1 MiB

// TransferStatus reports whether more chunks remain after the one just
// emitted (spec.md §4.4 "TransferStatus ∈ {Partial, Done}").
type TransferStatus int

const (
	Partial TransferStatus = iota
	Done
)

func (s TransferStatus) String() string {
	if s == Done {
		return "Done"
	}

	return "Partial"
}

// ErrExhausted is returned by Next once the backing buffer has been fully
// consumed.
var ErrExhausted = errors.New("chunker: stream exhausted")

// Chunker walks a frozen (buffer, cutmarks) pair produced for one
// SyncContext or FtContext, emitting transport-sized chunks that never
// split a value (spec.md §4.3 "Cut-marks", §4.4).
//
// The cutmarks sidecar must be terminated by propstream.CutmarkSentinel;
// Chunker treats any value >= len(buffer) as the sentinel.
type Chunker struct {
	buffer   []byte
	cutmarks []uint32

	cursor   int
	finished bool

	firstRequestedSize int
	totalSteps         int
	stepsEmitted       int
}

// New returns a Chunker over buffer with the recorded cut-mark offsets.
// cutmarks must end with the sentinel (or any value >= len(buffer)).
func New(buffer []byte, cutmarks []uint32) *Chunker {
	return &Chunker{buffer: buffer, cutmarks: cutmarks}
}

// Len returns the total length of the backing buffer.
func (c *Chunker) Len() int {
	return len(c.buffer)
}

// Cursor returns the current read position.
func (c *Chunker) Cursor() int {
	return c.cursor
}

// Done reports whether a Done chunk has already been emitted; once true,
// Next returns ErrExhausted.
func (c *Chunker) Done() bool {
	return c.finished
}

// Next returns the next chunk for a peer requesting bufferSize bytes
// (spec.md §4.4). bufferSize == BufferSizeSentinel substitutes
// MaxBufferSize. The first requested size seen fixes TotalStepCount for
// the lifetime of the Chunker, per spec.md §4.4 "(fixed after the first
// call)". The call that returns the final, possibly empty, remainder
// reports Done and makes Done() true; every later call returns
// ErrExhausted.
func (c *Chunker) Next(bufferSize uint32) (chunk []byte, totalSteps, inProgress int, status TransferStatus, err error) {
	if c.finished {
		return nil, c.totalSteps, c.stepsEmitted, Done, ErrExhausted
	}

	size := int(bufferSize)
	if bufferSize == BufferSizeSentinel || size <= 0 || size > MaxBufferSize {
		size = MaxBufferSize
	}

	if c.firstRequestedSize == 0 {
		c.firstRequestedSize = size
		c.totalSteps = int(math.Ceil(float64(len(c.buffer)) / float64(size)))

		if c.totalSteps == 0 {
			c.totalSteps = 1
		}
	}

	end, status := c.nextChunkEnd(size)

	chunk = c.buffer[c.cursor:end]
	c.cursor = end
	c.stepsEmitted++

	if status == Done {
		c.finished = true
	}

	return chunk, c.totalSteps, c.stepsEmitted, status, nil
}

// nextChunkEnd implements spec.md §4.4's algorithm: "If cursor +
// buffer_size >= buffer.len, return the remainder and mark Done.
// Otherwise advance a cutmark pointer while cutmarks[p] < cursor +
// buffer_size; the chunk ends at the last such cutmark if one exists
// strictly greater than cursor; otherwise at cursor + buffer_size."
func (c *Chunker) nextChunkEnd(bufferSize int) (end int, status TransferStatus) {
	limit := c.cursor + bufferSize

	if limit >= len(c.buffer) {
		return len(c.buffer), Done
	}

	lastFit := -1

	for _, mark := range c.cutmarks {
		offset := int(mark)

		if offset >= len(c.buffer) {
			break // sentinel or out-of-range marker
		}

		if offset >= limit {
			break
		}

		if offset > c.cursor {
			lastFit = offset
		}
	}

	if lastFit == -1 {
		return limit, Partial
	}

	return lastFit, Partial
}
