package session

import (
	"sync"

	"github.com/tonimelisma/fxicsd/internal/chunker"
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
)

// FtContext is the handle behind FastTransferSourceCopyTo,
// FastTransferSourceCopyProperties, FastTransferSourceCopyFolder, and
// FastTransferSourceGetBuffer when no hierarchy/contents walk is
// involved: the caller supplies an already-serialized (stream, cutmarks)
// pair up front, and FtContext only chunks it (spec.md §4.6, §6
// "FastTransferSource*").
type FtContext struct {
	mu sync.Mutex

	chunker *chunker.Chunker
}

// NewFtContext wraps stream/cutmarks for chunked delivery.
func NewFtContext(stream []byte, cutmarks []uint32) *FtContext {
	return &FtContext{chunker: chunker.New(stream, cutmarks)}
}

// GetBuffer returns the next chunk (spec.md §6 "FastTransferSourceGetBuffer").
func (f *FtContext) GetBuffer(bufferSize uint32) ([]byte, int, int, chunker.TransferStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.chunker.Next(bufferSize)
}

// NewPropertyCopyFtContext serializes props as a flat CopyProperties
// stream (spec.md §6 "FastTransferSourceCopyProperties"): one tagged
// value per property, no markers, no state block.
func NewPropertyCopyFtContext(resolver propstream.Resolver, tags []propstream.PropTag, values []propstream.Value) (*FtContext, error) {
	w := propstream.New(resolver)

	for i, tag := range tags {
		if i >= len(values) {
			break
		}

		if err := w.Push(tag, values[i]); err != nil {
			return nil, err
		}
	}

	stream, cutmarks := w.Finish()

	return NewFtContext(stream, cutmarks), nil
}

// SyncGetTransferState wraps the session's current accumulated state
// (idset_given, cnset_seen, cnset_seen_FAI, cnset_read) as a standalone
// FtContext, the form in which a client can persist and replay session
// state outside a full sync pass (spec.md §6 "SyncGetTransferState").
func (c *SyncContext) SyncGetTransferState() (*FtContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := propstream.New(nil)
	w.RawMarker(mapitags.MarkerIncrSyncStateBegin)
	w.RawMarker(uint32(mapitags.TagCnsetSeen))
	w.RawBlock(idset.Serialize(c.cnsetSeen))

	if c.flags.FAI {
		w.RawMarker(uint32(mapitags.TagCnsetSeenFAI))
		w.RawBlock(idset.Serialize(c.cnsetSeenFAI))
	}

	w.RawMarker(uint32(mapitags.TagIdsetGiven))
	w.RawBlock(idset.Serialize(c.idsetGiven))

	if c.flags.ReadState {
		w.RawMarker(uint32(mapitags.TagCnsetRead))
		w.RawBlock(idset.Serialize(c.cnsetRead))
	}

	w.RawMarker(mapitags.MarkerIncrSyncStateEnd)

	stream, cutmarks := w.Finish()

	return NewFtContext(stream, cutmarks), nil
}
