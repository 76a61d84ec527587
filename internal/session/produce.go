package session

import (
	"context"

	"github.com/tonimelisma/fxicsd/internal/chunker"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/protoerr"
	"github.com/tonimelisma/fxicsd/internal/syncproducer"
)

// GetBuffer returns the next transport chunk (spec.md §6
// "FastTransferSourceGetBuffer"). The stream is built lazily on the
// first call, after which it is frozen (spec.md §4.6 "once GetBuffer is
// first called for a SyncContext, the stream is frozen"); a store error
// during the first build discards the partial stream and leaves the
// context retryable (spec.md §5 "Failure mid-stream").
func (c *SyncContext) GetBuffer(ctx context.Context, bufferSize uint32) ([]byte, int, int, chunker.TransferStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Fresh {
		return nil, 0, 0, chunker.Partial, protoerr.New("FastTransferSourceGetBuffer", protoerr.NotInitialized, protoerr.ErrNotInitialized)
	}

	if c.chunker == nil {
		if err := c.build(ctx); err != nil {
			return nil, 0, 0, chunker.Partial, protoerr.New("FastTransferSourceGetBuffer", protoerr.InvalidObject, err)
		}

		c.state = Streaming
	}

	chunk, total, inProgress, status, err := c.chunker.Next(bufferSize)
	if err != nil {
		return nil, total, inProgress, status, protoerr.New("FastTransferSourceGetBuffer", protoerr.InvalidObject, err)
	}

	if status == chunker.Done {
		c.state = Done
	}

	return chunk, total, inProgress, status, nil
}

// build invokes the sync producer once, installing the resulting stream,
// cutmarks, and merged session state (spec.md §4.5).
func (c *SyncContext) build(ctx context.Context) error {
	available, err := c.st.AvailableProperties(ctx, c.folder)
	if err != nil {
		return err
	}

	opts := syncproducer.Options{
		Unicode:                 c.flags.Unicode,
		FAI:                     c.flags.FAI,
		FAIOnly:                 c.flags.FAIOnly,
		ReadState:               c.flags.ReadState,
		NoForeignIdentifiers:    c.flags.NoForeignIdentifiers,
		BestBody:                c.flags.BestBody,
		OnlySpecifiedProperties: c.flags.OnlySpecifiedProperties,
		Progress:                c.flags.Progress,
		RequestEid:              c.flags.RequestEid,
		RequestMessageSize:      c.flags.RequestMessageSize,
		RequestCn:               c.flags.RequestCn,
		FilterAgainstCnsetSeen:  c.flags.FilterAgainstCnsetSeen,
	}

	var (
		stream   []byte
		cutmarks []uint32
	)

	switch c.mode {
	case ContentsMode:
		res, err := syncproducer.Contents(ctx, c.st, c.reg, c.resolver, syncproducer.ContentsRequest{
			Folder:                   c.folder,
			RequestedProperties:      c.properties,
			StoreAvailableProperties: available,
			RecipientProperties:      recipientProperties,
			AttachmentProperties:     attachmentProperties,
			Options:                  opts,
			SessionCnsetSeen:         c.cnsetSeen,
			SessionCnsetSeenFAI:      c.cnsetSeenFAI,
			SessionIdsetGiven:        c.idsetGiven,
		})
		if err != nil {
			return err
		}

		c.applyResult(res)
		stream, cutmarks = res.Stream, res.Cutmarks
	case HierarchyMode:
		res, err := syncproducer.Hierarchy(ctx, c.st, c.reg, c.resolver, syncproducer.HierarchyRequest{
			RootFolder:               c.folder,
			RequestedProperties:      c.properties,
			StoreAvailableProperties: available,
			Options:                  opts,
			SessionCnsetSeen:         c.cnsetSeen,
			SessionIdsetGiven:        c.idsetGiven,
		})
		if err != nil {
			return err
		}

		c.applyResult(res)
		stream, cutmarks = res.Stream, res.Cutmarks
	}

	c.stream = stream
	c.cutmarks = cutmarks
	c.chunker = chunker.New(stream, cutmarks)

	return nil
}

func (c *SyncContext) applyResult(res *syncproducer.Result) {
	c.cnsetSeen = res.NewCnsetSeen

	if res.NewCnsetSeenFAI != nil {
		c.cnsetSeenFAI = res.NewCnsetSeenFAI
	}

	c.idsetGiven = res.NewIdsetGiven

	if res.NewCnsetRead != nil {
		c.cnsetRead = res.NewCnsetRead
	}
}

// recipientProperties and attachmentProperties are the fixed columns
// walked for each message's recipient/attachment sub-records (spec.md
// §4.5 grammar "recipient propList"/"attachment propList"). Every session
// uses these same lists; they are not configurable per session.
var recipientProperties = []propstream.PropTag{
	mapitags.TagDisplayName,
}

var attachmentProperties = []propstream.PropTag{
	mapitags.TagDisplayName,
}
