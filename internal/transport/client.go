package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tonimelisma/fxicsd/internal/chunker"
	"github.com/tonimelisma/fxicsd/internal/dispatch"
	"github.com/tonimelisma/fxicsd/internal/session"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// Client is a thin dial-and-call wrapper around one websocket connection,
// used by the e2e harness and cmd/fxicsctl to drive a remote Dispatcher's
// RPC surface over the wire instead of calling it in-process.
type Client struct {
	conn *websocket.Conn
}

// Dial opens a websocket connection to url (e.g. "ws://host:port/fxics").
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dialing %s: %w", url, err)
	}

	return &Client{conn: conn}, nil
}

// Close ends the connection with a normal closure.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return Response{}, fmt.Errorf("transport: writing %s: %w", req.Op, err)
	}

	var resp Response
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		return Response{}, fmt.Errorf("transport: reading reply to %s: %w", req.Op, err)
	}

	if resp.Error != "" {
		return Response{}, errors.New(resp.Error)
	}

	return resp, nil
}

// SyncConfigure opens a sync session against folder (spec.md §6 0x70).
func (c *Client) SyncConfigure(ctx context.Context, folder store.Handle, mode session.Mode, flags session.Flags, properties []uint32) (dispatch.Handle, error) {
	resp, err := c.call(ctx, Request{
		Op:         OpSyncConfigure,
		Folder:     uint64(folder),
		Mode:       int(mode),
		Flags:      flagsToWire(flags),
		Properties: properties,
	})
	if err != nil {
		return 0, err
	}

	return dispatch.Handle(resp.Handle), nil
}

// ImportMessageChange uploads one message's properties (spec.md §6 0x72).
func (c *Client) ImportMessageChange(ctx context.Context, h dispatch.Handle, sourceKey []byte, associated bool, props []store.PropValue) (uint64, error) {
	wire, err := encodeProps(props)
	if err != nil {
		return 0, err
	}

	resp, err := c.call(ctx, Request{
		Op:         OpSyncImportMessageChange,
		Handle:     uint64(h),
		SourceKey:  sourceKey,
		Associated: associated,
		Props:      wire,
	})
	if err != nil {
		return 0, err
	}

	return resp.MessageID, nil
}

// ImportHierarchyChange uploads one folder's properties (spec.md §6 0x73).
func (c *Client) ImportHierarchyChange(ctx context.Context, h dispatch.Handle, parentSourceKey, folderSourceKey []byte, props []store.PropValue) (uint64, error) {
	wire, err := encodeProps(props)
	if err != nil {
		return 0, err
	}

	resp, err := c.call(ctx, Request{
		Op:              OpSyncImportHierarchyChange,
		Handle:          uint64(h),
		ParentSourceKey: parentSourceKey,
		SourceKey:       folderSourceKey,
		Props:           wire,
	})
	if err != nil {
		return 0, err
	}

	return resp.MessageID, nil
}

// ImportDeletes removes the named objects (spec.md §6 0x74).
func (c *Client) ImportDeletes(ctx context.Context, h dispatch.Handle, sourceKeys [][]byte, hard, hierarchy bool) error {
	_, err := c.call(ctx, Request{
		Op:         OpSyncImportDeletes,
		Handle:     uint64(h),
		SourceKeys: sourceKeys,
		Hard:       hard,
		Hierarchy:  hierarchy,
	})

	return err
}

// UploadStateBegin arms state upload for tag (spec.md §6 0x75).
func (c *Client) UploadStateBegin(ctx context.Context, h dispatch.Handle, tag uint32) error {
	_, err := c.call(ctx, Request{Op: OpSyncUploadStateStreamBegin, Handle: uint64(h), Tag: tag})

	return err
}

// UploadStateContinue appends a chunk to the armed upload (spec.md §6 0x76).
func (c *Client) UploadStateContinue(ctx context.Context, h dispatch.Handle, data []byte) error {
	_, err := c.call(ctx, Request{Op: OpSyncUploadStateStreamContinue, Handle: uint64(h), Data: data})

	return err
}

// UploadStateEnd finalizes the armed upload (spec.md §6 0x77).
func (c *Client) UploadStateEnd(ctx context.Context, h dispatch.Handle) error {
	_, err := c.call(ctx, Request{Op: OpSyncUploadStateStreamEnd, Handle: uint64(h)})

	return err
}

// GetBuffer pulls the next chunk from h, a SyncContext or FtContext handle
// alike (spec.md §6 0x4E).
func (c *Client) GetBuffer(ctx context.Context, h dispatch.Handle, bufferSize uint32) ([]byte, int, int, chunker.TransferStatus, error) {
	resp, err := c.call(ctx, Request{Op: OpFastTransferSourceGetBuffer, Handle: uint64(h), BufferSize: bufferSize})
	if err != nil {
		return nil, 0, 0, chunker.Partial, err
	}

	status := chunker.Partial
	if resp.Status == chunker.Done.String() {
		status = chunker.Done
	}

	return resp.Chunk, resp.Total, resp.InProgress, status, nil
}

// GetLocalReplicaIds reserves count FMIDs under the server's local replica
// (spec.md §6 0x7F).
func (c *Client) GetLocalReplicaIds(ctx context.Context, h dispatch.Handle, count int) ([16]byte, [6]byte, error) {
	resp, err := c.call(ctx, Request{Op: OpGetLocalReplicaIds, Handle: uint64(h), Count: count})
	if err != nil {
		return [16]byte{}, [6]byte{}, err
	}

	var guid [16]byte
	var gc [6]byte
	copy(guid[:], resp.GUID)
	copy(gc[:], resp.GC)

	return guid, gc, nil
}

func flagsToWire(f session.Flags) FlagsWire {
	return FlagsWire{
		Unicode:                 f.Unicode,
		Normal:                  f.Normal,
		FAI:                     f.FAI,
		FAIOnly:                 f.FAIOnly,
		ReadState:               f.ReadState,
		NoForeignIdentifiers:    f.NoForeignIdentifiers,
		BestBody:                f.BestBody,
		OnlySpecifiedProperties: f.OnlySpecifiedProperties,
		Progress:                f.Progress,
		RequestEid:              f.RequestEid,
		RequestMessageSize:      f.RequestMessageSize,
		RequestCn:               f.RequestCn,
		FilterAgainstCnsetSeen:  f.FilterAgainstCnsetSeen,
	}
}

func encodeProps(props []store.PropValue) ([]PropWire, error) {
	wire := make([]PropWire, len(props))

	for i, pv := range props {
		w, err := propValueToWire(pv)
		if err != nil {
			return nil, err
		}

		wire[i] = w
	}

	return wire, nil
}
