package dispatch

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/fxicsd/internal/chunker"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/protoerr"
	"github.com/tonimelisma/fxicsd/internal/session"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// FastTransferSourceCopyTo creates an FtContext streaming obj's requested
// properties as a flat CopyProperties record (spec.md §6 0x4D). Tags the
// store reports PropNotFound for are silently omitted, matching how a
// contents/hierarchy row already drops absent properties rather than
// emitting an error marker per tag.
func (d *Dispatcher) FastTransferSourceCopyTo(ctx context.Context, obj store.Handle, tags []propstream.PropTag) (Handle, error) {
	values, statuses, err := d.st.Properties(ctx, obj, tags)
	if err != nil {
		return 0, protoerr.New("FastTransferSourceCopyTo", protoerr.InvalidObject, err)
	}

	var foundTags []propstream.PropTag
	var foundValues []propstream.Value

	for i, tag := range tags {
		if statuses[i] == store.PropFound {
			foundTags = append(foundTags, tag)
			foundValues = append(foundValues, values[i])
		}
	}

	fc, err := session.NewPropertyCopyFtContext(d.resolver, foundTags, foundValues)
	if err != nil {
		return 0, protoerr.New("FastTransferSourceCopyTo", protoerr.InvalidObject, err)
	}

	return d.handles.put(fc), nil
}

// FastTransferSourceGetBuffer returns the next chunk from whichever kind
// of context h names, a SyncContext mid-sync or a standalone FtContext
// (spec.md §6 0x4E).
func (d *Dispatcher) FastTransferSourceGetBuffer(ctx context.Context, h Handle, bufferSize uint32) ([]byte, int, int, chunker.TransferStatus, error) {
	obj, ok := d.handles.get(h)
	if !ok {
		return nil, 0, 0, chunker.Partial, protoerr.New("FastTransferSourceGetBuffer", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}

	switch v := obj.(type) {
	case *session.SyncContext:
		return v.GetBuffer(ctx, bufferSize)
	case *session.FtContext:
		chunk, total, inProgress, status, err := v.GetBuffer(bufferSize)
		if err != nil {
			return nil, total, inProgress, status, protoerr.New("FastTransferSourceGetBuffer", protoerr.InvalidObject, err)
		}

		return chunk, total, inProgress, status, nil
	default:
		return nil, 0, 0, chunker.Partial, protoerr.New("FastTransferSourceGetBuffer", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}
}

// SyncConfigure creates a SyncContext bound to folder (spec.md §6 0x70).
func (d *Dispatcher) SyncConfigure(folder store.Handle, mode session.Mode, flags session.Flags, properties []propstream.PropTag) (Handle, error) {
	sc := session.New(d.st, d.reg, d.resolver, folder)
	if err := sc.Configure(mode, flags, properties); err != nil {
		return 0, err
	}

	h := d.handles.put(sc)
	d.logger.Debug("sync session configured", slog.Uint64("handle", uint64(h)), slog.Int("mode", int(mode)))

	return h, nil
}

// SyncOpenCollector creates a SyncContext in collector mode (spec.md §6
// 0x7E).
func (d *Dispatcher) SyncOpenCollector(folder store.Handle, mode session.Mode, flags session.Flags, properties []propstream.PropTag) (Handle, error) {
	sc := session.New(d.st, d.reg, d.resolver, folder)
	if err := sc.OpenCollector(mode, flags, properties); err != nil {
		return 0, err
	}

	return d.handles.put(sc), nil
}

// SyncImportMessageChange opens or creates a message on h's session
// (spec.md §6 0x72).
func (d *Dispatcher) SyncImportMessageChange(ctx context.Context, h Handle, sourceKey []byte, associated bool, props []store.PropValue) (uint64, error) {
	sc, err := d.syncContext(h)
	if err != nil {
		return 0, err
	}

	return sc.ImportMessageChange(ctx, sourceKey, associated, props)
}

// SyncImportHierarchyChange opens or creates a folder on h's session
// (spec.md §6 0x73).
func (d *Dispatcher) SyncImportHierarchyChange(ctx context.Context, h Handle, parentSourceKey, folderSourceKey []byte, props []store.PropValue) (uint64, error) {
	sc, err := d.syncContext(h)
	if err != nil {
		return 0, err
	}

	return sc.ImportHierarchyChange(ctx, parentSourceKey, folderSourceKey, props)
}

// SyncImportDeletes removes messages on h's session (spec.md §6 0x74).
func (d *Dispatcher) SyncImportDeletes(ctx context.Context, h Handle, sourceKeys [][]byte, hard, hierarchy bool) error {
	sc, err := d.syncContext(h)
	if err != nil {
		return err
	}

	return sc.ImportDeletes(ctx, sourceKeys, hard, hierarchy)
}

// SyncUploadStateStreamBegin arms state upload on h's session (spec.md §6
// 0x75).
func (d *Dispatcher) SyncUploadStateStreamBegin(h Handle, tag propstream.PropTag) error {
	sc, err := d.syncContext(h)
	if err != nil {
		return err
	}

	return sc.UploadStateStreamBegin(tag)
}

// SyncUploadStateStreamContinue appends to h's armed upload (spec.md §6
// 0x76).
func (d *Dispatcher) SyncUploadStateStreamContinue(h Handle, b []byte) error {
	sc, err := d.syncContext(h)
	if err != nil {
		return err
	}

	return sc.UploadStateStreamContinue(b)
}

// SyncUploadStateStreamEnd finalizes h's armed upload (spec.md §6 0x77).
func (d *Dispatcher) SyncUploadStateStreamEnd(h Handle) error {
	sc, err := d.syncContext(h)
	if err != nil {
		return err
	}

	return sc.UploadStateStreamEnd()
}

// SyncImportMessageMove is a stub, accepted but not applied (spec.md §6
// 0x78).
func (d *Dispatcher) SyncImportMessageMove(ctx context.Context, h Handle, sourceKey []byte) (uint64, error) {
	sc, err := d.syncContext(h)
	if err != nil {
		return 0, err
	}

	return sc.ImportMessageMove(ctx, sourceKey)
}

// GetLocalReplicaIds reserves an FMID range through the dispatcher's
// shared allocator (spec.md §6 0x7F). h need only name some live handle;
// the reservation itself is allocator-wide, not session-scoped.
func (d *Dispatcher) GetLocalReplicaIds(ctx context.Context, h Handle, count int) ([16]byte, [6]byte, error) {
	if !d.exists(h) {
		return [16]byte{}, [6]byte{}, protoerr.New("GetLocalReplicaIds", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}

	return d.allocator.GetLocalReplicaIds(ctx, count)
}

// SyncImportReadStateChanges is a stub, accepted but not applied (spec.md
// §6 0x80).
func (d *Dispatcher) SyncImportReadStateChanges(ctx context.Context, h Handle, changes []byte) error {
	sc, err := d.syncContext(h)
	if err != nil {
		return err
	}

	return sc.ImportReadStateChanges(ctx, changes)
}

// SyncGetTransferState wraps h's accumulated session state as a new
// FtContext handle (spec.md §6 0x82).
func (d *Dispatcher) SyncGetTransferState(h Handle) (Handle, error) {
	sc, err := d.syncContext(h)
	if err != nil {
		return 0, err
	}

	fc, err := sc.SyncGetTransferState()
	if err != nil {
		return 0, err
	}

	return d.handles.put(fc), nil
}

// SetLocalReplicaMidsetDeleted is a stub, accepted but not applied
// (spec.md §6 0x93, pre-state "any" handle).
func (d *Dispatcher) SetLocalReplicaMidsetDeleted(ctx context.Context, h Handle, midset []byte) error {
	if !d.exists(h) {
		return protoerr.New("SetLocalReplicaMidsetDeleted", protoerr.InvalidObject, protoerr.ErrInvalidHandle)
	}

	return nil
}
