package session

import (
	"context"
	"errors"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/protoerr"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// ImportMessageChange applies one message-change record to the session's
// bound folder (spec.md §6 "ImportMessageChange"). sourceKey identifies
// the message (spec.md §3 "SourceKey"); associated marks it FAI. The
// resolved message id is always reported as 0: the core never allocates
// ids on behalf of the caller outside GetLocalReplicaIds (spec.md §4.3).
func (c *SyncContext) ImportMessageChange(ctx context.Context, sourceKey []byte, associated bool, props []store.PropValue) (uint64, error) {
	fmidValue, err := fxid.FMIDFromSourceKey(c.reg, sourceKeyFromBytes(sourceKey))
	if err != nil {
		code := protoerr.Malformed
		if errors.Is(err, fxid.ErrUnknownReplica) {
			code = protoerr.NotFound
		}

		return 0, protoerr.New("ImportMessageChange", code, err)
	}

	msg, err := c.st.CreateMessage(ctx, c.folder, fmidValue, associated)
	if err != nil {
		msg, err = c.st.OpenMessage(ctx, c.folder, fmidValue)
		if err != nil {
			return 0, protoerr.New("ImportMessageChange", protoerr.NotFound, err)
		}
	}

	if err := c.st.SetProperties(ctx, msg, props); err != nil {
		return 0, protoerr.New("ImportMessageChange", protoerr.InvalidObject, err)
	}

	return 0, nil
}

// ImportHierarchyChange applies one folder-change record (spec.md §6
// "ImportHierarchyChange"). parentSourceKey and folderSourceKey are the
// wire SourceKeys at grammar positions 0 and 1 of a folderChange record
// (spec.md §4.5 "folderChange").
func (c *SyncContext) ImportHierarchyChange(ctx context.Context, parentSourceKey, folderSourceKey []byte, props []store.PropValue) (uint64, error) {
	parentFmid, err := fxid.FMIDFromSourceKey(c.reg, sourceKeyFromBytes(parentSourceKey))
	if err != nil {
		return 0, protoerr.New("ImportHierarchyChange", protoerr.Malformed, err)
	}

	fmidValue, err := fxid.FMIDFromSourceKey(c.reg, sourceKeyFromBytes(folderSourceKey))
	if err != nil {
		return 0, protoerr.New("ImportHierarchyChange", protoerr.Malformed, err)
	}

	// OpenFolder from the root handle finds only top-level folders. Any
	// other parent, including the sync root itself, falls back to the
	// session's bound folder; a parent deeper in the tree is not looked up.
	parent, err := c.st.OpenFolder(ctx, store.Handle(0), parentFmid)
	if err != nil {
		parent = c.folder
	}

	folder, err := c.st.CreateFolder(ctx, parent, fmidValue, props)
	if err != nil {
		folder, err = c.st.OpenFolder(ctx, parent, fmidValue)
		if err != nil {
			return 0, protoerr.New("ImportHierarchyChange", protoerr.NotFound, err)
		}

		if err := c.st.SetProperties(ctx, folder, props); err != nil {
			return 0, protoerr.New("ImportHierarchyChange", protoerr.InvalidObject, err)
		}
	}

	return 0, nil
}

// ImportDeletes removes the messages or folders named by sourceKeys
// (spec.md §6 "ImportDeletes"). hard selects a hard delete; hierarchy
// deletes are not supported by the store's folder model and are
// reported as InvalidObject (spec.md §7 error taxonomy).
func (c *SyncContext) ImportDeletes(ctx context.Context, sourceKeys [][]byte, hard, hierarchy bool) error {
	if hierarchy {
		return protoerr.New("ImportDeletes", protoerr.InvalidObject, protoerr.ErrProgrammerFatal)
	}

	for _, sk := range sourceKeys {
		fmidValue, err := fxid.FMIDFromSourceKey(c.reg, sourceKeyFromBytes(sk))
		if err != nil {
			return protoerr.New("ImportDeletes", protoerr.Malformed, err)
		}

		if err := c.st.DeleteMessage(ctx, c.folder, fmidValue, hard); err != nil {
			return protoerr.New("ImportDeletes", protoerr.NotFound, err)
		}
	}

	return nil
}

// ImportMessageMove is accepted but not applied: the store interface has
// no move primitive (spec.md §6 lists no "move_message"), so a move is
// modeled as the client issuing a delete plus a change instead. The RPC
// still succeeds so well-behaved clients that issue it anyway are not
// penalized.
func (c *SyncContext) ImportMessageMove(ctx context.Context, sourceKey []byte) (uint64, error) {
	return 0, nil
}

// ImportReadStateChanges is accepted but not applied: read-state is
// carried only as the opaque cnset_read upload slot (spec.md §4.2
// "Property 'single'"), not projected onto individual messages.
func (c *SyncContext) ImportReadStateChanges(ctx context.Context, changes []byte) error {
	return nil
}

// SetLocalReplicaMidsetDeleted is accepted but not applied: the store's
// monotone globcnt allocator (spec.md §4.3) never reuses ids, so marking
// a midset as locally deleted has no effect on subsequent allocation.
func (c *SyncContext) SetLocalReplicaMidsetDeleted(ctx context.Context, midset []byte) error {
	return nil
}

func sourceKeyFromBytes(b []byte) fxid.SourceKey {
	var sk fxid.SourceKey
	copy(sk[:], b)

	return sk
}
