package syncproducer

import (
	"context"
	"time"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// Contents implements spec.md §4.5 "Contents mode": emits one
// messageChange record per row of the folder's message table, followed
// by the state block.
func Contents(ctx context.Context, st store.Store, reg fxid.ReplicaRegistry, resolver propstream.Resolver, req ContentsRequest) (*Result, error) {
	w := propstream.New(resolver)

	eidSet := idset.NewRawIdSet()
	inPassCnset := idset.New()

	bodyCols := ComputePropertySet(req.StoreAvailableProperties, req.RequestedProperties, contentsAnchors, req.Options)

	cols := []propstream.PropTag{
		mapitags.TagMid,
		mapitags.TagLastModificationTime,
		mapitags.TagAssociated,
		mapitags.TagMessageSize,
	}
	cols = append(cols, bodyCols...)

	rowsEmitted := 0

	kinds := []store.TableKind{store.ContentsTable}
	if req.Options.FAI || req.Options.FAIOnly {
		kinds = append(kinds, store.FAIContentsTable)
	}

	if req.Options.FAIOnly {
		kinds = []store.TableKind{store.FAIContentsTable}
	}

	for _, kind := range kinds {
		table, err := st.OpenTable(ctx, req.Folder, kind)
		if err != nil {
			return nil, errorf("open_table", err)
		}

		if err := table.SetColumns(ctx, cols); err != nil {
			return nil, errorf("table_set_columns", err)
		}

		n, err := table.RowCount(ctx)
		if err != nil {
			return nil, errorf("table_row_count", err)
		}

		for i := 0; i < n; i++ {
			emitted, err := emitMessageChange(ctx, st, reg, w, table, i, cols, bodyCols, req, eidSet, inPassCnset)
			if err != nil {
				return nil, err
			}

			if emitted {
				rowsEmitted++
			}
		}
	}

	newCnsetSeen := idset.Merge(req.SessionCnsetSeen, inPassCnset)
	newIdsetGiven := idset.Merge(req.SessionIdsetGiven, eidSet.ToIdSet())

	var newCnsetSeenFAI *idset.IdSet
	if req.Options.FAI {
		newCnsetSeenFAI = newCnsetSeen
	}

	var newCnsetRead *idset.IdSet
	if req.Options.ReadState {
		newCnsetRead = newCnsetSeen
	}

	appendStateBlock(w, req.Options, newCnsetSeen, newCnsetSeenFAI, newIdsetGiven, newCnsetRead)
	w.RawMarker(mapitags.MarkerIncrSyncEnd)

	stream, cutmarks := w.Finish()

	return &Result{
		Stream:          stream,
		Cutmarks:        cutmarks,
		RowsEmitted:     rowsEmitted,
		NewCnsetSeen:    newCnsetSeen,
		NewCnsetSeenFAI: newCnsetSeenFAI,
		NewIdsetGiven:   newIdsetGiven,
		NewCnsetRead:    newCnsetRead,
	}, nil
}

func emitMessageChange(
	ctx context.Context,
	st store.Store,
	reg fxid.ReplicaRegistry,
	w *propstream.Writer,
	table store.Table,
	row int,
	cols []propstream.PropTag,
	bodyCols []propstream.PropTag,
	req ContentsRequest,
	eidSet *idset.RawIdSet,
	inPassCnset *idset.IdSet,
) (bool, error) {
	values, statuses, err := table.GetRow(ctx, row)
	if err != nil {
		return false, errorf("table_get_row", err)
	}

	idx := make(map[propstream.PropTag]int, len(cols))
	for i, t := range cols {
		idx[t] = i
	}

	midVal, ok := values[idx[mapitags.TagMid]].(propstream.I8Value)
	if !ok || statuses[idx[mapitags.TagMid]] != store.PropFound {
		return false, errorf("table_get_row", store.ErrNotAMessage)
	}

	fmidValue := fxid.FMID(uint64(midVal))

	replicaGUID, err := reg.ReplicaGUID(fmidValue.ReplicaID())
	if err != nil {
		return false, err
	}

	lastMod := timeFromRow(values, statuses, idx, mapitags.TagLastModificationTime)
	cn := fxid.ChangeNumber(fmidValue, lastMod)

	if req.Options.FilterAgainstCnsetSeen && req.SessionCnsetSeen != nil && req.SessionCnsetSeen.Includes(replicaGUID, cn) {
		return false, nil
	}

	if inPassCnset.Includes(replicaGUID, cn) {
		return false, nil
	}

	inPassCnset.Push(replicaGUID, cn)
	eidSet.Push(replicaGUID, uint64(fmidValue.GlobalCounter()))

	sourceKey, err := fxid.SourceKeyFromFMID(reg, fmidValue)
	if err != nil {
		return false, err
	}

	changeKey := fxid.ChangeKeyFromReplica(replicaGUID, cn)

	w.RawMarker(mapitags.MarkerIncrSyncChg)

	if err := w.Push(mapitags.TagSourceKey, propstream.BinaryValue(sourceKey[:])); err != nil {
		return false, errorf("push source_key", err)
	}

	if err := w.Push(mapitags.TagLastModificationTime, propstream.SysTimeValue(lastMod)); err != nil {
		return false, errorf("push last_modification_time", err)
	}

	if err := w.Push(mapitags.TagChangeKey, propstream.BinaryValue(changeKey[:])); err != nil {
		return false, errorf("push change_key", err)
	}

	if err := w.Push(mapitags.TagPredecessorChangeList, predecessorChangeList(changeKey)); err != nil {
		return false, errorf("push predecessor_change_list", err)
	}

	associated := boolFromRow(values, statuses, idx, mapitags.TagAssociated)
	if err := w.Push(mapitags.TagAssociated, propstream.BoolValue(associated)); err != nil {
		return false, errorf("push associated", err)
	}

	if req.Options.RequestEid {
		if err := w.Push(mapitags.TagMid, propstream.I8Value(int64(fmidValue))); err != nil {
			return false, errorf("push mid", err)
		}
	}

	if req.Options.RequestMessageSize {
		size := longFromRow(values, statuses, idx, mapitags.TagMessageSize)
		if err := w.Push(mapitags.TagMessageSize, propstream.LongValue(size)); err != nil {
			return false, errorf("push message_size", err)
		}
	}

	if req.Options.RequestCn {
		changeNum := (cn << 16) | uint64(fmidValue.ReplicaID())
		if err := w.Push(mapitags.TagChangeNum, propstream.I8Value(int64(changeNum))); err != nil {
			return false, errorf("push change_num", err)
		}
	}

	w.RawMarker(mapitags.MarkerIncrSyncMsg)

	for _, t := range bodyCols {
		i, ok := idx[t]
		if !ok || statuses[i] != store.PropFound {
			continue
		}

		if err := w.Push(t, values[i]); err != nil {
			return false, errorf("push body column", err)
		}
	}

	msgHandle, err := st.OpenMessage(ctx, req.Folder, fmidValue)
	if err != nil {
		return false, errorf("open_message", err)
	}

	if err := emitRecipients(ctx, st, w, msgHandle, req.RecipientProperties); err != nil {
		return false, err
	}

	if err := emitAttachments(ctx, st, w, msgHandle, req.AttachmentProperties); err != nil {
		return false, err
	}

	return true, nil
}

func emitRecipients(ctx context.Context, st store.Store, w *propstream.Writer, msg store.Handle, cols []propstream.PropTag) error {
	table, err := st.OpenRecipientsTable(ctx, msg)
	if err != nil {
		return errorf("open_recipients_table", err)
	}

	if err := table.SetColumns(ctx, cols); err != nil {
		return errorf("table_set_columns", err)
	}

	n, err := table.RowCount(ctx)
	if err != nil {
		return errorf("table_row_count", err)
	}

	if n == 0 {
		return nil
	}

	w.RawMarker(mapitags.MarkerFXDelProp)
	w.RawMarker(mapitags.MarkerMessageRecipients)

	for i := 0; i < n; i++ {
		values, statuses, err := table.GetRow(ctx, i)
		if err != nil {
			return errorf("table_get_row", err)
		}

		w.RawMarker(mapitags.MarkerStartRecip)

		for j, t := range cols {
			if statuses[j] != store.PropFound {
				continue
			}

			if err := w.Push(t, values[j]); err != nil {
				return errorf("push recipient prop", err)
			}
		}

		w.RawMarker(mapitags.MarkerEndRecip)
	}

	return nil
}

func emitAttachments(ctx context.Context, st store.Store, w *propstream.Writer, msg store.Handle, cols []propstream.PropTag) error {
	table, err := st.OpenAttachmentsTable(ctx, msg)
	if err != nil {
		return errorf("open_attachments_table", err)
	}

	allCols := append([]propstream.PropTag{mapitags.TagAttachNum}, cols...)

	if err := table.SetColumns(ctx, allCols); err != nil {
		return errorf("table_set_columns", err)
	}

	n, err := table.RowCount(ctx)
	if err != nil {
		return errorf("table_row_count", err)
	}

	if n == 0 {
		return nil
	}

	w.RawMarker(mapitags.MarkerFXDelProp)
	w.RawMarker(mapitags.MarkerMessageAttachments)

	for i := 0; i < n; i++ {
		values, statuses, err := table.GetRow(ctx, i)
		if err != nil {
			return errorf("table_get_row", err)
		}

		w.RawMarker(mapitags.MarkerNewAttach)

		if err := w.Push(mapitags.TagAttachNum, propstream.LongValue(int32(i))); err != nil {
			return errorf("push attach_num", err)
		}

		for j := 1; j < len(allCols); j++ {
			if statuses[j] != store.PropFound {
				continue
			}

			if err := w.Push(allCols[j], values[j]); err != nil {
				return errorf("push attachment prop", err)
			}
		}

		w.RawMarker(mapitags.MarkerEndAttach)
	}

	return nil
}

func timeFromRow(values []propstream.Value, statuses []store.PropStatus, idx map[propstream.PropTag]int, tag propstream.PropTag) time.Time {
	i, ok := idx[tag]
	if !ok || statuses[i] != store.PropFound {
		return time.Time{}
	}

	v, ok := values[i].(propstream.SysTimeValue)
	if !ok {
		return time.Time{}
	}

	return time.Time(v)
}

func boolFromRow(values []propstream.Value, statuses []store.PropStatus, idx map[propstream.PropTag]int, tag propstream.PropTag) bool {
	i, ok := idx[tag]
	if !ok || statuses[i] != store.PropFound {
		return false
	}

	v, ok := values[i].(propstream.BoolValue)
	if !ok {
		return false
	}

	return bool(v)
}

func longFromRow(values []propstream.Value, statuses []store.PropStatus, idx map[propstream.PropTag]int, tag propstream.PropTag) int32 {
	i, ok := idx[tag]
	if !ok || statuses[i] != store.PropFound {
		return 0
	}

	v, ok := values[i].(propstream.LongValue)
	if !ok {
		return 0
	}

	return int32(v)
}
