package syncproducer

import (
	"context"
	"sync"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// Hierarchy implements spec.md §4.5 "Hierarchy mode": a depth-first walk
// of the child-folder tree rooted at req.RootFolder, one folderChange
// record per folder visited, followed by the state block. Sibling
// subtrees render concurrently through a bounded errgroup (SPEC_FULL
// §2.1) but are appended to the final stream in the store's natural
// table order, so output is deterministic regardless of goroutine
// scheduling.
func Hierarchy(ctx context.Context, st store.Store, reg fxid.ReplicaRegistry, resolver propstream.Resolver, req HierarchyRequest) (*Result, error) {
	w := propstream.New(resolver)

	eidSet := idset.NewRawIdSet()
	inPassCnset := idset.New()

	bodyCols := ComputePropertySet(req.StoreAvailableProperties, req.RequestedProperties, hierarchyAnchors, req.Options)

	emptyParentKey := emptyBinary().(propstream.BinaryValue)

	rows, err := walkChildren(ctx, st, reg, req.RootFolder, []byte(emptyParentKey), bodyCols, req.Options, eidSet, inPassCnset, 0)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		w.RawBlock(r)
	}

	newCnsetSeen := idset.Merge(req.SessionCnsetSeen, inPassCnset)
	newIdsetGiven := idset.Merge(req.SessionIdsetGiven, eidSet.ToIdSet())

	appendStateBlock(w, req.Options, newCnsetSeen, nil, newIdsetGiven, nil)
	w.RawMarker(mapitags.MarkerIncrSyncEnd)

	stream, cutmarks := w.Finish()

	return &Result{
		Stream:        stream,
		Cutmarks:      cutmarks,
		RowsEmitted:   len(rows),
		NewCnsetSeen:  newCnsetSeen,
		NewIdsetGiven: newIdsetGiven,
	}, nil
}

// walkChildren lists folder's immediate children and, for each, renders
// its own folderChange record followed by its subtree, returning the
// raw bytes of each child's record in table order. eidSet/inPassCnset
// accumulate globcnts/change-numbers across the whole walk; they are
// pushed to only after errgroup.Wait, under accumulatorMu, because the
// nested walks of sibling subtrees reach that point on their own
// goroutines.
func walkChildren(
	ctx context.Context,
	st store.Store,
	reg fxid.ReplicaRegistry,
	folder store.Handle,
	parentSourceKey []byte,
	bodyCols []propstream.PropTag,
	opts Options,
	eidSet *idset.RawIdSet,
	inPassCnset *idset.IdSet,
	depth int,
) ([][]byte, error) {
	table, err := st.OpenTable(ctx, folder, store.HierarchyTable)
	if err != nil {
		return nil, errorf("open_table", err)
	}

	cols := []propstream.PropTag{mapitags.TagFid, mapitags.TagParentFid, mapitags.TagLastModificationTime, mapitags.TagDisplayNameUnicode}
	cols = append(cols, bodyCols...)

	if err := table.SetColumns(ctx, cols); err != nil {
		return nil, errorf("table_set_columns", err)
	}

	n, err := table.RowCount(ctx)
	if err != nil {
		return nil, errorf("table_row_count", err)
	}

	type childResult struct {
		record   []byte
		subtree  [][]byte
		replica  uint16
		gc       uint64
		cn       uint64
		hasCn    bool
	}

	results := make([]childResult, n)

	g, gctx := newGroup(ctx)

	for i := 0; i < n; i++ {
		i := i

		g.Go(func() error {
			values, statuses, err := table.GetRow(gctx, i)
			if err != nil {
				return errorf("table_get_row", err)
			}

			idx := make(map[propstream.PropTag]int, len(cols))
			for j, t := range cols {
				idx[t] = j
			}

			fidVal, ok := values[idx[mapitags.TagFid]].(propstream.I8Value)
			if !ok || statuses[idx[mapitags.TagFid]] != store.PropFound {
				return errorf("table_get_row", store.ErrNotAFolder)
			}

			fmidValue := fxid.FMID(uint64(fidVal))

			replicaGUID, err := reg.ReplicaGUID(fmidValue.ReplicaID())
			if err != nil {
				return err
			}

			lastMod := timeFromRow(values, statuses, idx, mapitags.TagLastModificationTime)
			cn := fxid.ChangeNumber(fmidValue, lastMod)

			sourceKey, err := fxid.SourceKeyFromFMID(reg, fmidValue)
			if err != nil {
				return err
			}

			changeKey := fxid.ChangeKeyFromReplica(replicaGUID, cn)

			fw := propstream.New(nil)
			fw.RawMarker(mapitags.MarkerIncrSyncChg)

			if err := fw.Push(mapitags.TagParentSourceKey, propstream.BinaryValue(parentSourceKey)); err != nil {
				return errorf("push parent_source_key", err)
			}

			if err := fw.Push(mapitags.TagSourceKey, propstream.BinaryValue(sourceKey[:])); err != nil {
				return errorf("push source_key", err)
			}

			if err := fw.Push(mapitags.TagLastModificationTime, propstream.SysTimeValue(lastMod)); err != nil {
				return errorf("push last_modification_time", err)
			}

			if err := fw.Push(mapitags.TagChangeKey, propstream.BinaryValue(changeKey[:])); err != nil {
				return errorf("push change_key", err)
			}

			if err := fw.Push(mapitags.TagPredecessorChangeList, predecessorChangeList(changeKey)); err != nil {
				return errorf("push predecessor_change_list", err)
			}

			name := displayNameFromRow(values, statuses, idx, mapitags.TagDisplayNameUnicode)
			if err := fw.Push(mapitags.TagDisplayNameUnicode, propstream.UnicodeValue(name)); err != nil {
				return errorf("push display_name", err)
			}

			if opts.RequestEid {
				if err := fw.Push(mapitags.TagFid, propstream.I8Value(int64(fmidValue))); err != nil {
					return errorf("push fid", err)
				}

				parentFid, ok := values[idx[mapitags.TagParentFid]].(propstream.I8Value)
				if ok && statuses[idx[mapitags.TagParentFid]] == store.PropFound {
					if err := fw.Push(mapitags.TagParentFid, propstream.I8Value(parentFid)); err != nil {
						return errorf("push parent_fid", err)
					}
				}
			}

			for _, t := range bodyCols {
				j, ok := idx[t]
				if !ok || statuses[j] != store.PropFound {
					continue
				}

				if err := fw.Push(t, values[j]); err != nil {
					return errorf("push body column", err)
				}
			}

			childKey := make([]byte, fxid.SourceKeyLen)
			copy(childKey, sourceKey[:])

			childHandle, err := st.OpenFolder(gctx, folder, fmidValue)
			if err != nil {
				return errorf("open_folder", err)
			}

			subtree, err := walkChildren(gctx, st, reg, childHandle, childKey, bodyCols, opts, eidSet, inPassCnset, depth+1)
			if err != nil {
				return err
			}

			record, _ := fw.Finish()

			results[i] = childResult{
				record:  record,
				subtree: subtree,
				replica: uint16(fmidValue.ReplicaID()),
				gc:      uint64(fmidValue.GlobalCounter()),
				cn:      cn,
				hasCn:   true,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out [][]byte

	accumulatorMu.Lock()
	defer accumulatorMu.Unlock()

	for _, r := range results {
		if r.hasCn {
			replicaGUID, err := reg.ReplicaGUID(fxid.ReplicaID(r.replica))
			if err == nil {
				inPassCnset.Push(replicaGUID, r.cn)
				eidSet.Push(replicaGUID, r.gc)
			}
		}

		out = append(out, r.record)
		out = append(out, r.subtree...)
	}

	return out, nil
}

// accumulatorMu serializes walkChildren's pushes into the shared
// eidSet/inPassCnset accumulators.
var accumulatorMu sync.Mutex

func displayNameFromRow(values []propstream.Value, statuses []store.PropStatus, idx map[propstream.PropTag]int, tag propstream.PropTag) string {
	i, ok := idx[tag]
	if !ok || statuses[i] != store.PropFound {
		return ""
	}

	v, ok := values[i].(propstream.UnicodeValue)
	if !ok {
		return ""
	}

	return string(v)
}
