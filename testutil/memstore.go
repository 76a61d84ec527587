package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// MemObject is one in-memory folder or message, keyed by its store.Handle.
type MemObject struct {
	FID         fxid.FMID
	IsFolder    bool
	Parent      store.Handle
	Associated  bool
	Props       map[propstream.PropTag]propstream.Value
	Children    []store.Handle // child folders, in insertion order
	Messages    []store.Handle // contained messages, in insertion order
	Recipients  [][]store.PropValue
	Attachments [][]store.PropValue
}

// MemStore is a minimal in-memory store.Store implementation for unit and
// end-to-end tests. It is not safe to assume any ordering guarantee beyond
// insertion order, matching spec.md §4.5 "Tables are iterated in the
// natural order reported by the store; no re-sorting is performed."
type MemStore struct {
	mu sync.Mutex

	nextHandle store.Handle
	objects    map[store.Handle]*MemObject

	replicaGUIDs map[fxid.ReplicaID]uuid.UUID
	replicaIDs   map[uuid.UUID]fxid.ReplicaID

	namedProps map[propstream.PropTag]propstream.NamedInfo

	counter uint64
}

// NewMemStore returns an empty MemStore with local replica id 1 registered
// against localReplicaGUID.
func NewMemStore(localReplicaGUID uuid.UUID) *MemStore {
	s := &MemStore{
		objects:      make(map[store.Handle]*MemObject),
		replicaGUIDs: make(map[fxid.ReplicaID]uuid.UUID),
		replicaIDs:   make(map[uuid.UUID]fxid.ReplicaID),
		namedProps:   make(map[propstream.PropTag]propstream.NamedInfo),
		nextHandle:   1,
		counter:      1,
	}

	s.replicaGUIDs[1] = localReplicaGUID
	s.replicaIDs[localReplicaGUID] = 1

	return s
}

func (s *MemStore) allocHandle() store.Handle {
	h := s.nextHandle
	s.nextHandle++

	return h
}

// RegisterReplica makes guid resolvable under replid, for tests that
// exercise multi-replica scenarios.
func (s *MemStore) RegisterReplica(replid fxid.ReplicaID, guid uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replicaGUIDs[replid] = guid
	s.replicaIDs[guid] = replid
}

// RegisterNamedProp makes tag resolve to info via ResolveNamed.
func (s *MemStore) RegisterNamedProp(tag propstream.PropTag, info propstream.NamedInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.namedProps[tag] = info
}

func (s *MemStore) ResolveNamed(tag propstream.PropTag) (propstream.NamedInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.namedProps[tag]
	if !ok {
		return propstream.NamedInfo{}, store.ErrNamedPropNotFound
	}

	return info, nil
}

// PutFolder inserts a folder directly (bypassing CreateFolder) for test
// fixture setup, returning its Handle.
func (s *MemStore) PutFolder(parent store.Handle, fid fxid.FMID, props map[propstream.PropTag]propstream.Value) store.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.allocHandle()
	s.objects[h] = &MemObject{FID: fid, IsFolder: true, Parent: parent, Props: cloneProps(props)}

	if parent != 0 {
		if p, ok := s.objects[parent]; ok {
			p.Children = append(p.Children, h)
		}
	}

	return h
}

// PutMessage inserts a message directly into folder for test fixture
// setup, returning its Handle.
func (s *MemStore) PutMessage(folder store.Handle, fid fxid.FMID, associated bool, props map[propstream.PropTag]propstream.Value) store.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.allocHandle()
	s.objects[h] = &MemObject{FID: fid, IsFolder: false, Parent: folder, Associated: associated, Props: cloneProps(props)}

	if f, ok := s.objects[folder]; ok {
		f.Messages = append(f.Messages, h)
	}

	return h
}

func cloneProps(in map[propstream.PropTag]propstream.Value) map[propstream.PropTag]propstream.Value {
	out := make(map[propstream.PropTag]propstream.Value, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

func (s *MemStore) AvailableProperties(_ context.Context, obj store.Handle) ([]propstream.PropTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[obj]
	if !ok {
		return nil, store.ErrNotAFolder
	}

	tags := make([]propstream.PropTag, 0, len(o.Props))
	for t := range o.Props {
		tags = append(tags, t)
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	return tags, nil
}

func (s *MemStore) Properties(_ context.Context, obj store.Handle, tags []propstream.PropTag) ([]propstream.Value, []store.PropStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[obj]
	if !ok {
		return nil, nil, store.ErrNotAFolder
	}

	values := make([]propstream.Value, len(tags))
	statuses := make([]store.PropStatus, len(tags))

	for i, t := range tags {
		v, found := o.Props[t]
		if !found && ((t == mapitags.TagMid && !o.IsFolder) || (t == mapitags.TagFid && o.IsFolder)) {
			v, found = propstream.I8Value(int64(o.FID)), true
		}

		if found {
			values[i] = v
			statuses[i] = store.PropFound
		} else {
			statuses[i] = store.PropNotFound
		}
	}

	return values, statuses, nil
}

func (s *MemStore) OpenFolder(_ context.Context, parent store.Handle, fid fxid.FMID) (store.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var children []store.Handle

	if parent == 0 {
		for h, o := range s.objects {
			if o.IsFolder && o.Parent == 0 {
				children = append(children, h)
			}
		}
	} else if p, ok := s.objects[parent]; ok {
		children = p.Children
	}

	for _, h := range children {
		if s.objects[h].FID == fid {
			return h, nil
		}
	}

	return 0, store.ErrNotAFolder
}

func (s *MemStore) CreateFolder(_ context.Context, parent store.Handle, fid fxid.FMID, props []store.PropValue) (store.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.allocHandle()
	m := make(map[propstream.PropTag]propstream.Value, len(props))

	for _, pv := range props {
		m[pv.Tag] = pv.Value
	}

	s.objects[h] = &MemObject{FID: fid, IsFolder: true, Parent: parent, Props: m}

	if parent != 0 {
		if p, ok := s.objects[parent]; ok {
			p.Children = append(p.Children, h)
		}
	}

	return h, nil
}

func (s *MemStore) OpenTable(_ context.Context, folder store.Handle, kind store.TableKind) (store.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.objects[folder]
	if !ok || !f.IsFolder {
		return nil, store.ErrNotAFolder
	}

	switch kind {
	case store.HierarchyTable:
		return &memTable{store: s, handles: append([]store.Handle(nil), f.Children...)}, nil
	case store.ContentsTable:
		var handles []store.Handle

		for _, h := range f.Messages {
			if !s.objects[h].Associated {
				handles = append(handles, h)
			}
		}

		return &memTable{store: s, handles: handles}, nil
	case store.FAIContentsTable:
		var handles []store.Handle

		for _, h := range f.Messages {
			if s.objects[h].Associated {
				handles = append(handles, h)
			}
		}

		return &memTable{store: s, handles: handles}, nil
	default:
		return nil, store.ErrNotAFolder
	}
}

func (s *MemStore) OpenMessage(_ context.Context, folder store.Handle, fid fxid.FMID) (store.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.objects[folder]
	if !ok {
		return 0, store.ErrNotAMessage
	}

	for _, h := range f.Messages {
		if s.objects[h].FID == fid {
			return h, nil
		}
	}

	return 0, store.ErrNotAMessage
}

func (s *MemStore) CreateMessage(_ context.Context, folder store.Handle, fid fxid.FMID, associated bool) (store.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.allocHandle()
	s.objects[h] = &MemObject{FID: fid, IsFolder: false, Parent: folder, Associated: associated, Props: map[propstream.PropTag]propstream.Value{}}

	if f, ok := s.objects[folder]; ok {
		f.Messages = append(f.Messages, h)
	}

	return h, nil
}

func (s *MemStore) OpenRecipientsTable(_ context.Context, message store.Handle) (store.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[message]
	if !ok {
		return nil, store.ErrNotAMessage
	}

	return &memRowTable{rows: o.Recipients}, nil
}

func (s *MemStore) OpenAttachmentsTable(_ context.Context, message store.Handle) (store.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[message]
	if !ok {
		return nil, store.ErrNotAMessage
	}

	return &memRowTable{rows: o.Attachments}, nil
}

func (s *MemStore) SetProperties(_ context.Context, obj store.Handle, props []store.PropValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[obj]
	if !ok {
		return store.ErrNotAFolder
	}

	for _, pv := range props {
		o.Props[pv.Tag] = pv.Value
	}

	return nil
}

func (s *MemStore) DeleteMessage(_ context.Context, folder store.Handle, fid fxid.FMID, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.objects[folder]
	if !ok {
		return store.ErrNotAMessage
	}

	for i, h := range f.Messages {
		if s.objects[h].FID == fid {
			f.Messages = append(f.Messages[:i], f.Messages[i+1:]...)
			delete(s.objects, h)

			return nil
		}
	}

	return store.ErrNotAMessage
}

func (s *MemStore) ReserveFMIDRange(_ context.Context, count int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.counter
	s.counter += uint64(count)

	return start, nil
}

func (s *MemStore) ReplicaGUID(id fxid.ReplicaID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guid, ok := s.replicaGUIDs[id]
	if !ok {
		return uuid.UUID{}, fxid.ErrUnknownReplica
	}

	return guid, nil
}

func (s *MemStore) ReplicaID(guid uuid.UUID) (fxid.ReplicaID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replid, ok := s.replicaIDs[guid]
	if !ok {
		return 0, fxid.ErrUnknownReplica
	}

	return replid, nil
}

// memTable is a store.Table over a fixed slice of object handles (folders
// or messages), reporting whatever columns SetColumns fixed.
type memTable struct {
	store   *MemStore
	handles []store.Handle
	columns []propstream.PropTag
}

func (t *memTable) SetColumns(_ context.Context, tags []propstream.PropTag) error {
	t.columns = tags
	return nil
}

func (t *memTable) RowCount(_ context.Context) (int, error) {
	return len(t.handles), nil
}

func (t *memTable) GetRow(ctx context.Context, i int) ([]propstream.Value, []store.PropStatus, error) {
	if i < 0 || i >= len(t.handles) {
		return nil, nil, store.ErrNotAFolder
	}

	return t.store.Properties(ctx, t.handles[i], t.columns)
}

// memRowTable is a store.Table over precomputed (tag, value) rows, used
// for recipients and attachments where there is no backing MemObject per
// row.
type memRowTable struct {
	rows    [][]store.PropValue
	columns []propstream.PropTag
}

func (t *memRowTable) SetColumns(_ context.Context, tags []propstream.PropTag) error {
	t.columns = tags
	return nil
}

func (t *memRowTable) RowCount(_ context.Context) (int, error) {
	return len(t.rows), nil
}

func (t *memRowTable) GetRow(_ context.Context, i int) ([]propstream.Value, []store.PropStatus, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, nil, store.ErrNotAFolder
	}

	row := t.rows[i]
	byTag := make(map[propstream.PropTag]propstream.Value, len(row))

	for _, pv := range row {
		byTag[pv.Tag] = pv.Value
	}

	values := make([]propstream.Value, len(t.columns))
	statuses := make([]store.PropStatus, len(t.columns))

	for col, tag := range t.columns {
		if v, ok := byTag[tag]; ok {
			values[col] = v
			statuses[col] = store.PropFound
		} else {
			statuses[col] = store.PropNotFound
		}
	}

	return values, statuses, nil
}

var _ store.Store = (*MemStore)(nil)
