// Package store declares the interfaces the sync core consumes from an
// external mail store (spec.md §6 "Store interface consumed"). The core
// itself never touches disk; internal/sqlstore provides one concrete
// implementation, and tests use an in-memory fake (testutil).
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/propstream"
)

// Handle is an opaque reference to an open folder or message within a
// Store. It is distinct from the RPC-level handles internal/dispatch
// hands out to clients; a dispatch handle wraps one of these plus a
// session object.
type Handle uint64

// PropStatus reports the per-property outcome of a Properties call,
// since a store may hold some requested tags and not others on a given
// row (spec.md §6 "get_properties(obj, tags) -> (values[], statuses[])").
type PropStatus int

const (
	PropFound PropStatus = iota
	PropNotFound
	PropError
)

// TableKind selects which table OpenTable should return for a folder.
type TableKind int

const (
	ContentsTable TableKind = iota
	FAIContentsTable
	HierarchyTable
)

// ErrNotAFolder and ErrNotAMessage report a Handle used against the
// wrong kind of object. ErrNamedPropNotFound is returned by a
// NamedPropsResolver when asked to resolve an unregistered tag.
var (
	ErrNotAFolder        = errors.New("store: handle is not a folder")
	ErrNotAMessage       = errors.New("store: handle is not a message")
	ErrNamedPropNotFound = errors.New("store: named property not registered")
)

// Store is the external mail store the sync core reads and writes
// through (spec.md §6). All methods are safe for concurrent use across
// independent sessions; per-folder linearizability is the store's
// responsibility (spec.md §5 "Shared resources").
type Store interface {
	// AvailableProperties lists every property tag obj currently carries
	// (spec.md "get_available_properties(obj) -> PropTagArray").
	AvailableProperties(ctx context.Context, obj Handle) ([]propstream.PropTag, error)

	// Properties fetches tags from obj, one PropStatus per requested tag
	// (spec.md "get_properties(obj, tags) -> (values[], statuses[])").
	Properties(ctx context.Context, obj Handle, tags []propstream.PropTag) ([]propstream.Value, []PropStatus, error)

	// OpenFolder resolves fid under parent to a Handle, or ErrNotAFolder
	// (spec.md "open_folder(parent, fid)"). parent is the zero Handle for
	// the store root.
	OpenFolder(ctx context.Context, parent Handle, fid fxid.FMID) (Handle, error)

	// CreateFolder creates fid under parent with the given properties
	// already applied (spec.md "create_folder(parent, fid, props)").
	CreateFolder(ctx context.Context, parent Handle, fid fxid.FMID, props []PropValue) (Handle, error)

	// OpenTable returns the requested table view of folder (spec.md
	// "open_table(folder, kind) -> Table").
	OpenTable(ctx context.Context, folder Handle, kind TableKind) (Table, error)

	// OpenMessage resolves fid within folder to a Handle.
	OpenMessage(ctx context.Context, folder Handle, fid fxid.FMID) (Handle, error)

	// OpenRecipientsTable returns the recipient rows of message, walked
	// while emitting a message's contents-sync record (spec.md §4.5
	// "recipient propList").
	OpenRecipientsTable(ctx context.Context, message Handle) (Table, error)

	// OpenAttachmentsTable returns the attachment rows of message
	// (spec.md §4.5 "attachment propList").
	OpenAttachmentsTable(ctx context.Context, message Handle) (Table, error)

	// CreateMessage creates fid within folder (spec.md "create_message(
	// folder, fid, assoc)").
	CreateMessage(ctx context.Context, folder Handle, fid fxid.FMID, associated bool) (Handle, error)

	// SetProperties applies props to obj; used by ImportHierarchyChange
	// and ImportMessageChange after open-or-create.
	SetProperties(ctx context.Context, obj Handle, props []PropValue) error

	// DeleteMessage removes fid from folder, hard or soft per spec.md
	// "delete_message(folder, fid, kind)".
	DeleteMessage(ctx context.Context, folder Handle, fid fxid.FMID, hard bool) error

	// ReserveFMIDRange reserves count consecutive global-counter values
	// from the store's monotone allocator, returning the first
	// (spec.md "reserve_fmid_range(count) -> start").
	ReserveFMIDRange(ctx context.Context, count int) (start uint64, err error)

	// ReplicaGUID and ReplicaID implement the replica registry (spec.md
	// "replid_to_guid(id) -> guid", "guid_to_replid(guid) -> id") with the
	// exact signatures of fxid.ReplicaRegistry, so any Store doubles as
	// one.
	ReplicaGUID(id fxid.ReplicaID) (uuid.UUID, error)
	ReplicaID(guid uuid.UUID) (fxid.ReplicaID, error)
}

// PropValue pairs a property tag with its value, the shape CreateFolder,
// SetProperties, and ImportHierarchyChange exchange with the store.
type PropValue struct {
	Tag   propstream.PropTag
	Value propstream.Value
}

// Table is a row-oriented view over a folder's contents or child-folder
// list (spec.md "table_set_columns", "table_row_count", "table_get_row").
type Table interface {
	// SetColumns fixes the columns subsequent GetRow calls report, in
	// order (spec.md "table_set_columns(table, tags)").
	SetColumns(ctx context.Context, tags []propstream.PropTag) error

	// RowCount reports the table's current row count (spec.md
	// "table_row_count(table)").
	RowCount(ctx context.Context) (int, error)

	// GetRow returns the values and per-column statuses for row i, in
	// natural store order — the producer never re-sorts (spec.md §4.5
	// "Tables are iterated in the natural order reported by the store").
	GetRow(ctx context.Context, i int) ([]propstream.Value, []PropStatus, error)
}

// NamedPropsResolver adapts a Store's named-property registry to
// propstream.Resolver (spec.md "namedprops_lookup(id) -> (guid, kind,
// lid|name)").
type NamedPropsResolver interface {
	propstream.Resolver
}
