// Package syncproducer walks a mail store's folder hierarchy or a
// folder's message table and emits the FastTransfer/ICS wire grammar for
// contentsSync and hierarchySync (spec.md §4.5). It is a pure function
// of (store contents, session state, options) → (stream, cutmarks, new
// session state); it never mutates the store beyond the read calls the
// Store interface exposes.
package syncproducer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// maxHierarchyFanout bounds the number of sibling subtrees rendered
// concurrently during a hierarchy walk (SPEC_FULL §2.1: "bounded by
// errgroup.SetLimit").
const maxHierarchyFanout = 8

// Options mirrors the subset of SyncContext flags that affect producer
// behavior (spec.md §3 "flags").
type Options struct {
	Unicode                 bool
	FAI                     bool
	FAIOnly                 bool // SPEC_FULL §3.1 "FAI-only filtering"
	ReadState               bool
	NoForeignIdentifiers    bool
	BestBody                bool
	OnlySpecifiedProperties bool
	Progress                bool
	RequestEid              bool
	RequestMessageSize      bool
	RequestCn               bool

	// FilterAgainstCnsetSeen resolves spec.md §9's open question: when
	// true, rows whose cn is already covered by the client-uploaded
	// cnset_seen are skipped (S5 strict reading); when false (default),
	// every row is emitted and the client is expected to filter, matching
	// observed source behavior (S5 relaxed reading). See DESIGN.md "Open
	// Question decisions" #1.
	FilterAgainstCnsetSeen bool
}

// ContentsRequest configures one contentsSync production pass.
type ContentsRequest struct {
	Folder                   store.Handle
	RequestedProperties      []propstream.PropTag
	StoreAvailableProperties []propstream.PropTag
	RecipientProperties      []propstream.PropTag
	AttachmentProperties     []propstream.PropTag
	Options                  Options
	SessionCnsetSeen         *idset.IdSet
	SessionCnsetSeenFAI      *idset.IdSet
	SessionIdsetGiven        *idset.IdSet
}

// HierarchyRequest configures one hierarchySync production pass.
type HierarchyRequest struct {
	RootFolder               store.Handle
	RequestedProperties      []propstream.PropTag
	StoreAvailableProperties []propstream.PropTag
	Options                  Options
	SessionCnsetSeen         *idset.IdSet
	SessionIdsetGiven        *idset.IdSet
}

// Result is the output of one production pass: the finished stream and
// the session state it should be merged into (spec.md §4.5 "Merged sets
// are merge(existing_session_state, new_accumulator)").
type Result struct {
	Stream    []byte
	Cutmarks  []uint32
	RowsEmitted int

	NewCnsetSeen    *idset.IdSet
	NewCnsetSeenFAI *idset.IdSet
	NewIdsetGiven   *idset.IdSet
	NewCnsetRead    *idset.IdSet
}

// contentsAnchors are additional tags the contents header already
// carries, excluded from the computed body set on top of
// mapitags.HeaderSet and mapitags.HardExcluded (spec.md §4.5 "Remaining
// property-set columns (past the first 7) are emitted as the body").
var contentsAnchors = []propstream.PropTag{
	mapitags.TagAssociated,
	mapitags.TagMessageSize,
	mapitags.TagChangeNum,
	mapitags.TagPredecessorChangeList,
}

var hierarchyAnchors = []propstream.PropTag{
	mapitags.TagParentSourceKey,
	mapitags.TagPredecessorChangeList,
	mapitags.TagDisplayNameUnicode,
}

// ComputePropertySet implements spec.md §4.5's exclusion rules: start
// from the fixed header set plus mode anchors plus hard-excluded tags,
// then either include the caller-supplied tags (OnlySpecifiedProperties)
// or exclude them from the store-available set; BestBody re-includes the
// body-html/unicode pair afterward.
func ComputePropertySet(storeAvailable, requested, modeAnchors []propstream.PropTag, opts Options) []propstream.PropTag {
	excluded := make(map[propstream.PropTag]bool)

	for _, t := range mapitags.HeaderSet {
		excluded[t] = true
	}

	for _, t := range modeAnchors {
		excluded[t] = true
	}

	for _, t := range mapitags.HardExcluded {
		excluded[t] = true
	}

	var body []propstream.PropTag

	if opts.OnlySpecifiedProperties {
		for _, t := range requested {
			if !excluded[t] {
				body = append(body, t)
			}
		}
	} else {
		reqSet := make(map[propstream.PropTag]bool, len(requested))
		for _, t := range requested {
			reqSet[t] = true
		}

		for _, t := range storeAvailable {
			if excluded[t] || reqSet[t] {
				continue
			}

			body = append(body, t)
		}
	}

	if opts.BestBody {
		have := make(map[propstream.PropTag]bool, len(body))
		for _, t := range body {
			have[t] = true
		}

		for _, t := range mapitags.BestBodySet {
			if !have[t] {
				body = append(body, t)
			}
		}
	}

	return body
}

func predecessorChangeList(changeKey fxid.ChangeKey) propstream.BinaryValue {
	out := make([]byte, 0, 1+fxid.ChangeKeyLen)
	out = append(out, byte(fxid.ChangeKeyLen))
	out = append(out, changeKey[:]...)

	return propstream.BinaryValue(out)
}

func emptyBinary() propstream.Value {
	return propstream.BinaryValue(nil)
}

func errorf(op string, err error) error {
	return fmt.Errorf("syncproducer: %s: %w", op, err)
}

// newGroup returns an errgroup with concurrency bounded to
// maxHierarchyFanout, following SPEC_FULL §2.1's errgroup.SetLimit fan-out.
func newGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxHierarchyFanout)

	return g, gctx
}
