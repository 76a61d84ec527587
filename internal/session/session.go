// Package session implements the sync session state machine (spec.md
// §4.6): SyncContext and FtContext objects, created by RPCs and driven
// by further RPCs against the same handle (spec.md §3 "Lifecycles").
// The state machine itself never talks to a transport; internal/dispatch
// maps opaque RPC handles onto these objects.
package session

import (
	"sync"

	"github.com/tonimelisma/fxicsd/internal/chunker"
	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/protoerr"
	"github.com/tonimelisma/fxicsd/internal/store"
)

// State is one node of the sync session lifecycle (spec.md §4.6
// "Fresh → Configured → StateUploading* → StateUploaded → Producing →
// Streaming → Done").
type State int

const (
	Fresh State = iota
	Configured
	StateUploading
	Producing
	Streaming
	Done
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Configured:
		return "Configured"
	case StateUploading:
		return "StateUploading"
	case Producing:
		return "Producing"
	case Streaming:
		return "Streaming"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Mode selects contents-sync or hierarchy-sync production (spec.md §3
// "requested mode").
type Mode int

const (
	ContentsMode Mode = iota
	HierarchyMode
)

// Flags mirrors the SyncConfigure flag set (spec.md §3 "flags").
type Flags struct {
	Unicode                 bool
	Normal                  bool
	FAI                     bool
	FAIOnly                 bool
	ReadState               bool
	NoForeignIdentifiers    bool
	BestBody                bool
	OnlySpecifiedProperties bool
	Progress                bool
	RequestEid              bool
	RequestMessageSize      bool
	RequestCn               bool

	// FilterAgainstCnsetSeen resolves spec.md §9's delta-filtering open
	// question; see syncproducer.Options and DESIGN.md.
	FilterAgainstCnsetSeen bool
}

// uploadSlot names which session state slot an armed state upload targets
// (spec.md §6 "SyncUploadStateStreamBegin ... arms state upload for one
// of PidTagIdsetGiven, PidTagCnsetSeen, PidTagCnsetSeenFAI, PidTagCnsetRead").
type uploadSlot int

const (
	slotNone uploadSlot = iota
	slotIdsetGiven
	slotCnsetSeen
	slotCnsetSeenFAI
	slotCnsetRead
)

func slotForTag(tag propstream.PropTag) (uploadSlot, error) {
	switch tag {
	case mapitags.TagIdsetGiven:
		return slotIdsetGiven, nil
	case mapitags.TagCnsetSeen:
		return slotCnsetSeen, nil
	case mapitags.TagCnsetSeenFAI:
		return slotCnsetSeenFAI, nil
	case mapitags.TagCnsetRead:
		return slotCnsetRead, nil
	default:
		return slotNone, protoerr.New("SyncUploadStateStreamBegin", protoerr.InvalidParameter, protoerr.ErrInvalidParameter)
	}
}

// SyncContext is the per-session object behind SyncConfigure,
// SyncOpenCollector, and every subsequent Sync* RPC targeting the same
// handle (spec.md §3 "SyncContext").
type SyncContext struct {
	mu sync.Mutex

	st       store.Store
	reg      fxid.ReplicaRegistry
	resolver propstream.Resolver

	folder store.Handle

	state     State
	mode      Mode
	flags     Flags
	collector bool

	properties []propstream.PropTag

	idsetGiven   *idset.IdSet
	cnsetSeen    *idset.IdSet
	cnsetSeenFAI *idset.IdSet
	cnsetRead    *idset.IdSet

	pendingSlot uploadSlot
	pendingBuf  []byte

	stream   []byte
	cutmarks []uint32
	chunker  *chunker.Chunker
}

// New returns a fresh SyncContext bound to folder, not yet configured.
func New(st store.Store, reg fxid.ReplicaRegistry, resolver propstream.Resolver, folder store.Handle) *SyncContext {
	return &SyncContext{
		st:           st,
		reg:          reg,
		resolver:     resolver,
		folder:       folder,
		state:        Fresh,
		idsetGiven:   idset.New(),
		cnsetSeen:    idset.New(),
		cnsetSeenFAI: idset.New(),
		cnsetRead:    idset.New(),
	}
}

// State returns the context's current lifecycle state.
func (c *SyncContext) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Configure transitions Fresh → Configured, recording the requested mode,
// flags, and property set (spec.md §6 "SyncConfigure"). It validates the
// SendOptions/property-set combination (SPEC_FULL §3.1).
func (c *SyncContext) Configure(mode Mode, flags Flags, properties []propstream.PropTag) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Fresh {
		return protoerr.New("SyncConfigure", protoerr.InvalidParameter, protoerr.ErrInvalidParameter)
	}

	if err := validateSendOptions(mode, flags, properties); err != nil {
		return err
	}

	c.mode = mode
	c.flags = flags
	c.properties = append([]propstream.PropTag(nil), properties...)
	c.state = Configured

	return nil
}

// OpenCollector configures the context in collector mode: like Configure
// but marks the session as a passive state collector rather than a
// stream producer (spec.md §6 "SyncOpenCollector").
func (c *SyncContext) OpenCollector(mode Mode, flags Flags, properties []propstream.PropTag) error {
	if err := c.Configure(mode, flags, properties); err != nil {
		return err
	}

	c.mu.Lock()
	c.collector = true
	c.mu.Unlock()

	return nil
}

// validateSendOptions rejects inconsistent unicode/body-property
// combinations (SPEC_FULL §3.1 "ExtraFlags/SendOptions cross-validation").
// Hierarchy mode has no FAI or read-state concept (folders carry neither),
// so FAI/ReadState are rejected there rather than silently producing
// PidTagCnsetSeenFAI/PidTagCnsetRead markers over an empty idset.
func validateSendOptions(mode Mode, flags Flags, properties []propstream.PropTag) error {
	hasHTML := containsTag(properties, mapitags.TagBodyHTML)
	hasUnicodeBody := containsTag(properties, mapitags.TagBodyUnicode)

	if hasHTML && hasUnicodeBody && !flags.BestBody {
		return protoerr.New("SyncConfigure", protoerr.InvalidParameter, protoerr.ErrInvalidParameter)
	}

	if !flags.Unicode && hasUnicodeBody {
		return protoerr.New("SyncConfigure", protoerr.InvalidParameter, protoerr.ErrInvalidParameter)
	}

	if mode == HierarchyMode && (flags.FAI || flags.FAIOnly || flags.ReadState) {
		return protoerr.New("SyncConfigure", protoerr.InvalidParameter, protoerr.ErrInvalidParameter)
	}

	return nil
}

func containsTag(tags []propstream.PropTag, want propstream.PropTag) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}

	return false
}
