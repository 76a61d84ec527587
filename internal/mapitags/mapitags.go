// Package mapitags names the property tags and structural markers the
// sync producer and importer emit and consume (spec.md §4.5 grammar,
// §6 "Wire formats"). Numeric values are this module's own assignment,
// chosen to be internally consistent and typed correctly (PT_* suffix
// matching each tag's wire encoding); spec.md names the tags by role,
// not by specific numeric id, so there is no external registry to match.
package mapitags

import "github.com/tonimelisma/fxicsd/internal/propstream"

// Structural markers (spec.md §4.5 grammar): bare u32 values with no
// following property value, pushed with propstream.Writer.RawMarker.
const (
	MarkerIncrSyncChg         uint32 = 0x402b0003
	MarkerIncrSyncMsg         uint32 = 0x402c0003
	MarkerFXDelProp           uint32 = 0x4016000b
	MarkerMessageRecipients   uint32 = 0x4017000b
	MarkerStartRecip          uint32 = 0x403e0003
	MarkerEndRecip            uint32 = 0x403f0003
	MarkerMessageAttachments  uint32 = 0x40180003
	MarkerNewAttach           uint32 = 0x40400003
	MarkerEndAttach           uint32 = 0x40410003
	MarkerIncrSyncStateBegin  uint32 = 0x402d0003
	MarkerIncrSyncStateEnd    uint32 = 0x402e0003
	MarkerIncrSyncEnd         uint32 = 0x40330003
)

// Property tags emitted as (tag, value) records via propstream.Writer.Push
// (spec.md §4.5 header props, §4.5 "State block").
var (
	TagSourceKey             = propstream.PropTag(0x67770102)
	TagParentSourceKey       = propstream.PropTag(0x65e10102)
	TagLastModificationTime  = propstream.PropTag(0x30080040)
	TagChangeKey             = propstream.PropTag(0x65e20102)
	TagPredecessorChangeList = propstream.PropTag(0x65e30102)
	TagAssociated            = propstream.PropTag(0x67aa000b)
	TagMid                   = propstream.PropTag(0x674a0014)
	TagFid                   = propstream.PropTag(0x67480014)
	TagParentFid             = propstream.PropTag(0x67490014)
	TagMessageSize           = propstream.PropTag(0x0e080003)
	TagChangeNum             = propstream.PropTag(0x67a40014)
	TagDisplayName           = propstream.PropTag(0x3001001e)
	TagDisplayNameUnicode    = propstream.PropTag(0x3001001f)
	TagBodyHTML              = propstream.PropTag(0x10130102)
	TagBodyUnicode           = propstream.PropTag(0x1000001f)
	TagRowType               = propstream.PropTag(0x0ff50003)
	TagInstanceKey           = propstream.PropTag(0x0ff60102)
	TagInstanceNum           = propstream.PropTag(0x0ff40003)
	TagInstID                = propstream.PropTag(0x674d0014)
	TagAttachNum             = propstream.PropTag(0x0e210003)

	// State-block tags. Each is followed by raw serialized IdSet bytes
	// (propstream.Writer.RawBlock), not a Push-encoded value, since the
	// wire form is idset.Serialize's own self-delimiting encoding.
	TagCnsetSeen    = propstream.PropTag(0x67240102)
	TagCnsetSeenFAI = propstream.PropTag(0x67250102)
	TagIdsetGiven   = propstream.PropTag(0x67260102)
	TagCnsetRead    = propstream.PropTag(0x67270102)
)

// HeaderSet is the fixed header tags every contents/hierarchy record
// carries before mode-specific optional tags (spec.md §4.5 "Exclusion
// rules... Starting from a fixed header set").
var HeaderSet = []propstream.PropTag{
	TagChangeKey,
	TagLastModificationTime,
	TagDisplayName,
}

// HardExcluded are never reported as body columns regardless of the
// caller's requested property set (spec.md §4.5 "hard-excluded tags").
var HardExcluded = []propstream.PropTag{
	TagRowType,
	TagInstanceKey,
	TagInstanceNum,
	TagInstID,
	TagFid,
	TagMid,
	TagSourceKey,
	TagParentSourceKey,
	TagParentFid,
}

// BestBodySet is re-included after exclusions when BestBody is requested
// (spec.md §4.5 "BestBody re-includes {PR_BODY_HTML, PR_BODY_UNICODE}").
var BestBodySet = []propstream.PropTag{
	TagBodyHTML,
	TagBodyUnicode,
}
