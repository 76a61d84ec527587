package syncproducer

import (
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
)

// appendStateBlock writes the post-sync state block (spec.md §4.5 "State
// block"): cnset_seen, optionally cnset_seen_FAI, idset_given, optionally
// cnset_read, each as a raw marker followed by the IdSet's self-delimiting
// serialized bytes (not a Push-encoded value).
func appendStateBlock(w *propstream.Writer, opts Options, cnsetSeen, cnsetSeenFAI, idsetGiven, cnsetRead *idset.IdSet) {
	w.RawMarker(mapitags.MarkerIncrSyncStateBegin)

	w.RawMarker(uint32(mapitags.TagCnsetSeen))
	w.RawBlock(idset.Serialize(cnsetSeen))

	if opts.FAI {
		w.RawMarker(uint32(mapitags.TagCnsetSeenFAI))
		w.RawBlock(idset.Serialize(cnsetSeenFAI))
	}

	w.RawMarker(uint32(mapitags.TagIdsetGiven))
	w.RawBlock(idset.Serialize(idsetGiven))

	if opts.ReadState {
		w.RawMarker(uint32(mapitags.TagCnsetRead))
		w.RawBlock(idset.Serialize(cnsetRead))
	}

	w.RawMarker(mapitags.MarkerIncrSyncStateEnd)
}
