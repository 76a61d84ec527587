package session

import (
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/protoerr"
)

// UploadStateStreamBegin arms state upload for tag, one of
// PidTagIdsetGiven/PidTagCnsetSeen/PidTagCnsetSeenFAI/PidTagCnsetRead
// (spec.md §6 "SyncUploadStateStreamBegin"). Only legal once generation
// has not yet started (spec.md §4.6 "Uploading client state is allowed
// only when no generation has started").
func (c *SyncContext) UploadStateStreamBegin(tag propstream.PropTag) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Configured {
		return protoerr.New("SyncUploadStateStreamBegin", protoerr.InvalidParameter, protoerr.ErrInvalidParameter)
	}

	slot, err := slotForTag(tag)
	if err != nil {
		return err
	}

	c.pendingSlot = slot
	c.pendingBuf = c.pendingBuf[:0]
	c.state = StateUploading

	return nil
}

// UploadStateStreamContinue appends b to the scratch buffer for the
// currently armed upload (spec.md §6 "SyncUploadStateStreamContinue").
func (c *SyncContext) UploadStateStreamContinue(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUploading {
		return protoerr.New("SyncUploadStateStreamContinue", protoerr.InvalidParameter, protoerr.ErrNotInitialized)
	}

	c.pendingBuf = append(c.pendingBuf, b...)

	return nil
}

// UploadStateStreamEnd parses the scratch buffer as an IdSet and merges
// it into the armed slot (spec.md §6 "SyncUploadStateStreamEnd"). A
// Malformed parse is fatal only to this upload — the session returns to
// Configured unchanged, per spec.md §7 "does not poison the session".
func (c *SyncContext) UploadStateStreamEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateUploading {
		return protoerr.New("SyncUploadStateStreamEnd", protoerr.InvalidParameter, protoerr.ErrNotInitialized)
	}

	slot := c.pendingSlot
	buf := c.pendingBuf

	c.pendingSlot = slotNone
	c.pendingBuf = nil
	c.state = Configured

	// An upload with no bytes at all carries an empty set.
	parsed := idset.New()

	if len(buf) > 0 {
		var err error

		parsed, err = idset.Parse(buf)
		if err != nil {
			return protoerr.New("SyncUploadStateStreamEnd", protoerr.Malformed, err)
		}
	}

	// cnset-like slots carry the "single" property (spec.md §4.2
	// "Property 'single'").
	switch slot {
	case slotIdsetGiven:
		parsed.SetSingle(false)
		c.idsetGiven = idset.Merge(c.idsetGiven, parsed)
	case slotCnsetSeen:
		parsed.SetSingle(true)
		c.cnsetSeen = idset.Merge(c.cnsetSeen, parsed)
	case slotCnsetSeenFAI:
		parsed.SetSingle(true)
		c.cnsetSeenFAI = idset.Merge(c.cnsetSeenFAI, parsed)
	case slotCnsetRead:
		parsed.SetSingle(true)
		c.cnsetRead = idset.Merge(c.cnsetRead, parsed)
	}

	return nil
}
