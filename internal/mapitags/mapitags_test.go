package mapitags

import (
	"testing"

	"github.com/tonimelisma/fxicsd/internal/propstream"
)

func TestTagTypesMatchPushedValues(t *testing.T) {
	cases := []struct {
		name string
		tag  propstream.PropTag
		want uint16
	}{
		{"SourceKey", TagSourceKey, propstream.PT_BINARY},
		{"ParentSourceKey", TagParentSourceKey, propstream.PT_BINARY},
		{"LastModificationTime", TagLastModificationTime, propstream.PT_SYSTIME},
		{"ChangeKey", TagChangeKey, propstream.PT_BINARY},
		{"PredecessorChangeList", TagPredecessorChangeList, propstream.PT_BINARY},
		{"Associated", TagAssociated, propstream.PT_BOOLEAN},
		{"Mid", TagMid, propstream.PT_I8},
		{"Fid", TagFid, propstream.PT_I8},
		{"ParentFid", TagParentFid, propstream.PT_I8},
		{"MessageSize", TagMessageSize, propstream.PT_LONG},
		{"ChangeNum", TagChangeNum, propstream.PT_I8},
		{"DisplayName", TagDisplayName, propstream.PT_STRING8},
		{"DisplayNameUnicode", TagDisplayNameUnicode, propstream.PT_UNICODE},
		{"BodyHTML", TagBodyHTML, propstream.PT_BINARY},
		{"BodyUnicode", TagBodyUnicode, propstream.PT_UNICODE},
		{"AttachNum", TagAttachNum, propstream.PT_LONG},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.tag.Type(); got != c.want {
				t.Fatalf("%s.Type() = %#x, want %#x", c.name, got, c.want)
			}
		})
	}
}

func TestHardExcludedCoversRowIdentityTags(t *testing.T) {
	want := []propstream.PropTag{TagRowType, TagInstanceKey, TagInstanceNum, TagInstID, TagFid, TagMid, TagSourceKey, TagParentSourceKey, TagParentFid}

	set := make(map[propstream.PropTag]bool, len(HardExcluded))
	for _, t := range HardExcluded {
		set[t] = true
	}

	for _, tag := range want {
		if !set[tag] {
			t.Fatalf("HardExcluded missing %#x", uint32(tag))
		}
	}
}

func TestBestBodySetDisjointFromHardExcluded(t *testing.T) {
	excluded := make(map[propstream.PropTag]bool, len(HardExcluded))
	for _, t := range HardExcluded {
		excluded[t] = true
	}

	for _, t := range BestBodySet {
		if excluded[t] {
			t.Fatalf("BestBodySet tag %#x also hard-excluded", uint32(t))
		}
	}
}
