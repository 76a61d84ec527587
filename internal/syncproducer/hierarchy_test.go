package syncproducer_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/syncproducer"
)

// TestHierarchyProducer_SingleFolder exercises S2: a single child folder
// with FMID 0x0000000000010001 (replid=1, gc=1), display_name "INBOX",
// last_mod=EPOCH+1.
func TestHierarchyProducer_SingleFolder(t *testing.T) {
	guid := localGUID()

	st, root := newRootFixture(t)

	lastMod := time.Unix(int64(fxid.Epoch)+1, 0).UTC()
	fmidValue := fxid.NewFMID(1, 1)
	st.PutFolder(root, fmidValue, map[propstream.PropTag]propstream.Value{
		mapitags.TagDisplayNameUnicode:    propstream.UnicodeValue("INBOX"),
		mapitags.TagLastModificationTime: propstream.SysTimeValue(lastMod),
	})

	res, err := syncproducer.Hierarchy(context.Background(), st, st, nil, syncproducer.HierarchyRequest{
		RootFolder:        root,
		SessionCnsetSeen:  idset.New(),
		SessionIdsetGiven: idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsEmitted)

	stream := res.Stream

	require.True(t, containsMarker(stream, mapitags.MarkerIncrSyncChg))

	sourceKey := fxid.MakeGID(guid, 1)
	require.True(t, bytes.Contains(stream, sourceKey), "stream must carry the child's source key")

	cn := fxid.ChangeNumber(fmidValue, lastMod)
	changeKey := fxid.MakeGID(guid, cn)
	require.True(t, bytes.Contains(stream, changeKey), "stream must carry the child's change key")

	nameUTF16 := utf16LEBytes(t, "INBOX")
	require.True(t, bytes.Contains(stream, nameUTF16), "stream must carry the display name")
}

func TestHierarchyProducer_EmptyFolderYieldsNoRows(t *testing.T) {
	st, root := newRootFixture(t)

	res, err := syncproducer.Hierarchy(context.Background(), st, st, nil, syncproducer.HierarchyRequest{
		RootFolder:        root,
		SessionCnsetSeen:  idset.New(),
		SessionIdsetGiven: idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.RowsEmitted)
	require.True(t, containsMarker(res.Stream, mapitags.MarkerIncrSyncEnd))
}

// TestHierarchyProducer_NestedSubtree exercises the depth-first walk
// across the bounded errgroup fan-out: a root with two children, one of
// which has its own child, must emit all three records regardless of
// goroutine scheduling.
func TestHierarchyProducer_NestedSubtree(t *testing.T) {
	st, root := newRootFixture(t)

	mod := time.Unix(int64(fxid.Epoch)+50, 0).UTC()

	childA := st.PutFolder(root, fxid.NewFMID(1, 2), map[propstream.PropTag]propstream.Value{
		mapitags.TagDisplayNameUnicode:   propstream.UnicodeValue("A"),
		mapitags.TagLastModificationTime: propstream.SysTimeValue(mod),
	})
	st.PutFolder(root, fxid.NewFMID(1, 3), map[propstream.PropTag]propstream.Value{
		mapitags.TagDisplayNameUnicode:   propstream.UnicodeValue("B"),
		mapitags.TagLastModificationTime: propstream.SysTimeValue(mod.Add(time.Second)),
	})
	st.PutFolder(childA, fxid.NewFMID(1, 4), map[propstream.PropTag]propstream.Value{
		mapitags.TagDisplayNameUnicode:   propstream.UnicodeValue("A-child"),
		mapitags.TagLastModificationTime: propstream.SysTimeValue(mod.Add(2 * time.Second)),
	})

	res, err := syncproducer.Hierarchy(context.Background(), st, st, nil, syncproducer.HierarchyRequest{
		RootFolder:        root,
		SessionCnsetSeen:  idset.New(),
		SessionIdsetGiven: idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.RowsEmitted)

	guid := localGUID()
	require.True(t, res.NewIdsetGiven.Includes(guid, 2))
	require.True(t, res.NewIdsetGiven.Includes(guid, 3))
	require.True(t, res.NewIdsetGiven.Includes(guid, 4))
}

func containsMarker(stream []byte, marker uint32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], marker)

	return bytes.Contains(stream, b[:])
}

func utf16LEBytes(t *testing.T, s string) []byte {
	t.Helper()

	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}

	return out
}
