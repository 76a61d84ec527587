package syncproducer_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/idset"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/store"
	"github.com/tonimelisma/fxicsd/internal/syncproducer"
	"github.com/tonimelisma/fxicsd/testutil"
)

func localGUID() uuid.UUID {
	return uuid.MustParse("11111111-1111-1111-1111-111111111111")
}

func newRootFixture(t *testing.T) (*testutil.MemStore, store.Handle) {
	t.Helper()

	st := testutil.NewMemStore(localGUID())
	root := st.PutFolder(0, fxid.NewFMID(1, 1), map[propstream.PropTag]propstream.Value{
		mapitags.TagDisplayName: propstream.String8Value("Inbox"),
	})

	return st, root
}

func TestContentsProducer_EmitsOneRecordPerMessage(t *testing.T) {
	st, root := newRootFixture(t)

	base := time.Unix(int64(fxid.Epoch)+100, 0).UTC()

	st.PutMessage(root, fxid.NewFMID(1, 2), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(base),
		mapitags.TagMessageSize:          propstream.LongValue(42),
	})
	st.PutMessage(root, fxid.NewFMID(1, 3), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(base.Add(time.Second)),
		mapitags.TagMessageSize:          propstream.LongValue(7),
	})

	res, err := syncproducer.Contents(context.Background(), st, st, nil, syncproducer.ContentsRequest{
		Folder:                   root,
		StoreAvailableProperties: nil,
		SessionCnsetSeen:         idset.New(),
		SessionIdsetGiven:        idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsEmitted)
	require.False(t, res.NewCnsetSeen.IsEmpty())
	require.False(t, res.NewIdsetGiven.IsEmpty())

	guid := localGUID()
	require.True(t, res.NewIdsetGiven.Includes(guid, 2))
	require.True(t, res.NewIdsetGiven.Includes(guid, 3))
}

// TestContentsProducer_DuplicateCnWithinPass exercises I6: two rows that
// derive the same (replica, cn) pair within one pass must only be emitted
// once.
func TestContentsProducer_DuplicateCnWithinPass(t *testing.T) {
	st, root := newRootFixture(t)

	// Same last-modification time and both fids with zero high bits (so
	// fxid.ChangeNumber's highFMID term is zero for both) forces an
	// identical cn.
	same := time.Unix(int64(fxid.Epoch)+500, 0).UTC()

	st.PutMessage(root, fxid.NewFMID(1, 10), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(same),
	})
	st.PutMessage(root, fxid.NewFMID(1, 11), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(same),
	})

	res, err := syncproducer.Contents(context.Background(), st, st, nil, syncproducer.ContentsRequest{
		Folder:            root,
		SessionCnsetSeen:  idset.New(),
		SessionIdsetGiven: idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsEmitted, "second row shares a cn with the first and must be suppressed")
}

func TestContentsProducer_FilterAgainstCnsetSeen(t *testing.T) {
	st, root := newRootFixture(t)

	modTime := time.Unix(int64(fxid.Epoch)+900, 0).UTC()
	st.PutMessage(root, fxid.NewFMID(1, 20), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(modTime),
	})

	guid := localGUID()
	cn := fxid.ChangeNumber(fxid.NewFMID(1, 20), modTime)

	seen := idset.New().SetSingle(true)
	seen.Push(guid, cn)

	res, err := syncproducer.Contents(context.Background(), st, st, nil, syncproducer.ContentsRequest{
		Folder:            root,
		Options:           syncproducer.Options{FilterAgainstCnsetSeen: true},
		SessionCnsetSeen:  seen,
		SessionIdsetGiven: idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.RowsEmitted, "strict S5 reading must skip rows already covered by the uploaded cnset_seen")
}

func TestContentsProducer_S5Relaxed(t *testing.T) {
	st, root := newRootFixture(t)

	modTime := time.Unix(int64(fxid.Epoch)+901, 0).UTC()
	st.PutMessage(root, fxid.NewFMID(1, 21), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(modTime),
	})

	guid := localGUID()
	cn := fxid.ChangeNumber(fxid.NewFMID(1, 21), modTime)

	seen := idset.New().SetSingle(true)
	seen.Push(guid, cn)

	res, err := syncproducer.Contents(context.Background(), st, st, nil, syncproducer.ContentsRequest{
		Folder:            root,
		SessionCnsetSeen:  seen,
		SessionIdsetGiven: idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsEmitted, "default-false relaxed reading emits every row regardless of uploaded cnset_seen")
}

func TestContentsProducer_FAIOnly(t *testing.T) {
	st, root := newRootFixture(t)

	modTime := time.Unix(int64(fxid.Epoch)+10, 0).UTC()
	st.PutMessage(root, fxid.NewFMID(1, 30), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(modTime),
	})
	st.PutMessage(root, fxid.NewFMID(1, 31), true, map[propstream.PropTag]propstream.Value{
		mapitags.TagLastModificationTime: propstream.SysTimeValue(modTime.Add(time.Second)),
	})

	res, err := syncproducer.Contents(context.Background(), st, st, nil, syncproducer.ContentsRequest{
		Folder:            root,
		Options:           syncproducer.Options{FAIOnly: true},
		SessionCnsetSeen:  idset.New(),
		SessionIdsetGiven: idset.New(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsEmitted, "FAIOnly must only walk the FAI contents table")
}

func TestComputePropertySet_OnlySpecifiedProperties(t *testing.T) {
	requested := []propstream.PropTag{mapitags.TagDisplayNameUnicode, mapitags.TagMid}

	got := syncproducer.ComputePropertySet(nil, requested, nil, syncproducer.Options{OnlySpecifiedProperties: true})

	require.Contains(t, got, mapitags.TagDisplayNameUnicode)
	require.NotContains(t, got, mapitags.TagMid, "hard-excluded tags must never surface even when explicitly requested")
}

func TestComputePropertySet_BestBodyReincludesBodyTags(t *testing.T) {
	got := syncproducer.ComputePropertySet(nil, nil, nil, syncproducer.Options{BestBody: true})

	require.Contains(t, got, mapitags.TagBodyHTML)
	require.Contains(t, got, mapitags.TagBodyUnicode)
}
