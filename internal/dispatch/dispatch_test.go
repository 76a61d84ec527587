package dispatch_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/chunker"
	"github.com/tonimelisma/fxicsd/internal/dispatch"
	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/session"
	"github.com/tonimelisma/fxicsd/internal/store"
	"github.com/tonimelisma/fxicsd/testutil"
)

func localGUID() uuid.UUID {
	return uuid.MustParse("44444444-4444-4444-4444-444444444444")
}

func newFixture(t *testing.T) (*dispatch.Dispatcher, *testutil.MemStore, store.Handle) {
	t.Helper()

	st := testutil.NewMemStore(localGUID())
	root := st.PutFolder(0, fxid.NewFMID(1, 1), nil)

	return dispatch.New(st, st, st, nil), st, root
}

func TestDispatcher_SyncConfigureThenGetBufferReachesDone(t *testing.T) {
	ctx := context.Background()
	d, _, root := newFixture(t)

	h, err := d.SyncConfigure(root, session.ContentsMode, session.Flags{Unicode: true}, []propstream.PropTag{mapitags.TagDisplayName})
	require.NoError(t, err)

	_, _, _, status, err := d.FastTransferSourceGetBuffer(ctx, h, 1<<20)
	require.NoError(t, err)
	require.Equal(t, chunker.Done, status)
}

func TestDispatcher_GetBufferOnUnknownHandleIsInvalidObject(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newFixture(t)

	_, _, _, _, err := d.FastTransferSourceGetBuffer(ctx, dispatch.Handle(999), 1<<20)
	require.Error(t, err)
}

func TestDispatcher_ImportMessageChangeThenDelete(t *testing.T) {
	ctx := context.Background()
	d, st, root := newFixture(t)

	h, err := d.SyncConfigure(root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	sourceKey := fxid.MakeGID(localGUID(), 2)
	_, err = d.SyncImportMessageChange(ctx, h, sourceKey, false, []store.PropValue{
		{Tag: mapitags.TagDisplayName, Value: propstream.String8Value("hello")},
	})
	require.NoError(t, err)

	require.NoError(t, d.SyncImportDeletes(ctx, h, [][]byte{sourceKey}, true, false))

	_, err = st.OpenMessage(ctx, root, fxid.NewFMID(1, 2))
	require.Error(t, err, "the imported message must be gone after a hard delete")
}

func TestDispatcher_ImportMessageChangeWrongHandleKindFails(t *testing.T) {
	ctx := context.Background()
	d, _, root := newFixture(t)

	h, err := d.SyncConfigure(root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	ftHandle, err := d.SyncGetTransferState(h)
	require.NoError(t, err)

	_, err = d.SyncImportMessageChange(ctx, ftHandle, fxid.MakeGID(localGUID(), 2), false, nil)
	require.Error(t, err, "an FtContext handle must not satisfy a SyncContext-only opcode")
}

func TestDispatcher_UploadStateRoundTrip(t *testing.T) {
	d, _, root := newFixture(t)

	h, err := d.SyncConfigure(root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	require.NoError(t, d.SyncUploadStateStreamBegin(h, mapitags.TagCnsetSeen))
	require.NoError(t, d.SyncUploadStateStreamContinue(h, []byte{0x00}))
	require.NoError(t, d.SyncUploadStateStreamEnd(h))
}

func TestDispatcher_GetLocalReplicaIdsRequiresLiveHandle(t *testing.T) {
	ctx := context.Background()
	d, _, root := newFixture(t)

	_, _, err := d.GetLocalReplicaIds(ctx, dispatch.Handle(12345), 4)
	require.Error(t, err)

	h, err := d.SyncConfigure(root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	guid, gc, err := d.GetLocalReplicaIds(ctx, h, 4)
	require.NoError(t, err)
	require.Equal(t, [16]byte(localGUID()), guid)
	require.NotEqual(t, [6]byte{}, gc)
}

func TestDispatcher_GetLocalReplicaIdsDisjointUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	d, _, root := newFixture(t)

	h, err := d.SyncConfigure(root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	starts := make([][6]byte, 2)
	counts := []int{3, 5}

	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, gc, err := d.GetLocalReplicaIds(ctx, h, counts[i])
			require.NoError(t, err)
			starts[i] = gc
		}(i)
	}

	wg.Wait()
	require.NotEqual(t, starts[0], starts[1], "differently-sized concurrent reservations must not collide")
}

func TestDispatcher_CopyToThenGetBuffer(t *testing.T) {
	ctx := context.Background()
	d, st, root := newFixture(t)

	msg := st.PutMessage(root, fxid.NewFMID(1, 2), false, map[propstream.PropTag]propstream.Value{
		mapitags.TagDisplayName: propstream.String8Value("subject line"),
	})

	h, err := d.FastTransferSourceCopyTo(ctx, msg, []propstream.PropTag{mapitags.TagDisplayName})
	require.NoError(t, err)

	chunk, _, _, status, err := d.FastTransferSourceGetBuffer(ctx, h, 1<<20)
	require.NoError(t, err)
	require.Equal(t, chunker.Done, status)
	require.Contains(t, string(chunk), "subject line")
}

func TestDispatcher_CloseRemovesHandle(t *testing.T) {
	ctx := context.Background()
	d, _, root := newFixture(t)

	h, err := d.SyncConfigure(root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	d.Close(h)

	_, err = d.SyncImportMessageChange(ctx, h, fxid.MakeGID(localGUID(), 2), false, nil)
	require.Error(t, err)
}
