package transport_test

import (
	"context"
	"net/http/httptest"
	"strings"
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
	"github.com/tonimelisma/fxicsd/internal/transport"
	"github.com/tonimelisma/fxicsd/testutil"
)

func localGUID() uuid.UUID {
	return uuid.MustParse("55555555-5555-5555-5555-555555555555")
}

func newFixture(t *testing.T) (*transport.Client, store.Handle) {
	t.Helper()

	st := testutil.NewMemStore(localGUID())
	root := st.PutFolder(0, fxid.NewFMID(1, 1), nil)

	d := dispatch.New(st, st, st, nil)
	srv := httptest.NewServer(transport.NewServer(d, nil))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	client, err := transport.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, root
}

func TestClient_ConfigureImportGetBufferRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, root := newFixture(t)

	h, err := client.SyncConfigure(ctx, root, session.ContentsMode, session.Flags{Unicode: true},
		[]uint32{uint32(mapitags.TagDisplayName)})
	require.NoError(t, err)
	require.NotZero(t, h)

	sourceKey := fxid.MakeGID(localGUID(), 2)
	msgID, err := client.ImportMessageChange(ctx, h, sourceKey, false, []store.PropValue{
		{Tag: mapitags.TagDisplayName, Value: propstream.String8Value("hello")},
	})
	require.NoError(t, err)
	require.Zero(t, msgID)

	chunk, _, _, status, err := client.GetBuffer(ctx, h, 1<<20)
	require.NoError(t, err)
	require.Equal(t, chunker.Done, status)
	require.NotEmpty(t, chunk)
}

func TestClient_ImportDeletesRemovesMessage(t *testing.T) {
	ctx := context.Background()
	client, root := newFixture(t)

	h, err := client.SyncConfigure(ctx, root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	sourceKey := fxid.MakeGID(localGUID(), 2)
	_, err = client.ImportMessageChange(ctx, h, sourceKey, false, nil)
	require.NoError(t, err)

	require.NoError(t, client.ImportDeletes(ctx, h, [][]byte{sourceKey}, true, false))
}

func TestClient_UploadStateStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, root := newFixture(t)

	h, err := client.SyncConfigure(ctx, root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	require.NoError(t, client.UploadStateBegin(ctx, h, uint32(mapitags.TagCnsetSeen)))
	require.NoError(t, client.UploadStateContinue(ctx, h, []byte{0x00}))
	require.NoError(t, client.UploadStateEnd(ctx, h))
}

func TestClient_GetLocalReplicaIds(t *testing.T) {
	ctx := context.Background()
	client, root := newFixture(t)

	h, err := client.SyncConfigure(ctx, root, session.ContentsMode, session.Flags{}, nil)
	require.NoError(t, err)

	guid, gc, err := client.GetLocalReplicaIds(ctx, h, 4)
	require.NoError(t, err)
	require.Equal(t, [16]byte(localGUID()), guid)
	require.NotEqual(t, [6]byte{}, gc)
}

func TestClient_UnknownHandleReturnsError(t *testing.T) {
	ctx := context.Background()
	client, _ := newFixture(t)

	_, _, _, _, err := client.GetBuffer(ctx, dispatch.Handle(9999), 1<<20)
	require.Error(t, err)
}
