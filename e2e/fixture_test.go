// Package e2e exercises the full fxicsd stack — dispatch, session,
// syncproducer, and the demo websocket transport wired together — the
// way internal/transport's own tests exercise just the transport layer.
// Scenario numbers (S1, S2, ...) refer to spec.md §8's end-to-end list.
package e2e

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/dispatch"
	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/store"
	"github.com/tonimelisma/fxicsd/internal/transport"
	"github.com/tonimelisma/fxicsd/testutil"
)

func localGUID() uuid.UUID {
	return uuid.MustParse("11111111-1111-1111-1111-111111111111")
}

// newFixture wires a MemStore behind a real Dispatcher and a real
// websocket transport server, returning a connected Client, the backing
// store (for direct setup such as PutFolder/PutMessage), and the store's
// root folder handle.
func newFixture(t *testing.T) (*transport.Client, *testutil.MemStore, store.Handle) {
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

	return client, st, root
}
