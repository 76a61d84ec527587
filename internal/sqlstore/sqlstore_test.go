package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/mapitags"
	"github.com/tonimelisma/fxicsd/internal/propstream"
	"github.com/tonimelisma/fxicsd/internal/sqlstore"
	"github.com/tonimelisma/fxicsd/internal/store"
)

func modTimeFixture() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()

	st, err := sqlstore.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)

	t.Cleanup(func() { st.Close() })

	return st
}

func TestStore_ReplicaRoundTrip(t *testing.T) {
	st := newTestStore(t)
	guid := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	require.NoError(t, st.RegisterReplica(context.Background(), 1, guid))

	got, err := st.ReplicaGUID(1)
	require.NoError(t, err)
	require.Equal(t, guid, got)

	id, err := st.ReplicaID(guid)
	require.NoError(t, err)
	require.Equal(t, fxid.ReplicaID(1), id)

	_, err = st.ReplicaGUID(99)
	require.ErrorIs(t, err, fxid.ErrUnknownReplica)
}

func TestStore_FolderAndMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	root, err := st.CreateFolder(ctx, 0, fxid.NewFMID(1, 1), []store.PropValue{
		{Tag: mapitags.TagDisplayName, Value: propstream.String8Value("Inbox")},
	})
	require.NoError(t, err)

	opened, err := st.OpenFolder(ctx, 0, fxid.NewFMID(1, 1))
	require.NoError(t, err)
	require.Equal(t, root, opened)

	msg, err := st.CreateMessage(ctx, root, fxid.NewFMID(1, 2), false)
	require.NoError(t, err)

	require.NoError(t, st.SetProperties(ctx, msg, []store.PropValue{
		{Tag: mapitags.TagMessageSize, Value: propstream.LongValue(123)},
	}))

	values, statuses, err := st.Properties(ctx, msg, []propstream.PropTag{mapitags.TagMessageSize, mapitags.TagDisplayName})
	require.NoError(t, err)
	require.Equal(t, store.PropFound, statuses[0])
	require.Equal(t, propstream.LongValue(123), values[0])
	require.Equal(t, store.PropNotFound, statuses[1])

	available, err := st.AvailableProperties(ctx, msg)
	require.NoError(t, err)
	require.Contains(t, available, mapitags.TagMessageSize)
}

func TestStore_OpenTableSeparatesNormalAndFAI(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	root, err := st.CreateFolder(ctx, 0, fxid.NewFMID(1, 1), nil)
	require.NoError(t, err)

	_, err = st.CreateMessage(ctx, root, fxid.NewFMID(1, 2), false)
	require.NoError(t, err)
	_, err = st.CreateMessage(ctx, root, fxid.NewFMID(1, 3), true)
	require.NoError(t, err)

	contents, err := st.OpenTable(ctx, root, store.ContentsTable)
	require.NoError(t, err)
	n, err := contents.RowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	fai, err := st.OpenTable(ctx, root, store.FAIContentsTable)
	require.NoError(t, err)
	n, err = fai.RowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestStore_DeleteMessageSoftThenHard(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	root, err := st.CreateFolder(ctx, 0, fxid.NewFMID(1, 1), nil)
	require.NoError(t, err)

	fid := fxid.NewFMID(1, 2)
	_, err = st.CreateMessage(ctx, root, fid, false)
	require.NoError(t, err)

	require.NoError(t, st.DeleteMessage(ctx, root, fid, false))

	_, err = st.OpenMessage(ctx, root, fid)
	require.ErrorIs(t, err, store.ErrNotAMessage, "a soft-deleted message must no longer resolve via OpenMessage")

	require.NoError(t, st.DeleteMessage(ctx, root, fid, true), "hard delete removes the still-present soft-deleted row")

	err = st.DeleteMessage(ctx, root, fid, true)
	require.ErrorIs(t, err, store.ErrNotAMessage, "a delete of a row that no longer exists must fail")
}

func TestStore_ReserveFMIDRangeDisjoint(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	start1, err := st.ReserveFMIDRange(ctx, 5)
	require.NoError(t, err)

	start2, err := st.ReserveFMIDRange(ctx, 3)
	require.NoError(t, err)

	require.Equal(t, start1+5, start2, "a second reservation must begin immediately after the first's range")
}

func TestStore_NamedPropRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	tag := propstream.PropTag(0x80010003)
	info := propstream.NamedInfo{GUID: [16]byte{1, 2, 3}, Kind: propstream.NamedKindID, LID: 42}

	require.NoError(t, st.RegisterNamedProp(ctx, tag, info))

	got, err := st.ResolveNamed(tag)
	require.NoError(t, err)
	require.Equal(t, info.GUID, got.GUID)
	require.Equal(t, info.LID, got.LID)

	_, err = st.ResolveNamed(propstream.PropTag(0x80020003))
	require.ErrorIs(t, err, store.ErrNamedPropNotFound)
}

func TestStore_RecipientsAndAttachments(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	root, err := st.CreateFolder(ctx, 0, fxid.NewFMID(1, 1), nil)
	require.NoError(t, err)
	msg, err := st.CreateMessage(ctx, root, fxid.NewFMID(1, 2), false)
	require.NoError(t, err)

	require.NoError(t, st.PutRecipient(ctx, msg, 0, []store.PropValue{
		{Tag: mapitags.TagDisplayName, Value: propstream.String8Value("Alice")},
	}))
	require.NoError(t, st.PutAttachment(ctx, msg, 0, []store.PropValue{
		{Tag: mapitags.TagDisplayName, Value: propstream.String8Value("report.pdf")},
	}))

	recipients, err := st.OpenRecipientsTable(ctx, msg)
	require.NoError(t, err)
	require.NoError(t, recipients.SetColumns(ctx, []propstream.PropTag{mapitags.TagDisplayName}))

	n, err := recipients.RowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	values, statuses, err := recipients.GetRow(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, store.PropFound, statuses[0])
	require.Equal(t, propstream.String8Value("Alice"), values[0])

	attachments, err := st.OpenAttachmentsTable(ctx, msg)
	require.NoError(t, err)
	n, err = attachments.RowCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestStore_SysTimeValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	root, err := st.CreateFolder(ctx, 0, fxid.NewFMID(1, 1), nil)
	require.NoError(t, err)
	msg, err := st.CreateMessage(ctx, root, fxid.NewFMID(1, 2), false)
	require.NoError(t, err)

	mod := propstream.SysTimeValue(modTimeFixture())
	require.NoError(t, st.SetProperties(ctx, msg, []store.PropValue{
		{Tag: mapitags.TagLastModificationTime, Value: mod},
	}))

	values, statuses, err := st.Properties(ctx, msg, []propstream.PropTag{mapitags.TagLastModificationTime})
	require.NoError(t, err)
	require.Equal(t, store.PropFound, statuses[0])
	require.Equal(t, mod, values[0])
}
