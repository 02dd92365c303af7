package mem

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjYBdx4IL/james-protocols/server"
	"github.com/jjYBdx4IL/james-protocols/server/pop3"
)

func TestAuthenticate(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.AddUser("alice@example.com", "secret"))

	identity, err := store.Authenticate(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", identity)

	_, err = store.Authenticate(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, server.ErrAuthFailed)

	_, err = store.Authenticate(context.Background(), "nobody@example.com", "secret")
	assert.ErrorIs(t, err, server.ErrAuthFailed)
}

func TestMailboxLocking(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.AddUser("alice@example.com", "secret"))

	mb, err := store.Mailbox(context.Background(), "alice@example.com")
	require.NoError(t, err)

	_, err = store.Mailbox(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, pop3.ErrMailboxLocked)

	require.NoError(t, mb.Close())
	mb2, err := store.Mailbox(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, mb2.Close())
}

func TestMailboxListRetrieveDelete(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Deliver("alice@example.com", []byte("first\r\n")))
	require.NoError(t, store.Deliver("alice@example.com", []byte("second one\r\n")))

	mb, err := store.Mailbox(context.Background(), "alice@example.com")
	require.NoError(t, err)
	defer mb.Close()

	infos, err := mb.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 1, infos[0].Number)
	assert.Equal(t, int64(7), infos[0].Size)

	reader, err := mb.Retrieve(2)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	reader.Close()
	assert.Equal(t, "second one\r\n", string(data))

	require.NoError(t, mb.Delete(1))
	infos, err = mb.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Number, "numbers stay stable after a delete")

	_, err = mb.Retrieve(1)
	assert.ErrorIs(t, err, pop3.ErrNoSuchMessage)

	// Rollback un-deletes
	require.NoError(t, mb.Rollback())
	count, _, err := mb.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Commit applies marks to the store
	require.NoError(t, mb.Delete(1))
	require.NoError(t, mb.CommitDeletes())
	assert.Equal(t, 1, store.MessageCount("alice@example.com"))
}

func TestUIDLStableAndUnique(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Deliver("alice@example.com", []byte("first\r\n")))
	require.NoError(t, store.Deliver("alice@example.com", []byte("second\r\n")))

	mb, err := store.Mailbox(context.Background(), "alice@example.com")
	require.NoError(t, err)

	uid1, err := mb.UIDL(1)
	require.NoError(t, err)
	uid2, err := mb.UIDL(2)
	require.NoError(t, err)
	assert.NotEqual(t, uid1, uid2)
	require.NoError(t, mb.Close())

	// Content-derived ids survive re-opening the maildrop
	mb2, err := store.Mailbox(context.Background(), "alice@example.com")
	require.NoError(t, err)
	defer mb2.Close()
	again, err := mb2.UIDL(1)
	require.NoError(t, err)
	assert.Equal(t, uid1, again)
}

func TestDeliverSnapshotIsolation(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Deliver("alice@example.com", []byte("first\r\n")))

	mb, err := store.Mailbox(context.Background(), "alice@example.com")
	require.NoError(t, err)
	defer mb.Close()

	// A delivery during the session does not disturb the session's view
	require.NoError(t, store.Deliver("alice@example.com", []byte("late\r\n")))
	count, _, err := mb.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 2, store.MessageCount("alice@example.com"))
}
