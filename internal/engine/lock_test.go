package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairwise/internal/config"
	"pairwise/internal/db"
	"pairwise/internal/migrate"
)

func TestLockGroupTimesOut(t *testing.T) {
	e := New(nil, config.Default("test"))
	unlock, err := e.lockGroup(context.Background(), "APPLE")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.lockGroup(ctx, "APPLE")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := e.lockGroup(context.Background(), "PEAR")
	require.NoError(t, err)
	other()

	unlock()
	again, err := e.lockGroup(context.Background(), "APPLE")
	require.NoError(t, err)
	again()
}

func TestCloseGroupReleasesLockSlot(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	e := New(conn, config.Default("test"))
	ctx := context.Background()
	require.NoError(t, e.Restore(ctx))

	g, err := e.CreateGroup(ctx, CreateGroupOptions{SupervisorID: "coach"})
	require.NoError(t, err)
	_, err = e.JoinGroup(ctx, g.Token, "a")
	require.NoError(t, err)
	_, ok := e.locks.Load(g.Token)
	require.True(t, ok)

	_, err = e.CloseGroup(ctx, g.Token, "coach")
	require.NoError(t, err)
	_, ok = e.locks.Load(g.Token)
	assert.False(t, ok)
	assert.Equal(t, 0, e.locks.Size())
}
