package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/records/coordination"
	"github.com/creastat/records/internal/clock"
)

// countingStore counts remote calls made through the coordination store.
type countingStore struct {
	coordination.Store
	calls atomic.Int32
}

func (s *countingStore) CompareAndUpdate(ctx context.Context, key string, update coordination.Updater, ttl time.Duration) (string, bool, error) {
	s.calls.Add(1)
	return s.Store.CompareAndUpdate(ctx, key, update, ttl)
}

func newShared(t *testing.T) (*clock.Manual, *countingStore) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	store, err := coordination.NewStore(coordination.StoreTypeMemory, coordination.WithClock(clk))
	require.NoError(t, err)
	return clk, &countingStore{Store: store}
}

func TestClient_TwoSessionsOneWinner(t *testing.T) {
	clk, store := newShared(t)
	a := New(store, "players", "session-a", WithClock(clk))
	b := New(store, "players", "session-b", WithClock(clk))
	ctx := context.Background()

	require.NoError(t, a.AcquireOrRefresh(ctx, "p1"))
	assert.True(t, a.Held("p1"))

	err := b.AcquireOrRefresh(ctx, "p1")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "session-a", conflict.Holder.SessionID)
	assert.False(t, b.Held("p1"))

	owner, ok, err := b.Owner(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "session-a", owner.SessionID)
}

func TestClient_RefreshExtendsExpiry(t *testing.T) {
	clk, store := newShared(t)
	a := New(store, "players", "session-a", WithClock(clk), WithTTL(30*time.Second))
	b := New(store, "players", "session-b", WithClock(clk), WithTTL(30*time.Second))
	ctx := context.Background()

	require.NoError(t, a.AcquireOrRefresh(ctx, "p1"))
	for i := 0; i < 5; i++ {
		clk.Advance(8 * time.Second)
		require.NoError(t, a.AcquireOrRefresh(ctx, "p1"))
	}
	// 40s since the first acquisition, but refreshed 0s ago
	assert.ErrorIs(t, b.AcquireOrRefresh(ctx, "p1"), ErrConflict)
}

func TestClient_ExpiredLockCanBeTaken(t *testing.T) {
	clk, store := newShared(t)
	a := New(store, "players", "session-a", WithClock(clk))
	b := New(store, "players", "session-b", WithClock(clk))
	ctx := context.Background()

	require.NoError(t, a.AcquireOrRefresh(ctx, "p1"))
	clk.Advance(DefaultTTL)

	require.NoError(t, b.AcquireOrRefresh(ctx, "p1"))

	// a still thinks it holds p1; its release must not clobber b's token
	assert.True(t, a.Held("p1"))
	require.NoError(t, a.Release(ctx, "p1"))
	assert.False(t, a.Held("p1"))

	owner, ok, err := a.Owner(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "session-b", owner.SessionID)
}

func TestClient_ReleaseWithoutHoldIsLocal(t *testing.T) {
	clk, store := newShared(t)
	a := New(store, "players", "session-a", WithClock(clk))
	b := New(store, "players", "session-b", WithClock(clk))
	ctx := context.Background()

	require.NoError(t, a.AcquireOrRefresh(ctx, "p1"))
	before := store.calls.Load()

	require.NoError(t, b.Release(ctx, "p1"))
	assert.Equal(t, before, store.calls.Load(), "release of an unheld key must not reach the store")

	owner, ok, err := b.Owner(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "session-a", owner.SessionID)
}

func TestClient_ReleaseThenReacquireElsewhere(t *testing.T) {
	clk, store := newShared(t)
	a := New(store, "players", "session-a", WithClock(clk))
	b := New(store, "players", "session-b", WithClock(clk))
	ctx := context.Background()

	require.NoError(t, a.AcquireOrRefresh(ctx, "p1"))
	require.NoError(t, a.Release(ctx, "p1"))

	_, ok, err := a.Owner(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok, "released entry reads as UNSET")

	require.NoError(t, b.AcquireOrRefresh(ctx, "p1"))
	assert.Equal(t, []string{"p1"}, b.HeldKeys())
	assert.Empty(t, a.HeldKeys())
}

func TestClient_NamespacesAreIndependent(t *testing.T) {
	clk, store := newShared(t)
	a := New(store, "players", "session-a", WithClock(clk))
	b := New(store, "guilds", "session-b", WithClock(clk))
	ctx := context.Background()

	require.NoError(t, a.AcquireOrRefresh(ctx, "x"))
	require.NoError(t, b.AcquireOrRefresh(ctx, "x"))
}

type brokenStore struct{}

func (brokenStore) CompareAndUpdate(context.Context, string, coordination.Updater, time.Duration) (string, bool, error) {
	return "", false, errors.New("unreachable")
}

func (brokenStore) Close() error { return nil }

func TestClient_StoreErrors(t *testing.T) {
	c := New(brokenStore{}, "players", "session-a")
	err := c.AcquireOrRefresh(context.Background(), "p1")
	require.Error(t, err)
	assert.False(t, IsConflict(err))
	assert.False(t, c.Held("p1"))
	assert.Equal(t, DefaultTTL, c.TTL())
}
