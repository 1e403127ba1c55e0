package durable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/records/queue"
)

type failingStore struct{ err error }

func (f failingStore) Read(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStore) Write(context.Context, string, []byte) error        { return f.err }
func (f failingStore) Close() error                                       { return nil }

func TestThrottled_RoutesThroughQueues(t *testing.T) {
	th := queue.NewThrottle(queue.Policy{}, queue.WithSpacing(nil))
	defer th.Close()

	ts := NewThrottled(NewMemoryStore(), th)
	ctx := context.Background()

	require.NoError(t, ts.Write(ctx, "k", []byte("v"), false))
	require.NoError(t, ts.Write(ctx, "k", []byte("v2"), true))

	got, ok, err := ts.Read(ctx, "k", false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(got))
}

func TestThrottled_WrapsErrors(t *testing.T) {
	th := queue.NewThrottle(queue.Policy{}, queue.WithSpacing(nil))
	defer th.Close()

	boom := errors.New("boom")
	ts := NewThrottled(failingStore{err: boom}, th)
	ctx := context.Background()

	_, _, err := ts.Read(ctx, "k", false)
	var readErr *ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "k", readErr.Key)
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, boom)

	err = ts.Write(ctx, "k", nil, true)
	assert.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRead)
}

func TestThrottled_ClosedQueue(t *testing.T) {
	th := queue.NewThrottle(queue.Policy{})
	th.Close()

	ts := NewThrottled(NewMemoryStore(), th)
	_, _, err := ts.Read(context.Background(), "k", false)
	assert.ErrorIs(t, err, queue.ErrClosed)
	assert.ErrorIs(t, err, ErrRead)
}
