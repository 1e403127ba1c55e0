package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/records"
	"pkt.systems/pslog"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(pslog.NewStructured(io.Discard))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func redisArgs(mr *miniredis.Miniredis, args ...string) []string {
	return append([]string{"--coordination", "redis", "--durable", "redis", "--redis-addr", mr.Addr()}, args...)
}

func TestPutThenGet(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := run(t, redisArgs(mr, "put", "p1", `{"score":3}`)...)
	require.NoError(t, err)

	stored, err := mr.Get("record:records/p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":3}`, stored)

	out, err := run(t, redisArgs(mr, "get", "p1")...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":3}`, out)

	out, err = run(t, redisArgs(mr, "owner", "p1")...)
	require.NoError(t, err)
	assert.Equal(t, "unset", out)
}

func TestPutRefusedWhileLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("lock:records/p1", "other:1700000000"))
	mr.SetTTL("lock:records/p1", time.Minute)

	_, err := run(t, redisArgs(mr, "put", "p1", `{"score":1}`)...)
	require.ErrorIs(t, err, records.ErrLockConflict)
	assert.False(t, mr.Exists("record:records/p1"))

	out, err := run(t, redisArgs(mr, "owner", "p1")...)
	require.NoError(t, err)
	assert.Equal(t, "other 2023-11-14T22:13:20Z", out)
}

func TestScopedStoreNamespace(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := run(t, redisArgs(mr, "--store", "players", "--scope", "eu", "put", "7", `[1,2]`)...)
	require.NoError(t, err)
	assert.True(t, mr.Exists("record:players{eu}/7"))
}

func TestEnvironmentBinding(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("RECORDS_COORDINATION", "redis")
	t.Setenv("RECORDS_DURABLE", "redis")
	t.Setenv("RECORDS_REDIS_ADDR", mr.Addr())

	_, err := run(t, "put", "p2", `"hello"`)
	require.NoError(t, err)
	assert.True(t, mr.Exists("record:records/p2"))
}

func TestCommandErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing record", args: []string{"get", "nobody"}, want: "not found"},
		{name: "invalid json", args: []string{"put", "p1", "{"}, want: "not valid JSON"},
		{name: "unknown durable", args: []string{"--durable", "tape", "get", "p1"}, want: `unknown durable store "tape"`},
		{name: "unknown coordination", args: []string{"--coordination", "zk", "get", "p1"}, want: `unknown coordination store "zk"`},
		{name: "bad timings", args: []string{"--reconcile-interval", "1m", "--lock-ttl", "1m", "get", "p1"}, want: "reconcile interval"},
		{name: "supabase without url", args: []string{"--durable", "supabase", "get", "p1"}, want: "supabase URL is required"},
		{name: "s3 without bucket", args: []string{"--durable", "s3", "get", "p1"}, want: "bucket is required"},
		{name: "missing argument", args: []string{"owner"}, want: "accepts 1 arg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestWithLevel(t *testing.T) {
	logger := pslog.NewStructured(io.Discard)
	assert.NotNil(t, withLevel(logger, ""))
	assert.NotNil(t, withLevel(logger, "debug"))
	assert.NotNil(t, withLevel(logger, "nonsense"))
}
