package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_MinimumInterval(t *testing.T) {
	tests := []struct {
		name  string
		users UserCounter
		want  time.Duration
	}{
		{name: "no counter", users: nil, want: time.Second},
		{name: "no users", users: FixedUsers(0), want: time.Second},
		{name: "six users", users: FixedUsers(6), want: 500 * time.Millisecond},
		{name: "negative clamps", users: FixedUsers(-3), want: time.Second},
		{name: "twenty four users", users: FixedUsers(24), want: 200 * time.Millisecond},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Policy{Users: tc.users}
			assert.Equal(t, tc.want, p.MinimumInterval())
		})
	}
}

func TestPolicy_FollowsGauge(t *testing.T) {
	g := NewUserGauge(nil)
	p := Policy{Users: g}
	assert.Equal(t, 60, p.RequestsPerMinute())

	g.Set(3)
	assert.Equal(t, 90, p.RequestsPerMinute())

	assert.Equal(t, 1, g.Add(-2))
	assert.Equal(t, 0, g.Add(-5))
	assert.Equal(t, 60, p.RequestsPerMinute())
}

func TestThrottle_SeparateQueues(t *testing.T) {
	th := NewThrottle(Policy{Users: FixedUsers(0)})
	defer th.Close()

	assert.Equal(t, "durable.reads", th.Reads.Name())
	assert.Equal(t, "durable.writes", th.Writes.Name())
	assert.NotSame(t, th.Reads, th.Writes)
}
