package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	ch := m.After(5 * time.Second)
	require.Equal(t, 1, m.Waiters())

	m.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}

	m.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(5*time.Second), got)
	default:
		t.Fatal("expected timer to fire")
	}
	assert.Zero(t, m.Waiters())
}

func TestManual_NonPositiveDurationFiresImmediately(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	select {
	case <-m.After(0):
	default:
		t.Fatal("expected immediate fire")
	}
}

func TestEnsure(t *testing.T) {
	assert.IsType(t, Real{}, Ensure(nil))
	m := NewManual(time.Now())
	assert.Same(t, m, Ensure(m))
}
