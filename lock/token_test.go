package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_WireForm(t *testing.T) {
	tok := NewToken("abc", time.Unix(1_700_000_000, 500))
	assert.Equal(t, "abc:1700000000", tok.String())

	parsed, ok := ParseToken(tok.String())
	require.True(t, ok)
	assert.Equal(t, "abc", parsed.SessionID)
	assert.True(t, tok.AcquiredAt.Equal(parsed.AcquiredAt))
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		value   string
		ok      bool
		session string
	}{
		{value: "", ok: false},
		{value: Unset, ok: false},
		{value: ":123", ok: false},
		{value: "s1:123", ok: true, session: "s1"},
		{value: "s1:not-a-time", ok: true, session: "s1"},
		{value: "s1", ok: true, session: "s1"},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			tok, ok := ParseToken(tc.value)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.session, tok.SessionID)
		})
	}
}

func TestToken_OwnedBy(t *testing.T) {
	assert.True(t, Token{SessionID: "a"}.OwnedBy("a"))
	assert.False(t, Token{SessionID: "a"}.OwnedBy("b"))
	assert.False(t, Token{}.OwnedBy(""))
}
