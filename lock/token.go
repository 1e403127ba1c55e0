package lock

import (
	"strconv"
	"strings"
	"time"
)

// Unset is the value written when a lock is explicitly released. A missing
// entry means the same thing.
const Unset = "UNSET"

// Token identifies the session owning a lock. AcquiredAt is informational;
// ownership is decided by SessionID alone.
type Token struct {
	SessionID  string
	AcquiredAt time.Time
}

// NewToken mints a token for sessionID at now.
func NewToken(sessionID string, now time.Time) Token {
	return Token{SessionID: sessionID, AcquiredAt: now.UTC().Truncate(time.Second)}
}

// String returns the wire form "<sessionId>:<unix seconds>".
func (t Token) String() string {
	return t.SessionID + ":" + strconv.FormatInt(t.AcquiredAt.Unix(), 10)
}

// OwnedBy reports whether the token belongs to sessionID.
func (t Token) OwnedBy(sessionID string) bool {
	return t.SessionID != "" && t.SessionID == sessionID
}

// ParseToken decodes a stored value. It returns false for empty and Unset
// values. A malformed timestamp still yields the session id.
func ParseToken(value string) (Token, bool) {
	if value == "" || value == Unset {
		return Token{}, false
	}
	session, stamp, _ := strings.Cut(value, ":")
	if session == "" {
		return Token{}, false
	}
	tok := Token{SessionID: session}
	if secs, err := strconv.ParseInt(stamp, 10, 64); err == nil {
		tok.AcquiredAt = time.Unix(secs, 0).UTC()
	}
	return tok, true
}
