package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "sealed", Sealed.String())
	assert.Equal(t, "unsealed", Unsealed.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestRecord_DataAccess(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "session-a")

	rec, err := s.Open(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.Key())
	assert.Equal(t, Sealed, rec.TargetState())

	_, ok := rec.Data()
	assert.False(t, ok)

	rec.Update(func(p *player) { p.Score++ })
	data, ok := rec.Data()
	require.True(t, ok)
	assert.Equal(t, 1, data.Score)

	rec.Set(player{Score: 9})
	data, _ = rec.Data()
	assert.Equal(t, 9, data.Score)

	rec.Clear()
	data, ok = rec.Data()
	assert.False(t, ok)
	assert.Zero(t, data)
}

type byteCodec struct{}

func (byteCodec) Encode(p player) ([]byte, error) { return []byte{byte(p.Score)}, nil }
func (byteCodec) Decode(b []byte) (player, error) { return player{Score: int(b[0])}, nil }

func TestRecord_CustomCodec(t *testing.T) {
	e := newEnv(t)
	s := e.store(t, "session-a", WithCodec[player](byteCodec{}))
	ctx := context.Background()

	rec, err := s.Open(ctx, "p1")
	require.NoError(t, err)
	rec.Set(player{Score: 65})
	require.NoError(t, rec.SaveNow(ctx))
	assert.Equal(t, "A", e.stored(t, "p1"))
}
