package durable

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(StoreTypeRedis)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore("dynamo")
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}

func TestStores_ReadWrite(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name  string
		store func(t *testing.T) Store
	}{
		{
			name: "memory",
			store: func(t *testing.T) Store {
				s, err := NewStore(StoreTypeMemory)
				require.NoError(t, err)
				return s
			},
		},
		{
			name: "redis",
			store: func(t *testing.T) Store {
				client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				s, err := NewStore(StoreTypeRedis, WithRedisClient(client), WithKeyPrefix("t:"))
				require.NoError(t, err)
				return s
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.store(t)
			defer s.Close()
			ctx := context.Background()

			_, ok, err := s.Read(ctx, "p1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Write(ctx, "p1", []byte(`{"score":10}`)))
			got, ok, err := s.Read(ctx, "p1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"score":10}`, string(got))

			require.NoError(t, s.Write(ctx, "p1", []byte(`{"score":11}`)))
			got, _, err = s.Read(ctx, "p1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"score":11}`, string(got))
		})
	}

	assert.True(t, mr.Exists("t:p1"))
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, s.Write(ctx, "k", buf))
	buf[0] = 'x'

	got, _, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
