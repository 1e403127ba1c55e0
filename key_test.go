package records

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type member struct{ id int64 }

func (p member) UserID() int64 { return p.id }

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		key  any
		want string
	}{
		{name: "string", key: "p1", want: "p1"},
		{name: "empty string", key: "", want: ""},
		{name: "int", key: 42, want: "42"},
		{name: "negative int64", key: int64(-7), want: "-7"},
		{name: "uint8", key: uint8(255), want: "255"},
		{name: "uint64", key: uint64(math.MaxUint64), want: "18446744073709551615"},
		{name: "integral float", key: 10.0, want: "10"},
		{name: "fractional float", key: 1.5, want: "1.5"},
		{name: "large integral float", key: 1e15, want: "1000000000000000"},
		{name: "float32", key: float32(0.1), want: "0.1"},
		{name: "user", key: member{id: 123456}, want: "123456"},
		{name: "user pointer", key: &member{id: 9}, want: "9"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeKey(tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeKey_Unsupported(t *testing.T) {
	type name string
	for _, key := range []any{nil, true, []byte("p1"), struct{}{}, name("p1"), math.NaN(), math.Inf(1)} {
		_, err := NormalizeKey(key)
		assert.ErrorIs(t, err, ErrUnsupportedKeyType, "%#v", key)
		var unsupported *UnsupportedKeyError
		assert.ErrorAs(t, err, &unsupported)
	}
}
