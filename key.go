package records

import (
	"math"
	"strconv"
)

// UserIdentity is implemented by user handles that can key a record.
type UserIdentity interface {
	UserID() int64
}

// NormalizeKey maps a string, integer, float or UserIdentity to the canonical
// string key used by stores.
func NormalizeKey(key any) (string, error) {
	switch k := key.(type) {
	case UserIdentity:
		return strconv.FormatInt(k.UserID(), 10), nil
	case string:
		return k, nil
	case int:
		return strconv.Itoa(k), nil
	case int8:
		return strconv.FormatInt(int64(k), 10), nil
	case int16:
		return strconv.FormatInt(int64(k), 10), nil
	case int32:
		return strconv.FormatInt(int64(k), 10), nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case uint:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(k), 10), nil
	case uint64:
		return strconv.FormatUint(k, 10), nil
	case float32:
		return formatFloat(float64(k), 32, key)
	case float64:
		return formatFloat(k, 64, key)
	}
	return "", &UnsupportedKeyError{Key: key}
}

func formatFloat(f float64, bits int, key any) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &UnsupportedKeyError{Key: key}
	}
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', -1, bits), nil
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}
