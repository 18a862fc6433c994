package ember

import (
	"encoding/binary"
	"errors"
	"math"
)

// value tags distinguish the dynamic type carried by a Parameter's value.
const (
	valueTagNull    byte = 0
	valueTagInteger byte = 1
	valueTagReal    byte = 2
	valueTagString  byte = 3
	valueTagBoolean byte = 4
)

// ErrUnsupportedValueType is returned when encodeValue is given a Go value
// with no BER representation in this codec.
var ErrUnsupportedValueType = errors.New("ember: unsupported value type")

// encodeValue serializes a Parameter value (nil, int64, float64, string, or
// bool) into a self-describing byte sequence: one tag byte followed by the
// type-specific payload.
func encodeValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte{valueTagNull}, nil
	case int64:
		var buf [9]byte
		buf[0] = valueTagInteger
		binary.BigEndian.PutUint64(buf[1:], uint64(val))
		return buf[:], nil
	case int:
		return encodeValue(int64(val))
	case float64:
		var buf [9]byte
		buf[0] = valueTagReal
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(val))
		return buf[:], nil
	case string:
		return append([]byte{valueTagString}, []byte(val)...), nil
	case bool:
		b := byte(0)
		if val {
			b = 1
		}
		return []byte{valueTagBoolean, b}, nil
	default:
		return nil, ErrUnsupportedValueType
	}
}

// decodeValue is the inverse of encodeValue.
func decodeValue(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrTruncated
	}
	tag, payload := data[0], data[1:]

	switch tag {
	case valueTagNull:
		return nil, nil
	case valueTagInteger:
		if len(payload) != 8 {
			return nil, ErrTruncated
		}
		return int64(binary.BigEndian.Uint64(payload)), nil
	case valueTagReal:
		if len(payload) != 8 {
			return nil, ErrTruncated
		}
		return math.Float64frombits(binary.BigEndian.Uint64(payload)), nil
	case valueTagString:
		return string(payload), nil
	case valueTagBoolean:
		if len(payload) != 1 {
			return nil, ErrTruncated
		}
		return payload[0] != 0, nil
	default:
		return nil, ErrUnknownTag
	}
}
