package sqlstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/tonimelisma/fxicsd/internal/propstream"
)

// encodeValue packs a propstream.Value into the (value_type, value_blob)
// pair stored in the properties/recipients/attachments tables. value_type
// is the PT_* constant of the value's own concrete type, so decodeValue
// rebuilds that exact type from the stored pair without consulting the
// owning tag.
func encodeValue(v propstream.Value) (valueType uint16, blob []byte, err error) {
	switch val := v.(type) {
	case propstream.I2Value:
		return propstream.PT_I2, putUint16(uint16(val)), nil
	case propstream.LongValue:
		return propstream.PT_LONG, putUint32(uint32(val)), nil
	case propstream.ErrorValue:
		return propstream.PT_ERROR, putUint32(uint32(val)), nil
	case propstream.ObjectValue:
		return propstream.PT_OBJECT, putUint32(uint32(val)), nil
	case propstream.DoubleValue:
		return propstream.PT_DOUBLE, putUint64(math.Float64bits(float64(val))), nil
	case propstream.I8Value:
		return propstream.PT_I8, putUint64(uint64(val)), nil
	case propstream.BoolValue:
		b := byte(0)
		if val {
			b = 1
		}

		return propstream.PT_BOOLEAN, []byte{b}, nil
	case propstream.SysTimeValue:
		return propstream.PT_SYSTIME, putUint64(uint64(time.Time(val).UnixNano())), nil
	case propstream.ClsidValue:
		return propstream.PT_CLSID, append([]byte(nil), val[:]...), nil
	case propstream.String8Value:
		return propstream.PT_STRING8, []byte(val), nil
	case propstream.UnicodeValue:
		return propstream.PT_UNICODE, []byte(val), nil
	case propstream.BinaryValue:
		return propstream.PT_BINARY, append([]byte(nil), val...), nil
	case propstream.SvrEidValue:
		return propstream.PT_SVREID, append([]byte(nil), val...), nil
	default:
		return 0, nil, fmt.Errorf("sqlstore: unsupported value type %T", v)
	}
}

// decodeValue rebuilds a propstream.Value from a stored (value_type,
// value_blob) pair.
func decodeValue(valueType uint16, blob []byte) (propstream.Value, error) {
	switch valueType {
	case propstream.PT_I2:
		return propstream.I2Value(int16(getUint16(blob))), nil
	case propstream.PT_LONG:
		return propstream.LongValue(int32(getUint32(blob))), nil
	case propstream.PT_ERROR:
		return propstream.ErrorValue(int32(getUint32(blob))), nil
	case propstream.PT_OBJECT:
		return propstream.ObjectValue(getUint32(blob)), nil
	case propstream.PT_DOUBLE:
		return propstream.DoubleValue(math.Float64frombits(getUint64(blob))), nil
	case propstream.PT_I8:
		return propstream.I8Value(int64(getUint64(blob))), nil
	case propstream.PT_BOOLEAN:
		if len(blob) < 1 {
			return nil, fmt.Errorf("sqlstore: truncated BOOLEAN value")
		}

		return propstream.BoolValue(blob[0] != 0), nil
	case propstream.PT_SYSTIME:
		return propstream.SysTimeValue(time.Unix(0, int64(getUint64(blob))).UTC()), nil
	case propstream.PT_CLSID:
		if len(blob) != 16 {
			return nil, fmt.Errorf("sqlstore: CLSID value must be 16 bytes, got %d", len(blob))
		}

		var c propstream.ClsidValue
		copy(c[:], blob)

		return c, nil
	case propstream.PT_STRING8:
		return propstream.String8Value(blob), nil
	case propstream.PT_UNICODE:
		return propstream.UnicodeValue(blob), nil
	case propstream.PT_BINARY:
		return propstream.BinaryValue(append([]byte(nil), blob...)), nil
	case propstream.PT_SVREID:
		return propstream.SvrEidValue(append([]byte(nil), blob...)), nil
	default:
		return nil, fmt.Errorf("sqlstore: unknown stored value type %#x", valueType)
	}
}

func putUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)

	return b
}

func putUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)

	return b
}

func putUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)

	return b
}

func getUint16(b []byte) uint16 {
	if len(b) < 2 {
		return 0
	}

	return binary.LittleEndian.Uint16(b)
}

func getUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}

	return binary.LittleEndian.Uint32(b)
}

func getUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}

	return binary.LittleEndian.Uint64(b)
}
