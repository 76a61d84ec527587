package propstream

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// filetimeEpoch is 1601-01-01 UTC, the base of the Windows FILETIME
// epoch used by PT_SYSTIME values (spec.md §4.3 "SYSTIME -> FILETIME").
var filetimeEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

// nanosecondsPerFiletimeTick is the FILETIME tick unit (100ns per tick).
const nanosecondsPerFiletimeTick = 100

func timeValue(s SysTimeValue) time.Time {
	return time.Time(s)
}

// toFiletime converts t to a 64-bit Windows FILETIME tick count.
func toFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}

	// Seconds and sub-second ticks are combined separately: a
	// time.Duration cannot span the 400+ years since filetimeEpoch.
	secs := t.Unix() - filetimeEpoch.Unix()

	return uint64(secs)*(1e9/nanosecondsPerFiletimeTick) + uint64(t.Nanosecond()/nanosecondsPerFiletimeTick)
}

// CutmarkSentinel terminates the cut-mark sidecar (spec.md §4.3
// "terminated by sentinel 0xffffffff", §6 "Cut-mark sentinel").
const CutmarkSentinel uint32 = 0xffffffff

// utf16LE is shared across all Writers; encoding/unicode encoders are
// safe for concurrent use once constructed since NewEncoder returns a
// fresh transform.Transformer per call.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Writer accumulates a tagged property stream plus its cut-mark sidecar
// (spec.md §4.3). The zero value is not usable; construct with New.
type Writer struct {
	buf      []byte
	cutmarks []uint32
	resolver Resolver
}

// New returns a Writer. resolver may be nil if the caller never pushes a
// named property tag (spec.md §4.3 "named properties").
func New(resolver Resolver) *Writer {
	return &Writer{resolver: resolver}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Push appends one (tag, value) record, first recording a cut-mark at
// the current offset (spec.md §4.3: "For each record it first records
// the current stream offset into the cut-marks sidecar, then emits...").
func (w *Writer) Push(tag PropTag, value Value) error {
	w.cutmarks = append(w.cutmarks, uint32(len(w.buf)))

	w.putUint32(uint32(tag))

	if tag.IsNamed() {
		if err := w.writeNamedHeader(tag); err != nil {
			return err
		}
	}

	return w.writeValue(tag, value)
}

// RawMarker appends a bare u32 marker with no value, recording a
// cut-mark first. Used for structural markers in the wire grammar that
// carry no payload of their own (e.g. PR_INCR_SYNC_STATE_BEGIN,
// PR_START_RECIP, PR_END_RECIP; spec.md §4.5 grammar).
func (w *Writer) RawMarker(marker uint32) {
	w.cutmarks = append(w.cutmarks, uint32(len(w.buf)))
	w.putUint32(marker)
}

// RawBlock appends raw, already-encoded bytes (e.g. a serialized IdSet
// preceded by its own marker) without recording an additional cut-mark;
// callers that need a cut-mark boundary before the block should call
// RawMarker or Push immediately before.
func (w *Writer) RawBlock(b []byte) {
	w.buf = append(w.buf, b...)
}

// Finish returns the accumulated stream and its cut-mark sidecar,
// terminated by CutmarkSentinel (spec.md §4.3, §6 "Cut-mark sentinel").
// Finish may be called more than once; it does not mutate the writer's
// internal buffers.
func (w *Writer) Finish() (stream []byte, cutmarks []uint32) {
	stream = make([]byte, len(w.buf))
	copy(stream, w.buf)

	cutmarks = make([]uint32, len(w.cutmarks)+1)
	copy(cutmarks, w.cutmarks)
	cutmarks[len(cutmarks)-1] = CutmarkSentinel

	return stream, cutmarks
}

func (w *Writer) writeNamedHeader(tag PropTag) error {
	if w.resolver == nil {
		return fmt.Errorf("propstream: tag %#x is named but no Resolver was configured", uint32(tag))
	}

	info, err := w.resolver.ResolveNamed(tag)
	if err != nil {
		return fmt.Errorf("propstream: resolving named tag %#x: %w", uint32(tag), err)
	}

	w.buf = append(w.buf, info.GUID[:]...)
	w.buf = append(w.buf, byte(info.Kind))

	switch info.Kind {
	case NamedKindID:
		w.putUint32(info.LID)
	case NamedKindString:
		encoded, encErr := utf16LE.NewEncoder().String(info.Name)
		if encErr != nil {
			return fmt.Errorf("propstream: encoding named property name: %w", encErr)
		}

		w.buf = append(w.buf, encoded...)
		w.buf = append(w.buf, 0x00, 0x00) // UTF-16LE NUL terminator
	default:
		return fmt.Errorf("propstream: unknown named-property kind %d", info.Kind)
	}

	return nil
}

func (w *Writer) writeValue(tag PropTag, value Value) error {
	if mv, ok := value.(MultiValue); ok {
		return w.writeMultiValue(tag, mv)
	}

	return w.writeScalar(tag.Type(), value)
}

func (w *Writer) writeMultiValue(tag PropTag, mv MultiValue) error {
	if !tag.IsMultiValued() {
		return fmt.Errorf("propstream: tag %#x has a MultiValue but lacks MVFlag", uint32(tag))
	}

	w.putUint32(uint32(len(mv)))

	for _, elem := range mv {
		if elem.propType() != tag.Type() {
			return fmt.Errorf("propstream: multi-valued element type mismatch: tag wants %#x, element is %T",
				tag.Type(), elem)
		}

		if err := w.writeScalar(tag.Type(), elem); err != nil {
			return err
		}
	}

	return nil
}

// writeScalar dispatches on Go type, the single match spec.md §9 calls
// for ("the serializer is a single match").
func (w *Writer) writeScalar(wantType uint16, value Value) error {
	switch v := value.(type) {
	case I2Value:
		if err := w.requireType(wantType, PT_I2); err != nil {
			return err
		}

		w.putUint16(uint16(v))
	case LongValue:
		if err := w.requireType(wantType, PT_LONG); err != nil {
			return err
		}

		w.putUint32(uint32(v))
	case ErrorValue:
		if err := w.requireType(wantType, PT_ERROR); err != nil {
			return err
		}

		w.putUint32(uint32(v))
	case ObjectValue:
		if err := w.requireType(wantType, PT_OBJECT); err != nil {
			return err
		}

		w.putUint32(uint32(v))
	case DoubleValue:
		if err := w.requireType(wantType, PT_DOUBLE); err != nil {
			return err
		}

		w.putUint64(math.Float64bits(float64(v)))
	case I8Value:
		if err := w.requireType(wantType, PT_I8); err != nil {
			return err
		}

		w.putUint64(uint64(v))
	case BoolValue:
		if err := w.requireType(wantType, PT_BOOLEAN); err != nil {
			return err
		}

		if v {
			w.putUint16(1)
		} else {
			w.putUint16(0)
		}
	case SysTimeValue:
		if err := w.requireType(wantType, PT_SYSTIME); err != nil {
			return err
		}

		w.putFiletime(timeValue(v))
	case ClsidValue:
		if err := w.requireType(wantType, PT_CLSID); err != nil {
			return err
		}

		w.buf = append(w.buf, v[:]...)
	case String8Value:
		if err := w.requireType(wantType, PT_STRING8); err != nil {
			return err
		}

		return w.putASCIIZ(string(v))
	case UnicodeValue:
		if err := w.requireType(wantType, PT_UNICODE); err != nil {
			return err
		}

		return w.putUTF16Z(string(v))
	case BinaryValue:
		if err := w.requireType(wantType, PT_BINARY); err != nil {
			return err
		}

		w.putUint32(uint32(len(v)))
		w.buf = append(w.buf, v...)
	case SvrEidValue:
		if err := w.requireType(wantType, PT_SVREID); err != nil {
			return err
		}

		w.putUint32(uint32(len(v)))
		w.buf = append(w.buf, v...)
	default:
		return errUnknownType(value)
	}

	return nil
}

func (w *Writer) requireType(wantType, actualType uint16) error {
	if wantType != actualType {
		return fmt.Errorf("propstream: tag declares type %#x but value encodes as %#x", wantType, actualType)
	}

	return nil
}

func (w *Writer) putASCIIZ(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return fmt.Errorf("propstream: STRING8 value contains embedded NUL")
		}
	}

	w.putUint32(uint32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0x00)

	return nil
}

func (w *Writer) putUTF16Z(s string) error {
	encoded, err := utf16LE.NewEncoder().String(s)
	if err != nil {
		return fmt.Errorf("propstream: encoding UNICODE value: %w", err)
	}

	w.putUint32(uint32(len(encoded) + 2))
	w.buf = append(w.buf, encoded...)
	w.buf = append(w.buf, 0x00, 0x00)

	return nil
}

func (w *Writer) putUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) putUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) putUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// putFiletime writes a FILETIME as (u32 low, u32 high), spec.md §4.3
// "SYSTIME -> FILETIME (u32 low, u32 high)".
func (w *Writer) putFiletime(t time.Time) {
	ft := toFiletime(t)
	w.putUint32(uint32(ft))
	w.putUint32(uint32(ft >> 32))
}
