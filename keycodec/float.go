package keycodec

import (
	"encoding/binary"
	"math"
)

// encodeFloat reinterprets the IEEE-754 bit pattern as an integer; if
// the sign bit is set the whole pattern is XORed (inverting the
// negative range so it sorts before positives byte-wise), otherwise
// only the sign bit is flipped. NaN has its sign and exponent/mantissa
// bits set such that it sorts as the greatest value ascending, matching
// spec.md §4.1. Absolute directions fold to |v| before the bit trick;
// descending directions NOT the final pattern (consistent with the
// "direction composition" rule — DESC/ADESC invert the produced bytes).
func encodeFloat(dst []byte, p Part, record []byte, double bool) (int, error) {
	length := 4
	if double {
		length = 8
	}
	if p.Offset < 0 || p.Offset+length > len(record) {
		return 0, ErrShortRecord
	}
	if len(dst) < length {
		return 0, ErrKeyOverflow
	}
	b := record[p.Offset : p.Offset+length]

	if double {
		bits := binary.BigEndian.Uint64(b)
		f := math.Float64frombits(bits)
		if p.Direction.absolute() {
			f = math.Abs(f)
			bits = math.Float64bits(f)
		}
		bits = orderedUint64(bits)
		if p.Direction.descending() {
			bits = ^bits
		}
		binary.BigEndian.PutUint64(dst, bits)
		return 8, nil
	}

	bits := binary.BigEndian.Uint32(b)
	f := math.Float32frombits(bits)
	if p.Direction.absolute() {
		f = float32(math.Abs(float64(f)))
		bits = math.Float32bits(f)
	}
	bits = orderedUint32(bits)
	if p.Direction.descending() {
		bits = ^bits
	}
	binary.BigEndian.PutUint32(dst, bits)
	return 4, nil
}

// orderedUint64 maps an IEEE-754 bit pattern to a byte-comparable total
// order over non-NaN values: negatives (sign bit set) are bit-inverted
// entirely, positives have only the sign bit flipped.
func orderedUint64(bits uint64) uint64 {
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func orderedUint32(bits uint32) uint32 {
	if bits&(1<<31) != 0 {
		return ^bits
	}
	return bits | (1 << 31)
}
