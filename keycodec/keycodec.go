// Package keycodec encodes typed key fields extracted from a raw record
// into a single lexicographically comparable byte string. The hot
// comparison path downstream is a raw memcmp over the produced bytes; all
// type-specific semantics are paid once, at encode time.
package keycodec

import (
	"errors"
	"fmt"
)

// Kind identifies the typed interpretation of a KeyPart.
type Kind int

const (
	KindString Kind = iota
	KindByte
	KindInt
	KindUint
	KindFloat
	KindDouble
	KindDate
	KindCsvField
)

// Direction controls both sort order and whether magnitude is folded
// to its absolute value before encoding.
type Direction int

const (
	ASC Direction = iota
	DESC
	AASC
	ADESC
)

func (d Direction) descending() bool { return d == DESC || d == ADESC }
func (d Direction) absolute() bool   { return d == AASC || d == ADESC }

// Reversed flips a Direction's ascending/descending sense while
// preserving its absolute-value folding, the encode-time half of
// dedupe.Reverse's "invert direction bits ... and negate ordinals"
// (spec.md §4.7).
func (d Direction) Reversed() Direction {
	switch d {
	case ASC:
		return DESC
	case DESC:
		return ASC
	case AASC:
		return ADESC
	case ADESC:
		return AASC
	default:
		return d
	}
}

// DefaultMaxKeyBytes matches KeyHelper.MAX_KEY_SIZE from the original
// implementation.
const DefaultMaxKeyBytes = 255

var (
	// ErrShortRecord is returned when offset+length exceeds the record size.
	ErrShortRecord = errors.New("keycodec: short record")
	// ErrInvalidDateFormat is returned when a Date part fails to parse.
	ErrInvalidDateFormat = errors.New("keycodec: invalid date format")
	// ErrUnsupportedLength is returned for Int/UInt widths outside {1,2,4,8}.
	ErrUnsupportedLength = errors.New("keycodec: unsupported length")
	// ErrKeyOverflow is returned when the encoded key would not fit in
	// the fixed-capacity buffer.
	ErrKeyOverflow = errors.New("keycodec: key buffer overflow")
)

// Error wraps a sentinel with the originating record number and KeyPart
// index, as InputError requires (spec.md §7).
type Error struct {
	Err         error
	RecordNo    int64
	PartIndex   int
	ColumnName  string
}

func (e *Error) Error() string {
	if e.ColumnName != "" {
		return fmt.Sprintf("keycodec: record %d, key part %d (%s): %v", e.RecordNo, e.PartIndex, e.ColumnName, e.Err)
	}
	return fmt.Sprintf("keycodec: record %d, key part %d: %v", e.RecordNo, e.PartIndex, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Part declares one component of a composite sort key. Parts form an
// ordered list, primary first.
type Part struct {
	Kind       Kind
	Offset     int
	Length     int
	Direction  Direction
	ColumnName string // declaring column's name as given; reported in Error

	// ParseFormat is the date layout for KindDate, already translated
	// to a Go reference-time layout (see date.go).
	ParseFormat string

	// CsvFieldNumber is the 0-relative field index for KindCsvField.
	CsvFieldNumber int
}

// Codec encodes a record's declared key parts into a fixed-capacity,
// byte-comparable key. It is deterministic and pure given the Part list.
type Codec struct {
	parts       []Part
	maxKeyBytes int
}

// New builds a Codec over the given ordered key parts. maxKeyBytes <= 0
// selects DefaultMaxKeyBytes.
func New(parts []Part, maxKeyBytes int) *Codec {
	if maxKeyBytes <= 0 {
		maxKeyBytes = DefaultMaxKeyBytes
	}
	return &Codec{parts: parts, maxKeyBytes: maxKeyBytes}
}

// Capacity returns the buffer size (maxKeyBytes+1) a caller must provide
// to Encode.
func (c *Codec) Capacity() int { return c.maxKeyBytes + 1 }

// Encode fills dst (len(dst) must be >= Capacity()) with the
// concatenated per-part encodings of record, returning the number of
// bytes written. fields is the CSV field slice, used only by
// KindCsvField parts; it may be nil otherwise. recordNo is carried into
// any returned Error for diagnostics.
func (c *Codec) Encode(dst []byte, record []byte, fields [][]byte, recordNo int64) (int, error) {
	if len(dst) < c.Capacity() {
		return 0, &Error{Err: ErrKeyOverflow, RecordNo: recordNo}
	}
	pos := 0
	for i, p := range c.parts {
		n, err := c.encodePart(dst[pos:], p, record, fields)
		if err != nil {
			return 0, &Error{Err: err, RecordNo: recordNo, PartIndex: i, ColumnName: p.ColumnName}
		}
		pos += n
	}
	return pos, nil
}

func (c *Codec) encodePart(dst []byte, p Part, record []byte, fields [][]byte) (int, error) {
	switch p.Kind {
	case KindString, KindByte:
		return encodeString(dst, p, record)
	case KindCsvField:
		return encodeCsvField(dst, p, fields)
	case KindInt:
		return encodeSignedInt(dst, p, record)
	case KindUint:
		return encodeUnsignedInt(dst, p, record)
	case KindFloat:
		return encodeFloat(dst, p, record, false)
	case KindDouble:
		return encodeFloat(dst, p, record, true)
	case KindDate:
		return encodeDate(dst, p, record)
	default:
		return 0, fmt.Errorf("keycodec: unknown kind %d", p.Kind)
	}
}

// applyDirection byte-wise NOTs buf in place when the direction is
// descending. Integer/float encodings fold direction into the sign fix
// themselves and must not be passed through this a second time.
func applyDirection(buf []byte, dir Direction) {
	if !dir.descending() {
		return
	}
	for i := range buf {
		buf[i] = ^buf[i]
	}
}
