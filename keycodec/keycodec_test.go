package keycodec_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedups/funnelsort/keycodec"
)

func encodeOne(t *testing.T, parts []keycodec.Part, record []byte) []byte {
	t.Helper()
	c := keycodec.New(parts, 0)
	dst := make([]byte, c.Capacity())
	n, err := c.Encode(dst, record, nil, 1)
	require.NoError(t, err)
	return dst[:n]
}

// S1: string ascending ordering.
func TestStringAscendingOrdering(t *testing.T) {
	parts := []keycodec.Part{{Kind: keycodec.KindString, Offset: 0, Length: 6, Direction: keycodec.ASC}}

	banana := encodeOne(t, parts, []byte("banana"))
	apple := encodeOne(t, parts, []byte("apple\x00"))
	cherry := encodeOne(t, parts, []byte("cherry"))

	require.Less(t, bytes.Compare(apple, banana), 0)
	require.Less(t, bytes.Compare(banana, cherry), 0)
}

// S2: signed int descending ordering.
func TestSignedIntDescending(t *testing.T) {
	parts := []keycodec.Part{{Kind: keycodec.KindInt, Offset: 0, Length: 4, Direction: keycodec.DESC}}

	one := encodeOne(t, parts, []byte{0x00, 0x00, 0x00, 0x01})
	negOne := encodeOne(t, parts, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	zero := encodeOne(t, parts, []byte{0x00, 0x00, 0x00, 0x00})

	// Expected order ascending bytes: one, zero, negOne (DESC: 1 > 0 > -1).
	require.Less(t, bytes.Compare(one, zero), 0)
	require.Less(t, bytes.Compare(zero, negOne), 0)
}

func TestUnsignedIntDescendingIsBitwiseNot(t *testing.T) {
	parts := []keycodec.Part{{Kind: keycodec.KindUint, Offset: 0, Length: 1, Direction: keycodec.DESC}}

	lo := encodeOne(t, parts, []byte{0x01})
	hi := encodeOne(t, parts, []byte{0xFE})

	// Descending: 0xFE (254) should sort before 0x01 (1).
	require.Less(t, bytes.Compare(hi, lo), 0)
}

func TestFloatOrderingAcrossSignAndMagnitude(t *testing.T) {
	parts := []keycodec.Part{{Kind: keycodec.KindFloat, Offset: 0, Length: 4, Direction: keycodec.ASC}}

	neg := encodeOne(t, parts, float32Bytes(-2.5))
	zero := encodeOne(t, parts, float32Bytes(0))
	pos := encodeOne(t, parts, float32Bytes(3.5))

	require.Less(t, bytes.Compare(neg, zero), 0)
	require.Less(t, bytes.Compare(zero, pos), 0)
}

func float32Bytes(f float32) []byte {
	var dst [4]byte
	bits := math.Float32bits(f)
	dst[0] = byte(bits >> 24)
	dst[1] = byte(bits >> 16)
	dst[2] = byte(bits >> 8)
	dst[3] = byte(bits)
	return dst[:]
}

func TestShortRecordError(t *testing.T) {
	parts := []keycodec.Part{{Kind: keycodec.KindString, Offset: 0, Length: 10, Direction: keycodec.ASC}}
	c := keycodec.New(parts, 0)
	dst := make([]byte, c.Capacity())
	_, err := c.Encode(dst, []byte("short"), nil, 7)
	require.Error(t, err)
	require.ErrorIs(t, err, keycodec.ErrShortRecord)

	var kerr *keycodec.Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, int64(7), kerr.RecordNo)
}

func TestCsvFieldSort(t *testing.T) {
	// S6: CSV field sort.
	parts := []keycodec.Part{{Kind: keycodec.KindCsvField, CsvFieldNumber: 0, Direction: keycodec.ASC}}
	c := keycodec.New(parts, 0)

	rows := [][][]byte{
		{[]byte("c"), []byte("a")},
		{[]byte("b"), []byte("b")},
		{[]byte("a"), []byte("c")},
	}
	var keys [][]byte
	for _, fields := range rows {
		dst := make([]byte, c.Capacity())
		n, err := c.Encode(dst, nil, fields, 1)
		require.NoError(t, err)
		keys = append(keys, dst[:n])
	}
	require.Less(t, bytes.Compare(keys[2], keys[1]), 0) // a < b
	require.Less(t, bytes.Compare(keys[1], keys[0]), 0) // b < c
}
