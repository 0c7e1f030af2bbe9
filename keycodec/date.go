package keycodec

import (
	"encoding/binary"
	"strings"
	"time"
)

// encodeDate parses the date field using p.ParseFormat (a Go
// reference-time layout; see TranslateLayout for the SimpleDateFormat
// token table) into epoch-milliseconds and encodes it as a signed
// int8, matching spec.md §4.1's "Date. Parse ... into epoch-milliseconds
// (signed 64-bit) and encode as signed int8."
func encodeDate(dst []byte, p Part, record []byte) (int, error) {
	if p.Offset < 0 || p.Offset+p.Length > len(record) {
		return 0, ErrShortRecord
	}
	if len(dst) < 8 {
		return 0, ErrKeyOverflow
	}
	raw := string(record[p.Offset : p.Offset+p.Length])
	t, err := time.Parse(p.ParseFormat, raw)
	if err != nil {
		return 0, ErrInvalidDateFormat
	}
	millis := t.UnixMilli()
	if millis < 0 && p.Direction.absolute() {
		millis = -millis
	}
	if p.Direction.descending() {
		millis = -millis
	}
	binary.BigEndian.PutUint64(dst, uint64(millis)^0x8000000000000000)
	return 8, nil
}

// TranslateLayout converts a SimpleDateFormat-style pattern (as used by
// the original Java implementation's --format option) into a Go
// reference-time layout. Only the token subset exercised by funnelsort's
// date keys is supported; unrecognized runs of letters pass through
// unchanged so already-Go-style layouts keep working.
func TranslateLayout(javaLayout string) string {
	replacer := strings.NewReplacer(
		"yyyy", "2006",
		"yy", "06",
		"MMMM", "January",
		"MMM", "Jan",
		"MM", "01",
		"dd", "02",
		"HH", "15",
		"hh", "03",
		"mm", "04",
		"ss", "05",
		"SSS", "000",
		"a", "PM",
		"Z", "-0700",
		"X", "Z07:00",
	)
	return replacer.Replace(javaLayout)
}
