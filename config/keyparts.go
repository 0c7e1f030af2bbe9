package config

import (
	"fmt"

	"github.com/fedups/funnelsort/keycodec"
)

// DeriveKeyParts resolves OrderBy's column-name references against
// Columns into the ordered keycodec.Part list the tournament sorts by.
// If OrderBy is empty it returns an error; no-keys mode (spec.md §6
// "--copy") derives its keys with DeriveCopyKeys instead.
func DeriveKeyParts(c *Config) ([]keycodec.Part, error) {
	if len(c.OrderBy) == 0 {
		return nil, fmt.Errorf("config: no OrderBy keys declared; use DeriveCopyKeys for no-keys mode")
	}
	parts := make([]keycodec.Part, 0, len(c.OrderBy))
	for _, ob := range c.OrderBy {
		col, err := lookupColumn(c.Columns, ob.ColumnName)
		if err != nil {
			return nil, err
		}
		parts = append(parts, keycodec.Part{
			Kind:           col.Type,
			Offset:         col.Offset,
			Length:         col.Length,
			Direction:      ob.Direction,
			ColumnName:     col.Name,
			ParseFormat:    col.ParseFormat,
			CsvFieldNumber: col.CsvField,
		})
	}
	return parts, nil
}

// DeriveCopyKeys realizes spec.md §6's "--copy" no-keys behavior,
// grounded on orderby/KeyHelper.java's setUpAsCopy:
//   - ByKey sorts by the whole raw record, treated as a single opaque
//     byte string (KeyHelper's AlphaKey over offset 0, length
//     MAX_KEY_SIZE).
//   - Original and Reverse do not compare record bytes at all;
//     KeyHelper realizes them with a RecordNumberKey. This port has no
//     per-type "record number" key kind, since proxy.Compare already
//     ties break by ordinal ascending (spec.md §4.2) — an empty key
//     list makes every record compare equal on bytes, so ordinal order
//     alone decides, which is input order for Original. negateOrdinal
//     reports whether the caller must negate ordinals at key-extraction
//     time to get Reverse's descending-by-input-order result (the same
//     mechanism dedupe.LastOnly/Reverse already rely on).
func DeriveCopyKeys(c *Config) (parts []keycodec.Part, negateOrdinal bool, err error) {
	switch c.Copy {
	case CopyByKey:
		part := keycodec.Part{
			Kind:      keycodec.KindString,
			Offset:    0,
			Length:    MaxKeyBytes,
			Direction: keycodec.ASC,
		}
		if c.CSV != nil {
			part.Kind = keycodec.KindCsvField
			part.CsvFieldNumber = 0
		}
		return []keycodec.Part{part}, false, nil
	case CopyOriginal:
		return nil, false, nil
	case CopyReverse:
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("config: unknown copy mode %d", c.Copy)
	}
}

func lookupColumn(columns []ColumnDef, name string) (ColumnDef, error) {
	for _, c := range columns {
		if c.Name == name {
			return c, nil
		}
	}
	return ColumnDef{}, fmt.Errorf("config: orderBy references undefined column %q", name)
}
