package config

import (
	"github.com/fedups/funnelsort/aggregate"
	"github.com/fedups/funnelsort/dedupe"
	"github.com/fedups/funnelsort/keycodec"
)

// ColumnType names one of columnsIn's declared field types, mapped
// onto keycodec.Kind at key-part derivation time.
type ColumnType = keycodec.Kind

// ColumnDef declares one field of the fixed/variable/CSV record layout
// (spec.md §6 "--columnsIn"). Name is lowercased and must be unique
// within Columns and HeaderIn.
type ColumnDef struct {
	Name        string
	Type        ColumnType
	Offset      int
	Length      int
	CsvField    int // 1-relative as parsed externally; 0 when not CSV
	ParseFormat string
}

// OrderKey references a previously declared column by name and gives
// it a sort direction (spec.md §6 "--orderBy").
type OrderKey struct {
	ColumnName string
	Direction  keycodec.Direction
}

// CopyMode selects the no-keys behavior spec.md §6's "--copy" flag
// controls: ByKey sorts by the whole record as one byte-string key,
// Original passes records through in input order, Reverse reverses
// input order. It only applies when OrderBy is empty.
type CopyMode int

const (
	CopyByKey CopyMode = iota
	CopyOriginal
	CopyReverse
)

// CSVOptions configures CSV field splitting (spec.md §6 "--csv").
type CSVOptions struct {
	Preset      string
	HasHeader   bool
	Comma       byte
	Delimiter   byte
	Escape      byte
	Quote       byte
	TrimSpace   bool
	SkipBlank   bool
	NullLiteral string
}

// HexDumpSpec names a String/Byte column to render as a hex dump in
// diagnostic output instead of raw bytes (spec.md §6 "--hexDump").
type HexDumpSpec struct {
	ColumnName string
}

// AggregateSpec declares one named aggregate column (spec.md §6
// "--count|--sum|--min|--max|--avg").
type AggregateSpec struct {
	Name       string
	Func       aggregate.Func
	ColumnName string
}

// Config is the full set of options one funnelsort invocation runs
// from, equivalent to original_source's FunnelContext after parsing.
type Config struct {
	InputFiles []string
	OutputFile string
	Replace    bool

	FixedIn        int
	FixedOut       int
	VariableInput  []byte
	VariableOutput []byte

	Columns []ColumnDef
	OrderBy []OrderKey
	Copy    CopyMode

	Duplicate dedupe.Disposition

	Where    []string
	StopWhen []string

	RowMax int64
	Power  int // tournament depth; M = 1<<(Power-1)

	CSV *CSVOptions

	HeaderInRows int
	HeaderOut    bool
	FormatOut    string
	HexDump      *HexDumpSpec
	Aggregates   []AggregateSpec

	WorkDirectory string
	NoCacheInput  bool
	DiskWork      bool
	SyntaxOnly    bool
}

// MaxKeyBytes matches KeyHelper.MAX_KEY_SIZE from original_source; no
// CLI flag overrides it, so it is not a Config field.
const MaxKeyBytes = keycodec.DefaultMaxKeyBytes

// Default returns a Config with original_source's documented defaults
// applied: Power 16 (M = 32768), RowMax unbounded, no CSV, Original
// duplicate disposition.
func Default() Config {
	return Config{
		Power:     16,
		RowMax:    -1, // -1 means unbounded, mirroring Long.MAX_VALUE's role
		Duplicate: dedupe.Original,
	}
}
