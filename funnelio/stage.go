// Package funnelio defines the InputStage/OutputStage boundary
// (spec.md §4.3, §4.8): the capability sets funnelsort depends on, and
// the shared bookkeeping every concrete provider needs, without
// committing to any particular file format. Concrete readers/writers
// (fixed-width, CSV, newline-delimited) are external collaborators
// (spec.md §1) and are not implemented here.
package funnelio

import (
	"fmt"

	"github.com/fedups/funnelsort/keycodec"
	"github.com/fedups/funnelsort/predicate"
	"github.com/fedups/funnelsort/proxy"
)

// Stage is the InputStage capability set (spec.md §4.3).
type Stage interface {
	Next() (*proxy.Proxy, bool, error)
	Reset() error
	Close() error
	MaxRowsEstimate() int64
}

// RawSource supplies raw, already-framed records from the backing
// reader(s): fixed-width rows, CSV lines, or whatever concrete format
// a caller wires in. Multi-file advance (spec.md §4.3 step 1) is the
// RawSource's responsibility; sourceIndex identifies which file a
// record came from, for OutputStage's later re-read.
type RawSource interface {
	// NextRaw returns the next record's bytes, its absolute byte
	// offset within sourceIndex's file, and that file's index, or
	// ok=false at end of input across every file.
	NextRaw() (data []byte, offset int64, sourceIndex int, ok bool, err error)
	// RowsRemainingEstimate is a cheap upper bound on records left,
	// used by MaxRowsEstimate (spec.md §4.6 pass planning).
	RowsRemainingEstimate() int64
}

// HeaderExtractor receives the first headerRows records instead of
// having them treated as data (spec.md §4.3 step 2).
type HeaderExtractor interface {
	ExtractHeader(data []byte) error
}

// RecordLengthCheck validates a raw record before key extraction
// (spec.md §4.3 step 4). A nil check always passes.
type RecordLengthCheck func(data []byte) bool

// BaseStage implements the InputStage bookkeeping shared by every
// concrete provider: header skip, counters, WHERE/STOP evaluation, key
// extraction, proxy acquisition. Grounded on
// original_source/.../provider/AbstractProvider.java's factoring of
// `next()` into exactly these steps.
type BaseStage struct {
	Raw          RawSource
	Codec        *keycodec.Codec
	Header       HeaderExtractor
	HeaderRows   int
	LengthCheck  RecordLengthCheck
	Where        []predicate.Evaluator
	Stop         []predicate.Evaluator
	Pool         *proxy.Pool
	EvalCtxMaker func(data []byte, recordNumber int64) predicate.Context
	// FieldSplitter splits a raw record into CSV fields for KindCsvField
	// key parts. Nil if no CsvField parts are declared.
	FieldSplitter func(data []byte) [][]byte
	// NegateOrdinal flips the sign of every emitted ordinal, the
	// mechanism --duplicate LastOnly/Reverse and no-keys --copy Reverse
	// each rely on (independently) to turn the tournament's ascending
	// tie-break into a descending one (spec.md §4.7).
	NegateOrdinal bool

	keyBuf              []byte
	fileRecordNum       int64
	continuousRecordNum int64
	filteredCount       int64
	shortRecordCount    int64
	headerRead          int
	ended               bool
}

// ContinuousRecordNumber returns the 1-relative number of the last
// record read past the header rows (spec.md §3 "continuous record
// number"). Records rejected by LengthCheck or WHERE are counted; the
// record that triggers STOP is not.
func (s *BaseStage) ContinuousRecordNumber() int64 { return s.continuousRecordNum }

// FilteredCount returns how many records WHERE has rejected so far.
func (s *BaseStage) FilteredCount() int64 { return s.filteredCount }

// ShortRecordCount returns how many records LengthCheck has rejected so
// far. A length-check failure is non-fatal (spec.md §7); the record is
// skipped and reading continues.
func (s *BaseStage) ShortRecordCount() int64 { return s.shortRecordCount }

// Next implements spec.md §4.3's eight-step sequence.
func (s *BaseStage) Next() (*proxy.Proxy, bool, error) {
	if s.ended {
		return nil, false, nil
	}

	for {
		data, offset, sourceIndex, ok, err := s.Raw.NextRaw()
		if err != nil {
			return nil, false, fmt.Errorf("funnelio: reading raw record: %w", err)
		}
		if !ok {
			s.ended = true
			return nil, false, nil
		}

		if s.headerRead < s.HeaderRows {
			s.headerRead++
			if s.Header != nil {
				if err := s.Header.ExtractHeader(data); err != nil {
					return nil, false, fmt.Errorf("funnelio: extracting header: %w", err)
				}
			}
			continue
		}

		s.fileRecordNum++
		s.continuousRecordNum++

		if s.LengthCheck != nil && !s.LengthCheck(data) {
			s.shortRecordCount++
			continue
		}

		ctx := s.EvalCtxMaker(data, s.continuousRecordNum)

		selected, err := predicate.WhereIsTrue(ctx, s.Where)
		if err != nil {
			return nil, false, fmt.Errorf("funnelio: evaluating WHERE: %w", err)
		}
		if !selected {
			s.filteredCount++
			continue
		}

		stop, err := predicate.StopIsTrue(ctx, s.Stop)
		if err != nil {
			return nil, false, fmt.Errorf("funnelio: evaluating STOP: %w", err)
		}
		if stop {
			s.continuousRecordNum--
			s.ended = true
			return nil, false, nil
		}

		if cap(s.keyBuf) < s.Codec.Capacity() {
			s.keyBuf = make([]byte, s.Codec.Capacity())
		}
		s.keyBuf = s.keyBuf[:s.Codec.Capacity()]

		var fields [][]byte
		if s.FieldSplitter != nil {
			fields = s.FieldSplitter(data)
		}

		n, err := s.Codec.Encode(s.keyBuf, data, fields, s.continuousRecordNum)
		if err != nil {
			return nil, false, fmt.Errorf("funnelio: extracting key: %w", err)
		}

		ordinal := s.continuousRecordNum
		if s.NegateOrdinal {
			ordinal = -ordinal
		}
		p := s.Pool.Acquire()
		p.Set(s.keyBuf[:n], int64(len(data)), offset, sourceIndex, ordinal)
		p.Payload = data
		return p, true, nil
	}
}

// Reset zeroes the counters and clears the header-skip and end-of-input
// state. It does not rewind the RawSource.
func (s *BaseStage) Reset() error {
	s.fileRecordNum = 0
	s.continuousRecordNum = 0
	s.filteredCount = 0
	s.shortRecordCount = 0
	s.headerRead = 0
	s.ended = false
	return nil
}

// Close is a no-op at this layer; concrete RawSource implementations
// own file handles and close themselves.
func (s *BaseStage) Close() error { return nil }

// MaxRowsEstimate reports the RawSource's remaining-rows estimate,
// used by merge.Orchestrator to decide whether another pass is needed
// (spec.md §4.6).
func (s *BaseStage) MaxRowsEstimate() int64 { return s.Raw.RowsRemainingEstimate() }
