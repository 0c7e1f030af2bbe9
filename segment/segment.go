// Package segment stores and replays sorted runs between phases of a
// funnelsort pass (spec.md §4.5). A run is the output of one tournament
// phase: at most M proxies, already in key order, plus the raw record
// bytes each proxy's locator points at.
package segment

import (
	"errors"
	"fmt"

	"github.com/fedups/funnelsort/proxy"
)

// ErrClosed is returned by any operation attempted after Close.
var ErrClosed = errors.New("segment: store is closed")

// ErrNotFound reports a run ID with no backing segment.
var ErrNotFound = errors.New("segment: run not found")

// Record is one encoded key plus its raw payload, the unit a Writer
// accepts and a Reader replays. The payload is the original record's
// bytes (CSV line, fixed-width row, whatever the InputStage produced);
// funnelsort itself never interprets it.
type Record struct {
	Key     []byte
	Ordinal int64
	Payload []byte
}

// Writer accepts records in the order a tournament phase emits them
// and seals them into one run.
type Writer interface {
	Write(rec Record) error
	// Close seals the run and returns its byte size on disk (or in
	// memory). Pass planning uses record counts, not this size.
	Close() (size int64, err error)
}

// Reader replays a sealed run's records in their original (sorted)
// order. SourceAdapter wraps a Reader as a tournament.Source, converting
// each Record back into a *proxy.Proxy on demand.
type Reader interface {
	// Next returns the next record, or ok=false at end of run.
	Next() (Record, bool, error)
	Close() error
}

// Store creates and opens runs. RunID is opaque to callers; a Store
// assigns identifiers as runs are created.
type Store interface {
	NewWriter() (RunID, Writer, error)
	OpenReader(id RunID) (Reader, error)
	// Remove releases a run's storage. Safe to call on a run that was
	// already consumed by the current pass.
	Remove(id RunID) error
	Close() error
}

// RunID identifies one sealed run within a Store.
type RunID int64

// SourceAdapter wraps a segment.Reader as a tournament.Source, pulling
// from a shared proxy.Pool so merge phases reuse the same free list
// the initial sort phases used (spec.md §4.2, §8 invariant 6).
type SourceAdapter struct {
	Reader Reader
	Pool   *proxy.Pool
}

// Next implements tournament.Source. phase is accepted for interface
// conformance but unused: a sealed run has no phase concept of its own,
// it simply replays to exhaustion once attached to a merge tournament.
func (s *SourceAdapter) Next(phase int64) (*proxy.Proxy, bool, error) {
	rec, ok, err := s.Reader.Next()
	if err != nil {
		return nil, false, fmt.Errorf("segment: reading run: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	p := s.Pool.Acquire()
	p.Set(rec.Key, int64(len(rec.Payload)), 0, 0, rec.Ordinal)
	p.Payload = rec.Payload
	return p, true, nil
}
