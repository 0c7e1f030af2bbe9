package funnelio

import (
	"bufio"
	"io"
)

// LineSink writes each record's payload followed by a newline, the
// simplest concrete Sink and the default for --outputFileName when no
// richer framing is requested. Fixed-width/CSV framing belongs to the
// external collaborator named in spec.md §1.
type LineSink struct {
	w *bufio.Writer
}

// NewLineSink wraps w.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: bufio.NewWriterSize(w, 64*1024)}
}

func (s *LineSink) WriteRecord(payload []byte) error {
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *LineSink) Flush() error { return s.w.Flush() }

// SliceSource is a RawSource over an in-memory slice of records, used
// by tests and by any caller that has already materialized its input.
type SliceSource struct {
	Records     [][]byte
	SourceIndex int

	pos int
}

// NextRaw reports each record's index in Records as its offset.
func (s *SliceSource) NextRaw() ([]byte, int64, int, bool, error) {
	if s.pos >= len(s.Records) {
		return nil, 0, 0, false, nil
	}
	offset := int64(s.pos)
	data := s.Records[s.pos]
	s.pos++
	return data, offset, s.SourceIndex, true, nil
}

func (s *SliceSource) RowsRemainingEstimate() int64 {
	return int64(len(s.Records) - s.pos)
}
