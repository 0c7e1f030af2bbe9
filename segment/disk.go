package segment

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// DiskStore writes each run as a flat file of length-prefixed records:
// a uint64 key length, the key bytes, the int64 ordinal, a uint64
// payload length, then the payload bytes (all integers little-endian).
// Grounded on recordio.BinaryWriter/BinaryReader's
// WriteBytes framing and wal/writer.go's flushSegment, generalized from
// recordio's fixed partition.Record shape to a bare key/payload pair.
type DiskStore struct {
	dir      string
	compress bool

	mu     sync.Mutex
	paths  map[RunID]string
	closed bool
}

// NewDiskStore creates a store that spills runs under dir. When
// compress is true, each run is wrapped in a zstd stream (DOMAIN STACK:
// klauspost/compress), trading CPU for disk footprint on large passes.
func NewDiskStore(dir string, compress bool) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("segment: creating disk store dir: %w", err)
	}
	return &DiskStore{dir: dir, compress: compress, paths: make(map[RunID]string)}, nil
}

func (s *DiskStore) NewWriter() (RunID, Writer, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil, ErrClosed
	}
	id := RunID(len(s.paths))
	for _, taken := s.paths[id]; taken; _, taken = s.paths[id] {
		id++
	}
	path := filepath.Join(s.dir, "Sorted."+uuid.NewString()+".tmp")
	s.paths[id] = path
	s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return 0, nil, fmt.Errorf("segment: creating run file: %w", err)
	}

	buf := bufio.NewWriterSize(f, 64*1024)
	w := &diskWriter{file: f, buf: buf}
	if s.compress {
		zw, err := zstd.NewWriter(buf)
		if err != nil {
			f.Close()
			return 0, nil, fmt.Errorf("segment: opening zstd writer: %w", err)
		}
		w.zw = zw
		w.out = zw
	} else {
		w.out = buf
	}
	return id, w, nil
}

func (s *DiskStore) OpenReader(id RunID) (Reader, error) {
	s.mu.Lock()
	path, ok := s.paths[id]
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: opening run file: %w", err)
	}
	r := &diskReader{file: f}
	buffered := bufio.NewReaderSize(f, 64*1024)
	if s.compress {
		zr, err := zstd.NewReader(buffered)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("segment: opening zstd reader: %w", err)
		}
		r.zr = zr
		r.in = zr
	} else {
		r.in = buffered
	}
	return r, nil
}

func (s *DiskStore) Remove(id RunID) error {
	s.mu.Lock()
	path, ok := s.paths[id]
	delete(s.paths, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("segment: removing run file: %w", err)
	}
	return nil
}

func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for id, path := range s.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
		delete(s.paths, id)
	}
	return firstErr
}

type diskWriter struct {
	file *os.File
	buf  *bufio.Writer
	zw   *zstd.Encoder
	out  io.Writer
	size int64
}

func writeFrame(w io.Writer, b []byte) (int64, error) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(b)))
	n1, err := w.Write(lenBuf[:])
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(b)
	return int64(n1 + n2), err
}

func (w *diskWriter) Write(rec Record) error {
	n1, err := writeFrame(w.out, rec.Key)
	if err != nil {
		return fmt.Errorf("segment: writing key frame: %w", err)
	}
	w.size += n1

	var ordBuf [8]byte
	binary.LittleEndian.PutUint64(ordBuf[:], uint64(rec.Ordinal))
	if _, err := w.out.Write(ordBuf[:]); err != nil {
		return fmt.Errorf("segment: writing ordinal: %w", err)
	}
	w.size += 8

	n2, err := writeFrame(w.out, rec.Payload)
	if err != nil {
		return fmt.Errorf("segment: writing payload frame: %w", err)
	}
	w.size += n2
	return nil
}

func (w *diskWriter) Close() (int64, error) {
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			w.file.Close()
			return 0, fmt.Errorf("segment: closing zstd writer: %w", err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return 0, fmt.Errorf("segment: flushing run file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return 0, fmt.Errorf("segment: closing run file: %w", err)
	}
	return w.size, nil
}

type diskReader struct {
	file *os.File
	zr   *zstd.Decoder
	in   io.Reader
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint64(lenBuf[:])
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("segment: short frame body: %w", err)
	}
	return b, nil
}

func (r *diskReader) Next() (Record, bool, error) {
	key, err := readFrame(r.in)
	if err != nil {
		if err == io.EOF {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("segment: reading key frame: %w", err)
	}

	var ordBuf [8]byte
	if _, err := io.ReadFull(r.in, ordBuf[:]); err != nil {
		return Record{}, false, fmt.Errorf("segment: reading ordinal: %w", err)
	}
	ordinal := int64(binary.LittleEndian.Uint64(ordBuf[:]))

	payload, err := readFrame(r.in)
	if err != nil {
		return Record{}, false, fmt.Errorf("segment: reading payload frame: %w", err)
	}

	return Record{Key: key, Ordinal: ordinal, Payload: payload}, true, nil
}

func (r *diskReader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}
