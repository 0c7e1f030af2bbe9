package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore keeps runs in a single embedded key-value database
// instead of one flat file per run, trading DiskStore's simpler
// sequential-file model for compaction and point-delete support when
// many short-lived runs churn through one sort (spec.md §4.5 "Segment
// store", DOMAIN STACK). Grounded on
// core/storage/pebble/storage.go's Open/Batch/Iter usage of
// github.com/cockroachdb/pebble, generalized from that file's
// window/group-key schema to a run-id + sequence key: each record is
// stored under runID (big-endian) || sequence (big-endian), so a
// range iterator over one run's prefix replays records in write
// order, which for a sealed tournament run is already key order.
type PebbleStore struct {
	db *pebble.DB

	mu     sync.Mutex
	nextID RunID
	seq    map[RunID]uint64
	closed bool
}

// NewPebbleStore opens (or creates) a Pebble database at path.
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("segment: opening pebble store: %w", err)
	}
	return &PebbleStore{db: db, seq: make(map[RunID]uint64)}, nil
}

func runKey(id RunID, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(id))
	binary.BigEndian.PutUint64(key[8:], seq)
	return key
}

type pebbleRecord struct {
	Key     []byte
	Ordinal int64
	Payload []byte
}

func (s *PebbleStore) NewWriter() (RunID, Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, ErrClosed
	}
	id := s.nextID
	s.nextID++
	s.seq[id] = 0
	return id, &pebbleWriter{store: s, id: id, batch: s.db.NewBatch()}, nil
}

func (s *PebbleStore) OpenReader(id RunID) (Reader, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	_, ok := s.seq[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	lower := runKey(id, 0)
	upper := runKey(id, 1<<63-1)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("segment: opening pebble iterator: %w", err)
	}
	iter.First()
	return &pebbleReader{iter: iter}, nil
}

func (s *PebbleStore) Remove(id RunID) error {
	s.mu.Lock()
	_, ok := s.seq[id]
	delete(s.seq, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	lower := runKey(id, 0)
	upper := runKey(id, 1<<63-1)
	if err := s.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return fmt.Errorf("segment: deleting run range: %w", err)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type pebbleWriter struct {
	store *PebbleStore
	id    RunID
	batch *pebble.Batch
	size  int64
}

func (w *pebbleWriter) Write(rec Record) error {
	w.store.mu.Lock()
	seq := w.store.seq[w.id]
	w.store.seq[w.id] = seq + 1
	w.store.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pebbleRecord{Key: rec.Key, Ordinal: rec.Ordinal, Payload: rec.Payload}); err != nil {
		return fmt.Errorf("segment: encoding run record: %w", err)
	}
	if err := w.batch.Set(runKey(w.id, seq), buf.Bytes(), nil); err != nil {
		return fmt.Errorf("segment: batching run record: %w", err)
	}
	w.size += int64(buf.Len())

	if w.batch.Len() > 1000 {
		if err := w.batch.Commit(pebble.NoSync); err != nil {
			return fmt.Errorf("segment: committing run batch: %w", err)
		}
		w.batch = w.store.db.NewBatch()
	}
	return nil
}

func (w *pebbleWriter) Close() (int64, error) {
	if err := w.batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("segment: committing final run batch: %w", err)
	}
	return w.size, nil
}

type pebbleReader struct {
	iter *pebble.Iterator
}

// Next reads the record at the iterator's current position, then
// advances it for the following call. OpenReader leaves the iterator
// positioned on the run's first key (or invalid, if the run is empty).
func (r *pebbleReader) Next() (Record, bool, error) {
	if !r.iter.Valid() {
		return Record{}, false, nil
	}

	var rec pebbleRecord
	if err := gob.NewDecoder(bytes.NewReader(r.iter.Value())).Decode(&rec); err != nil {
		return Record{}, false, fmt.Errorf("segment: decoding run record: %w", err)
	}
	r.iter.Next()
	return Record{Key: rec.Key, Ordinal: rec.Ordinal, Payload: rec.Payload}, true, nil
}

func (r *pebbleReader) Close() error {
	return r.iter.Close()
}
