package segment_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedups/funnelsort/proxy"
	"github.com/fedups/funnelsort/segment"
)

func writeRun(t *testing.T, store segment.Store, recs []segment.Record) (segment.RunID, int64) {
	t.Helper()
	id, w, err := store.NewWriter()
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	size, err := w.Close()
	require.NoError(t, err)
	return id, size
}

func readAll(t *testing.T, store segment.Store, id segment.RunID) []segment.Record {
	t.Helper()
	r, err := store.OpenReader(id)
	require.NoError(t, err)
	defer r.Close()

	var out []segment.Record
	for {
		rec, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, rec)
	}
	return out
}

func sampleRecords() []segment.Record {
	return []segment.Record{
		{Key: []byte("a"), Ordinal: 0, Payload: []byte("alpha")},
		{Key: []byte("b"), Ordinal: 1, Payload: []byte("bravo")},
		{Key: []byte("c"), Ordinal: 2, Payload: []byte("charlie")},
	}
}

func requireRoundTrip(t *testing.T, store segment.Store) {
	t.Helper()
	recs := sampleRecords()
	id, size := writeRun(t, store, recs)
	require.Positive(t, size)

	got := readAll(t, store, id)
	require.Len(t, got, len(recs))
	for i, r := range recs {
		require.Equal(t, r.Key, got[i].Key)
		require.Equal(t, r.Ordinal, got[i].Ordinal)
		require.Equal(t, r.Payload, got[i].Payload)
	}

	require.NoError(t, store.Remove(id))
	_, err := store.OpenReader(id)
	require.Error(t, err)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	requireRoundTrip(t, segment.NewMemoryStore())
}

func TestDiskStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := segment.NewDiskStore(dir, false)
	require.NoError(t, err)
	defer store.Close()
	requireRoundTrip(t, store)
}

func TestDiskStoreCompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := segment.NewDiskStore(dir, true)
	require.NoError(t, err)
	defer store.Close()
	requireRoundTrip(t, store)
}

func TestPebbleStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := segment.NewPebbleStore(dir)
	require.NoError(t, err)
	defer store.Close()
	requireRoundTrip(t, store)
}

func TestDiskStoreCloseRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := segment.NewDiskStore(dir, false)
	require.NoError(t, err)
	writeRun(t, store, sampleRecords())
	require.NoError(t, store.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSourceAdapterProducesPooledProxies(t *testing.T) {
	store := segment.NewMemoryStore()
	id, _ := writeRun(t, store, sampleRecords())
	r, err := store.OpenReader(id)
	require.NoError(t, err)

	pool := proxy.NewPool(8)
	adapter := &segment.SourceAdapter{Reader: r, Pool: pool}

	var keys []string
	for {
		p, ok, err := adapter.Next(1)
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, string(p.KeyBuf[:p.KeyLen]))
		pool.Release(p)
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
	require.Equal(t, int64(0), pool.Live())
}

func TestManifestSmallestOrdersByRecordCount(t *testing.T) {
	m := segment.NewManifest()
	m.Add(1, 500)
	m.Add(2, 10)
	m.Add(3, 100)
	m.Add(4, 10)

	smallest := m.Smallest(2)
	require.Len(t, smallest, 2)
	require.ElementsMatch(t, []segment.RunID{2, 4}, smallest)
	require.Equal(t, 4, m.Len())
	require.Equal(t, int64(620), m.TotalRecords())

	m.Remove(1)
	require.Equal(t, 3, m.Len())
	require.Equal(t, int64(120), m.TotalRecords())
}
