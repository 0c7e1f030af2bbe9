package tournament_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedups/funnelsort/proxy"
	"github.com/fedups/funnelsort/tournament"
)

// sliceSource feeds a fixed, pre-sorted-or-not slice of keys to the
// tournament, one per Next call. By default it ignores the phase and
// serves keys until the slice is exhausted; with onePerPhase set it
// serves at most one key per phase, the way funnelio.Fanout's leaf
// handles do.
type sliceSource struct {
	keys        [][]byte
	pos         int
	ordinal     int64 // base ordinal assigned to this source's first record
	onePerPhase bool
	servedPhase int64 // phase of the last key served
}

func (s *sliceSource) Next(phase int64) (*proxy.Proxy, bool, error) {
	if s.pos >= len(s.keys) {
		return nil, false, nil
	}
	if s.onePerPhase && s.pos > 0 && s.servedPhase == phase {
		return nil, false, nil
	}
	s.servedPhase = phase
	p := &proxy.Proxy{}
	p.Set(s.keys[s.pos], int64(len(s.keys[s.pos])), 0, 0, s.ordinal+int64(s.pos))
	s.pos++
	return p, true, nil
}

func keys(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func drain(t *testing.T, tree *tournament.Tree, phase int64) []string {
	t.Helper()
	require.NoError(t, tree.Prime(phase))
	var got []string
	for {
		p, ok, err := tree.Shake(phase)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(p.KeyBuf[:p.KeyLen]))
	}
	return got
}

func TestShakeEmitsInAscendingOrder(t *testing.T) {
	sources := []tournament.Source{
		&sliceSource{keys: keys("m", "z")},
		&sliceSource{keys: keys("a", "q")},
		&sliceSource{keys: keys("b")},
		&sliceSource{keys: keys("c", "d", "e")},
	}
	tree, err := tournament.New(3, sources)
	require.NoError(t, err)
	require.Equal(t, 4, tree.M())

	got := drain(t, tree, 1)
	require.Equal(t, []string{"a", "b", "c", "d", "e", "m", "q", "z"}, got)
}

func TestEmptySourcesYieldNothing(t *testing.T) {
	tree, err := tournament.New(2, nil)
	require.NoError(t, err)
	got := drain(t, tree, 1)
	require.Empty(t, got)
}

func TestSingleRecord(t *testing.T) {
	sources := []tournament.Source{&sliceSource{keys: keys("only")}}
	tree, err := tournament.New(2, sources)
	require.NoError(t, err)
	got := drain(t, tree, 1)
	require.Equal(t, []string{"only"}, got)
}

func TestExactlyLeafCapacityRecords(t *testing.T) {
	sources := []tournament.Source{
		&sliceSource{keys: keys("d")},
		&sliceSource{keys: keys("b")},
		&sliceSource{keys: keys("c")},
		&sliceSource{keys: keys("a")},
	}
	tree, err := tournament.New(3, sources)
	require.NoError(t, err)
	got := drain(t, tree, 1)
	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestTreeReinitializesAcrossPhases(t *testing.T) {
	srcA := &sliceSource{keys: keys("x", "a"), onePerPhase: true}
	srcB := &sliceSource{keys: keys("y", "b"), onePerPhase: true}
	tree, err := tournament.New(2, []tournament.Source{srcA, srcB})
	require.NoError(t, err)

	first := drain(t, tree, 1)
	require.Equal(t, []string{"x", "y"}, first)

	second := drain(t, tree, 2)
	require.Equal(t, []string{"a", "b"}, second)
}

func TestShakeRejectsMismatchedPhase(t *testing.T) {
	tree, err := tournament.New(2, nil)
	require.NoError(t, err)
	require.NoError(t, tree.Prime(1))
	_, _, err = tree.Shake(2)
	require.Error(t, err)
}

func TestNewRejectsInvalidDepth(t *testing.T) {
	_, err := tournament.New(1, nil)
	require.ErrorIs(t, err, tournament.ErrInvalidDepth)

	_, err = tournament.New(17, nil)
	require.ErrorIs(t, err, tournament.ErrInvalidDepth)
}

func TestNewRejectsTooManySources(t *testing.T) {
	sources := make([]tournament.Source, 5)
	for i := range sources {
		sources[i] = &sliceSource{}
	}
	_, err := tournament.New(2, sources) // M == 2
	require.Error(t, err)
}

func TestStableOrderingAmongEqualKeys(t *testing.T) {
	// Two leaves each produce a key equal to the other's; the proxy
	// with the lower ordinal must win the tie per proxy.Compare.
	sources := []tournament.Source{
		&sliceSource{keys: keys("k"), ordinal: 5},
		&sliceSource{keys: keys("k"), ordinal: 1},
	}
	tree, err := tournament.New(2, sources)
	require.NoError(t, err)
	require.NoError(t, tree.Prime(1))

	p, ok, err := tree.Shake(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), p.Ordinal)
}
