// Package tournament implements the fixed-depth loser-tree tournament
// that drives one sort phase at a time (spec.md §4.4). It is the hard
// inner loop of the external sorter: exactly log2(M) comparisons per
// emitted proxy, deterministic memory, no heap restructuring.
//
// The tree shape uses a 1-indexed node array sized 2*M, leaves at
// [M, 2M-1], node 0 as the dedicated "exit" holding the overall
// winner, parent(i) = i>>1. The tree is generalized from a
// single-shot build-and-drain into an explicit per-phase Prime/Shake
// protocol: Prime reinitializes it at the start of every phase with one
// pull per leaf (spec.md §4.4 "Phase discipline"), and Shake refills the
// winning leaf from its Source, so a leaf yields as many proxies in a
// phase as its Source serves for that phase. Node 0 as a dedicated exit (rather than spec.md §9's
// illustrative (1<<D)-1-node, 2i+1/2i+2-child layout) avoids a root
// game whose loser would otherwise need special-casing; the two
// layouts are behaviorally identical — same winner rule, same shake
// semantics, same O(log M) replay.
package tournament

import (
	"errors"
	"fmt"

	"github.com/fedups/funnelsort/proxy"
)

// ErrInvalidDepth reports a depth outside spec.md §4.4's bound 2 <= D <= 16.
var ErrInvalidDepth = errors.New("tournament: depth must be in [2, 16]")

// ErrTournamentInvariant is an InternalError: the tree observed a
// state its invariants forbid (spec.md §7).
var ErrTournamentInvariant = errors.New("tournament: invariant violation")

// Source is the leaf-level proxy provider: an InputStage or
// SegmentReader, both of which expose this shape (spec.md §4.3/§4.5).
type Source interface {
	// Next returns the next proxy for the current phase, or ok=false
	// at end of data for this phase.
	Next(phase int64) (*proxy.Proxy, bool, error)
}

// node holds, for every position except 0, the index of the current
// loser of the game rooted there and that loser's value. Node 0 holds
// the overall winner's index/value instead (the "exit").
type node struct {
	index int
	value *proxy.Proxy
}

// Tree is the loser tree for one tournament. leafBase == m, so leaves
// occupy [m, 2m-1] and internal game nodes occupy [1, m-1].
type Tree struct {
	depth   int
	m       int // leaf capacity, 1<<(depth-1)
	nodes   []node
	sources []Source
	exhaust []bool // per-leaf: true once that leaf hit end-of-data for the phase
	phase   int64
	primed  bool
}

// New builds a tournament over the given leaf sources. len(sources)
// must not exceed M = 1<<(depth-1); unused leaf slots report
// end-of-data immediately.
func New(depth int, sources []Source) (*Tree, error) {
	if depth < 2 || depth > 16 {
		return nil, ErrInvalidDepth
	}
	m := 1 << (depth - 1)
	if len(sources) > m {
		return nil, fmt.Errorf("tournament: %d sources exceeds leaf capacity %d", len(sources), m)
	}
	return &Tree{
		depth:   depth,
		m:       m,
		nodes:   make([]node, 2*m),
		sources: sources,
		exhaust: make([]bool, m),
	}, nil
}

// M returns the leaf capacity (maximum records per emitted run).
func (t *Tree) M() int { return t.m }

func (t *Tree) leafSource(i int) Source {
	if i >= len(t.sources) {
		return nil
	}
	return t.sources[i]
}

// Prime fills the leaf row for a new phase (one pull per leaf, per
// spec.md §4.4 "prime the leaf row") then plays the tree to find the
// first winner. Must be called before the first Shake of a phase.
func (t *Tree) Prime(phase int64) error {
	t.phase = phase
	for i := range t.exhaust {
		t.exhaust[i] = false
	}
	for i := 0; i < t.m; i++ {
		t.nodes[t.m+i] = node{index: t.m + i}
		if err := t.fill(i); err != nil {
			return err
		}
	}
	t.initialize()
	t.primed = true
	return nil
}

// fill pulls the next proxy for leaf i from its source, recording
// end-of-data when the source is nil or exhausted.
func (t *Tree) fill(i int) error {
	idx := t.m + i
	src := t.leafSource(i)
	if src == nil || t.exhaust[i] {
		t.nodes[idx].value = nil
		t.nodes[idx].index = -1
		return nil
	}
	p, ok, err := src.Next(t.phase)
	if err != nil {
		return err
	}
	if !ok {
		t.exhaust[i] = true
		t.nodes[idx].value = nil
		t.nodes[idx].index = -1
		return nil
	}
	t.nodes[idx].value = p
	t.nodes[idx].index = idx
	return nil
}

// less reports whether node a's value sorts before node b's. An
// exhausted node (index == -1) never wins.
func (t *Tree) less(a, b int) bool {
	na, nb := &t.nodes[a], &t.nodes[b]
	if na.index == -1 {
		return false
	}
	if nb.index == -1 {
		return true
	}
	return na.value.Compare(nb.value) < 0
}

// initialize plays the whole tree bottom-up once, after Prime has
// filled every leaf.
func (t *Tree) initialize() {
	winner := t.playGame(1)
	t.nodes[0].index = t.nodes[winner].index
	t.nodes[0].value = t.nodes[winner].value
}

// playGame finds the winner at position pos, recording the loser at
// pos if it is an internal node. pos must be >= 1 and < m (internal)
// or a leaf reached via the recursion's base case.
func (t *Tree) playGame(pos int) int {
	if pos >= t.m {
		return pos
	}
	left := t.playGame(pos * 2)
	right := t.playGame(pos*2 + 1)
	var loser, winner int
	if t.less(left, right) {
		loser, winner = right, left
	} else {
		loser, winner = left, right
	}
	t.nodes[pos].index = t.nodes[loser].index
	t.nodes[pos].value = t.nodes[loser].value
	return winner
}

// replayGames re-walks the ancestors of pos (a fresh winner) up to
// the root, swapping in the new winner wherever it beats the
// recorded loser (spec.md §4.4 "Shake").
func (t *Tree) replayGames(pos int) {
	winningValue := t.nodes[pos].value
	winningIndex := t.nodes[pos].index
	for n := pos / 2; n != 0; n = n / 2 {
		node := &t.nodes[n]
		if t.lessValue(node.index, node.value, winningIndex, winningValue) {
			node.index, winningIndex = winningIndex, node.index
			node.value, winningValue = winningValue, node.value
		}
	}
	t.nodes[0].index = winningIndex
	t.nodes[0].value = winningValue
}

// lessValue is less() generalized over already-resolved (index,
// value) pairs rather than node positions, needed while replaying
// since the "new winner" doesn't live at a fixed node position yet.
func (t *Tree) lessValue(ai int, av *proxy.Proxy, bi int, bv *proxy.Proxy) bool {
	if ai == -1 {
		return false
	}
	if bi == -1 {
		return true
	}
	return av.Compare(bv) < 0
}

// Shake drains one proxy from the tournament: it returns the current
// overall winner, refills that winner's leaf from its source, and
// replays the tree up to the root. Returns ok=false once every leaf
// has reported end-of-data for this phase (spec.md §4.4 "Run
// boundaries").
func (t *Tree) Shake(phase int64) (*proxy.Proxy, bool, error) {
	if !t.primed || phase != t.phase {
		return nil, false, fmt.Errorf("%w: shake called for phase %d without a matching Prime", ErrTournamentInvariant, phase)
	}
	winnerIdx := t.nodes[0].index
	if winnerIdx == -1 {
		return nil, false, nil
	}
	winner := t.nodes[winnerIdx].value

	leafPos := winnerIdx - t.m
	if err := t.fill(leafPos); err != nil {
		return nil, false, err
	}
	t.replayGames(winnerIdx)

	return winner, true, nil
}
