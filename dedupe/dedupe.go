// Package dedupe implements DuplicateFilter: the four duplicate
// dispositions applied to the final merged proxy stream (spec.md
// §4.7). Equality is byte-equality of the full encoded key, including
// its sentinel and length.
package dedupe

import (
	"bytes"

	"github.com/fedups/funnelsort/proxy"
)

// Disposition selects how a run of equal-keyed records is reduced to
// output.
type Disposition int

const (
	// Original emits every record unchanged.
	Original Disposition = iota
	// FirstOnly emits the record with the smallest positive ordinal
	// among a run of equal keys.
	FirstOnly
	// LastOnly emits the record with the largest ordinal among a run
	// of equal keys. Realized upstream by negating ordinals so the
	// tournament's natural ascending order picks the last record first
	// (spec.md §4.7).
	LastOnly
	// Reverse emits in reverse key order, realized upstream by
	// inverting direction bits at encode time and negating ordinals.
	Reverse
)

// Filter applies disposition to a stream of proxies already merged
// into total key order, emitting one proxy per run of equal keys (or
// every proxy, for Original).
type Filter struct {
	disposition Disposition
	havePrev    bool
	prevKey     []byte
}

// New creates a Filter for the given disposition.
func New(disposition Disposition) *Filter {
	return &Filter{disposition: disposition}
}

// Admit reports whether p should be emitted. For Original every proxy
// is admitted. For FirstOnly/LastOnly/Reverse, only the first proxy of
// each run of equal keys is admitted — correctness of "first/last by
// ordinal" relies entirely on the tournament already having ordered
// ties by ordinal sign, per proxy.Compare's tie-break and the upstream
// ordinal negation spec.md §4.7 describes; Admit itself only collapses
// runs of byte-equal keys to their first member.
func (f *Filter) Admit(p *proxy.Proxy) bool {
	if f.disposition == Original {
		return true
	}

	key := p.KeyBuf[:p.KeyLen]
	if f.havePrev && bytes.Equal(key, f.prevKey) {
		return false
	}

	if cap(f.prevKey) < len(key) {
		f.prevKey = make([]byte, len(key))
	}
	f.prevKey = f.prevKey[:len(key)]
	copy(f.prevKey, key)
	f.havePrev = true
	return true
}

// NegateOrdinal returns ordinal negated, the upstream transform
// LastOnly and Reverse apply at key-extraction time so the tournament
// (which always sorts ascending by ordinal on a key tie) surfaces the
// last record of a run first.
func NegateOrdinal(ordinal int64) int64 { return -ordinal }
