// Package proxy implements RecordProxy: a fixed-shape surrogate for a
// sorted record carrying its encoded key and a locator back to the raw
// bytes. Proxies are pooled and recyclable (spec.md §3, §4.2).
package proxy

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Proxy is the fixed-shape record surrogate. KeyBuf is owned by the
// proxy and reused across Acquire/Release cycles.
type Proxy struct {
	KeyBuf      []byte
	KeyLen      int
	Size        int64
	Position    int64
	SourceIndex int
	Ordinal     int64
	// Payload is the raw record bytes the key was extracted from. It
	// is the in-memory locator target: Position/SourceIndex exist for
	// disk-backed stores that seek rather than carry bytes inline.
	Payload []byte
}

// Set populates the proxy's fields. key is copied into KeyBuf, growing
// it if necessary.
func (p *Proxy) Set(key []byte, size, position int64, sourceIndex int, ordinal int64) {
	if cap(p.KeyBuf) < len(key) {
		p.KeyBuf = make([]byte, len(key))
	}
	p.KeyBuf = p.KeyBuf[:len(key)]
	copy(p.KeyBuf, key)
	p.KeyLen = len(key)
	p.Size = size
	p.Position = position
	p.SourceIndex = sourceIndex
	p.Ordinal = ordinal
}

var comparisons atomic.Int64

// Comparisons returns the running count of Compare calls, used for
// diagnostics (spec.md §4.2).
func Comparisons() int64 { return comparisons.Load() }

// Compare implements the total order required by spec.md §4.2:
//  1. memcmp over min(key_len, other.key_len); nonzero wins.
//  2. Else the shorter key is "less".
//  3. Else tie-break by Ordinal ascending; the sign of Ordinal encodes
//     duplicate disposition (LastOnly/Reverse negate ordinals upstream).
func (p *Proxy) Compare(o *Proxy) int {
	comparisons.Add(1)

	n := p.KeyLen
	if o.KeyLen < n {
		n = o.KeyLen
	}
	if c := bytes.Compare(p.KeyBuf[:n], o.KeyBuf[:n]); c != 0 {
		return c
	}
	if p.KeyLen != o.KeyLen {
		if p.KeyLen < o.KeyLen {
			return -1
		}
		return 1
	}
	switch {
	case p.Ordinal < o.Ordinal:
		return -1
	case p.Ordinal > o.Ordinal:
		return 1
	default:
		return 0
	}
}

// Pool is a free list of Proxy values backed by a sync.Pool: it has no
// fixed size and allocates a new Proxy whenever none is free (spec.md
// §5: "Proxy pool sized to >= 2M"). Grounded on
// other_examples/lanrat-extsort__sort_generic.go's sync.Pool chunk/slice
// pools.
type Pool struct {
	pool     sync.Pool
	acquired atomic.Int64
	released atomic.Int64
}

// NewPool creates a pool. keyCapacityHint pre-sizes each proxy's KeyBuf
// to avoid reallocation on the first Set call.
func NewPool(keyCapacityHint int) *Pool {
	p := &Pool{}
	p.pool.New = func() any {
		return &Proxy{KeyBuf: make([]byte, 0, keyCapacityHint)}
	}
	return p
}

// Acquire returns a proxy from the free list, allocating a new one if
// the pool is empty.
func (p *Pool) Acquire() *Proxy {
	p.acquired.Add(1)
	return p.pool.Get().(*Proxy)
}

// Release returns a proxy to the free list.
func (p *Pool) Release(pr *Proxy) {
	if pr == nil {
		return
	}
	p.released.Add(1)
	pr.KeyLen = 0
	pr.Size = 0
	pr.Position = 0
	pr.SourceIndex = 0
	pr.Ordinal = 0
	pr.Payload = nil
	p.pool.Put(pr)
}

// Live returns the number of proxies currently acquired but not yet
// released (spec.md §8 invariant 6).
func (p *Pool) Live() int64 {
	return p.acquired.Load() - p.released.Load()
}
