// Package aggregate implements the Count/Sum/Min/Max/Avg reducers
// OutputStage applies to the final pass when funnelsort is invoked as
// a summarizing copy rather than a plain sort (spec.md §1 lists
// aggregation as an external collaborator interface; this package
// supplies concrete reducers for the five named flags as ambient
// enrichment of that consumer, not a new core responsibility).
package aggregate

import (
	"bytes"
	"fmt"

	"github.com/fedups/funnelsort/proxy"
)

// Func names the aggregate operation requested on the CLI surface
// (spec.md §6).
type Func int

const (
	Count Func = iota
	Sum
	Min
	Max
	Avg
)

// Accumulator mirrors core/aggregation/functions.go's
// CreateAccumulator/AddInput/GetResult shape (there is no
// MergeAccumulators step), specialized to float64 since every named aggregate reduces to a
// single numeric column.
type Accumulator interface {
	CreateAccumulator() float64
	AddInput(acc float64, p *proxy.Proxy, value float64) float64
	GetResult(acc float64, count int64) float64
}

type countAcc struct{}

func (countAcc) CreateAccumulator() float64 { return 0 }
func (countAcc) AddInput(acc float64, _ *proxy.Proxy, _ float64) float64 {
	return acc + 1
}
func (countAcc) GetResult(acc float64, _ int64) float64 { return acc }

type sumAcc struct{}

func (sumAcc) CreateAccumulator() float64 { return 0 }
func (sumAcc) AddInput(acc float64, _ *proxy.Proxy, value float64) float64 {
	return acc + value
}
func (sumAcc) GetResult(acc float64, _ int64) float64 { return acc }

type minAcc struct{ seen bool }

func (a *minAcc) CreateAccumulator() float64 { a.seen = false; return 0 }
func (a *minAcc) AddInput(acc float64, _ *proxy.Proxy, value float64) float64 {
	if !a.seen || value < acc {
		a.seen = true
		return value
	}
	return acc
}
func (a *minAcc) GetResult(acc float64, _ int64) float64 { return acc }

type maxAcc struct{ seen bool }

func (a *maxAcc) CreateAccumulator() float64 { a.seen = false; return 0 }
func (a *maxAcc) AddInput(acc float64, _ *proxy.Proxy, value float64) float64 {
	if !a.seen || value > acc {
		a.seen = true
		return value
	}
	return acc
}
func (a *maxAcc) GetResult(acc float64, _ int64) float64 { return acc }

type avgAcc struct{}

func (avgAcc) CreateAccumulator() float64 { return 0 }
func (avgAcc) AddInput(acc float64, _ *proxy.Proxy, value float64) float64 {
	return acc + value
}
func (avgAcc) GetResult(acc float64, count int64) float64 {
	if count == 0 {
		return 0
	}
	return acc / float64(count)
}

// New builds the Accumulator for a named Func.
func New(f Func) (Accumulator, error) {
	switch f {
	case Count:
		return countAcc{}, nil
	case Sum:
		return sumAcc{}, nil
	case Min:
		return &minAcc{}, nil
	case Max:
		return &maxAcc{}, nil
	case Avg:
		return avgAcc{}, nil
	default:
		return nil, fmt.Errorf("aggregate: unknown function %d", f)
	}
}

// ValueFunc extracts the numeric column an aggregate reduces over from
// a proxy's payload; the concrete extraction (parse a CSV field, read
// a fixed-width numeric column) is supplied by the caller since
// payload framing is out of scope here.
type ValueFunc func(p *proxy.Proxy) (float64, error)

// Reducer groups a stream of key-ordered proxies into runs of equal
// keys (the same grouping boundary dedupe.Filter uses) and folds each
// run through an Accumulator, yielding one reduced value per group.
type Reducer struct {
	acc      Accumulator
	value    ValueFunc
	havePrev bool
	prevKey  []byte
	groupAcc float64
	groupN   int64
	groupRep *proxy.Proxy

	// Release, if set, is called on every proxy folded into a group
	// except the group's representative (the one returned in Group),
	// so callers can return non-representative proxies to their pool
	// immediately instead of holding them until Flush.
	Release func(*proxy.Proxy)
}

// NewReducer creates a Reducer for f, extracting each record's numeric
// value via value.
func NewReducer(f Func, value ValueFunc) (*Reducer, error) {
	acc, err := New(f)
	if err != nil {
		return nil, err
	}
	return &Reducer{acc: acc, value: value}, nil
}

// Group is one completed run: its representative proxy (the group's
// first member, whose key and payload framing the caller reuses for
// output) and the reduced value.
type Group struct {
	Representative *proxy.Proxy
	Value          float64
}

// Add folds p into the current group, returning a completed Group
// when p starts a new key run (the previous group is what's returned;
// p itself becomes the start of the next group). ok is false when no
// group has completed yet.
func (r *Reducer) Add(p *proxy.Proxy) (Group, bool, error) {
	key := p.KeyBuf[:p.KeyLen]
	v, err := r.value(p)
	if err != nil {
		return Group{}, false, fmt.Errorf("aggregate: extracting value: %w", err)
	}

	if !r.havePrev {
		r.startGroup(p, key)
		r.groupAcc = r.acc.AddInput(r.groupAcc, p, v)
		r.groupN++
		return Group{}, false, nil
	}

	if bytes.Equal(key, r.prevKey) {
		r.groupAcc = r.acc.AddInput(r.groupAcc, p, v)
		r.groupN++
		if r.Release != nil {
			r.Release(p)
		}
		return Group{}, false, nil
	}

	completed := Group{Representative: r.groupRep, Value: r.acc.GetResult(r.groupAcc, r.groupN)}
	r.startGroup(p, key)
	r.groupAcc = r.acc.AddInput(r.groupAcc, p, v)
	r.groupN++
	return completed, true, nil
}

// Flush returns the final in-progress group, if any records were ever
// added.
func (r *Reducer) Flush() (Group, bool) {
	if !r.havePrev {
		return Group{}, false
	}
	return Group{Representative: r.groupRep, Value: r.acc.GetResult(r.groupAcc, r.groupN)}, true
}

func (r *Reducer) startGroup(p *proxy.Proxy, key []byte) {
	r.groupRep = p
	r.groupAcc = r.acc.CreateAccumulator()
	r.groupN = 0
	if cap(r.prevKey) < len(key) {
		r.prevKey = make([]byte, len(key))
	}
	r.prevKey = r.prevKey[:len(key)]
	copy(r.prevKey, key)
	r.havePrev = true
}

