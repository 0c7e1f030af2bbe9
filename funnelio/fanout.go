package funnelio

import (
	"sync"

	"github.com/fedups/funnelsort/proxy"
	"github.com/fedups/funnelsort/tournament"
)

// Fanout distributes a single Stage's records across a tournament's
// leaf row: during a phase, each leaf handle serves at most one pull
// from the shared Stage, then reports end-of-data until the next
// phase (spec.md §4.4 "prime the leaf row: one pull per leaf"). This
// is what lets a single InputStage feed an M-leaf tournament while
// keeping each emitted run bounded at M records, as opposed to
// replacement selection, which this phase/run model explicitly is not
// (spec.md §4.4 "Phase discipline").
type Fanout struct {
	mu    sync.Mutex
	stage Stage
}

// NewFanout wraps stage for distribution across tournament leaves;
// Leaves hands out the per-leaf handles.
func NewFanout(stage Stage) *Fanout {
	return &Fanout{stage: stage}
}

// Leaves returns leafCount independent tournament.Source handles, each
// drawing from the same underlying Stage.
func (f *Fanout) Leaves(leafCount int) []tournament.Source {
	leaves := make([]tournament.Source, leafCount)
	for i := range leaves {
		leaves[i] = &fanoutLeaf{fanout: f}
	}
	return leaves
}

type fanoutLeaf struct {
	fanout      *Fanout
	servedPhase int64
	hasServed   bool
	drained     bool
}

func (l *fanoutLeaf) Next(phase int64) (*proxy.Proxy, bool, error) {
	if l.drained {
		return nil, false, nil
	}
	if l.hasServed && l.servedPhase == phase {
		return nil, false, nil
	}

	l.fanout.mu.Lock()
	p, ok, err := l.fanout.stage.Next()
	l.fanout.mu.Unlock()

	l.hasServed = true
	l.servedPhase = phase
	if err != nil {
		return nil, false, err
	}
	if !ok {
		l.drained = true
		return nil, false, nil
	}
	return p, true, nil
}
