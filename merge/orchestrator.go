// Package merge drives funnelsort's pass/phase loop: an initial sort
// pass over the InputStage producing one run per tournament phase,
// followed by smallest-K merge passes over segment runs until the
// remaining runs fit one tournament, whose final merge streams through
// DuplicateFilter (and, optionally, aggregate.Reducer) into the
// OutputStage (spec.md §4.6).
package merge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fedups/funnelsort/aggregate"
	"github.com/fedups/funnelsort/dedupe"
	"github.com/fedups/funnelsort/funnelio"
	"github.com/fedups/funnelsort/proxy"
	"github.com/fedups/funnelsort/segment"
	"github.com/fedups/funnelsort/tournament"
)

// Orchestrator owns the run store and manifest for one funnelsort
// invocation.
type Orchestrator struct {
	Store    segment.Store
	Manifest *segment.Manifest
	Pool     *proxy.Pool
	Depth    int // tournament depth; M = 1<<(Depth-1) leaf capacity

	phaseSeq int64
}

func (o *Orchestrator) nextPhase() int64 {
	o.phaseSeq++
	return o.phaseSeq
}

// leafCapacity returns M, the tree's leaf count.
func (o *Orchestrator) leafCapacity() int { return 1 << (o.Depth - 1) }

// SortPhase drains stage in batches of at most M records, writing each
// batch as one sorted run via a single tournament re-primed each phase
// (spec.md §4.4 "Run boundaries"). Every produced run is registered in
// the Manifest. stage must acquire its proxies from the same Pool as
// o.Pool: SortPhase releases each proxy back to o.Pool once its record
// is written, so a process-wide shared pool sees every acquire/release
// pair (spec.md §8 invariant 6).
func (o *Orchestrator) SortPhase(stage funnelio.Stage) error {
	m := o.leafCapacity()
	fanout := funnelio.NewFanout(stage)
	leaves := fanout.Leaves(m)

	tree, err := tournament.New(o.Depth, leaves)
	if err != nil {
		return fmt.Errorf("merge: building sort tournament: %w", err)
	}

	for {
		phase := o.nextPhase()
		if err := tree.Prime(phase); err != nil {
			return fmt.Errorf("merge: priming sort phase: %w", err)
		}

		runID, writer, err := o.Store.NewWriter()
		if err != nil {
			return fmt.Errorf("merge: opening run writer: %w", err)
		}

		var count int64
		for {
			p, ok, err := tree.Shake(phase)
			if err != nil {
				return fmt.Errorf("merge: draining sort phase: %w", err)
			}
			if !ok {
				break
			}
			err = writer.Write(segment.Record{Key: append([]byte(nil), p.KeyBuf[:p.KeyLen]...), Ordinal: p.Ordinal, Payload: p.Payload})
			o.Pool.Release(p)
			if err != nil {
				return fmt.Errorf("merge: writing run record: %w", err)
			}
			count++
		}

		if _, err := writer.Close(); err != nil {
			return fmt.Errorf("merge: sealing run: %w", err)
		}

		if count == 0 {
			// Nothing was read this phase: input is exhausted and this
			// run is empty; discard it rather than registering a
			// zero-record run.
			return o.Store.Remove(runID)
		}
		o.Manifest.Add(runID, count)

		if count < int64(m) {
			// A short phase means the stage has no more input.
			return nil
		}
	}
}

// mergeGroup merges the given run IDs through one tournament instance,
// calling emit for every proxy it produces in order. It does not
// register or remove anything in the Manifest; callers decide whether
// the result becomes a new run or streams straight to output.
func (o *Orchestrator) mergeGroup(ids []segment.RunID, emit func(*proxy.Proxy) error) error {
	readers := make([]segment.Reader, len(ids))
	sources := make([]tournament.Source, len(ids))
	for i, id := range ids {
		r, err := o.Store.OpenReader(id)
		if err != nil {
			return fmt.Errorf("merge: opening run %d for merge: %w", id, err)
		}
		readers[i] = r
		sources[i] = &segment.SourceAdapter{Reader: r, Pool: o.Pool}
	}
	defer o.closeReaders(readers)

	tree, err := tournament.New(o.Depth, sources)
	if err != nil {
		return fmt.Errorf("merge: building merge tournament: %w", err)
	}

	phase := o.nextPhase()
	if err := tree.Prime(phase); err != nil {
		return fmt.Errorf("merge: priming merge pass: %w", err)
	}

	for {
		p, ok, err := tree.Shake(phase)
		if err != nil {
			return fmt.Errorf("merge: draining merge pass: %w", err)
		}
		if !ok {
			return nil
		}
		if err := emit(p); err != nil {
			return err
		}
	}
}

// closeReaders tears down K segment readers concurrently. This runs
// strictly after the merge pass's single-threaded producer loop above
// has finished, so the concurrency here does not violate spec.md §5's
// single-producer invariant.
func (o *Orchestrator) closeReaders(readers []segment.Reader) {
	g := new(errgroup.Group)
	for _, r := range readers {
		r := r
		g.Go(func() error { return r.Close() })
	}
	_ = g.Wait()
}

// intermediatePass merges the K smallest runs into one new run,
// replacing them in the Manifest.
func (o *Orchestrator) intermediatePass(ids []segment.RunID) error {
	runID, writer, err := o.Store.NewWriter()
	if err != nil {
		return fmt.Errorf("merge: opening intermediate run writer: %w", err)
	}

	var count int64
	err = o.mergeGroup(ids, func(p *proxy.Proxy) error {
		count++
		werr := writer.Write(segment.Record{Key: append([]byte(nil), p.KeyBuf[:p.KeyLen]...), Ordinal: p.Ordinal, Payload: p.Payload})
		o.Pool.Release(p)
		return werr
	})
	if err != nil {
		return err
	}

	if _, err := writer.Close(); err != nil {
		return fmt.Errorf("merge: sealing intermediate run: %w", err)
	}

	for _, id := range ids {
		o.Manifest.Remove(id)
		if err := o.Store.Remove(id); err != nil {
			return fmt.Errorf("merge: removing consumed run %d: %w", id, err)
		}
	}
	o.Manifest.Add(runID, count)
	return nil
}

// Pipeline is the final pass's consumer chain: duplicate filtering,
// optional aggregation, and the output sink. Pool must be the same
// pool every proxy in the pass was acquired from, so every record the
// pipeline disposes of (filtered by dedupe, or published) is released
// back to it.
type Pipeline struct {
	Dedupe  *dedupe.Filter
	Reducer *aggregate.Reducer // nil when no aggregation was requested
	Output  funnelio.OutputStage
	Pool    *proxy.Pool
}

func (p *Pipeline) consume(rec *proxy.Proxy) error {
	if !p.Dedupe.Admit(rec) {
		p.Pool.Release(rec)
		return nil
	}
	if p.Reducer == nil {
		ok, err := p.Output.Publish(rec)
		p.Pool.Release(rec)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("merge: output rejected publish as out of order")
		}
		return nil
	}

	completed, hadCompleted, err := p.Reducer.Add(rec)
	if err != nil {
		return err
	}
	if hadCompleted {
		return p.publishGroup(completed)
	}
	return nil
}

func (p *Pipeline) publishGroup(g aggregate.Group) error {
	ok, err := p.Output.PublishAggregate(g.Representative, g.Value)
	p.Pool.Release(g.Representative)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("merge: output rejected aggregate group as out of order")
	}
	return nil
}

// Run drives the complete pipeline for one funnelsort invocation:
// sort stage into runs, repeated smallest-K merge passes, and a final
// pass through pipeline into output.
func (o *Orchestrator) Run(ctx context.Context, stage funnelio.Stage, pipeline *Pipeline) error {
	if err := o.SortPhase(stage); err != nil {
		return err
	}

	if err := pipeline.Output.Open(); err != nil {
		return fmt.Errorf("merge: opening output: %w", err)
	}

	m := o.leafCapacity()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n := int64(o.Manifest.Len())
		if n == 0 {
			break
		}
		k := PlanK(n, m)
		ids := o.Manifest.Smallest(k)
		if int64(k) == n {
			if err := o.mergeGroup(ids, pipeline.consume); err != nil {
				return err
			}
			for _, id := range ids {
				o.Manifest.Remove(id)
				if err := o.Store.Remove(id); err != nil {
					return fmt.Errorf("merge: removing final-pass run %d: %w", id, err)
				}
			}
			break
		}
		if err := o.intermediatePass(ids); err != nil {
			return err
		}
	}

	if pipeline.Reducer != nil {
		if final, ok := pipeline.Reducer.Flush(); ok {
			if err := pipeline.publishGroup(final); err != nil {
				return err
			}
		}
	}

	if err := pipeline.Output.Close(); err != nil {
		return fmt.Errorf("merge: closing output: %w", err)
	}
	return nil
}
