// Package funnel ties KeyCodec, InputStage, the tournament, the
// segment store, MergeOrchestrator, DuplicateFilter, and OutputStage
// together into the single entry point one funnelsort invocation
// drives end to end. Grounded on processor.go's NewProcessor/Handle
// shape: validate options, assemble the collaborating pieces, run.
package funnel

import (
	"context"
	"fmt"

	"github.com/fedups/funnelsort/aggregate"
	"github.com/fedups/funnelsort/config"
	"github.com/fedups/funnelsort/dedupe"
	"github.com/fedups/funnelsort/funnelio"
	"github.com/fedups/funnelsort/keycodec"
	"github.com/fedups/funnelsort/logging"
	"github.com/fedups/funnelsort/merge"
	"github.com/fedups/funnelsort/metrics"
	"github.com/fedups/funnelsort/predicate"
	"github.com/fedups/funnelsort/proxy"
	"github.com/fedups/funnelsort/segment"
)

// Dependencies are the external collaborators spec.md §1 calls out as
// interfaces only: concrete file I/O, CSV/fixed-width framing, and the
// WHERE/STOP equation compiler are supplied by the caller (cmd/funnelsort
// or a test), not implemented in this module.
type Dependencies struct {
	Raw           funnelio.RawSource
	Header        funnelio.HeaderExtractor
	Sink          funnelio.Sink
	FieldSplitter func(data []byte) [][]byte
	EvalCtxMaker  func(data []byte, recordNumber int64) predicate.Context
	Compiler      predicate.Compiler
	Value         aggregate.ValueFunc

	// Store backs the segment runs. Nil defaults to an in-memory store;
	// cfg.DiskWork selects a *segment.DiskStore instead when Store is
	// left nil.
	Store segment.Store
	// WorkDir is the directory passed to segment.NewDiskStore when
	// cfg.DiskWork is set and Store is nil.
	WorkDir string

	Logger  *logging.Logger
	Metrics *metrics.Registry
}

// Run validates cfg, assembles the InputStage/tournament/segment/merge
// pipeline it describes, and drives it to completion.
func Run(ctx context.Context, cfg *config.Config, deps Dependencies) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	depth, err := cfg.Depth()
	if err != nil {
		return err
	}

	negateOrdinal := false
	var parts []keycodec.Part
	if len(cfg.OrderBy) > 0 {
		parts, err = config.DeriveKeyParts(cfg)
	} else {
		parts, negateOrdinal, err = config.DeriveCopyKeys(cfg)
	}
	if err != nil {
		return err
	}

	// LastOnly and Reverse both rely on the tournament's natural
	// ascending ordinal tie-break surfacing the run's last input record
	// first; Reverse additionally inverts each key part's direction bits
	// at encode time so the whole output emits in reverse key order
	// (spec.md §4.7). This is orthogonal to CopyMode's no-keys Reverse.
	switch cfg.Duplicate {
	case dedupe.LastOnly:
		negateOrdinal = true
	case dedupe.Reverse:
		for i := range parts {
			parts[i].Direction = parts[i].Direction.Reversed()
		}
		negateOrdinal = true
	}

	codec := keycodec.New(parts, config.MaxKeyBytes)

	where, err := compileAll(deps.Compiler, cfg.Where)
	if err != nil {
		return err
	}
	stop, err := compileAll(deps.Compiler, cfg.StopWhen)
	if err != nil {
		return err
	}

	m := 1 << (depth - 1)
	pool := proxy.NewPool(config.MaxKeyBytes + 1)

	stage := &funnelio.BaseStage{
		Raw:           deps.Raw,
		Codec:         codec,
		Header:        deps.Header,
		HeaderRows:    cfg.HeaderInRows,
		Pool:          pool,
		Where:         where,
		Stop:          stop,
		EvalCtxMaker:  deps.EvalCtxMaker,
		FieldSplitter: deps.FieldSplitter,
		NegateOrdinal: negateOrdinal,
	}

	store := deps.Store
	if store == nil {
		if cfg.DiskWork {
			store, err = segment.NewDiskStore(deps.WorkDir, false)
			if err != nil {
				return fmt.Errorf("funnel: opening disk work store: %w", err)
			}
		} else {
			store = segment.NewMemoryStore()
		}
	}

	orch := &merge.Orchestrator{
		Store:    store,
		Manifest: segment.NewManifest(),
		Pool:     pool,
		Depth:    depth,
	}

	var reducer *aggregate.Reducer
	if len(cfg.Aggregates) > 0 {
		reducer, err = aggregate.NewReducer(cfg.Aggregates[0].Func, deps.Value)
		if err != nil {
			return err
		}
		reducer.Release = pool.Release
	}

	pipeline := &merge.Pipeline{
		Dedupe:  dedupe.New(cfg.Duplicate),
		Reducer: reducer,
		Output:  &funnelio.BaseOutput{Sink: deps.Sink},
		Pool:    pool,
	}

	if deps.Logger != nil {
		deps.Logger.Log(ctx, logging.Info, "run_start", "funnelsort starting", map[string]any{
			"depth": depth,
			"m":     m,
		})
	}

	if err := orch.Run(ctx, stage, pipeline); err != nil {
		if deps.Logger != nil {
			deps.Logger.Fatal(ctx, "run_failed", err)
		}
		return err
	}

	if deps.Metrics != nil {
		deps.Metrics.Inc(metrics.RecordsFiltered, float64(stage.FilteredCount()))
		deps.Metrics.Inc(metrics.RecordsShort, float64(stage.ShortRecordCount()))
		deps.Metrics.Inc(metrics.RecordsRead, float64(stage.ContinuousRecordNumber()))
		deps.Metrics.Inc(metrics.Comparisons, float64(proxy.Comparisons()))
	}
	if deps.Logger != nil {
		deps.Logger.Log(ctx, logging.Info, "run_complete", "funnelsort finished", map[string]any{
			"records_read":     stage.ContinuousRecordNumber(),
			"records_filtered": stage.FilteredCount(),
			"records_short":    stage.ShortRecordCount(),
		})
	}
	return nil
}

func compileAll(compiler predicate.Compiler, sources []string) ([]predicate.Evaluator, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	cache, err := predicate.NewCache(compiler, len(sources))
	if err != nil {
		return nil, fmt.Errorf("funnel: building predicate cache: %w", err)
	}
	out := make([]predicate.Evaluator, 0, len(sources))
	for _, src := range sources {
		eq, err := cache.Compile(src)
		if err != nil {
			return nil, err
		}
		out = append(out, eq)
	}
	return out, nil
}
