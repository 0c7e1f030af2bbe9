package funnel_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedups/funnelsort/aggregate"
	"github.com/fedups/funnelsort/config"
	"github.com/fedups/funnelsort/dedupe"
	"github.com/fedups/funnelsort/funnel"
	"github.com/fedups/funnelsort/funnelio"
	"github.com/fedups/funnelsort/keycodec"
	"github.com/fedups/funnelsort/predicate"
	"github.com/fedups/funnelsort/proxy"
)

type recordCtx struct {
	data  []byte
	recNo int64
}

func (c recordCtx) RecordNumber() int64 { return c.recNo }
func (c recordCtx) Column(string) (any, bool) {
	return nil, false
}

type stubCompiler struct{}

func (stubCompiler) Compile(source string) (predicate.Evaluator, error) {
	return predicate.EvaluatorFunc(func(ctx predicate.Context) (bool, bool, error) {
		return source != "false", false, nil
	}), nil
}

type bufSink struct {
	buf bytes.Buffer
}

func (s *bufSink) WriteRecord(payload []byte) error {
	s.buf.Write(payload)
	s.buf.WriteByte('\n')
	return nil
}
func (s *bufSink) Flush() error { return nil }

func newSortedConfig() *config.Config {
	c := config.Default()
	c.Power = 2
	c.Columns = []config.ColumnDef{{Name: "value", Type: keycodec.KindString, Offset: 0, Length: 1}}
	c.OrderBy = []config.OrderKey{{ColumnName: "value", Direction: keycodec.ASC}}
	return &c
}

func TestRunSortsRecordsToSink(t *testing.T) {
	cfg := newSortedConfig()
	sink := &bufSink{}

	raw := &funnelio.SliceSource{Records: [][]byte{[]byte("f"), []byte("a"), []byte("c"), []byte("b"), []byte("e")}}

	err := funnel.Run(context.Background(), cfg, funnel.Dependencies{
		Raw:  raw,
		Sink: sink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
	})
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\ne\nf\n", sink.buf.String())
}

func TestRunAppliesWherePredicate(t *testing.T) {
	cfg := newSortedConfig()
	cfg.Where = []string{"true"}
	sink := &bufSink{}

	raw := &funnelio.SliceSource{Records: [][]byte{[]byte("c"), []byte("a"), []byte("b")}}

	err := funnel.Run(context.Background(), cfg, funnel.Dependencies{
		Raw:  raw,
		Sink: sink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
	})
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\n", sink.buf.String())
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Replace = true
	cfg.OutputFile = "out.dat"

	err := funnel.Run(context.Background(), &cfg, funnel.Dependencies{})
	require.Error(t, err)
}

func TestRunCopyOriginalPreservesInputOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Power = 2
	cfg.Copy = config.CopyOriginal
	sink := &bufSink{}

	records := [][]byte{[]byte("z"), []byte("a"), []byte("m")}
	raw := &funnelio.SliceSource{Records: records}

	err := funnel.Run(context.Background(), &cfg, funnel.Dependencies{
		Raw:  raw,
		Sink: sink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
	})
	require.NoError(t, err)
	require.Equal(t, "z\na\nm\n", sink.buf.String())
}

func TestRunDuplicateReverseEmitsDescendingKeyOrder(t *testing.T) {
	cfg := newSortedConfig()
	cfg.Duplicate = dedupe.Reverse
	sink := &bufSink{}

	raw := &funnelio.SliceSource{Records: [][]byte{[]byte("c"), []byte("a"), []byte("b")}}

	err := funnel.Run(context.Background(), cfg, funnel.Dependencies{
		Raw:  raw,
		Sink: sink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
	})
	require.NoError(t, err)
	require.Equal(t, "c\nb\na\n", sink.buf.String())
}

func TestRunDuplicateFirstOnlyDiffersFromReverseOnDuplicateKeys(t *testing.T) {
	records := [][]byte{[]byte("b"), []byte("a"), []byte("b"), []byte("a")}

	firstOnly := newSortedConfig()
	firstOnly.Duplicate = dedupe.FirstOnly
	firstSink := &bufSink{}
	err := funnel.Run(context.Background(), firstOnly, funnel.Dependencies{
		Raw:  &funnelio.SliceSource{Records: records},
		Sink: firstSink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
	})
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", firstSink.buf.String())

	reverse := newSortedConfig()
	reverse.Duplicate = dedupe.Reverse
	reverseSink := &bufSink{}
	err = funnel.Run(context.Background(), reverse, funnel.Dependencies{
		Raw:  &funnelio.SliceSource{Records: records},
		Sink: reverseSink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
	})
	require.NoError(t, err)
	require.Equal(t, "b\na\n", reverseSink.buf.String())
	require.NotEqual(t, firstSink.buf.String(), reverseSink.buf.String())
}

func TestRunAggregateSumEmitsReducedValueNotRawRecord(t *testing.T) {
	cfg := newSortedConfig()
	cfg.Aggregates = []config.AggregateSpec{{Name: "sum", Func: aggregate.Sum, ColumnName: "value"}}
	sink := &bufSink{}

	// Each record is "<key><amount>"; groups share the leading key byte.
	records := [][]byte{[]byte("a1"), []byte("a2"), []byte("b3"), []byte("b4")}
	raw := &funnelio.SliceSource{Records: records}

	err := funnel.Run(context.Background(), cfg, funnel.Dependencies{
		Raw:  raw,
		Sink: sink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
		Value: func(p *proxy.Proxy) (float64, error) {
			return float64(p.Payload[1] - '0'), nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "3\n7\n", sink.buf.String())
}

func TestRunHandlesLargerInputAcrossMergePasses(t *testing.T) {
	cfg := newSortedConfig()
	sink := &bufSink{}

	values := []string{"g", "c", "a", "f", "e", "b", "d"}
	records := make([][]byte, len(values))
	for i, v := range values {
		records[i] = []byte(v)
	}
	raw := &funnelio.SliceSource{Records: records}

	err := funnel.Run(context.Background(), cfg, funnel.Dependencies{
		Raw:  raw,
		Sink: sink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return recordCtx{data: data, recNo: recNo}
		},
		Compiler: stubCompiler{},
	})
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\nd\ne\nf\ng\n", sink.buf.String())
}
