package predicate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedups/funnelsort/predicate"
)

type fakeCtx struct{ recNo int64 }

func (f fakeCtx) RecordNumber() int64            { return f.recNo }
func (f fakeCtx) Column(string) (any, bool)      { return nil, false }

func TestWhereNullTreatedAsFalse(t *testing.T) {
	nullEval := predicate.EvaluatorFunc(func(ctx predicate.Context) (bool, bool, error) {
		return false, true, nil
	})
	ok, err := predicate.WhereIsTrue(fakeCtx{}, []predicate.Evaluator{nullEval})
	require.NoError(t, err)
	require.False(t, ok, "WHERE must treat Null as not-selected")
}

func TestStopNullTreatedAsFalse(t *testing.T) {
	nullEval := predicate.EvaluatorFunc(func(ctx predicate.Context) (bool, bool, error) {
		return false, true, nil
	})
	stop, err := predicate.StopIsTrue(fakeCtx{}, []predicate.Evaluator{nullEval})
	require.NoError(t, err)
	require.False(t, stop, "STOP must treat Null as not-stop (continue)")
}

func TestWhereAllMustBeTrue(t *testing.T) {
	trueE := predicate.EvaluatorFunc(func(ctx predicate.Context) (bool, bool, error) { return true, false, nil })
	falseE := predicate.EvaluatorFunc(func(ctx predicate.Context) (bool, bool, error) { return false, false, nil })

	ok, err := predicate.WhereIsTrue(fakeCtx{}, []predicate.Evaluator{trueE, trueE})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = predicate.WhereIsTrue(fakeCtx{}, []predicate.Evaluator{trueE, falseE})
	require.NoError(t, err)
	require.False(t, ok)
}

type fakeCompiler struct{ calls int }

func (c *fakeCompiler) Compile(source string) (predicate.Evaluator, error) {
	c.calls++
	return predicate.EvaluatorFunc(func(predicate.Context) (bool, bool, error) { return true, false, nil }), nil
}

func TestCacheCompilesOnce(t *testing.T) {
	fc := &fakeCompiler{}
	cache, err := predicate.NewCache(fc, 4)
	require.NoError(t, err)

	_, err = cache.Compile("recordnumber%2==0")
	require.NoError(t, err)
	_, err = cache.Compile("recordnumber%2==0")
	require.NoError(t, err)

	require.Equal(t, 1, fc.calls)
}

func TestCacheLayoutTranslatesOnce(t *testing.T) {
	cache, err := predicate.NewCache(&fakeCompiler{}, 4)
	require.NoError(t, err)

	got := cache.Layout("yyyy-MM-dd")
	require.Equal(t, "2006-01-02", got)
	require.Equal(t, got, cache.Layout("yyyy-MM-dd"))
}
