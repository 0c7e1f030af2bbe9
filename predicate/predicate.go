// Package predicate defines the evaluation capability used by WHERE,
// STOP, and format equations. The expression engine itself is an
// external collaborator (spec.md §1); this package only fixes the
// contract and the asymmetric Null-handling rule from spec.md §9.
package predicate

import (
	"errors"
	"fmt"
)

// ErrNotBoolean is a PredicateError: the equation evaluated to a
// non-Boolean, non-Null result.
var ErrNotBoolean = errors.New("predicate: equation did not return a boolean")

// Context is the evaluation environment exposed to an equation:
// column values, the record number, and any other bound variables the
// external expression engine resolves by name.
type Context interface {
	RecordNumber() int64
	Column(name string) (any, bool)
}

// Evaluator evaluates a single compiled equation against a Context.
type Evaluator interface {
	Evaluate(ctx Context) (value bool, isNull bool, err error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx Context) (bool, bool, error)

func (f EvaluatorFunc) Evaluate(ctx Context) (bool, bool, error) { return f(ctx) }

// Compiler parses an equation source string into an Evaluator. The
// concrete implementation (algebra/expression engine) is an external
// collaborator; funnelsort only depends on this interface.
type Compiler interface {
	Compile(source string) (Evaluator, error)
}

// WhereIsTrue evaluates every WHERE equation; spec.md §9: a Null
// result from WHERE is treated as false (not selected). All equations
// must be true for the row to be selected.
func WhereIsTrue(ctx Context, equations []Evaluator) (bool, error) {
	for _, eq := range equations {
		v, isNull, err := eq.Evaluate(ctx)
		if err != nil {
			return false, err
		}
		if isNull || !v {
			return false, nil
		}
	}
	return true, nil
}

// StopIsTrue evaluates every STOP equation; spec.md §9: a Null result
// from STOP is treated as false (do not stop). All equations must be
// true for processing to terminate; with no STOP equations it reports
// false.
func StopIsTrue(ctx Context, equations []Evaluator) (bool, error) {
	if len(equations) == 0 {
		return false, nil
	}
	for _, eq := range equations {
		v, isNull, err := eq.Evaluate(ctx)
		if err != nil {
			return false, err
		}
		if isNull || !v {
			return false, nil
		}
	}
	return true, nil
}

// Error wraps ErrNotBoolean (or a compiler failure) with the equation
// source for diagnostics.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("predicate %q: %v", e.Source, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
