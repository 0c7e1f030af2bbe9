// Package config implements Config, the FunnelContext-equivalent
// option set this sort/merge/copy utility runs from, plus Validate,
// which reproduces original_source's FunnelContext construction-time
// rejections (spec.md §6's recognized options, §7's error taxonomy).
package config

import "fmt"

// ConfigError wraps an invalid or mutually exclusive option combination
// discovered by Validate, before any I/O is attempted.
type ConfigError struct {
	Option string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Option, e.Err)
}
func (e *ConfigError) Unwrap() error { return e.Err }

// InputError wraps a failure reading or interpreting a record from an
// InputStage (spec.md §7): a short record, an unparseable key field, a
// WHERE/STOP equation failure.
type InputError struct {
	RecordNo int64
	Err      error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input: record %d: %v", e.RecordNo, e.Err)
}
func (e *InputError) Unwrap() error { return e.Err }

// OutputError wraps a failure writing or ordering a record on the
// final pass (spec.md §4.8's publish self-check, a write failure, a
// failed in-place rename).
type OutputError struct {
	Err error
}

func (e *OutputError) Error() string { return fmt.Sprintf("output: %v", e.Err) }
func (e *OutputError) Unwrap() error { return e.Err }

// PredicateError wraps a WHERE/STOP equation that failed to compile or
// evaluate to a boolean (spec.md §7, predicate.Error's ErrNotBoolean).
type PredicateError struct {
	Source string
	Err    error
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("predicate %q: %v", e.Source, e.Err)
}
func (e *PredicateError) Unwrap() error { return e.Err }
