package funnelio

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/fedups/funnelsort/proxy"
)

// ErrOutOfOrder is an OutputError: publish observed a key smaller than
// the previously published one, the final-pass self-check from
// spec.md §4.8 ("publish returns false if the published key is
// lexicographically less than the previous").
var ErrOutOfOrder = errors.New("funnelio: output key out of order")

// Sink writes one record's final bytes to the destination. Concrete
// framing (fixed-width, CSV, newline) is an external collaborator
// (spec.md §1); OutputStage only depends on this interface.
type Sink interface {
	WriteRecord(payload []byte) error
	Flush() error
}

// OutputStage is the publish/open/close capability set (spec.md §4.8).
type OutputStage interface {
	Open() error
	// Publish writes one proxy's record. The returned bool is false
	// when the ordering self-check fails; callers should treat that as
	// fatal (OutputError, spec.md §7).
	Publish(p *proxy.Proxy) (bool, error)
	// PublishAggregate writes the reduced value of an aggregate.Reducer
	// group in place of p's original payload, keyed by p (spec.md §4.8
	// "aggregate reformatting"). Same ordering self-check as Publish.
	PublishAggregate(p *proxy.Proxy, value float64) (bool, error)
	Close() error
}

// BaseOutput implements the publish ordering self-check and delegates
// the actual write to a Sink. Grounded on
// original_source/.../publisher/VariableLengthFilePublisher.java's
// publish-and-flush shape.
type BaseOutput struct {
	Sink Sink

	lastKey    []byte
	hasLastKey bool
	published  int64
}

// Open is a no-op placeholder; concrete Sinks own their own file
// handles and are opened before being handed to BaseOutput.
func (o *BaseOutput) Open() error { return nil }

// Publish writes p's payload through the Sink, after checking that
// p's key is not lexicographically less than the last published key.
func (o *BaseOutput) Publish(p *proxy.Proxy) (bool, error) {
	return o.publish(p, p.Payload)
}

// PublishAggregate writes value's formatted text in place of p's
// payload, applying the same ordering self-check as Publish. This is
// the record funnelsort emits for an aggregate.Group: one reduced
// value per key-equality run instead of the group's raw member bytes.
func (o *BaseOutput) PublishAggregate(p *proxy.Proxy, value float64) (bool, error) {
	return o.publish(p, []byte(strconv.FormatFloat(value, 'f', -1, 64)))
}

func (o *BaseOutput) publish(p *proxy.Proxy, payload []byte) (bool, error) {
	key := p.KeyBuf[:p.KeyLen]
	if o.hasLastKey && bytes.Compare(key, o.lastKey) < 0 {
		return false, fmt.Errorf("%w: record %d", ErrOutOfOrder, p.Ordinal)
	}

	if err := o.Sink.WriteRecord(payload); err != nil {
		return false, fmt.Errorf("funnelio: writing record: %w", err)
	}

	if cap(o.lastKey) < len(key) {
		o.lastKey = make([]byte, len(key))
	}
	o.lastKey = o.lastKey[:len(key)]
	copy(o.lastKey, key)
	o.hasLastKey = true
	o.published++
	return true, nil
}

// Published returns the number of records successfully published.
func (o *BaseOutput) Published() int64 { return o.published }

// Close flushes the Sink.
func (o *BaseOutput) Close() error { return o.Sink.Flush() }
