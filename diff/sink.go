package diff

import (
	"fmt"

	"github.com/xldiff/xldiff/pool"
)

// Sink receives the op stream of one diff run. Begin must be called before
// the first Emit and is idempotent; every string referenced by any emitted
// op must be interned before Begin, because the header snapshots the pool.
// Finish flushes buffered output.
type Sink interface {
	Begin(p *pool.Pool) error
	Emit(op Op) error
	Finish() error
}

// SinkError wraps an I/O failure reported by a sink. The orchestrator
// stops emitting and surfaces it to the caller.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("diff sink: %v", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// CallbackSink adapts a plain function into a Sink. Useful for consumers
// that want ops pushed directly without serialization.
type CallbackSink struct {
	OnBegin func(p *pool.Pool) error
	OnEmit  func(op Op) error
	OnEnd   func() error
}

func (s *CallbackSink) Begin(p *pool.Pool) error {
	if s.OnBegin == nil {
		return nil
	}
	return s.OnBegin(p)
}

func (s *CallbackSink) Emit(op Op) error {
	if s.OnEmit == nil {
		return nil
	}
	return s.OnEmit(op)
}

func (s *CallbackSink) Finish() error {
	if s.OnEnd == nil {
		return nil
	}
	return s.OnEnd()
}

// collectorSink buffers ops in memory; the non-streaming entry points use
// it to build a Report.
type collectorSink struct {
	ops []Op
}

func (s *collectorSink) Begin(*pool.Pool) error { return nil }

func (s *collectorSink) Emit(op Op) error {
	s.ops = append(s.ops, op)
	return nil
}

func (s *collectorSink) Finish() error { return nil }
