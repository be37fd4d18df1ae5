// Package sink provides diff.Sink implementations for the streaming diff
// protocol: a JSON Lines writer and an in-memory collector.
package sink

import (
	"bufio"
	"io"

	"github.com/goccy/go-json"

	"github.com/xldiff/xldiff/diff"
	"github.com/xldiff/xldiff/pool"
)

// header is line one of a JSON Lines stream: the schema version plus the
// snapshot of the string table every subsequent op indexes into.
type header struct {
	Kind    string   `json:"kind"`
	Version string   `json:"version"`
	Strings []string `json:"strings"`
}

// JSONLines streams ops as JSON Lines: one header record, then one op per
// line. All strings referenced by emitted ops must be interned before
// Begin, because the header captures the string table once.
type JSONLines struct {
	w           *bufio.Writer
	wroteHeader bool
}

// NewJSONLines wraps w in a buffered JSON Lines sink. The caller owns w;
// Finish flushes but does not close it.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: bufio.NewWriter(w)}
}

// Begin writes the header line. Idempotent.
func (s *JSONLines) Begin(p *pool.Pool) error {
	if s.wroteHeader {
		return nil
	}
	line, err := json.Marshal(header{
		Kind:    "Header",
		Version: diff.SchemaVersion,
		Strings: p.Strings(),
	})
	if err != nil {
		return err
	}
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	s.wroteHeader = true
	return nil
}

// Emit writes one op line.
func (s *JSONLines) Emit(op diff.Op) error {
	line, err := diff.MarshalOp(op)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// Finish flushes buffered lines.
func (s *JSONLines) Finish() error {
	return s.w.Flush()
}

// Collector buffers ops in memory, exposed for tests and callers that want
// the callback shape without serialization.
type Collector struct {
	Header []string
	Ops    []diff.Op
}

func (c *Collector) Begin(p *pool.Pool) error {
	if c.Header == nil {
		c.Header = append([]string(nil), p.Strings()...)
	}
	return nil
}

func (c *Collector) Emit(op diff.Op) error {
	c.Ops = append(c.Ops, op)
	return nil
}

func (c *Collector) Finish() error { return nil }
