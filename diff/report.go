package diff

import (
	"fmt"

	"github.com/goccy/go-json"
)

// SchemaVersion tags the serialized report and stream header. New op kinds
// require a coordinated bump.
const SchemaVersion = "1"

// Report is the in-memory result of a diff run. Complete is false iff a
// resource limit, or a database-mode fallback (missing or duplicate keys),
// forced a phase to be skipped or degraded; Warnings then enumerates what
// happened. Strings is the snapshot of the intern pool the
// ops reference.
type Report struct {
	Version  string
	Complete bool
	Warnings []string
	Ops      []Op
	Strings  []string
}

// Summary is the streaming counterpart of Report: the ops have already
// left through the sink.
type Summary struct {
	Complete bool
	OpCount  int
	Warnings []string
}

// HasChanges reports whether any op was emitted.
func (r *Report) HasChanges() bool {
	return len(r.Ops) > 0
}

type reportJSON struct {
	Version  string            `json:"version"`
	Complete bool              `json:"complete"`
	Warnings []string          `json:"warnings"`
	Ops      []json.RawMessage `json:"ops"`
	Strings  []string          `json:"strings"`
}

func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		Version:  r.Version,
		Complete: r.Complete,
		Warnings: r.Warnings,
		Strings:  r.Strings,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if out.Strings == nil {
		out.Strings = []string{}
	}
	out.Ops = make([]json.RawMessage, len(r.Ops))
	for i, op := range r.Ops {
		raw, err := MarshalOp(op)
		if err != nil {
			return nil, fmt.Errorf("serializing op %d: %w", i, err)
		}
		out.Ops[i] = raw
	}
	return json.Marshal(out)
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var in reportJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Version = in.Version
	r.Complete = in.Complete
	r.Warnings = in.Warnings
	r.Strings = in.Strings
	r.Ops = make([]Op, len(in.Ops))
	for i, raw := range in.Ops {
		op, err := UnmarshalOp(raw)
		if err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
		r.Ops[i] = op
	}
	return nil
}
