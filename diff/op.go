package diff

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/xldiff/xldiff/mquery"
	"github.com/xldiff/xldiff/pool"
)

// FormulaDiffResult classifies what happened to a cell's formula.
type FormulaDiffResult string

const (
	FormulaUnchanged      FormulaDiffResult = "Unchanged"
	FormulaAdded          FormulaDiffResult = "Added"
	FormulaRemoved        FormulaDiffResult = "Removed"
	FormulaTextChange     FormulaDiffResult = "TextChange"
	FormulaFormattingOnly FormulaDiffResult = "FormattingOnly"
	FormulaFilled         FormulaDiffResult = "Filled"
	FormulaSemanticChange FormulaDiffResult = "SemanticChange"
	FormulaUnknown        FormulaDiffResult = "Unknown"
)

// CellValueJSON is the serialized form of a typed cell value.
type CellValueJSON struct {
	Kind   string   `json:"kind"`
	Number *float64 `json:"number,omitempty"`
	Text   *pool.ID `json:"text,omitempty"`
	Bool   *bool    `json:"bool,omitempty"`
}

// CellSnapshotJSON is a cell state carried inside CellEdited ops.
type CellSnapshotJSON struct {
	Value   *CellValueJSON `json:"value,omitempty"`
	Formula *pool.ID       `json:"formula,omitempty"`
}

// Op is one emitted diff operation. The concrete types below form the
// closed set of op kinds; a new kind requires a schema version bump.
type Op interface {
	OpKind() string
}

type SheetAdded struct {
	Sheet pool.ID `json:"sheet"`
}

type SheetRemoved struct {
	Sheet pool.ID `json:"sheet"`
}

type RowAdded struct {
	Sheet  pool.ID `json:"sheet"`
	RowIdx uint32  `json:"row_idx"`
	RowSig *uint64 `json:"row_signature,omitempty"`
}

type RowRemoved struct {
	Sheet  pool.ID `json:"sheet"`
	RowIdx uint32  `json:"row_idx"`
	RowSig *uint64 `json:"row_signature,omitempty"`
}

type ColumnAdded struct {
	Sheet  pool.ID `json:"sheet"`
	ColIdx uint32  `json:"col_idx"`
	ColSig *uint64 `json:"col_signature,omitempty"`
}

type ColumnRemoved struct {
	Sheet  pool.ID `json:"sheet"`
	ColIdx uint32  `json:"col_idx"`
	ColSig *uint64 `json:"col_signature,omitempty"`
}

type BlockMovedRows struct {
	Sheet       pool.ID `json:"sheet"`
	SrcStartRow uint32  `json:"src_start_row"`
	RowCount    uint32  `json:"row_count"`
	DstStartRow uint32  `json:"dst_start_row"`
	BlockHash   *uint64 `json:"block_hash,omitempty"`
}

type BlockMovedColumns struct {
	Sheet       pool.ID `json:"sheet"`
	SrcStartCol uint32  `json:"src_start_col"`
	ColCount    uint32  `json:"col_count"`
	DstStartCol uint32  `json:"dst_start_col"`
	BlockHash   *uint64 `json:"block_hash,omitempty"`
}

type CellEdited struct {
	Sheet   pool.ID           `json:"sheet"`
	Addr    string            `json:"addr"`
	From    CellSnapshotJSON  `json:"from"`
	To      CellSnapshotJSON  `json:"to"`
	Formula FormulaDiffResult `json:"formula_diff"`
}

// RowReplaced marks an aligned row pair with no surviving cell overlap,
// summarizing what would otherwise be a burst of unrelated cell edits.
type RowReplaced struct {
	Sheet     pool.ID `json:"sheet"`
	OldRowIdx uint32  `json:"old_row_idx"`
	NewRowIdx uint32  `json:"new_row_idx"`
}

type QueryAdded struct {
	Name pool.ID `json:"name"`
}

type QueryRemoved struct {
	Name pool.ID `json:"name"`
}

type QueryRenamed struct {
	From pool.ID `json:"from"`
	To   pool.ID `json:"to"`
}

type StepChangeJSON struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Details []string `json:"details,omitempty"`
}

type QueryDefinitionChanged struct {
	Name       pool.ID          `json:"name"`
	ChangeKind string           `json:"change_kind"`
	Steps      []StepChangeJSON `json:"semantic_detail,omitempty"`
}

type QueryMetadataChanged struct {
	Name pool.ID `json:"name"`
}

type MeasureAdded struct {
	Name pool.ID `json:"name"`
}

type MeasureRemoved struct {
	Name pool.ID `json:"name"`
}

type MeasureDefinitionChanged struct {
	Name    pool.ID `json:"name"`
	OldHash uint64  `json:"old_hash"`
	NewHash uint64  `json:"new_hash"`
}

func (SheetAdded) OpKind() string               { return "SheetAdded" }
func (SheetRemoved) OpKind() string             { return "SheetRemoved" }
func (RowAdded) OpKind() string                 { return "RowAdded" }
func (RowRemoved) OpKind() string               { return "RowRemoved" }
func (ColumnAdded) OpKind() string              { return "ColumnAdded" }
func (ColumnRemoved) OpKind() string            { return "ColumnRemoved" }
func (BlockMovedRows) OpKind() string           { return "BlockMovedRows" }
func (BlockMovedColumns) OpKind() string        { return "BlockMovedColumns" }
func (CellEdited) OpKind() string               { return "CellEdited" }
func (RowReplaced) OpKind() string              { return "RowReplaced" }
func (QueryAdded) OpKind() string               { return "QueryAdded" }
func (QueryRemoved) OpKind() string             { return "QueryRemoved" }
func (QueryRenamed) OpKind() string             { return "QueryRenamed" }
func (QueryDefinitionChanged) OpKind() string   { return "QueryDefinitionChanged" }
func (QueryMetadataChanged) OpKind() string     { return "QueryMetadataChanged" }
func (MeasureAdded) OpKind() string             { return "MeasureAdded" }
func (MeasureRemoved) OpKind() string           { return "MeasureRemoved" }
func (MeasureDefinitionChanged) OpKind() string { return "MeasureDefinitionChanged" }

// MarshalOp serializes an op with its kind tag spliced in as the first
// field, producing the canonical tagged JSON shape.
func MarshalOp(op Op) ([]byte, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("op %s did not serialize to an object", op.OpKind())
	}
	head := []byte(`{"kind":"` + op.OpKind() + `"`)
	if len(body) == 2 {
		return append(head, '}'), nil
	}
	head = append(head, ',')
	return append(head, body[1:]...), nil
}

// UnmarshalOp decodes one tagged op object. Unknown kinds return an error;
// stream consumers that must tolerate future kinds check the kind first.
func UnmarshalOp(data []byte) (Op, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	decode := func(op Op) (Op, error) {
		if err := json.Unmarshal(data, op); err != nil {
			return nil, err
		}
		return op, nil
	}

	switch probe.Kind {
	case "SheetAdded":
		op := &SheetAdded{}
		return decode(op)
	case "SheetRemoved":
		op := &SheetRemoved{}
		return decode(op)
	case "RowAdded":
		op := &RowAdded{}
		return decode(op)
	case "RowRemoved":
		op := &RowRemoved{}
		return decode(op)
	case "ColumnAdded":
		op := &ColumnAdded{}
		return decode(op)
	case "ColumnRemoved":
		op := &ColumnRemoved{}
		return decode(op)
	case "BlockMovedRows":
		op := &BlockMovedRows{}
		return decode(op)
	case "BlockMovedColumns":
		op := &BlockMovedColumns{}
		return decode(op)
	case "CellEdited":
		op := &CellEdited{}
		return decode(op)
	case "RowReplaced":
		op := &RowReplaced{}
		return decode(op)
	case "QueryAdded":
		op := &QueryAdded{}
		return decode(op)
	case "QueryRemoved":
		op := &QueryRemoved{}
		return decode(op)
	case "QueryRenamed":
		op := &QueryRenamed{}
		return decode(op)
	case "QueryDefinitionChanged":
		op := &QueryDefinitionChanged{}
		return decode(op)
	case "QueryMetadataChanged":
		op := &QueryMetadataChanged{}
		return decode(op)
	case "MeasureAdded":
		op := &MeasureAdded{}
		return decode(op)
	case "MeasureRemoved":
		op := &MeasureRemoved{}
		return decode(op)
	case "MeasureDefinitionChanged":
		op := &MeasureDefinitionChanged{}
		return decode(op)
	}
	return nil, fmt.Errorf("unknown op kind %q", probe.Kind)
}

func stepChangesToJSON(steps []mquery.StepChange) []StepChangeJSON {
	if len(steps) == 0 {
		return nil
	}
	out := make([]StepChangeJSON, len(steps))
	for i, step := range steps {
		details := make([]string, len(step.Details))
		for j, d := range step.Details {
			details[j] = d.String()
		}
		out[i] = StepChangeJSON{
			Kind:    step.Kind.String(),
			Name:    step.Name,
			Details: details,
		}
	}
	return out
}
