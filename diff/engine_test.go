package diff

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

// numberSheet builds a sheet whose rows are dense number rows.
func numberSheet(p *pool.Pool, name string, rows [][]float64) workbook.Sheet {
	nrows := uint32(len(rows))
	ncols := uint32(0)
	for _, row := range rows {
		if uint32(len(row)) > ncols {
			ncols = uint32(len(row))
		}
	}
	grid := workbook.NewGrid(nrows, ncols)
	for r, row := range rows {
		for c, val := range row {
			grid.Insert(&workbook.Cell{
				Row: uint32(r), Col: uint32(c),
				Value: workbook.NumberValue(val),
			})
		}
	}
	return workbook.Sheet{Name: p.Intern(name), Kind: workbook.Worksheet, Grid: grid}
}

func singleCellWorkbook(p *pool.Pool, sheet string, row, col uint32, val float64) *workbook.Workbook {
	grid := workbook.NewGrid(row+1, col+1)
	grid.Insert(&workbook.Cell{Row: row, Col: col, Value: workbook.NumberValue(val)})
	return &workbook.Workbook{Sheets: []workbook.Sheet{
		{Name: p.Intern(sheet), Kind: workbook.Worksheet, Grid: grid},
	}}
}

func opKinds(ops []Op) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.OpKind()
	}
	return out
}

func TestIdenticalWorkbooksProduceEmptyReport(t *testing.T) {
	p := pool.New()
	wb := singleCellWorkbook(p, "Sheet1", 0, 0, 1)
	report := Workbooks(wb, wb, p, DefaultConfig())

	assert.Empty(t, report.Ops)
	assert.True(t, report.Complete)
	assert.Empty(t, report.Warnings)
}

func TestSingleCellEdit(t *testing.T) {
	p := pool.New()
	old := singleCellWorkbook(p, "Sheet1", 2, 2, 1)
	new := singleCellWorkbook(p, "Sheet1", 2, 2, 2)

	report := Workbooks(old, new, p, DefaultConfig())
	require.Len(t, report.Ops, 1)

	edit, ok := report.Ops[0].(CellEdited)
	require.True(t, ok, "expected CellEdited, got %s", report.Ops[0].OpKind())
	assert.Equal(t, "C3", edit.Addr)
	assert.Equal(t, float64(1), *edit.From.Value.Number)
	assert.Equal(t, float64(2), *edit.To.Value.Number)
	assert.Equal(t, FormulaUnchanged, edit.Formula)
}

func TestSheetAddedAndRemoved(t *testing.T) {
	p := pool.New()
	old := singleCellWorkbook(p, "Sheet1", 0, 0, 1)
	new := &workbook.Workbook{Sheets: []workbook.Sheet{
		old.Sheets[0],
		numberSheet(p, "Sheet2", [][]float64{{2}}),
	}}

	report := Workbooks(old, new, p, DefaultConfig())
	require.Len(t, report.Ops, 1)
	added, ok := report.Ops[0].(SheetAdded)
	require.True(t, ok)
	assert.Equal(t, "Sheet2", p.Resolve(added.Sheet))

	reverse := Workbooks(new, old, p, DefaultConfig())
	require.Len(t, reverse.Ops, 1)
	removed, ok := reverse.Ops[0].(SheetRemoved)
	require.True(t, ok)
	assert.Equal(t, "Sheet2", p.Resolve(removed.Sheet))
}

func rowsOf(values ...float64) [][]float64 {
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v, v * 10, v * 100}
	}
	return rows
}

func TestRowInsertionEmitsOnlyRowAdded(t *testing.T) {
	p := pool.New()
	old := &workbook.Workbook{Sheets: []workbook.Sheet{
		numberSheet(p, "Sheet1", rowsOf(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)),
	}}
	new := &workbook.Workbook{Sheets: []workbook.Sheet{
		numberSheet(p, "Sheet1", rowsOf(1, 2, 3, 11, 12, 13, 14, 4, 5, 6, 7, 8, 9, 10)),
	}}

	report := Workbooks(old, new, p, DefaultConfig())

	var addedRows []uint32
	for _, op := range report.Ops {
		switch o := op.(type) {
		case RowAdded:
			addedRows = append(addedRows, o.RowIdx)
		case RowRemoved, CellEdited:
			t.Fatalf("pure insertion emitted %s", op.OpKind())
		}
	}
	assert.Equal(t, []uint32{3, 4, 5, 6}, addedRows)
}

func TestBlockMoveEmitsSingleOpAndMasksCells(t *testing.T) {
	// Sixteen distinct rows; rows 4-7 move to rows 12-15.
	oldRows := rowsOf(1, 2, 3, 4, 100, 101, 102, 103, 5, 6, 7, 8, 9, 10, 11, 12)
	var newRows [][]float64
	for i, row := range oldRows {
		if i >= 4 && i <= 7 {
			continue
		}
		newRows = append(newRows, row)
	}
	newRows = append(newRows, oldRows[4], oldRows[5], oldRows[6], oldRows[7])

	p := pool.New()
	old := &workbook.Workbook{Sheets: []workbook.Sheet{numberSheet(p, "Sheet1", oldRows)}}
	new := &workbook.Workbook{Sheets: []workbook.Sheet{numberSheet(p, "Sheet1", newRows)}}

	report := Workbooks(old, new, p, DefaultConfig())
	require.Equal(t, []string{"BlockMovedRows"}, opKinds(report.Ops))

	mv := report.Ops[0].(BlockMovedRows)
	assert.Equal(t, uint32(4), mv.SrcStartRow)
	assert.Equal(t, uint32(4), mv.RowCount)
	assert.Equal(t, uint32(12), mv.DstStartRow)
}

func TestAmbiguousRepeatsRefuseBlockMove(t *testing.T) {
	p := pool.New()
	old := &workbook.Workbook{Sheets: []workbook.Sheet{
		numberSheet(p, "Sheet1", [][]float64{{1, 10}, {1, 10}, {2, 20}, {2, 20}}),
	}}
	new := &workbook.Workbook{Sheets: []workbook.Sheet{
		numberSheet(p, "Sheet1", [][]float64{{2, 20}, {2, 20}, {1, 10}, {1, 10}}),
	}}

	report := Workbooks(old, new, p, DefaultConfig())
	var sawCellEdit bool
	for _, op := range report.Ops {
		require.NotEqual(t, "BlockMovedRows", op.OpKind(),
			"repeated rows must not produce moves")
		if op.OpKind() == "CellEdited" {
			sawCellEdit = true
		}
	}
	assert.True(t, sawCellEdit, "fallback should emit positional edits")
}

func TestColumnInsertionEmitsColumnAdded(t *testing.T) {
	p := pool.New()
	old := &workbook.Workbook{Sheets: []workbook.Sheet{
		numberSheet(p, "Sheet1", [][]float64{{1, 2}, {3, 4}, {5, 6}}),
	}}
	new := &workbook.Workbook{Sheets: []workbook.Sheet{
		numberSheet(p, "Sheet1", [][]float64{{1, 9, 2}, {3, 9, 4}, {5, 9, 6}}),
	}}

	report := Workbooks(old, new, p, DefaultConfig())
	require.Equal(t, []string{"ColumnAdded"}, opKinds(report.Ops))
	assert.Equal(t, uint32(1), report.Ops[0].(ColumnAdded).ColIdx)
}

func formulaSheet(p *pool.Pool, name string, formulas map[string]string) workbook.Sheet {
	grid := workbook.NewGrid(1, 1)
	for addr, text := range formulas {
		row, col, ok := workbook.AddressToIndex(addr)
		if !ok {
			panic("bad address " + addr)
		}
		id := p.Intern(text)
		grid.Insert(&workbook.Cell{Row: row, Col: col, Formula: &id})
	}
	return workbook.Sheet{Name: p.Intern(name), Grid: grid}
}

func TestFormulaFormattingOnlyClassification(t *testing.T) {
	p := pool.New()
	old := &workbook.Workbook{Sheets: []workbook.Sheet{
		formulaSheet(p, "Sheet1", map[string]string{"A1": "sum(A2,B2)"}),
	}}
	new := &workbook.Workbook{Sheets: []workbook.Sheet{
		formulaSheet(p, "Sheet1", map[string]string{"A1": "SUM( A2 ,B2 )"}),
	}}

	report := Workbooks(old, new, p, DefaultConfig())
	require.Len(t, report.Ops, 1)
	edit := report.Ops[0].(CellEdited)
	assert.Equal(t, FormulaFormattingOnly, edit.Formula)

	cfg := DefaultConfig()
	cfg.EnableFormulaSemanticDiff = false
	report = Workbooks(old, new, p, cfg)
	require.Len(t, report.Ops, 1)
	assert.Equal(t, FormulaTextChange, report.Ops[0].(CellEdited).Formula)
}

func TestFormulaFilledClassification(t *testing.T) {
	// A column is inserted in front, so the formula lands one column to
	// the right with its relative references shifted in step.
	p := pool.New()

	oldGrid := workbook.NewGrid(2, 3)
	oldGrid.Insert(&workbook.Cell{Row: 0, Col: 0, Value: workbook.NumberValue(1)})
	oldGrid.Insert(&workbook.Cell{Row: 0, Col: 1, Value: workbook.NumberValue(2)})
	oldID := p.Intern("A1+B1")
	oldGrid.Insert(&workbook.Cell{Row: 0, Col: 2, Formula: &oldID})
	oldGrid.Insert(&workbook.Cell{Row: 1, Col: 0, Value: workbook.NumberValue(3)})
	oldGrid.Insert(&workbook.Cell{Row: 1, Col: 1, Value: workbook.NumberValue(4)})

	newGrid := workbook.NewGrid(2, 4)
	newGrid.Insert(&workbook.Cell{Row: 0, Col: 0, Value: workbook.NumberValue(9)})
	newGrid.Insert(&workbook.Cell{Row: 0, Col: 1, Value: workbook.NumberValue(1)})
	newGrid.Insert(&workbook.Cell{Row: 0, Col: 2, Value: workbook.NumberValue(2)})
	newID := p.Intern("B1+C1")
	newGrid.Insert(&workbook.Cell{Row: 0, Col: 3, Formula: &newID})
	newGrid.Insert(&workbook.Cell{Row: 1, Col: 0, Value: workbook.NumberValue(8)})
	newGrid.Insert(&workbook.Cell{Row: 1, Col: 1, Value: workbook.NumberValue(3)})
	newGrid.Insert(&workbook.Cell{Row: 1, Col: 2, Value: workbook.NumberValue(4)})

	old := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: p.Intern("Sheet1"), Grid: oldGrid}}}
	new := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: p.Intern("Sheet1"), Grid: newGrid}}}

	report := Workbooks(old, new, p, DefaultConfig())

	var filled bool
	var columnAdded bool
	for _, op := range report.Ops {
		if edit, ok := op.(CellEdited); ok && edit.Formula == FormulaFilled {
			filled = true
		}
		if _, ok := op.(ColumnAdded); ok {
			columnAdded = true
		}
	}
	assert.True(t, columnAdded, "ops: %v", opKinds(report.Ops))
	assert.True(t, filled, "shifted formula should classify as Filled, ops: %v", opKinds(report.Ops))
}

func TestDeterminismAcrossWorkerCounts(t *testing.T) {
	build := func(p *pool.Pool) (*workbook.Workbook, *workbook.Workbook) {
		sheets := func(bump bool) []workbook.Sheet {
			var out []workbook.Sheet
			for _, name := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
				rows := rowsOf(1, 2, 3, 4, 5, 6, 7, 8)
				if bump {
					rows[3][1] = 999
				}
				out = append(out, numberSheet(p, name, rows))
			}
			return out
		}
		return &workbook.Workbook{Sheets: sheets(false)}, &workbook.Workbook{Sheets: sheets(true)}
	}

	var baseline []string
	for _, workers := range []int{1, 2, 4, 8} {
		p := pool.New()
		old, new := build(p)
		cfg := DefaultConfig()
		cfg.Workers = workers

		report := Workbooks(old, new, p, cfg)
		var serialized []string
		for _, op := range report.Ops {
			raw, err := MarshalOp(op)
			require.NoError(t, err)
			serialized = append(serialized, string(raw))
		}
		if baseline == nil {
			baseline = serialized
			assert.NotEmpty(t, baseline)
			continue
		}
		if diff := cmp.Diff(baseline, serialized); diff != "" {
			t.Fatalf("workers=%d produced different ops:\n%s", workers, diff)
		}
	}
}

func TestTimeoutProducesIncompleteReportWithWarning(t *testing.T) {
	p := pool.New()
	oldSheet := numberSheet(p, "Sheet1", rowsOf(1, 2, 3, 4))
	newSheet := numberSheet(p, "Sheet1", rowsOf(1, 2, 9, 4))

	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 1

	// Drive the per-sheet differ directly with an already-expired deadline.
	result := diffSheetPair(&oldSheet, &newSheet, p, cfg, time.Now().Add(-time.Second), false)

	assert.True(t, result.degraded)
	require.NotEmpty(t, result.warnings)
	assert.Contains(t, result.warnings[0], "timeout")
	assert.NotEmpty(t, result.ops, "fallback still reports positional edits")
}

func TestMemoryLimitFallsBack(t *testing.T) {
	p := pool.New()
	oldGrid := workbook.NewGrid(50_000, 4)
	oldGrid.Insert(&workbook.Cell{Row: 0, Col: 0, Value: workbook.NumberValue(1)})
	newGrid := workbook.NewGrid(50_000, 4)
	newGrid.Insert(&workbook.Cell{Row: 0, Col: 0, Value: workbook.NumberValue(2)})

	oldWb := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: p.Intern("S"), Grid: oldGrid}}}
	newWb := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: p.Intern("S"), Grid: newGrid}}}

	cfg := DefaultConfig()
	cfg.MaxMemoryMB = 1

	report := Workbooks(oldWb, newWb, p, cfg)
	assert.False(t, report.Complete)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "memory limit")
	assert.Equal(t, []string{"CellEdited"}, opKinds(report.Ops),
		"fallback positional diff still finds the edit")
}

func TestMemoryLimitReturnErrorKeepsNothing(t *testing.T) {
	p := pool.New()
	oldGrid := workbook.NewGrid(50_000, 4)
	newGrid := workbook.NewGrid(50_000, 4)
	oldWb := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: p.Intern("S"), Grid: oldGrid}}}
	newWb := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: p.Intern("S"), Grid: newGrid}}}

	cfg := DefaultConfig()
	cfg.MaxMemoryMB = 1
	cfg.OnLimit = ReturnError

	report := Workbooks(oldWb, newWb, p, cfg)
	assert.False(t, report.Complete)
	assert.NotEmpty(t, report.Warnings)
	assert.Empty(t, report.Ops)
}

func TestAlignmentCapFallsBack(t *testing.T) {
	p := pool.New()
	old := &workbook.Workbook{Sheets: []workbook.Sheet{numberSheet(p, "S", rowsOf(1, 2, 3))}}
	new := &workbook.Workbook{Sheets: []workbook.Sheet{numberSheet(p, "S", rowsOf(1, 9, 3))}}

	cfg := DefaultConfig()
	cfg.MaxAlignRows = 2

	report := Workbooks(old, new, p, cfg)
	assert.False(t, report.Complete)
	assert.NotEmpty(t, report.Warnings)
	assert.Equal(t, []string{"CellEdited"}, opKinds(report.Ops))
}

func TestQueryOpsEmittedAfterSheetOps(t *testing.T) {
	p := pool.New()
	old := singleCellWorkbook(p, "Sheet1", 0, 0, 1)
	old.Queries = []workbook.Query{{Name: "Section1/Q", Expression: "1"}}
	new := singleCellWorkbook(p, "Sheet1", 0, 0, 2)
	new.Queries = []workbook.Query{{Name: "Section1/Q", Expression: "2"}}

	report := Workbooks(old, new, p, DefaultConfig())
	require.Equal(t, []string{"CellEdited", "QueryDefinitionChanged"}, opKinds(report.Ops))

	q := report.Ops[1].(QueryDefinitionChanged)
	assert.Equal(t, "Section1/Q", p.Resolve(q.Name))
	assert.Equal(t, "Semantic", q.ChangeKind)
}

func TestMeasureDiff(t *testing.T) {
	p := pool.New()
	old := singleCellWorkbook(p, "Sheet1", 0, 0, 1)
	old.Model = &workbook.Model{Measures: []workbook.Measure{
		{Name: "Total", Expression: "SUM(Sales[Amount])"},
		{Name: "Dropped", Expression: "1"},
	}}
	new := singleCellWorkbook(p, "Sheet1", 0, 0, 1)
	new.Model = &workbook.Model{Measures: []workbook.Measure{
		{Name: "Total", Expression: "SUMX(Sales, Sales[Amount])"},
		{Name: "Fresh", Expression: "2"},
	}}

	report := Workbooks(old, new, p, DefaultConfig())
	require.Equal(t,
		[]string{"MeasureRemoved", "MeasureAdded", "MeasureDefinitionChanged"},
		opKinds(report.Ops))

	changed := report.Ops[2].(MeasureDefinitionChanged)
	assert.Equal(t, "Total", p.Resolve(changed.Name))
	assert.NotEqual(t, changed.OldHash, changed.NewHash)
}

func TestReportJSONRoundTrip(t *testing.T) {
	p := pool.New()
	old := singleCellWorkbook(p, "Sheet1", 2, 2, 1)
	new := singleCellWorkbook(p, "Sheet1", 2, 2, 2)

	report := Workbooks(old, new, p, DefaultConfig())
	raw, err := report.MarshalJSON()
	require.NoError(t, err)

	var parsed Report
	require.NoError(t, parsed.UnmarshalJSON(raw))
	assert.Equal(t, report.Version, parsed.Version)
	assert.Equal(t, report.Complete, parsed.Complete)
	require.Len(t, parsed.Ops, 1)

	reRaw, err := parsed.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(reRaw))
}
