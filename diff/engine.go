package diff

import (
	"sort"
	"time"

	"github.com/xldiff/xldiff/align"
	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/util"
	"github.com/xldiff/xldiff/workbook"
)

// Workbooks diffs two workbooks into an in-memory report.
func Workbooks(old, new *workbook.Workbook, p *pool.Pool, cfg *Config) *Report {
	collector := &collectorSink{}
	summary, _ := WorkbooksStreaming(old, new, p, cfg, collector)
	return &Report{
		Version:  SchemaVersion,
		Complete: summary.Complete,
		Warnings: summary.Warnings,
		Ops:      collector.ops,
		Strings:  p.Strings(),
	}
}

// WorkbooksStreaming diffs two workbooks, emitting ops through sink as
// they are produced. The emitted sequence is bit-identical regardless of
// cfg.Workers: per-sheet results land in per-item buffers that are merged
// in sheet-name order on the calling goroutine, which is also the only
// place the pool is mutated.
func WorkbooksStreaming(old, new *workbook.Workbook, p *pool.Pool, cfg *Config, sink Sink) (Summary, error) {
	metrics := &Metrics{}
	total := startTimer(&metrics.TotalMs)
	defer func() {
		total.stop()
		metrics.log()
	}()

	var deadline time.Time
	if cfg.TimeoutSeconds > 0 {
		deadline = time.Now().Add(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}

	// All interning happens before Begin: sheet names were interned at
	// load, query and measure names get their IDs here.
	queryOps := diffWorkbookQueries(old, new, p)
	measureOps := diffWorkbookMeasures(old, new, p)

	oldSheets := sheetsByName(old, p)
	newSheets := sheetsByName(new, p)
	names := unionSheetNames(oldSheets, newSheets)

	type sheetWork struct {
		name     string
		oldSheet *workbook.Sheet
		newSheet *workbook.Sheet
	}
	work := make([]sheetWork, 0, len(names))
	for _, name := range names {
		work = append(work, sheetWork{
			name:     name,
			oldSheet: oldSheets[name],
			newSheet: newSheets[name],
		})
	}

	workers := cfg.Workers
	parallel := workers > 1

	results, err := util.ConcurrentMapFuncWithError(work, workers, func(w sheetWork) (sheetResult, error) {
		return diffSheetPair(w.oldSheet, w.newSheet, p, cfg, deadline, parallel), nil
	})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Complete: true}
	if err := sink.Begin(p); err != nil {
		return Summary{}, &SinkError{Err: err}
	}

	emitTimer := startTimer(&metrics.EmitMs)
	emit := func(op Op) error {
		if err := sink.Emit(op); err != nil {
			return &SinkError{Err: err}
		}
		summary.OpCount++
		return nil
	}

	for _, result := range results {
		summary.Warnings = append(summary.Warnings, result.warnings...)
		if result.degraded {
			summary.Complete = false
		}
		metrics.add(result.metrics)
		for _, op := range result.ops {
			if err := emit(op); err != nil {
				emitTimer.stop()
				return summary, err
			}
		}
	}
	for _, op := range queryOps {
		if err := emit(op); err != nil {
			emitTimer.stop()
			return summary, err
		}
	}
	for _, op := range measureOps {
		if err := emit(op); err != nil {
			emitTimer.stop()
			return summary, err
		}
	}
	emitTimer.stop()

	if err := sink.Finish(); err != nil {
		return summary, &SinkError{Err: err}
	}
	return summary, nil
}

func sheetsByName(wb *workbook.Workbook, p *pool.Pool) map[string]*workbook.Sheet {
	out := make(map[string]*workbook.Sheet, len(wb.Sheets))
	for i := range wb.Sheets {
		out[p.Resolve(wb.Sheets[i].Name)] = &wb.Sheets[i]
	}
	return out
}

func unionSheetNames(oldSheets, newSheets map[string]*workbook.Sheet) []string {
	seen := make(map[string]struct{}, len(oldSheets)+len(newSheets))
	var names []string
	for name := range oldSheets {
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for name := range newSheets {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type sheetResult struct {
	ops      []Op
	warnings []string
	degraded bool
	metrics  Metrics
}

// diffSheetPair produces the full op buffer for one sheet slot. Exactly
// one of oldSheet/newSheet may be nil (sheet added or removed). Runs on a
// worker goroutine; everything it touches is read-only, including the pool.
func diffSheetPair(oldSheet, newSheet *workbook.Sheet, p *pool.Pool, cfg *Config, deadline time.Time, parallel bool) sheetResult {
	switch {
	case oldSheet == nil && newSheet == nil:
		return sheetResult{}
	case oldSheet == nil:
		return sheetResult{ops: []Op{SheetAdded{Sheet: newSheet.Name}}}
	case newSheet == nil:
		return sheetResult{ops: []Op{SheetRemoved{Sheet: oldSheet.Name}}}
	}

	oldGrid := oldSheet.Grid
	if oldGrid == nil {
		oldGrid = workbook.NewGrid(0, 0)
	}
	newGrid := newSheet.Grid
	if newGrid == nil {
		newGrid = workbook.NewGrid(0, 0)
	}

	d := &sheetDiffer{
		sheetID:  newSheet.Name,
		pool:     p,
		cfg:      cfg,
		cache:    newFormulaCache(),
		h:        &hardening{cfg: cfg, deadline: deadline, phase: PhaseIdle},
		oldGrid:  oldGrid,
		newGrid:  newGrid,
		parallel: parallel,
	}
	d.run()
	return sheetResult{
		ops:      d.ops,
		warnings: d.h.warnings,
		degraded: d.h.degraded,
		metrics:  d.metrics,
	}
}

// sheetDiffer carries the state of one sheet comparison.
type sheetDiffer struct {
	sheetID pool.ID
	pool    *pool.Pool
	cfg     *Config
	cache   *formulaCache
	h       *hardening
	metrics Metrics

	oldGrid *workbook.Grid
	newGrid *workbook.Grid
	oldView *workbook.GridView
	newView *workbook.GridView

	ops []Op

	// parallel suppresses advisory progress callbacks from worker
	// goroutines; only the orchestrator reports progress.
	parallel bool
}

func (d *sheetDiffer) enterPhase(p Phase) {
	d.h.phase = p
	if !d.parallel && d.cfg.Progress != nil && p <= PhaseDone {
		d.cfg.Progress(p.String(), float64(p)/float64(PhaseDone))
	}
}

func (d *sheetDiffer) run() {
	d.metrics.SheetsCompared++

	maxRows := d.oldGrid.NRows
	if d.newGrid.NRows > maxRows {
		maxRows = d.newGrid.NRows
	}
	maxCols := d.oldGrid.NCols
	if d.newGrid.NCols > maxCols {
		maxCols = d.newGrid.NCols
	}

	if !d.h.checkAlignmentDims(maxRows, maxCols) ||
		!d.h.checkMemory("alignment", estimateAlignmentBytes(d.oldGrid, d.newGrid)) ||
		!d.h.checkDeadline("alignment") {
		d.metrics.FallbacksJumped++
		if d.cfg.OnLimit == FallBack {
			d.positionalDiff()
		}
		return
	}

	d.enterPhase(PhaseHashing)
	alignTimer := startTimer(&d.metrics.AlignmentMs)
	d.oldView = workbook.NewGridView(d.oldGrid)
	d.newView = workbook.NewGridView(d.newGrid)

	d.enterPhase(PhaseClassifying)
	params := d.alignParams()

	// Columns align first; row alignment then runs over the matched
	// column mapping so that column insertions do not perturb row
	// signatures.
	colAlignment := d.alignColumns(params)
	oldCols, newCols := matchedColumns(colAlignment)

	d.enterPhase(PhaseAnchoringChain)
	rowAlignment := d.alignRows(params, colAlignment, oldCols, newCols)
	alignTimer.stop()

	d.metrics.MovesDetected += uint64(len(rowAlignment.Moves)) + uint64(len(colAlignment.Moves))

	if !d.h.checkDeadline("cell-diff") {
		d.metrics.FallbacksJumped++
		d.emitAlignmentOps(colAlignment, rowAlignment)
		return
	}

	d.enterPhase(PhaseGapResolving)
	d.emitAlignmentOps(colAlignment, rowAlignment)

	d.enterPhase(PhaseCellDiffing)
	cellTimer := startTimer(&d.metrics.CellDiffMs)
	d.cellDiff(rowAlignment.Matched, oldCols, newCols)
	cellTimer.stop()

	d.enterPhase(PhaseDone)
}

func (d *sheetDiffer) alignParams() align.Params {
	return align.Params{
		RareThreshold:           d.cfg.RareThreshold,
		LowInfoThreshold:        d.cfg.LowInfoThreshold,
		SmallGapThreshold:       d.cfg.SmallGapThreshold,
		RecursiveAlignThreshold: d.cfg.RecursiveAlignThreshold,
		MinMoveLength:           2,
		AssignmentCap:           200,
		AssignmentPadCost:       1 << 40,
	}
}

// alignColumns aligns the column axes by signature.
func (d *sheetDiffer) alignColumns(params align.Params) align.RowAlignment {
	oldMeta := align.MetaFromColStats(d.oldView.Cols)
	newMeta := align.MetaFromColStats(d.newView.Cols)

	p := params
	p.VerifyRows = func(oldCol, newCol uint32) bool {
		return columnsEqual(d.oldView, oldCol, d.newView, newCol)
	}
	p.RowCost = nil
	return align.AlignRows(oldMeta, newMeta, p)
}

// matchedColumns flattens a column alignment into parallel old/new column
// lists, ordered by new column. Moved column blocks keep cell-diff
// coverage by joining the mapping as matched pairs.
func matchedColumns(a align.RowAlignment) (oldCols, newCols []uint32) {
	pairs := make([][2]uint32, 0, len(a.Matched))
	pairs = append(pairs, a.Matched...)
	for _, mv := range a.Moves {
		for i := uint32(0); i < mv.RowCount; i++ {
			pairs = append(pairs, [2]uint32{mv.SrcStartRow + i, mv.DstStartRow + i})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][1] < pairs[j][1] })
	for _, pair := range pairs {
		oldCols = append(oldCols, pair[0])
		newCols = append(newCols, pair[1])
	}
	return oldCols, newCols
}

// columnIdentity reports whether the column alignment is a no-op mapping.
func columnIdentity(a align.RowAlignment) bool {
	if len(a.Inserted) > 0 || len(a.Deleted) > 0 || len(a.Moves) > 0 {
		return false
	}
	for _, pair := range a.Matched {
		if pair[0] != pair[1] {
			return false
		}
	}
	return true
}

func (d *sheetDiffer) alignRows(params align.Params, colAlignment align.RowAlignment, oldCols, newCols []uint32) align.RowAlignment {
	identity := columnIdentity(colAlignment)

	oldMeta := d.rowMeta(d.oldView, d.oldGrid, oldCols, identity)
	newMeta := d.rowMeta(d.newView, d.newGrid, newCols, identity)

	p := params
	p.VerifyRows = func(oldRow, newRow uint32) bool {
		if identity {
			return workbook.RowsEqual(d.oldView, oldRow, d.newView, newRow)
		}
		return mappedRowsEqual(d.oldGrid, oldRow, oldCols, d.newGrid, newRow, newCols)
	}
	p.RowCost = func(oldRow, newRow uint32) int64 {
		return d.rowCost(oldRow, newRow, oldCols, newCols, p.AssignmentPadCost)
	}

	a := align.AlignRows(oldMeta, newMeta, p)
	d.metrics.RowsProcessed += uint64(len(oldMeta)) + uint64(len(newMeta))
	return a
}

// rowMeta builds row metadata, re-hashing over the matched column mapping
// when columns were inserted, removed or moved.
func (d *sheetDiffer) rowMeta(view *workbook.GridView, grid *workbook.Grid, cols []uint32, identity bool) []align.RowMeta {
	if identity {
		return align.MetaFromRowStats(view.Rows)
	}
	meta := make([]align.RowMeta, len(view.Rows))
	for i, stats := range view.Rows {
		meta[i] = align.RowMeta{
			Idx:              stats.Row,
			Sig:              grid.MappedRowSignature(stats.Row, cols),
			NonBlankCount:    stats.NonBlankCount,
			FirstNonBlankCol: stats.FirstNonBlankCol,
		}
	}
	return meta
}

// rowCost scores a residual row pair for Hungarian pairing: identical
// signatures are free, some cell overlap is cheap, disjoint content is "no
// match".
func (d *sheetDiffer) rowCost(oldRow, newRow uint32, oldCols, newCols []uint32, padCost int64) int64 {
	equal, differing := 0, 0
	for i := range oldCols {
		oldCell := d.oldGrid.Get(oldRow, oldCols[i])
		newCell := d.newGrid.Get(newRow, newCols[i])
		if oldCell == nil && newCell == nil {
			continue
		}
		if workbook.SnapshotOf(oldCell).Equal(workbook.SnapshotOf(newCell)) {
			equal++
		} else {
			differing++
		}
	}
	if equal == 0 {
		if differing == 0 {
			return 0 // two blank rows
		}
		return padCost
	}
	oldLen := d.oldView.Rows[oldRow].NonBlankCount
	newLen := d.newView.Rows[newRow].NonBlankCount
	lenMismatch := int64(oldLen) - int64(newLen)
	if lenMismatch < 0 {
		lenMismatch = -lenMismatch
	}
	return int64(differing)*10 + lenMismatch*100
}

// emitAlignmentOps converts the structural alignment into ops, in the
// canonical per-sheet order: column ops, then row ops, then (separately)
// cell edits.
func (d *sheetDiffer) emitAlignmentOps(colAlignment, rowAlignment align.RowAlignment) {
	for _, colIdx := range colAlignment.Deleted {
		sig := d.oldView.Cols[colIdx].Sig.Hash64()
		d.ops = append(d.ops, ColumnRemoved{Sheet: d.sheetID, ColIdx: colIdx, ColSig: &sig})
	}
	for _, colIdx := range colAlignment.Inserted {
		sig := d.newView.Cols[colIdx].Sig.Hash64()
		d.ops = append(d.ops, ColumnAdded{Sheet: d.sheetID, ColIdx: colIdx, ColSig: &sig})
	}
	for _, mv := range colAlignment.Moves {
		d.ops = append(d.ops, BlockMovedColumns{
			Sheet:       d.sheetID,
			SrcStartCol: mv.SrcStartRow,
			ColCount:    mv.RowCount,
			DstStartCol: mv.DstStartRow,
		})
	}

	for _, rowIdx := range rowAlignment.Deleted {
		sig := d.oldView.Rows[rowIdx].Sig.Hash64()
		d.ops = append(d.ops, RowRemoved{Sheet: d.sheetID, RowIdx: rowIdx, RowSig: &sig})
	}
	for _, rowIdx := range rowAlignment.Inserted {
		sig := d.newView.Rows[rowIdx].Sig.Hash64()
		d.ops = append(d.ops, RowAdded{Sheet: d.sheetID, RowIdx: rowIdx, RowSig: &sig})
	}
	for _, mv := range rowAlignment.Moves {
		d.ops = append(d.ops, BlockMovedRows{
			Sheet:       d.sheetID,
			SrcStartRow: mv.SrcStartRow,
			RowCount:    mv.RowCount,
			DstStartRow: mv.DstStartRow,
		})
	}
}

// cellDiff walks the matched row pairs in new-row order and the matched
// column mapping in new-column order, emitting at most one op per address.
// Cells inside moved blocks never get here: moved rows are not in the
// matched set.
func (d *sheetDiffer) cellDiff(matched [][2]uint32, oldCols, newCols []uint32) {
	d.enterPhase(PhaseFormulaClassifying)

	rowsSinceCheck := 0
	for _, pair := range matched {
		rowsSinceCheck++
		if rowsSinceCheck >= deadlinePollStride {
			rowsSinceCheck = 0
			if !d.h.checkDeadline("cell-diff") {
				d.metrics.FallbacksJumped++
				return
			}
		}
		d.diffRowPair(pair[0], pair[1], oldCols, newCols)
	}
}

// rowReplaceMinCells is the edit-burst size at which an aligned row pair
// with zero surviving overlap collapses into one RowReplaced op.
const rowReplaceMinCells = 3

func (d *sheetDiffer) diffRowPair(oldRow, newRow uint32, oldCols, newCols []uint32) {
	type pendingEdit struct {
		oldCell *workbook.Cell
		newCell *workbook.Cell
		oldCol  uint32
		newCol  uint32
	}

	var edits []pendingEdit
	equalCells := 0

	for i := range oldCols {
		oldCell := d.oldGrid.Get(oldRow, oldCols[i])
		newCell := d.newGrid.Get(newRow, newCols[i])
		if oldCell == nil && newCell == nil {
			continue
		}
		d.metrics.CellsCompared++
		if workbook.SnapshotOf(oldCell).Equal(workbook.SnapshotOf(newCell)) {
			equalCells++
			continue
		}
		edits = append(edits, pendingEdit{
			oldCell: oldCell,
			newCell: newCell,
			oldCol:  oldCols[i],
			newCol:  newCols[i],
		})
	}

	if len(edits) == 0 {
		return
	}

	oldNonBlank := d.oldView.Rows[oldRow].NonBlankCount
	newNonBlank := d.newView.Rows[newRow].NonBlankCount
	if equalCells == 0 && oldNonBlank > 0 && newNonBlank > 0 && len(edits) >= rowReplaceMinCells {
		d.ops = append(d.ops, RowReplaced{
			Sheet:     d.sheetID,
			OldRowIdx: oldRow,
			NewRowIdx: newRow,
		})
		return
	}

	for _, edit := range edits {
		rowShift := int64(newRow) - int64(oldRow)
		colShift := int64(edit.newCol) - int64(edit.oldCol)
		result := classifyFormulaChange(
			d.pool, d.cache,
			formulaID(edit.oldCell), formulaID(edit.newCell),
			rowShift, colShift, d.cfg,
		)
		d.ops = append(d.ops, CellEdited{
			Sheet:   d.sheetID,
			Addr:    workbook.IndexToAddress(newRow, edit.newCol),
			From:    snapshotJSON(edit.oldCell),
			To:      snapshotJSON(edit.newCell),
			Formula: result,
		})
	}
}

// positionalDiff is the simple fallback differ: straight positional cell
// comparison with no alignment. Used when limits rule the advanced
// pipeline out.
func (d *sheetDiffer) positionalDiff() {
	maxRows := d.oldGrid.NRows
	if d.newGrid.NRows > maxRows {
		maxRows = d.newGrid.NRows
	}
	maxCols := d.oldGrid.NCols
	if d.newGrid.NCols > maxCols {
		maxCols = d.newGrid.NCols
	}

	for row := uint32(0); row < maxRows; row++ {
		if row%deadlinePollStride == deadlinePollStride-1 && d.h.deadlineExceeded() {
			d.h.warnf("timeout during positional diff at row %d", row)
			return
		}
		for col := uint32(0); col < maxCols; col++ {
			oldCell := d.oldGrid.Get(row, col)
			newCell := d.newGrid.Get(row, col)
			if oldCell == nil && newCell == nil {
				continue
			}
			d.metrics.CellsCompared++
			if workbook.SnapshotOf(oldCell).Equal(workbook.SnapshotOf(newCell)) {
				continue
			}
			result := classifyFormulaChange(
				d.pool, d.cache,
				formulaID(oldCell), formulaID(newCell),
				0, 0, d.cfg,
			)
			d.ops = append(d.ops, CellEdited{
				Sheet:   d.sheetID,
				Addr:    workbook.IndexToAddress(row, col),
				From:    snapshotJSON(oldCell),
				To:      snapshotJSON(newCell),
				Formula: result,
			})
		}
	}
}

func formulaID(cell *workbook.Cell) *pool.ID {
	if cell == nil {
		return nil
	}
	return cell.Formula
}

func snapshotJSON(cell *workbook.Cell) CellSnapshotJSON {
	if cell == nil {
		return CellSnapshotJSON{}
	}
	out := CellSnapshotJSON{Formula: cell.Formula}
	if cell.Value != nil {
		switch cell.Value.Kind {
		case workbook.KindNumber:
			n := cell.Value.Number
			out.Value = &CellValueJSON{Kind: "number", Number: &n}
		case workbook.KindText:
			id := cell.Value.Text
			out.Value = &CellValueJSON{Kind: "text", Text: &id}
		case workbook.KindBool:
			b := cell.Value.Bool
			out.Value = &CellValueJSON{Kind: "bool", Bool: &b}
		}
	}
	return out
}

// columnsEqual is the exact identity check backing column move and match
// verification.
func columnsEqual(oldView *workbook.GridView, oldCol uint32, newView *workbook.GridView, newCol uint32) bool {
	oldRows := oldView.Grid.NRows
	newRows := newView.Grid.NRows
	maxRows := oldRows
	if newRows > maxRows {
		maxRows = newRows
	}
	for row := uint32(0); row < maxRows; row++ {
		oldCell := oldView.Grid.Get(row, oldCol)
		newCell := newView.Grid.Get(row, newCol)
		if oldCell == nil && newCell == nil {
			continue
		}
		if !workbook.SnapshotOf(oldCell).Equal(workbook.SnapshotOf(newCell)) {
			return false
		}
	}
	return true
}

func mappedRowsEqual(oldGrid *workbook.Grid, oldRow uint32, oldCols []uint32, newGrid *workbook.Grid, newRow uint32, newCols []uint32) bool {
	for i := range oldCols {
		oldCell := oldGrid.Get(oldRow, oldCols[i])
		newCell := newGrid.Get(newRow, newCols[i])
		if oldCell == nil && newCell == nil {
			continue
		}
		if !workbook.SnapshotOf(oldCell).Equal(workbook.SnapshotOf(newCell)) {
			return false
		}
	}
	return true
}
