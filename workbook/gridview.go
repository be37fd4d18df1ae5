package workbook

import "sort"

// RowStats is the cached per-row summary a GridView computes once: the
// content signature plus the density facts frequency classification needs.
type RowStats struct {
	Row              uint32
	Sig              Sig128
	NonBlankCount    uint32
	FirstNonBlankCol uint32
}

// ColStats is the column-wise counterpart of RowStats.
type ColStats struct {
	Col              uint32
	Sig              Sig128
	NonBlankCount    uint32
	FirstNonBlankRow uint32
}

// GridView wraps an immutable Grid with precomputed row and column
// signatures. Views are built once per diff and shared read-only across
// workers.
type GridView struct {
	Grid *Grid

	Rows    []RowStats
	Cols    []ColStats
	ColSigs []Sig128

	// cellsByRow holds each row's occupied cells in ascending column order,
	// shared by signature building and the cell differ.
	cellsByRow [][]*Cell
}

// NewGridView builds the view, hashing every row and column exactly once.
func NewGridView(g *Grid) *GridView {
	v := &GridView{
		Grid:       g,
		Rows:       make([]RowStats, g.NRows),
		Cols:       make([]ColStats, g.NCols),
		ColSigs:    make([]Sig128, g.NCols),
		cellsByRow: make([][]*Cell, g.NRows),
	}

	if g.dense != nil {
		for r := uint32(0); r < g.NRows; r++ {
			rowCells := g.dense[int(r)*int(g.NCols) : int(r+1)*int(g.NCols)]
			for _, cell := range rowCells {
				if cell != nil {
					v.cellsByRow[r] = append(v.cellsByRow[r], cell)
				}
			}
		}
	} else {
		for _, cell := range g.sparse {
			v.cellsByRow[cell.Row] = append(v.cellsByRow[cell.Row], cell)
		}
		for r := range v.cellsByRow {
			sort.Slice(v.cellsByRow[r], func(i, j int) bool {
				return v.cellsByRow[r][i].Col < v.cellsByRow[r][j].Col
			})
		}
	}

	colHashers := make([]*sigHasher, g.NCols)
	for c := range colHashers {
		colHashers[c] = newSigHasher()
	}

	for r := uint32(0); r < g.NRows; r++ {
		rowHasher := newSigHasher()
		stats := RowStats{Row: r, FirstNonBlankCol: g.NCols}
		for _, cell := range v.cellsByRow[r] {
			rowHasher.writeCell(cell.Col, cell)
			if stats.NonBlankCount == 0 {
				stats.FirstNonBlankCol = cell.Col
			}
			stats.NonBlankCount++
		}
		stats.Sig = rowHasher.sum()
		v.Rows[r] = stats
	}

	// Column hashing must observe rows in ascending order regardless of
	// layout, so it reuses the sorted per-row cell lists.
	for c := uint32(0); c < g.NCols; c++ {
		v.Cols[c] = ColStats{Col: c, FirstNonBlankRow: g.NRows}
	}
	for r := uint32(0); r < g.NRows; r++ {
		for _, cell := range v.cellsByRow[r] {
			colHashers[cell.Col].writeCell(r, cell)
			if v.Cols[cell.Col].NonBlankCount == 0 {
				v.Cols[cell.Col].FirstNonBlankRow = r
			}
			v.Cols[cell.Col].NonBlankCount++
		}
	}
	for c := uint32(0); c < g.NCols; c++ {
		sig := colHashers[c].sum()
		v.Cols[c].Sig = sig
		v.ColSigs[c] = sig
	}

	return v
}

// RowCells returns row's occupied cells in ascending column order.
func (v *GridView) RowCells(row uint32) []*Cell {
	if int(row) >= len(v.cellsByRow) {
		return nil
	}
	return v.cellsByRow[row]
}

// RowsEqual reports cell-level identity of an old-view row and a new-view
// row. Signature equality is probabilistic; this is the exact check move
// suppression relies on.
func RowsEqual(oldView *GridView, oldRow uint32, newView *GridView, newRow uint32) bool {
	oldCells := oldView.RowCells(oldRow)
	newCells := newView.RowCells(newRow)
	if len(oldCells) != len(newCells) {
		return false
	}
	for i, oc := range oldCells {
		nc := newCells[i]
		if oc.Col != nc.Col {
			return false
		}
		if !SnapshotOf(oc).Equal(SnapshotOf(nc)) {
			return false
		}
	}
	return true
}
