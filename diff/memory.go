package diff

import (
	"unsafe"

	"github.com/xldiff/xldiff/align"
	"github.com/xldiff/xldiff/workbook"
)

// estimateGridViewBytes approximates the footprint of one GridView: the
// per-row and per-column metadata, the sorted cell index, and the hashing
// buffers. Estimates are deliberately coarse; they only gate whether an
// advanced stage is attempted at all.
func estimateGridViewBytes(g *workbook.Grid) uint64 {
	nrows := uint64(g.NRows)
	ncols := uint64(g.NCols)
	cells := uint64(g.CellCount())

	rowStats := nrows * uint64(unsafe.Sizeof(workbook.RowStats{}))
	colStats := ncols * uint64(unsafe.Sizeof(workbook.ColStats{}))
	colSigs := ncols * uint64(unsafe.Sizeof(workbook.Sig128{}))
	cellIndex := cells * uint64(unsafe.Sizeof(uintptr(0)))
	rowSlices := nrows * uint64(unsafe.Sizeof([]*workbook.Cell{}))
	// One 128-bit hasher per column during the build.
	hashers := ncols * 64

	return rowStats + colStats + colSigs + cellIndex + rowSlices + hashers
}

// estimateAlignmentBytes approximates the advanced sheet diff peak: both
// grid views plus alignment metadata, frequency tables and pile buffers.
func estimateAlignmentBytes(old, new *workbook.Grid) uint64 {
	base := estimateGridViewBytes(old) + estimateGridViewBytes(new)

	maxRows := uint64(old.NRows)
	if uint64(new.NRows) > maxRows {
		maxRows = uint64(new.NRows)
	}
	maxCols := uint64(old.NCols)
	if uint64(new.NCols) > maxCols {
		maxCols = uint64(new.NCols)
	}

	meta := (maxRows + maxCols) * 2 * uint64(unsafe.Sizeof(align.RowMeta{}))
	tables := (maxRows + maxCols) * 2 * 48 // hash table entry overhead
	piles := (maxRows + maxCols) * 8 * 4   // LIS piles, predecessors, gap scratch

	return base + meta + tables + piles
}
