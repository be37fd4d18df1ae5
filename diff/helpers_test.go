package diff

import (
	"testing"

	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	return pool.New()
}

func numberGridFromRows(rows [][]float64) *workbook.Grid {
	nrows := uint32(len(rows))
	ncols := uint32(0)
	for _, row := range rows {
		if uint32(len(row)) > ncols {
			ncols = uint32(len(row))
		}
	}
	g := workbook.NewGrid(nrows, ncols)
	for r, row := range rows {
		for c, val := range row {
			g.Insert(&workbook.Cell{
				Row: uint32(r), Col: uint32(c),
				Value: workbook.NumberValue(val),
			})
		}
	}
	return g
}
