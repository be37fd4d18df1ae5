package diff

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

// GridsDatabaseMode aligns two grids by composite key instead of position:
// rows pair up by the typed values in keyColumns, so tabular data diffs
// cleanly regardless of row order. Non-key cells of matched pairs diff
// cell-wise; keys present on only one side become row adds/removes.
//
// Duplicate keys on either side make keyed alignment ambiguous; the run
// falls back to positional diffing with a warning.
func GridsDatabaseMode(old, new *workbook.Grid, keyColumns []uint32, p *pool.Pool, cfg *Config) *Report {
	collector := &collectorSink{}
	summary := gridsDatabaseModeStreaming(old, new, keyColumns, p, cfg, collector)
	return &Report{
		Version:  SchemaVersion,
		Complete: summary.Complete,
		Warnings: summary.Warnings,
		Ops:      collector.ops,
		Strings:  p.Strings(),
	}
}

func gridsDatabaseModeStreaming(old, new *workbook.Grid, keyColumns []uint32, p *pool.Pool, cfg *Config, sink Sink) Summary {
	sheetID := p.Intern("")
	h := newHardening(cfg)

	d := &sheetDiffer{
		sheetID: sheetID,
		pool:    p,
		cfg:     cfg,
		cache:   newFormulaCache(),
		h:       h,
		oldGrid: old,
		newGrid: new,
	}

	run := func() {
		if len(keyColumns) == 0 {
			h.degraded = true
			h.warnf("database mode requires key columns; falling back to positional diff")
			d.positionalDiff()
			return
		}
		if !h.checkMemory("database-mode", estimateAlignmentBytes(old, new)) {
			if cfg.OnLimit == FallBack {
				d.positionalDiff()
			}
			return
		}

		oldKeys, oldDup := keyRows(old, keyColumns, p)
		newKeys, newDup := keyRows(new, keyColumns, p)
		if oldDup != "" || newDup != "" {
			dup := oldDup
			if dup == "" {
				dup = newDup
			}
			h.degraded = true
			h.warnf("duplicate key %q makes keyed alignment ambiguous; falling back to positional diff", dup)
			d.positionalDiff()
			return
		}

		d.oldView = workbook.NewGridView(old)
		d.newView = workbook.NewGridView(new)

		maxCols := old.NCols
		if new.NCols > maxCols {
			maxCols = new.NCols
		}
		cols := make([]uint32, maxCols)
		for i := range cols {
			cols[i] = uint32(i)
		}

		// Deterministic order: removes by old row, adds by new row, then
		// matched pairs by new row.
		newByKey := make(map[string]uint32, len(newKeys))
		for key, row := range newKeys {
			newByKey[key] = row
		}

		type pair struct{ oldRow, newRow uint32 }
		var matched []pair
		var removed []uint32
		for key, oldRow := range oldKeys {
			if newRow, ok := newByKey[key]; ok {
				matched = append(matched, pair{oldRow, newRow})
				delete(newByKey, key)
			} else {
				removed = append(removed, oldRow)
			}
		}
		var added []uint32
		for _, newRow := range newByKey {
			added = append(added, newRow)
		}

		sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
		sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
		sort.Slice(matched, func(i, j int) bool { return matched[i].newRow < matched[j].newRow })

		for _, row := range removed {
			sig := d.oldView.Rows[row].Sig.Hash64()
			d.ops = append(d.ops, RowRemoved{Sheet: sheetID, RowIdx: row, RowSig: &sig})
		}
		for _, row := range added {
			sig := d.newView.Rows[row].Sig.Hash64()
			d.ops = append(d.ops, RowAdded{Sheet: sheetID, RowIdx: row, RowSig: &sig})
		}

		stride := 0
		for _, pr := range matched {
			stride++
			if stride >= deadlinePollStride {
				stride = 0
				if !h.checkDeadline("database-mode") {
					return
				}
			}
			d.diffRowPair(pr.oldRow, pr.newRow, cols, cols)
		}
	}
	run()

	summary := Summary{Complete: !h.degraded, Warnings: h.warnings}
	if err := sink.Begin(p); err != nil {
		return summary
	}
	for _, op := range d.ops {
		if err := sink.Emit(op); err != nil {
			return summary
		}
		summary.OpCount++
	}
	_ = sink.Finish()
	return summary
}

// keyRows computes the composite key of every row. The second result names
// the first duplicated key, or empty when all keys are distinct. Rows that
// are entirely blank on the key columns are keyed by the empty composite
// like any other value.
func keyRows(g *workbook.Grid, keyColumns []uint32, p *pool.Pool) (map[string]uint32, string) {
	keys := make(map[string]uint32, g.NRows)
	for row := uint32(0); row < g.NRows; row++ {
		key := compositeKey(g, row, keyColumns, p)
		if _, ok := keys[key]; ok {
			return nil, key
		}
		keys[key] = row
	}
	return keys, ""
}

// compositeKey concatenates the typed key-cell values with tag prefixes so
// that the number 1 and the text "1" never collide.
func compositeKey(g *workbook.Grid, row uint32, keyColumns []uint32, p *pool.Pool) string {
	var sb strings.Builder
	for i, col := range keyColumns {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		cell := g.Get(row, col)
		if cell == nil || cell.Value == nil {
			sb.WriteByte('_')
			continue
		}
		switch cell.Value.Kind {
		case workbook.KindNumber:
			sb.WriteByte('n')
			sb.WriteString(strconv.FormatUint(math.Float64bits(cell.Value.Number), 16))
		case workbook.KindText:
			sb.WriteByte('t')
			sb.WriteString(p.Resolve(cell.Value.Text))
		case workbook.KindBool:
			if cell.Value.Bool {
				sb.WriteString("b1")
			} else {
				sb.WriteString("b0")
			}
		}
	}
	return sb.String()
}
