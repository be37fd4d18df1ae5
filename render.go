package xldiff

import (
	"fmt"
	"io"

	"github.com/xldiff/xldiff/diff"
	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

// renderText prints a report for humans. With gitDiff set, the output
// follows the unified-diff framing Git textconv drivers expect, so the
// tool can serve as a .gitattributes diff driver for workbook files.
func renderText(out io.Writer, report *diff.Report, p *pool.Pool, gitDiff bool, oldFile, newFile string) {
	if gitDiff {
		fmt.Fprintf(out, "--- %s\n+++ %s\n", oldFile, newFile)
	}

	if len(report.Ops) == 0 {
		if !gitDiff {
			fmt.Fprintln(out, "No changes.")
		}
		return
	}

	resolve := func(id pool.ID) string { return p.Resolve(id) }

	for _, op := range report.Ops {
		switch o := op.(type) {
		case diff.SheetAdded:
			fmt.Fprintf(out, "+ sheet %s\n", resolve(o.Sheet))
		case diff.SheetRemoved:
			fmt.Fprintf(out, "- sheet %s\n", resolve(o.Sheet))
		case diff.RowAdded:
			fmt.Fprintf(out, "+ %s: row %d\n", resolve(o.Sheet), o.RowIdx+1)
		case diff.RowRemoved:
			fmt.Fprintf(out, "- %s: row %d\n", resolve(o.Sheet), o.RowIdx+1)
		case diff.ColumnAdded:
			fmt.Fprintf(out, "+ %s: column %s\n", resolve(o.Sheet), columnLabel(o.ColIdx))
		case diff.ColumnRemoved:
			fmt.Fprintf(out, "- %s: column %s\n", resolve(o.Sheet), columnLabel(o.ColIdx))
		case diff.BlockMovedRows:
			fmt.Fprintf(out, "~ %s: rows %d-%d moved to %d\n",
				resolve(o.Sheet), o.SrcStartRow+1, o.SrcStartRow+o.RowCount, o.DstStartRow+1)
		case diff.BlockMovedColumns:
			fmt.Fprintf(out, "~ %s: columns %s-%s moved to %s\n",
				resolve(o.Sheet), columnLabel(o.SrcStartCol),
				columnLabel(o.SrcStartCol+o.ColCount-1), columnLabel(o.DstStartCol))
		case diff.CellEdited:
			fmt.Fprintf(out, "~ %s!%s: %s -> %s",
				resolve(o.Sheet), o.Addr,
				renderSnapshot(o.From, p), renderSnapshot(o.To, p))
			if o.Formula != diff.FormulaUnchanged && o.Formula != diff.FormulaUnknown {
				fmt.Fprintf(out, " [%s]", o.Formula)
			}
			fmt.Fprintln(out)
		case diff.RowReplaced:
			fmt.Fprintf(out, "~ %s: row %d replaced (was row %d)\n",
				resolve(o.Sheet), o.NewRowIdx+1, o.OldRowIdx+1)
		case diff.QueryAdded:
			fmt.Fprintf(out, "+ query %s\n", resolve(o.Name))
		case diff.QueryRemoved:
			fmt.Fprintf(out, "- query %s\n", resolve(o.Name))
		case diff.QueryRenamed:
			fmt.Fprintf(out, "~ query %s renamed to %s\n", resolve(o.From), resolve(o.To))
		case diff.QueryDefinitionChanged:
			fmt.Fprintf(out, "~ query %s definition changed (%s)\n", resolve(o.Name), o.ChangeKind)
			for _, step := range o.Steps {
				fmt.Fprintf(out, "    %s %s", step.Kind, step.Name)
				if len(step.Details) > 0 {
					fmt.Fprintf(out, " %v", step.Details)
				}
				fmt.Fprintln(out)
			}
		case diff.QueryMetadataChanged:
			fmt.Fprintf(out, "~ query %s metadata changed\n", resolve(o.Name))
		case diff.MeasureAdded:
			fmt.Fprintf(out, "+ measure %s\n", resolve(o.Name))
		case diff.MeasureRemoved:
			fmt.Fprintf(out, "- measure %s\n", resolve(o.Name))
		case diff.MeasureDefinitionChanged:
			fmt.Fprintf(out, "~ measure %s definition changed\n", resolve(o.Name))
		default:
			fmt.Fprintf(out, "? %s\n", op.OpKind())
		}
	}

	if !report.Complete {
		fmt.Fprintln(out, "! report incomplete:")
		for _, warning := range report.Warnings {
			fmt.Fprintf(out, "!   %s\n", warning)
		}
	}
}

func renderSnapshot(s diff.CellSnapshotJSON, p *pool.Pool) string {
	if s.Formula != nil {
		return "=" + p.Resolve(*s.Formula)
	}
	if s.Value == nil {
		return "(empty)"
	}
	switch s.Value.Kind {
	case "number":
		return fmt.Sprintf("%v", *s.Value.Number)
	case "text":
		return fmt.Sprintf("%q", p.Resolve(*s.Value.Text))
	case "bool":
		if *s.Value.Bool {
			return "TRUE"
		}
		return "FALSE"
	}
	return "(empty)"
}

func columnLabel(col uint32) string {
	addr := workbook.IndexToAddress(0, col)
	return addr[:len(addr)-1]
}
