package diff

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

// diffWorkbookMeasures compares the embedded tabular models at measure
// level. Definition changes carry content hashes rather than the full DAX
// text; the expressions themselves can be large and rarely matter to
// consumers beyond "changed".
func diffWorkbookMeasures(old, new *workbook.Workbook, p *pool.Pool) []Op {
	oldMeasures := modelMeasures(old.Model)
	newMeasures := modelMeasures(new.Model)
	if len(oldMeasures) == 0 && len(newMeasures) == 0 {
		return nil
	}

	names := make(map[string]struct{}, len(oldMeasures)+len(newMeasures))
	for name := range oldMeasures {
		names[name] = struct{}{}
	}
	for name := range newMeasures {
		names[name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var ops []Op
	for _, name := range sorted {
		oldExpr, inOld := oldMeasures[name]
		newExpr, inNew := newMeasures[name]
		switch {
		case inOld && !inNew:
			ops = append(ops, MeasureRemoved{Name: p.Intern(name)})
		case !inOld && inNew:
			ops = append(ops, MeasureAdded{Name: p.Intern(name)})
		case oldExpr != newExpr:
			ops = append(ops, MeasureDefinitionChanged{
				Name:    p.Intern(name),
				OldHash: xxhash.Sum64String(oldExpr),
				NewHash: xxhash.Sum64String(newExpr),
			})
		}
	}
	return ops
}

func modelMeasures(m *workbook.Model) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m.Measures))
	for _, measure := range m.Measures {
		out[measure.Name] = measure.Expression
	}
	return out
}
