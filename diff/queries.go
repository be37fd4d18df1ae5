package diff

import (
	"github.com/xldiff/xldiff/mquery"
	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

// diffWorkbookQueries compares embedded Power Query definitions and maps
// the changes to ops, interning every referenced name. Runs on the
// orchestrator goroutine before the stream header is written.
func diffWorkbookQueries(old, new *workbook.Workbook, p *pool.Pool) []Op {
	if len(old.Queries) == 0 && len(new.Queries) == 0 {
		return nil
	}

	changes := mquery.DiffQueries(toMQueries(old.Queries), toMQueries(new.Queries))
	ops := make([]Op, 0, len(changes))
	for _, change := range changes {
		switch change.Kind {
		case mquery.QueryAdded:
			ops = append(ops, QueryAdded{Name: p.Intern(change.Name)})
		case mquery.QueryRemoved:
			ops = append(ops, QueryRemoved{Name: p.Intern(change.Name)})
		case mquery.QueryRenamed:
			ops = append(ops, QueryRenamed{
				From: p.Intern(change.Name),
				To:   p.Intern(change.NewName),
			})
		case mquery.QueryDefinitionChanged:
			ops = append(ops, QueryDefinitionChanged{
				Name:       p.Intern(change.Name),
				ChangeKind: change.DefinitionKind.String(),
				Steps:      stepChangesToJSON(change.Steps),
			})
		case mquery.QueryMetadataChanged:
			ops = append(ops, QueryMetadataChanged{Name: p.Intern(change.Name)})
		}
	}
	return ops
}

func toMQueries(queries []workbook.Query) []mquery.Query {
	out := make([]mquery.Query, len(queries))
	for i, q := range queries {
		out[i] = mquery.Query{
			Name:        q.Name,
			Expression:  q.Expression,
			LoadToSheet: q.LoadToSheet,
			LoadToModel: q.LoadToModel,
		}
	}
	return out
}
