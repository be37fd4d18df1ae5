package xldiff

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

// The CLI consumes workbook documents: the JSON form the container
// loaders (spreadsheet packages, PBIX projects) emit after parsing. The
// engine itself never touches files.

type documentCell struct {
	Row     uint32   `json:"row"`
	Col     uint32   `json:"col"`
	Number  *float64 `json:"number,omitempty"`
	Text    *string  `json:"text,omitempty"`
	Bool    *bool    `json:"bool,omitempty"`
	Formula *string  `json:"formula,omitempty"`
}

type documentSheet struct {
	Name  string         `json:"name"`
	Kind  string         `json:"kind,omitempty"`
	NRows uint32         `json:"nrows"`
	NCols uint32         `json:"ncols"`
	Dense bool           `json:"dense,omitempty"`
	Cells []documentCell `json:"cells"`
}

type documentQuery struct {
	Name        string `json:"name"`
	Expression  string `json:"expression"`
	IsShared    bool   `json:"is_shared,omitempty"`
	LoadToSheet bool   `json:"load_to_sheet,omitempty"`
	LoadToModel bool   `json:"load_to_model,omitempty"`
}

type documentMeasure struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

type document struct {
	Sheets   []documentSheet   `json:"sheets"`
	Queries  []documentQuery   `json:"queries,omitempty"`
	Measures []documentMeasure `json:"measures,omitempty"`
}

// LoadWorkbook reads a workbook document file, interning all text into p.
func LoadWorkbook(path string, p *pool.Pool) (*workbook.Workbook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing workbook document %s: %w", path, err)
	}
	return buildWorkbook(&doc, p)
}

func buildWorkbook(doc *document, p *pool.Pool) (*workbook.Workbook, error) {
	wb := &workbook.Workbook{}

	for _, ds := range doc.Sheets {
		nrows, ncols := ds.NRows, ds.NCols
		for _, cell := range ds.Cells {
			if cell.Row >= nrows {
				nrows = cell.Row + 1
			}
			if cell.Col >= ncols {
				ncols = cell.Col + 1
			}
		}

		var grid *workbook.Grid
		if ds.Dense {
			grid = workbook.NewDenseGrid(nrows, ncols)
		} else {
			grid = workbook.NewGrid(nrows, ncols)
		}

		for _, dc := range ds.Cells {
			cell := &workbook.Cell{Row: dc.Row, Col: dc.Col}
			switch {
			case dc.Number != nil:
				cell.Value = workbook.NumberValue(*dc.Number)
			case dc.Text != nil:
				cell.Value = workbook.TextValue(p.Intern(*dc.Text))
			case dc.Bool != nil:
				cell.Value = workbook.BoolValue(*dc.Bool)
			}
			if dc.Formula != nil {
				id := p.Intern(*dc.Formula)
				cell.Formula = &id
			}
			if cell.Value == nil && cell.Formula == nil {
				continue
			}
			grid.Insert(cell)
		}

		wb.Sheets = append(wb.Sheets, workbook.Sheet{
			Name: p.Intern(ds.Name),
			Kind: sheetKind(ds.Kind),
			Grid: grid,
		})
	}

	for _, dq := range doc.Queries {
		section, member := splitQueryName(dq.Name)
		wb.Queries = append(wb.Queries, workbook.Query{
			Name:        dq.Name,
			Section:     section,
			Member:      member,
			Expression:  dq.Expression,
			IsShared:    dq.IsShared,
			LoadToSheet: dq.LoadToSheet,
			LoadToModel: dq.LoadToModel,
		})
	}

	if len(doc.Measures) > 0 {
		model := &workbook.Model{}
		for _, dm := range doc.Measures {
			model.Measures = append(model.Measures, workbook.Measure{
				Name:       dm.Name,
				Expression: dm.Expression,
			})
		}
		wb.Model = model
	}

	return wb, nil
}

func sheetKind(kind string) workbook.SheetKind {
	switch strings.ToLower(kind) {
	case "", "worksheet":
		return workbook.Worksheet
	case "chartsheet":
		return workbook.Chartsheet
	case "dialogsheet":
		return workbook.Dialogsheet
	case "macrosheet":
		return workbook.MacroSheet
	}
	return workbook.Worksheet
}

func splitQueryName(name string) (section, member string) {
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}
