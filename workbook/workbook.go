package workbook

import "github.com/xldiff/xldiff/pool"

// SheetKind mirrors the sheet types a workbook container can hold.
type SheetKind uint8

const (
	Worksheet SheetKind = iota
	Chartsheet
	Dialogsheet
	MacroSheet
)

func (k SheetKind) String() string {
	switch k {
	case Worksheet:
		return "worksheet"
	case Chartsheet:
		return "chartsheet"
	case Dialogsheet:
		return "dialogsheet"
	case MacroSheet:
		return "macrosheet"
	}
	return "unknown"
}

// Sheet is a named grid.
type Sheet struct {
	Name pool.ID
	Kind SheetKind
	Grid *Grid
}

// Query is one Power Query section member together with the load metadata
// joined from the container's metadata part.
type Query struct {
	// Name is the full item path, e.g. "Section1/Sales".
	Name string
	// Section and Member are the split halves of Name.
	Section string
	Member  string
	// Expression is the raw M source of the member.
	Expression string
	IsShared   bool

	LoadToSheet bool
	LoadToModel bool
}

// Measure is one tabular-model measure.
type Measure struct {
	Name       string
	Expression string
}

// Model is the minimal tabular-model IR carried for measure diffing.
type Model struct {
	Measures []Measure
}

// Workbook is the parsed document the diff engine receives from a container
// loader: ordered sheets plus optional embedded queries and model.
type Workbook struct {
	Sheets  []Sheet
	Queries []Query
	Model   *Model
}

// SheetByName returns the sheet whose interned name resolves to name.
func (w *Workbook) SheetByName(p *pool.Pool, name string) *Sheet {
	for i := range w.Sheets {
		if p.Resolve(w.Sheets[i].Name) == name {
			return &w.Sheets[i]
		}
	}
	return nil
}
