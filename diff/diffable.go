package diff

import (
	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/workbook"
)

// Context is the shared state component-level diffs run under: one string
// pool and one configuration. Only the goroutine that owns the context may
// intern; the engine upholds that internally.
type Context struct {
	Pool   *pool.Pool
	Config *Config
}

// NewContext builds a diff context over an existing pool.
func NewContext(p *pool.Pool, cfg *Config) *Context {
	return &Context{Pool: p, Config: cfg}
}

// Workbooks diffs two full workbooks under this context.
func (c *Context) Workbooks(old, new *workbook.Workbook) *Report {
	return Workbooks(old, new, c.Pool, c.Config)
}

// Sheets diffs a single sheet pair without standing up a whole workbook
// run.
func (c *Context) Sheets(old, new *workbook.Sheet) *Report {
	oldWb := &workbook.Workbook{Sheets: []workbook.Sheet{*old}}
	newWb := &workbook.Workbook{Sheets: []workbook.Sheet{*new}}
	return Workbooks(oldWb, newWb, c.Pool, c.Config)
}

// Grids diffs two bare grids as an anonymous sheet pair.
func (c *Context) Grids(old, new *workbook.Grid) *Report {
	name := c.Pool.Intern("")
	oldWb := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: name, Grid: old}}}
	newWb := &workbook.Workbook{Sheets: []workbook.Sheet{{Name: name, Grid: new}}}
	return Workbooks(oldWb, newWb, c.Pool, c.Config)
}

// GridsDatabaseMode runs keyed alignment under this context.
func (c *Context) GridsDatabaseMode(old, new *workbook.Grid, keyColumns []uint32) *Report {
	return GridsDatabaseMode(old, new, keyColumns, c.Pool, c.Config)
}
