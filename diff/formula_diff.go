package diff

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xldiff/xldiff/formula"
	"github.com/xldiff/xldiff/pool"
)

const formulaCacheSize = 4096

// formulaCache memoizes parse and canonicalization results per interned
// formula ID. Each sheet differ owns its own cache, so it is accessed
// single-threaded.
type formulaCache struct {
	parsed    *lru.Cache[pool.ID, formula.Expr]
	canonical *lru.Cache[pool.ID, formula.Expr]
}

func newFormulaCache() *formulaCache {
	parsed, _ := lru.New[pool.ID, formula.Expr](formulaCacheSize)
	canonical, _ := lru.New[pool.ID, formula.Expr](formulaCacheSize)
	return &formulaCache{parsed: parsed, canonical: canonical}
}

// parse returns the cached AST for id, or nil when the text does not parse.
// Parse failures are cached as nil entries too, so a bad formula costs one
// attempt per session.
func (c *formulaCache) parse(p *pool.Pool, id pool.ID) formula.Expr {
	if expr, ok := c.parsed.Get(id); ok {
		return expr
	}
	expr, err := formula.Parse(p.Resolve(id))
	if err != nil {
		expr = nil
	}
	c.parsed.Add(id, expr)
	return expr
}

func (c *formulaCache) canon(p *pool.Pool, id pool.ID) formula.Expr {
	if expr, ok := c.canonical.Get(id); ok {
		return expr
	}
	var canon formula.Expr
	if parsed := c.parse(p, id); parsed != nil {
		canon = formula.Canonicalize(parsed)
	}
	c.canonical.Add(id, canon)
	return canon
}

// classifyFormulaChange runs the classification ladder over a cell's old
// and new formula IDs. rowShift/colShift is the positional delta of the
// aligned cell pair, used for the fill-down test.
func classifyFormulaChange(p *pool.Pool, cache *formulaCache, old, new *pool.ID, rowShift, colShift int64, cfg *Config) FormulaDiffResult {
	switch {
	case old == nil && new == nil:
		return FormulaUnchanged
	case old == nil:
		return FormulaAdded
	case new == nil:
		return FormulaRemoved
	case *old == *new:
		return FormulaUnchanged
	}

	if !cfg.EnableFormulaSemanticDiff {
		return FormulaTextChange
	}

	oldAst := cache.parse(p, *old)
	newAst := cache.parse(p, *new)
	if oldAst == nil || newAst == nil {
		return FormulaTextChange
	}

	oldCanon := cache.canon(p, *old)
	newCanon := cache.canon(p, *new)
	if formula.Equal(oldCanon, newCanon) {
		return FormulaFormattingOnly
	}

	// The shift test runs on the pre-canonicalized trees: a formula that
	// was both shifted and commutatively reordered reads as a semantic
	// change, not a fill.
	if rowShift != 0 || colShift != 0 {
		if formula.EquivalentModuloShift(oldAst, newAst, rowShift, colShift) {
			return FormulaFilled
		}
	}

	return FormulaSemanticChange
}
