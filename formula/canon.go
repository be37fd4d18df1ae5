package formula

import (
	"sort"
	"strings"
)

// commutativeOps are the binary operators whose operand order is not
// significant.
var commutativeOps = map[string]bool{
	"+": true,
	"*": true,
}

// commutativeFunctions are the calls whose argument order is not
// significant.
var commutativeFunctions = map[string]bool{
	"SUM":     true,
	"PRODUCT": true,
	"AND":     true,
	"OR":      true,
	"MIN":     true,
	"MAX":     true,
	"COUNT":   true,
}

// Canonicalize rewrites an expression into its canonical form: commutative
// operand chains are flattened and sorted by structural hash, function
// names and literals are case-folded, and range endpoints are normalized so
// the start never exceeds the end. The input tree is not modified.
func Canonicalize(e Expr) Expr {
	switch x := e.(type) {
	case Number, Text, Boolean, NameRef, CellRef:
		return e
	case ErrLiteral:
		return ErrLiteral{Code: strings.ToUpper(x.Code)}
	case RangeRef:
		return normalizeRange(x)
	case UnaryOp:
		return UnaryOp{Op: x.Op, Operand: Canonicalize(x.Operand)}
	case Array:
		rows := make([][]Expr, len(x.Rows))
		for i, row := range x.Rows {
			rows[i] = make([]Expr, len(row))
			for j, item := range row {
				rows[i][j] = Canonicalize(item)
			}
		}
		return Array{Rows: rows}
	case FunctionCall:
		name := strings.ToUpper(x.Name)
		args := make([]Expr, len(x.Args))
		for i, arg := range x.Args {
			args[i] = Canonicalize(arg)
		}
		if commutativeFunctions[name] {
			sortByHash(args)
		}
		return FunctionCall{Name: name, Args: args}
	case BinaryOp:
		if !commutativeOps[x.Op] {
			return BinaryOp{Op: x.Op, Left: Canonicalize(x.Left), Right: Canonicalize(x.Right)}
		}
		operands := flattenCommutative(x.Op, e)
		for i := range operands {
			operands[i] = Canonicalize(operands[i])
		}
		sortByHash(operands)
		return rebuildLeftAssoc(x.Op, operands)
	}
	return e
}

// flattenCommutative collects the operand chain of one commutative operator,
// so A+(B+C) and (A+B)+C contribute the same multiset.
func flattenCommutative(op string, e Expr) []Expr {
	if bin, ok := e.(BinaryOp); ok && bin.Op == op {
		return append(flattenCommutative(op, bin.Left), flattenCommutative(op, bin.Right)...)
	}
	return []Expr{e}
}

func rebuildLeftAssoc(op string, operands []Expr) Expr {
	acc := operands[0]
	for _, operand := range operands[1:] {
		acc = BinaryOp{Op: op, Left: acc, Right: operand}
	}
	return acc
}

func sortByHash(exprs []Expr) {
	sort.SliceStable(exprs, func(i, j int) bool {
		return Hash(exprs[i]) < Hash(exprs[j])
	})
}

// normalizeRange orders the endpoints so the start is the top-left corner.
// Axis ordering compares the numeric index regardless of addressing kind.
func normalizeRange(r RangeRef) RangeRef {
	start := r.Start
	end := r.End
	if start.Row.Index > end.Row.Index {
		start.Row, end.Row = end.Row, start.Row
	}
	if start.Col.Index > end.Col.Index {
		start.Col, end.Col = end.Col, start.Col
	}
	return RangeRef{Sheet: r.Sheet, Start: start, End: end}
}
