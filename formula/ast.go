// Package formula parses Excel formulas into an expression tree and
// compares them semantically: modulo formatting, modulo commutativity of
// selected operators and functions, and modulo a constant row/column shift
// (the "fill-down" pattern).
package formula

import (
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Expr is a formula AST node. Trees are immutable after parsing except
// through Canonicalize, which returns rewritten copies.
type Expr interface {
	exprNode()
}

type Number struct {
	Value float64
}

type Text struct {
	Value string
}

type Boolean struct {
	Value bool
}

// ErrLiteral is an Excel error literal such as #DIV/0! or #N/A.
type ErrLiteral struct {
	Code string
}

// RefKind distinguishes the addressing forms a row or column part can take.
type RefKind uint8

const (
	// Relative A1 references ("A1"); Index is 1-based.
	Relative RefKind = iota
	// Absolute A1 references ("$A$1"); Index is 1-based.
	Absolute
	// Offset R1C1 references ("R[1]C[-1]"); Index is the signed offset.
	Offset
)

// RefPart is one axis of a cell reference.
type RefPart struct {
	Kind  RefKind
	Index int64
}

// CellRef is a single-cell reference, optionally sheet-qualified, with an
// optional spill suffix ("A1#").
type CellRef struct {
	Sheet string
	Row   RefPart
	Col   RefPart
	Spill bool
}

// RangeRef is a rectangular range.
type RangeRef struct {
	Sheet string
	Start CellRef
	End   CellRef
}

// NameRef is a defined name or table reference left unresolved.
type NameRef struct {
	Name string
}

type FunctionCall struct {
	Name string
	Args []Expr
}

// Array is a literal like {1,2;3,4}: rows of columns.
type Array struct {
	Rows [][]Expr
}

type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
}

type UnaryOp struct {
	Op      string
	Operand Expr
}

func (Number) exprNode()       {}
func (Text) exprNode()         {}
func (Boolean) exprNode()      {}
func (ErrLiteral) exprNode()   {}
func (CellRef) exprNode()      {}
func (RangeRef) exprNode()     {}
func (NameRef) exprNode()      {}
func (FunctionCall) exprNode() {}
func (Array) exprNode()        {}
func (BinaryOp) exprNode()     {}
func (UnaryOp) exprNode()      {}

// Equal reports structural equality of two expression trees.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case Number:
		y, ok := b.(Number)
		return ok && math.Float64bits(x.Value) == math.Float64bits(y.Value)
	case Text:
		y, ok := b.(Text)
		return ok && x.Value == y.Value
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x.Value == y.Value
	case ErrLiteral:
		y, ok := b.(ErrLiteral)
		return ok && x.Code == y.Code
	case CellRef:
		y, ok := b.(CellRef)
		return ok && x == y
	case RangeRef:
		y, ok := b.(RangeRef)
		return ok && x == y
	case NameRef:
		y, ok := b.(NameRef)
		return ok && x.Name == y.Name
	case FunctionCall:
		y, ok := b.(FunctionCall)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case Array:
		y, ok := b.(Array)
		if !ok || len(x.Rows) != len(y.Rows) {
			return false
		}
		for i := range x.Rows {
			if len(x.Rows[i]) != len(y.Rows[i]) {
				return false
			}
			for j := range x.Rows[i] {
				if !Equal(x.Rows[i][j], y.Rows[i][j]) {
					return false
				}
			}
		}
		return true
	case BinaryOp:
		y, ok := b.(BinaryOp)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case UnaryOp:
		y, ok := b.(UnaryOp)
		return ok && x.Op == y.Op && Equal(x.Operand, y.Operand)
	}
	return false
}

// Hash returns a structural 64-bit digest, used as the stable sort key when
// ordering commutative operands.
func Hash(e Expr) uint64 {
	var sb strings.Builder
	writeHashString(&sb, e)
	return xxhash.Sum64String(sb.String())
}

func writeHashString(sb *strings.Builder, e Expr) {
	switch x := e.(type) {
	case Number:
		sb.WriteString("n:")
		sb.WriteString(strconv.FormatUint(math.Float64bits(x.Value), 16))
	case Text:
		sb.WriteString("t:")
		sb.WriteString(strconv.Itoa(len(x.Value)))
		sb.WriteByte(':')
		sb.WriteString(x.Value)
	case Boolean:
		if x.Value {
			sb.WriteString("b:1")
		} else {
			sb.WriteString("b:0")
		}
	case ErrLiteral:
		sb.WriteString("e:")
		sb.WriteString(x.Code)
	case CellRef:
		sb.WriteString("c:")
		sb.WriteString(x.Sheet)
		sb.WriteByte('!')
		writeRefPart(sb, x.Row)
		writeRefPart(sb, x.Col)
		if x.Spill {
			sb.WriteByte('#')
		}
	case RangeRef:
		sb.WriteString("r:")
		sb.WriteString(x.Sheet)
		sb.WriteByte('!')
		writeHashString(sb, x.Start)
		sb.WriteByte(':')
		writeHashString(sb, x.End)
	case NameRef:
		sb.WriteString("m:")
		sb.WriteString(x.Name)
	case FunctionCall:
		sb.WriteString("f:")
		sb.WriteString(x.Name)
		sb.WriteByte('(')
		for i, arg := range x.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeHashString(sb, arg)
		}
		sb.WriteByte(')')
	case Array:
		sb.WriteString("a:{")
		for i, row := range x.Rows {
			if i > 0 {
				sb.WriteByte(';')
			}
			for j, item := range row {
				if j > 0 {
					sb.WriteByte(',')
				}
				writeHashString(sb, item)
			}
		}
		sb.WriteByte('}')
	case BinaryOp:
		sb.WriteString("o:")
		sb.WriteString(x.Op)
		sb.WriteByte('(')
		writeHashString(sb, x.Left)
		sb.WriteByte(',')
		writeHashString(sb, x.Right)
		sb.WriteByte(')')
	case UnaryOp:
		sb.WriteString("u:")
		sb.WriteString(x.Op)
		sb.WriteByte('(')
		writeHashString(sb, x.Operand)
		sb.WriteByte(')')
	}
}

func writeRefPart(sb *strings.Builder, p RefPart) {
	switch p.Kind {
	case Relative:
		sb.WriteByte('~')
	case Absolute:
		sb.WriteByte('$')
	case Offset:
		sb.WriteByte('@')
	}
	sb.WriteString(strconv.FormatInt(p.Index, 10))
}
