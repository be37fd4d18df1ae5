package formula

// ShiftRelative returns a copy of e with every relative reference moved by
// (dRow, dCol). Absolute parts and R1C1 offsets are untouched: an offset is
// position-independent already, which is exactly why filled-down R1C1
// formulas compare equal without any shift.
func ShiftRelative(e Expr, dRow, dCol int64) Expr {
	switch x := e.(type) {
	case CellRef:
		return shiftCellRef(x, dRow, dCol)
	case RangeRef:
		return RangeRef{
			Sheet: x.Sheet,
			Start: shiftCellRef(x.Start, dRow, dCol),
			End:   shiftCellRef(x.End, dRow, dCol),
		}
	case FunctionCall:
		args := make([]Expr, len(x.Args))
		for i, arg := range x.Args {
			args[i] = ShiftRelative(arg, dRow, dCol)
		}
		return FunctionCall{Name: x.Name, Args: args}
	case Array:
		rows := make([][]Expr, len(x.Rows))
		for i, row := range x.Rows {
			rows[i] = make([]Expr, len(row))
			for j, item := range row {
				rows[i][j] = ShiftRelative(item, dRow, dCol)
			}
		}
		return Array{Rows: rows}
	case BinaryOp:
		return BinaryOp{
			Op:    x.Op,
			Left:  ShiftRelative(x.Left, dRow, dCol),
			Right: ShiftRelative(x.Right, dRow, dCol),
		}
	case UnaryOp:
		return UnaryOp{Op: x.Op, Operand: ShiftRelative(x.Operand, dRow, dCol)}
	}
	return e
}

func shiftCellRef(ref CellRef, dRow, dCol int64) CellRef {
	if ref.Row.Kind == Relative {
		ref.Row.Index += dRow
	}
	if ref.Col.Kind == Relative {
		ref.Col.Index += dCol
	}
	return ref
}

// EquivalentModuloShift reports whether substituting (row+dRow, col+dCol)
// into every relative reference of old yields new. The comparison runs on
// the pre-canonicalized trees; a caller that also wants commutative
// tolerance canonicalizes both sides first.
func EquivalentModuloShift(old, new Expr, dRow, dCol int64) bool {
	if dRow == 0 && dCol == 0 {
		return false
	}
	return Equal(ShiftRelative(old, dRow, dCol), new)
}
