package workbook

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"
)

// sigSeed salts every signature hash. Fixed so that signatures are stable
// across processes and sessions.
const sigSeed uint32 = 0x9e3779b9

// Sig128 is a 128-bit content signature for a row or column. With 128 bits,
// accidental collision is negligible, but move suppression still verifies
// cell identity before trusting signature equality.
type Sig128 struct {
	Hi uint64
	Lo uint64
}

// Hash64 folds the signature to 64 bits for compact op payloads.
func (s Sig128) Hash64() uint64 {
	return s.Hi ^ s.Lo
}

// IsZero reports the signature of an all-empty slice.
func (s Sig128) IsZero() bool {
	return s.Hi == 0 && s.Lo == 0
}

// Cell record tags fed into the signature hash. Formula takes precedence
// over value: a cached evaluation result is excluded when its formula is
// present.
const (
	sigTagNumber byte = iota + 1
	sigTagText
	sigTagBool
	sigTagFormula
)

type sigHasher struct {
	h     murmur3.Hash128
	buf   [16]byte
	wrote bool
}

func newSigHasher() *sigHasher {
	return &sigHasher{h: murmur3.New128WithSeed(sigSeed)}
}

// writeCell appends one (index, tag, payload) record. idx is the column
// index for row signatures and the row index for column signatures.
func (s *sigHasher) writeCell(idx uint32, cell *Cell) {
	binary.LittleEndian.PutUint32(s.buf[:4], idx)

	switch {
	case cell.Formula != nil:
		s.buf[4] = sigTagFormula
		binary.LittleEndian.PutUint32(s.buf[5:9], uint32(*cell.Formula))
		s.h.Write(s.buf[:9])
		s.wrote = true
	case cell.Value == nil:
		// Blank cell with no formula: contributes nothing.
	case cell.Value.Kind == KindNumber:
		s.buf[4] = sigTagNumber
		binary.LittleEndian.PutUint64(s.buf[5:13], math.Float64bits(cell.Value.Number))
		s.h.Write(s.buf[:13])
		s.wrote = true
	case cell.Value.Kind == KindText:
		s.buf[4] = sigTagText
		binary.LittleEndian.PutUint32(s.buf[5:9], uint32(cell.Value.Text))
		s.h.Write(s.buf[:9])
		s.wrote = true
	case cell.Value.Kind == KindBool:
		s.buf[4] = sigTagBool
		if cell.Value.Bool {
			s.buf[5] = 1
		} else {
			s.buf[5] = 0
		}
		s.h.Write(s.buf[:6])
		s.wrote = true
	}
}

// sum returns the accumulated signature. A slice with no hashed content has
// the zero signature, which doubles as the "blank" sentinel.
func (s *sigHasher) sum() Sig128 {
	if !s.wrote {
		return Sig128{}
	}
	hi, lo := s.h.Sum128()
	return Sig128{Hi: hi, Lo: lo}
}

// RowSignature hashes the non-empty cells of row in ascending column order.
func (g *Grid) RowSignature(row uint32) Sig128 {
	h := newSigHasher()
	for col := uint32(0); col < g.NCols; col++ {
		if cell := g.Get(row, col); cell != nil {
			h.writeCell(col, cell)
		}
	}
	return h.sum()
}

// MappedRowSignature hashes row over the given columns only, renumbering
// each column to its position in cols. Two rows whose content agrees on a
// matched column mapping hash identically even when the mapping shifts
// column positions, which is what keeps row alignment stable across column
// insertions and removals.
func (g *Grid) MappedRowSignature(row uint32, cols []uint32) Sig128 {
	h := newSigHasher()
	for i, col := range cols {
		if cell := g.Get(row, col); cell != nil {
			h.writeCell(uint32(i), cell)
		}
	}
	return h.sum()
}

// ColSignature hashes the non-empty cells of col in ascending row order.
func (g *Grid) ColSignature(col uint32) Sig128 {
	h := newSigHasher()
	for row := uint32(0); row < g.NRows; row++ {
		if cell := g.Get(row, col); cell != nil {
			h.writeCell(row, cell)
		}
	}
	return h.sum()
}
