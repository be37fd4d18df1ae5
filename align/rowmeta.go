// Package align implements the adaptive row/column alignment pipeline:
// frequency classification, anchor discovery, LIS chain selection, gap
// strategies, block-move extraction and Hungarian residual pairing.
//
// The package is deliberately free of any dependency on the diff engine; it
// works on row metadata derived from grid views and receives its thresholds
// through Params. Columns are aligned with the same machinery by feeding
// column metadata through the row-shaped entry points.
package align

import "github.com/xldiff/xldiff/workbook"

// FrequencyClass grades a row's value as an alignment anchor.
type FrequencyClass uint8

const (
	// Unique rows appear exactly once on their side and make the best anchors.
	Unique FrequencyClass = iota
	// Rare rows appear a small number of times.
	Rare
	// Common rows appear too often to anchor anything.
	Common
	// LowInfo rows are blank or nearly blank and never act as anchors.
	LowInfo
)

func (c FrequencyClass) String() string {
	switch c {
	case Unique:
		return "unique"
	case Rare:
		return "rare"
	case Common:
		return "common"
	case LowInfo:
		return "low-info"
	}
	return "unknown"
}

// RowMeta is one row's alignment summary. Idx is the global row index on
// its own side; slices of RowMeta passed around the pipeline are always in
// ascending Idx order.
type RowMeta struct {
	Idx              uint32
	Sig              workbook.Sig128
	NonBlankCount    uint32
	FirstNonBlankCol uint32
	Class            FrequencyClass
	IsLowInfo        bool
}

// Params carries the alignment thresholds plus the two callbacks that keep
// this package independent of grid storage.
type Params struct {
	RareThreshold           uint32
	LowInfoThreshold        uint32
	SmallGapThreshold       uint32
	RecursiveAlignThreshold uint32
	MinMoveLength           uint32
	AssignmentCap           int
	AssignmentPadCost       int64

	// VerifyRows must report exact cell identity of an old row and a new
	// row. Signature equality alone is probabilistic; moves are only
	// emitted when identity holds. Nil trusts signatures.
	VerifyRows func(oldIdx, newIdx uint32) bool

	// RowCost scores pairing an old row with a new row for Hungarian
	// residual assignment. Costs at or above AssignmentPadCost mean "no
	// good match". Nil skips residual assignment: leftover rows stay
	// inserts and deletes.
	RowCost func(oldIdx, newIdx uint32) int64
}

// DefaultParams mirrors the engine's balanced preset.
func DefaultParams() Params {
	return Params{
		RareThreshold:           2,
		LowInfoThreshold:        1,
		SmallGapThreshold:       16,
		RecursiveAlignThreshold: 128,
		MinMoveLength:           2,
		AssignmentCap:           200,
		AssignmentPadCost:       1 << 40,
	}
}

// MetaFromRowStats converts grid-view row stats to unclassified metadata.
func MetaFromRowStats(stats []workbook.RowStats) []RowMeta {
	meta := make([]RowMeta, len(stats))
	for i, s := range stats {
		meta[i] = RowMeta{
			Idx:              s.Row,
			Sig:              s.Sig,
			NonBlankCount:    s.NonBlankCount,
			FirstNonBlankCol: s.FirstNonBlankCol,
		}
	}
	return meta
}

// MetaFromColStats converts column stats so that columns can be aligned by
// the row pipeline.
func MetaFromColStats(stats []workbook.ColStats) []RowMeta {
	meta := make([]RowMeta, len(stats))
	for i, s := range stats {
		meta[i] = RowMeta{
			Idx:              s.Col,
			Sig:              s.Sig,
			NonBlankCount:    s.NonBlankCount,
			FirstNonBlankCol: s.FirstNonBlankRow,
		}
	}
	return meta
}

// FrequencyMap counts signature multiplicity across one side.
func FrequencyMap(meta []RowMeta) map[workbook.Sig128]uint32 {
	m := make(map[workbook.Sig128]uint32, len(meta))
	for i := range meta {
		m[meta[i].Sig]++
	}
	return m
}

// Classify tags every row with its frequency class. The rules run in
// priority order: low-information rows first, then unique, rare, common.
func Classify(meta []RowMeta, p Params) {
	freq := FrequencyMap(meta)
	for i := range meta {
		m := &meta[i]
		switch {
		case m.NonBlankCount < p.LowInfoThreshold || m.IsLowInfo:
			m.Class = LowInfo
			m.IsLowInfo = true
		case freq[m.Sig] == 1:
			m.Class = Unique
		case freq[m.Sig] <= p.RareThreshold:
			m.Class = Rare
		default:
			m.Class = Common
		}
	}
}
