package align

import (
	"sort"

	"github.com/xldiff/xldiff/workbook"
)

// RowBlockMove records a contiguous run of rows whose content is identical
// between old and new but whose position shifted. Invariant: RowCount >= 2
// and the shift is non-zero.
type RowBlockMove struct {
	SrcStartRow uint32
	DstStartRow uint32
	RowCount    uint32
}

// blockRun is a move candidate in gap-slice coordinates.
type blockRun struct {
	oldPos int
	newPos int
	length int
}

// findBlockRun locates the longest contiguous run of signature-equal rows
// between the two slices. Ties break toward the earliest new position, then
// the earliest old position; the scan order below visits candidates in
// exactly that order, so strict "longer than" comparisons implement the
// tie-break for free.
func findBlockRun(oldSlice, newSlice []RowMeta, minLen uint32) (blockRun, bool) {
	positions := make(map[workbook.Sig128][]int)
	for i := range oldSlice {
		positions[oldSlice[i].Sig] = append(positions[oldSlice[i].Sig], i)
	}

	var best blockRun
	found := false

	for newPos := range newSlice {
		for _, oldPos := range positions[newSlice[newPos].Sig] {
			length := 0
			for oldPos+length < len(oldSlice) &&
				newPos+length < len(newSlice) &&
				oldSlice[oldPos+length].Sig == newSlice[newPos+length].Sig {
				length++
			}
			if uint32(length) >= minLen && (!found || length > best.length) {
				best = blockRun{oldPos: oldPos, newPos: newPos, length: length}
				found = true
			}
		}
	}

	return best, found
}

// FindBlockMove returns the single longest signature-identical run between
// the gap slices as a move, if one of at least minLen rows exists.
func FindBlockMove(oldSlice, newSlice []RowMeta, minLen uint32) (RowBlockMove, bool) {
	run, ok := findBlockRun(oldSlice, newSlice, minLen)
	if !ok {
		return RowBlockMove{}, false
	}
	return RowBlockMove{
		SrcStartRow: oldSlice[run.oldPos].Idx,
		DstStartRow: newSlice[run.newPos].Idx,
		RowCount:    uint32(run.length),
	}, true
}

// MovesFromMatchedPairs compresses matched (old, new) pairs into block
// moves. A run is maximal consecutive pairs whose shift (new - old) is
// constant and whose indices both advance by exactly one. Runs of length 1
// and zero-shift runs (identities) are dropped.
func MovesFromMatchedPairs(pairs [][2]uint32) []RowBlockMove {
	if len(pairs) == 0 {
		return nil
	}

	sorted := make([][2]uint32, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	var moves []RowBlockMove
	start := sorted[0]
	prev := sorted[0]
	runLen := uint32(1)
	offset := int64(prev[1]) - int64(prev[0])

	flush := func() {
		if runLen > 1 && offset != 0 {
			moves = append(moves, RowBlockMove{
				SrcStartRow: start[0],
				DstStartRow: start[1],
				RowCount:    runLen,
			})
		}
	}

	for _, pair := range sorted[1:] {
		pairOffset := int64(pair[1]) - int64(pair[0])
		if pairOffset == offset && pair[0] == prev[0]+1 && pair[1] == prev[1]+1 {
			runLen++
			prev = pair
			continue
		}
		flush()
		start = pair
		prev = pair
		offset = pairOffset
		runLen = 1
	}
	flush()

	return moves
}

// RowRun is a maximal run of consecutive rows sharing one signature.
type RowRun struct {
	Sig      workbook.Sig128
	StartPos uint32
	Count    uint32
}

// CompressToRuns collapses consecutive signature-equal rows. Positions are
// slice-relative.
func CompressToRuns(meta []RowMeta) []RowRun {
	var runs []RowRun
	for i := 0; i < len(meta); {
		sig := meta[i].Sig
		start := i
		for i < len(meta) && meta[i].Sig == sig {
			i++
		}
		runs = append(runs, RowRun{
			Sig:      sig,
			StartPos: uint32(start),
			Count:    uint32(i - start),
		})
	}
	return runs
}
