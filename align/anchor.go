package align

import (
	"sort"

	"github.com/xldiff/xldiff/workbook"
)

// Anchor pairs an old row and a new row whose signature is Unique on both
// sides. Anchors are the fixed points the alignment is threaded on.
type Anchor struct {
	OldRow uint32
	NewRow uint32
	Sig    workbook.Sig128
}

// DiscoverAnchors joins old-side and new-side Unique rows by signature.
// The result preserves new-row order.
func DiscoverAnchors(old, new []RowMeta) []Anchor {
	oldUnique := make(map[workbook.Sig128]uint32)
	for i := range old {
		if old[i].Class == Unique {
			oldUnique[old[i].Sig] = old[i].Idx
		}
	}

	var anchors []Anchor
	for i := range new {
		if new[i].Class != Unique {
			continue
		}
		if oldIdx, ok := oldUnique[new[i].Sig]; ok {
			anchors = append(anchors, Anchor{
				OldRow: oldIdx,
				NewRow: new[i].Idx,
				Sig:    new[i].Sig,
			})
		}
	}
	return anchors
}

// BuildAnchorChain selects the maximal subset of anchors whose old rows
// strictly increase in new-row order, using patience-sort LIS with
// predecessor back-chaining. O(n log n).
func BuildAnchorChain(anchors []Anchor) []Anchor {
	if len(anchors) == 0 {
		return nil
	}

	sorted := make([]Anchor, len(anchors))
	copy(sorted, anchors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NewRow < sorted[j].NewRow })

	// piles[k] holds the index of the smallest known tail of an increasing
	// subsequence of length k+1.
	piles := make([]int, 0, len(sorted))
	predecessors := make([]int, len(sorted))
	for i := range predecessors {
		predecessors[i] = -1
	}

	for idx := range sorted {
		key := sorted[idx].OldRow
		pos := sort.Search(len(piles), func(k int) bool {
			return sorted[piles[k]].OldRow >= key
		})
		if pos > 0 {
			predecessors[idx] = piles[pos-1]
		}
		if pos == len(piles) {
			piles = append(piles, idx)
		} else {
			piles[pos] = idx
		}
	}

	chain := make([]Anchor, 0, len(piles))
	for cur := piles[len(piles)-1]; cur >= 0; cur = predecessors[cur] {
		chain = append(chain, sorted[cur])
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
