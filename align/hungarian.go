package align

import "math"

// SolveAssignment runs the dense O(n^3) Hungarian method over a square
// integer cost matrix and returns, for each row, the column it is assigned
// to. Reduced-cost potentials (u, v) with the minv/way alternating-path
// bookkeeping; p[j] stores the row assigned to column j.
func SolveAssignment(costs [][]int64) []int {
	n := len(costs)
	if n == 0 {
		return nil
	}

	const inf = math.MaxInt64 / 4
	u := make([]int64, n+1)
	v := make([]int64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]int64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = inf
		}

		for {
			used[j0] = true
			i0 := p[j0]
			var delta int64 = inf
			j1 := 0

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := costs[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assignment := make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			assignment[p[j]-1] = j - 1
		}
	}
	return assignment
}

// SolveRectAssignment pads a rectangular cost matrix to square with padCost
// and solves it. Assignments that land on padding cost padCost and should
// be discarded by the caller.
func SolveRectAssignment(costs [][]int64, padCost int64) []int {
	rows := len(costs)
	cols := 0
	for _, row := range costs {
		if len(row) > cols {
			cols = len(row)
		}
	}
	size := rows
	if cols > size {
		size = cols
	}
	if size == 0 {
		return nil
	}

	square := make([][]int64, size)
	for i := range square {
		square[i] = make([]int64, size)
		for j := range square[i] {
			square[i][j] = padCost
		}
		if i < rows {
			copy(square[i], costs[i])
		}
	}

	return SolveAssignment(square)
}
