package diff

import (
	"log/slog"
	"time"
)

// Metrics accumulates per-phase timings and counters for one diff run.
// Counters are plain fields: within a run they are only touched by the
// orchestrator goroutine after worker results are merged.
type Metrics struct {
	AlignmentMs     int64
	CellDiffMs      int64
	EmitMs          int64
	TotalMs         int64
	RowsProcessed   uint64
	CellsCompared   uint64
	MovesDetected   uint64
	SheetsCompared  uint64
	FallbacksJumped uint64
}

// timer measures one phase; stop adds the elapsed milliseconds to dst.
type timer struct {
	start time.Time
	dst   *int64
}

func startTimer(dst *int64) timer {
	return timer{start: time.Now(), dst: dst}
}

func (t timer) stop() {
	*t.dst += time.Since(t.start).Milliseconds()
}

func (m *Metrics) add(other Metrics) {
	m.AlignmentMs += other.AlignmentMs
	m.CellDiffMs += other.CellDiffMs
	m.RowsProcessed += other.RowsProcessed
	m.CellsCompared += other.CellsCompared
	m.MovesDetected += other.MovesDetected
	m.SheetsCompared += other.SheetsCompared
	m.FallbacksJumped += other.FallbacksJumped
}

func (m *Metrics) log() {
	slog.Debug("diff metrics",
		"total_ms", m.TotalMs,
		"alignment_ms", m.AlignmentMs,
		"cell_diff_ms", m.CellDiffMs,
		"emit_ms", m.EmitMs,
		"sheets", m.SheetsCompared,
		"rows", m.RowsProcessed,
		"cells", m.CellsCompared,
		"moves", m.MovesDetected,
		"fallbacks", m.FallbacksJumped,
	)
}
