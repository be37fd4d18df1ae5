// Package xldiff ties the diff engine to the command line: it loads
// workbook documents, runs the requested diff mode, renders the report,
// and optionally persists the run to the op store.
package xldiff

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"

	"github.com/xldiff/xldiff/diff"
	"github.com/xldiff/xldiff/opstore"
	"github.com/xldiff/xldiff/pool"
	"github.com/xldiff/xldiff/sink"
	"github.com/xldiff/xldiff/workbook"
)

// Options is the resolved CLI request, shared by the xldiff binary and
// any future front end.
type Options struct {
	OldFile string
	NewFile string

	// Format is one of text, json, jsonl.
	Format  string
	GitDiff bool

	Database  bool
	SheetName string
	// Keys are column letters (A, B, AA). Empty plus AutoKeys asks for
	// detection.
	Keys    []string
	AutoKeys bool

	// StorePath persists the run into a SQLite op store when non-empty.
	// Streaming jsonl output outside database mode does not persist.
	StorePath string

	Debug  bool
	Config *diff.Config
}

// Run executes one diff request, writing rendered output to out. The
// returned flag reports whether any change was found, mapping to the CLI
// exit-code contract (0 equal, 1 changes, 2 error).
func Run(opts *Options, out io.Writer) (changed bool, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = diff.DefaultConfig()
	}

	p := pool.New()
	oldWb, err := LoadWorkbook(opts.OldFile, p)
	if err != nil {
		return false, err
	}
	newWb, err := LoadWorkbook(opts.NewFile, p)
	if err != nil {
		return false, err
	}

	var report *diff.Report
	if opts.Database {
		report, err = runDatabaseMode(opts, oldWb, newWb, p, cfg)
		if err != nil {
			return false, err
		}
	} else if opts.Format == "jsonl" {
		// Stream straight to the output; no report materializes.
		return runStreaming(oldWb, newWb, p, cfg, out)
	} else {
		report = diff.Workbooks(oldWb, newWb, p, cfg)
	}

	if opts.Debug {
		pp.Fprintln(out, report)
	}

	if opts.StorePath != "" {
		if err := storeReport(opts.StorePath, opts.OldFile, opts.NewFile, report); err != nil {
			return false, fmt.Errorf("persisting report: %w", err)
		}
	}

	switch opts.Format {
	case "", "text":
		renderText(out, report, p, opts.GitDiff, opts.OldFile, opts.NewFile)
	case "json":
		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, string(encoded))
	case "jsonl":
		s := sink.NewJSONLines(out)
		if err := s.Begin(p); err != nil {
			return false, err
		}
		for _, op := range report.Ops {
			if err := s.Emit(op); err != nil {
				return false, err
			}
		}
		if err := s.Finish(); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unknown format %q", opts.Format)
	}

	for _, warning := range report.Warnings {
		slog.Warn("diff incomplete", "warning", warning)
	}
	return report.HasChanges(), nil
}

func runStreaming(oldWb, newWb *workbook.Workbook, p *pool.Pool, cfg *diff.Config, out io.Writer) (bool, error) {
	s := sink.NewJSONLines(out)
	summary, err := diff.WorkbooksStreaming(oldWb, newWb, p, cfg, s)
	if err != nil {
		return false, err
	}
	for _, warning := range summary.Warnings {
		slog.Warn("diff incomplete", "warning", warning)
	}
	return summary.OpCount > 0, nil
}

func runDatabaseMode(opts *Options, oldWb, newWb *workbook.Workbook, p *pool.Pool, cfg *diff.Config) (*diff.Report, error) {
	if opts.SheetName == "" {
		return nil, fmt.Errorf("database mode requires --sheet")
	}
	oldSheet := oldWb.SheetByName(p, opts.SheetName)
	newSheet := newWb.SheetByName(p, opts.SheetName)
	if oldSheet == nil || newSheet == nil {
		return nil, fmt.Errorf("sheet %q not present in both workbooks", opts.SheetName)
	}

	var keyColumns []uint32
	switch {
	case len(opts.Keys) > 0:
		for _, letters := range opts.Keys {
			col, err := colLettersToIndex(letters)
			if err != nil {
				return nil, err
			}
			keyColumns = append(keyColumns, col)
		}
	case opts.AutoKeys:
		col, ok := detectKeyColumn(oldSheet.Grid, newSheet.Grid, p)
		if !ok {
			return nil, fmt.Errorf("no key column with distinct values found; pass --keys explicitly")
		}
		addr := workbook.IndexToAddress(0, col)
		slog.Info("auto-detected key column", "col", strings.TrimSuffix(addr, "1"))
		keyColumns = []uint32{col}
	default:
		return nil, fmt.Errorf("database mode requires --keys or --auto-keys")
	}

	return diff.GridsDatabaseMode(oldSheet.Grid, newSheet.Grid, keyColumns, p, cfg), nil
}

// detectKeyColumn picks the leftmost column whose values are distinct in
// both grids.
func detectKeyColumn(old, new *workbook.Grid, p *pool.Pool) (uint32, bool) {
	maxCols := old.NCols
	if new.NCols > maxCols {
		maxCols = new.NCols
	}
	for col := uint32(0); col < maxCols; col++ {
		if columnDistinct(old, col, p) && columnDistinct(new, col, p) {
			return col, true
		}
	}
	return 0, false
}

func columnDistinct(g *workbook.Grid, col uint32, p *pool.Pool) bool {
	seen := make(map[string]struct{}, g.NRows)
	for row := uint32(0); row < g.NRows; row++ {
		cell := g.Get(row, col)
		if cell == nil || cell.Value == nil {
			return false
		}
		var key string
		switch cell.Value.Kind {
		case workbook.KindNumber:
			key = fmt.Sprintf("n%v", cell.Value.Number)
		case workbook.KindText:
			key = "t" + p.Resolve(cell.Value.Text)
		case workbook.KindBool:
			key = fmt.Sprintf("b%v", cell.Value.Bool)
		}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

func colLettersToIndex(letters string) (uint32, error) {
	letters = strings.TrimSpace(letters)
	if letters == "" {
		return 0, fmt.Errorf("empty key column")
	}
	var col uint32
	for i := 0; i < len(letters); i++ {
		ch := letters[i] &^ 0x20
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid key column %q", letters)
		}
		col = col*26 + uint32(ch-'A'+1)
	}
	return col - 1, nil
}

func storeReport(path, oldFile, newFile string, report *diff.Report) error {
	store, err := opstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.SaveReport(oldFile, newFile, report)
	return err
}
