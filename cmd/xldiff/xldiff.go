package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/xldiff/xldiff"
	"github.com/xldiff/xldiff/diff"
	"github.com/xldiff/xldiff/util"
)

var version string

func parseOptions(args []string) *xldiff.Options {
	var opts struct {
		Format    string `long:"format" description:"Output format: text, json, or jsonl" default:"text" value-name:"FORMAT"`
		GitDiff   bool   `long:"git-diff" description:"Frame text output for use as a Git diff driver"`
		Fast      bool   `long:"fast" description:"Use the fastest preset (disables semantic passes)"`
		Precise   bool   `long:"precise" description:"Use the most precise preset (slower)"`
		Database  bool   `long:"database" description:"Align rows by key columns instead of position"`
		Sheet     string `long:"sheet" description:"Sheet name to diff in database mode" value-name:"NAME"`
		Keys      string `long:"keys" description:"Key columns for database mode (comma-separated letters, e.g. A,B,C)" value-name:"COLS"`
		AutoKeys  bool   `long:"auto-keys" description:"Auto-detect a key column for database mode"`
		MaxMemory string `long:"max-memory" description:"Soft memory budget for advanced strategies (e.g. 512MB)" value-name:"SIZE"`
		Timeout   uint32 `long:"timeout" description:"Abort the diff after this many seconds" value-name:"S"`
		Workers   int    `long:"workers" description:"Sheet-level parallelism (output is identical for any value)" value-name:"N"`
		Progress  bool   `long:"progress" description:"Show progress on stderr"`
		Config    string `long:"config" description:"YAML file overriding diff options" value-name:"FILE"`
		Store     string `long:"store" description:"Persist the run into this SQLite op store" value-name:"DB"`
		Debug     bool   `long:"debug" description:"Dump the raw report before rendering"`
		Help      bool   `long:"help" short:"h" description:"Show this help"`
		Version   bool   `long:"version" description:"Show version"`
	}

	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...] OLD NEW"
	args, err := parser.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "expected exactly two workbook files, got %d\n\n", len(args))
		parser.WriteHelp(os.Stderr)
		os.Exit(2)
	}

	if opts.Fast && opts.Precise {
		fmt.Fprintln(os.Stderr, "--fast and --precise are mutually exclusive")
		os.Exit(2)
	}

	cfg := diff.DefaultConfig()
	if opts.Fast {
		cfg = diff.FastestConfig()
	}
	if opts.Precise {
		cfg = diff.MostPreciseConfig()
	}

	if opts.Config != "" {
		if err := diff.ApplyConfigFile(cfg, opts.Config); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	if opts.MaxMemory != "" {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(opts.MaxMemory)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid --max-memory %q: %s\n", opts.MaxMemory, err)
			os.Exit(2)
		}
		cfg.MaxMemoryMB = uint32(size.MBytes())
	}
	if opts.Timeout > 0 {
		cfg.TimeoutSeconds = opts.Timeout
	}
	if opts.Workers != 0 {
		cfg.Workers = opts.Workers
	}

	// Progress goes to stderr, and only when someone is watching.
	if opts.Progress && term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.Progress = func(phase string, fraction float64) {
			fmt.Fprintf(os.Stderr, "\r%-24s %3.0f%%", phase, fraction*100)
			if fraction >= 1 {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	var keys []string
	if opts.Keys != "" {
		for _, key := range strings.Split(opts.Keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
	}

	return &xldiff.Options{
		OldFile:   args[0],
		NewFile:   args[1],
		Format:    opts.Format,
		GitDiff:   opts.GitDiff,
		Database:  opts.Database,
		SheetName: opts.Sheet,
		Keys:      keys,
		AutoKeys:  opts.AutoKeys,
		StorePath: opts.Store,
		Debug:     opts.Debug,
		Config:    cfg,
	}
}

func main() {
	util.InitSlog()

	options := parseOptions(os.Args[1:])
	changed, err := xldiff.Run(options, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
	if changed {
		os.Exit(1)
	}
}
