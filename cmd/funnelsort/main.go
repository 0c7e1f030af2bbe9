// Command funnelsort is the thin CLI entry point wiring spec.md §6's
// recognized options onto config.Config and calling funnel.Run. CLI
// parsing itself is explicitly out of scope (spec.md §1: "external
// collaborators, interfaces only"), so this uses the standard library
// flag package rather than a subcommand/usage framework a third-party
// CLI library would imply.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fedups/funnelsort/config"
	"github.com/fedups/funnelsort/dedupe"
	"github.com/fedups/funnelsort/funnel"
	"github.com/fedups/funnelsort/funnelio"
	"github.com/fedups/funnelsort/keycodec"
	"github.com/fedups/funnelsort/logging"
	"github.com/fedups/funnelsort/metrics"
	"github.com/fedups/funnelsort/predicate"
)

// stringList accumulates repeated flag occurrences, since flag has no
// built-in multi-value flag type.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// keyColumn is one --orderBy declaration in the compact CLI grammar
// "name:offset:length:type:direction", e.g. "amount:4:8:int:desc".
type keyColumn struct {
	name, offset, length, kind, direction string
}

func parseKeyColumn(spec string) (config.ColumnDef, config.OrderKey, error) {
	fields := strings.Split(spec, ":")
	if len(fields) < 3 {
		return config.ColumnDef{}, config.OrderKey{}, fmt.Errorf("orderBy %q: expected name:offset:length[:type[:direction]]", spec)
	}
	col := config.ColumnDef{Name: fields[0]}
	if _, err := fmt.Sscanf(fields[1], "%d", &col.Offset); err != nil {
		return config.ColumnDef{}, config.OrderKey{}, fmt.Errorf("orderBy %q: bad offset: %w", spec, err)
	}
	if _, err := fmt.Sscanf(fields[2], "%d", &col.Length); err != nil {
		return config.ColumnDef{}, config.OrderKey{}, fmt.Errorf("orderBy %q: bad length: %w", spec, err)
	}
	col.Type = keycodec.KindString
	dir := keycodec.ASC
	if len(fields) >= 4 {
		switch strings.ToLower(fields[3]) {
		case "string":
			col.Type = keycodec.KindString
		case "int":
			col.Type = keycodec.KindInt
		case "uint":
			col.Type = keycodec.KindUint
		case "float":
			col.Type = keycodec.KindFloat
		case "double":
			col.Type = keycodec.KindDouble
		default:
			return config.ColumnDef{}, config.OrderKey{}, fmt.Errorf("orderBy %q: unknown type %q", spec, fields[3])
		}
	}
	if len(fields) >= 5 {
		switch strings.ToLower(fields[4]) {
		case "asc":
			dir = keycodec.ASC
		case "desc":
			dir = keycodec.DESC
		case "aasc":
			dir = keycodec.AASC
		case "adesc":
			dir = keycodec.ADESC
		default:
			return config.ColumnDef{}, config.OrderKey{}, fmt.Errorf("orderBy %q: unknown direction %q", spec, fields[4])
		}
	}
	return col, config.OrderKey{ColumnName: col.Name, Direction: dir}, nil
}

func parseDuplicate(s string) (dedupe.Disposition, error) {
	switch s {
	case "", "Original":
		return dedupe.Original, nil
	case "FirstOnly":
		return dedupe.FirstOnly, nil
	case "LastOnly":
		return dedupe.LastOnly, nil
	case "Reverse":
		return dedupe.Reverse, nil
	default:
		return 0, fmt.Errorf("--duplicate: unknown disposition %q", s)
	}
}

func parseCopy(s string) (config.CopyMode, error) {
	switch s {
	case "", "ByKey":
		return config.CopyByKey, nil
	case "Original":
		return config.CopyOriginal, nil
	case "Reverse":
		return config.CopyReverse, nil
	default:
		return 0, fmt.Errorf("--copy: unknown mode %q", s)
	}
}

// unsupportedCompiler reports every WHERE/STOP equation as unsupported
// (spec.md §1 names the expression engine an external collaborator;
// this binary does not embed one).
type unsupportedCompiler struct{}

func (unsupportedCompiler) Compile(string) (predicate.Evaluator, error) {
	return nil, errors.New("funnelsort: no expression engine is wired into this binary; --where/--stopWhen are unsupported")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "funnelsort:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("funnelsort", flag.ContinueOnError)

	var inputFiles stringList
	fs.Var(&inputFiles, "inputFileName", "input file (repeatable); absent means stdin")
	outputFileName := fs.String("outputFileName", "", "output file; absent means stdout")
	replace := fs.Bool("replace", false, "write sorted result back over each input")
	power := fs.Int("power", 16, "tournament depth P in 2..16; M = 1<<(P-1)")
	rowMax := fs.Int64("rowMax", -1, "estimated total row count; used to size the tournament when --power is unset")
	duplicateFlag := fs.String("duplicate", "Original", "Original|FirstOnly|LastOnly|Reverse")
	copyFlag := fs.String("copy", "", "ByKey|Original|Reverse; used only when --orderBy is empty")
	var orderByFlags stringList
	fs.Var(&orderByFlags, "orderBy", "name:offset:length[:type[:direction]] (repeatable)")
	var whereFlags stringList
	fs.Var(&whereFlags, "where", "WHERE equation (repeatable)")
	var stopFlags stringList
	fs.Var(&stopFlags, "stopWhen", "STOP equation (repeatable)")
	workDirectory := fs.String("workDirectory", "", "directory for temp run files")
	diskWork := fs.Bool("diskWork", false, "spill runs to disk instead of memory")
	syntaxOnly := fs.Bool("syntaxOnly", false, "check the command; do not run")
	version := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Println("funnelsort (module-internal build)")
		return nil
	}

	cfg := config.Default()
	cfg.InputFiles = inputFiles
	cfg.OutputFile = *outputFileName
	cfg.Replace = *replace
	if *power != 16 {
		cfg.Power = *power
	} else if *rowMax > 0 {
		cfg.Power = 0
	}
	cfg.RowMax = *rowMax
	cfg.WorkDirectory = *workDirectory
	cfg.DiskWork = *diskWork
	cfg.SyntaxOnly = *syntaxOnly
	cfg.Where = whereFlags
	cfg.StopWhen = stopFlags

	var err error
	cfg.Duplicate, err = parseDuplicate(*duplicateFlag)
	if err != nil {
		return err
	}
	cfg.Copy, err = parseCopy(*copyFlag)
	if err != nil {
		return err
	}

	for _, spec := range orderByFlags {
		col, ob, err := parseKeyColumn(spec)
		if err != nil {
			return err
		}
		cfg.Columns = append(cfg.Columns, col)
		cfg.OrderBy = append(cfg.OrderBy, ob)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.SyntaxOnly {
		return nil
	}

	raw, closeRaw, err := openRawSource(cfg.InputFiles)
	if err != nil {
		return err
	}
	defer closeRaw()

	sink, closeSink, err := openSink(cfg.OutputFile)
	if err != nil {
		return err
	}
	defer closeSink()

	deps := funnel.Dependencies{
		Raw:  raw,
		Sink: sink,
		EvalCtxMaker: func(data []byte, recNo int64) predicate.Context {
			return lineContext{data: data, recNo: recNo}
		},
		Compiler: unsupportedCompiler{},
		WorkDir:  cfg.WorkDirectory,
		Logger:   logging.New("funnelsort"),
		Metrics:  metrics.NewRegistry(),
	}

	return funnel.Run(context.Background(), &cfg, deps)
}

// lineContext is the predicate.Context for newline-delimited records:
// WHERE/STOP are unsupported in this binary (see unsupportedCompiler),
// so no column lookup is ever actually exercised; it exists to satisfy
// the Dependencies.EvalCtxMaker contract.
type lineContext struct {
	data  []byte
	recNo int64
}

func (c lineContext) RecordNumber() int64       { return c.recNo }
func (c lineContext) Column(string) (any, bool) { return nil, false }

// lineSource adapts newline-delimited stdin/files to funnelio.RawSource.
type lineSource struct {
	scanner *bufio.Scanner
	index   int
}

// NextRaw reports the 0-relative line number across all inputs as the
// offset, and always 0 as the source index.
func (s *lineSource) NextRaw() ([]byte, int64, int, bool, error) {
	if !s.scanner.Scan() {
		return nil, 0, 0, false, s.scanner.Err()
	}
	line := append([]byte(nil), s.scanner.Bytes()...)
	offset := int64(s.index)
	s.index++
	return line, offset, 0, true, nil
}

func (s *lineSource) RowsRemainingEstimate() int64 { return -1 }

func openRawSource(inputFiles []string) (funnelio.RawSource, func(), error) {
	if len(inputFiles) == 0 {
		return &lineSource{scanner: bufio.NewScanner(os.Stdin)}, func() {}, nil
	}
	var readers []io.Reader
	var closers []io.Closer
	for _, name := range inputFiles {
		f, err := os.Open(name)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, fmt.Errorf("funnelsort: opening %s: %w", name, err)
		}
		readers = append(readers, f)
		closers = append(closers, f)
	}
	src := &lineSource{scanner: bufio.NewScanner(io.MultiReader(readers...))}
	return src, func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}, nil
}

func openSink(outputFileName string) (funnelio.Sink, func(), error) {
	if outputFileName == "" {
		sink := funnelio.NewLineSink(os.Stdout)
		return sink, func() { _ = sink.Flush() }, nil
	}
	f, err := os.Create(outputFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("funnelsort: creating %s: %w", outputFileName, err)
	}
	sink := funnelio.NewLineSink(f)
	return sink, func() {
		_ = sink.Flush()
		_ = f.Close()
	}, nil
}
