package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	sg "github.com/reoring/schemaguard"
	"github.com/reoring/schemaguard/engine"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	var code int
	switch sub {
	case "detect":
		code = detectCmd(os.Args[2:])
	case "validate":
		code = validateCmd(os.Args[2:])
	case "instance":
		code = instanceCmd(os.Args[2:])
	case "compat":
		code = compatCmd(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
	default:
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, `schemaguard CLI

Usage:
  schemaguard detect FILE...
  schemaguard validate [-format f] [-config cfg.yaml] [-json] [-j N] FILE...
  schemaguard instance -schema FILE [-format f] [-config cfg.yaml] [-json] INSTANCE.json
  schemaguard compat -mode BACKWARD [-format f] [-subject ns.name] [-diff] [-json] CANDIDATE HISTORY...

Notes:
  - HISTORY files are given oldest first.
  - JSON Schema and Avro files may be written as YAML (.yaml, .yml).
  - Exit status is 1 when a schema is invalid or incompatible, 2 on usage errors.`)
}

// common holds the flags shared by every subcommand.
type common struct {
	format  string
	config  string
	json    bool
	noColor bool
	verbose bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", "", "schema format: json-schema, avro or protobuf (detected when empty)")
	fs.StringVar(&c.config, "config", "", "YAML validation config file")
	fs.BoolVar(&c.json, "json", false, "print results as JSON")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored output")
	fs.BoolVar(&c.verbose, "v", false, "enable debug logs on stderr")
}

func (c *common) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *common) engine() (*engine.Engine, error) {
	cfg := sg.DefaultConfig()
	if c.config != "" {
		data, err := os.ReadFile(c.config)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if cfg, err = sg.LoadConfigYAML(data); err != nil {
			return nil, err
		}
	}
	return engine.New(engine.WithConfig(cfg), engine.WithLogger(c.logger()))
}

func detectCmd(args []string) int {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	var c common
	c.register(fs)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	p := newPrinter(os.Stdout, c.noColor)
	code := 0
	for _, path := range fs.Args() {
		in, err := readSchema(path, "")
		if err != nil {
			var amb *sg.AmbiguousFormatError
			if errors.As(err, &amb) {
				p.detected(path, sg.FormatUnknown, "", amb)
				code = 1
				continue
			}
			fatalf("%v", err)
		}
		p.detected(path, in.format, describe(in), nil)
	}
	return code
}

type fileResult struct {
	Path   string              `json:"path"`
	Result sg.ValidationResult `json:"result"`
}

func validateCmd(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var c common
	var jobs int
	c.register(fs)
	fs.IntVar(&jobs, "j", runtime.GOMAXPROCS(0), "number of files validated concurrently")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	eng, err := c.engine()
	if err != nil {
		fatalf("%v", err)
	}

	paths := fs.Args()
	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(jobs, 1))
	for i, path := range paths {
		g.Go(func() error {
			in, err := readSchema(path, c.format)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = fileResult{Path: path, Result: eng.Validate(ctx, in.text, in.format)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("%v", err)
	}

	p := newPrinter(os.Stdout, c.noColor)
	if c.json {
		p.json(results)
	} else {
		for _, r := range results {
			p.result(r.Path, r.Result)
		}
	}
	for _, r := range results {
		if !r.Result.Valid {
			return 1
		}
	}
	return 0
}

func instanceCmd(args []string) int {
	fs := flag.NewFlagSet("instance", flag.ExitOnError)
	var c common
	var schemaPath string
	c.register(fs)
	fs.StringVar(&schemaPath, "schema", "", "schema file")
	_ = fs.Parse(args)
	if schemaPath == "" || fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	eng, err := c.engine()
	if err != nil {
		fatalf("%v", err)
	}
	in, err := readSchema(schemaPath, c.format)
	if err != nil {
		fatalf("%s: %v", schemaPath, err)
	}
	instance, err := readInstance(fs.Arg(0))
	if err != nil {
		fatalf("%s: %v", fs.Arg(0), err)
	}
	res := eng.ValidateInstance(context.Background(), in.text, in.format, instance)

	p := newPrinter(os.Stdout, c.noColor)
	if c.json {
		p.json(fileResult{Path: fs.Arg(0), Result: res})
	} else {
		p.result(fs.Arg(0), res)
	}
	if !res.Valid {
		return 1
	}
	return 0
}

func compatCmd(args []string) int {
	fs := flag.NewFlagSet("compat", flag.ExitOnError)
	var c common
	var modeName, subject string
	var showDiff bool
	c.register(fs)
	fs.StringVar(&modeName, "mode", "BACKWARD", "compatibility mode")
	fs.StringVar(&subject, "subject", "default.schema", "subject as namespace.name")
	fs.BoolVar(&showDiff, "diff", false, "print a line diff against the most recent version")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	mode, err := sg.ParseCompatibilityMode(modeName)
	if err != nil {
		fatalf("%v", err)
	}
	ns, name := "", subject
	if i := strings.LastIndex(subject, "."); i >= 0 {
		ns, name = subject[:i], subject[i+1:]
	}
	eng, err := c.engine()
	if err != nil {
		fatalf("%v", err)
	}

	files := fs.Args()
	versions := make([]sg.Schema, len(files))
	for i, path := range files {
		in, err := readSchema(path, c.format)
		if err != nil {
			fatalf("%s: %v", path, err)
		}
		// the candidate is the first argument but the newest version
		major := uint64(i)
		if i == 0 {
			major = uint64(len(files))
		}
		versions[i] = sg.NewSchema(ns, name, sg.NewVersion(major, 0, 0), in.format, in.text)
	}
	candidate, history := versions[0], versions[1:]
	res, err := eng.CheckCompatibility(context.Background(), candidate, history, mode)
	if err != nil {
		fatalf("%v", err)
	}

	p := newPrinter(os.Stdout, c.noColor)
	if c.json {
		p.json(res)
	} else {
		p.compat(res)
		if showDiff && len(history) > 0 {
			p.diff(history[len(history)-1], candidate)
		}
	}
	if !res.Compatible {
		return 1
	}
	return 0
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "schemaguard: "+format+"\n", a...)
	os.Exit(2)
}
