package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/microc/buildcache"
	"github.com/chazu/microc/compiler"
	"github.com/chazu/microc/manifest"
	"github.com/chazu/microc/pkg/bytecode"
	"github.com/chazu/microc/server"
)

// sourceExts are the extensions treated as MicroC source rather than
// compiled bytecode.
var sourceExts = []string{".c", ".mc"}

func isSource(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range sourceExts {
		if ext == e {
			return true
		}
	}
	return false
}

// sourcePath returns the file named on the command line, or the manifest
// entry.
func sourcePath(flags *flag.FlagSet, m *manifest.Manifest) string {
	if flags.NArg() > 0 {
		return flags.Arg(0)
	}
	return m.EntryPath()
}

// parseSource reads and parses a source file.
func parseSource(path string) (*compiler.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return compiler.Parse(string(src))
}

// reportError prints err as located diagnostics when it has positions.
func reportError(path string, err error) {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	for _, d := range server.Diagnose(err) {
		if d.Line > 0 {
			fmt.Fprintf(os.Stderr, "%s:%d:%d: %s error: %s\n", path, d.Line, d.Column, d.Kind, d.Message)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s error: %s\n", path, d.Kind, d.Message)
		}
	}
}

// openCache opens the manifest's build cache. A cache that cannot be opened
// is skipped with a warning.
func openCache(m *manifest.Manifest, disabled bool) *buildcache.Cache {
	if disabled || !m.Cache.Enabled {
		return nil
	}
	c, err := buildcache.Open(m.CachePath())
	if err != nil {
		log.Warningf("build cache disabled: %s", err)
		return nil
	}
	return c
}

// buildSource parses and builds the program at path.
func buildSource(path string, c *buildcache.Cache, opts compiler.Options) (*bytecode.Object, error) {
	prog, err := parseSource(path)
	if err != nil {
		return nil, err
	}
	obj, hit, err := buildcache.Build(c, prog, opts)
	if hit {
		log.Infof("%s: using cached build", path)
	}
	return obj, err
}

// loadObject returns the code at path: compiled when path is source, read
// in either bytecode format otherwise. Symbols are empty for text bytecode.
func loadObject(path string, c *buildcache.Cache, opts compiler.Options) (*bytecode.Object, error) {
	if isSource(path) {
		return buildSource(path, c, opts)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytecode.IsObject(data) {
		return bytecode.UnmarshalObject(data)
	}
	code, err := bytecode.ReadText(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	return &bytecode.Object{Version: bytecode.ObjectVersion, Code: code}, nil
}

// writeObject writes obj to path in the given format.
func writeObject(path, format string, obj *bytecode.Object) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch format {
	case manifest.FormatCBOR:
		var data []byte
		data, err = bytecode.MarshalObject(obj)
		if err == nil {
			_, err = f.Write(data)
		}
	case manifest.FormatText:
		err = bytecode.WriteText(f, obj.Code)
	default:
		err = fmt.Errorf("unknown output format %q", format)
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// handleCheckCommand processes the `microc check` subcommand.
func handleCheckCommand(args []string, m *manifest.Manifest) {
	flags := flag.NewFlagSet("check", flag.ExitOnError)
	strict := flags.Bool("strict", false, "Reject redeclaring a name in the same scope")
	flags.Parse(args)

	path := sourcePath(flags, m)
	opts := m.CompilerOptions()
	if *strict {
		opts.StrictScopes = true
	}

	prog, err := parseSource(path)
	if err == nil {
		err = prog.Check(opts)
	}
	if err != nil {
		reportError(path, err)
		os.Exit(1)
	}
	log.Infof("%s: ok", path)
}

// handleCompileCommand processes the `microc compile` subcommand.
// Usage:
//
//	microc compile                       # manifest entry to manifest output
//	microc compile -o prog.out prog.c    # explicit paths
//	microc compile -format cbor prog.c   # object with symbols
func handleCompileCommand(args []string, m *manifest.Manifest) {
	flags := flag.NewFlagSet("compile", flag.ExitOnError)
	output := flags.String("o", "", "Output path (default from microc.toml)")
	format := flags.String("format", m.Build.Format, "Output format: text or cbor")
	listing := flags.Bool("listing", m.Build.Listing, "Print the symbolic listing")
	noCache := flags.Bool("no-cache", false, "Do not use the build cache")
	flags.Parse(args)

	path := sourcePath(flags, m)
	out := *output
	if out == "" {
		if flags.NArg() > 0 {
			out = strings.TrimSuffix(path, filepath.Ext(path)) + ".out"
		} else {
			out = m.OutputPath()
		}
	}

	c := openCache(m, *noCache)
	if c != nil {
		defer c.Close()
	}

	obj, err := buildSource(path, c, m.CompilerOptions())
	if err != nil {
		reportError(path, err)
		os.Exit(1)
	}

	if *listing {
		text, err := bytecode.DisassembleWithSymbols(obj.Code, obj.Symbols)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(text)
	}

	if err := writeObject(out, *format, obj); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
		os.Exit(1)
	}
	log.Infof("wrote %d code cells to %s", len(obj.Code), out)
}

// handleRunCommand processes the `microc run` subcommand.
// Usage:
//
//	microc run                   # build and run the manifest entry
//	microc run prog.c            # build and run a source file
//	microc run -input 5 a.out    # run compiled bytecode with input
func handleRunCommand(args []string, m *manifest.Manifest) {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	input := flags.String("input", "", "Input for read statements (default: microc.toml input file, then stdin)")
	maxSteps := flags.Int("max-steps", m.Run.MaxSteps, "Instruction limit, 0 for none")
	timeout := flags.Duration("timeout", 0, "Wall-clock limit, 0 for none")
	trace := flags.Bool("trace", false, "Trace every instruction to stderr")
	noCache := flags.Bool("no-cache", false, "Do not use the build cache")
	flags.Parse(args)

	path := sourcePath(flags, m)
	c := openCache(m, *noCache)
	if c != nil {
		defer c.Close()
	}

	obj, err := loadObject(path, c, m.CompilerOptions())
	if err != nil {
		reportError(path, err)
		os.Exit(1)
	}

	in, err := runInput(*input, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts := bytecode.Options{
		StackSize: m.Run.StackSize,
		MaxSteps:  *maxSteps,
		Input:     in,
	}
	if *trace {
		opts.Trace = os.Stderr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := bytecode.Run(ctx, obj.Code, opts)
	fmt.Println()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("time limit of %s exceeded", *timeout)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Infof("%d steps in %s", res.Steps, time.Since(start))
}

// runInput selects the reader for read statements: the -input flag, the
// manifest's input file, then stdin.
func runInput(flagInput string, m *manifest.Manifest) (io.Reader, error) {
	if flagInput != "" {
		return strings.NewReader(flagInput), nil
	}
	if m.Run.Input != "" {
		f, err := os.Open(m.Resolve(m.Run.Input))
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return os.Stdin, nil
}

// handleDisasmCommand processes the `microc disasm` subcommand.
func handleDisasmCommand(args []string, m *manifest.Manifest) {
	flags := flag.NewFlagSet("disasm", flag.ExitOnError)
	flags.Parse(args)

	path := m.OutputPath()
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}

	obj, err := loadObject(path, nil, m.CompilerOptions())
	if err != nil {
		reportError(path, err)
		os.Exit(1)
	}
	text, err := bytecode.DisassembleWithSymbols(obj.Code, obj.Symbols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(text)
}

// handleLSPCommand processes the `microc lsp` subcommand.
func handleLSPCommand(m *manifest.Manifest) {
	if err := server.NewLSP(m.CompilerOptions()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "LSP error: %v\n", err)
		os.Exit(1)
	}
}

// handleServeCommand processes the `microc serve` subcommand.
func handleServeCommand(args []string, m *manifest.Manifest) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	port := flags.Int("port", m.Server.Port, "Listen port")
	workers := flags.Int("workers", 0, "Concurrent requests, 0 for one per CPU")
	noCache := flags.Bool("no-cache", false, "Do not use the build cache")
	flags.Parse(args)

	var opts []server.ServerOption
	if c := openCache(m, *noCache); c != nil {
		defer c.Close()
		opts = append(opts, server.WithCache(c))
	}
	if *workers > 0 {
		opts = append(opts, server.WithWorkers(*workers))
	}
	if m.Run.MaxSteps > 0 {
		opts = append(opts, server.WithRunLimits(m.Run.MaxSteps, 10*time.Second))
	}

	srv := server.New(opts...)
	defer srv.Stop()
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", *port)); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
