package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aymanbagabas/go-udiff"

	"github.com/chazu/microc/compiler"
)

// ---------------------------------------------------------------------------
// microc fmt - canonical layout for MicroC sources
// ---------------------------------------------------------------------------

func handleFmtCommand(args []string) {
	flags := flag.NewFlagSet("fmt", flag.ExitOnError)
	checkMode := flags.Bool("check", false, "Report files that need formatting and exit 1 if any do")
	diffMode := flags.Bool("d", false, "Print a unified diff instead of rewriting files")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: microc fmt [-check] [-d] <files or directories...>\n\n")
		fmt.Fprintf(os.Stderr, "If no files are given, formats all sources in the current directory.\n\n")
		flags.PrintDefaults()
	}
	flags.Parse(args)

	paths := flags.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	files, err := collectSourceFiles(paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No MicroC sources found\n")
		return
	}

	anyChanged := false
	for _, path := range files {
		changed, err := formatFile(path, *checkMode, *diffMode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error formatting %s: %v\n", path, err)
			os.Exit(1)
		}
		anyChanged = anyChanged || changed
	}

	if (*checkMode || *diffMode) && anyChanged {
		os.Exit(1)
	}
}

// formatFile formats a single source file. In check or diff mode the file
// is left untouched; the result reports whether it would change.
func formatFile(path string, checkMode, diffMode bool) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	original := string(content)
	formatted, err := compiler.Format(original)
	if err != nil {
		return false, err
	}
	if original == formatted {
		return false, nil
	}

	switch {
	case diffMode:
		fmt.Print(udiff.Unified(path+".orig", path, original, formatted))
		return true, nil
	case checkMode:
		fmt.Printf("would format: %s\n", path)
		return true, nil
	}

	if err := os.WriteFile(path, []byte(formatted), 0644); err != nil {
		return false, err
	}
	log.Infof("formatted %s", path)
	return true, nil
}

// collectSourceFiles resolves paths to a flat list of source files.
// Directories are walked recursively.
func collectSourceFiles(paths []string) ([]string, error) {
	var result []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", p, err)
		}

		if !info.IsDir() {
			if !isSource(p) {
				return nil, fmt.Errorf("%q is not a MicroC source", p)
			}
			result = append(result, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != p && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			if !d.IsDir() && isSource(path) {
				result = append(result, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}
