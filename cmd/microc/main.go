// MicroC CLI - compiles MicroC programs and runs them on the reference
// machine.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/microc/manifest"
)

var log = commonlog.GetLogger("microc")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	logPath := flag.String("log", "", "Write log messages to this file instead of stderr")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, heredoc.Doc(`
			Usage: microc [options] <command> [arguments]

			Commands:
			  init     Create microc.toml and a starter main.c
			  check    Type-check a program
			  compile  Compile a program to bytecode
			  run      Compile and run a program, or run compiled bytecode
			  disasm   Disassemble bytecode or a program
			  fmt      Format source files
			  lsp      Start the language server on stdio
			  serve    Start the compile server (Connect HTTP/JSON)

			Without a file argument, commands use the entry of the nearest
			microc.toml, or main.c.

			Options:
		`))
		flag.PrintDefaults()
	}
	flag.Parse()

	verbosity := -1
	if *verbose {
		verbosity = 1
	}
	if *logPath != "" {
		commonlog.Configure(verbosity, logPath)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "init":
		handleInitCommand(args)
	case "check":
		handleCheckCommand(args, m)
	case "compile":
		handleCompileCommand(args, m)
	case "run":
		handleRunCommand(args, m)
	case "disasm":
		handleDisasmCommand(args, m)
	case "fmt":
		handleFmtCommand(args)
	case "lsp":
		handleLSPCommand(m)
	case "serve":
		handleServeCommand(args, m)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

// loadManifest finds the nearest microc.toml, falling back to the defaults
// rooted at the working directory.
func loadManifest() (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m != nil {
		log.Infof("using %s", filepath.Join(m.Dir, manifest.FileName))
		return m, nil
	}
	m = manifest.Default()
	m.Dir, err = os.Getwd()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// starterProgram is written by `microc init` when the entry file is missing.
var starterProgram = heredoc.Doc(`
	// Reads n and writes n factorial.
	void fac(int n, int *res) {
	  if (n == 0)
	    *res = 1;
	  else {
	    int r;
	    fac(n - 1, &r);
	    *res = r * n;
	  }
	}

	void main() {
	  int n;
	  int res;
	  read n;
	  fac(n, &res);
	  write res;
	}
`)

// handleInitCommand processes the `microc init` subcommand.
// Usage:
//
//	microc init           # project named after the current directory
//	microc init myproj    # explicit project name
func handleInitCommand(args []string) {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m := manifest.Default()
	m.Project.Name = filepath.Base(dir)
	m.Project.Version = "0.1.0"
	if len(args) > 0 {
		m.Project.Name = args[0]
	}

	if err := manifest.Write(dir, m); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created %s\n", manifest.FileName)

	entry := filepath.Join(dir, m.Build.Entry)
	if _, err := os.Stat(entry); os.IsNotExist(err) {
		if err := os.WriteFile(entry, []byte(starterProgram), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created %s\n", m.Build.Entry)
	}
}
