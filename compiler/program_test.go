package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"

	"github.com/chazu/microc/pkg/bytecode"
)

func parseFile(t *testing.T, name string) *Program {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	prog, err := Parse(string(src))
	if err != nil {
		t.Fatalf("Parse(%s): %v", name, err)
	}
	return prog
}

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

// runProgram builds prog and runs it with the given input.
func runProgram(t *testing.T, prog *Program, input string) (string, *Output, *bytecode.Result) {
	t.Helper()
	out, err := Build(prog, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	res, err := bytecode.Run(context.Background(), out.Code, bytecode.Options{
		Input:    strings.NewReader(input),
		Output:   &buf,
		MaxSteps: 10_000_000,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return buf.String(), out, res
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"factorial.mc", "6 "},
		{"fibonacci.mc", "610 "},
		{"arguments.mc", "42 142 242 342 442 1210 1210 "},
		{"arraymax.mc", "13 "},
		{"declarators.mc", "42 42 42 33 3 33 42 0 42 42 33 3 "},
		{"assignments.mc", "3 3 3 16 4 12 4 "},
		{"square.mc", "25 390625 "},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, out, res := runProgram(t, parseFile(t, tt.file), "")
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
			// main's result slot is the only cell left above the globals.
			if res.Depth != out.GlobalCells+1 {
				t.Errorf("final depth = %d, want %d", res.Depth, out.GlobalCells+1)
			}
		})
	}
}

func TestArityMismatchRejected(t *testing.T) {
	_, err := Build(parseFile(t, "mutual.mc"), Options{})
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("expected TypeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "goo expects 2 arguments, got 1") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(err.Error(), "in function foo") {
		t.Errorf("error should name the enclosing function: %v", err)
	}
}

func TestUncheckedCompile(t *testing.T) {
	prog := parseFile(t, "pointers.mc")

	var te *TypeError
	if _, err := Build(prog, Options{}); !errors.As(err, &te) {
		t.Fatalf("Build should reject write of bool, got %v", err)
	}

	// Compile alone does not type-check. q starts as 0, so the store
	// through it lands on arr[0].
	gen, err := prog.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	code, err := gen.ToBytecode()
	if err != nil {
		t.Fatalf("ToBytecode: %v", err)
	}
	var buf bytes.Buffer
	if _, err := bytecode.Run(context.Background(), code, bytecode.Options{
		Input:  strings.NewReader("7"),
		Output: &buf,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := buf.String(); got != "7 -42 1 1 " {
		t.Errorf("output = %q", got)
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "subtraction",
			src:  "void main() { write 10 - 3; }",
			want: "7 ",
		},
		{
			name: "comparison rewrite",
			src:  "void main() { if (5 >= 5) write 1; else write 0; if (!(5 < 5)) write 1; else write 0; }",
			want: "1 1 ",
		},
		{
			name: "pointer store",
			src: heredoc.Doc(`
				void main() {
				  int x; int *p;
				  p = &x;
				  *p = 42;
				  write x;
				}
			`),
			want: "42 ",
		},
		{
			name: "array indexing",
			src: heredoc.Doc(`
				void main() {
				  int a[3];
				  a[1] = 7;
				  write a[1];
				  write a[0];
				}
			`),
			want: "7 0 ",
		},
		{
			name: "global array",
			src: heredoc.Doc(`
				int a[3];
				int n;
				void main() {
				  n = 2;
				  a[n] = n * 5;
				  write a[2];
				  write n;
				}
			`),
			want: "10 2 ",
		},
		{
			name: "short circuit",
			src: heredoc.Doc(`
				int hits;
				void main() {
				  bool r;
				  r = false && (hits = hits + 1) > 0;
				  r = true || (hits = hits + 1) > 0;
				  r = true && (hits = hits + 1) > 0;
				  write hits;
				}
			`),
			want: "1 ",
		},
		{
			name: "read",
			src:  "void main() { int i; read i; write i * 2; }",
			want: "42 ",
		},
		{
			name: "nested blocks",
			src: heredoc.Doc(`
				void main() {
				  int i;
				  i = 0;
				  while (i < 3) {
				    int sq;
				    sq = i * i;
				    { int dbl; dbl = sq + sq; write dbl; }
				    i = i + 1;
				  }
				  write i;
				}
			`),
			want: "0 2 8 3 ",
		},
		{
			name: "shadowing",
			src:  "void main() { int x; x = 1; { int x; x = 2; write x; } write x; }",
			want: "2 1 ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := runProgram(t, mustParse(t, tt.src), "21")
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCallTypeMismatchEmitsNothing(t *testing.T) {
	prog := mustParse(t, "void f(int x) { } void main() { f(true); }")
	out, err := Build(prog, Options{})
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("expected TypeError, got %v", err)
	}
	if te.ArgIndex != 0 || te.Param != "x" {
		t.Errorf("ArgIndex = %d, Param = %q", te.ArgIndex, te.Param)
	}
	if out != nil {
		t.Errorf("Build returned output alongside an error")
	}
}

func TestMissingMain(t *testing.T) {
	prog := mustParse(t, "void helper() { }")
	if err := prog.Check(Options{}); err != nil {
		t.Fatalf("Check: %v", err)
	}
	_, err := Build(prog, Options{})
	var ule *bytecode.UnresolvedLabelError
	if !errors.As(err, &ule) {
		t.Fatalf("expected UnresolvedLabelError, got %v", err)
	}
	if ule.Label != MainFunction || ule.From != bytecode.CALL {
		t.Errorf("unresolved %s from %s", ule.Label, ule.From)
	}
}

func TestMainWithParameters(t *testing.T) {
	prog := mustParse(t, "void main(int argc) { }")
	_, err := Build(prog, Options{})
	var de *DeclarationError
	if !errors.As(err, &de) || de.Name != MainFunction {
		t.Fatalf("expected DeclarationError for main, got %v", err)
	}
}

func TestLabelsAreTotal(t *testing.T) {
	for _, file := range []string{"factorial.mc", "arraymax.mc", "declarators.mc"} {
		gen, err := parseFile(t, file).Compile()
		if err != nil {
			t.Fatalf("Compile(%s): %v", file, err)
		}
		addrs, err := gen.Resolve()
		if err != nil {
			t.Fatalf("Resolve(%s): %v", file, err)
		}
		for _, in := range gen.Instructions() {
			if in.IsLabel() || !in.Op.IsJump() {
				continue
			}
			if _, ok := addrs[in.Target]; !ok {
				t.Errorf("%s: %s targets an unplaced label", file, in)
			}
		}
	}
}

func TestBuildSymbols(t *testing.T) {
	_, out, _ := runProgram(t, parseFile(t, "factorial.mc"), "")
	for _, name := range []string{"main", "fac"} {
		addr, ok := out.Symbols[name]
		if !ok {
			t.Fatalf("no symbol for %s", name)
		}
		if addr <= 0 || addr >= len(out.Code) {
			t.Errorf("%s at %d, code has %d cells", name, addr, len(out.Code))
		}
	}
	if out.Symbols["main"] >= out.Symbols["fac"] {
		t.Errorf("functions out of declaration order: %v", out.Symbols)
	}
}

func TestDuplicateDeclarations(t *testing.T) {
	prog := NewProgram()
	if err := prog.AddVar(&VarDecl{Name: "g", Type: IntType}); err != nil {
		t.Fatal(err)
	}
	var de *DeclarationError
	if err := prog.AddVar(&VarDecl{Name: "g", Type: BoolType}); !errors.As(err, &de) {
		t.Errorf("duplicate global: %v", err)
	}
	if err := prog.AddFunc(&FuncDecl{Name: "f", Body: &Block{}}); err != nil {
		t.Fatal(err)
	}
	if err := prog.AddFunc(&FuncDecl{Name: "f", Body: &Block{}}); !errors.As(err, &de) {
		t.Errorf("duplicate function: %v", err)
	}
	if len(prog.Globals()) != 1 || len(prog.Funcs()) != 1 {
		t.Errorf("duplicates were added")
	}
	if prog.Global("g").Type != IntType {
		t.Errorf("first global declaration should win")
	}
}

// A declaration used directly as a branch or loop body allocates only when
// that path runs, so it gets a scope of its own.
func TestBranchDeclarationsAreBalanced(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "if without else",
			src:  "int g; void main() { g = 5; if (false) int x; write g; }",
			want: "5 ",
		},
		{
			name: "both branches",
			src:  "int g; void main() { if (g == 0) int x; else int y[3]; write g; }",
			want: "0 ",
		},
		{
			name: "inside a loop",
			src:  "int n; void main() { n = 0; while (n < 3) { n = n + 1; if (false) int x; } write n; }",
			want: "3 ",
		},
		{
			name: "taken branch",
			src:  "int n; void main() { n = 0; while (n < 4) { n = n + 1; if (true) int *p; } write n; }",
			want: "4 ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, out, res := runProgram(t, mustParse(t, tt.src), "")
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
			if res.Depth != out.GlobalCells+1 {
				t.Errorf("final depth = %d, want %d", res.Depth, out.GlobalCells+1)
			}
		})
	}
}

func TestBranchDeclarationDoesNotLeak(t *testing.T) {
	for _, src := range []string{
		"void main() { if (true) int x; x = 1; }",
		"void main() { while (false) int x; x = 1; }",
	} {
		err := mustParse(t, src).Check(Options{})
		var ue *UnboundNameError
		if !errors.As(err, &ue) || ue.Name != "x" {
			t.Errorf("%s: Check = %v, want unbound x", src, err)
		}
	}
}

func TestCheckRejectsMainWithParameters(t *testing.T) {
	err := mustParse(t, "void main(int x) { }").Check(Options{})
	var de *DeclarationError
	if !errors.As(err, &de) || de.Name != MainFunction {
		t.Fatalf("Check = %v, want DeclarationError for main", err)
	}
}

func TestFuncErrorNamesFunction(t *testing.T) {
	err := mustParse(t, "void f() { write true; } void main() { }").Check(Options{})
	var fe *FuncError
	if !errors.As(err, &fe) || fe.Func != "f" {
		t.Fatalf("Check = %v, want FuncError for f", err)
	}
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("FuncError does not unwrap to the TypeError: %v", err)
	}
	if strings.Contains(te.Message(), "type error") {
		t.Errorf("Message repeats the kind: %q", te.Message())
	}
}
