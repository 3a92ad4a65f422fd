package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/aymanbagabas/go-udiff"

	"github.com/chazu/microc/pkg/bytecode"
)

// compileExprCode compiles a single expression against globals
// x (address 0), p (1), a (array 3, base cell 5) and function f.
func compileExprCode(t *testing.T, src string) []string {
	t.Helper()
	prog := NewProgram()
	prog.AddVar(&VarDecl{Name: "x", Type: IntType})
	prog.AddVar(&VarDecl{Name: "p", Type: PointerTo(IntType)})
	prog.AddVar(&VarDecl{Name: "a", Type: ArrayOf(IntType, 3)})
	prog.AddFunc(&FuncDecl{Name: "f", Params: []*VarDecl{{Name: "m", Type: IntType}, {Name: "n", Type: IntType}}, Body: &Block{}})

	env := NewCEnv(prog, bytecode.NewGenerator())
	for _, g := range prog.Globals() {
		env.DeclareGlobal(bytecode.NewGenerator(), g)
	}

	gen := bytecode.NewGenerator()
	if err := CompileExpr(env.NewFuncEnv(), gen, parseExpr(t, src)); err != nil {
		t.Fatalf("CompileExpr(%s): %v", src, err)
	}
	var out []string
	for _, in := range gen.Instructions() {
		out = append(out, in.String())
	}
	return out
}

func TestCompileExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"10 - 3", "CSTI 10; CSTI 3; SUB"},
		{"1 == 2", "CSTI 1; CSTI 2; EQ"},
		{"1 != 2", "CSTI 1; CSTI 2; EQ; NOT"},
		{"1 < 2", "CSTI 1; CSTI 2; LT"},
		{"1 >= 2", "CSTI 1; CSTI 2; LT; NOT"},
		{"1 > 2", "CSTI 1; CSTI 2; SWAP; LT"},
		{"1 <= 2", "CSTI 1; CSTI 2; SWAP; LT; NOT"},
		{"7 % 2", "CSTI 7; CSTI 2; MOD"},
		{"-5", "CSTI 5; CSTI 0; SWAP; SUB"},
		{"!true", "CSTI 1; NOT"},
		{"write 3", "CSTI 3; PRINTI"},
		{"x", "CSTI 0; LDI"},
		{"x = 4", "CSTI 0; CSTI 4; STI"},
		{"&x", "CSTI 0"},
		{"*p", "CSTI 1; LDI; LDI"},
		{"*p = x", "CSTI 1; LDI; CSTI 0; LDI; STI"},
		{"a[2]", "CSTI 5; LDI; CSTI 2; ADD; LDI"},
		{"&a[2]", "CSTI 5; LDI; CSTI 2; ADD"},
		{"p + 1", "CSTI 1; LDI; CSTI 1; ADD"},
		{"f(1, x = 2)", "CSTI 1; CSTI 0; CSTI 2; STI; CALL 2 L1"},
		{"true && false", "CSTI 1; IFZERO L1; CSTI 0; GOTO L2; L1:; CSTI 0; L2:"},
		{"false || true", "CSTI 0; IFNZRO L1; CSTI 1; GOTO L2; L1:; CSTI 1; L2:"},
	}

	for _, tt := range tests {
		got := strings.Join(compileExprCode(t, tt.expr), "; ")
		if got != tt.want {
			t.Errorf("%s:\n got  %s\n want %s", tt.expr, got, tt.want)
		}
	}
}

func TestCompileAllocation(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{IntType, "INCSP 1"},
		{PointerTo(IntType), "INCSP 1"},
		{UnsizedArrayOf(IntType), "INCSP 1"},
		{ArrayOf(IntType, 4), "INCSP 4; GETSP; CSTI 3; SUB"},
	}

	for _, tt := range tests {
		gen := bytecode.NewGenerator()
		compileAllocation(gen, tt.typ)
		var parts []string
		for _, in := range gen.Instructions() {
			parts = append(parts, in.String())
		}
		if got := strings.Join(parts, "; "); got != tt.want {
			t.Errorf("%s: %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestCEnvOffsets(t *testing.T) {
	prog := NewProgram()
	env := NewCEnv(prog, bytecode.NewGenerator()).NewFuncEnv()

	env.PushScope()
	if n := env.DeclareLocal(&VarDecl{Name: "i", Type: IntType}); n != 1 {
		t.Errorf("int reserved %d cells", n)
	}
	if n := env.DeclareLocal(&VarDecl{Name: "a", Type: ArrayOf(IntType, 3)}); n != 4 {
		t.Errorf("int[3] reserved %d cells", n)
	}
	env.PushScope()
	env.DeclareLocal(&VarDecl{Name: "j", Type: IntType})
	if got := env.MostLocalSize(); got != 1 {
		t.Errorf("inner MostLocalSize = %d, want 1", got)
	}
	env.PopScope()
	if got := env.MostLocalSize(); got != 5 {
		t.Errorf("outer MostLocalSize = %d, want 5", got)
	}

	// a lives at its base-address cell, offset 4.
	gen := bytecode.NewGenerator()
	if err := env.CompileVariableAddress(gen, "a"); err != nil {
		t.Fatalf("CompileVariableAddress: %v", err)
	}
	if got := gen.Listing(); !strings.Contains(got, "CSTI 4") {
		t.Errorf("address of a:\n%s", got)
	}
	if err := env.CompileVariableAddress(gen, "j"); err == nil {
		t.Error("j should be out of scope")
	}
	env.PopScope()

	if _, err := env.FunctionLabel("nope"); err == nil {
		t.Error("expected error for unregistered function")
	}
}

func TestFunctionEnvsStartFresh(t *testing.T) {
	prog, err := Parse(heredoc.Doc(`
		int g;
		void main() { int a; int b; a = 1; }
		void f() { int c; c = 2; }
	`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	gen, err := prog.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// c is the first local of f and must be at offset 0 again.
	listing := gen.Listing()
	fStart := strings.Index(listing, "L2:")
	if fStart < 0 {
		t.Fatalf("no label for f:\n%s", listing)
	}
	if !strings.Contains(listing[fStart:], "GETBP\n") || !strings.Contains(listing[fStart:], "CSTI 0\n") {
		t.Errorf("c not at offset 0:\n%s", listing[fStart:])
	}
}

const goldenProgram = `
int g;
void main() {
  int x;
  x = 1;
  if (x < 2) g = x; else ;
  while (false) { int y; }
  f(x);
}
void f(int n) { write n; }
`

// goldenListing is column-aligned, so it is not passed through heredoc.
var goldenListing = `    0 INCSP 1
    2 CALL 0 L1
    5 STOP
    6 L1:
    6 INCSP 1
    8 GETBP
    9 CSTI 0
   11 ADD
   12 CSTI 1
   14 STI
   15 INCSP -1
   17 GETBP
   18 CSTI 0
   20 ADD
   21 LDI
   22 CSTI 2
   24 LT
   25 IFZERO L3
   27 CSTI 0
   29 GETBP
   30 CSTI 0
   32 ADD
   33 LDI
   34 STI
   35 INCSP -1
   37 GOTO L4
   39 L3:
   39 INCSP 0
   41 L4:
   41 L5:
   41 CSTI 0
   43 IFZERO L6
   45 INCSP 1
   47 INCSP -1
   49 GOTO L5
   51 L6:
   51 GETBP
   52 CSTI 0
   54 ADD
   55 LDI
   56 CALL 1 L2
   59 INCSP -1
   61 INCSP -1
   63 RET -1
   65 L2:
   65 GETBP
   66 CSTI 0
   68 ADD
   69 LDI
   70 PRINTI
   71 INCSP -1
   73 INCSP 0
   75 RET 0
`

func TestCompileGoldenListing(t *testing.T) {
	prog, err := Parse(goldenProgram)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Build(prog, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if out.Listing != goldenListing {
		t.Errorf("listing mismatch:\n%s", udiff.Unified("want", "got", goldenListing, out.Listing))
	}
	if len(out.Code) != 77 {
		t.Errorf("len(code) = %d, want 77", len(out.Code))
	}
	if out.Symbols["main"] != 6 || out.Symbols["f"] != 65 {
		t.Errorf("symbols = %v", out.Symbols)
	}
	if out.GlobalCells != 1 {
		t.Errorf("GlobalCells = %d, want 1", out.GlobalCells)
	}
}

func TestCompileUnboundVariableIsReported(t *testing.T) {
	// Compile without Check: the environment still rejects unknown names.
	prog, err := Parse("void main() { x = 1; }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = prog.Compile()
	var ue *UnboundNameError
	if !errors.As(err, &ue) || ue.Name != "x" {
		t.Fatalf("expected UnboundNameError for x, got %v", err)
	}
}
