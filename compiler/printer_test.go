package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
)

func TestFormatLayout(t *testing.T) {
	src := heredoc.Doc(`
		int  g ;
		// entry point
		void main ( ) { int a[3]; int *(*p)[4];
		  if (a[0] < 1) { write (1 + 2) * 3; } else if (g) write -(g - 1); else ;
		  while (g>0) g = g - 1;
		  /* trailing */ }
		void f(int xs[], int *q) { ; }
	`)
	want := heredoc.Doc(`
		int g;

		// entry point
		void main() {
		  int a[3];
		  int *(*p)[4];
		  if (a[0] < 1) {
		    write (1 + 2) * 3;
		  } else if (g)
		    write -(g - 1);
		  else
		    ;
		  while (g > 0)
		    g = g - 1;
		  /* trailing */
		}

		void f(int xs[], int *q) {
		  ;
		}
	`)

	got, err := Format(src)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != want {
		t.Errorf("Format mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatOmitsMissingElse(t *testing.T) {
	got, err := Format("void main() { if (1 < 2) write 1; }")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if strings.Contains(got, "else") {
		t.Errorf("Format added an else:\n%s", got)
	}
}

func TestFormatSource(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"a-(b-c)", "a - (b - c)"},
		{"(a-b)-c", "a - b - c"},
		{"((x))", "x"},
		{"a+b*c", "a + b * c"},
		{"(a+b)*c", "(a + b) * c"},
		{"*(p+1)", "*(p + 1)"},
		{"(*iap)[n]", "(*iap)[n]"},
		{"*(*ipap)[n]", "*(*ipap)[n]"},
		{"&a[0]", "&a[0]"},
		{"!(a && b) || c", "!(a && b) || c"},
		{"a || b && c", "a || b && c"},
		{"(a || b) && c", "(a || b) && c"},
		{"a = b = 3", "a = b = 3"},
		{"(a = 1) + 2", "(a = 1) + 2"},
		{"f(1, (2 + 3))", "f(1, 2 + 3)"},
		{"write a = 1", "write a = 1"},
		{"(write a) + 1", "(write a) + 1"},
		{"-(-a)", "--a"},
		{"a < b == c < d", "a < b == c < d"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := mustParse(t, "void main() { "+tt.src+"; }")
			stmt, ok := prog.Funcs()[0].Body.Stmts[0].(*ExprStmt)
			if !ok {
				t.Fatalf("statement is %T, want *ExprStmt", prog.Funcs()[0].Body.Stmts[0])
			}
			if got := FormatSource(stmt.X); got != tt.want {
				t.Errorf("FormatSource = %q, want %q", got, tt.want)
			}
			// The rendering parses back to the same tree.
			again := mustParse(t, "void main() { "+tt.want+"; }")
			x := again.Funcs()[0].Body.Stmts[0].(*ExprStmt).X
			if FormatExpr(x) != FormatExpr(stmt.X) {
				t.Errorf("reparsed as %s, want %s", FormatExpr(x), FormatExpr(stmt.X))
			}
		})
	}
}

func TestDeclString(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"n", IntType, "int n"},
		{"b", BoolType, "bool b"},
		{"p", PointerTo(IntType), "int *p"},
		{"ia", ArrayOf(IntType, 3), "int ia[3]"},
		{"ipa", ArrayOf(PointerTo(IntType), 4), "int *ipa[4]"},
		{"iap", PointerTo(ArrayOf(IntType, 3)), "int (*iap)[3]"},
		{"ipap", PointerTo(ArrayOf(PointerTo(IntType), 4)), "int *(*ipap)[4]"},
		{"m", ArrayOf(ArrayOf(IntType, 3), 2), "int m[2][3]"},
		{"xs", UnsizedArrayOf(IntType), "int xs[]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := DeclString(&VarDecl{Name: tt.name, Type: tt.typ}); got != tt.want {
				t.Errorf("DeclString = %q, want %q", got, tt.want)
			}
		})
	}
}

// Formatting the sample programs is idempotent, keeps every comment and
// does not change the generated code.
func TestFormatRoundTrip(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.mc"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no sample programs: %v", err)
	}

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			src, err := os.ReadFile(file)
			if err != nil {
				t.Fatal(err)
			}
			once, err := Format(string(src))
			if err != nil {
				t.Fatalf("Format: %v", err)
			}
			twice, err := Format(once)
			if err != nil {
				t.Fatalf("Format of formatted source: %v", err)
			}
			if once != twice {
				t.Errorf("Format is not idempotent\nfirst:\n%s\nsecond:\n%s", once, twice)
			}

			p := NewParser(string(src))
			p.ParseProgram()
			for _, c := range p.Comments() {
				if !strings.Contains(once, c.Text) {
					t.Errorf("comment %q lost", c.Text)
				}
			}

			before, err := mustParse(t, string(src)).Compile()
			if err != nil {
				t.Skipf("not compilable: %v", err)
			}
			after, err := mustParse(t, once).Compile()
			if err != nil {
				t.Fatalf("Compile of formatted source: %v", err)
			}
			want, err := before.ToBytecode()
			if err != nil {
				t.Skipf("not assemblable: %v", err)
			}
			got, err := after.ToBytecode()
			if err != nil {
				t.Fatalf("ToBytecode of formatted source: %v", err)
			}
			if !slices.Equal(got, want) {
				t.Errorf("formatted source compiles differently")
			}
		})
	}
}

func TestFormatSyntaxError(t *testing.T) {
	_, err := Format("void main() { write ; }")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Format error = %v, want *ParseError", err)
	}
}
