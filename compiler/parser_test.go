package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/MakeNowJust/heredoc"
)

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser(input)
	e := p.ParseExpression()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors for %q: %v", input, p.Errors())
	}
	return e
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"10 - 3 - 2", "((10 - 3) - 2)"},
		{"a < b == c < d", "((a < b) == (c < d))"},
		{"a || b && c", "(a || (b && c))"},
		{"-a * b", "(-a * b)"},
		{"!a && b", "(!a && b)"},
		{"x = y = 3", "x = y = 3"},
		{"*p + 1", "(*p + 1)"},
		{"*(p + 1)", "*(p + 1)"},
		{"&a[2]", "&a[2]"},
		{"a[i][j]", "a[i][j]"},
		{"f(1, g(), x = 2)", "f(1, g(), x = 2)"},
		{"write x + 1", "write (x + 1)"},
		{"+5", "5"},
		{"true && false", "(true && false)"},
		{"7 % 3", "(7 % 3)"},
	}

	for _, tt := range tests {
		if got := FormatExpr(parseExpr(t, tt.input)); got != tt.want {
			t.Errorf("%q parsed as %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParserDeclarators(t *testing.T) {
	src := heredoc.Doc(`
		int n;
		int ia[3];
		int *p;
		int *ipa[4];
		int (*iap)[3];
		int *(*ipap)[4];
		bool b;
		void f(int xs[], int *out) { }
	`)
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"n", "int"},
		{"ia", "array 3 of int"},
		{"p", "pointer to int"},
		{"ipa", "array 4 of pointer to int"},
		{"iap", "pointer to array 3 of int"},
		{"ipap", "pointer to array 4 of pointer to int"},
		{"b", "bool"},
	}
	for _, tt := range tests {
		g := prog.Global(tt.name)
		if g == nil {
			t.Errorf("global %s missing", tt.name)
			continue
		}
		if got := g.Type.String(); got != tt.want {
			t.Errorf("%s: type %s, want %s", tt.name, got, tt.want)
		}
	}

	f := prog.Func("f")
	if f == nil || len(f.Params) != 2 {
		t.Fatalf("function f not parsed: %+v", f)
	}
	if got := f.Params[0].Type.String(); got != "array of int" {
		t.Errorf("param xs: %s", got)
	}
	if got := f.Signature(); got != "void f(array of int xs, pointer to int out)" {
		t.Errorf("Signature = %q", got)
	}
}

func TestParserStatements(t *testing.T) {
	src := heredoc.Doc(`
		void main() {
		  int i;
		  read i;
		  ;
		  if (i > 0) write i; else { write 0; }
		  if (true) i = 1;
		  while (i < 10) i = i + 1;
		}
	`)
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	body := prog.Func("main").Body.Stmts
	if len(body) != 6 {
		t.Fatalf("got %d statements, want 6", len(body))
	}
	if _, ok := body[0].(*VarDecl); !ok {
		t.Errorf("stmt 0 is %T", body[0])
	}
	if r, ok := body[1].(*Read); !ok || FormatExpr(r.Target) != "i" {
		t.Errorf("stmt 1 is %T", body[1])
	}
	if b, ok := body[2].(*Block); !ok || len(b.Stmts) != 0 {
		t.Errorf("stmt 2 should be an empty block, got %T", body[2])
	}
	ifs := body[4].(*IfElse)
	if b, ok := ifs.Else.(*Block); !ok || len(b.Stmts) != 0 {
		t.Errorf("missing else should be an empty block, got %T", ifs.Else)
	}
	if _, ok := body[5].(*While); !ok {
		t.Errorf("stmt 5 is %T", body[5])
	}
}

func TestParserSpans(t *testing.T) {
	prog, err := Parse("void main() {\n  write 10 - 3;\n}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	stmt := prog.Func("main").Body.Stmts[0].(*ExprStmt)
	sp := stmt.X.Span()
	if sp.Start.Line != 2 || sp.Start.Column != 3 {
		t.Errorf("start = %v, want 2:3", sp.Start)
	}
	if sp.End.Line != 2 || sp.End.Column != 15 {
		t.Errorf("end = %v, want 2:15", sp.End)
	}
}

func TestParserRecoversFromErrors(t *testing.T) {
	src := heredoc.Doc(`
		void main() {
		  int x;
		  x = ;
		  x = 1 +;
		  write x;
		}
		int @ y;
		void g() { }
	`)
	p := NewParser(src)
	prog := p.ParseProgram()
	if len(p.Errors()) < 3 {
		t.Fatalf("expected at least 3 errors, got %v", p.Errors())
	}
	if prog.Func("g") == nil {
		t.Error("parser did not recover to parse g")
	}

	_, err := Parse(src)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if !strings.Contains(pe.Error(), "3:") {
		t.Errorf("error should mention line 3: %v", pe)
	}
}

func TestParserLvalueErrors(t *testing.T) {
	tests := []string{
		"void main() { 1 = 2; }",
		"void main() { int x; x = &5; }",
		"void main() { read 3; }",
		"void main() { (1)(2); }",
	}
	for _, src := range tests {
		if _, err := Parse(src); err == nil {
			t.Errorf("%q: expected error", src)
		}
	}
}

func TestParserDuplicateDeclarations(t *testing.T) {
	tests := []struct {
		src  string
		kind string
	}{
		{"int x; int x; void main() { }", "variable"},
		{"void main() { } void main() { }", "function"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.src)
		var de *DeclarationError
		if !errors.As(err, &de) {
			t.Fatalf("%q: expected DeclarationError, got %v", tt.src, err)
		}
		if de.Kind != tt.kind {
			t.Errorf("%q: kind %s, want %s", tt.src, de.Kind, tt.kind)
		}
	}
}

func TestToAccess(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"x", true},
		{"*p", true},
		{"a[1]", true},
		{"x + 1", false},
		{"&x", false},
		{"42", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := ToAccess(parseExpr(t, tt.input))
			if tt.ok {
				if err != nil || a == nil {
					t.Errorf("ToAccess(%s) = %v, %v", tt.input, a, err)
				}
				return
			}
			var le *NotLvalueError
			if !errors.As(err, &le) {
				t.Fatalf("ToAccess(%s) error = %v, want NotLvalueError", tt.input, err)
			}
			if le.Expr != FormatExpr(parseExpr(t, tt.input)) {
				t.Errorf("error names %q", le.Expr)
			}
		})
	}
}
