package compiler

import (
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Source printer: canonical layout for MicroC programs
// ---------------------------------------------------------------------------

// Format parses src and prints it in canonical layout: two-space
// indentation, one statement per line and only the parentheses precedence
// requires. Comments are kept, each on its own line before the declaration
// or statement that follows it.
func Format(src string) (string, error) {
	p := NewParser(src)
	prog := p.ParseProgram()
	if len(p.errors) > 0 {
		return "", &ParseError{Errors: p.errors}
	}
	if p.declErr != nil {
		return "", p.declErr
	}
	return FormatProgram(prog, p.Comments()), nil
}

// FormatProgram prints prog in canonical layout, interleaving comments by
// source offset. Comments may be nil.
func FormatProgram(prog *Program, comments []Comment) string {
	pr := &printer{comments: comments}

	var items []Node
	for _, g := range prog.Globals() {
		items = append(items, g)
	}
	for _, fn := range prog.Funcs() {
		items = append(items, fn)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Span().Start.Offset < items[j].Span().Start.Offset
	})

	for i, item := range items {
		_, isFunc := item.(*FuncDecl)
		if i > 0 {
			_, prevFunc := items[i-1].(*FuncDecl)
			if isFunc || prevFunc {
				pr.b.WriteByte('\n')
			}
		}
		pr.flushComments(item.Span().Start.Offset)
		switch item := item.(type) {
		case *VarDecl:
			pr.line(DeclString(item) + ";")
		case *FuncDecl:
			pr.function(item)
		}
	}
	pr.flushComments(-1)
	return pr.b.String()
}

// DeclString renders a declaration in C declarator syntax, e.g.
// "int *(*ipap)[4]".
func DeclString(d *VarDecl) string {
	base, decl := declarator(d.Type, d.Name)
	return base + " " + decl
}

func declarator(t Type, inner string) (string, string) {
	switch t := t.(type) {
	case *PointerType:
		return declarator(t.Item, "*"+inner)
	case *ArrayType:
		if strings.HasPrefix(inner, "*") {
			inner = "(" + inner + ")"
		}
		if t.Sized {
			return declarator(t.Elem, inner+"["+strconv.Itoa(t.Len)+"]")
		}
		return declarator(t.Elem, inner+"[]")
	}
	return t.String(), inner
}

type printer struct {
	b        strings.Builder
	indent   int
	comments []Comment
}

func (pr *printer) line(s string) {
	pr.b.WriteString(strings.Repeat("  ", pr.indent))
	pr.b.WriteString(s)
	pr.b.WriteByte('\n')
}

// flushComments prints the pending comments that start before offset, or
// all of them when offset is negative.
func (pr *printer) flushComments(offset int) {
	for len(pr.comments) > 0 && (offset < 0 || pr.comments[0].Pos.Offset < offset) {
		pr.line(pr.comments[0].Text)
		pr.comments = pr.comments[1:]
	}
}

func (pr *printer) function(fn *FuncDecl) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = DeclString(p)
	}
	pr.line("void " + fn.Name + "(" + strings.Join(params, ", ") + ") {")
	pr.blockBody(fn.Body)
	pr.line("}")
}

func (pr *printer) blockBody(b *Block) {
	pr.indent++
	for _, st := range b.Stmts {
		pr.stmt(st)
	}
	pr.flushComments(b.Span().End.Offset)
	pr.indent--
}

func (pr *printer) stmt(s Stmt) {
	pr.flushComments(s.Span().Start.Offset)
	switch s := s.(type) {
	case *ExprStmt:
		pr.line(FormatSource(s.X) + ";")
	case *VarDecl:
		pr.line(DeclString(s) + ";")
	case *Read:
		pr.line("read " + FormatSource(s.Target) + ";")
	case *Block:
		if isNullStmt(s) {
			pr.line(";")
			return
		}
		pr.line("{")
		pr.blockBody(s)
		pr.line("}")
	case *While:
		pr.clause("while ("+FormatSource(s.Cond)+")", s.Body, false)
	case *IfElse:
		pr.ifElse(s, "")
	}
}

func (pr *printer) ifElse(s *IfElse, prefix string) {
	head := prefix + "if (" + FormatSource(s.Cond) + ")"
	hasElse := !isOmittedElse(s.Else)
	braced := pr.clause(head, s.Then, hasElse)
	if !hasElse {
		return
	}
	elseHead := "else"
	if braced {
		elseHead = "} else"
	}
	if nested, ok := s.Else.(*IfElse); ok {
		pr.ifElse(nested, elseHead+" ")
		return
	}
	pr.clause(elseHead, s.Else, false)
}

// clause prints head followed by body. A braced body opens on the head's
// line and reports true; when open is set its closing brace is left to the
// caller.
func (pr *printer) clause(head string, body Stmt, open bool) bool {
	if b, ok := body.(*Block); ok && !isNullStmt(b) {
		pr.line(head + " {")
		pr.blockBody(b)
		if !open {
			pr.line("}")
		}
		return true
	}
	pr.line(head)
	pr.indent++
	pr.stmt(body)
	pr.indent--
	return false
}

// isNullStmt reports whether b was written as a lone semicolon.
func isNullStmt(b *Block) bool {
	sp := b.Span()
	return len(b.Stmts) == 0 && sp.End.Offset-sp.Start.Offset == 1
}

// isOmittedElse reports whether s is the empty else the parser supplies
// for an if without one.
func isOmittedElse(s Stmt) bool {
	b, ok := s.(*Block)
	if !ok || len(b.Stmts) > 0 {
		return false
	}
	sp := b.Span()
	return sp.Start.Offset == sp.End.Offset
}

// Expression precedence, loosest first.
const (
	precAssign = iota // assignment and write
	precOr
	precAnd
	precEq
	precRel
	precAdd
	precMul
	precUnary
	precPostfix
)

var binaryPrec = map[Operator]int{
	OpOr:  precOr,
	OpAnd: precAnd,
	OpEq:  precEq,
	OpNe:  precEq,
	OpLt:  precRel,
	OpLe:  precRel,
	OpGt:  precRel,
	OpGe:  precRel,
	OpAdd: precAdd,
	OpSub: precAdd,
	OpMul: precMul,
	OpDiv: precMul,
	OpMod: precMul,
}

// FormatSource renders e as it would be written in a program, with only
// the parentheses needed to parse back to the same tree.
func FormatSource(e Expr) string {
	var b strings.Builder
	sourceExpr(&b, e, precAssign)
	return b.String()
}

func exprPrec(e Expr) int {
	switch e := e.(type) {
	case *Assignment:
		return precAssign
	case *UnaryOp:
		if e.Op == OpWrite {
			return precAssign
		}
		return precUnary
	case *BinaryOp:
		return binaryPrec[e.Op]
	case *Deref, *AddressOf:
		return precUnary
	case *Constant:
		if e.Value < 0 {
			return precUnary
		}
	}
	return precPostfix
}

func sourceExpr(b *strings.Builder, e Expr, min int) {
	if exprPrec(e) < min {
		b.WriteByte('(')
		sourceExpr(b, e, precAssign)
		b.WriteByte(')')
		return
	}
	switch e := e.(type) {
	case *UnaryOp:
		if e.Op == OpWrite {
			b.WriteString("write ")
			sourceExpr(b, e.Operand, precAssign)
			return
		}
		b.WriteString(e.Op.String())
		sourceExpr(b, e.Operand, precUnary)
	case *BinaryOp:
		p := binaryPrec[e.Op]
		sourceExpr(b, e.Left, p)
		b.WriteString(" " + e.Op.String() + " ")
		sourceExpr(b, e.Right, p+1)
	case *AddressOf:
		b.WriteByte('&')
		sourceExpr(b, e.Operand, precUnary)
	case *Deref:
		b.WriteByte('*')
		sourceExpr(b, e.Pointer, precUnary)
	case *Assignment:
		sourceExpr(b, e.Target, precUnary)
		b.WriteString(" = ")
		sourceExpr(b, e.Value, precAssign)
	case *Call:
		b.WriteString(e.Name)
		b.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			sourceExpr(b, arg, precAssign)
		}
		b.WriteByte(')')
	case *Index:
		sourceExpr(b, e.Base, precPostfix)
		b.WriteByte('[')
		sourceExpr(b, e.Index, precAssign)
		b.WriteByte(']')
	default:
		formatExpr(b, e)
	}
}
