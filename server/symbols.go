package server

import (
	"github.com/chazu/microc/compiler"
)

// symbol is a declared name in a source file.
type symbol struct {
	Name   string
	Kind   string // "function", "global", "parameter" or "local"
	Detail string
	Decl   compiler.Span
	Scope  *compiler.FuncDecl // enclosing function; nil for top-level names
}

// collectSymbols lists the declarations of prog: globals, functions, and the
// parameters and locals of each function.
func collectSymbols(prog *compiler.Program) []symbol {
	var syms []symbol
	for _, g := range prog.Globals() {
		syms = append(syms, symbol{Name: g.Name, Kind: "global", Detail: declDetail(g), Decl: g.Span()})
	}
	for _, fn := range prog.Funcs() {
		syms = append(syms, symbol{Name: fn.Name, Kind: "function", Detail: fn.Signature(), Decl: fn.Span()})
		for _, p := range fn.Params {
			syms = append(syms, symbol{Name: p.Name, Kind: "parameter", Detail: declDetail(p), Decl: p.Span(), Scope: fn})
		}
		walkStmt(fn.Body, func(n compiler.Node) {
			if d, ok := n.(*compiler.VarDecl); ok {
				syms = append(syms, symbol{Name: d.Name, Kind: "local", Detail: declDetail(d), Decl: d.Span(), Scope: fn})
			}
		})
	}
	return syms
}

func declDetail(d *compiler.VarDecl) string {
	return d.Name + ": " + d.Type.String()
}

// lookupSymbol resolves name as seen from line: a parameter or local of the
// function containing the line wins over a global or function. Among locals
// the last declaration before the line is preferred.
func lookupSymbol(syms []symbol, name string, line int) *symbol {
	var best *symbol
	for i := range syms {
		s := &syms[i]
		if s.Name != name {
			continue
		}
		if s.Scope == nil {
			if best == nil {
				best = s
			}
			continue
		}
		span := s.Scope.Span()
		if line < span.Start.Line || line > span.End.Line {
			continue
		}
		if best == nil || best.Scope == nil || s.Decl.Start.Line <= line {
			best = s
		}
	}
	return best
}

// references returns the spans of every use of name as a variable or
// function in prog.
func references(prog *compiler.Program, name string) []compiler.Span {
	var spans []compiler.Span
	for _, fn := range prog.Funcs() {
		walkStmt(fn.Body, func(n compiler.Node) {
			switch n := n.(type) {
			case *compiler.Variable:
				if n.Name == name {
					spans = append(spans, n.Span())
				}
			case *compiler.Call:
				if n.Name == name {
					spans = append(spans, n.Span())
				}
			}
		})
	}
	return spans
}

// walkStmt calls visit for s and every statement and expression below it.
func walkStmt(s compiler.Stmt, visit func(compiler.Node)) {
	if s == nil {
		return
	}
	visit(s)
	switch s := s.(type) {
	case *compiler.ExprStmt:
		walkExpr(s.X, visit)
	case *compiler.Block:
		for _, st := range s.Stmts {
			walkStmt(st, visit)
		}
	case *compiler.IfElse:
		walkExpr(s.Cond, visit)
		walkStmt(s.Then, visit)
		walkStmt(s.Else, visit)
	case *compiler.While:
		walkExpr(s.Cond, visit)
		walkStmt(s.Body, visit)
	case *compiler.Read:
		walkExpr(s.Target, visit)
	}
}

func walkExpr(e compiler.Expr, visit func(compiler.Node)) {
	if e == nil {
		return
	}
	visit(e)
	switch e := e.(type) {
	case *compiler.UnaryOp:
		walkExpr(e.Operand, visit)
	case *compiler.BinaryOp:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case *compiler.AddressOf:
		walkExpr(e.Operand, visit)
	case *compiler.Assignment:
		walkExpr(e.Target, visit)
		walkExpr(e.Value, visit)
	case *compiler.Call:
		for _, a := range e.Args {
			walkExpr(a, visit)
		}
	case *compiler.Deref:
		walkExpr(e.Pointer, visit)
	case *compiler.Index:
		walkExpr(e.Base, visit)
		walkExpr(e.Index, visit)
	}
}
