package server

import (
	"errors"

	"github.com/chazu/microc/compiler"
	"github.com/chazu/microc/pkg/bytecode"
)

// Diagnostic is a compiler error located in the source. Line and Column are
// 1-based; both are 0 when the error has no position.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Diagnostic kinds.
const (
	KindSyntax      = "syntax"
	KindType        = "type"
	KindUnbound     = "unbound"
	KindDeclaration = "declaration"
	KindLink        = "link"
	KindInternal    = "internal"
)

// Diagnose converts an error from parsing or building into diagnostics.
// A parse error yields one diagnostic per syntax error. Messages carry no
// position or kind, since both are fields of the diagnostic.
func Diagnose(err error) []Diagnostic {
	if err == nil {
		return nil
	}

	var (
		pe  *compiler.ParseError
		te  *compiler.TypeError
		ue  *compiler.UnboundNameError
		de  *compiler.DeclarationError
		le  *compiler.NotLvalueError
		ule *bytecode.UnresolvedLabelError
		fe  *compiler.FuncError
	)
	context := ""
	if errors.As(err, &fe) {
		context = "in function " + fe.Func + ": "
	}
	switch {
	case errors.As(err, &pe):
		diags := make([]Diagnostic, len(pe.Errors))
		for i, se := range pe.Errors {
			diags[i] = at(se.Pos, KindSyntax, se.Msg)
		}
		return diags
	case errors.As(err, &te):
		return []Diagnostic{at(te.Pos, KindType, context+te.Message())}
	case errors.As(err, &ue):
		return []Diagnostic{at(ue.Pos, KindUnbound, context+ue.Message())}
	case errors.As(err, &de):
		return []Diagnostic{at(de.Pos, KindDeclaration, context+de.Message())}
	case errors.As(err, &le):
		return []Diagnostic{at(le.Pos, KindSyntax, context+le.Message())}
	case errors.As(err, &ule):
		if ule.Label == compiler.MainFunction {
			return []Diagnostic{{Kind: KindLink, Message: "program has no main function"}}
		}
		return []Diagnostic{{Kind: KindLink, Message: err.Error()}}
	}
	return []Diagnostic{{Kind: KindInternal, Message: err.Error()}}
}

func at(pos compiler.Position, kind, msg string) Diagnostic {
	return Diagnostic{Line: pos.Line, Column: pos.Column, Kind: kind, Message: msg}
}
