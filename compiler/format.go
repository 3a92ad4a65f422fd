package compiler

import (
	"strconv"
	"strings"
)

// FormatExpr renders e in MicroC source syntax. Binary operations are fully
// parenthesized so the rendering is unambiguous.
func FormatExpr(e Expr) string {
	var b strings.Builder
	formatExpr(&b, e)
	return b.String()
}

func formatExpr(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case *Constant:
		if Equal(e.Type, BoolType) {
			if e.Value != 0 {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
			return
		}
		b.WriteString(strconv.Itoa(e.Value))
	case *UnaryOp:
		if e.Op == OpWrite {
			b.WriteString("write ")
		} else {
			b.WriteString(e.Op.String())
		}
		formatExpr(b, e.Operand)
	case *BinaryOp:
		b.WriteByte('(')
		formatExpr(b, e.Left)
		b.WriteString(" " + e.Op.String() + " ")
		formatExpr(b, e.Right)
		b.WriteByte(')')
	case *AddressOf:
		b.WriteByte('&')
		formatExpr(b, e.Operand)
	case *Assignment:
		formatExpr(b, e.Target)
		b.WriteString(" = ")
		formatExpr(b, e.Value)
	case *Call:
		b.WriteString(e.Name)
		b.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			formatExpr(b, arg)
		}
		b.WriteByte(')')
	case *Variable:
		b.WriteString(e.Name)
	case *Deref:
		b.WriteByte('*')
		formatExpr(b, e.Pointer)
	case *Index:
		formatExpr(b, e.Base)
		b.WriteByte('[')
		formatExpr(b, e.Index)
		b.WriteByte(']')
	default:
		b.WriteString("<?>")
	}
}
