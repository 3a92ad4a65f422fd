package hash

import (
	"encoding/binary"

	"github.com/chazu/microc/compiler"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the MicroC AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian int64 (8B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Lists: uint32 count followed by the elements
//   - Child nodes: serialized inline (flat)
//
// Source positions are not serialized, so layout and comments do not affect
// the result.
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a program and
// the options it is built with.
func Serialize(p *compiler.Program, opts compiler.Options) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.writeByte(TagOptions)
	s.writeBool(opts.StrictScopes)
	s.writeByte(TagProgram)
	s.writeUint32(uint32(len(p.Globals())))
	for _, g := range p.Globals() {
		s.serializeStmt(g)
	}
	s.writeUint32(uint32(len(p.Funcs())))
	for _, f := range p.Funcs() {
		s.serializeFunc(f)
	}
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt(v int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(int64(v)))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) serializeType(t compiler.Type) {
	switch t := t.(type) {
	case *compiler.PrimitiveType:
		s.writeByte(TagPrimitiveType)
		s.writeString(t.Name)
	case *compiler.PointerType:
		s.writeByte(TagPointerType)
		s.serializeType(t.Item)
	case *compiler.ArrayType:
		s.writeByte(TagArrayType)
		s.writeBool(t.Sized)
		s.writeInt(t.Len)
		s.serializeType(t.Elem)
	}
}

func (s *serializer) serializeFunc(f *compiler.FuncDecl) {
	s.writeByte(TagFuncDecl)
	s.writeString(f.Name)
	s.writeUint32(uint32(len(f.Params)))
	for _, p := range f.Params {
		s.serializeStmt(p)
	}
	s.serializeStmt(f.Body)
}

func (s *serializer) serializeStmt(st compiler.Stmt) {
	switch n := st.(type) {
	case *compiler.ExprStmt:
		s.writeByte(TagExprStmt)
		s.serializeExpr(n.X)
	case *compiler.Block:
		s.writeByte(TagBlock)
		s.writeUint32(uint32(len(n.Stmts)))
		for _, c := range n.Stmts {
			s.serializeStmt(c)
		}
	case *compiler.IfElse:
		s.writeByte(TagIfElse)
		s.serializeExpr(n.Cond)
		s.serializeStmt(n.Then)
		s.serializeStmt(n.Else)
	case *compiler.While:
		s.writeByte(TagWhile)
		s.serializeExpr(n.Cond)
		s.serializeStmt(n.Body)
	case *compiler.Read:
		s.writeByte(TagRead)
		s.serializeExpr(n.Target)
	case *compiler.VarDecl:
		s.writeByte(TagVarDecl)
		s.writeString(n.Name)
		s.serializeType(n.Type)
	}
}

func (s *serializer) serializeExpr(e compiler.Expr) {
	switch n := e.(type) {
	case *compiler.Constant:
		s.writeByte(TagConstant)
		s.writeInt(n.Value)
		s.serializeType(n.Type)
	case *compiler.UnaryOp:
		s.writeByte(TagUnaryOp)
		s.writeByte(byte(n.Op))
		s.serializeExpr(n.Operand)
	case *compiler.BinaryOp:
		s.writeByte(TagBinaryOp)
		s.writeByte(byte(n.Op))
		s.serializeExpr(n.Left)
		s.serializeExpr(n.Right)
	case *compiler.AddressOf:
		s.writeByte(TagAddressOf)
		s.serializeExpr(n.Operand)
	case *compiler.Assignment:
		s.writeByte(TagAssignment)
		s.serializeExpr(n.Target)
		s.serializeExpr(n.Value)
	case *compiler.Call:
		s.writeByte(TagCall)
		s.writeString(n.Name)
		s.writeUint32(uint32(len(n.Args)))
		for _, a := range n.Args {
			s.serializeExpr(a)
		}
	case *compiler.Variable:
		s.writeByte(TagVariable)
		s.writeString(n.Name)
	case *compiler.Deref:
		s.writeByte(TagDeref)
		s.serializeExpr(n.Pointer)
	case *compiler.Index:
		s.writeByte(TagIndex)
		s.serializeExpr(n.Base)
		s.serializeExpr(n.Index)
	}
}
