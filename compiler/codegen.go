package compiler

import (
	"fmt"

	"github.com/chazu/microc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Code generation
// ---------------------------------------------------------------------------

// CompileFunc emits a function: its entry label, the body and the return.
// Parameters take frame offsets 0..n-1 in argument order.
func CompileFunc(env *CEnv, gen *bytecode.Generator, fn *FuncDecl) error {
	label, err := env.FunctionLabel(fn.Name)
	if err != nil {
		return err
	}
	env.PushScope()
	defer env.PopScope()
	cells := 0
	for _, p := range fn.Params {
		cells += env.DeclareLocal(p)
	}
	gen.PlaceLabel(label)
	if err := CompileStmt(env, gen, fn.Body); err != nil {
		return err
	}
	gen.EmitInt(bytecode.RET, cells-1)
	return nil
}

// CompileStmt emits code for a statement. Every statement leaves the stack
// depth as it found it, except a VarDecl, which grows it by the size of the
// declared type until the enclosing block exits.
func CompileStmt(env *CEnv, gen *bytecode.Generator, s Stmt) error {
	switch s := s.(type) {
	case *ExprStmt:
		if err := CompileExpr(env, gen, s.X); err != nil {
			return err
		}
		gen.EmitInt(bytecode.INCSP, -1)
		return nil

	case *Block:
		env.PushScope()
		defer env.PopScope()
		for _, st := range s.Stmts {
			if err := CompileStmt(env, gen, st); err != nil {
				return err
			}
		}
		gen.EmitInt(bytecode.INCSP, -env.MostLocalSize())
		return nil

	case *IfElse:
		// <cond> IFZERO else <then> GOTO end else: <else> end:
		elseLabel, endLabel := gen.FreshLabel(), gen.FreshLabel()
		if err := CompileExpr(env, gen, s.Cond); err != nil {
			return err
		}
		gen.EmitJump(bytecode.IFZERO, elseLabel)
		if err := CompileStmt(env, gen, branchScope(s.Then)); err != nil {
			return err
		}
		gen.EmitJump(bytecode.GOTO, endLabel)
		gen.PlaceLabel(elseLabel)
		if err := CompileStmt(env, gen, branchScope(s.Else)); err != nil {
			return err
		}
		gen.PlaceLabel(endLabel)
		return nil

	case *While:
		// start: <cond> IFZERO end <body> GOTO start end:
		startLabel, endLabel := gen.FreshLabel(), gen.FreshLabel()
		gen.PlaceLabel(startLabel)
		if err := CompileExpr(env, gen, s.Cond); err != nil {
			return err
		}
		gen.EmitJump(bytecode.IFZERO, endLabel)
		if err := CompileStmt(env, gen, branchScope(s.Body)); err != nil {
			return err
		}
		gen.EmitJump(bytecode.GOTO, startLabel)
		gen.PlaceLabel(endLabel)
		return nil

	case *Read:
		if err := CompileLvalue(env, gen, s.Target); err != nil {
			return err
		}
		gen.Emit(bytecode.READ)
		gen.Emit(bytecode.STI)
		gen.EmitInt(bytecode.INCSP, -1)
		return nil

	case *VarDecl:
		compileAllocation(gen, s.Type)
		env.DeclareLocal(s)
		return nil
	}
	return &InternalError{Msg: fmt.Sprintf("unknown statement %T", s)}
}

// branchScope wraps a declaration used directly as an if branch or loop
// body in a block of its own. The declaration runs conditionally, so its
// cells must be released on the same path that allocated them.
func branchScope(s Stmt) Stmt {
	if decl, ok := s.(*VarDecl); ok {
		return &Block{SpanVal: decl.Span(), Stmts: []Stmt{decl}}
	}
	return s
}

// CompileExpr emits code leaving the value of e on the stack.
func CompileExpr(env *CEnv, gen *bytecode.Generator, e Expr) error {
	switch e := e.(type) {
	case *Constant:
		gen.EmitInt(bytecode.CSTI, e.Value)
		return nil

	case *UnaryOp:
		if err := CompileExpr(env, gen, e.Operand); err != nil {
			return err
		}
		switch e.Op {
		case OpNeg:
			gen.EmitInt(bytecode.CSTI, 0)
			gen.Emit(bytecode.SWAP)
			gen.Emit(bytecode.SUB)
		case OpNot:
			gen.Emit(bytecode.NOT)
		case OpWrite:
			gen.Emit(bytecode.PRINTI)
		default:
			return &InternalError{Msg: "unknown unary operator " + e.Op.String()}
		}
		return nil

	case *BinaryOp:
		if e.Op == OpAnd || e.Op == OpOr {
			return compileLogical(env, gen, e)
		}
		if err := CompileExpr(env, gen, e.Left); err != nil {
			return err
		}
		if err := CompileExpr(env, gen, e.Right); err != nil {
			return err
		}
		ops, ok := binaryOpcodes[e.Op]
		if !ok {
			return &InternalError{Msg: "unknown binary operator " + e.Op.String()}
		}
		for _, op := range ops {
			gen.Emit(op)
		}
		return nil

	case *AddressOf:
		return CompileLvalue(env, gen, e.Operand)

	case *Assignment:
		if err := CompileLvalue(env, gen, e.Target); err != nil {
			return err
		}
		if err := CompileExpr(env, gen, e.Value); err != nil {
			return err
		}
		gen.Emit(bytecode.STI)
		return nil

	case *Call:
		for _, arg := range e.Args {
			if err := CompileExpr(env, gen, arg); err != nil {
				return err
			}
		}
		label, err := env.FunctionLabel(e.Name)
		if err != nil {
			return err
		}
		gen.EmitCall(len(e.Args), label)
		return nil

	case Access:
		if err := CompileLvalue(env, gen, e); err != nil {
			return err
		}
		gen.Emit(bytecode.LDI)
		return nil
	}
	return &InternalError{Msg: fmt.Sprintf("unknown expression %T", e)}
}

// CompileLvalue emits code leaving the address of a on the stack.
func CompileLvalue(env *CEnv, gen *bytecode.Generator, a Access) error {
	switch a := a.(type) {
	case *Variable:
		return withPos(env.CompileVariableAddress(gen, a.Name), a)

	case *Deref:
		return CompileExpr(env, gen, a.Pointer)

	case *Index:
		if err := CompileExpr(env, gen, a.Base); err != nil {
			return err
		}
		if err := CompileExpr(env, gen, a.Index); err != nil {
			return err
		}
		gen.Emit(bytecode.ADD)
		return nil
	}
	return &InternalError{Msg: fmt.Sprintf("unknown access %T", a)}
}

// binaryOpcodes lists the instructions for each strict binary operator.
// Comparisons other than == and < are rewritten with SWAP and NOT.
var binaryOpcodes = map[Operator][]bytecode.Opcode{
	OpAdd: {bytecode.ADD},
	OpSub: {bytecode.SUB},
	OpMul: {bytecode.MUL},
	OpDiv: {bytecode.DIV},
	OpMod: {bytecode.MOD},
	OpEq:  {bytecode.EQ},
	OpNe:  {bytecode.EQ, bytecode.NOT},
	OpLt:  {bytecode.LT},
	OpGe:  {bytecode.LT, bytecode.NOT},
	OpGt:  {bytecode.SWAP, bytecode.LT},
	OpLe:  {bytecode.SWAP, bytecode.LT, bytecode.NOT},
}

// compileLogical emits short-circuit code for && and ||, leaving 0 or 1.
//
//	a && b:  <a> IFZERO F <b> GOTO E  F: CSTI 0  E:
//	a || b:  <a> IFNZRO T <b> GOTO E  T: CSTI 1  E:
func compileLogical(env *CEnv, gen *bytecode.Generator, e *BinaryOp) error {
	short, end := gen.FreshLabel(), gen.FreshLabel()
	jump, value := bytecode.IFZERO, 0
	if e.Op == OpOr {
		jump, value = bytecode.IFNZRO, 1
	}
	if err := CompileExpr(env, gen, e.Left); err != nil {
		return err
	}
	gen.EmitJump(jump, short)
	if err := CompileExpr(env, gen, e.Right); err != nil {
		return err
	}
	gen.EmitJump(bytecode.GOTO, end)
	gen.PlaceLabel(short)
	gen.EmitInt(bytecode.CSTI, value)
	gen.PlaceLabel(end)
	return nil
}

// compileAllocation emits code reserving storage for a value of type t. A
// sized array reserves its elements and then a cell holding the address of
// the first element.
func compileAllocation(gen *bytecode.Generator, t Type) {
	if at, ok := t.(*ArrayType); ok && at.Sized {
		gen.EmitInt(bytecode.INCSP, at.Len)
		gen.Emit(bytecode.GETSP)
		gen.EmitInt(bytecode.CSTI, at.Len-1)
		gen.Emit(bytecode.SUB)
		return
	}
	gen.EmitInt(bytecode.INCSP, 1)
}
