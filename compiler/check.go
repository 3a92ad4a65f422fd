package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Type checker
// ---------------------------------------------------------------------------

// CheckFunc type-checks a function body with its parameters in scope.
func CheckFunc(env *TEnv, fn *FuncDecl) error {
	env.PushScope()
	defer env.PopScope()
	for _, p := range fn.Params {
		if at, ok := p.Type.(*ArrayType); ok && at.Sized {
			return &DeclarationError{Kind: "parameter", Name: p.Name, Reason: "array parameter must not have a size", Pos: p.Span().Start}
		}
		if err := env.DeclareLocal(p); err != nil {
			return err
		}
	}
	return CheckStmt(env, fn.Body)
}

// CheckStmt type-checks a statement. The first violation is returned.
func CheckStmt(env *TEnv, s Stmt) error {
	switch s := s.(type) {
	case *ExprStmt:
		_, err := CheckExpr(env, s.X)
		return err

	case *Block:
		env.PushScope()
		defer env.PopScope()
		for _, st := range s.Stmts {
			if err := CheckStmt(env, st); err != nil {
				return err
			}
		}
		return nil

	case *IfElse:
		if err := checkCondition(env, s.Cond, "if"); err != nil {
			return err
		}
		if err := CheckStmt(env, branchScope(s.Then)); err != nil {
			return err
		}
		return CheckStmt(env, branchScope(s.Else))

	case *While:
		if err := checkCondition(env, s.Cond, "while"); err != nil {
			return err
		}
		return CheckStmt(env, branchScope(s.Body))

	case *Read:
		t, err := CheckExpr(env, s.Target)
		if err != nil {
			return err
		}
		if !Equal(t, IntType) {
			return typeError(s.Target, "non-int recipient in read")
		}
		return nil

	case *VarDecl:
		return env.DeclareLocal(s)
	}
	return &InternalError{Msg: fmt.Sprintf("unknown statement %T", s)}
}

func checkCondition(env *TEnv, cond Expr, stmt string) error {
	t, err := CheckExpr(env, cond)
	if err != nil {
		return err
	}
	if !Equal(t, BoolType) {
		return typeError(cond, "non-bool condition in "+stmt)
	}
	return nil
}

// CheckExpr computes the type of e.
func CheckExpr(env *TEnv, e Expr) (Type, error) {
	switch e := e.(type) {
	case *Constant:
		return e.Type, nil

	case *UnaryOp:
		return checkUnary(env, e)

	case *BinaryOp:
		return checkBinary(env, e)

	case *AddressOf:
		t, err := CheckExpr(env, e.Operand)
		if err != nil {
			return nil, err
		}
		return PointerTo(t), nil

	case *Assignment:
		lt, err := CheckExpr(env, e.Target)
		if err != nil {
			return nil, err
		}
		rt, err := CheckExpr(env, e.Value)
		if err != nil {
			return nil, err
		}
		if !Equal(lt, rt) {
			return nil, typeError(e, fmt.Sprintf("assignment of (%s) to (%s)", rt, lt))
		}
		return lt, nil

	case *Call:
		return checkCall(env, e)

	case *Variable:
		t, err := env.LookupVariable(e.Name)
		if err != nil {
			return nil, withPos(err, e)
		}
		return t, nil

	case *Deref:
		t, err := CheckExpr(env, e.Pointer)
		if err != nil {
			return nil, err
		}
		pt, ok := t.(*PointerType)
		if !ok {
			return nil, typeError(e.Pointer, "dereferencing non-pointer expression")
		}
		return pt.Item, nil

	case *Index:
		bt, err := CheckExpr(env, e.Base)
		if err != nil {
			return nil, err
		}
		it, err := CheckExpr(env, e.Index)
		if err != nil {
			return nil, err
		}
		if !Equal(it, IntType) {
			return nil, typeError(e.Index, "non-int index expression")
		}
		elem := elementType(bt)
		if elem == nil {
			return nil, typeError(e.Base, "indexing on non-array/non-pointer type")
		}
		return elem, nil
	}
	return nil, &InternalError{Msg: fmt.Sprintf("unknown expression %T", e)}
}

func checkUnary(env *TEnv, e *UnaryOp) (Type, error) {
	t, err := CheckExpr(env, e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case OpNeg:
		if Equal(t, IntType) {
			return IntType, nil
		}
		return nil, typeError(e, "argument to unary minus must be int")
	case OpNot:
		if Equal(t, BoolType) {
			return BoolType, nil
		}
		return nil, typeError(e, "argument to logical not must be bool")
	case OpWrite:
		if _, ptr := t.(*PointerType); ptr || Equal(t, IntType) {
			return t, nil
		}
		return nil, typeError(e, "argument to write must be int or pointer")
	}
	return nil, &InternalError{Msg: "unknown unary operator " + e.Op.String()}
}

func checkBinary(env *TEnv, e *BinaryOp) (Type, error) {
	lt, err := CheckExpr(env, e.Left)
	if err != nil {
		return nil, err
	}
	rt, err := CheckExpr(env, e.Right)
	if err != nil {
		return nil, err
	}
	ints := Equal(lt, IntType) && Equal(rt, IntType)

	switch e.Op {
	case OpAdd, OpSub:
		if _, ptr := lt.(*PointerType); ptr && Equal(rt, IntType) {
			return lt, nil
		}
		if ints {
			return IntType, nil
		}
		return nil, typeError(e, "arguments to + and - must be int")
	case OpMul, OpDiv, OpMod:
		if ints {
			return IntType, nil
		}
		return nil, typeError(e, "arguments to *, / and % must be int")
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		if ints {
			return BoolType, nil
		}
		return nil, typeError(e, "arguments to ==, !=, <, <=, >, >= must be int")
	case OpAnd, OpOr:
		if Equal(lt, BoolType) && Equal(rt, BoolType) {
			return BoolType, nil
		}
		return nil, typeError(e, "arguments to && and || must be bool")
	}
	return nil, &InternalError{Msg: "unknown binary operator " + e.Op.String()}
}

func checkCall(env *TEnv, e *Call) (Type, error) {
	fn, err := env.LookupFunction(e.Name)
	if err != nil {
		return nil, withPos(err, e)
	}
	argTypes := make([]Type, len(e.Args))
	for i, arg := range e.Args {
		if argTypes[i], err = CheckExpr(env, arg); err != nil {
			return nil, err
		}
	}
	if len(e.Args) != len(fn.Params) {
		return nil, typeError(e, fmt.Sprintf("%s expects %d arguments, got %d",
			e.Name, len(fn.Params), len(e.Args)))
	}
	for i, p := range fn.Params {
		if !Equal(p.Type, argTypes[i]) {
			te := typeError(e.Args[i], fmt.Sprintf("type mismatch in call of %s: expected %s, got %s",
				e.Name, p.Type, argTypes[i]))
			te.ArgIndex = i
			te.Param = p.Name
			return nil, te
		}
	}
	return VoidType, nil
}

func typeError(e Expr, rule string) *TypeError {
	return &TypeError{Rule: rule, Expr: FormatExpr(e), Pos: e.Span().Start, ArgIndex: -1}
}

// withPos attaches the node position to an unbound-name error.
func withPos(err error, n Node) error {
	if ue, ok := err.(*UnboundNameError); ok {
		ue.Pos = n.Span().Start
	}
	return err
}
