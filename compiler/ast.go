package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for MicroC
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Operator identifies a unary or binary operator.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpWrite
)

var operatorNames = [...]string{
	OpAdd:   "+",
	OpSub:   "-",
	OpMul:   "*",
	OpDiv:   "/",
	OpMod:   "%",
	OpNeg:   "-",
	OpNot:   "!",
	OpEq:    "==",
	OpNe:    "!=",
	OpLt:    "<",
	OpLe:    "<=",
	OpGt:    ">",
	OpGe:    ">=",
	OpAnd:   "&&",
	OpOr:    "||",
	OpWrite: "write",
}

func (op Operator) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Access is an expression with a storage location. It compiles either as an
// rvalue (the stored value) or as an lvalue (the address).
type Access interface {
	Expr
	access() // marker method
}

// Constant is an int or bool literal.
type Constant struct {
	SpanVal Span
	Value   int
	Type    Type
}

func (n *Constant) Span() Span { return n.SpanVal }
func (n *Constant) node()      {}
func (n *Constant) expr()      {}

// UnaryOp applies OpNeg, OpNot or OpWrite to Operand.
type UnaryOp struct {
	SpanVal Span
	Op      Operator
	Operand Expr
}

func (n *UnaryOp) Span() Span { return n.SpanVal }
func (n *UnaryOp) node()      {}
func (n *UnaryOp) expr()      {}

// BinaryOp is an arithmetic, comparison or logical operation.
type BinaryOp struct {
	SpanVal Span
	Op      Operator
	Left    Expr
	Right   Expr
}

func (n *BinaryOp) Span() Span { return n.SpanVal }
func (n *BinaryOp) node()      {}
func (n *BinaryOp) expr()      {}

// AddressOf is &Operand.
type AddressOf struct {
	SpanVal Span
	Operand Access
}

func (n *AddressOf) Span() Span { return n.SpanVal }
func (n *AddressOf) node()      {}
func (n *AddressOf) expr()      {}

// Assignment stores Value into Target and yields the stored value.
type Assignment struct {
	SpanVal Span
	Target  Access
	Value   Expr
}

func (n *Assignment) Span() Span { return n.SpanVal }
func (n *Assignment) node()      {}
func (n *Assignment) expr()      {}

// Call invokes a named function.
type Call struct {
	SpanVal Span
	Name    string
	Args    []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// ---------------------------------------------------------------------------
// Access nodes
// ---------------------------------------------------------------------------

// Variable is a reference to a local or global variable.
type Variable struct {
	SpanVal Span
	Name    string
}

func (n *Variable) Span() Span { return n.SpanVal }
func (n *Variable) node()      {}
func (n *Variable) expr()      {}
func (n *Variable) access()    {}

// Deref is *Pointer.
type Deref struct {
	SpanVal Span
	Pointer Expr
}

func (n *Deref) Span() Span { return n.SpanVal }
func (n *Deref) node()      {}
func (n *Deref) expr()      {}
func (n *Deref) access()    {}

// Index is Base[Index].
type Index struct {
	SpanVal Span
	Base    Expr
	Index   Expr
}

func (n *Index) Span() Span { return n.SpanVal }
func (n *Index) node()      {}
func (n *Index) expr()      {}
func (n *Index) access()    {}

// ToAccess promotes e to an Access. Expressions without a storage location
// fail with *NotLvalueError.
func ToAccess(e Expr) (Access, error) {
	if a, ok := e.(Access); ok {
		return a, nil
	}
	return nil, &NotLvalueError{Expr: FormatExpr(e), Pos: e.Span().Start}
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ExprStmt evaluates X and discards its value.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Block is a braced statement list. It opens a new scope.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// IfElse is a two-way conditional. A missing else branch is an empty Block.
type IfElse struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt
}

func (n *IfElse) Span() Span { return n.SpanVal }
func (n *IfElse) node()      {}
func (n *IfElse) stmt()      {}

// While loops while Cond holds.
type While struct {
	SpanVal Span
	Cond    Expr
	Body    Stmt
}

func (n *While) Span() Span { return n.SpanVal }
func (n *While) node()      {}
func (n *While) stmt()      {}

// Read reads an int from input into Target.
type Read struct {
	SpanVal Span
	Target  Access
}

func (n *Read) Span() Span { return n.SpanVal }
func (n *Read) node()      {}
func (n *Read) stmt()      {}

// VarDecl declares a variable. Inside a block it also allocates storage.
type VarDecl struct {
	SpanVal Span
	Name    string
	Type    Type
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) stmt()      {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// FuncDecl is a void function definition.
type FuncDecl struct {
	SpanVal Span
	Name    string
	Params  []*VarDecl
	Body    *Block
}

func (n *FuncDecl) Span() Span { return n.SpanVal }
func (n *FuncDecl) node()      {}

// Signature renders the function header with spelled-out types, e.g.
// "void f(int x, pointer to int p)".
func (n *FuncDecl) Signature() string {
	s := "void " + n.Name + "("
	for i, p := range n.Params {
		if i > 0 {
			s += ", "
		}
		s += p.Type.String() + " " + p.Name
	}
	return s + ")"
}
