package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Compilation errors
// ---------------------------------------------------------------------------

// TypeError reports an operator, assignment, call or condition whose operand
// types violate the typing rules. Checking stops at the first one.
type TypeError struct {
	Rule string   // the rule that was violated
	Expr string   // rendering of the offending expression
	Pos  Position // start of the offending expression

	// ArgIndex is the 0-based index of the mismatched argument of a call,
	// or -1 when the error is not about a call argument.
	ArgIndex int
	Param    string
}

func (e *TypeError) Error() string {
	return at(e.Pos) + "type error: " + e.Message()
}

// Message describes the violation without its position.
func (e *TypeError) Message() string {
	msg := e.Rule
	if e.ArgIndex >= 0 {
		msg = fmt.Sprintf("%s (argument %d, parameter %s)", e.Rule, e.ArgIndex, e.Param)
	}
	if e.Expr != "" {
		msg += ": " + e.Expr
	}
	return msg
}

// UnboundNameError reports a reference to an undeclared variable or function.
type UnboundNameError struct {
	Kind string // "variable" or "function"
	Name string
	Pos  Position
}

func (e *UnboundNameError) Error() string {
	return at(e.Pos) + e.Message()
}

// Message describes the error without its position.
func (e *UnboundNameError) Message() string {
	return fmt.Sprintf("undeclared %s %s", e.Kind, e.Name)
}

// DeclarationError reports an invalid declaration, such as a duplicate
// global or function name.
type DeclarationError struct {
	Kind   string // "variable" or "function"
	Name   string
	Reason string
	Pos    Position
}

func (e *DeclarationError) Error() string {
	return at(e.Pos) + e.Message()
}

// Message describes the error without its position.
func (e *DeclarationError) Message() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Name, e.Reason)
}

// NotLvalueError reports an expression used where a storage location is
// required.
type NotLvalueError struct {
	Expr string
	Pos  Position
}

func (e *NotLvalueError) Error() string {
	return at(e.Pos) + e.Message()
}

// Message describes the error without its position.
func (e *NotLvalueError) Message() string {
	return "illegal expression used as lvalue: " + e.Expr
}

// FuncError names the function in which checking or compiling failed.
type FuncError struct {
	Func string
	Err  error
}

func (e *FuncError) Error() string {
	return "in function " + e.Func + ": " + e.Err.Error()
}

func (e *FuncError) Unwrap() error { return e.Err }

// InternalError reports a condition that earlier validation should have
// ruled out.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Msg
}

// SyntaxError is a single parse diagnostic.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e SyntaxError) Error() string {
	return at(e.Pos) + e.Msg
}

// ParseError collects the syntax errors found while parsing one source. The
// parser keeps going after an error, so there may be several.
type ParseError struct {
	Errors []SyntaxError
}

func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, se := range e.Errors {
		msgs[i] = se.Error()
	}
	return "parse errors:\n  " + strings.Join(msgs, "\n  ")
}

// at renders a position as an error prefix. Nodes built without source
// positions get no prefix.
func at(pos Position) string {
	if pos.Line == 0 {
		return ""
	}
	return pos.String() + ": "
}
