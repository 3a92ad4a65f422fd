package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for MicroC
// ---------------------------------------------------------------------------

// Parser parses MicroC source code into a Program. Syntax errors are
// recorded and parsing resumes at the next statement or declaration.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token
	errors    []SyntaxError
	declErr   error // first duplicate declaration, if any
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program. Syntax errors are returned as a
// *ParseError, duplicate declarations as a *DeclarationError.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	prog := p.ParseProgram()
	if len(p.errors) > 0 {
		return nil, &ParseError{Errors: p.errors}
	}
	if p.declErr != nil {
		return nil, p.declErr
	}
	return prog, nil
}

// nextToken advances to the next token, skipping lexical errors after
// recording them.
func (p *Parser) nextToken() {
	if p.curToken.Literal != "" {
		p.prevEnd = Position{
			Offset: p.curToken.Pos.Offset + len(p.curToken.Literal),
			Line:   p.curToken.Pos.Line,
			Column: p.curToken.Pos.Column + len(p.curToken.Literal),
		}
	}
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.curToken.Type == TokenError {
		p.errors = append(p.errors, SyntaxError{Pos: p.curToken.Pos, Msg: p.curToken.Literal})
		p.curToken = p.peekToken
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...interface{}) {
	p.errors = append(p.errors, SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Comments returns the comments read so far, in source order.
func (p *Parser) Comments() []Comment {
	return p.lexer.Comments()
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []SyntaxError {
	return p.errors
}

func (p *Parser) span(start Position) Span {
	return Span{Start: start, End: p.prevEnd}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses global declarations and function definitions up to
// EOF.
func (p *Parser) ParseProgram() *Program {
	prog := NewProgram()
	for !p.curTokenIs(TokenEOF) {
		errs := len(p.errors)
		switch p.curToken.Type {
		case TokenVoid:
			if fn := p.parseFunction(); fn != nil {
				p.declare(prog.AddFunc(fn))
			}
		case TokenInt, TokenBool:
			decl := p.parseVarDecl()
			if p.expect(TokenSemicolon) && decl != nil {
				p.declare(prog.AddVar(decl))
			}
		default:
			p.errorf("expected declaration, got %s", p.curToken)
		}
		if len(p.errors) > errs {
			p.syncTopLevel()
		}
	}
	return prog
}

func (p *Parser) declare(err error) {
	if err != nil && p.declErr == nil {
		p.declErr = err
	}
}

// syncTopLevel skips to the next token that can start a declaration.
func (p *Parser) syncTopLevel() {
	for !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenVoid, TokenInt, TokenBool:
			return
		}
		p.nextToken()
	}
}

func (p *Parser) parseFunction() *FuncDecl {
	start := p.curToken.Pos
	p.expect(TokenVoid)
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()
	if !p.expect(TokenLParen) {
		return nil
	}
	var params []*VarDecl
	if !p.curTokenIs(TokenRParen) {
		for {
			param := p.parseVarDecl()
			if param == nil {
				return nil
			}
			params = append(params, param)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if !p.expect(TokenRParen) {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &FuncDecl{SpanVal: p.span(start), Name: name, Params: params, Body: body}
}

// parseVarDecl parses a base type followed by a C declarator, e.g.
// "int *p", "int a[10]" or "int (*q)[]".
func (p *Parser) parseVarDecl() *VarDecl {
	start := p.curToken.Pos
	var base Type
	switch p.curToken.Type {
	case TokenInt:
		base = IntType
	case TokenBool:
		base = BoolType
	default:
		p.errorf("expected type, got %s", p.curToken)
		return nil
	}
	p.nextToken()
	name, build, ok := p.parseDeclarator()
	if !ok {
		return nil
	}
	return &VarDecl{SpanVal: p.span(start), Name: name, Type: build(base)}
}

// parseDeclarator returns the declared name and a function wrapping the base
// type in the pointer and array constructors the declarator spells out.
func (p *Parser) parseDeclarator() (string, func(Type) Type, bool) {
	var name string
	var build func(Type) Type

	switch p.curToken.Type {
	case TokenIdentifier:
		name = p.curToken.Literal
		build = func(t Type) Type { return t }
		p.nextToken()
	case TokenStar:
		p.nextToken()
		n, inner, ok := p.parseDeclarator()
		if !ok {
			return "", nil, false
		}
		name = n
		build = func(t Type) Type { return inner(PointerTo(t)) }
	case TokenLParen:
		p.nextToken()
		n, inner, ok := p.parseDeclarator()
		if !ok || !p.expect(TokenRParen) {
			return "", nil, false
		}
		name, build = n, inner
	default:
		p.errorf("expected declarator, got %s", p.curToken)
		return "", nil, false
	}

	for p.curTokenIs(TokenLBracket) {
		p.nextToken()
		outer := build
		if p.curTokenIs(TokenNumber) {
			n, err := strconv.Atoi(p.curToken.Literal)
			if err != nil {
				p.errorf("invalid array size %s", p.curToken.Literal)
				return "", nil, false
			}
			p.nextToken()
			build = func(t Type) Type { return outer(ArrayOf(t, n)) }
		} else {
			build = func(t Type) Type { return outer(UnsizedArrayOf(t)) }
		}
		if !p.expect(TokenRBracket) {
			return "", nil, false
		}
	}
	return name, build, true
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	if !p.expect(TokenLBrace) {
		return nil
	}
	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		errs := len(p.errors)
		stmt := p.parseStatement()
		if len(p.errors) > errs {
			p.syncStatement()
			continue
		}
		stmts = append(stmts, stmt)
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	return &Block{SpanVal: p.span(start), Stmts: stmts}
}

// syncStatement skips past the next semicolon, stopping early at a brace.
func (p *Parser) syncStatement() {
	for !p.curTokenIs(TokenEOF) {
		switch p.curToken.Type {
		case TokenSemicolon:
			p.nextToken()
			return
		case TokenRBrace, TokenLBrace:
			return
		}
		p.nextToken()
	}
}

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() Stmt {
	return p.parseStatement()
}

func (p *Parser) parseStatement() Stmt {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenLBrace:
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil

	case TokenSemicolon:
		p.nextToken()
		return &Block{SpanVal: p.span(start)}

	case TokenIf:
		p.nextToken()
		cond := p.parseCondition()
		then := p.parseStatement()
		var els Stmt = &Block{SpanVal: p.span(p.prevEnd)}
		if p.curTokenIs(TokenElse) {
			p.nextToken()
			els = p.parseStatement()
		}
		if cond == nil || then == nil || els == nil {
			return nil
		}
		return &IfElse{SpanVal: p.span(start), Cond: cond, Then: then, Else: els}

	case TokenWhile:
		p.nextToken()
		cond := p.parseCondition()
		body := p.parseStatement()
		if cond == nil || body == nil {
			return nil
		}
		return &While{SpanVal: p.span(start), Cond: cond, Body: body}

	case TokenRead:
		p.nextToken()
		e := p.parseExpr()
		if e == nil || !p.expect(TokenSemicolon) {
			return nil
		}
		target, err := ToAccess(e)
		if err != nil {
			p.errorAt(e.Span().Start, "read target is not an lvalue: %s", FormatExpr(e))
			return nil
		}
		return &Read{SpanVal: p.span(start), Target: target}

	case TokenInt, TokenBool:
		decl := p.parseVarDecl()
		if decl == nil || !p.expect(TokenSemicolon) {
			return nil
		}
		return decl
	}

	e := p.parseExpr()
	if e == nil || !p.expect(TokenSemicolon) {
		return nil
	}
	return &ExprStmt{SpanVal: p.span(start), X: e}
}

func (p *Parser) parseCondition() Expr {
	if !p.expect(TokenLParen) {
		return nil
	}
	e := p.parseExpr()
	if e == nil || !p.expect(TokenRParen) {
		return nil
	}
	return e
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpr()
}

func (p *Parser) parseExpr() Expr {
	start := p.curToken.Pos
	if p.curTokenIs(TokenWrite) {
		p.nextToken()
		e := p.parseExpr()
		if e == nil {
			return nil
		}
		return &UnaryOp{SpanVal: p.span(start), Op: OpWrite, Operand: e}
	}

	lhs := p.parseBinary(0)
	if lhs == nil || !p.curTokenIs(TokenAssign) {
		return lhs
	}
	p.nextToken()
	rhs := p.parseExpr()
	if rhs == nil {
		return nil
	}
	target, err := ToAccess(lhs)
	if err != nil {
		p.errorAt(lhs.Span().Start, "cannot assign to %s", FormatExpr(lhs))
		return nil
	}
	return &Assignment{SpanVal: p.span(start), Target: target, Value: rhs}
}

// binaryLevels lists the binary operators from loosest to tightest binding.
var binaryLevels = []map[TokenType]Operator{
	{TokenOrOr: OpOr},
	{TokenAndAnd: OpAnd},
	{TokenEq: OpEq, TokenNe: OpNe},
	{TokenLt: OpLt, TokenGt: OpGt, TokenLe: OpLe, TokenGe: OpGe},
	{TokenPlus: OpAdd, TokenMinus: OpSub},
	{TokenStar: OpMul, TokenSlash: OpDiv, TokenPercent: OpMod},
}

// parseBinary parses a left-associative chain at the given precedence level.
func (p *Parser) parseBinary(level int) Expr {
	if level == len(binaryLevels) {
		return p.parseUnary()
	}
	start := p.curToken.Pos
	left := p.parseBinary(level + 1)
	for left != nil {
		op, ok := binaryLevels[level][p.curToken.Type]
		if !ok {
			break
		}
		p.nextToken()
		right := p.parseBinary(level + 1)
		if right == nil {
			return nil
		}
		left = &BinaryOp{SpanVal: p.span(start), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenPlus:
		p.nextToken()
		return p.parseUnary()
	case TokenMinus, TokenBang:
		op := OpNeg
		if p.curTokenIs(TokenBang) {
			op = OpNot
		}
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryOp{SpanVal: p.span(start), Op: op, Operand: operand}
	case TokenStar:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &Deref{SpanVal: p.span(start), Pointer: operand}
	case TokenAmp:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		target, err := ToAccess(operand)
		if err != nil {
			p.errorAt(operand.Span().Start, "cannot take the address of %s", FormatExpr(operand))
			return nil
		}
		return &AddressOf{SpanVal: p.span(start), Operand: target}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	start := p.curToken.Pos
	e := p.parsePrimary()
	if e == nil {
		return nil
	}
	if p.curTokenIs(TokenLParen) {
		v, ok := e.(*Variable)
		if !ok {
			p.errorf("calling non-name expression %s", FormatExpr(e))
			return nil
		}
		p.nextToken()
		args, ok := p.parseArgs()
		if !ok {
			return nil
		}
		return &Call{SpanVal: p.span(start), Name: v.Name, Args: args}
	}
	for p.curTokenIs(TokenLBracket) {
		p.nextToken()
		idx := p.parseExpr()
		if idx == nil || !p.expect(TokenRBracket) {
			return nil
		}
		e = &Index{SpanVal: p.span(start), Base: e, Index: idx}
	}
	return e
}

// parseArgs parses a call's argument list after the opening parenthesis.
func (p *Parser) parseArgs() ([]Expr, bool) {
	var args []Expr
	if p.curTokenIs(TokenRParen) {
		p.nextToken()
		return args, true
	}
	for {
		arg := p.parseExpr()
		if arg == nil {
			return nil, false
		}
		args = append(args, arg)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	return args, p.expect(TokenRParen)
}

func (p *Parser) parsePrimary() Expr {
	start := p.curToken.Pos
	switch p.curToken.Type {
	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()
		return &Variable{SpanVal: p.span(start), Name: name}
	case TokenNumber:
		n, err := strconv.Atoi(p.curToken.Literal)
		if err != nil {
			p.errorf("invalid number %s", p.curToken.Literal)
			return nil
		}
		p.nextToken()
		return &Constant{SpanVal: p.span(start), Value: n, Type: IntType}
	case TokenTrue, TokenFalse:
		v := 0
		if p.curTokenIs(TokenTrue) {
			v = 1
		}
		p.nextToken()
		return &Constant{SpanVal: p.span(start), Value: v, Type: BoolType}
	case TokenLParen:
		p.nextToken()
		e := p.parseExpr()
		if e == nil || !p.expect(TokenRParen) {
			return nil
		}
		return e
	}
	p.errorf("unexpected %s", p.curToken)
	return nil
}
