package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for MicroC source
// ---------------------------------------------------------------------------

// Lexer tokenizes MicroC source code.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start

	comments []Comment
}

// Comment is a // or /* */ comment skipped by the lexer.
type Comment struct {
	Pos  Position
	Text string // including the delimiters
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: pos}
	case isDigit(l.ch):
		return l.readNumber(pos)
	case isLetter(l.ch):
		return l.readIdentifier(pos)
	}

	ch := l.ch
	l.readChar()
	single := func(t TokenType) Token {
		return Token{Type: t, Literal: string(ch), Pos: pos}
	}
	pair := func(next rune, both, alone TokenType) Token {
		if l.ch == next {
			l.readChar()
			return Token{Type: both, Literal: string(ch) + string(next), Pos: pos}
		}
		return single(alone)
	}

	switch ch {
	case '+':
		return single(TokenPlus)
	case '-':
		return single(TokenMinus)
	case '*':
		return single(TokenStar)
	case '/':
		return single(TokenSlash)
	case '%':
		return single(TokenPercent)
	case '(':
		return single(TokenLParen)
	case ')':
		return single(TokenRParen)
	case '[':
		return single(TokenLBracket)
	case ']':
		return single(TokenRBracket)
	case '{':
		return single(TokenLBrace)
	case '}':
		return single(TokenRBrace)
	case ';':
		return single(TokenSemicolon)
	case ',':
		return single(TokenComma)
	case '=':
		return pair('=', TokenEq, TokenAssign)
	case '!':
		return pair('=', TokenNe, TokenBang)
	case '<':
		return pair('=', TokenLe, TokenLt)
	case '>':
		return pair('=', TokenGe, TokenGt)
	case '&':
		return pair('&', TokenAndAnd, TokenAmp)
	case '|':
		if l.ch == '|' {
			l.readChar()
			return Token{Type: TokenOrOr, Literal: "||", Pos: pos}
		}
	}
	return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character %q", ch), Pos: pos}
}

// skipWhitespaceAndComments skips blanks, // line comments and /* */ block
// comments. It reports false with an error token for an unterminated block
// comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			pos := l.position()
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			l.comments = append(l.comments, Comment{Pos: pos, Text: l.input[pos.Offset:l.pos]})
		case l.ch == '/' && l.peekChar() == '*':
			pos := l.position()
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return Token{Type: TokenError, Literal: "unterminated comment", Pos: pos}, false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			l.comments = append(l.comments, Comment{Pos: pos, Text: l.input[pos.Offset:l.pos]})
		default:
			return Token{}, true
		}
	}
}

func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if t, ok := reservedWords[lit]; ok {
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: lit, Pos: pos}
}

// Tokenize returns all tokens in input, ending with EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
		if tok.Type == TokenError && l.ch == 0 {
			tokens = append(tokens, Token{Type: TokenEOF, Pos: l.position()})
			return tokens
		}
	}
}

// Comments returns the comments skipped so far, in source order.
func (l *Lexer) Comments() []Comment { return l.comments }

func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
func isLetter(r rune) bool { return r == '_' || unicode.IsLetter(r) }
