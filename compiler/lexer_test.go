package compiler

import "testing"

func TestLexerTokens(t *testing.T) {
	input := "int *p; p = &a[10]; if (x <= 3 && !b || y != z) write x % 2; // done"
	want := []TokenType{
		TokenInt, TokenStar, TokenIdentifier, TokenSemicolon,
		TokenIdentifier, TokenAssign, TokenAmp, TokenIdentifier, TokenLBracket, TokenNumber, TokenRBracket, TokenSemicolon,
		TokenIf, TokenLParen, TokenIdentifier, TokenLe, TokenNumber, TokenAndAnd, TokenBang, TokenIdentifier,
		TokenOrOr, TokenIdentifier, TokenNe, TokenIdentifier, TokenRParen,
		TokenWrite, TokenIdentifier, TokenPercent, TokenNumber, TokenSemicolon,
		TokenEOF,
	}

	tokens := Tokenize(input)
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(want))
	}
	for i, tok := range tokens {
		if tok.Type != want[i] {
			t.Errorf("token %d = %s, want %s", i, tok, want[i])
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"int", TokenInt},
		{"bool", TokenBool},
		{"void", TokenVoid},
		{"if", TokenIf},
		{"else", TokenElse},
		{"while", TokenWhile},
		{"read", TokenRead},
		{"write", TokenWrite},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"integer", TokenIdentifier},
		{"_x1", TokenIdentifier},
	}

	for _, tt := range tests {
		tok := NewLexer(tt.input).NextToken()
		if tok.Type != tt.want {
			t.Errorf("%q lexed as %s, want %s", tt.input, tok.Type, tt.want)
		}
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("int x;\n  /* c\n */ x = 1;")
	var got []Position
	for tok := l.NextToken(); tok.Type != TokenEOF; tok = l.NextToken() {
		got = append(got, tok.Pos)
	}
	want := []Position{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 1, Column: 5},
		{Offset: 5, Line: 1, Column: 6},
		{Offset: 18, Line: 3, Column: 5},
		{Offset: 20, Line: 3, Column: 7},
		{Offset: 22, Line: 3, Column: 9},
		{Offset: 23, Line: 3, Column: 10},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d positions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d at %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []string{"@", "|", "/* open"}
	for _, input := range tests {
		tok := NewLexer(input).NextToken()
		if tok.Type != TokenError {
			t.Errorf("%q lexed as %s, want ERROR", input, tok)
		}
	}
}
