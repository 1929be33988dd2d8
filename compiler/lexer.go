package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for Derw syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes Derw source code. It never fails: anything it does not
// recognise becomes a single-rune TokenUnknown.
type Lexer struct {
	input string
	pos   int // current byte offset in input
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// peek returns the rune at offset bytes ahead of the current position.
func (l *Lexer) peek(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos+offset:])
	return r
}

func (l *Lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// emit returns a token covering input[start:l.pos].
func (l *Lexer) emit(t TokenType, start int) Token {
	return Token{Type: t, Text: l.input[start:l.pos]}
}

// Done reports whether the whole input has been consumed.
func (l *Lexer) Done() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token. Callers must check Done first.
func (l *Lexer) NextToken() Token {
	start := l.pos
	ch := l.peek(0)

	switch {
	case isSpace(ch):
		for !l.Done() && isSpace(l.peek(0)) {
			l.pos++
		}
		return l.emit(TokenWhitespace, start)

	case l.hasPrefix("{-"):
		return l.readMultilineComment(start)

	case l.hasPrefix("--"):
		for !l.Done() && l.peek(0) != '\n' {
			l.pos++
		}
		return l.emit(TokenComment, start)

	case l.hasPrefix("->"):
		l.pos += 2
		return l.emit(TokenArrow, start)

	case l.hasPrefix("|>"):
		l.pos += 2
		return l.emit(TokenLeftPipe, start)

	case l.hasPrefix("<|"):
		l.pos += 2
		return l.emit(TokenRightPipe, start)

	case l.hasPrefix(".."):
		l.pos += 2
		return l.emit(TokenRange, start)

	case ch == '"':
		return l.readString(start)

	case ch == '`':
		return l.readFormatString(start)

	case isIdentStart(ch):
		return l.readIdentifier(start)
	}

	if t, ok := l.readPunctuation(ch); ok {
		return l.emit(t, start)
	}

	if op := l.readOperator(); op != "" {
		return l.emit(TokenOperator, start)
	}

	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return l.emit(TokenUnknown, start)
}

// readPunctuation consumes a single-character punctuation token.
func (l *Lexer) readPunctuation(ch rune) (TokenType, bool) {
	var t TokenType
	switch ch {
	case '(':
		t = TokenOpenBracket
	case ')':
		t = TokenCloseBracket
	case '{':
		t = TokenOpenBrace
	case '}':
		t = TokenCloseBrace
	case '[':
		t = TokenOpenSquare
	case ']':
		t = TokenCloseSquare
	case ',':
		t = TokenComma
	case ':':
		t = TokenColon
	case '\\':
		t = TokenBackslash
	case '=':
		if l.peek(1) == '=' {
			return 0, false
		}
		t = TokenAssign
	case '|':
		if l.peek(1) == '|' {
			return 0, false
		}
		t = TokenPipe
	default:
		return 0, false
	}
	l.pos++
	return t, true
}

var twoCharOperators = []string{"==", "!=", "<=", ">=", "&&", "||"}

// readOperator consumes the longest known operator at the current position.
func (l *Lexer) readOperator() string {
	for _, op := range twoCharOperators {
		if l.hasPrefix(op) {
			l.pos += 2
			return op
		}
	}
	switch ch := l.peek(0); ch {
	case '+', '-', '*', '/', '%', '<', '>':
		l.pos++
		return string(ch)
	}
	return ""
}

// readMultilineComment reads {- ... -} including both delimiters. An
// unterminated comment runs to the end of the input.
func (l *Lexer) readMultilineComment(start int) Token {
	l.pos += 2
	if end := strings.Index(l.input[l.pos:], "-}"); end >= 0 {
		l.pos += end + 2
	} else {
		l.pos = len(l.input)
	}
	return l.emit(TokenMultilineComment, start)
}

// readString reads a double-quoted string literal, honouring \" escapes.
func (l *Lexer) readString(start int) Token {
	l.pos++ // opening "
	for !l.Done() {
		switch l.input[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '"':
			l.pos++
			return l.emit(TokenString, start)
		}
		l.pos++
	}
	l.pos = len(l.input)
	return l.emit(TokenString, start)
}

// readFormatString reads a backtick literal. Braces opened by a ${ hole are
// tracked so that a backtick or brace inside the hole does not end it early.
func (l *Lexer) readFormatString(start int) Token {
	l.pos++ // opening `
	depth := 0
	for !l.Done() {
		switch {
		case l.input[l.pos] == '\\':
			l.pos += 2
			continue
		case l.hasPrefix("${"):
			depth++
			l.pos += 2
			continue
		case l.input[l.pos] == '{' && depth > 0:
			depth++
		case l.input[l.pos] == '}' && depth > 0:
			depth--
		case l.input[l.pos] == '`' && depth == 0:
			l.pos++
			return l.emit(TokenFormatString, start)
		}
		l.pos++
	}
	l.pos = len(l.input)
	return l.emit(TokenFormatString, start)
}

// readIdentifier reads names, qualified names (List.map, buffer.toString)
// and numbers. A dot only joins when an identifier character follows it, so
// 1..5 lexes as 1, .., 5.
func (l *Lexer) readIdentifier(start int) Token {
	for !l.Done() {
		ch := l.peek(0)
		if isIdentPart(ch) {
			_, size := utf8.DecodeRuneInString(l.input[l.pos:])
			l.pos += size
			continue
		}
		if ch == '.' && isIdentPart(l.peek(1)) {
			l.pos++
			continue
		}
		break
	}
	return l.emit(TokenIdentifier, start)
}

// Helper functions

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || isDigit(r)
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || isDigit(r) || r == '_'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens from the input. The result is restartable:
// tokenizing the same text always yields the same sequence.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for !l.Done() {
		tokens = append(tokens, l.NextToken())
	}
	return tokens
}

// StripComments removes comment tokens without touching the order or the
// whitespace of what remains.
func StripComments(tokens []Token) []Token {
	var out []Token
	for _, tok := range tokens {
		if tok.Type == TokenComment || tok.Type == TokenMultilineComment {
			continue
		}
		out = append(out, tok)
	}
	return out
}
