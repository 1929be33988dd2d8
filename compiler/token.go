package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Derw lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenUnknown TokenType = iota

	// Text-carrying tokens
	TokenIdentifier       // foo, List.map, 42, 1.5
	TokenString           // "hello"
	TokenFormatString     // `hello ${name}`
	TokenOperator         // + - * / == != < <= > >= && ||
	TokenWhitespace       // runs of spaces, tabs and newlines
	TokenComment          // -- to end of line
	TokenMultilineComment // {- ... -}

	// Punctuation
	TokenColon        // :
	TokenAssign       // =
	TokenArrow        // ->
	TokenOpenBracket  // (
	TokenCloseBracket // )
	TokenOpenBrace    // {
	TokenCloseBrace   // }
	TokenOpenSquare   // [
	TokenCloseSquare  // ]
	TokenComma        // ,
	TokenPipe         // |
	TokenLeftPipe     // |>
	TokenRightPipe    // <|
	TokenBackslash    // \
	TokenRange        // ..
)

var tokenNames = map[TokenType]string{
	TokenUnknown:          "UNKNOWN",
	TokenIdentifier:       "IDENTIFIER",
	TokenString:           "STRING",
	TokenFormatString:     "FORMAT_STRING",
	TokenOperator:         "OPERATOR",
	TokenWhitespace:       "WHITESPACE",
	TokenComment:          "COMMENT",
	TokenMultilineComment: "MULTILINE_COMMENT",
	TokenColon:            ":",
	TokenAssign:           "=",
	TokenArrow:            "->",
	TokenOpenBracket:      "(",
	TokenCloseBracket:     ")",
	TokenOpenBrace:        "{",
	TokenCloseBrace:       "}",
	TokenOpenSquare:       "[",
	TokenCloseSquare:      "]",
	TokenComma:            ",",
	TokenPipe:             "|",
	TokenLeftPipe:         "|>",
	TokenRightPipe:        "<|",
	TokenBackslash:        "\\",
	TokenRange:            "..",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token is a single lexical token. Text is the exact source slice the token
// was read from, so concatenating every token of a Tokenize result yields
// the input again.
type Token struct {
	Type TokenType
	Text string
}

func (t Token) String() string {
	if len(t.Text) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Text[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Text)
}

// Is reports whether the token is an identifier spelled exactly word.
// Derw keywords (if, case, let, import, ...) are lexed as identifiers.
func (t Token) Is(word string) bool {
	return t.Type == TokenIdentifier && t.Text == word
}

// opens and closes map bracket-like tokens to their partner.
var closes = map[TokenType]TokenType{
	TokenOpenBracket: TokenCloseBracket,
	TokenOpenBrace:   TokenCloseBrace,
	TokenOpenSquare:  TokenCloseSquare,
}

func isOpening(t TokenType) bool {
	_, ok := closes[t]
	return ok
}

func isClosing(t TokenType) bool {
	return t == TokenCloseBracket || t == TokenCloseBrace || t == TokenCloseSquare
}

// Keywords that can never be used as a value or a call head.
var keywords = map[string]bool{
	"if":    true,
	"then":  true,
	"else":  true,
	"case":  true,
	"of":    true,
	"let":   true,
	"in":    true,
	"type":  true,
	"alias": true,
}

