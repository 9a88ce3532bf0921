package lexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// TokenType represents the type of a token
type TokenType int

const (
	// EOF marks the end of a statement's input
	EOF TokenType = iota
	// KEYWORD represents a reserved word, upper-cased
	KEYWORD
	// IDENTIFIER represents a table, column or database name
	IDENTIFIER
	// NUMBER represents an integer literal, kept as raw text
	NUMBER
	// STRING represents a quoted literal with the quotes stripped
	STRING
	// SYMBOL represents punctuation and comparison operators
	SYMBOL
	// FUNCTION represents a function name, upper-cased
	FUNCTION
	// UNKNOWN represents text no other rule matched
	UNKNOWN
)

var typeNames = map[TokenType]string{
	EOF:        "EOF",
	KEYWORD:    "KEYWORD",
	IDENTIFIER: "IDENTIFIER",
	NUMBER:     "NUMBER",
	STRING:     "STRING",
	SYMBOL:     "SYMBOL",
	FUNCTION:   "FUNCTION",
	UNKNOWN:    "UNKNOWN",
}

func (t TokenType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
}

func (t Token) String() string {
	return fmt.Sprintf("Token{Type: %v, Literal: %q}", t.Type, t.Literal)
}

var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "INSERT": true, "INTO": true, "VALUES": true,
	"UPDATE": true, "SET": true, "DELETE": true, "CREATE": true, "DROP": true, "USE": true,
	"SHOW": true, "TABLE": true, "TABLES": true, "DATABASE": true, "DATABASES": true,
	"NUMBER": true, "STRING": true,
	"PKEY": true, "AUTO_INCREMENT": true,
	"AND": true, "OR": true, "LIKE": true, "IN": true, "NOT": true, "IS": true, "NULL": true,
}

var functions = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true, "CLEAR": true,
}

// Multi-word operators are tried before single keywords, longest first.
var phrases = []struct {
	pattern *regexp.Regexp
	literal string
}{
	{regexp.MustCompile(`^(?i)IS\s+NOT\s+NULL\b`), "IS NOT NULL"},
	{regexp.MustCompile(`^(?i)IS\s+NULL\b`), "IS NULL"},
	{regexp.MustCompile(`^(?i)NOT\s+IN\b`), "NOT IN"},
}

// Lexer represents a lexical analyzer over a single statement
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
}

// New creates a new lexer with the given input
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// advance moves the cursor n bytes forward
func (l *Lexer) advance(n int) {
	for i := 0; i < n; i++ {
		l.readChar()
	}
}

// NextToken returns the next token, or an EOF token once the input is exhausted
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.position >= len(l.input) {
		return Token{Type: EOF}
	}

	switch l.ch {
	case '*', ',', '(', ')', ';', '=':
		tok := Token{Type: SYMBOL, Literal: string(l.ch)}
		l.readChar()
		return tok
	case '<':
		if next := l.peekChar(); next == '=' || next == '>' {
			tok := Token{Type: SYMBOL, Literal: string([]byte{l.ch, next})}
			l.advance(2)
			return tok
		}
		l.readChar()
		return Token{Type: SYMBOL, Literal: "<"}
	case '>':
		if l.peekChar() == '=' {
			l.advance(2)
			return Token{Type: SYMBOL, Literal: ">="}
		}
		l.readChar()
		return Token{Type: SYMBOL, Literal: ">"}
	case '!':
		if l.peekChar() == '=' {
			l.advance(2)
			return Token{Type: SYMBOL, Literal: "!="}
		}
	case '"', '\'':
		return l.readString(l.ch)
	}

	if isLetter(l.ch) {
		if tok, ok := l.readPhrase(); ok {
			return tok
		}
		word := l.readIdentifier()
		upper := strings.ToUpper(word)
		switch {
		case keywords[upper]:
			return Token{Type: KEYWORD, Literal: upper}
		case functions[upper]:
			return Token{Type: FUNCTION, Literal: upper}
		}
		return Token{Type: IDENTIFIER, Literal: word}
	}

	if isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())) {
		return Token{Type: NUMBER, Literal: l.readNumber()}
	}

	_, size := utf8.DecodeRuneInString(l.input[l.position:])
	tok := Token{Type: UNKNOWN, Literal: l.input[l.position : l.position+size]}
	l.advance(size)
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readPhrase() (Token, bool) {
	rest := l.input[l.position:]
	for _, p := range phrases {
		if loc := p.pattern.FindStringIndex(rest); loc != nil {
			l.advance(loc[1])
			return Token{Type: KEYWORD, Literal: p.literal}, true
		}
	}
	return Token{}, false
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() string {
	position := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readString reads a quoted literal. There is no escape processing; an
// unterminated literal yields an UNKNOWN token holding the rest of the input.
func (l *Lexer) readString(quote byte) Token {
	start := l.position
	end := strings.IndexByte(l.input[start+1:], quote)
	if end < 0 {
		l.advance(len(l.input) - start)
		return Token{Type: UNKNOWN, Literal: l.input[start:]}
	}
	literal := l.input[start+1 : start+1+end]
	l.advance(end + 2)
	return Token{Type: STRING, Literal: literal}
}

func isLetter(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// Tokens lexes one statement into its token list, EOF excluded
func Tokens(statement string) []Token {
	l := New(statement)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == EOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// SplitStatements cuts text on ';' outside quoted literals. Each piece is
// trimmed, empty pieces are dropped and the terminator is re-appended.
func SplitStatements(input string) []string {
	var statements []string
	var quote byte
	start := 0

	emit := func(end int) {
		if stmt := strings.TrimSpace(input[start:end]); stmt != "" {
			statements = append(statements, stmt+";")
		}
	}

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == ';':
			emit(i)
			start = i + 1
		}
	}
	emit(len(input))
	return statements
}

// Tokenize splits input into statements and lexes each one, preserving order
func Tokenize(input string) [][]Token {
	statements := SplitStatements(input)
	out := make([][]Token, 0, len(statements))
	for _, stmt := range statements {
		out = append(out, Tokens(stmt))
	}
	return out
}
