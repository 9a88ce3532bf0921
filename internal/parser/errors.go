package parser

import (
	"fmt"

	"github.com/zakazai/jsonsql/internal/lexer"
)

// ParseError reports the token the grammar expected and the one it found
type ParseError struct {
	Expected  string
	Actual    string
	Statement int // 1-based position in the batch, 0 when unknown
}

func (e *ParseError) Error() string {
	if e.Statement > 0 {
		return fmt.Sprintf("parse error in statement %d: expected %s, got %s", e.Statement, e.Expected, e.Actual)
	}
	return fmt.Sprintf("parse error: expected %s, got %s", e.Expected, e.Actual)
}

func describe(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
}

func mismatch(expected string, actual lexer.Token) *ParseError {
	return &ParseError{Expected: expected, Actual: describe(actual)}
}
