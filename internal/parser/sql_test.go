package parser_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakazai/jsonsql/internal/lexer"
	"github.com/zakazai/jsonsql/internal/parser"
	"github.com/zakazai/jsonsql/internal/types"
)

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"unknown_leading_keyword", "GARBAGE;", `parse error in statement 1: expected SELECT, INSERT, UPDATE, DELETE, CREATE, DROP, USE, SHOW, COUNT or CLEAR, got IDENTIFIER "GARBAGE"`},
		{"missing_from", "SELECT * users;", `parse error in statement 1: expected "FROM", got IDENTIFIER "users"`},
		{"empty_column_list", "SELECT FROM users;", `parse error in statement 1: expected IDENTIFIER, got KEYWORD "FROM"`},
		{"unknown_token", "SELECT * FROM users WHERE a # 1;", `parse error in statement 1: expected valid token, got UNKNOWN "#"`},
		{"bad_type", "CREATE TABLE t (a BLOB);", `parse error in statement 1: expected column type NUMBER or STRING, got IDENTIFIER "BLOB"`},
		{"two_primary_keys", "CREATE TABLE t (a NUMBER PKEY, b NUMBER PKEY);", "parse error in statement 1: expected at most one PKEY column, got PKEY on a and b"},
		{"two_auto_increments", "CREATE TABLE t (a NUMBER AUTO_INCREMENT, b NUMBER AUTO_INCREMENT);", "parse error in statement 1: expected at most one AUTO_INCREMENT column, got AUTO_INCREMENT on a and b"},
		{"repeated_constraint", "CREATE TABLE t (a NUMBER PKEY PKEY);", "parse error in statement 1: expected at most one PKEY column, got PKEY on a and a"},
		{"trailing_tokens", "USE a b;", `parse error in statement 1: expected ";", got IDENTIFIER "b"`},
		{"missing_value", "UPDATE t SET a = ;", `parse error in statement 1: expected STRING, NUMBER or IDENTIFIER, got SYMBOL ";"`},
		{"is_without_null", "SELECT * FROM t WHERE a IS 1;", `parse error in statement 1: expected "NULL", got NUMBER "1"`},
		{"count_needs_string", "COUNT(users);", `parse error in statement 1: expected STRING, got IDENTIFIER "users"`},
		{"show_what", "SHOW users;", `parse error in statement 1: expected DATABASE, DATABASES or TABLES, got IDENTIFIER "users"`},
		{"number_overflow", "SELECT * FROM t WHERE a = 99999999999999999999;", `parse error in statement 1: expected 64-bit integer, got NUMBER "99999999999999999999"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := parser.Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, stmts)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestParseAllAbortsBatch(t *testing.T) {
	stmts, err := parser.Parse("USE proj; GARBAGE; SELECT * FROM users;")
	require.Error(t, err)
	assert.Nil(t, stmts)

	var perr *parser.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Statement)
	assert.Equal(t, `IDENTIFIER "GARBAGE"`, perr.Actual)
}

func TestParserWithoutTerminator(t *testing.T) {
	_, err := parser.New(lexer.Tokens("USE proj")).Parse()
	require.Error(t, err)
	assert.Equal(t, `parse error: expected ";", got end of input`, err.Error())
}

func TestSeparateKeywordOperators(t *testing.T) {
	tokens := []lexer.Token{
		{Type: lexer.KEYWORD, Literal: "SELECT"},
		{Type: lexer.SYMBOL, Literal: "*"},
		{Type: lexer.KEYWORD, Literal: "FROM"},
		{Type: lexer.IDENTIFIER, Literal: "t"},
		{Type: lexer.KEYWORD, Literal: "WHERE"},
		{Type: lexer.IDENTIFIER, Literal: "a"},
		{Type: lexer.KEYWORD, Literal: "IS"},
		{Type: lexer.KEYWORD, Literal: "NOT"},
		{Type: lexer.KEYWORD, Literal: "NULL"},
		{Type: lexer.KEYWORD, Literal: "OR"},
		{Type: lexer.IDENTIFIER, Literal: "b"},
		{Type: lexer.KEYWORD, Literal: "NOT"},
		{Type: lexer.KEYWORD, Literal: "IN"},
		{Type: lexer.SYMBOL, Literal: "("},
		{Type: lexer.NUMBER, Literal: "2"},
		{Type: lexer.SYMBOL, Literal: ")"},
		{Type: lexer.SYMBOL, Literal: ";"},
	}

	stmt, err := parser.New(tokens).Parse()
	require.NoError(t, err)
	sel := stmt.(*parser.SelectStatement)
	require.Len(t, sel.Where, 2)
	assert.Equal(t, parser.OpIsNotNull, sel.Where[0].Predicate.Operator)
	assert.Equal(t, parser.OpNotIn, sel.Where[1].Predicate.Operator)
}

func TestTypeAliasesAreNotReserved(t *testing.T) {
	stmts, err := parser.Parse(`CREATE TABLE notes (text TEXT, int INT, integer INTEGER); SELECT text, int FROM notes WHERE integer = 1;`)
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	create := stmts[0].(*parser.CreateTableStatement)
	assert.Equal(t, []parser.ColumnDef{
		{Name: "text", Type: types.StringType},
		{Name: "int", Type: types.NumberType},
		{Name: "integer", Type: types.NumberType},
	}, create.Columns)

	sel := stmts[1].(*parser.SelectStatement)
	assert.Equal(t, []string{"text", "int"}, sel.Columns)
	assert.Equal(t, "integer", sel.Where[0].Predicate.Column)

	assert.Equal(t, lexer.IDENTIFIER, lexer.Tokens("text;")[0].Type)
}
