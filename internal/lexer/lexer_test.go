package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zakazai/jsonsql/internal/lexer"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []lexer.Token
	}{
		{
			name:  "Select_all_from_table",
			input: "select * from users;",
			expected: []lexer.Token{
				{Type: lexer.KEYWORD, Literal: "SELECT"},
				{Type: lexer.SYMBOL, Literal: "*"},
				{Type: lexer.KEYWORD, Literal: "FROM"},
				{Type: lexer.IDENTIFIER, Literal: "users"},
				{Type: lexer.SYMBOL, Literal: ";"},
			},
		},
		{
			name:  "Create_table_with_constraints",
			input: "CREATE TABLE u (id NUMBER PKEY AUTO_INCREMENT, Name STRING)",
			expected: []lexer.Token{
				{Type: lexer.KEYWORD, Literal: "CREATE"},
				{Type: lexer.KEYWORD, Literal: "TABLE"},
				{Type: lexer.IDENTIFIER, Literal: "u"},
				{Type: lexer.SYMBOL, Literal: "("},
				{Type: lexer.IDENTIFIER, Literal: "id"},
				{Type: lexer.KEYWORD, Literal: "NUMBER"},
				{Type: lexer.KEYWORD, Literal: "PKEY"},
				{Type: lexer.KEYWORD, Literal: "AUTO_INCREMENT"},
				{Type: lexer.SYMBOL, Literal: ","},
				{Type: lexer.IDENTIFIER, Literal: "Name"},
				{Type: lexer.KEYWORD, Literal: "STRING"},
				{Type: lexer.SYMBOL, Literal: ")"},
			},
		},
		{
			name:  "Strings_keep_case_and_lose_quotes",
			input: `VALUES ("Fernando", 'it''s')`,
			expected: []lexer.Token{
				{Type: lexer.KEYWORD, Literal: "VALUES"},
				{Type: lexer.SYMBOL, Literal: "("},
				{Type: lexer.STRING, Literal: "Fernando"},
				{Type: lexer.SYMBOL, Literal: ","},
				{Type: lexer.STRING, Literal: "it"},
				{Type: lexer.STRING, Literal: "s"},
				{Type: lexer.SYMBOL, Literal: ")"},
			},
		},
		{
			name:  "Comparison_symbols",
			input: "a <= 1 b >= -2 c <> 3 d != 4 e < 5 f > 6",
			expected: []lexer.Token{
				{Type: lexer.IDENTIFIER, Literal: "a"},
				{Type: lexer.SYMBOL, Literal: "<="},
				{Type: lexer.NUMBER, Literal: "1"},
				{Type: lexer.IDENTIFIER, Literal: "b"},
				{Type: lexer.SYMBOL, Literal: ">="},
				{Type: lexer.NUMBER, Literal: "-2"},
				{Type: lexer.IDENTIFIER, Literal: "c"},
				{Type: lexer.SYMBOL, Literal: "<>"},
				{Type: lexer.NUMBER, Literal: "3"},
				{Type: lexer.IDENTIFIER, Literal: "d"},
				{Type: lexer.SYMBOL, Literal: "!="},
				{Type: lexer.NUMBER, Literal: "4"},
				{Type: lexer.IDENTIFIER, Literal: "e"},
				{Type: lexer.SYMBOL, Literal: "<"},
				{Type: lexer.NUMBER, Literal: "5"},
				{Type: lexer.IDENTIFIER, Literal: "f"},
				{Type: lexer.SYMBOL, Literal: ">"},
				{Type: lexer.NUMBER, Literal: "6"},
			},
		},
		{
			name:  "Phrases_are_single_tokens",
			input: "a is  not null OR b IS NULL AND c not\tin (1)",
			expected: []lexer.Token{
				{Type: lexer.IDENTIFIER, Literal: "a"},
				{Type: lexer.KEYWORD, Literal: "IS NOT NULL"},
				{Type: lexer.KEYWORD, Literal: "OR"},
				{Type: lexer.IDENTIFIER, Literal: "b"},
				{Type: lexer.KEYWORD, Literal: "IS NULL"},
				{Type: lexer.KEYWORD, Literal: "AND"},
				{Type: lexer.IDENTIFIER, Literal: "c"},
				{Type: lexer.KEYWORD, Literal: "NOT IN"},
				{Type: lexer.SYMBOL, Literal: "("},
				{Type: lexer.NUMBER, Literal: "1"},
				{Type: lexer.SYMBOL, Literal: ")"},
			},
		},
		{
			name:  "Phrase_needs_word_boundary",
			input: "is_active isnull",
			expected: []lexer.Token{
				{Type: lexer.IDENTIFIER, Literal: "is_active"},
				{Type: lexer.IDENTIFIER, Literal: "isnull"},
			},
		},
		{
			name:  "Functions",
			input: `count("SELECT * FROM t;") clear()`,
			expected: []lexer.Token{
				{Type: lexer.FUNCTION, Literal: "COUNT"},
				{Type: lexer.SYMBOL, Literal: "("},
				{Type: lexer.STRING, Literal: "SELECT * FROM t;"},
				{Type: lexer.SYMBOL, Literal: ")"},
				{Type: lexer.FUNCTION, Literal: "CLEAR"},
				{Type: lexer.SYMBOL, Literal: "("},
				{Type: lexer.SYMBOL, Literal: ")"},
			},
		},
		{
			name:  "Unknown_characters",
			input: "a # 1.5 -x",
			expected: []lexer.Token{
				{Type: lexer.IDENTIFIER, Literal: "a"},
				{Type: lexer.UNKNOWN, Literal: "#"},
				{Type: lexer.NUMBER, Literal: "1"},
				{Type: lexer.UNKNOWN, Literal: "."},
				{Type: lexer.NUMBER, Literal: "5"},
				{Type: lexer.UNKNOWN, Literal: "-"},
				{Type: lexer.IDENTIFIER, Literal: "x"},
			},
		},
		{
			name:  "Unterminated_string",
			input: `name = "Fer`,
			expected: []lexer.Token{
				{Type: lexer.IDENTIFIER, Literal: "name"},
				{Type: lexer.SYMBOL, Literal: "="},
				{Type: lexer.UNKNOWN, Literal: `"Fer`},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := lexer.New(tt.input)
			var tokens []lexer.Token
			for {
				tok := l.NextToken()
				if tok.Type == lexer.EOF {
					break
				}
				tokens = append(tokens, tok)
			}
			assert.Equal(t, tt.expected, tokens)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"single", "USE proj", []string{"USE proj;"}},
		{"multiple_trimmed", "  USE proj;\n SHOW TABLES ;", []string{"USE proj;", "SHOW TABLES;"}},
		{"empty_pieces_dropped", ";;USE a;; ;", []string{"USE a;"}},
		{"semicolon_inside_quotes", `COUNT("SELECT * FROM t;"); CLEAR();`, []string{`COUNT("SELECT * FROM t;");`, "CLEAR();"}},
		{"nothing", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, lexer.SplitStatements(tt.input))
		})
	}
}

func TestTokenize(t *testing.T) {
	batches := lexer.Tokenize("CREATE DATABASE proj; USE proj;")
	assert.Len(t, batches, 2)
	assert.Equal(t, []lexer.Token{
		{Type: lexer.KEYWORD, Literal: "CREATE"},
		{Type: lexer.KEYWORD, Literal: "DATABASE"},
		{Type: lexer.IDENTIFIER, Literal: "proj"},
		{Type: lexer.SYMBOL, Literal: ";"},
	}, batches[0])
	assert.Equal(t, "USE", batches[1][0].Literal)
	assert.Equal(t, lexer.SYMBOL, batches[1][2].Type)
}
