package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/zakazai/jsonsql/internal/lexer"
	"github.com/zakazai/jsonsql/internal/types"
)

// Parser turns the token list of one statement into a Statement
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// New creates a new parser over one statement's tokens
func New(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

type statementParser func(*Parser) (Statement, error)

// statementParsers is keyed by the upper-cased first token of a statement
var statementParsers = map[string]statementParser{
	"SELECT": (*Parser).parseSelect,
	"INSERT": (*Parser).parseInsert,
	"UPDATE": (*Parser).parseUpdate,
	"DELETE": (*Parser).parseDelete,
	"CREATE": (*Parser).parseCreate,
	"DROP":   (*Parser).parseDrop,
	"USE":    (*Parser).parseUse,
	"SHOW":   (*Parser).parseShow,
	"COUNT":  (*Parser).parseCount,
	"CLEAR":  (*Parser).parseClear,
}

// Parse parses the whole statement, including its terminating ';'
func (p *Parser) Parse() (Statement, error) {
	p.pos = 0
	for _, tok := range p.tokens {
		if tok.Type == lexer.UNKNOWN {
			return nil, mismatch("valid token", tok)
		}
	}

	first := p.current()
	if first.Type == lexer.EOF {
		return nil, mismatch("statement", first)
	}
	parse, ok := statementParsers[strings.ToUpper(first.Literal)]
	if !ok || (first.Type != lexer.KEYWORD && first.Type != lexer.FUNCTION) {
		return nil, mismatch("SELECT, INSERT, UPDATE, DELETE, CREATE, DROP, USE, SHOW, COUNT or CLEAR", first)
	}
	return parse(p)
}

// ParseAll parses every statement of a batch. The first failure aborts the
// batch and is returned with its statement position.
func ParseAll(batch [][]lexer.Token) ([]Statement, error) {
	statements := make([]Statement, 0, len(batch))
	for i, tokens := range batch {
		stmt, err := New(tokens).Parse()
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Statement = i + 1
			}
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// Parse lexes and parses raw statement text
func Parse(input string) ([]Statement, error) {
	return ParseAll(lexer.Tokenize(input))
}

func (p *Parser) current() lexer.Token {
	return p.peek(0)
}

func (p *Parser) peek(offset int) lexer.Token {
	if p.pos+offset >= len(p.tokens) {
		return lexer.Token{Type: lexer.EOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// is reports whether the current token has the given type and, for a
// non-empty value, the given literal.
func (p *Parser) is(typ lexer.TokenType, value string) bool {
	tok := p.current()
	return tok.Type == typ && (value == "" || tok.Literal == value)
}

// consume takes the current token if it matches, failing otherwise
func (p *Parser) consume(typ lexer.TokenType, value string) (lexer.Token, error) {
	if !p.is(typ, value) {
		expected := typ.String()
		if value != "" {
			expected = strconv.Quote(value)
		}
		return lexer.Token{}, mismatch(expected, p.current())
	}
	return p.advance(), nil
}

// end consumes the ';' terminator and requires nothing to follow it
func (p *Parser) end() error {
	if _, err := p.consume(lexer.SYMBOL, ";"); err != nil {
		return err
	}
	if tok := p.current(); tok.Type != lexer.EOF {
		return mismatch("end of statement", tok)
	}
	return nil
}

func (p *Parser) identifier() (string, error) {
	tok, err := p.consume(lexer.IDENTIFIER, "")
	if err != nil {
		return "", err
	}
	return tok.Literal, nil
}

func (p *Parser) stringLiteral() (string, error) {
	tok, err := p.consume(lexer.STRING, "")
	if err != nil {
		return "", err
	}
	return tok.Literal, nil
}

func (p *Parser) value() (Value, error) {
	tok := p.current()
	switch tok.Type {
	case lexer.STRING:
		p.advance()
		return String(tok.Literal), nil
	case lexer.NUMBER:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return Value{}, mismatch("64-bit integer", tok)
		}
		p.advance()
		return Number(n), nil
	case lexer.IDENTIFIER:
		p.advance()
		return Value{Type: IdentifierValue, Text: tok.Literal}, nil
	}
	return Value{}, mismatch("STRING, NUMBER or IDENTIFIER", tok)
}

func (p *Parser) columnList() ([]string, error) {
	if p.is(lexer.SYMBOL, "*") {
		p.advance()
		return []string{"*"}, nil
	}
	var columns []string
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		columns = append(columns, name)
		if !p.is(lexer.SYMBOL, ",") {
			return columns, nil
		}
		p.advance()
	}
}

func (p *Parser) valueList() ([]Value, error) {
	if _, err := p.consume(lexer.SYMBOL, "("); err != nil {
		return nil, err
	}
	var values []Value
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if !p.is(lexer.SYMBOL, ",") {
			break
		}
		p.advance()
	}
	if _, err := p.consume(lexer.SYMBOL, ")"); err != nil {
		return nil, err
	}
	return values, nil
}

func (p *Parser) assignmentList() ([]Assignment, error) {
	var set []Assignment
	for {
		column, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.SYMBOL, "="); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		set = append(set, Assignment{Column: column, Value: v})
		if !p.is(lexer.SYMBOL, ",") {
			return set, nil
		}
		p.advance()
	}
}

func (p *Parser) columnDefinitions() ([]ColumnDef, error) {
	if _, err := p.consume(lexer.SYMBOL, "("); err != nil {
		return nil, err
	}
	var defs []ColumnDef
	var primary, auto string
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		// INT, INTEGER and TEXT are not keywords, so they stay usable as names.
		typeTok := p.current()
		if typeTok.Type != lexer.KEYWORD && typeTok.Type != lexer.IDENTIFIER {
			return nil, mismatch("column type NUMBER or STRING", typeTok)
		}
		colType, err := types.ParseColumnType(typeTok.Literal)
		if err != nil {
			return nil, mismatch("column type NUMBER or STRING", typeTok)
		}
		p.advance()

		def := ColumnDef{Name: name, Type: colType}
		for p.is(lexer.KEYWORD, "PKEY") || p.is(lexer.KEYWORD, "AUTO_INCREMENT") {
			switch p.advance().Literal {
			case "PKEY":
				if primary != "" {
					return nil, &ParseError{Expected: "at most one PKEY column", Actual: "PKEY on " + primary + " and " + name}
				}
				primary = name
				def.PrimaryKey = true
			case "AUTO_INCREMENT":
				if auto != "" {
					return nil, &ParseError{Expected: "at most one AUTO_INCREMENT column", Actual: "AUTO_INCREMENT on " + auto + " and " + name}
				}
				auto = name
				def.AutoIncrement = true
			}
		}
		defs = append(defs, def)

		if !p.is(lexer.SYMBOL, ",") {
			break
		}
		p.advance()
	}
	if _, err := p.consume(lexer.SYMBOL, ")"); err != nil {
		return nil, err
	}
	return defs, nil
}

// whereClause parses an optional WHERE and its condition chain
func (p *Parser) whereClause() ([]Condition, error) {
	if !p.is(lexer.KEYWORD, "WHERE") {
		return nil, nil
	}
	p.advance()
	return p.conditionChain()
}

func (p *Parser) conditionChain() ([]Condition, error) {
	var chain []Condition
	logic := LogicNone
	for {
		pred, err := p.predicate()
		if err != nil {
			return nil, err
		}
		chain = append(chain, Condition{Logic: logic, Predicate: pred})

		switch {
		case p.is(lexer.KEYWORD, "AND"):
			logic = LogicAnd
		case p.is(lexer.KEYWORD, "OR"):
			logic = LogicOr
		default:
			return chain, nil
		}
		p.advance()
	}
}

func (p *Parser) predicate() (Predicate, error) {
	column, err := p.identifier()
	if err != nil {
		return Predicate{}, err
	}
	op, err := p.operator()
	if err != nil {
		return Predicate{}, err
	}
	pred := Predicate{Column: column, Operator: op}
	switch op {
	case OpIsNull, OpIsNotNull:
	case OpIn, OpNotIn:
		pred.List, err = p.valueList()
	default:
		pred.Value, err = p.value()
	}
	if err != nil {
		return Predicate{}, err
	}
	return pred, nil
}

var symbolOperators = map[string]Operator{
	"=": OpEqual, "<>": OpNotEqual, "!=": OpBangEqual,
	"<": OpLess, ">": OpGreater, "<=": OpLessEqual, ">=": OpGreaterEqual,
}

// operator accepts both the lexer's phrase tokens ("IS NOT NULL") and the
// same phrase spelled as separate keywords.
func (p *Parser) operator() (Operator, error) {
	tok := p.current()
	switch tok.Type {
	case lexer.SYMBOL:
		if op, ok := symbolOperators[tok.Literal]; ok {
			p.advance()
			return op, nil
		}
	case lexer.KEYWORD:
		switch tok.Literal {
		case "LIKE", "IN", "NOT IN", "IS NULL", "IS NOT NULL":
			p.advance()
			return Operator(tok.Literal), nil
		case "IS":
			p.advance()
			if p.is(lexer.KEYWORD, "NOT") {
				p.advance()
				if _, err := p.consume(lexer.KEYWORD, "NULL"); err != nil {
					return "", err
				}
				return OpIsNotNull, nil
			}
			if _, err := p.consume(lexer.KEYWORD, "NULL"); err != nil {
				return "", err
			}
			return OpIsNull, nil
		case "NOT":
			p.advance()
			if _, err := p.consume(lexer.KEYWORD, "IN"); err != nil {
				return "", err
			}
			return OpNotIn, nil
		}
	}
	return "", mismatch("comparison operator", tok)
}

func (p *Parser) finish(stmt Statement) (Statement, error) {
	if err := p.end(); err != nil {
		return nil, err
	}
	return stmt, nil
}
