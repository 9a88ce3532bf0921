package parser

import (
	"github.com/zakazai/jsonsql/internal/lexer"
)

// SELECT column_list FROM identifier [WHERE condition_chain] ;
func (p *Parser) parseSelect() (Statement, error) {
	p.advance()
	stmt := &SelectStatement{}
	var err error
	if stmt.Columns, err = p.columnList(); err != nil {
		return nil, err
	}
	if _, err = p.consume(lexer.KEYWORD, "FROM"); err != nil {
		return nil, err
	}
	if stmt.Table, err = p.identifier(); err != nil {
		return nil, err
	}
	if stmt.Where, err = p.whereClause(); err != nil {
		return nil, err
	}
	return p.finish(stmt)
}

// INSERT INTO identifier ( column_list ) VALUES value_list ;
func (p *Parser) parseInsert() (Statement, error) {
	p.advance()
	stmt := &InsertStatement{}
	var err error
	if _, err = p.consume(lexer.KEYWORD, "INTO"); err != nil {
		return nil, err
	}
	if stmt.Table, err = p.identifier(); err != nil {
		return nil, err
	}
	if _, err = p.consume(lexer.SYMBOL, "("); err != nil {
		return nil, err
	}
	if stmt.Columns, err = p.columnList(); err != nil {
		return nil, err
	}
	if _, err = p.consume(lexer.SYMBOL, ")"); err != nil {
		return nil, err
	}
	if _, err = p.consume(lexer.KEYWORD, "VALUES"); err != nil {
		return nil, err
	}
	if stmt.Values, err = p.valueList(); err != nil {
		return nil, err
	}
	return p.finish(stmt)
}

// UPDATE identifier SET assignment_list [WHERE condition_chain] ;
func (p *Parser) parseUpdate() (Statement, error) {
	p.advance()
	stmt := &UpdateStatement{}
	var err error
	if stmt.Table, err = p.identifier(); err != nil {
		return nil, err
	}
	if _, err = p.consume(lexer.KEYWORD, "SET"); err != nil {
		return nil, err
	}
	if stmt.Set, err = p.assignmentList(); err != nil {
		return nil, err
	}
	if stmt.Where, err = p.whereClause(); err != nil {
		return nil, err
	}
	return p.finish(stmt)
}

// DELETE FROM identifier [WHERE condition_chain] ;
func (p *Parser) parseDelete() (Statement, error) {
	p.advance()
	stmt := &DeleteStatement{}
	var err error
	if _, err = p.consume(lexer.KEYWORD, "FROM"); err != nil {
		return nil, err
	}
	if stmt.Table, err = p.identifier(); err != nil {
		return nil, err
	}
	if stmt.Where, err = p.whereClause(); err != nil {
		return nil, err
	}
	return p.finish(stmt)
}

// CREATE DATABASE identifier ; | CREATE TABLE identifier column_definitions ;
func (p *Parser) parseCreate() (Statement, error) {
	p.advance()
	switch {
	case p.is(lexer.KEYWORD, "DATABASE"):
		p.advance()
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		return p.finish(&CreateDatabaseStatement{Database: name})
	case p.is(lexer.KEYWORD, "TABLE"):
		p.advance()
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		columns, err := p.columnDefinitions()
		if err != nil {
			return nil, err
		}
		return p.finish(&CreateTableStatement{Table: name, Columns: columns})
	}
	return nil, mismatch("DATABASE or TABLE", p.current())
}

// DROP (DATABASE|TABLE) identifier ;
func (p *Parser) parseDrop() (Statement, error) {
	p.advance()
	stmt := &DropStatement{}
	switch {
	case p.is(lexer.KEYWORD, "DATABASE"):
		stmt.Target = DropDatabase
	case p.is(lexer.KEYWORD, "TABLE"):
		stmt.Target = DropTable
	default:
		return nil, mismatch("DATABASE or TABLE", p.current())
	}
	p.advance()
	var err error
	if stmt.Name, err = p.identifier(); err != nil {
		return nil, err
	}
	return p.finish(stmt)
}

// USE identifier ;
func (p *Parser) parseUse() (Statement, error) {
	p.advance()
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	return p.finish(&UseStatement{Database: name})
}

// SHOW DATABASE ; | SHOW DATABASES ; | SHOW TABLES [FROM identifier] ;
func (p *Parser) parseShow() (Statement, error) {
	p.advance()
	stmt := &ShowStatement{}
	switch {
	case p.is(lexer.KEYWORD, "DATABASE"):
		stmt.Target = ShowDatabase
		p.advance()
	case p.is(lexer.KEYWORD, "DATABASES"):
		stmt.Target = ShowDatabases
		p.advance()
	case p.is(lexer.KEYWORD, "TABLES"):
		stmt.Target = ShowTables
		p.advance()
		if p.is(lexer.KEYWORD, "FROM") {
			p.advance()
			var err error
			if stmt.Database, err = p.identifier(); err != nil {
				return nil, err
			}
		}
	default:
		return nil, mismatch("DATABASE, DATABASES or TABLES", p.current())
	}
	return p.finish(stmt)
}

// COUNT ( string_literal ) ;
func (p *Parser) parseCount() (Statement, error) {
	p.advance()
	if _, err := p.consume(lexer.SYMBOL, "("); err != nil {
		return nil, err
	}
	query, err := p.stringLiteral()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.SYMBOL, ")"); err != nil {
		return nil, err
	}
	return p.finish(&CountStatement{Query: query})
}

// CLEAR ( ) ;
func (p *Parser) parseClear() (Statement, error) {
	p.advance()
	if _, err := p.consume(lexer.SYMBOL, "("); err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.SYMBOL, ")"); err != nil {
		return nil, err
	}
	return p.finish(&ClearStatement{})
}
