package parser

import (
	"fmt"
	"strconv"

	"github.com/zakazai/jsonsql/internal/types"
)

// Kind identifies the statement variant
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindCreateDatabase
	KindCreateTable
	KindDrop
	KindUse
	KindShow
	KindCount
	KindClear
)

var kindNames = [...]string{
	KindSelect:         "SELECT",
	KindInsert:         "INSERT",
	KindUpdate:         "UPDATE",
	KindDelete:         "DELETE",
	KindCreateDatabase: "CREATE DATABASE",
	KindCreateTable:    "CREATE TABLE",
	KindDrop:           "DROP",
	KindUse:            "USE",
	KindShow:           "SHOW",
	KindCount:          "COUNT",
	KindClear:          "CLEAR",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Statement is implemented by every parsed statement
type Statement interface {
	Kind() Kind
}

// ValueType tells which field of a Value is set
type ValueType int

const (
	NumberValue ValueType = iota
	StringValue
	IdentifierValue
)

// Value is a literal from the statement text
type Value struct {
	Type   ValueType
	Number int64
	Text   string
}

// Number builds a numeric literal
func Number(n int64) Value { return Value{Type: NumberValue, Number: n} }

// String builds a quoted literal
func String(s string) Value { return Value{Type: StringValue, Text: s} }

// Interface returns the literal as it is stored in a row: int64 or string
func (v Value) Interface() interface{} {
	if v.Type == NumberValue {
		return v.Number
	}
	return v.Text
}

func (v Value) String() string {
	switch v.Type {
	case NumberValue:
		return strconv.FormatInt(v.Number, 10)
	case StringValue:
		return strconv.Quote(v.Text)
	}
	return v.Text
}

// Logic joins a predicate to everything evaluated before it
type Logic int

const (
	LogicNone Logic = iota
	LogicAnd
	LogicOr
)

// Operator is a comparison operator of a WHERE predicate
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "<>"
	OpBangEqual    Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpLike         Operator = "LIKE"
	OpIn           Operator = "IN"
	OpNotIn        Operator = "NOT IN"
	OpIsNull       Operator = "IS NULL"
	OpIsNotNull    Operator = "IS NOT NULL"
)

// Predicate compares one column against a literal or a literal list
type Predicate struct {
	Column   string
	Operator Operator
	Value    Value
	List     []Value
}

// Condition is one link of a WHERE chain. Logic is LogicNone on the first link.
type Condition struct {
	Logic     Logic
	Predicate Predicate
}

// Assignment is one "column = value" pair of an UPDATE
type Assignment struct {
	Column string
	Value  Value
}

// ColumnDef is one column of CREATE TABLE
type ColumnDef struct {
	Name          string
	Type          types.ColumnType
	PrimaryKey    bool
	AutoIncrement bool
}

// SelectStatement represents SELECT. Columns is ["*"] for all columns.
type SelectStatement struct {
	Columns []string
	Table   string
	Where   []Condition
}

// InsertStatement represents INSERT INTO
type InsertStatement struct {
	Table   string
	Columns []string
	Values  []Value
}

// UpdateStatement represents UPDATE
type UpdateStatement struct {
	Table string
	Set   []Assignment
	Where []Condition
}

// DeleteStatement represents DELETE FROM
type DeleteStatement struct {
	Table string
	Where []Condition
}

// CreateDatabaseStatement represents CREATE DATABASE
type CreateDatabaseStatement struct {
	Database string
}

// CreateTableStatement represents CREATE TABLE
type CreateTableStatement struct {
	Table   string
	Columns []ColumnDef
}

// DropTarget selects what DROP removes
type DropTarget int

const (
	DropDatabase DropTarget = iota
	DropTable
)

// DropStatement represents DROP DATABASE and DROP TABLE
type DropStatement struct {
	Target DropTarget
	Name   string
}

// UseStatement represents USE
type UseStatement struct {
	Database string
}

// ShowTarget selects what SHOW lists
type ShowTarget int

const (
	ShowDatabase ShowTarget = iota
	ShowDatabases
	ShowTables
)

// ShowStatement represents SHOW. Database is only set by SHOW TABLES FROM.
type ShowStatement struct {
	Target   ShowTarget
	Database string
}

// CountStatement counts the rows produced by a nested statement
type CountStatement struct {
	Query string
}

// ClearStatement asks the front end to clear its screen
type ClearStatement struct{}

func (*SelectStatement) Kind() Kind         { return KindSelect }
func (*InsertStatement) Kind() Kind         { return KindInsert }
func (*UpdateStatement) Kind() Kind         { return KindUpdate }
func (*DeleteStatement) Kind() Kind         { return KindDelete }
func (*CreateDatabaseStatement) Kind() Kind { return KindCreateDatabase }
func (*CreateTableStatement) Kind() Kind    { return KindCreateTable }
func (*DropStatement) Kind() Kind           { return KindDrop }
func (*UseStatement) Kind() Kind            { return KindUse }
func (*ShowStatement) Kind() Kind           { return KindShow }
func (*CountStatement) Kind() Kind          { return KindCount }
func (*ClearStatement) Kind() Kind          { return KindClear }
