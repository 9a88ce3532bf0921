package types

import (
	"fmt"
	"strings"
)

// NotAvailable is rendered in projections for a column the row does not hold
const NotAvailable = "N/A"

// ColumnType is the declared type of a table column
type ColumnType string

const (
	NumberType ColumnType = "NUMBER"
	StringType ColumnType = "STRING"
)

// ParseColumnType accepts the type keywords of CREATE TABLE. INT and INTEGER
// are aliases of NUMBER, TEXT is an alias of STRING.
func ParseColumnType(word string) (ColumnType, error) {
	switch strings.ToUpper(word) {
	case "NUMBER", "INT", "INTEGER":
		return NumberType, nil
	case "STRING", "TEXT":
		return StringType, nil
	}
	return "", fmt.Errorf("unknown column type %q", word)
}

// Row maps column names to values. Numbers are int64, text is string.
type Row map[string]interface{}

// Column is one declared table column
type Column struct {
	Name string
	Type ColumnType
}

// Reserved bookkeeping keys stored next to the real columns of a table file
const (
	KeyPrimary            = "pkey"
	KeyAutoIncrement      = "auto_increment"
	KeyAutoIncrementIndex = "auto_increment_index"
)

// IsSystemColumn reports whether name is one of the bookkeeping keys
func IsSystemColumn(name string) bool {
	switch name {
	case KeyPrimary, KeyAutoIncrement, KeyAutoIncrementIndex:
		return true
	}
	return false
}
