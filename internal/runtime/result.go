package runtime

import "github.com/zakazai/jsonsql/internal/parser"

// ResultKind tells which fields of a Result are set
type ResultKind int

const (
	ResultVoid ResultKind = iota
	ResultTable
	ResultRowsAffected
	ResultCount
	ResultDatabase
	ResultError
)

var resultKindNames = [...]string{
	ResultVoid:         "void",
	ResultTable:        "table",
	ResultRowsAffected: "rows_affected",
	ResultCount:        "count",
	ResultDatabase:     "database",
	ResultError:        "error",
}

func (k ResultKind) String() string {
	if int(k) >= 0 && int(k) < len(resultKindNames) {
		return resultKindNames[k]
	}
	return "unknown"
}

// Result is the outcome of one statement
type Result struct {
	Kind      ResultKind
	Statement parser.Kind
	Header    []string        // ResultTable
	Rows      [][]interface{} // ResultTable
	Count     int             // ResultRowsAffected, ResultCount
	Database  string          // ResultDatabase
	Err       error           // ResultError
}

func tableResult(header []string, rows [][]interface{}) Result {
	if rows == nil {
		rows = [][]interface{}{}
	}
	return Result{Kind: ResultTable, Header: header, Rows: rows}
}

func listResult(header string, names []string) Result {
	rows := make([][]interface{}, len(names))
	for i, name := range names {
		rows[i] = []interface{}{name}
	}
	return tableResult([]string{header}, rows)
}

func affected(n int) Result {
	return Result{Kind: ResultRowsAffected, Count: n}
}
