package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/zakazai/jsonsql/internal/parser"
	"github.com/zakazai/jsonsql/internal/runtime"
)

// clearScreen moves the cursor home and erases the display
const clearScreen = "\033[H\033[2J"

// console prints results as text tables
type console struct {
	w io.Writer
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) Render(res runtime.Result) {
	switch res.Kind {
	case runtime.ResultTable:
		c.printTable(res.Header, res.Rows)
	case runtime.ResultRowsAffected:
		fmt.Fprintf(c.w, "%d row(s) affected\n", res.Count)
	case runtime.ResultCount:
		fmt.Fprintf(c.w, "%d\n", res.Count)
	case runtime.ResultDatabase:
		if res.Database == "" {
			fmt.Fprintln(c.w, "No database selected")
		} else {
			fmt.Fprintf(c.w, "Database: %s\n", res.Database)
		}
	case runtime.ResultError:
		fmt.Fprintf(c.w, "Error: %v\n", res.Err)
	case runtime.ResultVoid:
		if res.Statement == parser.KindClear {
			fmt.Fprint(c.w, clearScreen)
		} else {
			fmt.Fprintln(c.w, "OK")
		}
	}
}

// printTable prints rows under header, one padded column per header entry
func (c *console) printTable(header []string, rows [][]interface{}) {
	if len(rows) == 0 {
		fmt.Fprintln(c.w, "Empty result set")
		return
	}

	widths := make([]int, len(header))
	for i, col := range header {
		widths[i] = utf8.RuneCountInString(col)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(header))
		for i := range header {
			s := fmt.Sprintf("%v", row[i])
			cells[r][i] = s
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	writeLine := func(values []string) {
		for i, v := range values {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(v)
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(v)))
		}
		b.WriteByte('\n')
	}

	writeLine(header)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("-+-")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteByte('\n')
	for _, row := range cells {
		writeLine(row)
	}
	fmt.Fprint(c.w, b.String())
}

// jsonResult is the exec --json form of a result
type jsonResult struct {
	Statement string          `json:"statement"`
	Kind      string          `json:"kind"`
	Header    []string        `json:"header,omitempty"`
	Rows      [][]interface{} `json:"rows,omitempty"`
	Count     *int            `json:"count,omitempty"`
	Database  *string         `json:"database,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func writeJSON(w io.Writer, results []runtime.Result) error {
	out := make([]jsonResult, len(results))
	for i, res := range results {
		jr := jsonResult{Statement: res.Statement.String(), Kind: res.Kind.String()}
		switch res.Kind {
		case runtime.ResultTable:
			jr.Header = res.Header
			jr.Rows = res.Rows
		case runtime.ResultRowsAffected, runtime.ResultCount:
			n := res.Count
			jr.Count = &n
		case runtime.ResultDatabase:
			db := res.Database
			jr.Database = &db
		case runtime.ResultError:
			jr.Error = res.Err.Error()
		}
		out[i] = jr
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
