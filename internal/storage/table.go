package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/zakazai/jsonsql/internal/types"
)

// Table is the decoded content of one table file. Keys holds the row keys in
// file order; Rows is indexed by them.
type Table struct {
	Columns            []types.Column
	PrimaryKey         string
	AutoIncrement      string
	AutoIncrementIndex int64
	Keys               []string
	Rows               map[string]types.Row
}

// NewTable validates a schema and returns an empty table for it
func NewTable(columns []types.Column, primaryKey, autoIncrement string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table needs at least one column", ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if types.IsSystemColumn(col.Name) {
			return nil, fmt.Errorf("%w: column name %q is reserved", ErrInvalidSchema, col.Name)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, col.Name)
		}
		if col.Type != types.NumberType && col.Type != types.StringType {
			return nil, fmt.Errorf("%w: column %q has unknown type %q", ErrInvalidSchema, col.Name, col.Type)
		}
		seen[col.Name] = true
	}

	t := &Table{Columns: columns, PrimaryKey: primaryKey, AutoIncrement: autoIncrement, Rows: make(map[string]types.Row)}
	if primaryKey != "" && !seen[primaryKey] {
		return nil, fmt.Errorf("%w: primary key %q is not a column", ErrInvalidSchema, primaryKey)
	}
	if autoIncrement != "" {
		col, ok := t.Column(autoIncrement)
		if !ok {
			return nil, fmt.Errorf("%w: auto-increment column %q is not a column", ErrInvalidSchema, autoIncrement)
		}
		if col.Type != types.NumberType {
			return nil, fmt.Errorf("%w: auto-increment column %q must be NUMBER", ErrInvalidSchema, autoIncrement)
		}
	}
	return t, nil
}

// Column looks up a declared column by name
func (t *Table) Column(name string) (types.Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return types.Column{}, false
}

// ColumnNames returns the declared columns in schema order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Keys)
}

// Row returns the row stored under key
func (t *Table) Row(key string) (types.Row, bool) {
	row, ok := t.Rows[key]
	return row, ok
}

// Set stores row under key, appending the key when it is new
func (t *Table) Set(key string, row types.Row) {
	if _, ok := t.Rows[key]; !ok {
		t.Keys = append(t.Keys, key)
	}
	t.Rows[key] = row
}

// Delete removes the row stored under key
func (t *Table) Delete(key string) {
	if _, ok := t.Rows[key]; !ok {
		return
	}
	delete(t.Rows, key)
	for i, k := range t.Keys {
		if k == key {
			t.Keys = append(t.Keys[:i], t.Keys[i+1:]...)
			break
		}
	}
}

// Rename moves a row to a new key, keeping its position
func (t *Table) Rename(oldKey, newKey string) {
	row, ok := t.Rows[oldKey]
	if !ok || oldKey == newKey {
		return
	}
	delete(t.Rows, oldKey)
	t.Rows[newKey] = row
	for i, k := range t.Keys {
		if k == oldKey {
			t.Keys[i] = newKey
			break
		}
	}
}

// Reindex rewrites the keys of a table without a primary key as 0..n-1 in
// file order. Tables with a primary key are left alone.
func (t *Table) Reindex() {
	if t.PrimaryKey != "" {
		return
	}
	rows := make(map[string]types.Row, len(t.Rows))
	for i, key := range t.Keys {
		newKey := strconv.Itoa(i)
		rows[newKey] = t.Rows[key]
		t.Keys[i] = newKey
	}
	t.Rows = rows
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	c := &Table{
		Columns:            append([]types.Column(nil), t.Columns...),
		PrimaryKey:         t.PrimaryKey,
		AutoIncrement:      t.AutoIncrement,
		AutoIncrementIndex: t.AutoIncrementIndex,
		Keys:               append([]string(nil), t.Keys...),
		Rows:               make(map[string]types.Row, len(t.Rows)),
	}
	for key, row := range t.Rows {
		r := make(types.Row, len(row))
		for k, v := range row {
			r[k] = v
		}
		c.Rows[key] = r
	}
	return c
}

// MarshalJSON writes the table file format: "columns" holds the schema in
// declaration order followed by the bookkeeping keys, "data" holds the rows in
// file order. The output is indented with four spaces.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"columns":{`)
	for i, col := range t.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writePair(&buf, col.Name, string(col.Type)); err != nil {
			return nil, err
		}
	}
	if t.PrimaryKey != "" {
		buf.WriteByte(',')
		if err := writePair(&buf, types.KeyPrimary, t.PrimaryKey); err != nil {
			return nil, err
		}
	}
	if t.AutoIncrement != "" {
		buf.WriteByte(',')
		if err := writePair(&buf, types.KeyAutoIncrement, t.AutoIncrement); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		if err := writePair(&buf, types.KeyAutoIncrementIndex, t.AutoIncrementIndex); err != nil {
			return nil, err
		}
	}

	buf.WriteString(`},"data":{`)
	for i, key := range t.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, key); err != nil {
			return nil, err
		}
		if err := t.writeRow(&buf, t.Rows[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`}}`)

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "    "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// writeRow encodes declared columns first, then any other keys sorted
func (t *Table) writeRow(buf *bytes.Buffer, row types.Row) error {
	buf.WriteByte('{')
	n := 0
	write := func(k string, v interface{}) error {
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		return writePair(buf, k, v)
	}
	for _, col := range t.Columns {
		if v, ok := row[col.Name]; ok {
			if err := write(col.Name, v); err != nil {
				return err
			}
		}
	}
	var extra []string
	for k := range row {
		if _, ok := t.Column(k); !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if err := write(k, row[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

func writePair(buf *bytes.Buffer, key string, value interface{}) error {
	if err := writeKey(buf, key); err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(v)
	return nil
}

// UnmarshalJSON reads the table file format, keeping column and row order.
// Integral numbers decode as int64, other numbers as float64.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	*t = Table{Rows: make(map[string]types.Row)}
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		switch key {
		case "columns":
			err = t.decodeColumns(dec)
		case "data":
			err = t.decodeData(dec)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func (t *Table) decodeColumns(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return err
		}
		switch name {
		case types.KeyPrimary:
			err = dec.Decode(&t.PrimaryKey)
		case types.KeyAutoIncrement:
			err = dec.Decode(&t.AutoIncrement)
		case types.KeyAutoIncrementIndex:
			var n json.Number
			if err = dec.Decode(&n); err == nil {
				t.AutoIncrementIndex, err = n.Int64()
			}
		default:
			var typ string
			if err = dec.Decode(&typ); err != nil {
				break
			}
			var colType types.ColumnType
			if colType, err = types.ParseColumnType(typ); err == nil {
				t.Columns = append(t.Columns, types.Column{Name: name, Type: colType})
			}
		}
		if err != nil {
			return fmt.Errorf("%w: columns.%s: %v", ErrCorruptTable, name, err)
		}
	}
	return expectDelim(dec, '}')
}

func (t *Table) decodeData(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	// An empty data set may have been written as a list.
	if tok == json.Delim('[') {
		return expectDelim(dec, ']')
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("%w: data must be an object", ErrCorruptTable)
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		var raw map[string]interface{}
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: row %s: %v", ErrCorruptTable, key, err)
		}
		row := make(types.Row, len(raw))
		for k, v := range raw {
			row[k] = normalize(v)
		}
		t.Set(key, row)
	}
	return expectDelim(dec, '}')
}

func normalize(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrCorruptTable, tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != want {
		return fmt.Errorf("%w: expected %v, got %v", ErrCorruptTable, want, tok)
	}
	return nil
}
