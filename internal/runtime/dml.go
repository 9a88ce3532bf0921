package runtime

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zakazai/jsonsql/internal/parser"
	"github.com/zakazai/jsonsql/internal/storage"
	"github.com/zakazai/jsonsql/internal/types"
)

// openTable resolves the active database and loads a copy of the table
func (r *Runtime) openTable(name string) (string, *storage.Table, error) {
	db, err := r.requireDatabase()
	if err != nil {
		return "", nil, err
	}
	t, err := r.store.GetTable(db, name)
	if err != nil {
		return "", nil, err
	}
	return db, t, nil
}

func (r *Runtime) execInsert(s *parser.InsertStatement) (Result, error) {
	db, t, err := r.openTable(s.Table)
	if err != nil {
		return Result{}, err
	}

	columns := s.Columns
	if len(columns) == 1 && columns[0] == "*" {
		columns = t.ColumnNames()
	}
	if len(columns) != len(s.Values) {
		return Result{}, fmt.Errorf("%w: %d columns, %d values", ErrColumnCount, len(columns), len(s.Values))
	}

	row := make(types.Row, len(columns))
	for i, name := range columns {
		col, ok := t.Column(name)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, s.Table, name)
		}
		if _, dup := row[name]; dup {
			return Result{}, fmt.Errorf("%w: column %s given twice", ErrConstraint, name)
		}
		v, err := coerce(col, s.Values[i])
		if err != nil {
			return Result{}, err
		}
		row[name] = v
	}
	for _, col := range t.Columns {
		if _, ok := row[col.Name]; !ok && col.Name != t.AutoIncrement {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, col.Name)
		}
	}

	if t.AutoIncrement != "" {
		if v, ok := row[t.AutoIncrement]; ok {
			n := v.(int64)
			for _, existing := range t.Rows {
				if existing[t.AutoIncrement] == n {
					return Result{}, fmt.Errorf("%w: %s = %d", ErrDuplicateKey, t.AutoIncrement, n)
				}
			}
			if n > t.AutoIncrementIndex {
				t.AutoIncrementIndex = n
			}
		} else {
			t.AutoIncrementIndex++
			row[t.AutoIncrement] = t.AutoIncrementIndex
		}
	}

	var key string
	if t.PrimaryKey != "" {
		key = keyString(row[t.PrimaryKey])
		if _, exists := t.Row(key); exists {
			return Result{}, fmt.Errorf("%w: %s = %s", ErrDuplicateKey, t.PrimaryKey, key)
		}
	} else {
		key = nextDenseKey(t)
	}
	t.Set(key, row)

	if err := r.store.PutTable(db, s.Table, t); err != nil {
		return Result{}, err
	}
	return affected(1), nil
}

func (r *Runtime) execSelect(s *parser.SelectStatement) (Result, error) {
	_, t, err := r.openTable(s.Table)
	if err != nil {
		return Result{}, err
	}

	header := s.Columns
	if len(header) == 1 && header[0] == "*" {
		header = t.ColumnNames()
	}
	for _, name := range header {
		if _, ok := t.Column(name); !ok {
			return Result{}, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, s.Table, name)
		}
	}

	keys := r.eval.Filter(s.Where, t.Keys, t.Rows)
	rows := make([][]interface{}, 0, len(keys))
	for _, key := range keys {
		row := t.Rows[key]
		projected := make([]interface{}, len(header))
		for i, name := range header {
			v, ok := row[name]
			if !ok || v == nil {
				v = types.NotAvailable
			}
			projected[i] = v
		}
		rows = append(rows, projected)
	}
	return tableResult(append([]string(nil), header...), rows), nil
}

func (r *Runtime) execUpdate(s *parser.UpdateStatement) (Result, error) {
	db, t, err := r.openTable(s.Table)
	if err != nil {
		return Result{}, err
	}

	values := make(map[string]interface{}, len(s.Set))
	for _, a := range s.Set {
		col, ok := t.Column(a.Column)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s.%s", ErrColumnNotFound, s.Table, a.Column)
		}
		if a.Column == t.AutoIncrement {
			return Result{}, fmt.Errorf("%w: %s is AUTO_INCREMENT", ErrReadOnlyColumn, a.Column)
		}
		v, err := coerce(col, a.Value)
		if err != nil {
			return Result{}, err
		}
		values[a.Column] = v
	}

	keys := r.eval.Filter(s.Where, t.Keys, t.Rows)
	if len(keys) == 0 {
		return affected(0), nil
	}

	newKey := ""
	if v, ok := values[t.PrimaryKey]; ok && t.PrimaryKey != "" {
		newKey = keyString(v)
		if len(keys) > 1 {
			return Result{}, fmt.Errorf("%w: %d rows would share %s = %s", ErrDuplicateKey, len(keys), t.PrimaryKey, newKey)
		}
		if _, exists := t.Row(newKey); exists && newKey != keys[0] {
			return Result{}, fmt.Errorf("%w: %s = %s", ErrDuplicateKey, t.PrimaryKey, newKey)
		}
	}

	for _, key := range keys {
		row := t.Rows[key]
		for col, v := range values {
			row[col] = v
		}
		if newKey != "" {
			t.Rename(key, newKey)
		}
	}

	if err := r.store.PutTable(db, s.Table, t); err != nil {
		return Result{}, err
	}
	return affected(len(keys)), nil
}

func (r *Runtime) execDelete(s *parser.DeleteStatement) (Result, error) {
	db, t, err := r.openTable(s.Table)
	if err != nil {
		return Result{}, err
	}

	keys := r.eval.Filter(s.Where, t.Keys, t.Rows)
	if len(keys) == 0 {
		return affected(0), nil
	}
	for _, key := range keys {
		t.Delete(key)
	}
	t.Reindex()

	if err := r.store.PutTable(db, s.Table, t); err != nil {
		return Result{}, err
	}
	return affected(len(keys)), nil
}

// execCount runs the nested statement text in structured mode and counts the
// rows of its first result.
func (r *Runtime) execCount(ctx context.Context, s *parser.CountStatement) (Result, error) {
	mode := r.session.Mode
	r.session.Mode = ModeStructured
	defer func() { r.session.Mode = mode }()

	results, err := r.Execute(ctx, s.Query)
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{}, fmt.Errorf("%w: empty query", ErrNotCountable)
	}
	first := results[0]
	switch first.Kind {
	case ResultError:
		return Result{}, first.Err
	case ResultTable:
		return Result{Kind: ResultCount, Count: len(first.Rows)}, nil
	}
	return Result{}, fmt.Errorf("%w: %s", ErrNotCountable, first.Statement)
}

// coerce converts a literal to the column's storage type. NUMBER columns
// only take numbers; STRING columns store anything as text.
func coerce(col types.Column, v parser.Value) (interface{}, error) {
	if col.Type == types.NumberType {
		if v.Type != parser.NumberValue {
			return nil, fmt.Errorf("%w: column %s is NUMBER, got %s", ErrTypeMismatch, col.Name, v)
		}
		return v.Number, nil
	}
	if v.Type == parser.NumberValue {
		return strconv.FormatInt(v.Number, 10), nil
	}
	return v.Text, nil
}

// nextDenseKey returns the first free sequential key from the row count on
func nextDenseKey(t *storage.Table) string {
	for n := t.Len(); ; n++ {
		key := strconv.Itoa(n)
		if _, exists := t.Row(key); !exists {
			return key
		}
	}
}

// keyString renders a primary key value as a row key
func keyString(v interface{}) string {
	switch k := v.(type) {
	case string:
		return k
	case int64:
		return strconv.FormatInt(k, 10)
	}
	return fmt.Sprint(v)
}
