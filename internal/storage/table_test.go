package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakazai/jsonsql/internal/storage"
	"github.com/zakazai/jsonsql/internal/types"
)

func usersTable(t *testing.T) *storage.Table {
	t.Helper()
	tbl, err := storage.NewTable([]types.Column{
		{Name: "id", Type: types.NumberType},
		{Name: "name", Type: types.StringType},
	}, "id", "id")
	require.NoError(t, err)
	return tbl
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name    string
		columns []types.Column
		pkey    string
		auto    string
	}{
		{"no_columns", nil, "", ""},
		{"duplicate_column", []types.Column{{Name: "a", Type: types.NumberType}, {Name: "a", Type: types.StringType}}, "", ""},
		{"reserved_name", []types.Column{{Name: "pkey", Type: types.NumberType}}, "", ""},
		{"unknown_primary_key", []types.Column{{Name: "a", Type: types.NumberType}}, "b", ""},
		{"unknown_auto_increment", []types.Column{{Name: "a", Type: types.NumberType}}, "", "b"},
		{"string_auto_increment", []types.Column{{Name: "a", Type: types.StringType}}, "", "a"},
		{"bad_type", []types.Column{{Name: "a", Type: "BLOB"}}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.NewTable(tt.columns, tt.pkey, tt.auto)
			assert.ErrorIs(t, err, storage.ErrInvalidSchema)
		})
	}
}

func TestTableMarshalFormat(t *testing.T) {
	tbl := usersTable(t)
	tbl.AutoIncrementIndex = 2
	tbl.Set("1", types.Row{"name": "Ann", "id": int64(1)})

	data, err := tbl.MarshalJSON()
	require.NoError(t, err)

	expected := `{
    "columns": {
        "id": "NUMBER",
        "name": "STRING",
        "pkey": "id",
        "auto_increment": "id",
        "auto_increment_index": 2
    },
    "data": {
        "1": {
            "id": 1,
            "name": "Ann"
        }
    }
}`
	assert.Equal(t, expected, string(data))
}

func TestTableEmptyData(t *testing.T) {
	tbl, err := storage.NewTable([]types.Column{{Name: "a", Type: types.StringType}}, "", "")
	require.NoError(t, err)

	data, err := tbl.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"columns\": {\n        \"a\": \"STRING\"\n    },\n    \"data\": {}\n}", string(data))

	var decoded storage.Table
	require.NoError(t, decoded.UnmarshalJSON([]byte(`{"columns": {"a": "STRING"}, "data": []}`)))
	assert.Equal(t, 0, decoded.Len())
	assert.Equal(t, []string{"a"}, decoded.ColumnNames())
}

func TestTableRoundTripKeepsOrder(t *testing.T) {
	tbl := usersTable(t)
	tbl.AutoIncrementIndex = 12
	for _, key := range []string{"10", "2", "7"} {
		tbl.Set(key, types.Row{"id": int64(len(key)), "name": "n" + key})
	}
	tbl.Set("2", types.Row{"id": int64(2), "name": "two", "score": 1.5, "note": nil})

	data, err := tbl.MarshalJSON()
	require.NoError(t, err)

	var decoded storage.Table
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, []string{"10", "2", "7"}, decoded.Keys)
	assert.Equal(t, tbl.Columns, decoded.Columns)
	assert.Equal(t, "id", decoded.PrimaryKey)
	assert.Equal(t, "id", decoded.AutoIncrement)
	assert.Equal(t, int64(12), decoded.AutoIncrementIndex)
	assert.Equal(t, types.Row{"id": int64(2), "name": "two", "score": 1.5, "note": nil}, decoded.Rows["2"])
}

func TestTableUnmarshalRejectsGarbage(t *testing.T) {
	var decoded storage.Table
	assert.ErrorIs(t, decoded.UnmarshalJSON([]byte(`{"columns": {"a": "BLOB"}}`)), storage.ErrCorruptTable)
	assert.ErrorIs(t, decoded.UnmarshalJSON([]byte(`{"data": 5}`)), storage.ErrCorruptTable)
	assert.Error(t, decoded.UnmarshalJSON([]byte(`{"columns": `)))
}

func TestTableRowOperations(t *testing.T) {
	tbl, err := storage.NewTable([]types.Column{{Name: "a", Type: types.NumberType}}, "", "")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		tbl.Set(string(rune('0'+i)), types.Row{"a": int64(i)})
	}

	tbl.Delete("1")
	tbl.Delete("missing")
	assert.Equal(t, []string{"0", "2", "3"}, tbl.Keys)

	tbl.Reindex()
	assert.Equal(t, []string{"0", "1", "2"}, tbl.Keys)
	assert.Equal(t, int64(2), tbl.Rows["1"]["a"])
	assert.Equal(t, int64(3), tbl.Rows["2"]["a"])

	tbl.Rename("0", "x")
	assert.Equal(t, []string{"x", "1", "2"}, tbl.Keys)
	_, ok := tbl.Row("0")
	assert.False(t, ok)

	clone := tbl.Clone()
	clone.Rows["x"]["a"] = int64(99)
	clone.Set("new", types.Row{})
	assert.Equal(t, int64(0), tbl.Rows["x"]["a"])
	assert.Equal(t, 3, tbl.Len())
}

func TestReindexLeavesPrimaryKeyTables(t *testing.T) {
	tbl := usersTable(t)
	tbl.Set("5", types.Row{"id": int64(5)})
	tbl.Reindex()
	assert.Equal(t, []string{"5"}, tbl.Keys)
}
