package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"github.com/zakazai/jsonsql/internal/types"
)

// ParquetRow is one table row in a Parquet snapshot
type ParquetRow struct {
	TableName string `parquet:"name=table_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	RowKey    string `parquet:"name=row_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	DataJSON  string `parquet:"name=data_json, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes a snapshot of db.table to path and returns the number
// of rows written. Rows keep their file order.
func (s *Storage) ExportParquet(db, table, path string) (int, error) {
	t, err := s.GetTable(db, table)
	if err != nil {
		return 0, err
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create Parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(ParquetRow), 4)
	if err != nil {
		return 0, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, key := range t.Keys {
		data, err := json.Marshal(t.Rows[key])
		if err != nil {
			return 0, err
		}
		row := &ParquetRow{TableName: table, RowKey: key, DataJSON: string(data)}
		if err := pw.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write Parquet row %s: %w", key, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("failed to finish Parquet file: %w", err)
	}
	return len(t.Keys), nil
}

// ReadParquet reads a snapshot written by ExportParquet in file order
func ReadParquet(path string) ([]ParquetRow, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	if numRows == 0 {
		return []ParquetRow{}, nil
	}
	records := make([]ParquetRow, numRows)
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("failed to read Parquet rows: %w", err)
	}
	return records, nil
}

// Row decodes the row data, integral numbers as int64
func (r ParquetRow) Row() (types.Row, error) {
	dec := json.NewDecoder(strings.NewReader(r.DataJSON))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row %s: %w", r.RowKey, err)
	}
	row := make(types.Row, len(raw))
	for k, v := range raw {
		row[k] = normalize(v)
	}
	return row, nil
}
