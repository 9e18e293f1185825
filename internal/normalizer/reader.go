package normalizer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"blsdata/internal/models"
	"blsdata/pkg/utils"
)

// Reader errors.
var (
	ErrEmptyTable   = errors.New("dataset has no header row")
	ErrMissingField = errors.New("dataset is missing its records field")
	ErrNotAnObject  = errors.New("record is not a JSON object")
)

var fields = utils.NewStringHelper()

// ReadTSV parses tab-separated data. Column names are normalized and cells
// trimmed; short rows are padded with empty cells.
func ReadTSV(data []byte) (*models.Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	table := &models.Table{Columns: normalizeColumns(header)}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		row := make([]string, len(table.Columns))
		for i := range row {
			if i < len(record) {
				row[i] = fields.TrimWhitespace(record[i])
			}
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// ReadRecords parses a JSON object whose field holds an array of flat
// objects. Columns appear in first-seen key order.
func ReadRecords(data []byte, field string) (*models.Table, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	raw, ok := doc[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingField, field)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("field %q is not an array: %w", field, err)
	}

	var (
		columns []string
		records []map[string]string
	)

	index := make(map[string]int)

	for i, item := range items {
		keys, values, err := decodeObject(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		record := make(map[string]string, len(keys))

		for j, key := range keys {
			name := fields.NormalizeFieldName(key)
			if _, seen := index[name]; !seen {
				index[name] = len(columns)
				columns = append(columns, name)
			}

			record[name] = values[j]
		}

		records = append(records, record)
	}

	table := &models.Table{Columns: columns}

	for _, record := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = record[col]
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func normalizeColumns(header []string) []string {
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = fields.NormalizeFieldName(strings.TrimPrefix(name, "\ufeff"))
	}

	return columns
}

// decodeObject returns the keys of a JSON object in document order with
// their values rendered as trimmed strings.
func decodeObject(raw json.RawMessage) ([]string, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, ErrNotAnObject
	}

	var keys, values []string

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}

		key, _ := tok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}

		keys = append(keys, key)
		values = append(values, cellString(value))
	}

	return keys, values, nil
}

func cellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return fields.TrimWhitespace(v)
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}

		return "false"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
}
