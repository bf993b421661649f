package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"

	"libconv/internal/services"
)

// ImportJSON converts a JSON array of objects (one per file, keyed by column
// name) into a ledger CSV at ledgerPath. Rows without an id are numbered
// sequentially from 1. Rows are validated before anything is written.
func ImportJSON(jsonPath, ledgerPath string) (int, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, services.Wrap(services.ErrIO, "ledger", "import", jsonPath, err)
	}

	var rows []map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&rows); err != nil {
		return 0, services.Wrap(services.ErrSchema, "ledger", "import", "decode "+jsonPath, err)
	}

	records := make([]FileRecord, 0, len(rows))
	for i, row := range rows {
		rec := FileRecord{}
		if _, ok := row[ColumnID]; !ok {
			row[ColumnID] = strconv.Itoa(i + 1)
		}
		for _, column := range RequiredColumns {
			if jsonCell(row[column]) == "" {
				return 0, services.Wrap(services.ErrSchema, "ledger", "import",
					fmt.Sprintf("row %d: missing required column %s", i+1, column), nil)
			}
		}
		keys := make([]string, 0, len(row))
		for key := range row {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if err := rec.set(key, jsonCell(row[key])); err != nil {
				return 0, services.Wrap(services.ErrSchema, "ledger", "import", fmt.Sprintf("row %d", i+1), err)
			}
		}
		records = append(records, rec)
	}

	seen := make(map[int64]bool, len(records))
	for _, rec := range records {
		if seen[rec.ID] {
			return 0, services.Wrap(services.ErrSchema, "ledger", "import", fmt.Sprintf("duplicate id %d", rec.ID), nil)
		}
		seen[rec.ID] = true
	}

	if err := WriteCSV(ledgerPath, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func jsonCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
