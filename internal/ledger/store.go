package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"libconv/internal/fileutil"
	"libconv/internal/filter"
	"libconv/internal/services"
)

// Store owns the in-memory ledger and its selection snapshot.
// It is not safe for concurrent use; the CLI serializes runs with the run lock.
type Store struct {
	ledgerPath    string
	selectionPath string

	header    []string
	records   []*FileRecord
	byID      map[int64]*FileRecord
	selection *Selection
}

// Selection is the ordered set of record ids chosen for a run.
type Selection struct {
	Query string
	IDs   []int64
}

// Len returns the number of selected records.
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.IDs)
}

// SelectOptions tunes Select.
type SelectOptions struct {
	// MinFileSize is ANDed in as fileSize > MinFileSize when the expression
	// does not reference fileSize. Zero disables the default.
	MinFileSize int64
}

// Change assigns one column of a record.
type Change struct {
	Column string
	Value  any
}

// Update is an ordered set of column assignments.
type Update []Change

// Fields returns the column names in order.
func (u Update) Fields() []string {
	fields := make([]string, len(u))
	for i, c := range u {
		fields[i] = c.Column
	}
	return fields
}

// Values returns the assigned values in order.
func (u Update) Values() []any {
	values := make([]any, len(u))
	for i, c := range u {
		values[i] = c.Value
	}
	return values
}

// Open prepares a store for the given ledger and selection files. Nothing is
// read until Load.
func Open(ledgerPath, selectionPath string) *Store {
	return &Store{ledgerPath: ledgerPath, selectionPath: selectionPath}
}

// LedgerPath returns the ledger file location.
func (s *Store) LedgerPath() string { return s.ledgerPath }

// SelectionPath returns the selection snapshot location.
func (s *Store) SelectionPath() string { return s.selectionPath }

// Load reads the ledger file, replacing any in-memory state.
func (s *Store) Load() ([]FileRecord, error) {
	file, err := os.Open(s.ledgerPath)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "ledger", "open", s.ledgerPath, err)
	}
	defer file.Close()

	header, records, err := decode(file)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*FileRecord, len(records))
	for _, rec := range records {
		if _, dup := byID[rec.ID]; dup {
			return nil, services.Wrap(services.ErrSchema, "ledger", "load", fmt.Sprintf("duplicate id %d", rec.ID), nil)
		}
		byID[rec.ID] = rec
	}

	s.header = header
	s.records = records
	s.byID = byID
	s.selection = nil
	return s.Records(), nil
}

// Records returns copies of every record in ledger order.
func (s *Store) Records() []FileRecord {
	out := make([]FileRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = *rec.Clone()
	}
	return out
}

// Record returns a copy of the record with id.
func (s *Store) Record(id int64) (FileRecord, bool) {
	rec, ok := s.byID[id]
	if !ok {
		return FileRecord{}, false
	}
	return *rec.Clone(), true
}

// Selection returns the current selection, or nil before Select.
func (s *Store) Selection() *Selection {
	return s.selection
}

// Predicate combines expr with the default size floor from opts.
func Predicate(expr filter.Expr, opts SelectOptions) filter.Expr {
	if expr == nil {
		expr = filter.True{}
	}
	if opts.MinFileSize > 0 && !filter.Mentions(expr, ColumnSize) {
		expr = filter.AndAll(expr, filter.Compare{
			Field: ColumnSize,
			Kind:  filter.KindNumber,
			Op:    filter.OpGt,
			Num:   float64(opts.MinFileSize),
		})
	}
	return expr
}

// Filter returns copies of the records matching expr in ledger order without
// touching the selection.
func (s *Store) Filter(expr filter.Expr, opts SelectOptions) []FileRecord {
	pred := Predicate(expr, opts)
	var out []FileRecord
	for _, rec := range s.records {
		if pred.Eval(rec) {
			out = append(out, *rec.Clone())
		}
	}
	return out
}

// Select computes the run selection and persists it to the selection file.
func (s *Store) Select(expr filter.Expr, opts SelectOptions) (*Selection, error) {
	pred := Predicate(expr, opts)
	sel := &Selection{Query: pred.String()}
	for _, rec := range s.records {
		if pred.Eval(rec) {
			sel.IDs = append(sel.IDs, rec.ID)
		}
	}
	s.selection = sel
	if err := s.saveSelection(); err != nil {
		return nil, err
	}
	return sel, nil
}

// ApplyUpdate assigns the changes to record id, then rewrites the ledger file
// and the selection file in that order. Applying the same update twice leaves
// the files unchanged.
func (s *Store) ApplyUpdate(id int64, update Update) error {
	rec, ok := s.byID[id]
	if !ok {
		return services.Wrap(services.ErrValidation, "ledger", "apply update", fmt.Sprintf("unknown id %d", id), nil)
	}
	next := rec.Clone()
	for _, change := range update {
		if !slices.Contains(Columns, change.Column) || change.Column == ColumnID {
			return services.Wrap(services.ErrValidation, "ledger", "apply update", "column "+change.Column+" cannot be updated", nil)
		}
		if err := next.set(change.Column, formatCell(change.Value)); err != nil {
			return services.Wrap(services.ErrValidation, "ledger", "apply update", fmt.Sprintf("id %d", id), err)
		}
	}
	prev := *rec
	*rec = *next
	if err := s.saveLedger(); err != nil {
		*rec = prev
		return err
	}
	return s.saveSelection()
}

func (s *Store) saveLedger() error {
	data, err := encode(s.writeHeader(), s.records)
	if err != nil {
		return services.Wrap(services.ErrIO, "ledger", "encode", s.ledgerPath, err)
	}
	if err := fileutil.WriteFileAtomic(s.ledgerPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "ledger", "write", s.ledgerPath, err)
	}
	return nil
}

func (s *Store) saveSelection() error {
	if s.selection == nil || s.selectionPath == "" {
		return nil
	}
	rows := make([]*FileRecord, 0, len(s.selection.IDs))
	for _, id := range s.selection.IDs {
		rows = append(rows, s.byID[id])
	}
	data, err := encode(s.writeHeader(), rows)
	if err != nil {
		return services.Wrap(services.ErrIO, "ledger", "encode", s.selectionPath, err)
	}
	if err := fileutil.WriteFileAtomic(s.selectionPath, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "ledger", "write", s.selectionPath, err)
	}
	return nil
}

// writeHeader is the loaded header plus any known columns it lacked.
func (s *Store) writeHeader() []string {
	header := slices.Clone(s.header)
	for _, column := range Columns {
		if !slices.Contains(header, column) {
			header = append(header, column)
		}
	}
	return header
}

// WriteCSV writes records to path with the canonical header followed by the
// union of their extra columns.
func WriteCSV(path string, records []FileRecord) error {
	header := slices.Clone(Columns)
	rows := make([]*FileRecord, len(records))
	for i := range records {
		rows[i] = &records[i]
		for column := range records[i].Extra {
			if !slices.Contains(header, column) {
				header = append(header, column)
			}
		}
	}
	data, err := encode(header, rows)
	if err != nil {
		return services.Wrap(services.ErrIO, "ledger", "encode", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "ledger", "write", path, err)
	}
	return nil
}

func decode(r io.Reader) ([]string, []*FileRecord, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, services.Wrap(services.ErrSchema, "ledger", "load", "empty ledger file", nil)
		}
		return nil, nil, services.Wrap(services.ErrIO, "ledger", "read header", "", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	seen := make(map[string]bool, len(header))
	for _, column := range header {
		if seen[column] {
			return nil, nil, services.Wrap(services.ErrSchema, "ledger", "load", "duplicate column "+column, nil)
		}
		seen[column] = true
	}
	for _, column := range RequiredColumns {
		if !seen[column] {
			return nil, nil, services.Wrap(services.ErrSchema, "ledger", "load", "missing required column "+column, nil)
		}
	}

	var records []*FileRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, services.Wrap(services.ErrIO, "ledger", "read row", "line "+strconv.Itoa(line), err)
		}
		rec := &FileRecord{}
		for i, column := range header {
			raw := row[i]
			if slices.Contains(RequiredColumns, column) && strings.TrimSpace(raw) == "" {
				return nil, nil, services.Wrap(services.ErrSchema, "ledger", "load",
					fmt.Sprintf("line %d: empty required column %s", line, column), nil)
			}
			if err := rec.set(column, raw); err != nil {
				return nil, nil, services.Wrap(services.ErrSchema, "ledger", "load", "line "+strconv.Itoa(line), err)
			}
		}
		records = append(records, rec)
	}
	return header, records, nil
}

func encode(header []string, records []*FileRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	row := make([]string, len(header))
	for _, rec := range records {
		for i, column := range header {
			row[i] = rec.cell(column)
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
