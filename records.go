// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package leadsnake

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// Input column names honored in the record table.
const (
	ColFirstName = "First Name"
	ColLastName  = "Last Name"
	ColZIP       = "ZIP"
)

// EnrichmentColumns are the output columns the enricher owns, in their
// canonical order.
var EnrichmentColumns = []string{
	"Full Address",
	"Phone1", "Phone2", "Phone3", "Phone4", "Phone5",
	"Age", "Relatives", "Emails", "Marital Status", "Associates",
	"Previous Addresses", "Current Address Details",
	"Background Report Summary", "FAQs", "Page URL",
}

// addressColumnCandidates are the column names checked, in order, when a
// record needs a mailing address for the location slug.
var addressColumnCandidates = []string{
	"address", "Address", "Home Address", "Mailing Address",
	"Property Address", "Full Address",
}

// InputRecord is the minimal identity of one row: names and location. The
// row index is the record's identity across the whole run.
type InputRecord struct {
	Index     int
	FirstName string
	LastName  string
	Address   string
	ZIP       string
}

// EnrichedFields holds everything a detail page can contribute to a record.
type EnrichedFields struct {
	HomeAddress           string
	Phones                []string
	Age                   string
	Relatives             []string
	Emails                []string
	MaritalStatus         string
	Associates            []string
	PreviousAddresses     []string
	CurrentAddressDetails string
	BackgroundReport      string
	FAQs                  string
	PageURL               string
}

// Address returns the best available current address.
func (f *EnrichedFields) Address() string {
	if f.HomeAddress != "" {
		return f.HomeAddress
	}
	return f.CurrentAddressDetails
}

// RecordTable is the in-memory record set: an ordered header plus rows.
// Row order and passthrough columns are preserved end to end.
type RecordTable struct {
	Header []string
	Rows   [][]string

	colIndex map[string]int
}

// LoadRecordTable reads a CSV or XLSX file into a table, padding ragged
// rows to the header width and making sure the enrichment columns exist.
func LoadRecordTable(path string) (*RecordTable, error) {
	var (
		t   *RecordTable
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err = loadCSV(path)
	case ".xlsx":
		t, err = loadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported input format: %s (expected .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	t.EnsureEnrichmentColumns()
	return t, nil
}

func loadCSV(path string) (*RecordTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data, err = decodeToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return newRecordTable(rows[0], rows[1:]), nil
}

func loadXLSX(path string) (*RecordTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return newRecordTable(rows[0], rows[1:]), nil
}

// decodeToUTF8 converts input bytes to UTF-8, detecting the source charset
// when the bytes are not already valid UTF-8.
func decodeToUTF8(data []byte) ([]byte, error) {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data, nil
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return nil, fmt.Errorf("charset detection: %w", err)
	}
	enc, err := htmlindex.Get(strings.ToLower(result.Charset))
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", result.Charset, err)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode from %s: %w", result.Charset, err)
	}
	return decoded, nil
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func newRecordTable(header []string, rows [][]string) *RecordTable {
	t := &RecordTable{Header: append([]string(nil), header...)}
	for _, row := range rows {
		padded := make([]string, len(t.Header))
		copy(padded, row)
		t.Rows = append(t.Rows, padded)
	}
	t.rebuildIndex()
	return t
}

func (t *RecordTable) rebuildIndex() {
	t.colIndex = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		t.colIndex[strings.TrimSpace(name)] = i
	}
}

// NumRows returns the number of data rows.
func (t *RecordTable) NumRows() int { return len(t.Rows) }

// HasColumn reports whether the table carries the named column.
func (t *RecordTable) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// Get returns a cell by row index and column name, "" when the column does
// not exist.
func (t *RecordTable) Get(row int, col string) string {
	idx, ok := t.colIndex[col]
	if !ok || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][idx]
}

// Set writes a cell by row index and column name. Unknown columns are
// ignored; non-empty results never silently grow the schema mid-run.
func (t *RecordTable) Set(row int, col, value string) {
	idx, ok := t.colIndex[col]
	if !ok || row < 0 || row >= len(t.Rows) {
		return
	}
	t.Rows[row][idx] = value
}

// EnsureEnrichmentColumns appends any missing output columns and widens
// existing rows to match.
func (t *RecordTable) EnsureEnrichmentColumns() {
	for _, col := range EnrichmentColumns {
		if _, ok := t.colIndex[col]; ok {
			continue
		}
		t.Header = append(t.Header, col)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], "")
		}
		t.colIndex[col] = len(t.Header) - 1
	}
}

// InputRecordAt assembles the search identity for a row, normalizing the
// ZIP (spreadsheet float artifacts like "33101.0" become "33101") and
// checking the address column variants in order.
func (t *RecordTable) InputRecordAt(row int) InputRecord {
	rec := InputRecord{
		Index:     row,
		FirstName: strings.TrimSpace(t.Get(row, ColFirstName)),
		LastName:  strings.TrimSpace(t.Get(row, ColLastName)),
		ZIP:       normalizeZIP(t.Get(row, ColZIP)),
	}
	for _, col := range addressColumnCandidates {
		if v := strings.TrimSpace(t.Get(row, col)); v != "" {
			rec.Address = v
			break
		}
	}
	return rec
}

// normalizeZIP undoes the ".0" suffix spreadsheets attach to numeric ZIP
// columns. Values without a decimal point pass through untouched so that
// leading zeros survive.
func normalizeZIP(z string) string {
	z = strings.TrimSpace(z)
	if !strings.Contains(z, ".") {
		return z
	}
	f, err := strconv.ParseFloat(z, 64)
	if err != nil || f != math.Trunc(f) || f < 0 {
		return z
	}
	return strconv.FormatInt(int64(f), 10)
}

// ApplyFields merges extracted fields into the row in place. Empty fields
// leave the existing cell alone.
func (t *RecordTable) ApplyFields(row int, f *EnrichedFields) {
	for i, phone := range f.Phones {
		if i >= MaxPhones {
			break
		}
		t.Set(row, fmt.Sprintf("Phone%d", i+1), phone)
	}
	setIfNotEmpty := func(col, val string) {
		if val != "" {
			t.Set(row, col, val)
		}
	}
	setIfNotEmpty("Age", f.Age)
	setIfNotEmpty("Relatives", strings.Join(f.Relatives, ", "))
	setIfNotEmpty("Emails", strings.Join(f.Emails, ", "))
	setIfNotEmpty("Marital Status", f.MaritalStatus)
	setIfNotEmpty("Associates", strings.Join(f.Associates, ", "))
	setIfNotEmpty("Previous Addresses", strings.Join(f.PreviousAddresses, ", "))
	setIfNotEmpty("Full Address", f.Address())
	setIfNotEmpty("Current Address Details", f.Address())
	setIfNotEmpty("Background Report Summary", f.BackgroundReport)
	setIfNotEmpty("FAQs", f.FAQs)
	setIfNotEmpty("Page URL", f.PageURL)
}

// SaveAtomic writes the table to path through a temp file and rename, so a
// crash mid-write never corrupts the checkpoint. The format follows the
// path's extension. The temp file keeps the target's extension: excelize
// refuses to write a workbook under any other suffix.
func (t *RecordTable) SaveAtomic(path string) error {
	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + ".tmp" + ext
	var err error
	switch strings.ToLower(ext) {
	case ".xlsx":
		err = t.SaveXLSX(tmp)
	default:
		err = t.SaveCSV(tmp)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// SaveCSV writes the table as CSV, fsynced before close.
func (t *RecordTable) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

// SaveXLSX writes the table as a single-sheet workbook.
func (t *RecordTable) SaveXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	writeRow := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		return f.SetSheetRow(sheet, cell, &cells)
	}

	if err := writeRow(1, t.Header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for i, row := range t.Rows {
		if err := writeRow(i+2, row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// SaveBackups writes timestamped CSV and XLSX copies of the table into dir,
// returning the two paths.
func (t *RecordTable) SaveBackups(dir string, now time.Time) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("create backup dir: %w", err)
	}
	ts := now.Format("20060102_150405")
	csvPath := filepath.Join(dir, fmt.Sprintf("scraped_results_%s.csv", ts))
	xlsxPath := filepath.Join(dir, fmt.Sprintf("scraped_results_%s.xlsx", ts))
	if err := t.SaveCSV(csvPath); err != nil {
		return "", "", err
	}
	if err := t.SaveXLSX(xlsxPath); err != nil {
		return csvPath, "", err
	}
	return csvPath, xlsxPath, nil
}

// SaveErrorSnapshot writes an emergency CSV copy into dir, named by unix
// time so repeated failures never overwrite each other.
func (t *RecordTable) SaveErrorSnapshot(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("error_backup_%d.csv", now.Unix()))
	if err := t.SaveCSV(path); err != nil {
		return "", err
	}
	return path, nil
}
