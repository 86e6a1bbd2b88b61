package core

// loader.go turns raw spreadsheet bytes into a Table.
//
// Two formats are understood:
//   - xlsx: the workbook is opened from memory with excelize; the first sheet
//     (or the requested one) is read with raw cell values so that number
//     formats do not change what counts as a duplicate.
//   - csv: a leading UTF-8 BOM is dropped and invalid UTF-8 is replaced with
//     '?' before parsing, since Excel on Windows exports CSV with a BOM.
//
// Fully blank rows are dropped wherever they appear, and the first remaining
// row is the header. A row holding only whitespace is not blank.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format identifies the encoding of the spreadsheet bytes.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	// ErrEmptyFile is returned when the payload has no bytes.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when the payload exceeds LoadOptions.MaxBytes.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoHeader is returned when the sheet has no header row.
	ErrNoHeader = errors.New("no header row")

	// ErrSheetNotFound is returned when the requested sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrUnsupportedFormat is returned by ParseFormat for unknown names.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// ParseFormat maps a request value to a Format. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "xlsm", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ParseError reports bytes that could not be read as a spreadsheet.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// LoadOptions controls LoadTable.
type LoadOptions struct {
	Format   Format // defaults to FormatXLSX
	Sheet    string // xlsx only; empty selects the first sheet
	MaxBytes int64  // zero disables the size check
}

// LoadTable parses data into a Table. Every failure is a *ParseError.
func LoadTable(data []byte, opts LoadOptions) (*Table, error) {
	format := opts.Format
	if format == "" {
		format = FormatXLSX
	}

	if len(data) == 0 {
		return nil, &ParseError{Format: format, Err: ErrEmptyFile}
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, &ParseError{
			Format: format,
			Err:    fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(data), opts.MaxBytes),
		}
	}

	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = readWorkbook(data, opts.Sheet)
	case FormatCSV:
		records, err = readCSV(data)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, &ParseError{Format: format, Err: err}
	}

	records = dropBlankRows(records)
	if len(records) == 0 {
		return nil, &ParseError{Format: format, Err: ErrNoHeader}
	}

	return NewTable(records[0], records[1:]), nil
}

// readWorkbook returns the raw rows of one sheet.
func readWorkbook(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrSheetNotFound
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// readCSV parses comma-separated text, tolerating ragged rows.
func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(cleanText(data)))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// cleanText drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) and replaces each
// invalid UTF-8 byte with '?'.
func cleanText(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data
	}

	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
		} else {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	return out
}

func dropBlankRows(rows [][]string) [][]string {
	kept := rows[:0:0]
	for _, row := range rows {
		if !isBlankRow(row) {
			kept = append(kept, row)
		}
	}
	return kept
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
