package core

// input.go turns a user-selected file into a Table.
//
// Delimited text is read whole, then cleaned before parsing:
//
//   - a UTF-8 byte order mark (0xEF 0xBB 0xBF) written by Excel is dropped
//   - invalid UTF-8 sequences become U+FFFD so header matching still works
//
// .xlsx workbooks are read from their first sheet.

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadOptions controls LoadFile.
type LoadOptions struct {
	// MaxSize rejects larger files with ErrFileTooLarge. 0 means no limit.
	MaxSize int64

	// Separator for delimited text. ".tsv" files default to tab.
	Separator rune
}

// LoadFile reads and parses path according to its extension.
func LoadFile(path string, opts LoadOptions) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	if opts.MaxSize > 0 && info.Size() > opts.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, info.Size(), opts.MaxSize)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
	case ".tsv":
		if opts.Separator == 0 {
			opts.Separator = '\t'
		}
	case ".xlsx":
		return ReadWorkbook(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	text, err := ReadText(f, opts.MaxSize)
	if err != nil {
		return nil, err
	}
	return NewParser(opts.Separator).Parse(text)
}

// ReadText reads r fully, enforcing maxSize when positive, and returns the
// cleaned text.
func ReadText(r io.Reader, maxSize int64) (string, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxSize)
	}
	return CleanText(data), nil
}

// CleanText strips a leading BOM and replaces invalid UTF-8.
func CleanText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return string(bytes.ToValidUTF8(data, []byte(string(utf8.RuneError))))
}

// ReadWorkbook reads the first sheet of an .xlsx file. The first non-empty
// row is the header; Row.Line is the sheet row number.
func ReadWorkbook(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return tableFromGrid(rows)
}

// tableFromGrid builds a Table from spreadsheet rows, which omit trailing
// empty cells. Short rows are padded without counting as reconciled.
func tableFromGrid(grid [][]string) (*Table, error) {
	headerAt := -1
	for i, r := range grid {
		if !isEmptyRow(r) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil, ErrEmptyFile
	}

	headers := trimAll(grid[headerAt])
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	t := &Table{Headers: headers}
	width := len(headers)

	for i := headerAt + 1; i < len(grid); i++ {
		cells := trimAll(grid[i])
		if isEmptyRow(cells) {
			continue
		}
		if len(cells) > width {
			if !isEmptyRow(cells[width:]) {
				t.Reconciled++
			}
			cells = cells[:width]
		}
		t.Rows = append(t.Rows, Row{Line: i + 1, Cells: fitWidth(cells, width)})
	}
	return t, nil
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
