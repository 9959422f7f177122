package core

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("a,b"), "a,b"},
		{"bom stripped", append([]byte{0xEF, 0xBB, 0xBF}, "Name"...), "Name"},
		{"invalid utf8 replaced", []byte{'a', 0xff, 'b'}, "a�b"},
		{"multibyte kept", []byte("Zoë,Ørsted"), "Zoë,Ørsted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadText_SizeLimit(t *testing.T) {
	if _, err := ReadText(strings.NewReader("12345"), 5); err != nil {
		t.Errorf("at limit: unexpected error %v", err)
	}
	_, err := ReadText(strings.NewReader("123456"), 5)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("over limit: got %v, want ErrFileTooLarge", err)
	}
	if _, err := ReadText(strings.NewReader("123456"), 0); err != nil {
		t.Errorf("no limit: unexpected error %v", err)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("csv with bom", func(t *testing.T) {
		path := writeFile(t, "leads.csv", "\xEF\xBB\xBFName,Email\nAda,a@x\n")
		table, err := LoadFile(path, LoadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if table.Headers[0] != "Name" {
			t.Errorf("header = %q, want Name", table.Headers[0])
		}
	})

	t.Run("tsv defaults to tab", func(t *testing.T) {
		path := writeFile(t, "leads.tsv", "Name\tCompany\nAda\tAcme, Inc\n")
		table, err := LoadFile(path, LoadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"Ada", "Acme, Inc"}
		if !reflect.DeepEqual(table.Rows[0].Cells, want) {
			t.Errorf("cells = %q, want %q", table.Rows[0].Cells, want)
		}
	})

	t.Run("too large", func(t *testing.T) {
		path := writeFile(t, "big.csv", strings.Repeat("x", 100))
		_, err := LoadFile(path, LoadOptions{MaxSize: 10})
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("got %v, want ErrFileTooLarge", err)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		path := writeFile(t, "leads.pdf", "%PDF")
		_, err := LoadFile(path, LoadOptions{})
		if !errors.Is(err, ErrUnsupportedFile) {
			t.Errorf("got %v, want ErrUnsupportedFile", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want not-exist", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		path := writeFile(t, "empty.csv", "")
		_, err := LoadFile(path, LoadOptions{})
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("got %v, want ErrEmptyFile", err)
		}
	})
}

func TestReadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Name", "Email", "Deal Value"},
		{"Ada", "ada@x.io", 1200},
		{},
		{"Bob"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if len(r) == 0 {
			continue
		}
		r := r
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	table, err := LoadFile(path, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"Name", "Email", "Deal Value"}) {
		t.Errorf("headers = %q", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}
	if table.Rows[0].Line != 2 || table.Rows[1].Line != 4 {
		t.Errorf("lines = %d, %d; want 2, 4", table.Rows[0].Line, table.Rows[1].Line)
	}
	if !reflect.DeepEqual(table.Rows[1].Cells, []string{"Bob", "", ""}) {
		t.Errorf("short row = %q", table.Rows[1].Cells)
	}
	if table.Reconciled != 0 {
		t.Errorf("reconciled = %d, want 0", table.Reconciled)
	}
	if table.Rows[0].Cells[2] != "1200" {
		t.Errorf("numeric cell = %q, want 1200", table.Rows[0].Cells[2])
	}
}

func TestTableFromGrid_Empty(t *testing.T) {
	if _, err := tableFromGrid([][]string{{}, {"", " "}}); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("got %v, want ErrEmptyFile", err)
	}
}
