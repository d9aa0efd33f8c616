package fileparse

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	t.Run("headers and rows", func(t *testing.T) {
		data := []byte("Fecha,Marca,Patente\n15/03/2024,Toyota,AB-CD12\n16/03/2024,Nissan,EF-GH34\n")
		headers, rows, err := Parse("marzo.csv", data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(headers) != 3 || headers[0] != "Fecha" {
			t.Errorf("headers = %v", headers)
		}
		if len(rows) != 2 {
			t.Fatalf("rows = %d, want 2", len(rows))
		}
		if rows[0]["Marca"] != "Toyota" || rows[1]["Patente"] != "EF-GH34" {
			t.Errorf("rows = %+v", rows)
		}
	})

	t.Run("bom stripped from first header", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Fecha,Marca\n1,2\n")...)
		headers, _, err := Parse("f.csv", data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if headers[0] != "Fecha" {
			t.Errorf("headers[0] = %q", headers[0])
		}
	})

	t.Run("short and long rows tolerated", func(t *testing.T) {
		data := []byte("A,B,C\n1,2\n1,2,3,4\n")
		headers, rows, err := Parse("f.csv", data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(headers) != 3 {
			t.Fatalf("headers = %v", headers)
		}
		if rows[0]["C"] != "" {
			t.Errorf("short row C = %q", rows[0]["C"])
		}
		if rows[1]["C"] != "3" {
			t.Errorf("long row C = %q", rows[1]["C"])
		}
	})

	t.Run("empty lines dropped", func(t *testing.T) {
		data := []byte("A,B\n\n1,2\n , \n")
		_, rows, err := Parse("f.csv", data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(rows) != 1 {
			t.Errorf("rows = %+v", rows)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		_, _, err := Parse("f.csv", nil)
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("err = %v, want ErrEmptyFile", err)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, _, err := Parse("f.pdf", []byte("x"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("err = %v, want ErrUnsupportedFormat", err)
		}
	})
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := [][]string{
		{"Fecha", "Marca", "Patente"},
		{"15/03/2024", "Toyota", "AB-CD12"},
	}
	for r, rowCells := range cells {
		for c, v := range rowCells {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("SetCellValue: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	headers, rows, err := Parse("marzo.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(headers) != 3 || headers[2] != "Patente" {
		t.Errorf("headers = %v", headers)
	}
	if len(rows) != 1 || rows[0]["Marca"] != "Toyota" {
		t.Errorf("rows = %+v", rows)
	}
}
