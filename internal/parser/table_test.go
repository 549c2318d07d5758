package parser

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadTableCSV(t *testing.T) {
	payload := []byte("County,State,Outbreak Date\nCanyon,Idaho,05-19-2022\nWeld,Colorado,04-09-2022\n")

	table, err := ReadTable("flocks.csv", payload)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(table.Headers) != 3 || table.Headers[0] != "County" {
		t.Fatalf("unexpected headers: %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0][0] != "Canyon" || table.Rows[1][1] != "Colorado" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}
}

func TestReadTableStripsBOMAndWhitespace(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("County ,  Outbreak  Date\n Canyon , 05-19-2022 \n")...)

	table, err := ReadTable("flocks.csv", payload)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.Headers[0] != "County" || table.Headers[1] != "Outbreak Date" {
		t.Fatalf("headers not normalized: %v", table.Headers)
	}
	if table.Rows[0][0] != "Canyon" {
		t.Fatalf("cell not trimmed: %q", table.Rows[0][0])
	}
}

func TestReadTableSkipsEmptyRowsAndPadsShortOnes(t *testing.T) {
	payload := []byte("a,b,c\n\n1,2\n,,\n3,4,5\n")

	table, err := ReadTable("data.csv", payload)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d: %v", len(table.Rows), table.Rows)
	}
	if len(table.Rows[0]) != 3 || table.Rows[0][2] != "" {
		t.Fatalf("short row not padded: %v", table.Rows[0])
	}
}

func TestReadTableXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"State", "County", "Species"},
		{"Idaho", "Canyon", "Red Fox"},
		{"Oregon", "Lane", "Harbor Seal"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	table, err := ReadTable("mammals.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[1][2] != "Harbor Seal" {
		t.Fatalf("unexpected rows: %v", table.Rows)
	}
}

func TestReadTableUnsupportedFormat(t *testing.T) {
	_, err := ReadTable("cases.json", []byte(`{"not": "tabular"}`))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadTableEmptyFile(t *testing.T) {
	_, err := ReadTable("empty.csv", nil)
	if !errors.Is(err, ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource, got %v", err)
	}
}

func TestExternalIDDeterministic(t *testing.T) {
	parts := []string{"Canyon", "Idaho", "2022-05-19", "Commercial Table Egg Layer", "1200000"}

	first := ExternalID("COMM", parts)
	second := ExternalID("COMM", parts)
	if first != second {
		t.Fatalf("same key produced different IDs: %s vs %s", first, second)
	}
	if len(first) != len("COMM_")+12 {
		t.Fatalf("unexpected ID length: %q", first)
	}
	if first[:5] != "COMM_" {
		t.Fatalf("missing prefix: %q", first)
	}

	other := ExternalID("COMM", []string{"Weld", "Colorado", "2022-05-19", "Commercial Table Egg Layer", "1200000"})
	if other == first {
		t.Fatalf("different keys collided: %s", first)
	}
}
