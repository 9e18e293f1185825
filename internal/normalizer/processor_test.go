package normalizer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const seriesTSV = "series_id        \tyear\tperiod\t       value\tfootnote_codes\n" +
	"PRS30006011      \t1995\tQ01\t          2.6\t\n" +
	"PRS30006032      \t2018\tQ01\t        1.9\tR\n" +
	"\n" +
	"PRS30006032      \t2019\tQ01\t  -\n"

const populationJSON = `{
  "data": [
    {"ID Nation": "01000US", "Nation": " United States ", "ID Year": 2019, "Year": "2019", "Population": 328239523, "Slug Nation": "united-states"},
    {"ID Nation": "01000US", "Nation": "United States", "ID Year": 2018, "Year": "2018", "Population": 327167439, "Slug Nation": "united-states", "Extra": true}
  ],
  "source": []
}`

func TestNewProcessor(t *testing.T) {
	p := NewProcessor()
	if p == nil {
		t.Fatal("NewProcessor returned nil")
	}
}

func TestReadTSV(t *testing.T) {
	table, err := ReadTSV([]byte(seriesTSV))
	if err != nil {
		t.Fatalf("ReadTSV failed: %v", err)
	}

	wantColumns := []string{"series_id", "year", "period", "value", "footnote_codes"}
	if diff := cmp.Diff(wantColumns, table.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}

	wantRows := [][]string{
		{"PRS30006011", "1995", "Q01", "2.6", ""},
		{"PRS30006032", "2018", "Q01", "1.9", "R"},
		{"PRS30006032", "2019", "Q01", "-", ""},
	}
	if diff := cmp.Diff(wantRows, table.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadTSV(nil); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("Expected ErrEmptyTable, got %v", err)
	}
}

func TestReadRecords(t *testing.T) {
	table, err := ReadRecords([]byte(populationJSON), "data")
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}

	wantColumns := []string{"id_nation", "nation", "id_year", "year", "population", "slug_nation", "extra"}
	if diff := cmp.Diff(wantColumns, table.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}

	if table.Rows[0][1] != "United States" || table.Rows[0][6] != "" || table.Rows[1][6] != "true" {
		t.Errorf("Unexpected rows: %v", table.Rows)
	}

	if _, err := ReadRecords([]byte(`{"rows":[]}`), "data"); !errors.Is(err, ErrMissingField) {
		t.Errorf("Expected ErrMissingField, got %v", err)
	}

	if _, err := ReadRecords([]byte(`{"data":[1]}`), "data"); !errors.Is(err, ErrNotAnObject) {
		t.Errorf("Expected ErrNotAnObject, got %v", err)
	}
}

func TestProcessor_ProcessSeries(t *testing.T) {
	ds, err := NewProcessor().ProcessSeries([]byte(seriesTSV))
	if err != nil {
		t.Fatalf("ProcessSeries failed: %v", err)
	}

	if len(ds.Rows) != 3 || len(ds.Warnings) != 0 {
		t.Fatalf("Unexpected dataset: %+v", ds)
	}

	if ds.Rows[2].Value != nil {
		t.Errorf("Expected '-' to become missing, got %v", *ds.Rows[2].Value)
	}
}

func TestProcessor_ProcessPopulation(t *testing.T) {
	ds, err := NewProcessor().ProcessPopulation([]byte(populationJSON))
	if err != nil {
		t.Fatalf("ProcessPopulation failed: %v", err)
	}

	if len(ds.Rows) != 2 || *ds.Rows[1].Population != 327167439 {
		t.Errorf("Unexpected rows: %+v", ds.Rows)
	}

	if len(ds.Warnings) != 1 {
		t.Errorf("Expected one warning for the extra column, got %v", ds.Warnings)
	}
}

func TestProcessor_Process_ValidationError(t *testing.T) {
	_, err := NewProcessor().ProcessSeries([]byte("series_id\tyear\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}

	_, err = NewProcessor().ProcessPopulation([]byte(`{"data":[{"Year":"2019"}]}`))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("Expected ErrMissingColumn, got %v", err)
	}
}
