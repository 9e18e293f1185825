package normalizer

import (
	"testing"

	"blsdata/internal/models"
)

func TestTransformer_Series(t *testing.T) {
	table := &models.Table{
		Columns: []string{"series_id", "year", "period", "value", "footnote_codes"},
		Rows: [][]string{
			{"PRS30006032", "2018", "Q01", "1.9", ""},
			{"PRS30006032", "20x8", "Q02", "-", "R"},
			{"PRS30006033", "2018.0", "Q01", "NaN"},
		},
	}

	rows := NewTransformer().Series(table)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	if *rows[0].Year != 2018 || *rows[0].Value != 1.9 || rows[0].Period != "Q01" {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}

	if rows[1].Year != nil || rows[1].Value != nil || rows[1].FootnoteCodes != "R" {
		t.Errorf("Unparsable cells should be missing: %+v", rows[1])
	}

	if rows[2].Year == nil || *rows[2].Year != 2018 || rows[2].Value != nil {
		t.Errorf("Unexpected third row: %+v", rows[2])
	}
}

func TestTransformer_Population(t *testing.T) {
	table := &models.Table{
		Columns: []string{"nation", "year", "population"},
		Rows: [][]string{
			{"United States", "2019", "328239523"},
			{"United States", "2020", "3.5e8"},
			{"United States", "", "1.5"},
		},
	}

	rows := NewTransformer().Population(table)

	if *rows[0].Population != 328239523 || *rows[0].Year != 2019 {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}

	if rows[1].Population == nil || *rows[1].Population != 350000000 {
		t.Errorf("Expected float notation to parse: %+v", rows[1])
	}

	if rows[2].Year != nil || rows[2].Population != nil {
		t.Errorf("Expected missing year and population: %+v", rows[2])
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"2013", intPtr(2013)},
		{"2013.0", intPtr(2013)},
		{"2013.5", nil},
		{"", nil},
		{"Inf", nil},
	}

	for _, tt := range tests {
		got := parseInt(tt.in)

		switch {
		case tt.want == nil && got != nil:
			t.Errorf("parseInt(%q) = %d, want missing", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("parseInt(%q) = %v, want %d", tt.in, got, *tt.want)
		}
	}
}

func intPtr(v int) *int { return &v }
