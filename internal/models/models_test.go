package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestFileRecord_JSONNulls(t *testing.T) {
	rec := FileRecord{FileName: "pr.txt", URL: "https://download.bls.gov/pub/time.series/pr/pr.txt"}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	out := string(data)
	for _, want := range []string{`"last_updated_timestamp":null`, `"file_size_bytes":null`, `"last_updated_date":""`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}

	if rec.Timestamp() != "" {
		t.Errorf("Expected empty timestamp, got %q", rec.Timestamp())
	}
}

func TestManifest_Helpers(t *testing.T) {
	m := Manifest{
		{FileName: "pr.class", LastUpdatedTimestamp: strPtr("2024-01-01T05:00:00")},
		{FileName: "pr.data.0.Current"},
	}

	idx := m.Index()
	if idx["pr.class"].Timestamp() != "2024-01-01T05:00:00" {
		t.Errorf("Index lost timestamp: %+v", idx["pr.class"])
	}

	names := m.Names()
	if len(names) != 2 || names[1] != "pr.data.0.Current" {
		t.Errorf("Names = %v", names)
	}
}

func TestListingEntry_Record(t *testing.T) {
	size := int64(1024)
	entry := ListingEntry{
		FileName:  "pr.series",
		URL:       "https://example.com/pr/pr.series",
		Date:      "1/2/2024",
		Time:      "5:00 AM",
		Timestamp: strPtr("2024-01-02T05:00:00"),
		Size:      &size,
	}

	rec := entry.Record()
	if rec.FileName != entry.FileName || rec.LastUpdatedDate != "1/2/2024" || *rec.FileSizeBytes != 1024 {
		t.Errorf("Record mismatch: %+v", rec)
	}
}

func TestTable_Column(t *testing.T) {
	table := &Table{Columns: []string{"series_id", "year", "value"}}

	if table.Column("year") != 1 {
		t.Errorf("Expected year at 1, got %d", table.Column("year"))
	}

	if table.Column("period") != -1 {
		t.Error("Expected -1 for missing column")
	}
}
