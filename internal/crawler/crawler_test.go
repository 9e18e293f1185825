package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"blsdata/internal/models"
	"blsdata/internal/retry"
)

func ptr[T any](v T) *T { return &v }

const trailingIndex = `<html><body><pre>
<a href="../">Parent Directory</a>
<a href="/pub/time.series/pr/pr.class">pr.class</a>   1/2/2024  5:00 AM   1,024
<a href="/pub/time.series/pr/pr.series">pr.series</a> 12/31/2023 11:59 PM 10
<a href="">empty</a>
<a href="/pub/time.series/pr/pr.txt">pr.txt</a>
<a href="/pub/time.series/pr/archive/">archive</a> 1/1/2020 1:00 AM 0
</pre></body></html>`

func TestParseIndex_TrailingMetadata(t *testing.T) {
	base := "https://download.bls.gov/pub/time.series/pr/"

	entries, err := ParseIndex(base, []byte(trailingIndex))
	if err != nil {
		t.Fatalf("ParseIndex failed: %v", err)
	}

	want := []models.ListingEntry{
		{
			FileName:  "pr.class",
			URL:       base + "pr.class",
			Date:      "1/2/2024",
			Time:      "5:00 AM",
			Timestamp: ptr("2024-01-02T05:00:00"),
			Size:      ptr(int64(1024)),
		},
		{
			FileName:  "pr.series",
			URL:       base + "pr.series",
			Date:      "12/31/2023",
			Time:      "11:59 PM",
			Timestamp: ptr("2023-12-31T23:59:00"),
			Size:      ptr(int64(10)),
		},
		{
			FileName: "pr.txt",
			URL:      base + "pr.txt",
		},
	}

	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("ParseIndex mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIndex_IISLayout(t *testing.T) {
	// IIS puts the metadata before each anchor, so every file picks up the
	// fragment that belongs to the following line.
	content := `<pre><A HREF="/pub/time.series/">[To Parent Directory]</A><br><br>` +
		` 3/7/2024  8:30 AM          565 <A HREF="/pub/time.series/pr/pr.class">pr.class</A><br>` +
		` 1/2/2024 10:05 PM     2,345,678 <A HREF="/pub/time.series/pr/pr.data.0.Current">pr.data.0.Current</A><br>` +
		` 2/1/2024  5:00 AM &lt;dir&gt; <A HREF="/pub/time.series/pr/sub/">sub</A><br></pre>`

	entries, err := ParseIndex("https://example.com/pr/", []byte(content))
	if err != nil {
		t.Fatalf("ParseIndex failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d: %+v", len(entries), entries)
	}

	if entries[0].Timestamp == nil || *entries[0].Timestamp != "2024-01-02T22:05:00" || *entries[0].Size != 2345678 {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}

	if entries[1].Timestamp != nil || entries[1].Size != nil {
		t.Errorf("Expected no metadata for second entry: %+v", entries[1])
	}
}

func TestParseIndex_DuplicateNames(t *testing.T) {
	content := `<pre><a href="a">a</a> 1/1/2024 1:00 AM 1
<a href="b">b</a>
<a href="x/a">a</a> 2/1/2024 1:00 AM 2
</pre>`

	entries, err := ParseIndex("https://example.com/", []byte(content))
	if err != nil {
		t.Fatalf("ParseIndex failed: %v", err)
	}

	if len(entries) != 2 || entries[0].FileName != "a" || entries[1].FileName != "b" {
		t.Fatalf("Unexpected order: %+v", entries)
	}

	if *entries[0].Timestamp != "2024-02-01T01:00:00" {
		t.Errorf("Expected last metadata to win, got %s", *entries[0].Timestamp)
	}
}

func TestParseIndex_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"no pre block", `<html><body><a href="x">x</a></body></html>`, ErrNoPreBlock},
		{"bad date", `<pre><a href="x">x</a> 13/45/2024 1:00 AM 5</pre>`, ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIndex("https://example.com/", []byte(tt.content))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseListingTime(t *testing.T) {
	tests := []struct {
		date, clock, want string
	}{
		{"1/2/2024", "5:00 AM", "2024-01-02T05:00:00"},
		{"12/31/2023", "12:15 AM", "2023-12-31T00:15:00"},
		{"7/4/2022", "12:00  PM", "2022-07-04T12:00:00"},
	}

	for _, tt := range tests {
		got, err := ParseListingTime(tt.date, tt.clock)
		if err != nil {
			t.Fatalf("ParseListingTime(%q, %q) failed: %v", tt.date, tt.clock, err)
		}

		if got != tt.want {
			t.Errorf("ParseListingTime(%q, %q) = %q, want %q", tt.date, tt.clock, got, tt.want)
		}
	}
}

func TestClient_ListAndDownload(t *testing.T) {
	var agents []string

	mux := http.NewServeMux()
	mux.HandleFunc("/pr/", func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/pr/":
			_, _ = w.Write([]byte(`<pre><a href="/pr/pr.class">pr.class</a> 1/2/2024 5:00 AM 3</pre>`))
		case "/pr/pr.class":
			_, _ = w.Write([]byte("abc"))
		default:
			http.NotFound(w, r)
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL+"/pr/", NewScraper(5*time.Second, "ops@example.com"))
	ctx := context.Background()

	entries, err := client.ListDirectory(ctx)
	if err != nil {
		t.Fatalf("ListDirectory failed: %v", err)
	}

	if len(entries) != 1 || entries[0].URL != srv.URL+"/pr/pr.class" {
		t.Fatalf("Unexpected entries: %+v", entries)
	}

	body, err := client.Download(ctx, entries[0].URL)
	if err != nil || string(body) != "abc" {
		t.Fatalf("Download = %q, %v", body, err)
	}

	_, err = client.Download(ctx, srv.URL+"/pr/missing")
	if !errors.Is(err, ErrUnexpectedStatusCode) {
		t.Errorf("Expected ErrUnexpectedStatusCode, got %v", err)
	}

	for _, agent := range agents {
		if agent != "DataSyncBot/1.0 (ops@example.com)" {
			t.Errorf("Unexpected User-Agent %q", agent)
		}
	}
}

func TestClient_ListDirectoryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/", NewScraper(time.Second, "")).ListDirectory(context.Background())
	if !errors.Is(err, ErrUnexpectedStatusCode) {
		t.Errorf("Expected ErrUnexpectedStatusCode, got %v", err)
	}

	if errors.Is(err, retry.ErrPermanent) {
		t.Errorf("503 should stay retryable, got %v", err)
	}
}

func TestClient_PermanentFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, ""},
		{"forbidden", http.StatusForbidden, ""},
		{"no listing", http.StatusOK, "<html><body>maintenance</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL+"/", NewScraper(time.Second, "")).ListDirectory(context.Background())
			if !errors.Is(err, retry.ErrPermanent) {
				t.Errorf("Expected a permanent error, got %v", err)
			}
		})
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusRequestTimeout:      true,
		http.StatusNotFound:            false,
		http.StatusForbidden:           false,
		http.StatusBadRequest:          false,
	} {
		if got := IsRetryableStatus(code); got != want {
			t.Errorf("IsRetryableStatus(%d) = %v, want %v", code, got, want)
		}
	}
}
