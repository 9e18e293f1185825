package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blsdata/internal/logger"
	"blsdata/internal/models"
	"blsdata/internal/storage"
)

func i(v int) *int         { return &v }
func i64(v int64) *int64   { return &v }
func f(v float64) *float64 { return &v }

func pop(year int, population int64) models.PopulationRow {
	return models.PopulationRow{Nation: "United States", Year: i(year), Population: i64(population)}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.125, 0.12},
		{0.375, 0.38},
		{111.80339887498948, 111.8},
		{-1.005, -1},
		{250, 250},
	}

	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSummarizePopulation(t *testing.T) {
	rows := []models.PopulationRow{
		pop(2012, 5000),
		pop(2013, 100),
		pop(2014, 200),
		pop(2015, 300),
		pop(2016, 400),
		{Nation: "United States", Year: i(2017)},
		{Nation: "United States", Population: i64(7)},
		pop(2019, 1000),
	}

	summary, err := SummarizePopulation(rows, 2013, 2018)
	require.NoError(t, err)

	assert.Equal(t, models.PopulationSummary{Mean: 250, StdDev: 111.8, Count: 4, FromYear: 2013, ToYear: 2018}, summary)
}

func TestSummarizePopulation_FullWindow(t *testing.T) {
	var rows []models.PopulationRow
	for year := 2013; year <= 2018; year++ {
		rows = append(rows, pop(year, int64(year-2012)*100))
	}

	summary, err := SummarizePopulation(rows, 2013, 2018)
	require.NoError(t, err)

	assert.Equal(t, models.PopulationSummary{Mean: 350, StdDev: 170.78, Count: 6, FromYear: 2013, ToYear: 2018}, summary)
}

func TestSummarizePopulation_Empty(t *testing.T) {
	_, err := SummarizePopulation([]models.PopulationRow{pop(2020, 1)}, 2013, 2018)
	assert.ErrorIs(t, err, ErrNoPopulationRows)
}

func TestBestYears(t *testing.T) {
	rows := []models.SeriesRow{
		{SeriesID: "C", Year: i(2020), Value: f(0.1)},
		{SeriesID: "A", Year: i(2000), Value: f(1)},
		{SeriesID: "A", Year: i(2001), Value: f(3)},
		{SeriesID: "A", Year: i(2000), Value: f(2)},
		{SeriesID: "A", Value: f(100)},
		{SeriesID: "B", Year: i(1999)},
		{SeriesID: "B", Year: i(1998), Value: f(-1)},
		{SeriesID: "C", Year: i(2020), Value: f(0.2)},
	}

	want := []models.BestYear{
		{SeriesID: "A", Year: 2000, YearlySum: 3},
		{SeriesID: "B", Year: 1999, YearlySum: 0},
		{SeriesID: "C", Year: 2020, YearlySum: 0.3},
	}

	if diff := cmp.Diff(want, BestYears(rows)); diff != "" {
		t.Errorf("BestYears mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinSeries(t *testing.T) {
	series := []models.SeriesRow{
		{SeriesID: "PRS30006032", Year: i(2018), Period: "Q01", Value: f(1.904)},
		{SeriesID: "PRS30006032", Year: i(2018), Period: "Q02", Value: f(5)},
		{SeriesID: "PRS30006032", Year: i(2019), Period: "Q01", Value: f(6)},
		{SeriesID: "PRS30006011", Year: i(2018), Period: "Q01", Value: f(7)},
		{SeriesID: "PRS30006032", Year: i(2017), Period: "Q01"},
	}

	population := []models.PopulationRow{
		pop(2017, 325719178),
		pop(2018, 327167434),
		{Nation: "Puerto Rico", Year: i(2017)},
	}

	want := []models.JoinedRow{
		{SeriesID: "PRS30006032", Year: 2018, Period: "Q01", Value: f(1.9), Population: f(327167434)},
		{SeriesID: "PRS30006032", Year: 2017, Period: "Q01", Population: f(325719178)},
		{SeriesID: "PRS30006032", Year: 2017, Period: "Q01"},
	}

	if diff := cmp.Diff(want, JoinSeries(series, population, "PRS30006032", "Q01")); diff != "" {
		t.Errorf("JoinSeries mismatch (-want +got):\n%s", diff)
	}
}

const seriesTSV = "series_id        \tyear\tperiod\t       value\tfootnote_codes\n" +
	"PRS30006032      \t2014\tQ01\t        1.5\t\n" +
	"PRS30006032      \t2014\tQ02\t        2.5\t\n" +
	"PRS30006032      \t2015\tQ01\t        -1.0\t\n"

const populationJSON = `{"data":[
  {"ID Nation":"01000US","Nation":"United States","ID Year":2015,"Year":"2015","Population":300,"Slug Nation":"united-states"},
  {"ID Nation":"01000US","Nation":"United States","ID Year":2014,"Year":"2014","Population":100,"Slug Nation":"united-states"}
]}`

func options() Options {
	return Options{
		SeriesKey:     "bls/files/pr.data.0.Current",
		PopulationKey: "datausa/population.json",
		SeriesID:      "PRS30006032",
		Period:        "Q01",
		FromYear:      2013,
		ToYear:        2018,
	}
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemoryStore()

	require.NoError(t, objects.Put(ctx, "bls/files/pr.data.0.Current", []byte(seriesTSV), ""))
	require.NoError(t, objects.Put(ctx, "datausa/population.json", []byte(populationJSON), ""))

	result, err := New(objects, options(), logger.Discard()).Generate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 200.0, result.Population.Mean)
	assert.Equal(t, 100.0, result.Population.StdDev)
	assert.Equal(t, []models.BestYear{{SeriesID: "PRS30006032", Year: 2014, YearlySum: 4}}, result.BestYears)
	require.Len(t, result.Joined, 2)
	assert.Equal(t, 2014, result.Joined[0].Year)
	assert.Equal(t, 100.0, *result.Joined[0].Population)
	assert.Empty(t, result.Warnings)

	// Nothing is written back.
	assert.Len(t, objects.Keys(), 2)
}

func TestGenerator_LogsOneDocument(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemoryStore()

	require.NoError(t, objects.Put(ctx, "bls/files/pr.data.0.Current", []byte(seriesTSV), ""))
	require.NoError(t, objects.Put(ctx, "datausa/population.json", []byte(populationJSON), ""))

	var out bytes.Buffer

	_, err := New(objects, options(), logger.NewWithWriter(&out, "info", logger.FormatJSON)).Generate(ctx)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)

	var record struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))

	assert.Equal(t, "INFO", record.Level)
	assert.True(t, strings.HasPrefix(record.Msg, "Report for PRS30006032 Q01:\n"), record.Msg)
	assert.Contains(t, record.Msg, "Population Summary (2013-2018): Mean: 200.00, Std Dev: 100.00")
	assert.Contains(t, record.Msg, "## Best Year per Series ID")
	assert.Contains(t, record.Msg, "## Series and Population")
}

func TestGenerator_MissingInput(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemoryStore()

	require.NoError(t, objects.Put(ctx, "datausa/population.json", []byte(populationJSON), ""))

	_, err := New(objects, options(), logger.Discard()).Generate(ctx)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}
