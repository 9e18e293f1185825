package formatter

import (
	"strings"
	"testing"

	"blsdata/internal/models"
)

func TestTable(t *testing.T) {
	got := strings.Join(Table([]string{"series_id", "year"}, [][]string{{"PRS30006011", "1995"}, {"X", "2018"}}), "\n")

	want := `| series_id   | year |
| ----------- | ---- |
| PRS30006011 | 1995 |
| X           | 2018 |`

	if got != want {
		t.Errorf("Table() = \n%s\nwant \n%s", got, want)
	}
}

func TestReport(t *testing.T) {
	value := 1.9
	population := 327167439.0

	report := &models.Report{
		Population: models.PopulationSummary{Mean: 317437383, StdDev: 4257090.42, FromYear: 2013, ToYear: 2018},
		BestYears:  []models.BestYear{{SeriesID: "PRS30006011", Year: 1996, YearlySum: 7}},
		Joined: []models.JoinedRow{
			{SeriesID: "PRS30006032", Year: 2018, Period: "Q01", Value: &value, Population: &population},
			{SeriesID: "PRS30006032", Year: 2019, Period: "Q01"},
		},
		Warnings: []string{`population dataset has unexpected column "extra"`},
	}

	out := Report(report)

	for _, want := range []string{
		"Population Summary (2013-2018): Mean: 317437383.00, Std Dev: 4257090.42",
		"| PRS30006011 | 1996 | 7          |",
		"| PRS30006032 | 2018 | Q01    | 1.9   | 327167439  |",
		"| PRS30006032 | 2019 | Q01    | NaN   | NaN        |",
		`- population dataset has unexpected column "extra"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Report output missing %q:\n%s", want, out)
		}
	}
}
