package report

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"blsdata/internal/models"
)

// ErrNoPopulationRows is returned when the summary window holds no data.
var ErrNoPopulationRows = errors.New("no population rows in year window")

// Round2 rounds half to even at two decimals.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// SummarizePopulation computes the mean and population standard deviation
// of the population for years in [fromYear, toYear]. Rows with a missing
// year or population are ignored. An empty window returns
// ErrNoPopulationRows instead of a NaN mean and deviation, so the report
// job fails with a 500 rather than logging NaN with a 200.
func SummarizePopulation(rows []models.PopulationRow, fromYear, toYear int) (models.PopulationSummary, error) {
	summary := models.PopulationSummary{FromYear: fromYear, ToYear: toYear}

	var data stats.Float64Data

	for _, r := range rows {
		if r.Year == nil || r.Population == nil || *r.Year < fromYear || *r.Year > toYear {
			continue
		}

		data = append(data, float64(*r.Population))
	}

	if len(data) == 0 {
		return summary, fmt.Errorf("%w: %d-%d", ErrNoPopulationRows, fromYear, toYear)
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return summary, fmt.Errorf("failed to compute mean: %w", err)
	}

	stdDev, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return summary, fmt.Errorf("failed to compute standard deviation: %w", err)
	}

	summary.Mean = Round2(mean)
	summary.StdDev = Round2(stdDev)
	summary.Count = len(data)

	return summary, nil
}

type seriesYear struct {
	seriesID string
	year     int
}

// BestYears sums values per series and year and keeps, for each series,
// the year with the largest sum. Ties go to the earliest year. Rows with a
// missing year are skipped and missing values count as zero.
func BestYears(rows []models.SeriesRow) []models.BestYear {
	sums := make(map[seriesYear]float64)

	for _, r := range rows {
		if r.Year == nil {
			continue
		}

		key := seriesYear{seriesID: r.SeriesID, year: *r.Year}
		if r.Value != nil {
			sums[key] += *r.Value
		} else if _, ok := sums[key]; !ok {
			sums[key] = 0
		}
	}

	best := make(map[string]models.BestYear)

	for key, sum := range sums {
		cur, ok := best[key.seriesID]
		if !ok || sum > cur.YearlySum || (sum == cur.YearlySum && key.year < cur.Year) {
			best[key.seriesID] = models.BestYear{SeriesID: key.seriesID, Year: key.year, YearlySum: sum}
		}
	}

	out := make([]models.BestYear, 0, len(best))
	for _, b := range best {
		b.YearlySum = Round2(b.YearlySum)
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SeriesID < out[j].SeriesID })

	return out
}

// JoinSeries selects the rows of one series and period and inner-joins them
// with the population rows on year. Series order is kept and a series row
// yields one output row per matching population row.
func JoinSeries(series []models.SeriesRow, population []models.PopulationRow, seriesID, period string) []models.JoinedRow {
	byYear := make(map[int][]models.PopulationRow)

	for _, p := range population {
		if p.Year != nil {
			byYear[*p.Year] = append(byYear[*p.Year], p)
		}
	}

	var out []models.JoinedRow

	for _, s := range series {
		if s.SeriesID != seriesID || s.Period != period || s.Year == nil {
			continue
		}

		for _, p := range byYear[*s.Year] {
			row := models.JoinedRow{
				SeriesID: s.SeriesID,
				Year:     *s.Year,
				Period:   s.Period,
			}

			if s.Value != nil {
				v := Round2(*s.Value)
				row.Value = &v
			}

			if p.Population != nil {
				v := Round2(float64(*p.Population))
				row.Population = &v
			}

			out = append(out, row)
		}
	}

	return out
}
