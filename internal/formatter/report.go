package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"blsdata/internal/models"
)

// Missing is shown for absent values.
const Missing = "NaN"

// PopulationSummary renders Task A as a single line.
func PopulationSummary(s models.PopulationSummary) string {
	return fmt.Sprintf("Population Summary (%d-%d): Mean: %.2f, Std Dev: %.2f", s.FromYear, s.ToYear, s.Mean, s.StdDev)
}

// BestYears renders Task B.
func BestYears(rows []models.BestYear) string {
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		body = append(body, []string{r.SeriesID, strconv.Itoa(r.Year), Number(&r.YearlySum)})
	}

	return strings.Join(Table([]string{"series_id", "year", "yearly_sum"}, body), "\n")
}

// Joined renders Task C.
func Joined(rows []models.JoinedRow) string {
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		body = append(body, []string{r.SeriesID, strconv.Itoa(r.Year), r.Period, Number(r.Value), Number(r.Population)})
	}

	return strings.Join(Table([]string{"series_id", "year", "period", "value", "population"}, body), "\n")
}

// Report renders all three views as a markdown document.
func Report(r *models.Report) string {
	var sb strings.Builder

	sb.WriteString("## " + PopulationSummary(r.Population) + "\n\n")
	sb.WriteString("## Best Year per Series ID\n\n")
	sb.WriteString(BestYears(r.BestYears) + "\n\n")
	sb.WriteString("## Series and Population\n\n")
	sb.WriteString(Joined(r.Joined) + "\n")

	if len(r.Warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")

		for _, w := range r.Warnings {
			sb.WriteString("- " + w + "\n")
		}
	}

	return sb.String()
}

// Number formats a value with the shortest exact representation.
func Number(v *float64) string {
	if v == nil {
		return Missing
	}

	return strconv.FormatFloat(*v, 'f', -1, 64)
}
