package normalizer

import (
	"math"
	"strconv"

	"blsdata/internal/models"
)

// Transformer coerces validated tables into typed rows. Cells that do not
// parse as numbers become missing values.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Series converts a table matching SeriesSchema.
func (t *Transformer) Series(table *models.Table) []models.SeriesRow {
	idx := columnIndex(table, "series_id", "year", "period", "value", "footnote_codes")
	rows := make([]models.SeriesRow, 0, len(table.Rows))

	for _, r := range table.Rows {
		rows = append(rows, models.SeriesRow{
			SeriesID:      cell(r, idx["series_id"]),
			Year:          parseInt(cell(r, idx["year"])),
			Period:        cell(r, idx["period"]),
			Value:         parseFloat(cell(r, idx["value"])),
			FootnoteCodes: cell(r, idx["footnote_codes"]),
		})
	}

	return rows
}

// Population converts a table matching PopulationSchema.
func (t *Transformer) Population(table *models.Table) []models.PopulationRow {
	idx := columnIndex(table, "nation", "year", "population")
	rows := make([]models.PopulationRow, 0, len(table.Rows))

	for _, r := range table.Rows {
		row := models.PopulationRow{
			Nation: cell(r, idx["nation"]),
			Year:   parseInt(cell(r, idx["year"])),
		}

		if p := parseInt(cell(r, idx["population"])); p != nil {
			v := int64(*p)
			row.Population = &v
		}

		rows = append(rows, row)
	}

	return rows
}

func columnIndex(table *models.Table, names ...string) map[string]int {
	idx := make(map[string]int, len(names))
	for _, name := range names {
		idx[name] = table.Column(name)
	}

	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}

	return row[i]
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}

	return &v
}

// parseInt accepts integral numbers in any float notation, e.g. "2019.0".
func parseInt(s string) *int {
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}

	f := parseFloat(s)
	if f == nil || math.IsInf(*f, 0) || *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt64/2 {
		return nil
	}

	v := int(*f)

	return &v
}
