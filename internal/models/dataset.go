package models

// Table is a tabular dataset with normalized column names. Cells stay
// strings until the normalizer coerces them into typed rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the index of name or -1.
func (t *Table) Column(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}

	return -1
}

// SeriesRow is one observation of the tab-separated series file.
type SeriesRow struct {
	Year          *int     `json:"year"`
	Value         *float64 `json:"value"`
	SeriesID      string   `json:"series_id"`
	Period        string   `json:"period"`
	FootnoteCodes string   `json:"footnote_codes"`
}

// PopulationRow is one record of the population dataset.
type PopulationRow struct {
	Year       *int   `json:"year"`
	Population *int64 `json:"population"`
	Nation     string `json:"nation"`
}

// SeriesDataset holds the typed series rows and any schema warnings.
type SeriesDataset struct {
	Rows     []SeriesRow
	Warnings []string
}

// PopulationDataset holds the typed population rows and any schema warnings.
type PopulationDataset struct {
	Rows     []PopulationRow
	Warnings []string
}
