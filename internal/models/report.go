package models

// PopulationSummary is the mean and population standard deviation over a
// year window.
type PopulationSummary struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Count    int     `json:"count"`
	FromYear int     `json:"from_year"`
	ToYear   int     `json:"to_year"`
}

// BestYear is the year with the largest summed value for a series.
type BestYear struct {
	SeriesID  string  `json:"series_id"`
	Year      int     `json:"year"`
	YearlySum float64 `json:"yearly_sum"`
}

// JoinedRow is a series observation joined with the population of its year.
type JoinedRow struct {
	Value      *float64 `json:"value"`
	Population *float64 `json:"population"`
	SeriesID   string   `json:"series_id"`
	Period     string   `json:"period"`
	Year       int      `json:"year"`
}

// Report holds the three computed views. It is never persisted.
type Report struct {
	Population PopulationSummary `json:"population"`
	BestYears  []BestYear        `json:"best_years"`
	Joined     []JoinedRow       `json:"joined"`
	Warnings   []string          `json:"warnings,omitempty"`
}
