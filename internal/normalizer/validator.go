package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"blsdata/internal/models"
)

// Validation errors.
var (
	ErrNilTable      = errors.New("dataset is nil")
	ErrMissingColumn = errors.New("dataset is missing required columns")
)

// Schema lists the columns a dataset must have and the extra columns it
// may carry without a warning.
type Schema struct {
	Name     string
	Required []string
	Optional []string
}

// SeriesSchema describes the tab-separated series file.
var SeriesSchema = Schema{
	Name:     "series",
	Required: []string{"series_id", "year", "period", "value"},
	Optional: []string{"footnote_codes"},
}

// PopulationSchema describes the population records.
var PopulationSchema = Schema{
	Name:     "population",
	Required: []string{"nation", "year", "population"},
	Optional: []string{"id_nation", "id_year", "slug_nation"},
}

// Validator checks tables against a schema.
type Validator struct {
	schema Schema
}

// NewValidator creates a validator for schema.
func NewValidator(schema Schema) *Validator {
	return &Validator{schema: schema}
}

// Validate fails when a required column is missing and returns one warning
// per unexpected column.
func (v *Validator) Validate(table *models.Table) ([]string, error) {
	if table == nil {
		return nil, ErrNilTable
	}

	var missing []string

	for _, col := range v.schema.Required {
		if table.Column(col) < 0 {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s dataset lacks %s", ErrMissingColumn, v.schema.Name, strings.Join(missing, ", "))
	}

	known := make(map[string]bool, len(v.schema.Required)+len(v.schema.Optional))
	for _, col := range v.schema.Required {
		known[col] = true
	}

	for _, col := range v.schema.Optional {
		known[col] = true
	}

	var warnings []string

	for _, col := range table.Columns {
		if !known[col] {
			warnings = append(warnings, fmt.Sprintf("%s dataset has unexpected column %q", v.schema.Name, col))
		}
	}

	return warnings, nil
}
