// Package normalizer turns the raw stored datasets into typed rows.
package normalizer

import (
	"fmt"

	"blsdata/internal/models"
)

// PopulationField is the JSON field holding the population records.
const PopulationField = "data"

// Processor handles data processing and transformation.
type Processor struct {
	series      *Validator
	population  *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		series:      NewValidator(SeriesSchema),
		population:  NewValidator(PopulationSchema),
		transformer: NewTransformer(),
	}
}

// ProcessSeries parses, validates and types the tab-separated series file.
func (p *Processor) ProcessSeries(data []byte) (*models.SeriesDataset, error) {
	table, err := ReadTSV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read series data: %w", err)
	}

	warnings, err := p.series.Validate(table)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &models.SeriesDataset{
		Rows:     p.transformer.Series(table),
		Warnings: warnings,
	}, nil
}

// ProcessPopulation parses, validates and types the population document.
func (p *Processor) ProcessPopulation(data []byte) (*models.PopulationDataset, error) {
	table, err := ReadRecords(data, PopulationField)
	if err != nil {
		return nil, fmt.Errorf("failed to read population data: %w", err)
	}

	warnings, err := p.population.Validate(table)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &models.PopulationDataset{
		Rows:     p.transformer.Population(table),
		Warnings: warnings,
	}, nil
}
