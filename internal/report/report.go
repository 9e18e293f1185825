// Package report joins the series and population datasets into summary
// views.
package report

import (
	"context"
	"fmt"

	"blsdata/internal/formatter"
	"blsdata/internal/logger"
	"blsdata/internal/models"
	"blsdata/internal/normalizer"
	"blsdata/internal/storage"
)

// SuccessMessage is the handler body for a successful run.
const SuccessMessage = "Report generated successfully."

// Options selects the inputs and parameters of the report.
type Options struct {
	SeriesKey     string
	PopulationKey string
	SeriesID      string
	Period        string
	FromYear      int
	ToYear        int
}

// Generator loads both datasets from storage and computes the report.
type Generator struct {
	objects   storage.ObjectStore
	processor *normalizer.Processor
	logger    *logger.Logger
	opts      Options
}

// New creates a generator.
func New(objects storage.ObjectStore, opts Options, log *logger.Logger) *Generator {
	return &Generator{
		objects:   objects,
		processor: normalizer.NewProcessor(),
		logger:    log,
		opts:      opts,
	}
}

// Generate computes and logs the report. Results are not stored.
func (g *Generator) Generate(ctx context.Context) (*models.Report, error) {
	seriesObj, err := g.objects.Get(ctx, g.opts.SeriesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load series data: %w", err)
	}

	populationObj, err := g.objects.Get(ctx, g.opts.PopulationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load population data: %w", err)
	}

	series, err := g.processor.ProcessSeries(seriesObj.Body)
	if err != nil {
		return nil, err
	}

	population, err := g.processor.ProcessPopulation(populationObj.Body)
	if err != nil {
		return nil, err
	}

	result, err := Compute(series, population, g.opts)
	if err != nil {
		return nil, err
	}

	doc := fmt.Sprintf("Report for %s %s:\n%s", g.opts.SeriesID, g.opts.Period, formatter.Report(result))
	if len(result.Warnings) > 0 {
		g.logger.Warn(doc)
	} else {
		g.logger.Info(doc)
	}

	return result, nil
}

// Compute derives the three views from typed datasets.
func Compute(series *models.SeriesDataset, population *models.PopulationDataset, opts Options) (*models.Report, error) {
	summary, err := SummarizePopulation(population.Rows, opts.FromYear, opts.ToYear)
	if err != nil {
		return nil, err
	}

	var warnings []string
	warnings = append(warnings, series.Warnings...)
	warnings = append(warnings, population.Warnings...)

	return &models.Report{
		Population: summary,
		BestYears:  BestYears(series.Rows),
		Joined:     JoinSeries(series.Rows, population.Rows, opts.SeriesID, opts.Period),
		Warnings:   warnings,
	}, nil
}
