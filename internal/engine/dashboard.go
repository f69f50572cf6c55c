package engine

import (
	"errors"
	"fmt"
	"time"

	"popdash/internal/logging"
	"popdash/internal/metrics"
	"popdash/internal/models"
)

// Pipeline turns the dataset and one set of filter parameters into every
// dashboard projection. Each call recomputes from scratch.
type Pipeline struct {
	// DensityThreshold cuts scatter outliers; 0 keeps every row.
	DensityThreshold float64
	// TrendDefaultCount preselects this many filtered countries when none are chosen.
	TrendDefaultCount int
}

// Working is the continent-filtered row set plus the row set the distribution
// and map aggregate over, chosen by params.Scope. Aggregate may be the
// dataset's own slice and is read-only.
type Working struct {
	Filtered  []models.Country
	Aggregate []models.Country
}

// Select applies the continent filter and resolves the aggregation source.
func (p Pipeline) Select(ds *models.Dataset, params models.FilterParams) Working {
	filtered := FilterByContinent(ds, params.Continent)
	w := Working{Filtered: filtered, Aggregate: ds.Countries()}
	if params.Scope == models.ScopeFiltered {
		w.Aggregate = filtered
	}
	return w
}

// Summary is the summary view.
func (p Pipeline) Summary(w Working, params models.FilterParams) models.SummaryMetrics {
	defer metrics.ObserveProjection("summary", time.Now())
	return Summarize(w.Filtered, params.Year)
}

// Top is the top-N view.
func (p Pipeline) Top(w Working, params models.FilterParams) []models.RankedCountry {
	defer metrics.ObserveProjection("top", time.Now())
	return Ranking(TopN(w.Filtered, params.TopN, params.Year), params.Year)
}

// Distribution is the continent distribution view.
func (p Pipeline) Distribution(w Working, params models.FilterParams) []models.ContinentTotal {
	defer metrics.ObserveProjection("distribution", time.Now())
	return ContinentTotals(w.Aggregate, params.Year)
}

// Scatter is the density/growth view with outliers removed.
func (p Pipeline) Scatter(w Working, params models.FilterParams) []models.ScatterPoint {
	defer metrics.ObserveProjection("scatter", time.Now())
	return ScatterPoints(ScatterBasis(w.Filtered, p.DensityThreshold), params.Year)
}

// Map is the choropleth view.
func (p Pipeline) Map(w Working, params models.FilterParams) []models.MapPoint {
	defer metrics.ObserveProjection("map", time.Now())
	return MapBasis(w.Aggregate, params.Year)
}

// Table is the rank-ordered data table of the filtered rows.
func (p Pipeline) Table(w Working) []models.TableRow {
	defer metrics.ObserveProjection("table", time.Now())
	return TableView(w.Filtered)
}

// Trend builds the trend table over the filtered rows. Countries missing from
// the filtered rows are skipped and reported as warnings.
func (p Pipeline) Trend(w Working, params models.FilterParams) ([]models.TrendPoint, []string) {
	defer metrics.ObserveProjection("trend", time.Now())

	names := p.TrendSelection(w, params)
	points := make([]models.TrendPoint, 0, len(names)*len(models.Years))
	var warnings []string
	for _, name := range names {
		pts, err := BuildTrend(w.Filtered, []string{name}, models.Years)
		if errors.Is(err, ErrUnknownCountry) {
			metrics.TrendSkippedCountries.Inc()
			logging.Warn().Str("country", name).Str("continent", params.Continent).Msg("trend country not in filtered set, skipping")
			warnings = append(warnings, fmt.Sprintf("%s is not in the %s selection", name, params.Continent))
			continue
		}
		points = append(points, pts...)
	}
	return points, warnings
}

// TrendSelection returns the requested countries, or the first
// TrendDefaultCount filtered countries when none were requested.
func (p Pipeline) TrendSelection(w Working, params models.FilterParams) []string {
	if len(params.Countries) > 0 {
		return params.Countries
	}
	n := p.TrendDefaultCount
	if n > len(w.Filtered) {
		n = len(w.Filtered)
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = w.Filtered[i].Name
	}
	return names
}

// Build computes the full dashboard.
func (p Pipeline) Build(ds *models.Dataset, params models.FilterParams) *models.Dashboard {
	w := p.Select(ds, params)
	trend, warnings := p.Trend(w, params)

	return &models.Dashboard{
		Params:       params,
		Summary:      p.Summary(w, params),
		Top:          p.Top(w, params),
		Distribution: p.Distribution(w, params),
		Trend:        trend,
		Scatter:      p.Scatter(w, params),
		Map:          p.Map(w, params),
		Table:        p.Table(w),
		Warnings:     warnings,
	}
}
