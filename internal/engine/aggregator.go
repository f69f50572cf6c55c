package engine

import (
	"slices"
	"sort"

	"popdash/internal/models"
)

// FilterByContinent returns the rows of continent in dataset order. The
// AllContinents sentinel returns every row; an unknown continent returns none.
// The result never aliases the dataset.
func FilterByContinent(ds *models.Dataset, continent string) []models.Country {
	rows := ds.Countries()
	if continent == models.AllContinents {
		return slices.Clone(rows)
	}
	out := make([]models.Country, 0)
	for _, c := range rows {
		if c.Continent == continent {
			out = append(out, c)
		}
	}
	return out
}

// TopN returns up to n rows sorted by population at year, largest first.
// Ties keep their input order. The input slice is not modified.
func TopN(records []models.Country, n int, year models.Year) []models.Country {
	if n <= 0 {
		return []models.Country{}
	}
	sorted := make([]models.Country, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PopulationAt(year) > sorted[j].PopulationAt(year)
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// AggregateByContinent sums population at year per continent over exactly the
// rows it is given. Callers pick the full or the filtered set.
func AggregateByContinent(records []models.Country, year models.Year) map[string]int64 {
	totals := make(map[string]int64)
	for i := range records {
		totals[records[i].Continent] += records[i].PopulationAt(year)
	}
	return totals
}

// ContinentTotals is AggregateByContinent as a slice, largest first, then by name.
func ContinentTotals(records []models.Country, year models.Year) []models.ContinentTotal {
	totals := AggregateByContinent(records, year)
	out := make([]models.ContinentTotal, 0, len(totals))
	for name, pop := range totals {
		out = append(out, models.ContinentTotal{Continent: name, Population: pop})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Population != out[j].Population {
			return out[i].Population > out[j].Population
		}
		return out[i].Continent < out[j].Continent
	})
	return out
}

// BuildTrend emits one point per selected country (in the given order) and year.
// It fails with *UnknownCountryError on the first name missing from records.
func BuildTrend(records []models.Country, names []string, years []models.Year) ([]models.TrendPoint, error) {
	byName := make(map[string]*models.Country, len(records))
	for i := range records {
		byName[records[i].Name] = &records[i]
	}

	out := make([]models.TrendPoint, 0, len(names)*len(years))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, &UnknownCountryError{Country: name}
		}
		for _, y := range years {
			out = append(out, models.TrendPoint{Country: name, Year: y, Population: c.PopulationAt(y)})
		}
	}
	return out, nil
}

// ScatterBasis keeps rows with density strictly below threshold.
// A threshold <= 0 disables the cut and returns records unchanged.
func ScatterBasis(records []models.Country, threshold float64) []models.Country {
	if threshold <= 0 {
		return records
	}
	out := make([]models.Country, 0, len(records))
	for _, c := range records {
		if c.Density < threshold {
			out = append(out, c)
		}
	}
	return out
}

// Summarize computes the headline metrics. Means over an empty set are zero.
func Summarize(records []models.Country, year models.Year) models.SummaryMetrics {
	s := models.SummaryMetrics{Year: year, CountryCount: len(records)}
	if len(records) == 0 {
		return s
	}
	var growth, density float64
	for i := range records {
		s.TotalPopulation += records[i].PopulationAt(year)
		growth += records[i].GrowthRate
		density += records[i].Density
	}
	s.MeanGrowthRate = growth / float64(len(records))
	s.MeanDensity = density / float64(len(records))
	return s
}

// Ranking numbers the TopN rows for the bar chart.
func Ranking(records []models.Country, year models.Year) []models.RankedCountry {
	out := make([]models.RankedCountry, len(records))
	for i := range records {
		out[i] = models.RankedCountry{
			Position:   i + 1,
			Country:    records[i].Name,
			Continent:  records[i].Continent,
			Population: records[i].PopulationAt(year),
		}
	}
	return out
}

// ScatterPoints projects rows for the density/growth scatter.
func ScatterPoints(records []models.Country, year models.Year) []models.ScatterPoint {
	out := make([]models.ScatterPoint, len(records))
	for i := range records {
		out[i] = models.ScatterPoint{
			Country:    records[i].Name,
			Density:    records[i].Density,
			GrowthRate: records[i].GrowthRate,
			Population: records[i].PopulationAt(year),
		}
	}
	return out
}

// MapBasis keys population at year by territory code for the choropleth.
func MapBasis(records []models.Country, year models.Year) []models.MapPoint {
	out := make([]models.MapPoint, len(records))
	for i := range records {
		out[i] = models.MapPoint{
			CCA3:       records[i].CCA3,
			Country:    records[i].Name,
			Population: records[i].PopulationAt(year),
		}
	}
	return out
}

// TableView returns the data table rows sorted by rank.
func TableView(records []models.Country) []models.TableRow {
	out := make([]models.TableRow, len(records))
	for i := range records {
		c := &records[i]
		out[i] = models.TableRow{
			Rank:       c.Rank,
			Country:    c.Name,
			Capital:    c.Capital,
			Continent:  c.Continent,
			Population: c.Pop2022,
			GrowthRate: c.GrowthRate,
			Density:    c.Density,
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}
