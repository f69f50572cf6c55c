package models

// SummaryMetrics are the headline numbers over the filtered rows.
type SummaryMetrics struct {
	Year            Year    `json:"year"`
	TotalPopulation int64   `json:"total_population"`
	CountryCount    int     `json:"country_count"`
	MeanGrowthRate  float64 `json:"mean_growth_rate"`
	MeanDensity     float64 `json:"mean_density"`
}

// RankedCountry is one bar of the top-N chart.
type RankedCountry struct {
	Position   int    `json:"position"`
	Country    string `json:"country"`
	Continent  string `json:"continent"`
	Population int64  `json:"population"`
}

// ContinentTotal is one slice of the continent distribution.
type ContinentTotal struct {
	Continent  string `json:"continent"`
	Population int64  `json:"population"`
}

// TrendPoint is one (country, year, population) tuple of the trend table.
type TrendPoint struct {
	Country    string `json:"country"`
	Year       Year   `json:"year"`
	Population int64  `json:"population"`
}

// ScatterPoint is one bubble of the density/growth scatter.
type ScatterPoint struct {
	Country    string  `json:"country"`
	Density    float64 `json:"density_per_km2"`
	GrowthRate float64 `json:"growth_rate"`
	Population int64   `json:"population"`
}

// MapPoint feeds the choropleth keyed by territory code.
type MapPoint struct {
	CCA3       string `json:"cca3"`
	Country    string `json:"country"`
	Population int64  `json:"population"`
}

// TableRow is one row of the data table.
type TableRow struct {
	Rank       int     `json:"rank"`
	Country    string  `json:"country"`
	Capital    string  `json:"capital"`
	Continent  string  `json:"continent"`
	Population int64   `json:"pop_2022"`
	GrowthRate float64 `json:"growth_rate"`
	Density    float64 `json:"density_per_km2"`
}

// Dashboard bundles every projection for one set of filter parameters.
type Dashboard struct {
	Params       FilterParams     `json:"params"`
	Summary      SummaryMetrics   `json:"summary"`
	Top          []RankedCountry  `json:"top"`
	Distribution []ContinentTotal `json:"distribution"`
	Trend        []TrendPoint     `json:"trend"`
	Scatter      []ScatterPoint   `json:"scatter"`
	Map          []MapPoint       `json:"map"`
	Table        []TableRow       `json:"table"`
	Warnings     []string         `json:"warnings,omitempty"`
}
