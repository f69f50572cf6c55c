package models

import (
	"fmt"
	"sort"
)

// AllContinents is the continent filter sentinel that disables filtering.
const AllContinents = "All"

// Country is one row of the world population snapshot.
type Country struct {
	Rank      int    `json:"rank"`
	CCA3      string `json:"cca3"`
	Name      string `json:"country"`
	Capital   string `json:"capital"`
	Continent string `json:"continent"`

	Pop2022 int64 `json:"pop_2022"`
	Pop2020 int64 `json:"pop_2020"`
	Pop2015 int64 `json:"pop_2015"`
	Pop2010 int64 `json:"pop_2010"`
	Pop2000 int64 `json:"pop_2000"`
	Pop1990 int64 `json:"pop_1990"`
	Pop1980 int64 `json:"pop_1980"`
	Pop1970 int64 `json:"pop_1970"`

	AreaKm2       float64 `json:"area_km2"`
	Density       float64 `json:"density_per_km2"`
	GrowthRate    float64 `json:"growth_rate"`
	WorldSharePct float64 `json:"world_share_pct"`
}

// PopulationAt returns the stored population for y. Unsupported years yield 0.
func (c *Country) PopulationAt(y Year) int64 {
	switch y {
	case Year1970:
		return c.Pop1970
	case Year1980:
		return c.Pop1980
	case Year1990:
		return c.Pop1990
	case Year2000:
		return c.Pop2000
	case Year2010:
		return c.Pop2010
	case Year2015:
		return c.Pop2015
	case Year2020:
		return c.Pop2020
	case Year2022:
		return c.Pop2022
	}
	return 0
}

// SetPopulation stores v as the population for y.
func (c *Country) SetPopulation(y Year, v int64) {
	switch y {
	case Year1970:
		c.Pop1970 = v
	case Year1980:
		c.Pop1980 = v
	case Year1990:
		c.Pop1990 = v
	case Year2000:
		c.Pop2000 = v
	case Year2010:
		c.Pop2010 = v
	case Year2015:
		c.Pop2015 = v
	case Year2020:
		c.Pop2020 = v
	case Year2022:
		c.Pop2022 = v
	}
}

// Dataset is the immutable, ordered snapshot loaded at startup.
// Callers must treat the slice returned by Countries as read-only.
type Dataset struct {
	countries  []Country
	continents []string
}

// NewDataset validates uniqueness of rank, CCA3 and name and freezes the rows.
func NewDataset(countries []Country) (*Dataset, error) {
	ranks := make(map[int]string, len(countries))
	codes := make(map[string]string, len(countries))
	names := make(map[string]struct{}, len(countries))
	seen := make(map[string]struct{})
	var continents []string

	for _, c := range countries {
		if prev, ok := ranks[c.Rank]; ok {
			return nil, fmt.Errorf("duplicate rank %d (%s, %s)", c.Rank, prev, c.Name)
		}
		ranks[c.Rank] = c.Name
		if prev, ok := codes[c.CCA3]; ok {
			return nil, fmt.Errorf("duplicate cca3 %q (%s, %s)", c.CCA3, prev, c.Name)
		}
		codes[c.CCA3] = c.Name
		if _, ok := names[c.Name]; ok {
			return nil, fmt.Errorf("duplicate country %q", c.Name)
		}
		names[c.Name] = struct{}{}

		if _, ok := seen[c.Continent]; !ok {
			seen[c.Continent] = struct{}{}
			continents = append(continents, c.Continent)
		}
	}
	sort.Strings(continents)

	rows := make([]Country, len(countries))
	copy(rows, countries)
	return &Dataset{countries: rows, continents: continents}, nil
}

// Countries returns the rows in source order.
func (d *Dataset) Countries() []Country {
	return d.countries
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.countries)
}

// Continents returns the distinct continents, sorted.
func (d *Dataset) Continents() []string {
	return d.continents
}

// ContinentOptions returns the continent selector values: the sentinel followed by Continents.
func (d *Dataset) ContinentOptions() []string {
	opts := make([]string, 0, len(d.continents)+1)
	opts = append(opts, AllContinents)
	return append(opts, d.continents...)
}

// Scope selects which rows the continent distribution and map aggregate over.
type Scope string

const (
	// ScopeFull aggregates over the whole dataset regardless of the continent filter.
	ScopeFull Scope = "full"
	// ScopeFiltered aggregates over the continent-filtered rows.
	ScopeFiltered Scope = "filtered"
)

// FilterParams are the user-selected dashboard controls.
type FilterParams struct {
	Continent string   `json:"continent" validate:"required,max=64"`
	Year      Year     `json:"year" validate:"oneof=1970 1980 1990 2000 2010 2015 2020 2022"`
	TopN      int      `json:"top_n" validate:"min=5,max=50"`
	Countries []string `json:"countries" validate:"max=20,dive,required"`
	Scope     Scope    `json:"scope" validate:"oneof=full filtered"`
}

// DefaultFilterParams mirrors the dashboard's initial control state.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		Continent: AllContinents,
		Year:      LatestYear,
		TopN:      10,
		Scope:     ScopeFull,
	}
}
