package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Year is one of the census years carried by every country record.
type Year int

const (
	Year1970 Year = 1970
	Year1980 Year = 1980
	Year1990 Year = 1990
	Year2000 Year = 2000
	Year2010 Year = 2010
	Year2015 Year = 2015
	Year2020 Year = 2020
	Year2022 Year = 2022
)

// LatestYear is the default year for every projection.
const LatestYear = Year2022

// Years lists the supported years in chronological order.
var Years = []Year{Year1970, Year1980, Year1990, Year2000, Year2010, Year2015, Year2020, Year2022}

// Valid reports whether y is a supported year.
func (y Year) Valid() bool {
	for _, v := range Years {
		if v == y {
			return true
		}
	}
	return false
}

// Column returns the CSV header holding the population for y, e.g. "2022 Population".
func (y Year) Column() string {
	return fmt.Sprintf("%d Population", int(y))
}

func (y Year) String() string {
	return strconv.Itoa(int(y))
}

// ParseYear parses "2022" (or "2022 Population") into a supported Year.
func ParseYear(s string) (Year, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "Population"))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q: %w", s, err)
	}
	y := Year(n)
	if !y.Valid() {
		return 0, fmt.Errorf("unsupported year %d", n)
	}
	return y, nil
}
