package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"popdash/internal/logging"
	"popdash/internal/models"
)

// --- 1. SCHEMA ---

const (
	colRank       = "Rank"
	colCCA3       = "CCA3"
	colCountry    = "Country/Territory"
	colCapital    = "Capital"
	colContinent  = "Continent"
	colArea       = "Area (km²)"
	colDensity    = "Density (per km²)"
	colGrowth     = "Growth Rate"
	colWorldShare = "World Population Percentage"
)

// Columns is the snapshot header in source order. Exports write exactly these.
var Columns = []string{
	colRank, colCCA3, colCountry, colCapital, colContinent,
	models.Year2022.Column(), models.Year2020.Column(), models.Year2015.Column(), models.Year2010.Column(),
	models.Year2000.Column(), models.Year1990.Column(), models.Year1980.Column(), models.Year1970.Column(),
	colArea, colDensity, colGrowth, colWorldShare,
}

// optionalColumns may be absent from the input and then read as zero.
var optionalColumns = map[string]bool{
	colArea:       true,
	colWorldShare: true,
}

// headerKey folds a header so "Density (per km²)" and "density (per km2)" match.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(h)))
}

// --- 2. LOADER ---

// LoadCSV reads the snapshot at path.
func LoadCSV(path string) (*models.Dataset, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Err: err}
	}
	defer f.Close()

	ds, err := ParseCSV(f)
	if err == nil && ds.Len() == 0 {
		err = &DataLoadError{Err: errors.New("no data rows")}
	}
	if err != nil {
		var lerr *DataLoadError
		if errors.As(err, &lerr) {
			lerr.Path = path
		}
		return nil, err
	}

	logging.Info().
		Str("path", path).
		Int("rows", ds.Len()).
		Int("continents", len(ds.Continents())).
		Dur("elapsed", time.Since(start)).
		Msg("dataset loaded")
	return ds, nil
}

// ParseCSV parses a snapshot with a header row. Column order is free; every
// required column must be present. A header with no rows is an empty dataset.
func ParseCSV(r io.Reader) (*models.Dataset, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DataLoadError{Err: errors.New("empty file")}
	}
	if err != nil {
		return nil, &DataLoadError{Line: 1, Err: err}
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[headerKey(h)] = i
	}
	pos := make(map[string]int, len(Columns))
	for _, c := range Columns {
		i, ok := idx[headerKey(c)]
		if !ok {
			if optionalColumns[c] {
				pos[c] = -1
				continue
			}
			return nil, &DataLoadError{Line: 1, Column: c, Err: errors.New("missing required column")}
		}
		pos[c] = i
	}

	var countries []models.Country
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &DataLoadError{Line: perr.Line, Err: perr.Err}
			}
			return nil, &DataLoadError{Err: err}
		}
		line, _ := cr.FieldPos(0)

		c, rowErr := parseRow(rec, pos)
		if rowErr != nil {
			rowErr.Line = line
			return nil, rowErr
		}
		countries = append(countries, c)
	}

	ds, err := models.NewDataset(countries)
	if err != nil {
		return nil, &DataLoadError{Err: err}
	}
	return ds, nil
}

// rowParser accumulates the first field error of one record.
type rowParser struct {
	rec []string
	pos map[string]int
	err *DataLoadError
}

func (p *rowParser) str(col string) string {
	i := p.pos[col]
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *rowParser) fail(col string, err error) {
	if p.err == nil {
		p.err = &DataLoadError{Column: col, Err: err}
	}
}

func (p *rowParser) integer(col string) int64 {
	s := p.str(col)
	if s == "" && p.pos[col] < 0 {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.fail(col, err)
		return 0
	}
	if n < 0 {
		p.fail(col, fmt.Errorf("negative value %d", n))
	}
	return n
}

func (p *rowParser) number(col string) float64 {
	s := p.str(col)
	if s == "" && p.pos[col] < 0 {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, err)
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(col, fmt.Errorf("non-finite value %q", s))
		return 0
	}
	if f < 0 {
		p.fail(col, fmt.Errorf("negative value %g", f))
	}
	return f
}

func parseRow(rec []string, pos map[string]int) (models.Country, *DataLoadError) {
	p := &rowParser{rec: rec, pos: pos}

	c := models.Country{
		Rank:          int(p.integer(colRank)),
		CCA3:          p.str(colCCA3),
		Name:          p.str(colCountry),
		Capital:       p.str(colCapital),
		Continent:     p.str(colContinent),
		AreaKm2:       p.number(colArea),
		Density:       p.number(colDensity),
		GrowthRate:    p.number(colGrowth),
		WorldSharePct: p.number(colWorldShare),
	}
	for _, y := range models.Years {
		c.SetPopulation(y, p.integer(y.Column()))
	}

	if p.err == nil {
		switch {
		case c.Rank < 1:
			p.fail(colRank, fmt.Errorf("rank must be positive, got %d", c.Rank))
		case c.CCA3 == "":
			p.fail(colCCA3, errors.New("empty territory code"))
		case c.Name == "":
			p.fail(colCountry, errors.New("empty country name"))
		case c.Continent == "":
			p.fail(colContinent, errors.New("empty continent"))
		}
	}
	return c, p.err
}
